/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"math"
	"strings"
	"time"

	"parsec/internal/app"
	"parsec/internal/export"
	"parsec/internal/scene"
	"parsec/internal/tool"
	"parsec/internal/vector"
)

const (
	minZoom = 0.1
	maxZoom = 8.0
)

// Viewport maps scene coordinates onto the widget: screen = scene*Zoom + Pan.
type Viewport struct {
	Zoom float64
	Pan  vector.Pt
}

func NewViewport() Viewport { return Viewport{Zoom: 1} }

func (v Viewport) ToScreen(p vector.Pt) vector.Pt { return p.Scale(v.Zoom).Add(v.Pan) }

func (v Viewport) ToScene(p vector.Pt) vector.Pt { return p.Sub(v.Pan).Scale(1 / v.Zoom) }

func (v Viewport) RectToScreen(r vector.Rect) vector.Rect {
	o := v.ToScreen(r.Min())
	return vector.R(o.X, o.Y, r.W*v.Zoom, r.H*v.Zoom)
}

// ZoomAt scales by factor while keeping the scene point under screen fixed.
func (v *Viewport) ZoomAt(screen vector.Pt, factor float64) {
	anchor := v.ToScene(screen)
	v.Zoom = math.Max(minZoom, math.Min(maxZoom, v.Zoom*factor))
	v.Pan = screen.Sub(anchor.Scale(v.Zoom))
}

// display is the host-independent part of one canvas repaint.
type display struct {
	items     []export.Drawable
	selection vector.Rect
	selected  bool
}

// displayOf rebuilds a throwaway model from the view so the repaint can use
// the same lowering as the exporters.
func displayOf(v app.View) display {
	m := scene.NewModel()
	m.UpsertBatch(v.Elements)
	m.Select(v.Selection.IDs...)
	d := display{items: export.Lower(m)}
	d.selection, d.selected = m.SelectionBounds()
	return d
}

// keyNames maps host key names onto the names the tool machine expects.
var keyNames = map[string]string{
	"Escape":    "Escape",
	"Return":    "Enter",
	"Enter":     "Enter",
	"Delete":    "Delete",
	"BackSpace": "Backspace",
	"Left":      "ArrowLeft",
	"Right":     "ArrowRight",
	"Up":        "ArrowUp",
	"Down":      "ArrowDown",
	"[":         "[",
	"]":         "]",
}

// toolKey translates a host key name. Single letters are lower-cased.
func toolKey(name string) (string, bool) {
	if k, ok := keyNames[name]; ok {
		return k, true
	}
	if len(name) == 1 {
		if c := strings.ToLower(name)[0]; c >= 'a' && c <= 'z' {
			return string(c), true
		}
	}
	return "", false
}

func modifiers(shift, alt, ctrl, space bool) tool.Modifiers {
	var m tool.Modifiers
	if shift {
		m |= tool.ModShift
	}
	if alt {
		m |= tool.ModAlt
	}
	if ctrl {
		m |= tool.ModCtrl
	}
	if space {
		m |= tool.ModSpace
	}
	return m
}

// clickCounter numbers consecutive presses close in time and space.
type clickCounter struct {
	last   time.Time
	pos    vector.Pt
	n      int
	window time.Duration
	slop   float64
}

func newClickCounter() *clickCounter {
	return &clickCounter{window: 400 * time.Millisecond, slop: 4}
}

func (c *clickCounter) press(at vector.Pt, now time.Time) int {
	if c.n > 0 && now.Sub(c.last) <= c.window && at.Dist(c.pos) <= c.slop {
		c.n++
	} else {
		c.n = 1
	}
	c.last, c.pos = now, at
	return c.n
}
