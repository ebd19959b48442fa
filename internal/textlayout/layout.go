/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package textlayout breaks text element content into lines inside its box.
// All renderers share it so wrapping is the same in every output.
package textlayout

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"parsec/internal/vector"
)

const (
	DefaultSize       = 16
	DefaultLineHeight = 1.2
)

// Measurer returns the advance width of s at font size.
type Measurer interface {
	Advance(s string, size float64) float64
}

// MeasureFunc adapts a function, such as a PDF engine's string width.
type MeasureFunc func(s string, size float64) float64

func (f MeasureFunc) Advance(s string, size float64) float64 { return f(s, size) }

// BasicMeasurer uses x/image/basicfont Face7x13 scaled to the requested
// size. It is deterministic, which keeps tests and exports stable.
type BasicMeasurer struct{}

func (BasicMeasurer) Advance(s string, size float64) float64 {
	d := &font.Drawer{Face: basicfont.Face7x13}
	return float64(d.MeasureString(s)) / 64 * size / 13
}

// Style controls placement. Zero values get defaults.
type Style struct {
	Size          float64
	LineHeight    float64 // multiple of Size
	Align         string  // left|center|right
	VerticalAlign string  // top|middle|bottom
	// Wrap breaks lines at word boundaries to fit the box width.
	Wrap bool
}

// Line is one laid out line in absolute coordinates.
type Line struct {
	Text     string
	X        float64 // left edge after alignment
	Baseline float64
	Width    float64
}

// Block is the result of laying text into a box.
type Block struct {
	Lines      []Line
	Width      float64 // widest line
	Height     float64
	LineHeight float64
}

// Layout places content inside box. Explicit newlines always break; with
// Wrap set, words move to the next line once the box width is reached. A
// word wider than the box gets a line of its own.
func Layout(m Measurer, content string, st Style, box vector.Rect) Block {
	if m == nil {
		m = BasicMeasurer{}
	}
	if st.Size <= 0 {
		st.Size = DefaultSize
	}
	if st.LineHeight <= 0 {
		st.LineHeight = DefaultLineHeight
	}
	lead := st.Size * st.LineHeight

	var texts []string
	for _, para := range strings.Split(content, "\n") {
		if !st.Wrap || box.W <= 0 {
			texts = append(texts, para)
			continue
		}
		texts = append(texts, wrap(m, para, st.Size, box.W)...)
	}

	b := Block{LineHeight: lead, Height: lead * float64(len(texts))}
	top := box.Top()
	switch st.VerticalAlign {
	case "middle":
		top = box.CenterY() - b.Height/2
	case "bottom":
		top = box.Bottom() - b.Height
	}
	for i, s := range texts {
		w := m.Advance(s, st.Size)
		x := box.Left()
		switch st.Align {
		case "center":
			x = box.CenterX() - w/2
		case "right":
			x = box.Right() - w
		}
		b.Lines = append(b.Lines, Line{Text: s, X: x, Baseline: top + st.Size + float64(i)*lead, Width: w})
		if w > b.Width {
			b.Width = w
		}
	}
	return b
}

func wrap(m Measurer, para string, size, maxWidth float64) []string {
	words := strings.Fields(para)
	if len(words) == 0 {
		return []string{""}
	}
	var out []string
	cur := words[0]
	for _, w := range words[1:] {
		next := cur + " " + w
		if m.Advance(next, size) > maxWidth {
			out = append(out, cur)
			cur = w
			continue
		}
		cur = next
	}
	return append(out, cur)
}
