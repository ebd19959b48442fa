/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package clipboard copies scene elements between sessions and
// applications. The system clipboard carries a JSON document; an in-memory
// copy is kept for hosts where the system clipboard is unavailable.
package clipboard

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/atotto/clipboard"

	applog "parsec/internal/log"
	"parsec/internal/scene"
	"parsec/internal/vector"
)

// ErrEmpty is returned by Paste when nothing has been copied.
var ErrEmpty = errors.New("clipboard: nothing to paste")

const docKind = "parsec/elements"

// System is the host clipboard.
type System interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type osClipboard struct{}

func (osClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (osClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// OS returns the operating system clipboard, or nil when the platform has
// no clipboard utility available.
func OS() System {
	if clipboard.Unsupported {
		return nil
	}
	return osClipboard{}
}

type document struct {
	Kind     string           `json:"kind"`
	Elements []*scene.Element `json:"elements"`
}

// Board is the session's clipboard. Copied roots carry absolute
// coordinates and no parent; descendants stay relative to their roots.
type Board struct {
	sys    System
	mem    []byte
	pastes int
	last   string
	log    *slog.Logger
}

// New creates a board backed by sys; a nil sys keeps copies in memory only.
func New(sys System) *Board {
	return &Board{sys: sys, log: applog.WithComponent("clipboard")}
}

// Copy stores els. The caller passes clones it no longer mutates.
func (b *Board) Copy(els []*scene.Element) error {
	if len(els) == 0 {
		return nil
	}
	raw, err := json.Marshal(document{Kind: docKind, Elements: els})
	if err != nil {
		return err
	}
	b.mem = raw
	b.last = string(raw)
	b.pastes = 0
	if b.sys != nil {
		if err := b.sys.WriteAll(string(raw)); err != nil {
			b.log.Warn("system clipboard write failed; keeping in-memory copy", slog.Any("err", err))
		}
	}
	return nil
}

// source prefers the system clipboard when it holds one of our documents.
// Any other text on it is returned as foreign.
func (b *Board) source() (raw []byte, foreign string) {
	if b.sys != nil {
		if txt, err := b.sys.ReadAll(); err == nil && txt != "" {
			var head struct {
				Kind string `json:"kind"`
			}
			if json.Unmarshal([]byte(txt), &head) == nil && head.Kind == docKind {
				if txt != b.last {
					// Copied by another session; restart the paste cascade.
					b.last = txt
					b.pastes = 0
				}
				return []byte(txt), ""
			}
			foreign = txt
		}
	}
	return b.mem, foreign
}

// Paste returns fresh copies with new ids and remapped parents. Each paste
// of the same content shifts roots by offset once more so copies cascade.
func (b *Board) Paste(offset float64) ([]*scene.Element, error) {
	raw, foreign := b.source()
	if el, ok := pathFromData(foreign); ok {
		b.log.Debug("pasting svg path data", slog.String("id", el.ID))
		return []*scene.Element{el}, nil
	}
	if len(raw) == 0 {
		return nil, ErrEmpty
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if len(doc.Elements) == 0 {
		return nil, ErrEmpty
	}
	b.pastes++
	shift := offset * float64(b.pastes)
	return Reassign(doc.Elements, shift, shift), nil
}

// pathFromData builds a path element from SVG path data such as another
// editor puts on the clipboard. Anchors keep their absolute position.
func pathFromData(txt string) (*scene.Element, bool) {
	txt = strings.TrimSpace(txt)
	if txt == "" {
		return nil, false
	}
	pts, closed, err := vector.ParsePathData(txt)
	if err != nil || len(pts) < 2 {
		return nil, false
	}
	box, local := vector.Normalize(pts)
	el, err := scene.New(scene.KindPath, box)
	if err != nil {
		return nil, false
	}
	pp := el.Props.(*scene.PathProps)
	pp.Points = local
	pp.IsClosed = closed
	return el, true
}

// Reassign gives els fresh ids, remaps parent references inside the set
// and moves the roots (elements whose parent is outside the set) by dx, dy.
// Roots come out with no parent. els is modified in place.
func Reassign(els []*scene.Element, dx, dy float64) []*scene.Element {
	ids := make(map[string]string, len(els))
	for _, el := range els {
		ids[el.ID] = scene.NewID(string(el.Kind()))
	}
	for _, el := range els {
		el.ID = ids[el.ID]
		if np, ok := ids[el.ParentID]; ok {
			el.ParentID = np
			continue
		}
		el.ParentID = ""
		el.X += dx
		el.Y += dy
	}
	return els
}

// Clear forgets the in-memory copy. The system clipboard is left alone.
func (b *Board) Clear() {
	b.mem = nil
	b.last = ""
	b.pastes = 0
}
