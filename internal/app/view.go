/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package app

import (
	"encoding/json"
	"slices"

	"parsec/internal/backend"
	"parsec/internal/scene"
	"parsec/internal/tool"
	"parsec/internal/vector"
)

// View is everything a renderer needs for one frame. It is a copy; the
// session never touches it after handing it out.
type View struct {
	// Elements in paint order.
	Elements  []*scene.Element
	Selection scene.Selection
	Guides    []vector.Guide

	Mode     tool.Mode
	Zoom     float64
	Gesture  string
	Draw     *vector.Rect
	Marquee  *vector.Rect
	Pen      []vector.PathPoint
	PenHover vector.Pt
	TextID   string

	// PathID is the path open in the point editor; PathHandles are its
	// anchors and handles in scene space.
	PathID      string
	PathHandles []PathHandle

	Status  backend.Status
	Stale   bool
	Dropped int
	Remote  json.RawMessage
}

// PathHandle is one anchor of the open path in scene coordinates.
type PathHandle struct {
	Anchor vector.Pt
	In     *vector.Pt
	Out    *vector.Pt
	Type   vector.HandleType
}

func (s *Session) view() View {
	m := s.model
	els := m.Ordered()
	clones := make([]*scene.Element, len(els))
	for i, e := range els {
		clones[i] = e.Clone()
	}
	sel := m.Selection()
	sel.IDs = slices.Clone(sel.IDs)

	v := View{
		Elements:  clones,
		Selection: sel,
		Guides:    slices.Clone(m.Guides()),
		Mode:      s.tools.Mode(),
		Zoom:      s.tools.Zoom(),
		TextID:    s.tools.TextID(),
		Status:    s.status,
		Stale:     s.stale,
		Dropped:   s.dropped,
		Remote:    slices.Clone(s.remote),
	}
	if name, phase := s.tools.Gesture(); phase == tool.PhaseActive {
		v.Gesture = name
	}
	if r, ok := s.tools.DrawPreview(); ok {
		v.Draw = &r
	}
	if r, ok := s.tools.Marquee(); ok {
		v.Marquee = &r
	}
	if pts, hover := s.tools.PenPoints(); len(pts) > 0 {
		v.Pen, v.PenHover = vector.ClonePoints(pts), hover
	}
	if ed := s.tools.Editor(); ed != nil {
		v.PathID = ed.ID()
		for _, p := range ed.Points() {
			h := PathHandle{Anchor: ed.ToScene(p.Anchor()), Type: p.HandleType}
			if p.HandleIn != nil {
				in := ed.ToScene(p.InAbs())
				h.In = &in
			}
			if p.HandleOut != nil {
				out := ed.ToScene(p.OutAbs())
				h.Out = &out
			}
			v.PathHandles = append(v.PathHandles, h)
		}
	}
	return v
}
