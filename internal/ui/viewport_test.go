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
	"testing"
	"time"

	"parsec/internal/app"
	"parsec/internal/scene"
	"parsec/internal/tool"
	"parsec/internal/vector"
)

func TestViewportRoundTrip(t *testing.T) {
	v := Viewport{Zoom: 2, Pan: vector.Pt{X: 10, Y: -5}}
	p := vector.Pt{X: 3, Y: 4}
	s := v.ToScreen(p)
	if s != (vector.Pt{X: 16, Y: 3}) {
		t.Fatalf("ToScreen = %v", s)
	}
	if back := v.ToScene(s); !back.Near(p, 1e-9) {
		t.Fatalf("ToScene = %v", back)
	}
}

func TestZoomAtKeepsAnchor(t *testing.T) {
	v := NewViewport()
	cursor := vector.Pt{X: 200, Y: 100}
	before := v.ToScene(cursor)
	v.ZoomAt(cursor, 2)
	if v.Zoom != 2 {
		t.Fatalf("zoom = %v", v.Zoom)
	}
	if after := v.ToScene(cursor); !after.Near(before, 1e-9) {
		t.Fatalf("anchor moved from %v to %v", before, after)
	}
	v.ZoomAt(cursor, 1000)
	if v.Zoom != maxZoom {
		t.Fatalf("zoom not clamped: %v", v.Zoom)
	}
}

func TestDisplayOfResolvesNestedGeometry(t *testing.T) {
	frame, _ := scene.New(scene.KindFrame, vector.R(100, 100, 300, 300))
	group, _ := scene.New(scene.KindGroup, vector.R(10, 10, 50, 50))
	group.ParentID = frame.ID
	shape, _ := scene.New(scene.KindShape, vector.R(5, 5, 10, 10))
	shape.ParentID = group.ID
	shape.Props.(*scene.ShapeProps).StrokeWidth = 0

	d := displayOf(app.View{
		Elements:  []*scene.Element{frame, group, shape},
		Selection: scene.Selection{IDs: []string{shape.ID}},
	})
	if len(d.items) != 2 {
		t.Fatalf("expected frame and shape, got %d drawables", len(d.items))
	}
	last := d.items[len(d.items)-1]
	if last.ID != shape.ID || last.Box != vector.R(115, 115, 10, 10) {
		t.Fatalf("shape drawable = %+v", last)
	}
	if !d.selected || d.selection != vector.R(115, 115, 10, 10) {
		t.Fatalf("selection = %+v %v", d.selection, d.selected)
	}
}

func TestToolKey(t *testing.T) {
	cases := map[string]string{"Escape": "Escape", "Return": "Enter", "BackSpace": "Backspace", "Left": "ArrowLeft", "Z": "z", "]": "]"}
	for in, want := range cases {
		if got, ok := toolKey(in); !ok || got != want {
			t.Fatalf("toolKey(%q) = %q %v, want %q", in, got, ok, want)
		}
	}
	if _, ok := toolKey("F1"); ok {
		t.Fatalf("F1 should not map")
	}
	if m := modifiers(true, false, true, false); !m.Has(tool.ModShift) || !m.Has(tool.ModCtrl) || m.Has(tool.ModAlt) {
		t.Fatalf("modifiers = %v", m)
	}
}

func TestClickCounter(t *testing.T) {
	c := newClickCounter()
	t0 := time.Unix(0, 0)
	p := vector.Pt{X: 10, Y: 10}
	if n := c.press(p, t0); n != 1 {
		t.Fatalf("first press = %d", n)
	}
	if n := c.press(p, t0.Add(200*time.Millisecond)); n != 2 {
		t.Fatalf("double press = %d", n)
	}
	if n := c.press(p, t0.Add(2*time.Second)); n != 1 {
		t.Fatalf("late press = %d", n)
	}
	if n := c.press(vector.Pt{X: 50, Y: 50}, t0.Add(2100*time.Millisecond)); n != 1 {
		t.Fatalf("far press = %d", n)
	}
}
