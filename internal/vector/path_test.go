/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"errors"
	"testing"
)

func hp(x, y float64) *Pt { return &Pt{x, y} }

func samePoints(t *testing.T, want, got []PathPoint) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("expected %d points, got %d: %+v", len(want), len(got), got)
	}
	near := func(a, b *Pt) bool {
		if a == nil || b == nil {
			return a == nil && b == nil
		}
		return a.Near(*b, 1e-9)
	}
	for i := range want {
		if !want[i].Anchor().Near(got[i].Anchor(), 1e-9) {
			t.Fatalf("point %d: anchor %v != %v", i, got[i].Anchor(), want[i].Anchor())
		}
		if !near(want[i].HandleIn, got[i].HandleIn) || !near(want[i].HandleOut, got[i].HandleOut) {
			t.Fatalf("point %d: handles in=%v out=%v, want in=%v out=%v", i, got[i].HandleIn, got[i].HandleOut, want[i].HandleIn, want[i].HandleOut)
		}
	}
}

func TestPathDataRoundTrip_Open(t *testing.T) {
	pts := []PathPoint{
		{X: 0, Y: 0},
		{X: 50.25, Y: 0, HandleIn: hp(-10, 0), HandleOut: hp(10, 0), HandleType: HandleSymmetrical},
		{X: 50, Y: 50, HandleIn: hp(0, -12.5), HandleType: HandleDisconnected},
		{X: -3.125, Y: 1e-3},
	}
	d := FormatPathData(pts, false)
	got, closed, err := ParsePathData(d)
	if err != nil {
		t.Fatalf("parse %q: %v", d, err)
	}
	if closed {
		t.Fatalf("expected open path")
	}
	samePoints(t, pts, got)
	if got[1].HandleType != HandleSymmetrical || got[2].HandleType != HandleDisconnected {
		t.Fatalf("handle types not inferred: %v %v", got[1].HandleType, got[2].HandleType)
	}
}

func TestTrimOpenEndsDropsUnusedHandles(t *testing.T) {
	pts := []PathPoint{
		{X: 0, Y: 0, HandleIn: hp(-10, 0), HandleOut: hp(10, 0), HandleType: HandleSymmetrical},
		{X: 50, Y: 0},
		{X: 50, Y: 50, HandleIn: hp(0, -5), HandleOut: hp(0, 5), HandleType: HandleSymmetrical},
	}
	got := TrimOpenEnds(ClonePoints(pts), false)
	if got[0].HandleIn != nil || got[0].HandleType != HandleDisconnected {
		t.Fatalf("first anchor: %+v", got[0])
	}
	if got[2].HandleOut != nil || got[2].HandleType != HandleDisconnected {
		t.Fatalf("last anchor: %+v", got[2])
	}
	back, _, err := ParsePathData(FormatPathData(got, false))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	samePoints(t, got, back)
	if back[0].HandleType != got[0].HandleType || back[2].HandleType != got[2].HandleType {
		t.Fatalf("types changed: %s %s", back[0].HandleType, back[2].HandleType)
	}

	closed := TrimOpenEnds(ClonePoints(pts), true)
	if closed[0].HandleIn == nil || closed[2].HandleOut == nil {
		t.Fatalf("closed paths use every handle")
	}
}

func TestPathDataRoundTrip_ClosedWithCurvedClosingSegment(t *testing.T) {
	pts := []PathPoint{
		{X: 0, Y: 0, HandleIn: hp(0, 8), HandleOut: hp(5, -3), HandleType: HandleAsymmetrical},
		{X: 100, Y: 0},
		{X: 100, Y: 100, HandleOut: hp(-20, 10), HandleType: HandleDisconnected},
	}
	d := FormatPathData(pts, true)
	got, closed, err := ParsePathData(d)
	if err != nil {
		t.Fatalf("parse %q: %v", d, err)
	}
	if !closed {
		t.Fatalf("expected closed path from %q", d)
	}
	samePoints(t, pts, got)
}

func TestFormatPathData_StraightSegments(t *testing.T) {
	d := FormatPathData([]PathPoint{{X: 0, Y: 0}, {X: 50, Y: 0}, {X: 50, Y: 50}}, true)
	if d != "M 0 0 L 50 0 L 50 50 Z" {
		t.Fatalf("unexpected path data %q", d)
	}
}

func TestParsePathData_RelativeAndShorthand(t *testing.T) {
	got, closed, err := ParsePathData("m10,10 h20 v-5 l-5-5 c0,-10 10,-10 10,0z")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !closed {
		t.Fatalf("expected closed")
	}
	want := []PathPoint{
		{X: 10, Y: 10},
		{X: 30, Y: 10},
		{X: 30, Y: 5},
		{X: 25, Y: 0, HandleOut: hp(0, -10)},
		{X: 35, Y: 0, HandleIn: hp(0, -10)},
	}
	samePoints(t, want, got)
}

func TestParsePathData_ImplicitLineTo(t *testing.T) {
	got, _, err := ParsePathData("M 0 0 10 0 10 10")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 3 || got[2].X != 10 || got[2].Y != 10 {
		t.Fatalf("unexpected points %+v", got)
	}
}

func TestParsePathData_Errors(t *testing.T) {
	for _, d := range []string{"L 0", "M 0 0 Q 1 1 2 2", "10 10", "M 0 0 Z 5"} {
		if _, _, err := ParsePathData(d); !errors.Is(err, ErrPathSyntax) {
			t.Fatalf("%q: expected syntax error, got %v", d, err)
		}
	}
	if _, _, err := ParsePathData("M 0 0 L 1 1 M 5 5 L 6 6"); !errors.Is(err, ErrPathSubpaths) {
		t.Fatalf("expected subpath error, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	b, pts := Normalize([]PathPoint{{X: 10, Y: 20}, {X: 60, Y: 20}, {X: 60, Y: 70, HandleIn: hp(1, 2)}})
	if b != R(10, 20, 50, 50) {
		t.Fatalf("unexpected bounds %v", b)
	}
	if pts[0].Anchor() != (Pt{0, 0}) || pts[2].Anchor() != (Pt{50, 50}) {
		t.Fatalf("points not rebased: %+v", pts)
	}
	if *pts[2].HandleIn != (Pt{1, 2}) {
		t.Fatalf("handles are relative and must not move")
	}
}

func TestTangentHandles(t *testing.T) {
	pts := []PathPoint{{X: 0, Y: 0}, {X: 30, Y: 0}, {X: 60, Y: 0}}
	in, out := TangentHandles(pts, 1, false)
	if out != (Pt{10, 0}) || in != (Pt{-10, 0}) {
		t.Fatalf("unexpected tangent handles in=%v out=%v", in, out)
	}
}

func TestMirrorHandle(t *testing.T) {
	p := PathPoint{X: 1, Y: 1, HandleOut: hp(3, 4)}
	p.MirrorHandle(true)
	if p.HandleIn == nil || *p.HandleIn != (Pt{-3, -4}) {
		t.Fatalf("expected mirrored in handle, got %v", p.HandleIn)
	}
}

func TestFlatten(t *testing.T) {
	var p Path
	p.MoveTo(0, 0)
	p.LineTo(10, 0)
	p.CubicTo(10, 5, 5, 10, 0, 10)
	p.Close()
	lines := p.Flatten(4)
	if len(lines) != 1 {
		t.Fatalf("expected one polyline, got %d", len(lines))
	}
	pts := lines[0]
	// move, line, 4 cubic samples, closing point
	if len(pts) != 7 {
		t.Fatalf("expected 7 points, got %d: %v", len(pts), pts)
	}
	if !pts[5].Near(Pt{0, 10}, 1e-9) || !pts[6].Near(Pt{0, 0}, 1e-9) {
		t.Fatalf("unexpected tail %v %v", pts[5], pts[6])
	}
}
