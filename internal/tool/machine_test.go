/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tool

import (
	"encoding/json"
	"math"
	"testing"

	"parsec/internal/clipboard"
	"parsec/internal/reconcile"
	"parsec/internal/scene"
	"parsec/internal/vector"
	"parsec/internal/wire"
)

type recorder struct{ msgs []wire.Message }

func (r *recorder) Send(m wire.Message) error {
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recorder) count(typ string) int {
	n := 0
	for _, m := range r.msgs {
		if m.Type == typ {
			n++
		}
	}
	return n
}

func (r *recorder) committedUpdates() int {
	n := 0
	for _, m := range r.msgs {
		if m.Type == wire.TypeUpdateElement && m.Class == wire.Committed {
			n++
		}
	}
	return n
}

func setup(t *testing.T) (*Machine, *scene.Model, *recorder) {
	t.Helper()
	model := scene.NewModel()
	rec := &recorder{}
	eng := reconcile.New(model, rec, reconcile.Options{})
	return New(eng, clipboard.New(nil), Config{}), model, rec
}

func add(t *testing.T, m *scene.Model, id string, k scene.Kind, parent string, r vector.Rect) *scene.Element {
	t.Helper()
	el, err := scene.New(k, r)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	el.ID, el.ParentID = id, parent
	m.Upsert(el)
	return el
}

func at(x, y float64) PointerEvent { return PointerEvent{Pos: vector.Pt{X: x, Y: y}, Clicks: 1} }

func click(t *testing.T, m *Machine, ev PointerEvent) {
	t.Helper()
	if err := m.PointerDown(ev); err != nil {
		t.Fatalf("down: %v", err)
	}
	if err := m.PointerUp(ev); err != nil {
		t.Fatalf("up: %v", err)
	}
}

func drag(t *testing.T, m *Machine, from, to PointerEvent) {
	t.Helper()
	if err := m.PointerDown(from); err != nil {
		t.Fatalf("down: %v", err)
	}
	if err := m.PointerMove(to); err != nil {
		t.Fatalf("move: %v", err)
	}
	if err := m.PointerUp(to); err != nil {
		t.Fatalf("up: %v", err)
	}
}

func key(t *testing.T, m *Machine, k string, mods Modifiers) {
	t.Helper()
	if err := m.Key(KeyEvent{Key: k, Mods: mods}); err != nil {
		t.Fatalf("key %s: %v", k, err)
	}
}

func onlyPath(t *testing.T, model *scene.Model) (*scene.Element, *scene.PathProps) {
	t.Helper()
	els := model.Elements()
	if len(els) != 1 {
		t.Fatalf("expected one element, got %d", len(els))
	}
	pp, ok := els[0].Props.(*scene.PathProps)
	if !ok {
		t.Fatalf("expected a path, got %s", els[0].Kind())
	}
	return els[0], pp
}

func TestPenFinalizeNormalizesOpenPath(t *testing.T) {
	m, model, rec := setup(t)
	m.SetMode(ModePen)
	for _, p := range [][2]float64{{0, 0}, {50, 0}, {50, 50}} {
		click(t, m, at(p[0], p[1]))
	}
	key(t, m, "Enter", 0)

	el, pp := onlyPath(t, model)
	if el.X != 0 || el.Y != 0 || el.Width != 50 || el.Height != 50 {
		t.Fatalf("unexpected box %+v", el.Box())
	}
	want := []vector.Pt{{X: 0, Y: 0}, {X: 50, Y: 0}, {X: 50, Y: 50}}
	if len(pp.Points) != len(want) || pp.IsClosed {
		t.Fatalf("unexpected points %+v closed=%v", pp.Points, pp.IsClosed)
	}
	for i, w := range want {
		if pp.Points[i].Anchor() != w {
			t.Fatalf("point %d: got %+v want %+v", i, pp.Points[i].Anchor(), w)
		}
	}
	if rec.count(wire.TypeCreateElement) != 1 {
		t.Fatalf("expected one create, got %d", rec.count(wire.TypeCreateElement))
	}
	if m.Mode() != ModeSelect {
		t.Fatalf("expected select mode after finalize, got %s", m.Mode())
	}
}

func TestPenPathAwayFromOriginIsRelative(t *testing.T) {
	m, model, _ := setup(t)
	m.SetMode(ModePen)
	for _, p := range [][2]float64{{100, 40}, {150, 40}, {150, 90}} {
		click(t, m, at(p[0], p[1]))
	}
	key(t, m, "Enter", 0)
	el, pp := onlyPath(t, model)
	if el.X != 100 || el.Y != 40 || pp.Points[0].Anchor() != (vector.Pt{}) {
		t.Fatalf("expected box origin at first anchor, got %+v %+v", el.Box(), pp.Points[0])
	}
}

func TestPenClosesOnFirstAnchor(t *testing.T) {
	m, model, _ := setup(t)
	m.SetMode(ModePen)
	for _, p := range [][2]float64{{0, 0}, {50, 0}, {50, 50}} {
		click(t, m, at(p[0], p[1]))
	}
	click(t, m, at(2, 1))

	_, pp := onlyPath(t, model)
	if !pp.IsClosed {
		t.Fatalf("expected closed path")
	}
	if len(pp.Points) != 3 {
		t.Fatalf("closing must not add a point, got %d", len(pp.Points))
	}
	last := pp.Points[len(pp.Points)-1].Anchor()
	if last.Near(pp.Points[0].Anchor(), 1e-9) {
		t.Fatalf("last point duplicates the first")
	}
}

func TestPenCloseRadiusScalesWithZoom(t *testing.T) {
	m, model, _ := setup(t)
	m.SetZoom(4) // 8px radius is 2 scene units
	m.SetMode(ModePen)
	for _, p := range [][2]float64{{0, 0}, {50, 0}, {50, 50}} {
		click(t, m, at(p[0], p[1]))
	}
	click(t, m, at(5, 5))
	if model.Len() != 0 {
		t.Fatalf("a click outside the zoomed radius must add an anchor, not close")
	}
	pts, _ := m.PenPoints()
	if len(pts) != 4 {
		t.Fatalf("expected 4 pending anchors, got %d", len(pts))
	}
}

func TestPenDoubleClickFinalizesOpen(t *testing.T) {
	m, model, _ := setup(t)
	m.SetMode(ModePen)
	click(t, m, at(0, 0))
	click(t, m, at(50, 0))
	click(t, m, at(50, 50))
	dbl := at(50, 50)
	dbl.Clicks = 2
	click(t, m, dbl)

	_, pp := onlyPath(t, model)
	if pp.IsClosed || len(pp.Points) != 3 {
		t.Fatalf("expected open path with 3 points, got closed=%v n=%d", pp.IsClosed, len(pp.Points))
	}
}

func TestPenNeverCreatesDegeneratePath(t *testing.T) {
	m, model, rec := setup(t)
	m.SetMode(ModePen)
	click(t, m, at(10, 10))
	click(t, m, at(10, 10))
	key(t, m, "Enter", 0)
	if model.Len() != 0 || len(rec.msgs) != 0 {
		t.Fatalf("expected nothing created, got %d elements %d msgs", model.Len(), len(rec.msgs))
	}
}

func TestPenEscapeDiscards(t *testing.T) {
	m, model, rec := setup(t)
	m.SetMode(ModePen)
	click(t, m, at(0, 0))
	click(t, m, at(40, 0))
	key(t, m, "Escape", 0)
	key(t, m, "Enter", 0)
	if model.Len() != 0 || len(rec.msgs) != 0 {
		t.Fatalf("escape must discard the pending path")
	}
}

func TestPenDragShapesSymmetricHandles(t *testing.T) {
	m, _, _ := setup(t)
	m.SetMode(ModePen)
	drag(t, m, at(0, 0), at(10, 5))
	pts, _ := m.PenPoints()
	if len(pts) != 1 || pts[0].HandleOut == nil || pts[0].HandleIn == nil {
		t.Fatalf("expected handles on the anchor, got %+v", pts)
	}
	if *pts[0].HandleOut != (vector.Pt{X: 10, Y: 5}) || *pts[0].HandleIn != (vector.Pt{X: -10, Y: -5}) {
		t.Fatalf("handles not mirrored: in=%+v out=%+v", *pts[0].HandleIn, *pts[0].HandleOut)
	}
	if pts[0].HandleType != vector.HandleSymmetrical {
		t.Fatalf("expected symmetrical, got %s", pts[0].HandleType)
	}
}

func TestPenPathSurvivesPathDataRoundTrip(t *testing.T) {
	m, model, _ := setup(t)
	m.SetMode(ModePen)
	drag(t, m, at(0, 0), at(10, 0))
	click(t, m, at(50, 0))
	drag(t, m, at(50, 50), at(50, 60))
	key(t, m, "Enter", 0)

	_, pp := onlyPath(t, model)
	first, last := pp.Points[0], pp.Points[len(pp.Points)-1]
	if first.HandleIn != nil || last.HandleOut != nil {
		t.Fatalf("open ends kept unused handles: first in=%v last out=%v", first.HandleIn, last.HandleOut)
	}
	got, closed, err := vector.ParsePathData(vector.FormatPathData(pp.Points, pp.IsClosed))
	if err != nil || closed {
		t.Fatalf("parse: closed=%v err=%v", closed, err)
	}
	if len(got) != len(pp.Points) {
		t.Fatalf("expected %d points, got %d", len(pp.Points), len(got))
	}
	same := func(a, b *vector.Pt) bool {
		if a == nil || b == nil {
			return a == nil && b == nil
		}
		return a.Near(*b, 1e-9)
	}
	for i, want := range pp.Points {
		g := got[i]
		if !g.Anchor().Near(want.Anchor(), 1e-9) || !same(g.HandleIn, want.HandleIn) || !same(g.HandleOut, want.HandleOut) {
			t.Fatalf("point %d: got %+v, want %+v", i, g, want)
		}
		if g.HandleType != want.HandleType {
			t.Fatalf("point %d: handle type %s, want %s", i, g.HandleType, want.HandleType)
		}
	}
}

func TestMarqueeSelectsUnopenedFrame(t *testing.T) {
	m, model, _ := setup(t)
	add(t, model, "f", scene.KindFrame, "", vector.R(100, 100, 200, 200))
	// The child hangs outside its frame, so the marquee touches only it.
	add(t, model, "c", scene.KindShape, "f", vector.R(-50, -50, 20, 20))

	drag(t, m, at(0, 0), at(60, 60))
	sel := model.Selection()
	if len(sel.IDs) != 1 || sel.IDs[0] != "f" {
		t.Fatalf("expected frame selected, got %v", sel.IDs)
	}
	if m.Mode() != ModeSelect {
		t.Fatalf("expected select mode, got %s", m.Mode())
	}
	if _, ok := m.Marquee(); ok {
		t.Fatalf("marquee rect should be cleared")
	}
}

func TestMarqueeInsideOpenScopeSelectsChild(t *testing.T) {
	m, model, _ := setup(t)
	add(t, model, "g", scene.KindGroup, "", vector.R(100, 100, 100, 100))
	add(t, model, "c", scene.KindShape, "g", vector.R(10, 10, 20, 20))
	model.SetGroupScope("g")

	drag(t, m, at(105, 105), at(140, 140))
	if sel := model.Selection(); len(sel.IDs) != 1 || sel.IDs[0] != "c" {
		t.Fatalf("expected child selected, got %v", sel.IDs)
	}
}

func TestShiftMarqueeAddsToSelection(t *testing.T) {
	m, model, _ := setup(t)
	add(t, model, "a", scene.KindShape, "", vector.R(0, 0, 10, 10))
	add(t, model, "b", scene.KindShape, "", vector.R(100, 0, 10, 10))
	model.Select("a")
	from := at(90, -10)
	from.Mods = ModShift
	drag(t, m, from, at(120, 20))
	if sel := model.Selection(); len(sel.IDs) != 2 || sel.IDs[0] != "a" || sel.IDs[1] != "b" {
		t.Fatalf("expected [a b], got %v", sel.IDs)
	}
}

func TestDragWithoutSnapFollowsPointer(t *testing.T) {
	m, model, rec := setup(t)
	add(t, model, "a", scene.KindShape, "", vector.R(0, 0, 10, 10))
	add(t, model, "b", scene.KindShape, "", vector.R(500, 500, 10, 10))

	drag(t, m, at(5, 5), at(35.5, 17.25))
	el, _ := model.Get("a")
	if el.X != 30.5 || el.Y != 12.25 {
		t.Fatalf("expected raw delta, got (%v,%v)", el.X, el.Y)
	}
	if rec.committedUpdates() != 1 {
		t.Fatalf("expected one committed update, got %d", rec.committedUpdates())
	}
	if len(model.Guides()) != 0 {
		t.Fatalf("guides must be cleared at gesture end")
	}
	if name, phase := m.Gesture(); name != "move" || phase != PhaseCommitted {
		t.Fatalf("unexpected gesture state %s %s", name, phase)
	}
}

func TestDragSnapsToNeighbourEdge(t *testing.T) {
	m, model, _ := setup(t)
	add(t, model, "a", scene.KindShape, "", vector.R(0, 0, 10, 10))
	add(t, model, "b", scene.KindShape, "", vector.R(100, 200, 10, 10))

	if err := m.PointerDown(at(5, 5)); err != nil {
		t.Fatal(err)
	}
	// Right edge lands at 97, three units short of b's left edge.
	if err := m.PointerMove(at(92, 45)); err != nil {
		t.Fatal(err)
	}
	if len(model.Guides()) == 0 {
		t.Fatalf("expected a guide while snapped")
	}
	if err := m.PointerUp(at(92, 45)); err != nil {
		t.Fatal(err)
	}
	el, _ := model.Get("a")
	if el.X != 90 || el.Y != 40 {
		t.Fatalf("expected x snapped to 90 and y raw 40, got (%v,%v)", el.X, el.Y)
	}
	if len(model.Guides()) != 0 {
		t.Fatalf("guides must be cleared")
	}
}

func TestEscapeCancelsDragWithoutTraffic(t *testing.T) {
	m, model, rec := setup(t)
	add(t, model, "a", scene.KindShape, "", vector.R(0, 0, 10, 10))
	if err := m.PointerDown(at(5, 5)); err != nil {
		t.Fatal(err)
	}
	if err := m.PointerMove(at(55, 5)); err != nil {
		t.Fatal(err)
	}
	sent := len(rec.msgs)
	key(t, m, "Escape", 0)

	el, _ := model.Get("a")
	if el.X != 0 || el.Y != 0 {
		t.Fatalf("expected original position, got (%v,%v)", el.X, el.Y)
	}
	if len(rec.msgs) != sent {
		t.Fatalf("cancel must not send, got %d new messages", len(rec.msgs)-sent)
	}
	if _, phase := m.Gesture(); phase != PhaseCancelled {
		t.Fatalf("expected cancelled, got %s", phase)
	}
	if err := m.PointerUp(at(55, 5)); err != nil || rec.committedUpdates() != 0 {
		t.Fatalf("release after cancel must be ignored")
	}
}

func TestCaptureLostCancels(t *testing.T) {
	m, model, rec := setup(t)
	add(t, model, "a", scene.KindShape, "", vector.R(0, 0, 10, 10))
	_ = m.PointerDown(at(5, 5))
	_ = m.PointerMove(at(25, 25))
	m.CaptureLost()
	if el, _ := model.Get("a"); el.X != 0 {
		t.Fatalf("expected restore, got x=%v", el.X)
	}
	if rec.committedUpdates() != 0 {
		t.Fatalf("no commit expected")
	}
}

func TestResizeLeftHandleKeepsRightEdge(t *testing.T) {
	m, model, rec := setup(t)
	add(t, model, "a", scene.KindShape, "", vector.R(100, 0, 50, 50))
	add(t, model, "b", scene.KindShape, "", vector.R(70, 200, 10, 10))
	model.Select("a")

	drag(t, m, at(100, 25), at(83, 25))
	el, _ := model.Get("a")
	if el.X != 80 {
		t.Fatalf("expected left edge snapped to 80, got %v", el.X)
	}
	if right := el.X + el.Width; math.Abs(right-150) > 1e-9 {
		t.Fatalf("right edge moved to %v", right)
	}
	if rec.committedUpdates() != 1 {
		t.Fatalf("expected one committed update, got %d", rec.committedUpdates())
	}
}

func TestResizeScalesPathPoints(t *testing.T) {
	m, model, _ := setup(t)
	el := add(t, model, "p", scene.KindPath, "", vector.R(0, 0, 50, 50))
	el.Props.(*scene.PathProps).Points = []vector.PathPoint{{X: 0, Y: 0}, {X: 50, Y: 50}}
	model.Upsert(el)
	model.Select("p")

	drag(t, m, at(50, 50), at(100, 75))
	got, _ := model.Get("p")
	pts := got.Props.(*scene.PathProps).Points
	if got.Width != 100 || got.Height != 75 || pts[1].X != 100 || pts[1].Y != 75 {
		t.Fatalf("expected scaled path, got box %+v last %+v", got.Box(), pts[1])
	}
}

func TestDrawBelowMinimumIsDiscarded(t *testing.T) {
	m, model, rec := setup(t)
	m.SetDrawTool(scene.KindShape, scene.ShapeRect)
	drag(t, m, at(10, 10), at(11, 11))
	if model.Len() != 0 || len(rec.msgs) != 0 {
		t.Fatalf("expected no element and no traffic")
	}
	if m.Mode() != ModeSelect {
		t.Fatalf("expected select mode, got %s", m.Mode())
	}
}

func TestDrawCreatesElement(t *testing.T) {
	m, model, rec := setup(t)
	m.SetDrawTool(scene.KindShape, scene.ShapeEllipse)
	drag(t, m, at(60, 40), at(10, 10))
	els := model.Elements()
	if len(els) != 1 {
		t.Fatalf("expected one element, got %d", len(els))
	}
	if els[0].Box() != vector.R(10, 10, 50, 30) {
		t.Fatalf("unexpected box %+v", els[0].Box())
	}
	if sp := els[0].Props.(*scene.ShapeProps); sp.ShapeType != scene.ShapeEllipse {
		t.Fatalf("expected ellipse, got %s", sp.ShapeType)
	}
	if sel := model.Selection(); sel.Primary() != els[0].ID {
		t.Fatalf("new element should be selected")
	}
	if rec.count(wire.TypeCreateElement) != 1 || m.Mode() != ModeSelect {
		t.Fatalf("expected one create and select mode")
	}
}

func TestShiftDrawIsSquare(t *testing.T) {
	m, model, _ := setup(t)
	m.SetDrawTool(scene.KindShape, scene.ShapeRect)
	to := at(40, 20)
	to.Mods = ModShift
	drag(t, m, at(0, 0), to)
	if b := model.Elements()[0].Box(); b.W != 40 || b.H != 40 {
		t.Fatalf("expected 40x40, got %+v", b)
	}
}

func TestDrawTextEntersTextEdit(t *testing.T) {
	m, model, rec := setup(t)
	m.SetDrawTool(scene.KindText, "")
	drag(t, m, at(0, 0), at(100, 30))
	if m.Mode() != ModeTextEdit || model.Selection().EditingID == "" {
		t.Fatalf("expected text-edit, got %s", m.Mode())
	}
	if err := m.CommitText("hello"); err != nil {
		t.Fatal(err)
	}
	if rec.committedUpdates() != 1 {
		t.Fatalf("expected committed text update")
	}
	el, _ := model.Get(m.TextID())
	if el.Props.(*scene.TextProps).Content != "hello" {
		t.Fatalf("content not applied")
	}
	key(t, m, "Escape", 0)
	if m.Mode() != ModeSelect || model.Selection().EditingID != "" {
		t.Fatalf("escape must leave text-edit")
	}
}

func TestDoubleClickDrillsIntoGroup(t *testing.T) {
	m, model, _ := setup(t)
	add(t, model, "g", scene.KindGroup, "", vector.R(100, 100, 30, 10))
	add(t, model, "c1", scene.KindShape, "g", vector.R(0, 0, 10, 10))
	add(t, model, "c2", scene.KindShape, "g", vector.R(20, 0, 10, 10))

	click(t, m, at(105, 105))
	if model.Selection().Primary() != "g" {
		t.Fatalf("single click should select the group, got %v", model.Selection().IDs)
	}
	dbl := at(105, 105)
	dbl.Clicks = 2
	click(t, m, dbl)
	sel := model.Selection()
	if sel.GroupScope != "g" || sel.Primary() != "c1" {
		t.Fatalf("expected drill-down into g selecting c1, got scope=%q ids=%v", sel.GroupScope, sel.IDs)
	}
	if m.Mode() != ModeSelect {
		t.Fatalf("drill-down stays in select, got %s", m.Mode())
	}
	key(t, m, "Escape", 0)
	if sel := model.Selection(); sel.GroupScope != "" || sel.Primary() != "g" {
		t.Fatalf("escape should pop the scope, got %+v", sel)
	}
}

func TestPathEditCommitsOnRelease(t *testing.T) {
	m, model, rec := setup(t)
	el := add(t, model, "p", scene.KindPath, "", vector.R(0, 0, 50, 50))
	el.Props.(*scene.PathProps).Points = []vector.PathPoint{{X: 0, Y: 0}, {X: 50, Y: 0}, {X: 50, Y: 50}}
	model.Upsert(el)

	click(t, m, at(25, 25))
	dbl := at(25, 25)
	dbl.Clicks = 2
	click(t, m, dbl)
	if m.Mode() != ModePathEdit || model.Selection().EditingID != "p" {
		t.Fatalf("expected path-edit, got %s", m.Mode())
	}

	if err := m.PointerDown(at(50, 0)); err != nil {
		t.Fatal(err)
	}
	if err := m.PointerMove(at(60, 0)); err != nil {
		t.Fatal(err)
	}
	if rec.committedUpdates() != 0 {
		t.Fatalf("nothing may be sent mid-drag")
	}
	if err := m.PointerUp(at(60, 0)); err != nil {
		t.Fatal(err)
	}
	got, _ := model.Get("p")
	if got.Width != 60 || rec.committedUpdates() != 1 {
		t.Fatalf("expected one commit widening the path, got w=%v commits=%d", got.Width, rec.committedUpdates())
	}
	if m.Editor() == nil || m.Editor().Points()[1].X != 60 {
		t.Fatalf("editor should follow the committed points")
	}

	// Selecting something else leaves path-edit.
	add(t, model, "s", scene.KindShape, "", vector.R(300, 300, 10, 10))
	click(t, m, at(305, 305))
	if m.Mode() != ModeSelect || model.Selection().EditingID != "" {
		t.Fatalf("expected select after clicking away, got %s", m.Mode())
	}
	if model.Selection().Primary() != "s" {
		t.Fatalf("click away should select s, got %v", model.Selection().IDs)
	}
}

func TestResetDropsGesture(t *testing.T) {
	m, model, rec := setup(t)
	add(t, model, "a", scene.KindShape, "", vector.R(0, 0, 40, 40))
	model.Select("a")
	_ = m.PointerDown(at(20, 20))
	_ = m.PointerMove(at(45, 20))

	model.Replace(scene.Snapshot{})
	if _, phase := m.Gesture(); phase != PhaseCancelled {
		t.Fatalf("expected cancelled gesture, got %s", phase)
	}
	if err := m.PointerUp(at(45, 20)); err != nil {
		t.Fatal(err)
	}
	if rec.committedUpdates() != 0 {
		t.Fatalf("no commit after reset")
	}
	sel := model.Selection()
	if len(sel.IDs) != 0 || sel.EditingID != "" || len(model.Guides()) != 0 {
		t.Fatalf("reset must clear selection, editing and guides: %+v", sel)
	}
}

func TestKeyboardCommands(t *testing.T) {
	m, model, rec := setup(t)
	add(t, model, "a", scene.KindShape, "", vector.R(0, 0, 10, 10))
	model.Select("a")

	key(t, m, "ArrowRight", 0)
	key(t, m, "ArrowDown", ModShift)
	if el, _ := model.Get("a"); el.X != 1 || el.Y != 10 {
		t.Fatalf("unexpected nudge result (%v,%v)", el.X, el.Y)
	}
	key(t, m, "z", ModCtrl)
	key(t, m, "z", ModCtrl|ModShift)
	key(t, m, "y", ModCtrl)
	if rec.count(wire.TypeUndo) != 1 || rec.count(wire.TypeRedo) != 2 {
		t.Fatalf("expected 1 undo and 2 redo, got %d %d", rec.count(wire.TypeUndo), rec.count(wire.TypeRedo))
	}
	key(t, m, "Delete", 0)
	if model.Len() != 0 || rec.count(wire.TypeDeleteElement) != 1 {
		t.Fatalf("expected delete")
	}
}

func TestCopyPasteCreatesOneBatch(t *testing.T) {
	m, model, rec := setup(t)
	add(t, model, "g", scene.KindGroup, "", vector.R(10, 10, 20, 20))
	add(t, model, "c", scene.KindShape, "g", vector.R(0, 0, 20, 20))
	model.Select("g")

	key(t, m, "c", ModCtrl)
	key(t, m, "v", ModCtrl)
	if rec.count(wire.TypeCreateElementsBatch) != 1 {
		t.Fatalf("expected one batch, got %d", rec.count(wire.TypeCreateElementsBatch))
	}
	if model.Len() != 4 {
		t.Fatalf("expected 4 elements after paste, got %d", model.Len())
	}
	sel := model.Selection()
	root, ok := model.Get(sel.Primary())
	if !ok || root.ID == "g" || root.X != 20 || root.Y != 20 {
		t.Fatalf("expected offset copy selected, got %+v", root)
	}
	if len(model.Children(root.ID)) != 1 {
		t.Fatalf("pasted group should own its copied child")
	}

	var payload struct {
		Elements []json.RawMessage `json:"elements"`
	}
	last := rec.msgs[len(rec.msgs)-1]
	if err := json.Unmarshal(last.Payload, &payload); err != nil || len(payload.Elements) != 2 {
		t.Fatalf("batch payload: %v %d", err, len(payload.Elements))
	}
}

func TestDuplicateLeavesClipboardAlone(t *testing.T) {
	m, model, _ := setup(t)
	add(t, model, "a", scene.KindShape, "", vector.R(0, 0, 10, 10))
	model.Select("a")
	key(t, m, "d", ModCtrl)
	if model.Len() != 2 {
		t.Fatalf("expected duplicate, got %d elements", model.Len())
	}
	model.ClearSelection()
	key(t, m, "v", ModCtrl)
	if model.Len() != 2 {
		t.Fatalf("paste with empty clipboard must do nothing")
	}
}

func TestToolKeysSwitchModes(t *testing.T) {
	m, _, _ := setup(t)
	key(t, m, "p", 0)
	if m.Mode() != ModePen {
		t.Fatalf("expected pen")
	}
	click(t, m, at(0, 0))
	key(t, m, "r", 0)
	if m.Mode() != ModeDraw {
		t.Fatalf("expected draw")
	}
	if pts, _ := m.PenPoints(); len(pts) != 0 {
		t.Fatalf("switching tools drops pen points")
	}
	key(t, m, "Escape", 0)
	if m.Mode() != ModeSelect {
		t.Fatalf("escape returns to select")
	}
}
