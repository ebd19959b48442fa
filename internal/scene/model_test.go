/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"parsec/internal/vector"
)

func mk(t *testing.T, id string, k Kind, parent string, r vector.Rect) *Element {
	t.Helper()
	e, err := New(k, r)
	if err != nil {
		t.Fatalf("new %s: %v", k, err)
	}
	e.ID = id
	e.ParentID = parent
	return e
}

func TestApplyPatchPreservesUntouchedFields(t *testing.T) {
	m := NewModel()
	e := mk(t, "shape_1", KindShape, "", vector.R(10, 20, 30, 40))
	e.Name = "box"
	e.Props.(*ShapeProps).CornerRadius = 4
	m.Upsert(e)

	if err := m.ApplyPatch(MovePatch("shape_1", 99, 98)); err != nil {
		t.Fatalf("patch: %v", err)
	}
	got, _ := m.Get("shape_1")
	if got.X != 99 || got.Y != 98 || got.Width != 30 || got.Height != 40 {
		t.Fatalf("unexpected geometry %+v", got)
	}
	if got.Name != "box" || got.Props.(*ShapeProps).CornerRadius != 4 {
		t.Fatalf("untouched fields lost: %+v %+v", got, got.Props)
	}
}

func TestApplyPatchUnknownIDIsNoop(t *testing.T) {
	m := NewModel()
	calls := 0
	m.Subscribe(func(Change) { calls++ })
	if err := m.ApplyPatch(MovePatch("missing", 1, 1)); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if calls != 0 || m.Len() != 0 {
		t.Fatalf("expected no-op, calls=%d len=%d", calls, m.Len())
	}
}

func TestApplyBatchNotifiesOnce(t *testing.T) {
	m := NewModel()
	m.UpsertBatch([]*Element{
		mk(t, "a", KindShape, "", vector.R(0, 0, 1, 1)),
		mk(t, "b", KindShape, "", vector.R(0, 0, 1, 1)),
	})
	var changes []Change
	m.Subscribe(func(c Change) { changes = append(changes, c) })
	_ = m.ApplyBatch([]Patch{MovePatch("a", 5, 5), MovePatch("b", 6, 6), MovePatch("zz", 1, 1)})
	if len(changes) != 1 || len(changes[0].IDs) != 2 {
		t.Fatalf("expected a single change for two ids, got %+v", changes)
	}
}

func TestRemoveClearsSelectionAndEditing(t *testing.T) {
	m := NewModel()
	m.Upsert(mk(t, "t", KindText, "", vector.R(0, 0, 10, 10)))
	m.Select("t")
	m.SetEditing("t")
	m.Remove("t")
	s := m.Selection()
	if len(s.IDs) != 0 || s.EditingID != "" {
		t.Fatalf("selection not cleared: %+v", s)
	}
}

func TestReplaceClearsTransientState(t *testing.T) {
	m := NewModel()
	m.Upsert(mk(t, "g", KindGroup, "", vector.R(0, 0, 10, 10)))
	m.Upsert(mk(t, "p", KindPath, "g", vector.R(0, 0, 10, 10)))
	m.SetGroupScope("g")
	m.Select("p")
	m.SetEditing("p")
	m.SetGuides([]vector.Guide{{Orientation: vector.Vertical, Position: 3}})

	var reset bool
	m.Subscribe(func(c Change) { reset = reset || c.Reset })
	m.Replace(Snapshot{Elements: []*Element{mk(t, "n", KindShape, "", vector.R(0, 0, 1, 1))}})

	s := m.Selection()
	if len(s.IDs) != 0 || s.EditingID != "" || s.GroupScope != "" {
		t.Fatalf("transient state survived reset: %+v", s)
	}
	if len(m.Guides()) != 0 {
		t.Fatalf("guides survived reset")
	}
	if _, ok := m.Get("p"); ok || m.Len() != 1 || !reset {
		t.Fatalf("snapshot not applied atomically")
	}
}

func TestCanReparentRejectsCycles(t *testing.T) {
	m := NewModel()
	m.Upsert(mk(t, "f", KindFrame, "", vector.R(0, 0, 100, 100)))
	m.Upsert(mk(t, "g", KindGroup, "f", vector.R(0, 0, 50, 50)))
	m.Upsert(mk(t, "s", KindShape, "g", vector.R(0, 0, 5, 5)))

	if err := m.CanReparent("f", "g"); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	if err := m.CanReparent("g", "g"); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected self-parent to be a cycle, got %v", err)
	}
	if err := m.CanReparent("g", "s"); !errors.Is(err, ErrNotContainer) {
		t.Fatalf("expected container error, got %v", err)
	}
	if err := m.CanReparent("s", "f"); err != nil {
		t.Fatalf("legal reparent rejected: %v", err)
	}
	if err := m.CanReparent("s", ""); err != nil {
		t.Fatalf("moving to top level rejected: %v", err)
	}
}

func TestSelectableAncestorAndAbsoluteBounds(t *testing.T) {
	m := NewModel()
	m.Upsert(mk(t, "f", KindFrame, "", vector.R(100, 100, 200, 200)))
	m.Upsert(mk(t, "g", KindGroup, "f", vector.R(10, 10, 50, 50)))
	m.Upsert(mk(t, "s", KindShape, "g", vector.R(5, 5, 10, 10)))

	if got := m.SelectableAncestor("s", ""); got != "f" {
		t.Fatalf("top level should resolve to frame, got %s", got)
	}
	if got := m.SelectableAncestor("s", "f"); got != "g" {
		t.Fatalf("inside frame should resolve to group, got %s", got)
	}
	if got := m.SelectableAncestor("s", "g"); got != "s" {
		t.Fatalf("inside group should resolve to shape, got %s", got)
	}
	b, _ := m.AbsoluteBounds("s")
	if b != vector.R(115, 115, 10, 10) {
		t.Fatalf("unexpected absolute bounds %v", b)
	}
}

func TestHitTestAndIntersecting(t *testing.T) {
	m := NewModel()
	m.Upsert(mk(t, "f", KindFrame, "", vector.R(0, 0, 100, 100)))
	child := mk(t, "c", KindShape, "f", vector.R(10, 10, 20, 20))
	child.ZIndex = 1
	m.Upsert(child)

	if id, ok := m.HitTest(vector.Pt{X: 15, Y: 15}); !ok || id != "f" {
		t.Fatalf("expected frame hit, got %q", id)
	}
	m.SetGroupScope("f")
	if id, _ := m.HitTest(vector.Pt{X: 15, Y: 15}); id != "c" {
		t.Fatalf("expected child inside scope, got %q", id)
	}
	if ids := m.Intersecting(vector.R(12, 12, 2, 2)); len(ids) != 2 {
		t.Fatalf("expected frame and child inside scope, got %v", ids)
	}
}

func TestOrphanIsHitAsItself(t *testing.T) {
	m := NewModel()
	m.Upsert(mk(t, "shape_1", KindShape, "group_gone", vector.R(0, 0, 40, 40)))

	if a := m.Ancestors("shape_1"); len(a) != 0 {
		t.Fatalf("missing parent must end the chain, got %v", a)
	}
	id, ok := m.HitTest(vector.Pt{X: 10, Y: 10})
	if !ok || id != "shape_1" {
		t.Fatalf("expected orphan hit, got %q %v", id, ok)
	}
	if ids := m.Intersecting(vector.R(-5, -5, 10, 10)); len(ids) != 1 || ids[0] != "shape_1" {
		t.Fatalf("expected orphan in marquee, got %v", ids)
	}
	m.Select(id)
	if sel := m.Selection(); len(sel.IDs) != 1 || sel.IDs[0] != "shape_1" {
		t.Fatalf("orphan not selectable: %v", sel.IDs)
	}
}

func TestOrderedPaintsParentsBeforeChildren(t *testing.T) {
	m := NewModel()
	a := mk(t, "a", KindFrame, "", vector.R(0, 0, 1, 1))
	a.ZIndex = 2
	b := mk(t, "b", KindShape, "", vector.R(0, 0, 1, 1))
	b.ZIndex = 1
	m.UpsertBatch([]*Element{a, b, mk(t, "a1", KindText, "a", vector.R(0, 0, 1, 1))})
	var ids []string
	for _, e := range m.Ordered() {
		ids = append(ids, e.ID)
	}
	if strings.Join(ids, ",") != "b,a,a1" {
		t.Fatalf("unexpected order %v", ids)
	}
}

func TestElementJSONIsFlat(t *testing.T) {
	e := mk(t, "path_1", KindPath, "group_1", vector.R(1, 2, 3, 4))
	e.Props.(*PathProps).Points = []vector.PathPoint{{X: 0, Y: 0}, {X: 3, Y: 4, HandleIn: &vector.Pt{X: -1, Y: 0}}}
	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	for _, k := range []string{"id", "element_type", "parentId", "zIndex", "isVisible", "points", "isClosed", "strokeWidth"} {
		if _, ok := m[k]; !ok {
			t.Fatalf("missing key %q in %s", k, raw)
		}
	}
	var back Element
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Kind() != KindPath || back.ParentID != "group_1" || len(back.Props.(*PathProps).Points) != 2 {
		t.Fatalf("round trip lost data: %+v", back)
	}
}

func TestUnknownKindRejected(t *testing.T) {
	var e Element
	err := json.Unmarshal([]byte(`{"id":"x","element_type":"hologram","x":0,"y":0}`), &e)
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected unknown kind, got %v", err)
	}
}

func TestNewIDFormat(t *testing.T) {
	id := NewID("shape")
	if !strings.HasPrefix(id, "shape_") || len(id) != len("shape_")+8 {
		t.Fatalf("unexpected id %q", id)
	}
}
