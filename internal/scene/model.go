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
	"fmt"
	"slices"
	"sort"

	"parsec/internal/vector"
)

var (
	ErrNotFound     = errors.New("scene: element not found")
	ErrNotContainer = errors.New("scene: parent must be a frame or group")
	ErrCycle        = errors.New("scene: element would become its own ancestor")
)

// ComponentDefinition is the blueprint behind component instances. The
// template is kept as raw JSON since instancing happens outside this engine.
type ComponentDefinition struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	TemplateElements []json.RawMessage `json:"template_elements,omitempty"`
	Schema           json.RawMessage   `json:"schema,omitempty"`
}

// Asset is uploaded-media metadata.
type Asset struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Snapshot is a full workspace state as pushed by the authority.
type Snapshot struct {
	Elements             []*Element            `json:"elements"`
	ComponentDefinitions []ComponentDefinition `json:"componentDefinitions"`
	Assets               []Asset               `json:"assets"`
}

// Patch is a partial update keyed by wire field names.
type Patch struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"-"`
}

// MarshalJSON flattens the fields next to the id, the shape update_element expects.
func (p Patch) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Fields)+1)
	for k, v := range p.Fields {
		m[k] = v
	}
	m["id"] = p.ID
	return json.Marshal(m)
}

func (p *Patch) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	id, _ := m["id"].(string)
	delete(m, "id")
	p.ID, p.Fields = id, m
	return nil
}

// BoxPatch sets position and size.
func BoxPatch(id string, r vector.Rect) Patch {
	return Patch{ID: id, Fields: map[string]any{"x": r.X, "y": r.Y, "width": r.W, "height": r.H}}
}

// MovePatch sets position only.
func MovePatch(id string, x, y float64) Patch {
	return Patch{ID: id, Fields: map[string]any{"x": x, "y": y}}
}

// PathPatch sets the element box together with its normalized points.
func PathPatch(id string, box vector.Rect, pts []vector.PathPoint, closed bool) Patch {
	p := BoxPatch(id, box)
	p.Fields["points"] = vector.ClonePoints(pts)
	p.Fields["isClosed"] = closed
	return p
}

// Change describes one notification. Reset means everything may have changed.
type Change struct {
	IDs       []string
	Removed   []string
	Selection bool
	Reset     bool
}

// Selection is the transient interaction cursor state.
type Selection struct {
	IDs        []string
	GroupScope string
	EditingID  string
}

func (s Selection) Primary() string {
	if len(s.IDs) == 0 {
		return ""
	}
	return s.IDs[0]
}

func (s Selection) Has(id string) bool { return slices.Contains(s.IDs, id) }

// Model is the local cache of the workspace plus selection and guides. It is
// owned by the session loop and not safe for concurrent use.
type Model struct {
	elements map[string]*Element
	defs     []ComponentDefinition
	assets   []Asset
	sel      Selection
	guides   []vector.Guide
	subs     []func(Change)
}

func NewModel() *Model {
	return &Model{elements: map[string]*Element{}}
}

// Subscribe registers fn for change notifications.
func (m *Model) Subscribe(fn func(Change)) { m.subs = append(m.subs, fn) }

func (m *Model) notify(c Change) {
	for _, fn := range m.subs {
		fn(c)
	}
}

func (m *Model) Get(id string) (*Element, bool) {
	e, ok := m.elements[id]
	return e, ok
}

func (m *Model) Len() int { return len(m.elements) }

// Elements returns all elements in paint order.
func (m *Model) Elements() []*Element { return m.Ordered() }

func (m *Model) ComponentDefinitions() []ComponentDefinition { return slices.Clone(m.defs) }
func (m *Model) Assets() []Asset                             { return slices.Clone(m.assets) }

// mergePatch overlays the patch fields on the element's wire form. The id
// and kind never change through a patch.
func mergePatch(e *Element, p Patch) (*Element, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	for k, v := range p.Fields {
		if k == "id" || k == "element_type" {
			continue
		}
		m[k] = v
	}
	raw, err = json.Marshal(m)
	if err != nil {
		return nil, err
	}
	out := &Element{}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Model) apply(p Patch) (bool, error) {
	cur, ok := m.elements[p.ID]
	if !ok {
		return false, nil
	}
	next, err := mergePatch(cur, p)
	if err != nil {
		return false, fmt.Errorf("scene: patch %s: %w", p.ID, err)
	}
	m.elements[p.ID] = next
	return true, nil
}

// ApplyPatch merges p into its element. Unknown ids are ignored.
func (m *Model) ApplyPatch(p Patch) error {
	ok, err := m.apply(p)
	if ok {
		m.notify(Change{IDs: []string{p.ID}})
	}
	return err
}

// ApplyBatch merges all patches and notifies once. A failing patch leaves
// its element untouched; the first error is returned.
func (m *Model) ApplyBatch(ps []Patch) error {
	var (
		ids   []string
		first error
	)
	for _, p := range ps {
		ok, err := m.apply(p)
		if err != nil && first == nil {
			first = err
		}
		if ok {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) > 0 {
		m.notify(Change{IDs: ids})
	}
	return first
}

// Upsert stores e as-is, replacing any existing element with the same id.
func (m *Model) Upsert(e *Element) {
	m.elements[e.ID] = e
	m.notify(Change{IDs: []string{e.ID}})
}

// UpsertBatch stores all elements with a single notification.
func (m *Model) UpsertBatch(es []*Element) {
	if len(es) == 0 {
		return
	}
	ids := make([]string, 0, len(es))
	for _, e := range es {
		m.elements[e.ID] = e
		ids = append(ids, e.ID)
	}
	m.notify(Change{IDs: ids})
}

func (m *Model) forget(id string) {
	delete(m.elements, id)
	m.sel.IDs = slices.DeleteFunc(m.sel.IDs, func(s string) bool { return s == id })
	if m.sel.EditingID == id {
		m.sel.EditingID = ""
	}
	if m.sel.GroupScope == id {
		m.sel.GroupScope = ""
	}
}

// Remove deletes the element and clears it from the selection state.
func (m *Model) Remove(id string) {
	if _, ok := m.elements[id]; !ok {
		return
	}
	m.forget(id)
	m.notify(Change{Removed: []string{id}, Selection: true})
}

// RemoveTree deletes id and all its descendants and returns the removed ids.
func (m *Model) RemoveTree(id string) []string {
	if _, ok := m.elements[id]; !ok {
		return nil
	}
	ids := append([]string{id}, m.Descendants(id)...)
	for _, d := range ids {
		m.forget(d)
	}
	m.notify(Change{Removed: ids, Selection: true})
	return ids
}

// Replace swaps in a full snapshot and clears selection, editing and guides.
func (m *Model) Replace(s Snapshot) {
	m.elements = make(map[string]*Element, len(s.Elements))
	for _, e := range s.Elements {
		if e != nil {
			m.elements[e.ID] = e
		}
	}
	m.defs = slices.Clone(s.ComponentDefinitions)
	m.assets = slices.Clone(s.Assets)
	m.sel = Selection{}
	m.guides = nil
	m.notify(Change{Reset: true, Selection: true})
}

// Snapshot returns the current state in paint order.
func (m *Model) Snapshot() Snapshot {
	return Snapshot{Elements: m.Ordered(), ComponentDefinitions: m.ComponentDefinitions(), Assets: m.Assets()}
}

func (m *Model) AddComponentDefinition(d ComponentDefinition) {
	m.defs = slices.DeleteFunc(m.defs, func(x ComponentDefinition) bool { return x.ID == d.ID })
	m.defs = append(m.defs, d)
	m.notify(Change{})
}

func (m *Model) AddAsset(a Asset) {
	m.assets = slices.DeleteFunc(m.assets, func(x Asset) bool { return x.ID == a.ID })
	m.assets = append(m.assets, a)
	m.notify(Change{})
}

func (m *Model) RemoveAsset(id string) {
	n := len(m.assets)
	m.assets = slices.DeleteFunc(m.assets, func(x Asset) bool { return x.ID == id })
	if len(m.assets) != n {
		m.notify(Change{})
	}
}

// Selection returns a copy of the selection state.
func (m *Model) Selection() Selection {
	s := m.sel
	s.IDs = slices.Clone(m.sel.IDs)
	return s
}

// Select replaces the selection with the ids that exist. Changing the
// selection leaves modal edit unless the edited element stays selected alone.
func (m *Model) Select(ids ...string) {
	next := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := m.elements[id]; ok && !slices.Contains(next, id) {
			next = append(next, id)
		}
	}
	if m.sel.EditingID != "" && !(len(next) == 1 && next[0] == m.sel.EditingID) {
		m.sel.EditingID = ""
	}
	m.sel.IDs = next
	m.notify(Change{Selection: true})
}

// ToggleSelected adds or removes id, keeping insertion order.
func (m *Model) ToggleSelected(id string) {
	if m.sel.Has(id) {
		m.Select(slices.DeleteFunc(slices.Clone(m.sel.IDs), func(s string) bool { return s == id })...)
		return
	}
	m.Select(append(slices.Clone(m.sel.IDs), id)...)
}

func (m *Model) ClearSelection() { m.Select() }

// SetGroupScope makes scope's children directly selectable. Empty pops to top level.
func (m *Model) SetGroupScope(scope string) {
	if scope != "" {
		if _, ok := m.elements[scope]; !ok {
			return
		}
	}
	m.sel.GroupScope = scope
	m.notify(Change{Selection: true})
}

// SetEditing enters or (with "") leaves modal edit for id.
func (m *Model) SetEditing(id string) {
	if id != "" {
		if _, ok := m.elements[id]; !ok {
			return
		}
	}
	m.sel.EditingID = id
	m.notify(Change{Selection: true})
}

func (m *Model) Guides() []vector.Guide { return m.guides }

// SetGuides replaces the in-flight alignment guides.
func (m *Model) SetGuides(g []vector.Guide) {
	if len(g) == 0 && len(m.guides) == 0 {
		return
	}
	m.guides = g
	m.notify(Change{})
}

// Children returns direct children sorted by z-order.
func (m *Model) Children(parent string) []*Element {
	var out []*Element
	for _, e := range m.elements {
		if e.ParentID == parent {
			out = append(out, e)
		}
	}
	sortByZ(out)
	return out
}

func sortByZ(es []*Element) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].ZIndex != es[j].ZIndex {
			return es[i].ZIndex < es[j].ZIndex
		}
		return es[i].ID < es[j].ID
	})
}

// Descendants returns every element below id, depth first.
func (m *Model) Descendants(id string) []string {
	var out []string
	for _, c := range m.Children(id) {
		out = append(out, c.ID)
		out = append(out, m.Descendants(c.ID)...)
	}
	return out
}

// Ancestors returns the parent chain of id, nearest first. A chain that
// loops or leaves the model stops there.
func (m *Model) Ancestors(id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	e, ok := m.elements[id]
	for ok && e.ParentID != "" && !seen[e.ParentID] {
		parent, found := m.elements[e.ParentID]
		if !found {
			break
		}
		out = append(out, e.ParentID)
		seen[e.ParentID] = true
		e = parent
	}
	return out
}

// IsAncestor reports whether anc is on id's parent chain.
func (m *Model) IsAncestor(anc, id string) bool {
	return slices.Contains(m.Ancestors(id), anc)
}

// CanReparent validates moving child under parent ("" for top level).
func (m *Model) CanReparent(child, parent string) error {
	if _, ok := m.elements[child]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, child)
	}
	if parent == "" {
		return nil
	}
	p, ok := m.elements[parent]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, parent)
	}
	if !p.Kind().IsContainer() {
		return fmt.Errorf("%w: %s is %s", ErrNotContainer, parent, p.Kind())
	}
	if parent == child || m.IsAncestor(child, parent) {
		return fmt.Errorf("%w: %s under %s", ErrCycle, child, parent)
	}
	return nil
}

// Ordered returns elements in paint order: roots by z, each followed by its subtree.
func (m *Model) Ordered() []*Element {
	out := make([]*Element, 0, len(m.elements))
	seen := make(map[string]bool, len(m.elements))
	var walk func(parent string)
	walk = func(parent string) {
		for _, c := range m.Children(parent) {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
			walk(c.ID)
		}
	}
	walk("")
	// Orphans whose parent is missing paint last, as roots.
	var orphans []*Element
	for _, e := range m.elements {
		if !seen[e.ID] {
			if _, ok := m.elements[e.ParentID]; !ok {
				orphans = append(orphans, e)
			}
		}
	}
	sortByZ(orphans)
	for _, o := range orphans {
		if seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		out = append(out, o)
		walk(o.ID)
	}
	return out
}

// Origin returns the absolute position of id's parent-relative origin frame.
func (m *Model) Origin(id string) vector.Pt {
	var p vector.Pt
	for _, a := range m.Ancestors(id) {
		if e, ok := m.elements[a]; ok {
			p = p.Add(vector.Pt{X: e.X, Y: e.Y})
		}
	}
	return p
}

// AbsoluteBounds returns the pre-rotation box of id in scene coordinates.
func (m *Model) AbsoluteBounds(id string) (vector.Rect, bool) {
	e, ok := m.elements[id]
	if !ok {
		return vector.Rect{}, false
	}
	o := m.Origin(id)
	return e.Box().Translate(o.X, o.Y), true
}

// VisualBounds is AbsoluteBounds widened by the element's rotation.
func (m *Model) VisualBounds(id string) (vector.Rect, bool) {
	e, ok := m.elements[id]
	if !ok {
		return vector.Rect{}, false
	}
	abs, _ := m.AbsoluteBounds(id)
	return e.Outline(abs).Bounds(), true
}

// SelectableAncestor resolves id to the element a click selects inside
// scope: the ancestor whose parent is scope, or the top-level ancestor.
func (m *Model) SelectableAncestor(id, scope string) string {
	cur := id
	for _, a := range m.Ancestors(id) {
		if a == scope {
			return cur
		}
		cur = a
	}
	return cur
}

// HitTest returns the topmost visible element under p, resolved against the
// current group scope. Hidden elements and their subtrees are skipped.
func (m *Model) HitTest(p vector.Pt) (string, bool) {
	ordered := m.Ordered()
	for i := len(ordered) - 1; i >= 0; i-- {
		e := ordered[i]
		if !m.Shown(e.ID) {
			continue
		}
		// Groups are hit through their children.
		if e.Kind() == KindGroup {
			continue
		}
		abs, _ := m.AbsoluteBounds(e.ID)
		if e.Outline(abs).Hit(p) {
			return m.SelectableAncestor(e.ID, m.sel.GroupScope), true
		}
	}
	return "", false
}

// Shown reports whether id and all its ancestors are visible.
func (m *Model) Shown(id string) bool {
	e, ok := m.elements[id]
	if !ok || !e.Visible {
		return false
	}
	for _, a := range m.Ancestors(id) {
		if pe, ok := m.elements[a]; ok && !pe.Visible {
			return false
		}
	}
	return true
}

// Intersecting returns the selectable ids whose visual bounds touch r.
func (m *Model) Intersecting(r vector.Rect) []string {
	var out []string
	for _, e := range m.Ordered() {
		if !m.Shown(e.ID) || e.Kind() == KindGroup {
			continue
		}
		b, _ := m.VisualBounds(e.ID)
		if !b.Intersects(r) {
			continue
		}
		id := m.SelectableAncestor(e.ID, m.sel.GroupScope)
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// SnapTargets returns the visual bounds of the visible siblings a gesture
// on ids can align to, excluding the moving elements and their subtrees.
func (m *Model) SnapTargets(ids []string) []vector.Rect {
	skip := map[string]bool{}
	for _, id := range ids {
		skip[id] = true
		for _, d := range m.Descendants(id) {
			skip[d] = true
		}
	}
	var out []vector.Rect
	for _, e := range m.Ordered() {
		if skip[e.ID] || !m.Shown(e.ID) {
			continue
		}
		if e.ParentID != m.sel.GroupScope && !(m.sel.GroupScope != "" && e.ID == m.sel.GroupScope) {
			continue
		}
		b, _ := m.VisualBounds(e.ID)
		out = append(out, b)
	}
	return out
}

// SelectionBounds is the union of the selected elements' visual bounds.
func (m *Model) SelectionBounds() (vector.Rect, bool) {
	var rs []vector.Rect
	for _, id := range m.sel.IDs {
		if b, ok := m.VisualBounds(id); ok {
			rs = append(rs, b)
		}
	}
	return vector.UnionAll(rs)
}
