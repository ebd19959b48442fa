/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tool

import (
	"slices"

	"parsec/internal/pathedit"
	"parsec/internal/scene"
	"parsec/internal/vector"
)

// Phase is the lifecycle of the current gesture slot.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseActive
	PhaseCommitted
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseCommitted:
		return "committed"
	case PhaseCancelled:
		return "cancelled"
	}
	return "idle"
}

// gesture is one press-drag-release interaction. end applies the result;
// cancel undoes any live feedback without sending anything.
type gesture interface {
	name() string
	move(ev PointerEvent) error
	end(ev PointerEvent) error
	cancel()
}

// moveGesture drags the selection roots, snapping their union box.
type moveGesture struct {
	m         *Machine
	start     vector.Pt
	originals []*scene.Element
	bounds    vector.Rect
	snaps     *vector.SnapSet
	delta     vector.Pt
	previewed bool
}

func (m *Machine) newMove(ids []string, at vector.Pt) *moveGesture {
	g := &moveGesture{m: m, start: at}
	var rs []vector.Rect
	for _, id := range ids {
		el, ok := m.model.Get(id)
		if !ok {
			continue
		}
		g.originals = append(g.originals, el.Clone())
		if b, ok := m.model.VisualBounds(id); ok {
			rs = append(rs, b)
		}
	}
	g.bounds, _ = vector.UnionAll(rs)
	g.snaps = vector.NewSnapSet(m.model.SnapTargets(ids))
	return g
}

func (g *moveGesture) name() string { return "move" }

func (g *moveGesture) patches() []scene.Patch {
	ps := make([]scene.Patch, 0, len(g.originals))
	for _, o := range g.originals {
		ps = append(ps, scene.MovePatch(o.ID, o.X+g.delta.X, o.Y+g.delta.Y))
	}
	return ps
}

func (g *moveGesture) move(ev PointerEvent) error {
	d := ev.Pos.Sub(g.start)
	var guides []vector.Guide
	if !ev.Mods.Has(ModCtrl) {
		var snapped vector.Rect
		snapped, guides = g.snaps.SnapMove(g.bounds.Translate(d.X, d.Y), g.m.snapOptions())
		d = snapped.Min().Sub(g.bounds.Min())
	}
	g.m.model.SetGuides(guides)
	if d == g.delta {
		return nil
	}
	g.delta = d
	g.previewed = true
	return g.m.eng.Preview(g.patches()...)
}

func (g *moveGesture) end(PointerEvent) error {
	g.m.model.SetGuides(nil)
	if !g.previewed {
		return nil
	}
	return g.m.eng.Commit(g.patches()...)
}

func (g *moveGesture) cancel() {
	g.m.model.SetGuides(nil)
	g.m.eng.Restore(g.originals)
}

// resizeGesture drags one of the eight handles of a single element.
type resizeGesture struct {
	m      *Machine
	handle vector.Handle
	start  vector.Pt
	orig   *scene.Element
	origin vector.Pt
	abs    vector.Rect
	box    vector.Rect
	snaps  *vector.SnapSet
}

func (m *Machine) newResize(el *scene.Element, h vector.Handle, at vector.Pt) *resizeGesture {
	abs, _ := m.model.AbsoluteBounds(el.ID)
	return &resizeGesture{
		m:      m,
		handle: h,
		start:  at,
		orig:   el.Clone(),
		origin: m.model.Origin(el.ID),
		abs:    abs,
		box:    abs,
		snaps:  vector.NewSnapSet(m.model.SnapTargets([]string{el.ID})),
	}
}

func (g *resizeGesture) name() string { return "resize" }

func (g *resizeGesture) patch(abs vector.Rect) scene.Patch {
	rel := abs.Translate(-g.origin.X, -g.origin.Y)
	if pp, ok := g.orig.Props.(*scene.PathProps); ok {
		sx, sy := 1.0, 1.0
		if g.orig.Width > 0 {
			sx = rel.W / g.orig.Width
		}
		if g.orig.Height > 0 {
			sy = rel.H / g.orig.Height
		}
		return scene.PathPatch(g.orig.ID, rel, scalePoints(pp.Points, sx, sy), pp.IsClosed)
	}
	return scene.BoxPatch(g.orig.ID, rel)
}

func (g *resizeGesture) move(ev PointerEvent) error {
	minSize := g.m.cfg.MinDrawSize
	d := ev.Pos.Sub(g.start)
	r := g.handle.Resize(g.abs, d.X, d.Y, minSize)
	var guides []vector.Guide
	if !ev.Mods.Has(ModCtrl) {
		// A snap that would shrink the box below the minimum is dropped.
		if s, gs := g.snaps.SnapResize(r, g.handle, g.m.snapOptions()); s.W >= minSize && s.H >= minSize {
			r, guides = s, gs
		}
	}
	g.m.model.SetGuides(guides)
	if r == g.box {
		return nil
	}
	g.box = r
	return g.m.eng.Preview(g.patch(r))
}

func (g *resizeGesture) end(PointerEvent) error {
	g.m.model.SetGuides(nil)
	if g.box == g.abs {
		return nil
	}
	return g.m.eng.Commit(g.patch(g.box))
}

func (g *resizeGesture) cancel() {
	g.m.model.SetGuides(nil)
	g.m.eng.Restore([]*scene.Element{g.orig})
}

func scalePoints(pts []vector.PathPoint, sx, sy float64) []vector.PathPoint {
	out := vector.ClonePoints(pts)
	for i := range out {
		p := &out[i]
		p.X *= sx
		p.Y *= sy
		if p.HandleIn != nil {
			p.HandleIn.X *= sx
			p.HandleIn.Y *= sy
		}
		if p.HandleOut != nil {
			p.HandleOut.X *= sx
			p.HandleOut.Y *= sy
		}
	}
	return out
}

// drawGesture rubber-bands a new element of the armed kind.
type drawGesture struct {
	m     *Machine
	start vector.Pt
	box   vector.Rect
	shift bool
}

func (g *drawGesture) name() string { return "draw" }

func (g *drawGesture) move(ev PointerEvent) error {
	r := vector.RectFromPoints(g.start, ev.Pos)
	g.shift = ev.Mods.Has(ModShift)
	if g.shift {
		r = square(g.start, r)
	}
	g.box = r
	g.m.preview = &r
	return nil
}

func (g *drawGesture) end(PointerEvent) error {
	m := g.m
	m.preview = nil
	kind, shape := m.drawKind, m.drawShape
	m.switchTo(ModeSelect)
	if g.box.W < m.cfg.MinDrawSize || g.box.H < m.cfg.MinDrawSize {
		return nil
	}
	el, err := scene.New(kind, g.box)
	if err != nil {
		return err
	}
	if sp, ok := el.Props.(*scene.ShapeProps); ok && shape != "" {
		sp.ShapeType = shape
		if g.shift && shape == scene.ShapeEllipse {
			sp.ShapeType = scene.ShapeCircle
		}
	}
	m.place(el)
	if err := m.eng.Create(el); err != nil {
		return err
	}
	if kind == scene.KindText {
		m.enterTextEdit(el.ID)
	}
	return nil
}

func (g *drawGesture) cancel() { g.m.preview = nil }

// place puts a new top-level element into the current group scope, on top
// of its siblings.
func (m *Machine) place(el *scene.Element) {
	parent, o := m.scopeOrigin()
	el.ParentID = parent
	el.X -= o.X
	el.Y -= o.Y
	z := 0
	for _, c := range m.model.Children(parent) {
		if c.ZIndex >= z {
			z = c.ZIndex + 1
		}
	}
	el.ZIndex = z
}

// marqueeGesture selects everything its rectangle touches.
type marqueeGesture struct {
	m        *Machine
	start    vector.Pt
	rect     vector.Rect
	additive bool
	base     []string
}

func (g *marqueeGesture) name() string { return "marquee" }

func (g *marqueeGesture) move(ev PointerEvent) error {
	g.rect = vector.RectFromPoints(g.start, ev.Pos)
	r := g.rect
	g.m.marquee = &r
	return nil
}

func (g *marqueeGesture) end(PointerEvent) error {
	m := g.m
	m.marquee = nil
	m.mode = ModeSelect
	var ids []string
	if tiny := m.scaled(2); g.rect.W >= tiny || g.rect.H >= tiny {
		ids = m.model.Intersecting(g.rect)
	}
	if g.additive {
		for _, id := range ids {
			if !slices.Contains(g.base, id) {
				g.base = append(g.base, id)
			}
		}
		ids = g.base
	}
	m.model.Select(ids...)
	return nil
}

func (g *marqueeGesture) cancel() {
	g.m.marquee = nil
	g.m.mode = ModeSelect
}

// pathGesture drags an anchor or handle in the path editor. Only the
// working copy changes until release.
type pathGesture struct {
	ed *pathedit.Editor
	m  *Machine
}

func (g *pathGesture) name() string { return "path-edit" }

func (g *pathGesture) move(ev PointerEvent) error {
	g.ed.Drag(ev.Pos)
	return nil
}

func (g *pathGesture) end(PointerEvent) error {
	if p, ok := g.ed.End(); ok {
		return g.m.eng.Commit(p)
	}
	return nil
}

func (g *pathGesture) cancel() { g.ed.Cancel() }

// penGesture shapes a symmetrical handle pair on the anchor just placed.
type penGesture struct {
	m *Machine
	i int
}

func (g *penGesture) name() string { return "pen" }

func (g *penGesture) move(ev PointerEvent) error {
	pts := g.m.pen.points
	if g.i >= len(pts) {
		return nil
	}
	pt := &pts[g.i]
	v := ev.Pos.Sub(pt.Anchor())
	if v.Len() < g.m.scaled(2) {
		pt.HandleIn, pt.HandleOut = nil, nil
		return nil
	}
	in := v.Neg()
	pt.HandleIn, pt.HandleOut = &in, &v
	pt.HandleType = vector.HandleSymmetrical
	return nil
}

func (g *penGesture) end(PointerEvent) error { return nil }

func (g *penGesture) cancel() {
	if g.i < len(g.m.pen.points) {
		pt := &g.m.pen.points[g.i]
		pt.HandleIn, pt.HandleOut = nil, nil
	}
}

// pen accumulates anchors in scene coordinates.
type pen struct {
	points []vector.PathPoint
	hover  vector.Pt
}

func (p *pen) reset() { p.points = nil }

// trimmed drops trailing anchors that repeat the one before them.
func (p *pen) trimmed() []vector.PathPoint {
	pts := vector.ClonePoints(p.points)
	for len(pts) >= 2 && pts[len(pts)-1].Anchor().Near(pts[len(pts)-2].Anchor(), 1e-9) {
		pts = pts[:len(pts)-1]
	}
	return pts
}

// finalizePen creates the accumulated path. Fewer than two distinct
// anchors create nothing.
func (m *Machine) finalizePen(closed bool) error {
	if m.cur != nil {
		m.cancelGesture()
	}
	pts := vector.TrimOpenEnds(m.pen.trimmed(), closed)
	m.pen.reset()
	m.mode = ModeSelect
	if len(pts) < 2 {
		return nil
	}
	box, local := vector.Normalize(pts)
	el, err := scene.New(scene.KindPath, box)
	if err != nil {
		return err
	}
	pp := el.Props.(*scene.PathProps)
	pp.Points = local
	pp.IsClosed = closed
	m.place(el)
	return m.eng.Create(el)
}

// handleAt returns the resize handle of the single selected element under p.
func (m *Machine) handleAt(p vector.Pt) (*scene.Element, vector.Handle) {
	sel := m.model.Selection()
	if len(sel.IDs) != 1 || m.mode != ModeSelect {
		return nil, vector.HandleNone
	}
	el, ok := m.model.Get(sel.IDs[0])
	if !ok || el.Kind() == scene.KindGroup {
		return nil, vector.HandleNone
	}
	abs, _ := m.model.AbsoluteBounds(el.ID)
	return el, vector.NearestHandle(abs, p, m.scaled(m.cfg.HandleRadiusPx))
}
