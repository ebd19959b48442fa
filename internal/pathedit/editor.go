/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package pathedit edits the anchors and bezier handles of one path
// element. Drags change a working copy only; a patch for the sync engine
// is produced when a gesture ends.
package pathedit

import (
	"errors"
	"math"

	"parsec/internal/scene"
	"parsec/internal/vector"
)

var ErrNotPath = errors.New("pathedit: element is not a path")

// Part names what a target grabs.
type Part uint8

const (
	PartAnchor Part = iota
	PartHandleIn
	PartHandleOut
)

// Target is a grabbable point: an anchor or one of its handles.
type Target struct {
	Index int
	Part  Part
}

type drag struct {
	target Target
	start  vector.Pt
	point  vector.PathPoint
}

// Editor holds the working copy for one path element.
type Editor struct {
	id       string
	box      vector.Rect // parent-relative element box
	origin   vector.Pt   // absolute position of the box origin
	rotation float64
	closed   bool
	base     []vector.PathPoint
	work     []vector.PathPoint
	drag     *drag
}

// Open starts editing el, whose box sits at abs in scene coordinates.
func Open(el *scene.Element, abs vector.Rect) (*Editor, error) {
	pp, ok := el.Props.(*scene.PathProps)
	if !ok {
		return nil, ErrNotPath
	}
	return &Editor{
		id:       el.ID,
		box:      el.Box(),
		origin:   abs.Min(),
		rotation: el.Rotation,
		closed:   pp.IsClosed,
		base:     vector.ClonePoints(pp.Points),
		work:     vector.ClonePoints(pp.Points),
	}, nil
}

func (e *Editor) ID() string { return e.id }

func (e *Editor) Closed() bool { return e.closed }

// Points returns the working copy in path-local coordinates.
func (e *Editor) Points() []vector.PathPoint { return e.work }

// Dragging reports whether a drag gesture is active.
func (e *Editor) Dragging() bool { return e.drag != nil }

// toLocal maps a scene point into path-local space, undoing the element rotation.
func (e *Editor) toLocal(p vector.Pt) vector.Pt {
	if e.rotation != 0 {
		c := vector.R(e.origin.X, e.origin.Y, e.box.W, e.box.H).Center()
		p = vector.RotateAbout(c, e.rotation).Invert().Apply(p)
	}
	return p.Sub(e.origin)
}

// ToScene maps a path-local point to scene coordinates.
func (e *Editor) ToScene(p vector.Pt) vector.Pt {
	q := p.Add(e.origin)
	if e.rotation != 0 {
		c := vector.R(e.origin.X, e.origin.Y, e.box.W, e.box.H).Center()
		q = vector.RotateAbout(c, e.rotation).Apply(q)
	}
	return q
}

// HitTest finds the target under p within radius (scene units). Handles
// are checked first since they are drawn on top of anchors.
func (e *Editor) HitTest(p vector.Pt, radius float64) (Target, bool) {
	q := e.toLocal(p)
	best, bestD := Target{}, math.Inf(1)
	found := false
	consider := func(t Target, at vector.Pt, bias float64) {
		if d := at.Dist(q); d <= radius && d-bias < bestD {
			best, bestD, found = t, d-bias, true
		}
	}
	for i, pt := range e.work {
		if pt.HandleIn != nil {
			consider(Target{i, PartHandleIn}, pt.InAbs(), radius)
		}
		if pt.HandleOut != nil {
			consider(Target{i, PartHandleOut}, pt.OutAbs(), radius)
		}
	}
	for i, pt := range e.work {
		consider(Target{i, PartAnchor}, pt.Anchor(), 0)
	}
	return best, found
}

// Begin starts dragging t from scene point at.
func (e *Editor) Begin(t Target, at vector.Pt) bool {
	if t.Index < 0 || t.Index >= len(e.work) {
		return false
	}
	pt := e.work[t.Index]
	if (t.Part == PartHandleIn && pt.HandleIn == nil) || (t.Part == PartHandleOut && pt.HandleOut == nil) {
		return false
	}
	e.drag = &drag{target: t, start: e.toLocal(at), point: vector.ClonePoints([]vector.PathPoint{pt})[0]}
	return true
}

// Drag moves the grabbed target to scene point at. A symmetrical anchor
// mirrors its opposite handle on every call.
func (e *Editor) Drag(at vector.Pt) {
	if e.drag == nil {
		return
	}
	q := e.toLocal(at)
	d := q.Sub(e.drag.start)
	pt := &e.work[e.drag.target.Index]
	switch e.drag.target.Part {
	case PartAnchor:
		pt.X = e.drag.point.X + d.X
		pt.Y = e.drag.point.Y + d.Y
	case PartHandleIn:
		h := e.drag.point.HandleIn.Add(d)
		pt.HandleIn = &h
		if pt.HandleType == vector.HandleSymmetrical {
			pt.MirrorHandle(false)
		}
	case PartHandleOut:
		h := e.drag.point.HandleOut.Add(d)
		pt.HandleOut = &h
		if pt.HandleType == vector.HandleSymmetrical {
			pt.MirrorHandle(true)
		}
	}
}

// End finishes the drag and returns the commit patch, if anything moved.
func (e *Editor) End() (scene.Patch, bool) {
	if e.drag == nil {
		return scene.Patch{}, false
	}
	e.drag = nil
	return e.commit()
}

// Cancel drops the drag and restores the last committed points.
func (e *Editor) Cancel() {
	e.drag = nil
	e.work = vector.ClonePoints(e.base)
}

// Promote gives a handle-less anchor a symmetrical pair along the local tangent.
func (e *Editor) Promote(i int) (scene.Patch, bool) {
	if i < 0 || i >= len(e.work) || e.drag != nil {
		return scene.Patch{}, false
	}
	pt := &e.work[i]
	if pt.HandleIn != nil || pt.HandleOut != nil {
		return scene.Patch{}, false
	}
	in, out := vector.TangentHandles(e.work, i, e.closed)
	pt.HandleIn, pt.HandleOut = &in, &out
	pt.HandleType = vector.HandleSymmetrical
	return e.commit()
}

// CycleType advances the anchor's coupling mode. Switching to symmetrical
// re-mirrors the in-handle from the out-handle.
func (e *Editor) CycleType(i int) (scene.Patch, bool) {
	if i < 0 || i >= len(e.work) || e.drag != nil {
		return scene.Patch{}, false
	}
	pt := &e.work[i]
	pt.HandleType = pt.HandleType.Next()
	if pt.HandleType == vector.HandleSymmetrical && pt.HandleOut != nil {
		pt.MirrorHandle(true)
	}
	return e.commit()
}

// RemoveHandle deletes one handle of a disconnected anchor.
func (e *Editor) RemoveHandle(t Target) (scene.Patch, bool) {
	if t.Index < 0 || t.Index >= len(e.work) || e.drag != nil {
		return scene.Patch{}, false
	}
	pt := &e.work[t.Index]
	if pt.HandleType != vector.HandleDisconnected {
		return scene.Patch{}, false
	}
	switch t.Part {
	case PartHandleIn:
		pt.HandleIn = nil
	case PartHandleOut:
		pt.HandleOut = nil
	default:
		return scene.Patch{}, false
	}
	return e.commit()
}

// DeleteAnchor removes anchor i. A path keeps at least two anchors.
func (e *Editor) DeleteAnchor(i int) (scene.Patch, bool) {
	if i < 0 || i >= len(e.work) || len(e.work) <= 2 || e.drag != nil {
		return scene.Patch{}, false
	}
	e.work = append(e.work[:i], e.work[i+1:]...)
	return e.commit()
}

// commit re-normalizes the working copy so the anchors' bounds start at the
// element origin, shifting the element box to compensate. Open ends lose
// their unused handles.
func (e *Editor) commit() (scene.Patch, bool) {
	b, pts := vector.Normalize(vector.TrimOpenEnds(e.work, e.closed))
	box := vector.R(e.box.X+b.X, e.box.Y+b.Y, b.W, b.H)
	if box == e.box && samePoints(pts, e.base) {
		e.work = vector.ClonePoints(e.base)
		return scene.Patch{}, false
	}
	e.origin = e.origin.Add(vector.Pt{X: b.X, Y: b.Y})
	e.box = box
	e.base = pts
	e.work = vector.ClonePoints(pts)
	return scene.PathPatch(e.id, box, pts, e.closed), true
}

func samePoints(a, b []vector.PathPoint) bool {
	if len(a) != len(b) {
		return false
	}
	eq := func(x, y *vector.Pt) bool {
		if x == nil || y == nil {
			return x == nil && y == nil
		}
		return *x == *y
	}
	for i := range a {
		if a[i].X != b[i].X || a[i].Y != b[i].Y || a[i].HandleType != b[i].HandleType ||
			!eq(a[i].HandleIn, b[i].HandleIn) || !eq(a[i].HandleOut, b[i].HandleOut) {
			return false
		}
	}
	return true
}
