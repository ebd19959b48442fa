/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Alignment guides for drag and resize gestures. The static side is captured
// once per gesture in a SnapSet; each pointer move only walks the cached lines.

import "math"

const (
	Vertical   = "vertical"
	Horizontal = "horizontal"
)

// SnapOptions controls the snap threshold. ThresholdPx is in screen pixels
// and is divided by Zoom before comparing scene-space distances.
type SnapOptions struct {
	ThresholdPx float64
	Zoom        float64
	// Epsilon bounds the difference between offsets that count as a tie.
	Epsilon float64
}

func (o SnapOptions) normalized() SnapOptions {
	if o.ThresholdPx <= 0 {
		o.ThresholdPx = 6
	}
	if o.Zoom <= 0 {
		o.Zoom = 1
	}
	if o.Epsilon <= 0 {
		o.Epsilon = 1e-6
	}
	return o
}

// Threshold returns the snap distance in scene units.
func (o SnapOptions) Threshold() float64 {
	o = o.normalized()
	return o.ThresholdPx / o.Zoom
}

// Guide is one alignment line. Vertical guides sit at x = Position and span
// From.Y..To.Y; horizontal guides the other way round. Offset is the signed
// correction that was applied to the moving box on this axis.
type Guide struct {
	Orientation string
	Position    float64
	Offset      float64
	From        Pt
	To          Pt
	// Positions holds every distinct coordinate that contributed to the snap
	// (e.g. left and right edges matching at once).
	Positions []float64
}

// refLine is a reference coordinate plus the extent of its box on the other axis.
type refLine struct {
	at     float64
	lo, hi float64
}

// SnapSet is the static snapshot of candidate boxes for one gesture.
type SnapSet struct {
	xs []refLine
	ys []refLine
}

// NewSnapSet precomputes the left/center/right and top/middle/bottom lines of boxes.
func NewSnapSet(boxes []Rect) *SnapSet {
	s := &SnapSet{
		xs: make([]refLine, 0, len(boxes)*3),
		ys: make([]refLine, 0, len(boxes)*3),
	}
	for _, b := range boxes {
		for _, x := range []float64{b.Left(), b.CenterX(), b.Right()} {
			s.xs = append(s.xs, refLine{at: x, lo: b.Top(), hi: b.Bottom()})
		}
		for _, y := range []float64{b.Top(), b.CenterY(), b.Bottom()} {
			s.ys = append(s.ys, refLine{at: y, lo: b.Left(), hi: b.Right()})
		}
	}
	return s
}

// Len reports how many boxes the set was built from.
func (s *SnapSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.xs) / 3
}

// axisMatch is the outcome of matching one axis.
type axisMatch struct {
	ok        bool
	offset    float64
	positions []float64
	lo, hi    float64
}

// matchAxis finds the smallest offset between any moving line and any static
// line. Every pair whose offset equals the best one within eps contributes to
// the guide extent.
func matchAxis(moving []float64, static []refLine, threshold, eps float64) axisMatch {
	best := math.Inf(1)
	offset := 0.0
	for _, m := range moving {
		for _, s := range static {
			d := s.at - m
			if math.Abs(d) < best-eps {
				best = math.Abs(d)
				offset = d
			}
		}
	}
	if best > threshold {
		return axisMatch{}
	}
	res := axisMatch{ok: true, offset: offset, lo: math.Inf(1), hi: math.Inf(-1)}
	for _, m := range moving {
		for _, s := range static {
			if math.Abs((s.at-m)-offset) > eps {
				continue
			}
			res.lo = math.Min(res.lo, s.lo)
			res.hi = math.Max(res.hi, s.hi)
			if !containsNear(res.positions, s.at, eps) {
				res.positions = append(res.positions, s.at)
			}
		}
	}
	return res
}

func containsNear(vs []float64, v, eps float64) bool {
	for _, x := range vs {
		if math.Abs(x-v) <= eps {
			return true
		}
	}
	return false
}

// SnapMove aligns a dragged box. Axes snap independently; an axis with no
// line inside the threshold is returned untouched.
func (s *SnapSet) SnapMove(moving Rect, opts SnapOptions) (Rect, []Guide) {
	if s == nil {
		return moving, nil
	}
	opts = opts.normalized()
	th := opts.Threshold()
	out := moving
	var guides []Guide

	mx := matchAxis([]float64{moving.Left(), moving.CenterX(), moving.Right()}, s.xs, th, opts.Epsilon)
	if mx.ok {
		out.X += mx.offset
	}
	my := matchAxis([]float64{moving.Top(), moving.CenterY(), moving.Bottom()}, s.ys, th, opts.Epsilon)
	if my.ok {
		out.Y += my.offset
	}
	if mx.ok {
		guides = append(guides, verticalGuide(mx, out))
	}
	if my.ok {
		guides = append(guides, horizontalGuide(my, out))
	}
	return out, guides
}

// SnapResize aligns the edge(s) driven by h. The opposite edge never moves:
// a left snap shifts x and shrinks width by the same amount, a right snap
// only changes width. Axes the handle does not drive produce no guide.
func (s *SnapSet) SnapResize(moving Rect, h Handle, opts SnapOptions) (Rect, []Guide) {
	if s == nil {
		return moving, nil
	}
	opts = opts.normalized()
	th := opts.Threshold()
	out := moving

	var mx, my axisMatch
	switch {
	case h.Has(HandleLeft):
		if mx = matchAxis([]float64{moving.Left()}, s.xs, th, opts.Epsilon); mx.ok {
			out.X += mx.offset
			out.W -= mx.offset
		}
	case h.Has(HandleRight):
		if mx = matchAxis([]float64{moving.Right()}, s.xs, th, opts.Epsilon); mx.ok {
			out.W += mx.offset
		}
	}
	switch {
	case h.Has(HandleTop):
		if my = matchAxis([]float64{moving.Top()}, s.ys, th, opts.Epsilon); my.ok {
			out.Y += my.offset
			out.H -= my.offset
		}
	case h.Has(HandleBottom):
		if my = matchAxis([]float64{moving.Bottom()}, s.ys, th, opts.Epsilon); my.ok {
			out.H += my.offset
		}
	}

	var guides []Guide
	if mx.ok {
		guides = append(guides, verticalGuide(mx, out))
	}
	if my.ok {
		guides = append(guides, horizontalGuide(my, out))
	}
	return out, guides
}

func verticalGuide(m axisMatch, box Rect) Guide {
	lo := math.Min(m.lo, box.Top())
	hi := math.Max(m.hi, box.Bottom())
	x := m.positions[0]
	return Guide{
		Orientation: Vertical,
		Position:    x,
		Offset:      m.offset,
		From:        Pt{x, lo},
		To:          Pt{x, hi},
		Positions:   m.positions,
	}
}

func horizontalGuide(m axisMatch, box Rect) Guide {
	lo := math.Min(m.lo, box.Left())
	hi := math.Max(m.hi, box.Right())
	y := m.positions[0]
	return Guide{
		Orientation: Horizontal,
		Position:    y,
		Offset:      m.offset,
		From:        Pt{lo, y},
		To:          Pt{hi, y},
		Positions:   m.positions,
	}
}
