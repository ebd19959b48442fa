/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Hit testing for element outlines. Boxes are in the element's own
// pre-rotation frame; rotation is applied around the box center.

import "math"

// Outline selects the hit-test geometry.
type Outline uint8

const (
	OutlineBox Outline = iota
	OutlineRoundedBox
	OutlineEllipse
)

// Shape is a rotated outline in scene space.
type Shape struct {
	Outline  Outline
	Box      Rect
	Rotation float64 // degrees, clockwise around Box.Center()
	Radius   float64 // corner radius for OutlineRoundedBox
}

func (s Shape) transform() Affine2D {
	if s.Rotation == 0 {
		return Identity
	}
	return RotateAbout(s.Box.Center(), s.Rotation)
}

// Bounds returns the axis-aligned bounds of the rotated outline.
func (s Shape) Bounds() Rect {
	if s.Rotation == 0 {
		return s.Box
	}
	return TransformRect(s.transform(), s.Box)
}

// Hit reports whether p lies inside the outline.
func (s Shape) Hit(p Pt) bool {
	q := s.transform().Invert().Apply(p)
	switch s.Outline {
	case OutlineEllipse:
		return hitEllipse(s.Box, q)
	case OutlineRoundedBox:
		return hitRoundedBox(s.Box, s.Radius, q)
	default:
		return s.Box.Contains(q)
	}
}

// TransformRect maps the four corners of r through m and returns their bounds.
func TransformRect(m Affine2D, r Rect) Rect {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	corners := []Pt{{r.X, r.Y}, {r.Right(), r.Y}, {r.X, r.Bottom()}, {r.Right(), r.Bottom()}}
	for _, c := range corners {
		p := m.Apply(c)
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

func hitEllipse(r Rect, q Pt) bool {
	rx, ry := r.W/2, r.H/2
	if rx == 0 || ry == 0 {
		return false
	}
	dx := (q.X - r.CenterX()) / rx
	dy := (q.Y - r.CenterY()) / ry
	return dx*dx+dy*dy <= 1
}

func hitRoundedBox(r Rect, radius float64, q Pt) bool {
	if !r.Contains(q) {
		return false
	}
	radius = math.Min(radius, math.Min(r.W, r.H)/2)
	if radius <= 0 {
		return true
	}
	// Only the four corner squares need the circle test.
	if q.X >= r.X+radius && q.X <= r.Right()-radius {
		return true
	}
	if q.Y >= r.Y+radius && q.Y <= r.Bottom()-radius {
		return true
	}
	cx := []float64{r.X + radius, r.Right() - radius}
	cy := []float64{r.Y + radius, r.Bottom() - radius}
	for _, x := range cx {
		for _, y := range cy {
			if q.Dist(Pt{x, y}) <= radius {
				return true
			}
		}
	}
	return false
}

// NearestHandle returns the resize handle of box within radius of p, or HandleNone.
func NearestHandle(box Rect, p Pt, radius float64) Handle {
	best, bestD := HandleNone, math.Inf(1)
	for _, h := range Handles {
		if d := h.Position(box).Dist(p); d <= radius && d < bestD {
			best, bestD = h, d
		}
	}
	return best
}
