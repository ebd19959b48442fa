/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Basic 2D geometry in scene units. float64 matches the wire format so
// values survive a round-trip to the remote authority untouched.

import "math"

// Pt is a 2D point or offset.
type Pt struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Pt) Add(q Pt) Pt                 { return Pt{p.X + q.X, p.Y + q.Y} }
func (p Pt) Sub(q Pt) Pt                 { return Pt{p.X - q.X, p.Y - q.Y} }
func (p Pt) Scale(s float64) Pt          { return Pt{p.X * s, p.Y * s} }
func (p Pt) Neg() Pt                     { return Pt{-p.X, -p.Y} }
func (p Pt) Len() float64                { return math.Hypot(p.X, p.Y) }
func (p Pt) Dist(q Pt) float64           { return p.Sub(q).Len() }
func (p Pt) Near(q Pt, eps float64) bool { return math.Abs(p.X-q.X) <= eps && math.Abs(p.Y-q.Y) <= eps }

// Rect is an axis-aligned rectangle defined by its min corner and size.
type Rect struct {
	X, Y float64
	W, H float64
}

func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

// RectFromPoints returns the normalized rectangle spanned by two corners.
func RectFromPoints(a, b Pt) Rect {
	x0, x1 := math.Min(a.X, b.X), math.Max(a.X, b.X)
	y0, y1 := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func (r Rect) Left() float64    { return r.X }
func (r Rect) Right() float64   { return r.X + r.W }
func (r Rect) Top() float64     { return r.Y }
func (r Rect) Bottom() float64  { return r.Y + r.H }
func (r Rect) CenterX() float64 { return r.X + r.W/2 }
func (r Rect) CenterY() float64 { return r.Y + r.H/2 }
func (r Rect) Center() Pt       { return Pt{r.CenterX(), r.CenterY()} }
func (r Rect) Min() Pt          { return Pt{r.X, r.Y} }
func (r Rect) Max() Pt          { return Pt{r.Right(), r.Bottom()} }

func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.Right() && p.Y <= r.Bottom()
}

// Intersects reports whether r and o overlap or touch.
func (r Rect) Intersects(o Rect) bool {
	return r.X <= o.Right() && o.X <= r.Right() && r.Y <= o.Bottom() && o.Y <= r.Bottom()
}

// Inset returns a rectangle inset by dx,dy on all sides (negative grows).
func (r Rect) Inset(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W - 2*dx, H: r.H - 2*dy}
}

func (r Rect) Translate(dx, dy float64) Rect { return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H} }

// Union returns the minimal rect containing both.
func (r Rect) Union(o Rect) Rect {
	x0 := math.Min(r.X, o.X)
	y0 := math.Min(r.Y, o.Y)
	x1 := math.Max(r.Right(), o.Right())
	y1 := math.Max(r.Bottom(), o.Bottom())
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// UnionAll returns the union of rs; ok is false for an empty slice.
func UnionAll(rs []Rect) (Rect, bool) {
	if len(rs) == 0 {
		return Rect{}, false
	}
	u := rs[0]
	for _, r := range rs[1:] {
		u = u.Union(r)
	}
	return u, true
}

// Handle identifies the edges a resize handle drives. Corners combine two edges.
type Handle uint8

const (
	HandleLeft Handle = 1 << iota
	HandleRight
	HandleTop
	HandleBottom

	HandleNone        Handle = 0
	HandleTopLeft            = HandleTop | HandleLeft
	HandleTopRight           = HandleTop | HandleRight
	HandleBottomLeft         = HandleBottom | HandleLeft
	HandleBottomRight        = HandleBottom | HandleRight
)

// Handles lists the eight resize handles in drawing order.
var Handles = []Handle{HandleTopLeft, HandleTop, HandleTopRight, HandleRight, HandleBottomRight, HandleBottom, HandleBottomLeft, HandleLeft}

func (h Handle) Has(e Handle) bool { return h&e != 0 }

// Horizontal reports whether the handle moves a vertical edge (changes x/width).
func (h Handle) Horizontal() bool { return h.Has(HandleLeft | HandleRight) }

// Vertical reports whether the handle moves a horizontal edge (changes y/height).
func (h Handle) Vertical() bool { return h.Has(HandleTop | HandleBottom) }

// Position returns where the handle sits on r.
func (h Handle) Position(r Rect) Pt {
	p := r.Center()
	switch {
	case h.Has(HandleLeft):
		p.X = r.Left()
	case h.Has(HandleRight):
		p.X = r.Right()
	}
	switch {
	case h.Has(HandleTop):
		p.Y = r.Top()
	case h.Has(HandleBottom):
		p.Y = r.Bottom()
	}
	return p
}

// Resize moves the edges driven by h by the pointer delta, keeping the
// opposite edges fixed. Width and height never go below minSize.
func (h Handle) Resize(start Rect, dx, dy, minSize float64) Rect {
	r := start
	if h.Has(HandleLeft) {
		d := math.Min(dx, start.W-minSize)
		r.X = start.X + d
		r.W = start.W - d
	} else if h.Has(HandleRight) {
		r.W = math.Max(minSize, start.W+dx)
	}
	if h.Has(HandleTop) {
		d := math.Min(dy, start.H-minSize)
		r.Y = start.Y + d
		r.H = start.H - d
	} else if h.Has(HandleBottom) {
		r.H = math.Max(minSize, start.H+dy)
	}
	return r
}

// Affine2D represents a 2D affine transform as matrix:
// | a c e |
// | b d f |
// | 0 0 1 |
type Affine2D struct{ A, B, C, D, E, F float64 }

var Identity = Affine2D{A: 1, D: 1}

func (m Affine2D) Mul(n Affine2D) Affine2D {
	return Affine2D{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

func (m Affine2D) Apply(p Pt) Pt {
	return Pt{X: m.A*p.X + m.C*p.Y + m.E, Y: m.B*p.X + m.D*p.Y + m.F}
}

// Invert returns the inverse transform, or Identity when m is singular.
func (m Affine2D) Invert() Affine2D {
	det := m.A*m.D - m.B*m.C
	if det == 0 {
		return Identity
	}
	inv := 1 / det
	return Affine2D{
		A: m.D * inv,
		B: -m.B * inv,
		C: -m.C * inv,
		D: m.A * inv,
		E: (m.C*m.F - m.D*m.E) * inv,
		F: (m.B*m.E - m.A*m.F) * inv,
	}
}

func Translate(tx, ty float64) Affine2D { return Affine2D{A: 1, D: 1, E: tx, F: ty} }
func Scale(sx, sy float64) Affine2D     { return Affine2D{A: sx, D: sy} }
func Rotate(rad float64) Affine2D {
	c, s := math.Cos(rad), math.Sin(rad)
	return Affine2D{A: c, B: s, C: -s, D: c}
}

// RotateAbout rotates by deg degrees around c.
func RotateAbout(c Pt, deg float64) Affine2D {
	return Translate(c.X, c.Y).Mul(Rotate(deg * math.Pi / 180)).Mul(Translate(-c.X, -c.Y))
}

// Round rounds v to n decimal places deterministically.
func Round(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
