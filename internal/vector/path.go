/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Freeform path model: anchor points with optional bezier handles, the
// lowered command list used by renderers, and the SVG path-data codec.

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// HandleType is the coupling mode between an anchor's two handles.
type HandleType string

const (
	HandleSymmetrical  HandleType = "symmetrical"
	HandleAsymmetrical HandleType = "asymmetrical"
	HandleDisconnected HandleType = "disconnected"
)

// Next cycles symmetrical -> asymmetrical -> disconnected -> symmetrical.
func (t HandleType) Next() HandleType {
	switch t {
	case HandleSymmetrical:
		return HandleAsymmetrical
	case HandleAsymmetrical:
		return HandleDisconnected
	default:
		return HandleSymmetrical
	}
}

// PathPoint is an anchor in path-local space. Handles are offsets from the anchor.
type PathPoint struct {
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	HandleIn   *Pt        `json:"handleIn,omitempty"`
	HandleOut  *Pt        `json:"handleOut,omitempty"`
	HandleType HandleType `json:"handleType,omitempty"`
}

func (p PathPoint) Anchor() Pt { return Pt{p.X, p.Y} }

// InAbs returns the absolute position of the in-handle, or the anchor.
func (p PathPoint) InAbs() Pt {
	if p.HandleIn == nil {
		return p.Anchor()
	}
	return p.Anchor().Add(*p.HandleIn)
}

// OutAbs returns the absolute position of the out-handle, or the anchor.
func (p PathPoint) OutAbs() Pt {
	if p.HandleOut == nil {
		return p.Anchor()
	}
	return p.Anchor().Add(*p.HandleOut)
}

// ClonePoints deep-copies a point list including handle pointers.
func ClonePoints(pts []PathPoint) []PathPoint {
	if pts == nil {
		return nil
	}
	out := make([]PathPoint, len(pts))
	for i, p := range pts {
		out[i] = p
		if p.HandleIn != nil {
			h := *p.HandleIn
			out[i].HandleIn = &h
		}
		if p.HandleOut != nil {
			h := *p.HandleOut
			out[i].HandleOut = &h
		}
	}
	return out
}

// BoundsOfAnchors returns the bounding box of the anchor coordinates.
func BoundsOfAnchors(pts []PathPoint) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// OffsetPoints returns a copy of pts moved by (dx, dy). Handles are relative and stay put.
func OffsetPoints(pts []PathPoint, dx, dy float64) []PathPoint {
	out := ClonePoints(pts)
	for i := range out {
		out[i].X += dx
		out[i].Y += dy
	}
	return out
}

// Normalize rewrites pts relative to the origin of their anchor bounds and
// returns that bounds (in the input's space) with the rewritten points.
func Normalize(pts []PathPoint) (Rect, []PathPoint) {
	b := BoundsOfAnchors(pts)
	return b, OffsetPoints(pts, -b.X, -b.Y)
}

// MirrorHandle makes the handle opposite to the one just edited its negation.
// out selects which side was edited.
func (p *PathPoint) MirrorHandle(out bool) {
	if out {
		if p.HandleOut == nil {
			p.HandleIn = nil
			return
		}
		h := p.HandleOut.Neg()
		p.HandleIn = &h
		return
	}
	if p.HandleIn == nil {
		p.HandleOut = nil
		return
	}
	h := p.HandleIn.Neg()
	p.HandleOut = &h
}

// DefaultHandleLength is used when an anchor has no neighbours to measure against.
const DefaultHandleLength = 20.0

// TangentHandles synthesizes a symmetrical handle pair for pts[i] along the
// local tangent (previous anchor to next anchor), a third of the mean
// neighbour distance long.
func TangentHandles(pts []PathPoint, i int, closed bool) (in, out Pt) {
	n := len(pts)
	cur := pts[i].Anchor()
	prev, next := cur, cur
	if i > 0 {
		prev = pts[i-1].Anchor()
	} else if closed && n > 1 {
		prev = pts[n-1].Anchor()
	}
	if i < n-1 {
		next = pts[i+1].Anchor()
	} else if closed && n > 1 {
		next = pts[0].Anchor()
	}
	dir := next.Sub(prev)
	if dir.Len() == 0 {
		dir = Pt{1, 0}
	}
	dir = dir.Scale(1 / dir.Len())
	length := DefaultHandleLength
	var sum float64
	var cnt int
	if prev != cur {
		sum += prev.Dist(cur)
		cnt++
	}
	if next != cur {
		sum += next.Dist(cur)
		cnt++
	}
	if cnt > 0 {
		length = sum / float64(cnt) / 3
	}
	out = dir.Scale(length)
	return out.Neg(), out
}

// Path commands lowered from a point list, consumed by renderers.

type PathOp uint8

const (
	MoveTo PathOp = iota
	LineTo
	CubicTo // cubic bezier (cx1, cy1, cx2, cy2, x, y)
	Close
)

type PathCmd struct {
	Op   PathOp
	Data [6]float64 // enough for cubic; unused slots are zero
}

type Path struct{ Cmds []PathCmd }

func (p *Path) MoveTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: MoveTo, Data: [6]float64{x, y}})
}
func (p *Path) LineTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: LineTo, Data: [6]float64{x, y}})
}
func (p *Path) CubicTo(cx1, cy1, cx2, cy2, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: CubicTo, Data: [6]float64{cx1, cy1, cx2, cy2, x, y}})
}
func (p *Path) Close() { p.Cmds = append(p.Cmds, PathCmd{Op: Close}) }

// Transform returns a copy with every coordinate mapped through m.
func (p Path) Transform(m Affine2D) Path {
	out := Path{Cmds: make([]PathCmd, len(p.Cmds))}
	for i, c := range p.Cmds {
		out.Cmds[i] = c
		n := 0
		switch c.Op {
		case MoveTo, LineTo:
			n = 1
		case CubicTo:
			n = 3
		}
		for k := 0; k < n; k++ {
			q := m.Apply(Pt{c.Data[2*k], c.Data[2*k+1]})
			out.Cmds[i].Data[2*k], out.Cmds[i].Data[2*k+1] = q.X, q.Y
		}
	}
	return out
}

// Bounds returns the box of all on-curve and control points. Control points
// make it a loose fit, which is fine for selection and layout.
func (p Path) Bounds() Rect {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	add := func(x, y float64) {
		minX, minY = math.Min(minX, x), math.Min(minY, y)
		maxX, maxY = math.Max(maxX, x), math.Max(maxY, y)
	}
	for _, c := range p.Cmds {
		switch c.Op {
		case MoveTo, LineTo:
			add(c.Data[0], c.Data[1])
		case CubicTo:
			add(c.Data[0], c.Data[1])
			add(c.Data[2], c.Data[3])
			add(c.Data[4], c.Data[5])
		}
	}
	if minX > maxX || minY > maxY {
		return Rect{}
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Flatten turns the path into polylines, one per subpath, sampling each
// cubic with steps segments.
func (p Path) Flatten(steps int) [][]Pt {
	if steps < 1 {
		steps = 1
	}
	var out [][]Pt
	var cur []Pt
	var start, last Pt
	flush := func() {
		if len(cur) > 1 {
			out = append(out, cur)
		}
		cur = nil
	}
	for _, c := range p.Cmds {
		d := c.Data
		switch c.Op {
		case MoveTo:
			flush()
			start = Pt{d[0], d[1]}
			last = start
			cur = []Pt{start}
		case LineTo:
			last = Pt{d[0], d[1]}
			cur = append(cur, last)
		case CubicTo:
			c1, c2, end := Pt{d[0], d[1]}, Pt{d[2], d[3]}, Pt{d[4], d[5]}
			for i := 1; i <= steps; i++ {
				t := float64(i) / float64(steps)
				u := 1 - t
				cur = append(cur, last.Scale(u*u*u).Add(c1.Scale(3*u*u*t)).Add(c2.Scale(3*u*t*t)).Add(end.Scale(t*t*t)))
			}
			last = end
		case Close:
			if !last.Near(start, 1e-9) {
				cur = append(cur, start)
			}
			last = start
		}
	}
	flush()
	return out
}

// String formats the commands as absolute SVG path data.
func (p Path) String() string {
	var b strings.Builder
	for i, c := range p.Cmds {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch c.Op {
		case MoveTo:
			fmt.Fprintf(&b, "M %s %s", num(c.Data[0]), num(c.Data[1]))
		case LineTo:
			fmt.Fprintf(&b, "L %s %s", num(c.Data[0]), num(c.Data[1]))
		case CubicTo:
			fmt.Fprintf(&b, "C %s %s %s %s %s %s", num(c.Data[0]), num(c.Data[1]), num(c.Data[2]), num(c.Data[3]), num(c.Data[4]), num(c.Data[5]))
		case Close:
			b.WriteByte('Z')
		}
	}
	return b.String()
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// segment lowers the edge a->b: a line when neither side has a handle.
func segment(p *Path, a, b PathPoint) {
	if a.HandleOut == nil && b.HandleIn == nil {
		p.LineTo(b.X, b.Y)
		return
	}
	c1, c2 := a.OutAbs(), b.InAbs()
	p.CubicTo(c1.X, c1.Y, c2.X, c2.Y, b.X, b.Y)
}

// ToPath lowers a point list into path commands.
func ToPath(pts []PathPoint, closed bool) Path {
	var p Path
	if len(pts) == 0 {
		return p
	}
	p.MoveTo(pts[0].X, pts[0].Y)
	for i := 1; i < len(pts); i++ {
		segment(&p, pts[i-1], pts[i])
	}
	if closed && len(pts) > 1 {
		last, first := pts[len(pts)-1], pts[0]
		if last.HandleOut != nil || first.HandleIn != nil {
			segment(&p, last, first)
		}
		p.Close()
	}
	return p
}

// FormatPathData serializes points to absolute M/L/C/Z path data.
func FormatPathData(pts []PathPoint, closed bool) string {
	return ToPath(pts, closed).String()
}

// TrimOpenEnds drops the handles no segment of an open path uses: the
// in-handle of the first anchor and the out-handle of the last. A trimmed
// anchor takes the coupling mode its remaining handles imply.
func TrimOpenEnds(pts []PathPoint, closed bool) []PathPoint {
	if closed || len(pts) == 0 {
		return pts
	}
	if first := &pts[0]; first.HandleIn != nil {
		first.HandleIn = nil
		first.HandleType = inferHandleType(*first)
	}
	if last := &pts[len(pts)-1]; last.HandleOut != nil {
		last.HandleOut = nil
		last.HandleType = inferHandleType(*last)
	}
	return pts
}

var (
	ErrPathSyntax   = errors.New("vector: invalid path data")
	ErrPathSubpaths = errors.New("vector: multiple subpaths are not supported")
)

// handleEps is the distance under which a control point counts as sitting on its anchor.
const handleEps = 1e-9

// ParsePathData parses M m L l H h V v C c Z z path data back into points.
// Cubic control points become handles on the adjoining anchors. A closing
// segment that ends on the first anchor is folded into it.
func ParsePathData(d string) ([]PathPoint, bool, error) {
	toks, err := tokenizePath(d)
	if err != nil {
		return nil, false, err
	}
	var (
		pts    []PathPoint
		cur    Pt
		closed bool
		cmd    byte
		i      int
	)
	next := func() (float64, error) {
		if i >= len(toks) || toks[i].isCmd {
			return 0, fmt.Errorf("%w: missing number after %q", ErrPathSyntax, cmd)
		}
		v := toks[i].num
		i++
		return v, nil
	}
	pair := func(rel bool) (Pt, error) {
		x, err := next()
		if err != nil {
			return Pt{}, err
		}
		y, err := next()
		if err != nil {
			return Pt{}, err
		}
		if rel {
			return Pt{cur.X + x, cur.Y + y}, nil
		}
		return Pt{x, y}, nil
	}
	lineTo := func(p Pt) {
		pts = append(pts, PathPoint{X: p.X, Y: p.Y})
		cur = p
	}

	for i < len(toks) {
		if toks[i].isCmd {
			cmd = toks[i].cmd
			i++
		} else if cmd == 0 {
			return nil, false, fmt.Errorf("%w: data must start with a command", ErrPathSyntax)
		}
		if closed && cmd != 'Z' && cmd != 'z' {
			return nil, false, ErrPathSubpaths
		}
		rel := cmd >= 'a'
		switch cmd {
		case 'M', 'm':
			if len(pts) > 0 {
				return nil, false, ErrPathSubpaths
			}
			p, err := pair(rel)
			if err != nil {
				return nil, false, err
			}
			lineTo(p)
			// Extra pairs after a moveto are implicit linetos.
			if rel {
				cmd = 'l'
			} else {
				cmd = 'L'
			}
		case 'L', 'l':
			p, err := pair(rel)
			if err != nil {
				return nil, false, err
			}
			lineTo(p)
		case 'H', 'h':
			x, err := next()
			if err != nil {
				return nil, false, err
			}
			if rel {
				x += cur.X
			}
			lineTo(Pt{x, cur.Y})
		case 'V', 'v':
			y, err := next()
			if err != nil {
				return nil, false, err
			}
			if rel {
				y += cur.Y
			}
			lineTo(Pt{cur.X, y})
		case 'C', 'c':
			if len(pts) == 0 {
				return nil, false, fmt.Errorf("%w: curve before moveto", ErrPathSyntax)
			}
			c1, err := pair(rel)
			if err != nil {
				return nil, false, err
			}
			c2, err := pair(rel)
			if err != nil {
				return nil, false, err
			}
			end, err := pair(rel)
			if err != nil {
				return nil, false, err
			}
			prev := &pts[len(pts)-1]
			if out := c1.Sub(prev.Anchor()); !out.Near(Pt{}, handleEps) {
				prev.HandleOut = &out
			}
			np := PathPoint{X: end.X, Y: end.Y}
			if in := c2.Sub(end); !in.Near(Pt{}, handleEps) {
				np.HandleIn = &in
			}
			pts = append(pts, np)
			cur = end
		case 'Z', 'z':
			if len(pts) == 0 {
				return nil, false, fmt.Errorf("%w: close before moveto", ErrPathSyntax)
			}
			closed = true
			if n := len(pts); n > 1 && pts[n-1].Anchor().Near(pts[0].Anchor(), handleEps) {
				pts[0].HandleIn = pts[n-1].HandleIn
				pts = pts[:n-1]
			}
			cur = pts[0].Anchor()
			if i < len(toks) && !toks[i].isCmd {
				return nil, false, fmt.Errorf("%w: close takes no arguments", ErrPathSyntax)
			}
		default:
			return nil, false, fmt.Errorf("%w: unsupported command %q", ErrPathSyntax, cmd)
		}
	}
	for k := range pts {
		pts[k].HandleType = inferHandleType(pts[k])
	}
	return pts, closed, nil
}

func inferHandleType(p PathPoint) HandleType {
	switch {
	case p.HandleIn != nil && p.HandleOut != nil:
		if p.HandleIn.Near(p.HandleOut.Neg(), 1e-6) {
			return HandleSymmetrical
		}
		return HandleAsymmetrical
	case p.HandleIn != nil || p.HandleOut != nil:
		return HandleDisconnected
	default:
		return HandleSymmetrical
	}
}

type pathToken struct {
	isCmd bool
	cmd   byte
	num   float64
}

func tokenizePath(d string) ([]pathToken, error) {
	var toks []pathToken
	for i := 0; i < len(d); {
		c := d[i]
		switch {
		case c == ' ' || c == ',' || c == '\t' || c == '\n' || c == '\r':
			i++
		case strings.IndexByte("MmLlHhVvCcZz", c) >= 0:
			toks = append(toks, pathToken{isCmd: true, cmd: c})
			i++
		case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
			j := scanNumber(d, i)
			v, err := strconv.ParseFloat(d[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q", ErrPathSyntax, d[i:j])
			}
			toks = append(toks, pathToken{num: v})
			i = j
		default:
			return nil, fmt.Errorf("%w: unexpected %q at %d", ErrPathSyntax, c, i)
		}
	}
	return toks, nil
}

// scanNumber returns the end of the number starting at i. A second '.' or a
// sign not following an exponent starts the next number ("1.5.5", "10-5").
func scanNumber(d string, i int) int {
	j := i
	if d[j] == '-' || d[j] == '+' {
		j++
	}
	dot, exp := false, false
	for j < len(d) {
		c := d[j]
		switch {
		case c >= '0' && c <= '9':
			j++
		case c == '.' && !dot && !exp:
			dot = true
			j++
		case (c == 'e' || c == 'E') && !exp:
			exp = true
			j++
			if j < len(d) && (d[j] == '-' || d[j] == '+') {
				j++
			}
		default:
			return j
		}
	}
	return j
}
