/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export renders a scene to SVG, PDF and PNG. Every renderer works
// from the same lowered item list, so the three formats agree on geometry,
// paint order and visibility.
package export

import (
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	applog "parsec/internal/log"
	"parsec/internal/scene"
	"parsec/internal/textlayout"
	"parsec/internal/vector"
)

// Format names an output type.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPDF Format = "pdf"
	FormatPNG Format = "png"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatSVG, FormatPDF, FormatPNG:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Options controls all renderers. Zero values get defaults.
type Options struct {
	// Padding around the scene bounds, in scene units.
	Padding float64
	// Scale is the PNG pixel density per scene unit.
	Scale float64
	// Background is a CSS hex color; empty means transparent.
	Background string
}

func (o Options) withDefaults() Options {
	if o.Padding < 0 {
		o.Padding = 0
	} else if o.Padding == 0 {
		o.Padding = 16
	}
	if o.Scale <= 0 {
		o.Scale = 1
	}
	return o
}

// item is one drawable in absolute scene coordinates.
type item struct {
	id          string
	kind        scene.Kind
	box         vector.Rect // pre-rotation box
	rotation    float64
	outline     vector.Path // rotation applied
	fill        *scene.Paint
	stroke      *scene.Paint
	strokeWidth float64
	dashed      bool
	text        *scene.TextProps
	ellipse     bool
	radius      float64

	// points and closed keep a path's own data, relative to box.
	points []vector.PathPoint
	closed bool
}

// lower walks the model in paint order and turns every shown element into
// an item. Groups only contribute their children.
func lower(m *scene.Model) []item {
	var out []item
	for _, e := range m.Ordered() {
		if !m.Shown(e.ID) {
			continue
		}
		abs, _ := m.AbsoluteBounds(e.ID)
		it := item{id: e.ID, kind: e.Kind(), box: abs, rotation: e.Rotation}
		switch p := e.Props.(type) {
		case *scene.ShapeProps:
			it.fill, it.stroke, it.strokeWidth = p.Fill, p.Stroke, p.StrokeWidth
			switch p.ShapeType {
			case scene.ShapeCircle, scene.ShapeEllipse:
				it.outline, it.ellipse = ellipsePath(abs), true
			default:
				it.outline, it.radius = roundedRectPath(abs, p.CornerRadius), p.CornerRadius
			}
		case *scene.FrameProps:
			it.fill, it.stroke, it.strokeWidth = p.Fill, p.Stroke, p.StrokeWidth
			it.outline, it.radius = roundedRectPath(abs, p.CornerRadius), p.CornerRadius
		case *scene.PathProps:
			it.fill, it.stroke, it.strokeWidth = p.Fill, p.Stroke, p.StrokeWidth
			if !p.IsClosed {
				it.fill = nil
			}
			it.points, it.closed = p.Points, p.IsClosed
			it.outline = vector.ToPath(p.Points, p.IsClosed).Transform(vector.Translate(abs.X, abs.Y))
		case *scene.TextProps:
			it.text = p
		case *scene.ImageProps:
			it.fill = scene.Solid("#e0e0e0")
			it.stroke, it.strokeWidth = scene.Solid("#9e9e9e"), 1
			it.outline = roundedRectPath(abs, 0)
		case *scene.InstanceProps:
			it.stroke, it.strokeWidth, it.dashed = scene.Solid("#7b61ff"), 1, true
			it.outline = roundedRectPath(abs, 0)
		case *scene.GroupProps:
			continue
		default:
			applog.WithElement(applog.WithComponent("export"), e.ID).Warn("skipping element of unknown kind")
			continue
		}
		if it.rotation != 0 && len(it.outline.Cmds) > 0 {
			it.outline = it.outline.Transform(vector.RotateAbout(abs.Center(), it.rotation))
		}
		out = append(out, it)
	}
	return out
}

// Drawable is one shown element in absolute scene coordinates, ready for a
// host renderer. Outline already has Rotation applied; Box has not.
type Drawable struct {
	ID          string
	Kind        scene.Kind
	Box         vector.Rect
	Rotation    float64
	Outline     vector.Path
	Ellipse     bool
	Radius      float64
	Fill        *scene.Paint
	Stroke      *scene.Paint
	StrokeWidth float64
	Dashed      bool
	Text        *scene.TextProps
}

// Lower returns the display list of m in paint order. Groups contribute only
// their children; hidden subtrees are left out.
func Lower(m *scene.Model) []Drawable {
	items := lower(m)
	out := make([]Drawable, len(items))
	for i, it := range items {
		out[i] = Drawable{
			ID: it.id, Kind: it.kind, Box: it.box, Rotation: it.rotation,
			Outline: it.outline, Ellipse: it.ellipse, Radius: it.radius,
			Fill: it.fill, Stroke: it.stroke, StrokeWidth: it.strokeWidth,
			Dashed: it.dashed, Text: it.text,
		}
	}
	return out
}

// bounds is the union of the items' visual extent plus padding.
func bounds(items []item, pad float64) vector.Rect {
	rs := make([]vector.Rect, 0, len(items))
	for _, it := range items {
		if len(it.outline.Cmds) > 0 {
			r := it.outline.Bounds()
			half := it.strokeWidth / 2
			rs = append(rs, r.Inset(-half, -half))
			continue
		}
		rs = append(rs, vector.Shape{Box: it.box, Rotation: it.rotation}.Bounds())
	}
	r, ok := vector.UnionAll(rs)
	if !ok {
		r = vector.Rect{}
	}
	return r.Inset(-pad, -pad)
}

// kappa places cubic control points for a quarter ellipse.
const kappa = 0.5522847498

func ellipsePath(r vector.Rect) vector.Path {
	rx, ry := r.W/2, r.H/2
	cx, cy := r.CenterX(), r.CenterY()
	ox, oy := rx*kappa, ry*kappa
	var p vector.Path
	p.MoveTo(cx+rx, cy)
	p.CubicTo(cx+rx, cy+oy, cx+ox, cy+ry, cx, cy+ry)
	p.CubicTo(cx-ox, cy+ry, cx-rx, cy+oy, cx-rx, cy)
	p.CubicTo(cx-rx, cy-oy, cx-ox, cy-ry, cx, cy-ry)
	p.CubicTo(cx+ox, cy-ry, cx+rx, cy-oy, cx+rx, cy)
	p.Close()
	return p
}

func roundedRectPath(r vector.Rect, radius float64) vector.Path {
	radius = math.Min(radius, math.Min(r.W, r.H)/2)
	var p vector.Path
	if radius <= 0 {
		p.MoveTo(r.Left(), r.Top())
		p.LineTo(r.Right(), r.Top())
		p.LineTo(r.Right(), r.Bottom())
		p.LineTo(r.Left(), r.Bottom())
		p.Close()
		return p
	}
	k := radius * (1 - kappa)
	l, t, rt, b := r.Left(), r.Top(), r.Right(), r.Bottom()
	p.MoveTo(l+radius, t)
	p.LineTo(rt-radius, t)
	p.CubicTo(rt-k, t, rt, t+k, rt, t+radius)
	p.LineTo(rt, b-radius)
	p.CubicTo(rt, b-k, rt-k, b, rt-radius, b)
	p.LineTo(l+radius, b)
	p.CubicTo(l+k, b, l, b-k, l, b-radius)
	p.LineTo(l, t+radius)
	p.CubicTo(l, t+k, l+k, t, l+radius, t)
	p.Close()
	return p
}

// rgba is a parsed color with 8-bit channels.
type rgba struct{ R, G, B, A uint8 }

// parseColor understands #rgb, #rrggbb, #rrggbbaa and "transparent".
func parseColor(s string) (rgba, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "transparent" || s == "none" {
		return rgba{}, false
	}
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return rgba{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return rgba{}, false
	}
	return rgba{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
}

// paintColor resolves a paint to one color for renderers without gradients.
func paintColor(p *scene.Paint) (rgba, bool) {
	c, ok := p.Representative()
	if !ok {
		return rgba{}, false
	}
	return parseColor(c)
}

// PaintColor resolves a paint for hosts that draw with image/color values.
func PaintColor(p *scene.Paint) (color.NRGBA, bool) {
	c, ok := paintColor(p)
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, ok
}

// textStyle lays text out wrapped to its box, as the editor does.
func textStyle(t *scene.TextProps) textlayout.Style {
	size := t.FontSize
	if size <= 0 {
		size = textlayout.DefaultSize
	}
	return textlayout.Style{Size: size, Align: t.Align, VerticalAlign: t.VerticalAlign, Wrap: true}
}

// Render writes m in format f to w.
func Render(f Format, m *scene.Model, w io.Writer, opt Options) error {
	switch f {
	case FormatSVG:
		return SVG(m, w, opt)
	case FormatPDF:
		return PDF(m, w, opt)
	case FormatPNG:
		return PNG(m, w, opt)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// ToFile renders m into path, creating parent directories.
func ToFile(f Format, m *scene.Model, path string, opt Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", f, err)
	}
	if err := Render(f, m, out, opt); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", f, err)
	}
	applog.WithOperation(applog.WithComponent("export"), string(f)).Info("exported", slog.String("path", path), slog.Int("elements", m.Len()))
	return nil
}
