/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	xvector "golang.org/x/image/vector"

	"parsec/internal/scene"
	"parsec/internal/textlayout"
	"parsec/internal/vector"
)

// maxPNGSide caps the raster so a stray far-away element cannot allocate
// gigabytes.
const maxPNGSide = 8192

// PNG rasterizes the scene with anti-aliasing at opt.Scale pixels per unit.
// Text is drawn with a fixed bitmap face and ignores rotation.
func PNG(m *scene.Model, w io.Writer, opt Options) error {
	opt = opt.withDefaults()
	items := lower(m)
	view := bounds(items, opt.Padding)
	pw := int(math.Ceil(view.W * opt.Scale))
	ph := int(math.Ceil(view.H * opt.Scale))
	if pw <= 0 || ph <= 0 {
		pw, ph = 1, 1
	}
	if pw > maxPNGSide || ph > maxPNGSide {
		return fmt.Errorf("png %dx%d exceeds %d pixels per side; lower the scale", pw, ph, maxPNGSide)
	}

	img := image.NewRGBA(image.Rect(0, 0, pw, ph))
	if c, ok := parseColor(opt.Background); ok {
		draw.Draw(img, img.Bounds(), image.NewUniform(c.nrgba()), image.Point{}, draw.Src)
	}

	toPx := vector.Translate(-view.X, -view.Y)
	toPx = vector.Scale(opt.Scale, opt.Scale).Mul(toPx)
	r := xvector.NewRasterizer(pw, ph)
	for _, it := range items {
		if it.text != nil {
			pngText(img, it, toPx)
			continue
		}
		p := it.outline.Transform(toPx)
		if c, ok := paintColor(it.fill); ok {
			r.Reset(pw, ph)
			fillPath(r, p)
			r.Draw(img, img.Bounds(), image.NewUniform(c.nrgba()), image.Point{})
		}
		if c, ok := paintColor(it.stroke); ok && it.strokeWidth > 0 {
			r.Reset(pw, ph)
			strokePath(r, p, math.Max(it.strokeWidth*opt.Scale, 1), it.dashed)
			r.Draw(img, img.Bounds(), image.NewUniform(c.nrgba()), image.Point{})
		}
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func (c rgba) nrgba() color.NRGBA { return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A} }

func fillPath(r *xvector.Rasterizer, p vector.Path) {
	for _, c := range p.Cmds {
		d := c.Data
		switch c.Op {
		case vector.MoveTo:
			r.MoveTo(float32(d[0]), float32(d[1]))
		case vector.LineTo:
			r.LineTo(float32(d[0]), float32(d[1]))
		case vector.CubicTo:
			r.CubeTo(float32(d[0]), float32(d[1]), float32(d[2]), float32(d[3]), float32(d[4]), float32(d[5]))
		case vector.Close:
			r.ClosePath()
		}
	}
}

// strokePath covers every segment with a quad of the given width. The
// rasterizer clamps coverage, so overlapping quads at joints stay opaque.
func strokePath(r *xvector.Rasterizer, p vector.Path, width float64, dashed bool) {
	half := width / 2
	const dash, gap = 4.0, 2.0
	for _, line := range p.Flatten(16) {
		along := 0.0
		for i := 1; i < len(line); i++ {
			a, b := line[i-1], line[i]
			seg := b.Sub(a)
			n := seg.Len()
			if n == 0 {
				continue
			}
			if !dashed {
				quad(r, a, b, half)
				continue
			}
			dir := seg.Scale(1 / n)
			for s := 0.0; s < n; {
				phase := math.Mod(along+s, dash+gap)
				step := math.Min(n-s, dash+gap-phase)
				if phase < dash {
					on := math.Min(step, dash-phase)
					quad(r, a.Add(dir.Scale(s)), a.Add(dir.Scale(s+on)), half)
				}
				s += step
			}
			along += n
		}
	}
}

func quad(r *xvector.Rasterizer, a, b vector.Pt, half float64) {
	d := b.Sub(a)
	n := d.Len()
	if n == 0 {
		return
	}
	// extend by half so joints and caps close
	ext := d.Scale(half / n)
	a, b = a.Sub(ext), b.Add(ext)
	nx, ny := -d.Y/n*half, d.X/n*half
	r.MoveTo(float32(a.X+nx), float32(a.Y+ny))
	r.LineTo(float32(b.X+nx), float32(b.Y+ny))
	r.LineTo(float32(b.X-nx), float32(b.Y-ny))
	r.LineTo(float32(a.X-nx), float32(a.Y-ny))
	r.ClosePath()
}

func pngText(img *image.RGBA, it item, toPx vector.Affine2D) {
	t := it.text
	col := color.NRGBA{A: 255}
	if c, ok := parseColor(t.FontColor); ok {
		col = c.nrgba()
	}
	face := basicfont.Face7x13
	st := textStyle(t)
	st.Size, st.LineHeight = float64(face.Metrics().Height.Ceil()), 1
	box := vector.TransformRect(toPx, it.box)
	d := &font.Drawer{Dst: img, Src: image.NewUniform(col), Face: face}
	for _, line := range textlayout.Layout(textlayout.BasicMeasurer{}, t.Content, st, box).Lines {
		d.Dot = fixed.P(int(math.Round(line.X)), int(math.Round(line.Baseline)))
		d.DrawString(line.Text)
	}
}
