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
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strings"

	"parsec/internal/scene"
	"parsec/internal/textlayout"
	"parsec/internal/vector"
)

// SVG writes the scene as a standalone SVG document. Gradients become
// linearGradient definitions; everything else maps onto path and text nodes.
func SVG(m *scene.Model, w io.Writer, opt Options) error {
	opt = opt.withDefaults()
	items := lower(m)
	view := bounds(items, opt.Padding)

	bw := bufio.NewWriter(w)
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(bw, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%s\" height=\"%s\" viewBox=\"%s %s %s %s\">\n",
		fnum(view.W), fnum(view.H), fnum(view.X), fnum(view.Y), fnum(view.W), fnum(view.H))
	if c, ok := parseColor(opt.Background); ok {
		wf("  <rect x=\"%s\" y=\"%s\" width=\"%s\" height=\"%s\" fill=\"%s\"/>\n", fnum(view.X), fnum(view.Y), fnum(view.W), fnum(view.H), c.hex())
	}

	grads := 0
	paint := func(attr string, p *scene.Paint) string {
		if p == nil {
			return fmt.Sprintf(" %s=\"none\"", attr)
		}
		if p.Type == scene.PaintLinearGradient && len(p.Stops) > 0 {
			grads++
			id := fmt.Sprintf("g%d", grads)
			x1, y1, x2, y2 := gradientVector(p.Angle)
			wf("  <defs><linearGradient id=\"%s\" x1=\"%s\" y1=\"%s\" x2=\"%s\" y2=\"%s\">", id, fnum(x1), fnum(y1), fnum(x2), fnum(y2))
			for _, st := range p.Stops {
				c, ok := parseColor(st.Color)
				if !ok {
					continue
				}
				wf("<stop offset=\"%s\" stop-color=\"%s\"%s/>", fnum(st.Offset), c.hex(), c.opacity("stop-opacity"))
			}
			wf("</linearGradient></defs>\n")
			return fmt.Sprintf(" %s=\"url(#%s)\"", attr, id)
		}
		c, ok := paintColor(p)
		if !ok {
			return fmt.Sprintf(" %s=\"none\"", attr)
		}
		return fmt.Sprintf(" %s=\"%s\"%s", attr, c.hex(), c.opacity(attr+"-opacity"))
	}

	for _, it := range items {
		if it.text != nil {
			writeSVGText(wf, it)
			continue
		}
		fill := paint("fill", it.fill)
		stroke := paint("stroke", it.stroke)
		extra := ""
		if it.stroke != nil && it.strokeWidth > 0 {
			extra = fmt.Sprintf(" stroke-width=\"%s\"", fnum(it.strokeWidth))
		}
		if it.dashed {
			extra += " stroke-dasharray=\"4 2\""
		}
		d := it.outline.String()
		if it.kind == scene.KindPath {
			// Paths keep their stored data and are placed by a transform.
			d = vector.FormatPathData(it.points, it.closed)
			extra += pathTransform(it)
		}
		wf("  <path id=\"%s\" d=\"%s\"%s%s%s/>\n", esc(it.id), d, fill, stroke, extra)
	}
	wf("</svg>\n")
	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func writeSVGText(wf func(string, ...any), it item) {
	t := it.text
	st := textStyle(t)
	size := st.Size
	anchor, x := "start", it.box.Left()
	switch t.Align {
	case "center":
		anchor, x = "middle", it.box.CenterX()
	case "right":
		anchor, x = "end", it.box.Right()
	}
	block := textlayout.Layout(textlayout.BasicMeasurer{}, t.Content, st, it.box)
	color := "#000000"
	if c, ok := parseColor(t.FontColor); ok {
		color = c.hex()
	}
	family := t.FontFamily
	if family == "" {
		family = "sans-serif"
	}
	transform := ""
	if it.rotation != 0 {
		c := it.box.Center()
		transform = fmt.Sprintf(" transform=\"rotate(%s %s %s)\"", fnum(it.rotation), fnum(c.X), fnum(c.Y))
	}
	wf("  <text id=\"%s\" font-family=\"%s\" font-size=\"%s\" fill=\"%s\" text-anchor=\"%s\"%s>",
		esc(it.id), esc(family), fnum(size), color, anchor, transform)
	for _, line := range block.Lines {
		wf("<tspan x=\"%s\" y=\"%s\">%s</tspan>", fnum(x), fnum(line.Baseline), esc(line.Text))
	}
	wf("</text>\n")
}

// gradientVector maps a CSS angle (0 points up, clockwise) onto the unit box.
func gradientVector(deg float64) (x1, y1, x2, y2 float64) {
	rad := deg * math.Pi / 180
	dx, dy := math.Sin(rad)/2, -math.Cos(rad)/2
	return 0.5 - dx, 0.5 - dy, 0.5 + dx, 0.5 + dy
}

func (c rgba) hex() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }

func (c rgba) opacity(attr string) string {
	if c.A == 255 {
		return ""
	}
	return fmt.Sprintf(" %s=\"%s\"", attr, fnum(float64(c.A)/255))
}

func pathTransform(it item) string {
	t := fmt.Sprintf("translate(%s %s)", fnum(it.box.X), fnum(it.box.Y))
	if it.rotation != 0 {
		c := it.box.Center()
		t = fmt.Sprintf("rotate(%s %s %s) %s", fnum(it.rotation), fnum(c.X), fnum(c.Y), t)
	}
	return fmt.Sprintf(" transform=\"%s\"", t)
}

func fnum(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}

func esc(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
