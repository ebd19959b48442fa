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
	"io"

	"github.com/jung-kurt/gofpdf"

	"parsec/internal/scene"
	"parsec/internal/textlayout"
	"parsec/internal/vector"
	"parsec/internal/version"
)

// PDF writes the scene as a single page sized to the scene bounds, one point
// per scene unit. Gradients fall back to their first stop; text uses the
// built-in Helvetica so nothing needs embedding.
func PDF(m *scene.Model, w io.Writer, opt Options) error {
	opt = opt.withDefaults()
	items := lower(m)
	view := bounds(items, opt.Padding)
	pageW, pageH := view.W, view.H
	if pageW <= 0 || pageH <= 0 {
		pageW, pageH = 1, 1
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	pdf.SetCreator("parsec "+version.String(), false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPage()

	// scene to page coordinates
	ox, oy := -view.X, -view.Y

	if c, ok := parseColor(opt.Background); ok {
		pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
		pdf.Rect(0, 0, pageW, pageH, "F")
	}

	for _, it := range items {
		if it.text != nil {
			pdfText(pdf, it, ox, oy)
			continue
		}
		style := ""
		if c, ok := paintColor(it.fill); ok {
			pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
			style += "F"
		}
		if c, ok := paintColor(it.stroke); ok && it.strokeWidth > 0 {
			pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
			pdf.SetLineWidth(it.strokeWidth)
			style += "D"
		}
		if style == "" {
			continue
		}
		if it.dashed {
			pdf.SetDashPattern([]float64{4, 2}, 0)
		}
		pdfPath(pdf, it.outline.Transform(vector.Translate(ox, oy)))
		pdf.DrawPath(style)
		if it.dashed {
			pdf.SetDashPattern([]float64{}, 0)
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func pdfPath(pdf *gofpdf.Fpdf, p vector.Path) {
	for _, c := range p.Cmds {
		switch c.Op {
		case vector.MoveTo:
			pdf.MoveTo(c.Data[0], c.Data[1])
		case vector.LineTo:
			pdf.LineTo(c.Data[0], c.Data[1])
		case vector.CubicTo:
			pdf.CurveBezierCubicTo(c.Data[0], c.Data[1], c.Data[2], c.Data[3], c.Data[4], c.Data[5])
		case vector.Close:
			pdf.ClosePath()
		}
	}
}

func pdfText(pdf *gofpdf.Fpdf, it item, ox, oy float64) {
	t := it.text
	st := textStyle(t)
	pdf.SetFont("Helvetica", "", st.Size)
	if c, ok := parseColor(t.FontColor); ok {
		pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
	} else {
		pdf.SetTextColor(0, 0, 0)
	}
	box := it.box.Translate(ox, oy)
	if it.rotation != 0 {
		c := box.Center()
		pdf.TransformBegin()
		// gofpdf rotates counter-clockwise
		pdf.TransformRotate(-it.rotation, c.X, c.Y)
		defer pdf.TransformEnd()
	}
	measure := textlayout.MeasureFunc(func(s string, _ float64) float64 { return pdf.GetStringWidth(s) })
	for _, line := range textlayout.Layout(measure, t.Content, st, box).Lines {
		pdf.Text(line.X, line.Baseline, line.Text)
	}
}
