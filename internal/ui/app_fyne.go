//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"parsec/internal/app"
	"parsec/internal/clipboard"
	"parsec/internal/config"
	"parsec/internal/crash"
	"parsec/internal/export"
	applog "parsec/internal/log"
	"parsec/internal/scene"
	"parsec/internal/textlayout"
	"parsec/internal/tool"
	"parsec/internal/vector"
	"parsec/internal/version"
)

var (
	bgColor        = color.NRGBA{R: 30, G: 30, B: 34, A: 255}
	selectionColor = color.NRGBA{R: 0, G: 170, B: 255, A: 255}
	guideColor     = color.NRGBA{R: 255, G: 64, B: 129, A: 255}
	previewColor   = color.NRGBA{R: 0, G: 170, B: 255, A: 60}
	handleColor    = color.NRGBA{R: 255, G: 170, B: 0, A: 255}
)

// Run starts the desktop host for the workspace at url (or the configured one).
func Run(url string) error {
	cfg, token, err := config.Load()
	if err != nil {
		cfg = config.Defaults()
	}
	applog.Init(cfg.LogOptions())
	l := applog.WithComponent("ui")
	if err != nil {
		l.Warn("config load failed; using defaults", slog.Any("err", err))
	}
	if url != "" {
		cfg.Server.URL = url
	}
	l.Info("starting UI", slog.String("server", cfg.Server.URL), slog.String("workspace", cfg.Server.Workspace))

	sess, err := app.New(app.Options{Config: cfg, Token: token, Clipboard: clipboard.OS()})
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	fa := fyneapp.NewWithID("parsec")
	w := fa.NewWindow("Parsec")
	prefs := fa.Preferences()
	w.Resize(fyne.NewSize(
		float32(max(800, prefs.IntWithFallback("window.width", 1200))),
		float32(max(600, prefs.IntWithFallback("window.height", 800))),
	))

	status := widget.NewLabel("Offline")
	sc := NewSceneCanvas(func(in app.Input) {
		if err := sess.Post(in); err != nil {
			l.Debug("input after shutdown", slog.Any("err", err))
		}
	})
	sc.unfocus = func() { w.Canvas().Unfocus() }

	textEntry := widget.NewEntry()
	textEntry.SetPlaceHolder("Text content")
	textEntry.OnSubmitted = func(s string) { sc.post(app.CommitText(s)) }
	textBar := container.NewBorder(nil, nil, widget.NewLabel("Edit text:"),
		widget.NewButton("Apply", func() { sc.post(app.CommitText(textEntry.Text)) }), textEntry)
	textBar.Hide()
	editing := ""

	promptEntry := widget.NewEntry()
	promptEntry.SetPlaceHolder("Describe an edit for the selection")
	sendPrompt := func(s string) {
		if s == "" {
			return
		}
		sc.post(app.Prompt(s))
		promptEntry.SetText("")
	}
	promptEntry.OnSubmitted = sendPrompt
	promptBar := container.NewBorder(nil, nil, widget.NewLabel("Prompt:"),
		widget.NewButton("Send", func() { sendPrompt(promptEntry.Text) }), promptEntry)

	sess.Observe(func(v app.View) {
		fyne.Do(func() {
			sc.SetView(v)
			status.SetText(statusLine(v))
			if v.TextID != editing {
				editing = v.TextID
				if editing == "" {
					textBar.Hide()
					return
				}
				textEntry.SetText(textOf(v, editing))
				textBar.Show()
				w.Canvas().Focus(textEntry)
			}
		})
	})

	toolbar := container.NewHBox(
		widget.NewButton("Select (V)", func() { sc.post(app.Tool(tool.ModeSelect)) }),
		widget.NewButton("Rect (R)", func() { sc.post(app.DrawTool(scene.KindShape, scene.ShapeRect)) }),
		widget.NewButton("Ellipse (O)", func() { sc.post(app.DrawTool(scene.KindShape, scene.ShapeEllipse)) }),
		widget.NewButton("Text (T)", func() { sc.post(app.DrawTool(scene.KindText, "")) }),
		widget.NewButton("Frame (F)", func() { sc.post(app.DrawTool(scene.KindFrame, "")) }),
		widget.NewButton("Pen (P)", func() { sc.post(app.Tool(tool.ModePen)) }),
		widget.NewSeparator(),
		widget.NewButton("Undo", func() { sc.post(app.Key(tool.KeyEvent{Key: "z", Mods: tool.ModCtrl})) }),
		widget.NewButton("Redo", func() { sc.post(app.Key(tool.KeyEvent{Key: "y", Mods: tool.ModCtrl})) }),
		widget.NewSeparator(),
		widget.NewLabel(version.String()),
	)
	w.SetContent(container.NewBorder(toolbar, container.NewVBox(textBar, promptBar, status), nil, nil, sc))

	if dc, ok := w.Canvas().(desktop.Canvas); ok {
		dc.SetOnKeyDown(sc.keyDown)
		dc.SetOnKeyUp(sc.keyUp)
	}
	for _, k := range []fyne.KeyName{fyne.KeyZ, fyne.KeyY, fyne.KeyC, fyne.KeyV, fyne.KeyD, fyne.KeyG, fyne.KeyLeftBracket, fyne.KeyRightBracket} {
		for _, mod := range []fyne.KeyModifier{fyne.KeyModifierControl, fyne.KeyModifierControl | fyne.KeyModifierShift} {
			key, mods := string(k), modifiers(mod&fyne.KeyModifierShift != 0, false, true, false)
			w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: k, Modifier: mod}, func(fyne.Shortcut) {
				name, _ := toolKey(key)
				sc.post(app.Key(tool.KeyEvent{Key: name, Mods: mods}))
			})
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer crash.Recover(sess.Autosave())
		if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
			l.Error("session stopped", slog.Any("err", err))
		}
	}()

	w.SetOnClosed(func() {
		size := w.Canvas().Size()
		prefs.SetInt("window.width", int(size.Width))
		prefs.SetInt("window.height", int(size.Height))
	})
	w.ShowAndRun()
	cancel()
	select {
	case <-sess.Done():
	case <-time.After(3 * time.Second):
		l.Warn("session did not stop in time")
	}
	return nil
}

func statusLine(v app.View) string {
	s := fmt.Sprintf("%s | %s | zoom %.0f%% | %d elements", v.Status, v.Mode, v.Zoom*100, len(v.Elements))
	if len(v.Selection.IDs) > 0 {
		s += fmt.Sprintf(" | %d selected", len(v.Selection.IDs))
	}
	if v.Stale {
		s += " | cached copy"
	}
	if v.Dropped > 0 {
		s += fmt.Sprintf(" | %d bad frames dropped", v.Dropped)
	}
	return s
}

func textOf(v app.View, id string) string {
	for _, e := range v.Elements {
		if e.ID == id {
			if p, ok := e.Props.(*scene.TextProps); ok {
				return p.Content
			}
		}
	}
	return ""
}

// SceneCanvas draws the latest View and turns pointer and key input into
// session inputs. Pan and zoom stay on the host side.
type SceneCanvas struct {
	widget.BaseWidget

	post    func(app.Input)
	unfocus func()

	view   app.View
	vp     Viewport
	clicks *clickCounter

	shift, alt, ctrl, space bool
	pressed, panning        bool
}

func NewSceneCanvas(post func(app.Input)) *SceneCanvas {
	sc := &SceneCanvas{post: post, vp: NewViewport(), clicks: newClickCounter()}
	sc.ExtendBaseWidget(sc)
	return sc
}

func (sc *SceneCanvas) SetView(v app.View) {
	sc.view = v
	sc.Refresh()
}

func (sc *SceneCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &sceneRenderer{sc: sc}
}

func (sc *SceneCanvas) MinSize() fyne.Size { return fyne.NewSize(400, 300) }

func (sc *SceneCanvas) scenePos(p fyne.Position) vector.Pt {
	return sc.vp.ToScene(vector.Pt{X: float64(p.X), Y: float64(p.Y)})
}

func (sc *SceneCanvas) mods(m fyne.KeyModifier) tool.Modifiers {
	return modifiers(
		sc.shift || m&fyne.KeyModifierShift != 0,
		sc.alt || m&fyne.KeyModifierAlt != 0,
		sc.ctrl || m&(fyne.KeyModifierControl|fyne.KeyModifierSuper) != 0,
		sc.space,
	)
}

func (sc *SceneCanvas) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	if sc.unfocus != nil {
		sc.unfocus()
	}
	if sc.space {
		sc.panning = true
		return
	}
	sc.pressed = true
	pos := sc.scenePos(ev.Position)
	sc.post(app.PointerDown(tool.PointerEvent{Pos: pos, Mods: sc.mods(ev.Modifier), Clicks: sc.clicks.press(pos, time.Now())}))
}

func (sc *SceneCanvas) MouseUp(ev *desktop.MouseEvent) {
	if sc.panning {
		sc.panning = false
		return
	}
	if !sc.pressed {
		return
	}
	sc.pressed = false
	sc.post(app.PointerUp(tool.PointerEvent{Pos: sc.scenePos(ev.Position), Mods: sc.mods(ev.Modifier)}))
}

func (sc *SceneCanvas) MouseIn(*desktop.MouseEvent) {}

func (sc *SceneCanvas) MouseMoved(ev *desktop.MouseEvent) {
	sc.post(app.PointerMove(tool.PointerEvent{Pos: sc.scenePos(ev.Position), Mods: sc.mods(ev.Modifier)}))
}

func (sc *SceneCanvas) MouseOut() {
	if sc.pressed {
		sc.pressed = false
		sc.post(app.Input{Kind: app.InputCaptureLost})
	}
}

func (sc *SceneCanvas) Dragged(ev *fyne.DragEvent) {
	if sc.panning {
		sc.vp.Pan = sc.vp.Pan.Add(vector.Pt{X: float64(ev.Dragged.DX), Y: float64(ev.Dragged.DY)})
		sc.Refresh()
		return
	}
	if sc.pressed {
		sc.post(app.PointerMove(tool.PointerEvent{Pos: sc.scenePos(ev.Position), Mods: sc.mods(0)}))
	}
}

func (sc *SceneCanvas) DragEnd() {}

// Scrolled zooms around the cursor with Ctrl held and pans otherwise. The
// scroll event carries no modifiers, so Ctrl comes from key tracking.
func (sc *SceneCanvas) Scrolled(ev *fyne.ScrollEvent) {
	if sc.ctrl {
		factor := math.Pow(1.1, float64(ev.Scrolled.DY)/10)
		sc.vp.ZoomAt(vector.Pt{X: float64(ev.Position.X), Y: float64(ev.Position.Y)}, factor)
		sc.post(app.Zoom(sc.vp.Zoom))
	} else {
		sc.vp.Pan = sc.vp.Pan.Add(vector.Pt{X: float64(ev.Scrolled.DX), Y: float64(ev.Scrolled.DY)})
	}
	sc.Refresh()
}

func (sc *SceneCanvas) trackModifier(name fyne.KeyName, down bool) bool {
	switch name {
	case desktop.KeyShiftLeft, desktop.KeyShiftRight:
		sc.shift = down
	case desktop.KeyAltLeft, desktop.KeyAltRight:
		sc.alt = down
	case desktop.KeyControlLeft, desktop.KeyControlRight, desktop.KeySuperLeft, desktop.KeySuperRight:
		sc.ctrl = down
	case fyne.KeySpace:
		sc.space = down
		if !down {
			sc.panning = false
		}
	default:
		return false
	}
	return true
}

func (sc *SceneCanvas) keyDown(ev *fyne.KeyEvent) {
	if sc.trackModifier(ev.Name, true) {
		return
	}
	if sc.ctrl {
		// Ctrl chords arrive as shortcuts.
		return
	}
	if k, ok := toolKey(string(ev.Name)); ok {
		sc.post(app.Key(tool.KeyEvent{Key: k, Mods: sc.mods(0)}))
	}
}

func (sc *SceneCanvas) keyUp(ev *fyne.KeyEvent) { sc.trackModifier(ev.Name, false) }

type sceneRenderer struct {
	sc      *SceneCanvas
	objects []fyne.CanvasObject
}

func (r *sceneRenderer) Destroy()                     {}
func (r *sceneRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *sceneRenderer) MinSize() fyne.Size           { return r.sc.MinSize() }
func (r *sceneRenderer) Refresh()                     { r.Layout(r.sc.Size()); canvas.Refresh(r.sc) }

// Layout rebuilds the whole object list; scenes this host shows are small.
func (r *sceneRenderer) Layout(size fyne.Size) {
	vp, v := r.sc.vp, r.sc.view
	bg := canvas.NewRectangle(bgColor)
	bg.Resize(size)
	objs := []fyne.CanvasObject{bg}

	d := displayOf(v)
	for _, it := range d.items {
		objs = append(objs, drawable(vp, it)...)
	}
	for _, g := range v.Guides {
		objs = append(objs, line(vp, g.From, g.To, guideColor, 1))
	}
	if d.selected {
		objs = append(objs, outlineRect(vp, d.selection, selectionColor))
	}
	if v.Marquee != nil {
		m := rect(vp, *v.Marquee, previewColor, selectionColor, 1, 0)
		objs = append(objs, m)
	}
	if v.Draw != nil {
		objs = append(objs, rect(vp, *v.Draw, previewColor, selectionColor, 1, 0))
	}
	objs = append(objs, penOverlay(vp, v)...)
	objs = append(objs, pathHandles(vp, v.PathHandles)...)
	r.objects = objs
}

func toPos(vp Viewport, p vector.Pt) fyne.Position {
	s := vp.ToScreen(p)
	return fyne.NewPos(float32(s.X), float32(s.Y))
}

func nrgba(p *scene.Paint) color.Color {
	if c, ok := export.PaintColor(p); ok {
		return c
	}
	return color.Transparent
}

func rect(vp Viewport, r vector.Rect, fill, stroke color.Color, width, radius float64) *canvas.Rectangle {
	s := vp.RectToScreen(r)
	o := canvas.NewRectangle(fill)
	o.StrokeColor = stroke
	o.StrokeWidth = float32(width)
	o.CornerRadius = float32(radius * vp.Zoom)
	o.Move(fyne.NewPos(float32(s.X), float32(s.Y)))
	o.Resize(fyne.NewSize(float32(s.W), float32(s.H)))
	return o
}

func outlineRect(vp Viewport, r vector.Rect, stroke color.Color) *canvas.Rectangle {
	return rect(vp, r, color.Transparent, stroke, 1, 0)
}

func line(vp Viewport, a, b vector.Pt, c color.Color, width float32) *canvas.Line {
	l := canvas.NewLine(c)
	l.StrokeWidth = width
	l.Position1, l.Position2 = toPos(vp, a), toPos(vp, b)
	return l
}

func dot(vp Viewport, p vector.Pt, c color.Color, radius float32) *canvas.Circle {
	d := canvas.NewCircle(c)
	s := toPos(vp, p)
	d.Move(fyne.NewPos(s.X-radius, s.Y-radius))
	d.Resize(fyne.NewSize(2*radius, 2*radius))
	return d
}

// drawable maps one display-list entry onto canvas objects. Unrotated boxes
// and ellipses use filled primitives; everything else is stroked along its
// flattened outline.
func drawable(vp Viewport, it export.Drawable) []fyne.CanvasObject {
	sw := it.StrokeWidth * vp.Zoom
	if it.Text != nil {
		return textLines(vp, it)
	}
	if it.Rotation == 0 && !it.Dashed && it.Kind != scene.KindPath {
		if it.Ellipse {
			s := vp.RectToScreen(it.Box)
			c := canvas.NewCircle(nrgba(it.Fill))
			c.StrokeColor, c.StrokeWidth = nrgba(it.Stroke), float32(sw)
			c.Move(fyne.NewPos(float32(s.X), float32(s.Y)))
			c.Resize(fyne.NewSize(float32(s.W), float32(s.H)))
			return []fyne.CanvasObject{c}
		}
		return []fyne.CanvasObject{rect(vp, it.Box, nrgba(it.Fill), nrgba(it.Stroke), sw, it.Radius)}
	}
	stroke := nrgba(it.Stroke)
	if it.Stroke == nil {
		stroke = nrgba(it.Fill)
	}
	var out []fyne.CanvasObject
	for _, poly := range it.Outline.Flatten(12) {
		for i := 1; i < len(poly); i++ {
			if it.Dashed && i%2 == 0 {
				continue
			}
			out = append(out, line(vp, poly[i-1], poly[i], stroke, float32(max(sw, 1))))
		}
	}
	return out
}

// textLines draws each wrapped line as its own canvas.Text in scene space.
func textLines(vp Viewport, it export.Drawable) []fyne.CanvasObject {
	t := it.Text
	size := t.FontSize
	if size <= 0 {
		size = textlayout.DefaultSize
	}
	st := textlayout.Style{Size: size, Align: t.Align, VerticalAlign: t.VerticalAlign, Wrap: true}
	var col color.Color = color.Black
	if c, ok := export.PaintColor(scene.Solid(t.FontColor)); ok {
		col = c
	}
	var out []fyne.CanvasObject
	for _, line := range textlayout.Layout(textlayout.BasicMeasurer{}, t.Content, st, it.Box).Lines {
		txt := canvas.NewText(line.Text, col)
		txt.TextSize = float32(size * vp.Zoom)
		txt.Move(toPos(vp, vector.Pt{X: line.X, Y: line.Baseline - size}))
		out = append(out, txt)
	}
	return out
}

func penOverlay(vp Viewport, v app.View) []fyne.CanvasObject {
	if len(v.Pen) == 0 {
		return nil
	}
	var out []fyne.CanvasObject
	for _, poly := range vector.ToPath(v.Pen, false).Flatten(12) {
		for i := 1; i < len(poly); i++ {
			out = append(out, line(vp, poly[i-1], poly[i], selectionColor, 1.5))
		}
	}
	last := v.Pen[len(v.Pen)-1].Anchor()
	out = append(out, line(vp, last, v.PenHover, previewColor, 1))
	for _, p := range v.Pen {
		out = append(out, dot(vp, p.Anchor(), selectionColor, 3))
	}
	return out
}

func pathHandles(vp Viewport, hs []app.PathHandle) []fyne.CanvasObject {
	var out []fyne.CanvasObject
	for _, h := range hs {
		for _, c := range []*vector.Pt{h.In, h.Out} {
			if c != nil {
				out = append(out, line(vp, h.Anchor, *c, handleColor, 1), dot(vp, *c, handleColor, 3))
			}
		}
		a := toPos(vp, h.Anchor)
		sq := canvas.NewRectangle(color.White)
		sq.StrokeColor, sq.StrokeWidth = selectionColor, 1
		sq.Move(fyne.NewPos(a.X-4, a.Y-4))
		sq.Resize(fyne.NewSize(8, 8))
		out = append(out, sq)
	}
	return out
}
