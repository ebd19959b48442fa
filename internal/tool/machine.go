/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package tool arbitrates pointer and keyboard input between the editing
// modes and turns finished gestures into scene commands.
//
// A Machine is driven from one goroutine. Pointer positions are in scene
// coordinates; the host converts from screen space and reports the zoom so
// pixel thresholds can be scaled.
package tool

import (
	"errors"
	"log/slog"
	"math"
	"slices"

	"parsec/internal/clipboard"
	"parsec/internal/config"
	applog "parsec/internal/log"
	"parsec/internal/pathedit"
	"parsec/internal/reconcile"
	"parsec/internal/scene"
	"parsec/internal/vector"
	"parsec/internal/wire"
)

// Mode is the active interaction mode. Exactly one is active at a time.
type Mode uint8

const (
	ModeSelect Mode = iota
	ModeDraw
	ModePen
	ModeMarquee
	ModePathEdit
	ModeTextEdit
)

func (m Mode) String() string {
	switch m {
	case ModeSelect:
		return "select"
	case ModeDraw:
		return "draw-shape"
	case ModePen:
		return "pen"
	case ModeMarquee:
		return "marquee"
	case ModePathEdit:
		return "path-edit"
	case ModeTextEdit:
		return "text-edit"
	}
	return "unknown"
}

// Modifiers is the set of held modifier keys.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModAlt
	ModCtrl
	// ModSpace is the pan modifier; while held the canvas belongs to the host.
	ModSpace
)

func (m Modifiers) Has(o Modifiers) bool { return m&o != 0 }

// PointerEvent is a press, move or release. Clicks counts consecutive
// presses (2 on the second press of a double-click).
type PointerEvent struct {
	Pos    vector.Pt
	Mods   Modifiers
	Clicks int
}

// KeyEvent carries a key name ("Escape", "Enter", "ArrowLeft", "z", "]", ...).
type KeyEvent struct {
	Key  string
	Mods Modifiers
}

// Config holds the editor tunables. Pixel values are screen pixels.
type Config struct {
	SnapThresholdPx  float64
	PenCloseRadiusPx float64
	HandleRadiusPx   float64
	MinDrawSize      float64
	NudgeStep        float64
	PasteOffset      float64
}

// ConfigFrom maps the editor section of the application config.
func ConfigFrom(c config.EditorConfig) Config {
	return Config{
		SnapThresholdPx:  c.SnapThresholdPx,
		PenCloseRadiusPx: c.PenCloseRadiusPx,
		HandleRadiusPx:   c.HandleRadiusPx,
		MinDrawSize:      c.MinDrawSize,
		NudgeStep:        c.NudgeStep,
		PasteOffset:      10,
	}
}

func (c Config) withDefaults() Config {
	if c.SnapThresholdPx <= 0 {
		c.SnapThresholdPx = 6
	}
	if c.PenCloseRadiusPx <= 0 {
		c.PenCloseRadiusPx = 8
	}
	if c.HandleRadiusPx <= 0 {
		c.HandleRadiusPx = 6
	}
	if c.MinDrawSize <= 0 {
		c.MinDrawSize = 2
	}
	if c.NudgeStep <= 0 {
		c.NudgeStep = 1
	}
	return c
}

// Clipboard is the copy/paste store the machine is handed by its session.
type Clipboard interface {
	Copy(els []*scene.Element) error
	Paste(offset float64) ([]*scene.Element, error)
}

// GestureEvent reports a finished gesture.
type GestureEvent struct {
	Name  string
	Phase Phase
}

// handler tries to claim a pointer-down. The first to accept wins.
type handler func(m *Machine, ev PointerEvent) (bool, error)

// handlers in arbitration order.
var handlers = []handler{
	(*Machine).downMarquee,
	(*Machine).downDraw,
	(*Machine).downPen,
	(*Machine).downPathEdit,
	(*Machine).downTextEdit,
	(*Machine).downSelect,
}

// Machine is the tool state machine for one session.
type Machine struct {
	cfg   Config
	model *scene.Model
	eng   *reconcile.Engine
	clip  Clipboard
	zoom  float64
	log   *slog.Logger

	mode      Mode
	drawKind  scene.Kind
	drawShape scene.ShapeType

	cur   gesture
	phase Phase
	last  string

	pen     pen
	path    *pathedit.Editor
	anchor  int
	textID  string
	preview *vector.Rect
	marquee *vector.Rect

	hooks []func(GestureEvent)
}

// New creates a machine in select mode driving eng's model.
func New(eng *reconcile.Engine, clip Clipboard, cfg Config) *Machine {
	m := &Machine{
		cfg:   cfg.withDefaults(),
		model: eng.Model(),
		eng:   eng,
		clip:  clip,
		zoom:  1,
		log:   applog.WithComponent("tool"),
	}
	m.model.Subscribe(m.onChange)
	return m
}

// OnGesture registers fn for every committed or cancelled gesture.
func (m *Machine) OnGesture(fn func(GestureEvent)) { m.hooks = append(m.hooks, fn) }

func (m *Machine) Mode() Mode               { return m.mode }
func (m *Machine) Zoom() float64            { return m.zoom }
func (m *Machine) Config() Config           { return m.cfg }
func (m *Machine) TextID() string           { return m.textID }
func (m *Machine) Editor() *pathedit.Editor { return m.path }

// Gesture returns the name and phase of the current gesture slot. After a
// gesture finishes the slot reports its final phase until the next press.
func (m *Machine) Gesture() (string, Phase) { return m.last, m.phase }

// DrawPreview is the rubber-band box of an in-flight shape draw.
func (m *Machine) DrawPreview() (vector.Rect, bool) { return deref(m.preview) }

// Marquee is the in-flight selection rectangle.
func (m *Machine) Marquee() (vector.Rect, bool) { return deref(m.marquee) }

// PenPoints returns the accumulated pen anchors in scene coordinates and
// the hover point for the rubber-band segment.
func (m *Machine) PenPoints() ([]vector.PathPoint, vector.Pt) {
	return vector.ClonePoints(m.pen.points), m.pen.hover
}

func deref(r *vector.Rect) (vector.Rect, bool) {
	if r == nil {
		return vector.Rect{}, false
	}
	return *r, true
}

// SetZoom updates the screen-to-scene scale used for pixel thresholds.
func (m *Machine) SetZoom(z float64) {
	if z > 0 {
		m.zoom = z
	}
}

// scaled converts a screen pixel distance to scene units.
func (m *Machine) scaled(px float64) float64 { return px / m.zoom }

func (m *Machine) snapOptions() vector.SnapOptions {
	return vector.SnapOptions{ThresholdPx: m.cfg.SnapThresholdPx, Zoom: m.zoom}
}

// SetMode switches tools. Any gesture in flight is cancelled and modal
// editing ends. Use SetDrawTool for draw-shape.
func (m *Machine) SetMode(mode Mode) {
	if mode == ModeDraw {
		m.SetDrawTool(scene.KindShape, scene.ShapeRect)
		return
	}
	m.switchTo(mode)
}

// SetDrawTool arms draw-shape for kind. shape only matters for KindShape.
func (m *Machine) SetDrawTool(kind scene.Kind, shape scene.ShapeType) {
	m.switchTo(ModeDraw)
	m.drawKind, m.drawShape = kind, shape
}

func (m *Machine) switchTo(mode Mode) {
	if m.cur != nil {
		m.cancelGesture()
	}
	if m.mode == ModePathEdit || m.mode == ModeTextEdit {
		m.leaveEdit()
	}
	if mode != ModePen {
		m.pen.reset()
	}
	if mode == ModePathEdit || mode == ModeTextEdit || mode == ModeMarquee {
		// Entered through gestures, not directly.
		mode = ModeSelect
	}
	m.mode = mode
}

// PointerDown offers ev to the handlers in priority order.
func (m *Machine) PointerDown(ev PointerEvent) error {
	if m.cur != nil {
		// A press without a release; the old gesture lost its pointer.
		m.cancelGesture()
	}
	for _, h := range handlers {
		ok, err := h(m, ev)
		if err != nil || ok {
			return err
		}
	}
	return nil
}

// PointerMove feeds the active gesture, or tracks hover for the pen.
func (m *Machine) PointerMove(ev PointerEvent) error {
	if m.cur == nil {
		if m.mode == ModePen {
			m.pen.hover = ev.Pos
		}
		return nil
	}
	return m.cur.move(ev)
}

// PointerUp ends the active gesture and applies its result.
func (m *Machine) PointerUp(ev PointerEvent) error {
	g := m.cur
	if g == nil {
		return nil
	}
	if err := g.move(ev); err != nil {
		m.cancelGesture()
		return err
	}
	m.cur = nil
	err := g.end(ev)
	m.finish(g.name(), PhaseCommitted)
	return err
}

// CaptureLost cancels the active gesture, restoring what it changed
// without sending anything.
func (m *Machine) CaptureLost() {
	if m.cur != nil {
		m.cancelGesture()
	}
}

func (m *Machine) begin(g gesture) {
	m.cur = g
	m.last = g.name()
	m.phase = PhaseActive
}

func (m *Machine) cancelGesture() {
	g := m.cur
	m.cur = nil
	g.cancel()
	m.finish(g.name(), PhaseCancelled)
}

func (m *Machine) finish(name string, p Phase) {
	m.last, m.phase = name, p
	for _, fn := range m.hooks {
		fn(GestureEvent{Name: name, Phase: p})
	}
}

// onChange keeps modal state in line with the model. It never writes back
// into the model, since it runs inside the model's notification.
func (m *Machine) onChange(c scene.Change) {
	if c.Reset {
		if m.cur != nil {
			// Originals belong to the replaced scene; nothing to restore.
			g := m.cur
			m.cur = nil
			m.finish(g.name(), PhaseCancelled)
		}
		m.preview, m.marquee = nil, nil
	}
	editing := m.model.Selection().EditingID
	switch m.mode {
	case ModePathEdit:
		if m.path == nil || editing != m.path.ID() {
			m.dropEdit()
			return
		}
		if slices.Contains(c.IDs, m.path.ID()) && !m.path.Dragging() {
			m.reopenPath()
		}
	case ModeTextEdit:
		if editing != m.textID {
			m.dropEdit()
		}
	}
}

func (m *Machine) dropEdit() {
	if m.cur != nil {
		if _, ok := m.cur.(*pathGesture); ok {
			g := m.cur
			m.cur = nil
			g.cancel()
			m.finish(g.name(), PhaseCancelled)
		}
	}
	m.path, m.textID = nil, ""
	m.mode = ModeSelect
}

// leaveEdit ends path or text editing from the machine's side.
func (m *Machine) leaveEdit() {
	m.dropEdit()
	if m.model.Selection().EditingID != "" {
		m.model.SetEditing("")
	}
}

func (m *Machine) reopenPath() {
	el, ok := m.model.Get(m.path.ID())
	if !ok {
		return
	}
	abs, _ := m.model.AbsoluteBounds(el.ID)
	if ed, err := pathedit.Open(el, abs); err == nil {
		m.path = ed
	}
}

// enterPathEdit opens id in the path editor.
func (m *Machine) enterPathEdit(id string) bool {
	el, ok := m.model.Get(id)
	if !ok {
		return false
	}
	abs, _ := m.model.AbsoluteBounds(id)
	ed, err := pathedit.Open(el, abs)
	if err != nil {
		return false
	}
	m.model.Select(id)
	m.model.SetEditing(id)
	m.path = ed
	m.anchor = -1
	m.mode = ModePathEdit
	return true
}

func (m *Machine) enterTextEdit(id string) {
	m.model.Select(id)
	m.model.SetEditing(id)
	m.textID = id
	m.mode = ModeTextEdit
}

// CommitText stores the text being edited as one committed update.
func (m *Machine) CommitText(content string) error {
	if m.mode != ModeTextEdit || m.textID == "" {
		return nil
	}
	el, ok := m.model.Get(m.textID)
	if !ok {
		return nil
	}
	if tp, ok := el.Props.(*scene.TextProps); ok && tp.Content == content {
		return nil
	}
	return m.eng.Commit(scene.Patch{ID: m.textID, Fields: map[string]any{"content": content}})
}

// selectionRoots drops selected ids that have a selected ancestor.
func (m *Machine) selectionRoots() []string {
	sel := m.model.Selection()
	var out []string
	for _, id := range sel.IDs {
		nested := false
		for _, a := range m.model.Ancestors(id) {
			if sel.Has(a) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, id)
		}
	}
	return out
}

// scopeOrigin returns the parent for new elements and its absolute origin.
func (m *Machine) scopeOrigin() (string, vector.Pt) {
	scope := m.model.Selection().GroupScope
	if scope == "" {
		return "", vector.Pt{}
	}
	b, ok := m.model.AbsoluteBounds(scope)
	if !ok {
		return "", vector.Pt{}
	}
	return scope, b.Min()
}

// Key handles keyboard commands.
func (m *Machine) Key(ev KeyEvent) error {
	ctrl, shift := ev.Mods.Has(ModCtrl), ev.Mods.Has(ModShift)
	switch ev.Key {
	case "Escape":
		m.escape()
		return nil
	case "Enter":
		if m.mode == ModePen {
			return m.finalizePen(false)
		}
		return nil
	}
	if m.cur != nil || m.mode == ModeTextEdit {
		// Text input and live gestures own the keyboard.
		return nil
	}
	switch ev.Key {
	case "Delete", "Backspace":
		if m.mode == ModePathEdit {
			i := m.anchor
			m.anchor = -1
			return m.DeleteAnchor(i)
		}
		return m.eng.DeleteSelection()
	case "ArrowLeft":
		return m.nudge(-1, 0, shift)
	case "ArrowRight":
		return m.nudge(1, 0, shift)
	case "ArrowUp":
		return m.nudge(0, -1, shift)
	case "ArrowDown":
		return m.nudge(0, 1, shift)
	case "]":
		if ctrl {
			return m.reorder(wire.BringToFront)
		}
		return m.reorder(wire.BringForward)
	case "[":
		if ctrl {
			return m.reorder(wire.SendToBack)
		}
		return m.reorder(wire.SendBackward)
	}
	if ctrl {
		switch ev.Key {
		case "z":
			if shift {
				return m.eng.Redo()
			}
			return m.eng.Undo()
		case "y":
			return m.eng.Redo()
		case "c":
			return m.copySelection()
		case "v":
			return m.paste()
		case "d":
			return m.duplicate()
		case "g":
			if shift {
				return m.ungroup()
			}
			return m.eng.Group(m.selectionRoots())
		}
		return nil
	}
	switch ev.Key {
	case "v":
		m.SetMode(ModeSelect)
	case "p":
		m.SetMode(ModePen)
	case "r":
		m.SetDrawTool(scene.KindShape, scene.ShapeRect)
	case "o":
		m.SetDrawTool(scene.KindShape, scene.ShapeEllipse)
	case "t":
		m.SetDrawTool(scene.KindText, "")
	case "f":
		m.SetDrawTool(scene.KindFrame, "")
	}
	return nil
}

// escape unwinds one level: gesture, pen points, modal edit, tool, group
// scope, selection.
func (m *Machine) escape() {
	switch {
	case m.cur != nil:
		m.cancelGesture()
	case m.mode == ModePen && len(m.pen.points) > 0:
		m.pen.reset()
	case m.mode == ModePathEdit || m.mode == ModeTextEdit:
		m.leaveEdit()
	case m.mode != ModeSelect:
		m.switchTo(ModeSelect)
	case m.model.Selection().GroupScope != "":
		scope := m.model.Selection().GroupScope
		parent := ""
		if el, ok := m.model.Get(scope); ok {
			parent = el.ParentID
		}
		m.model.SetGroupScope(parent)
		m.model.Select(scope)
	default:
		m.model.ClearSelection()
	}
}

func (m *Machine) nudge(dx, dy float64, big bool) error {
	step := m.cfg.NudgeStep
	if big {
		step *= 10
	}
	var ps []scene.Patch
	for _, id := range m.selectionRoots() {
		if el, ok := m.model.Get(id); ok {
			ps = append(ps, scene.MovePatch(id, el.X+dx*step, el.Y+dy*step))
		}
	}
	return m.eng.Commit(ps...)
}

func (m *Machine) reorder(cmd wire.ReorderCommand) error {
	for _, id := range m.selectionRoots() {
		if err := m.eng.Reorder(id, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) ungroup() error {
	id := m.model.Selection().Primary()
	if el, ok := m.model.Get(id); ok && el.Kind() == scene.KindGroup {
		return m.eng.Ungroup(id)
	}
	return nil
}

// selectionTree clones the selection roots, in absolute coordinates and
// without parents, followed by their descendants.
func (m *Machine) selectionTree() []*scene.Element {
	var out []*scene.Element
	for _, id := range m.selectionRoots() {
		el, ok := m.model.Get(id)
		if !ok {
			continue
		}
		root := el.Clone()
		abs, _ := m.model.AbsoluteBounds(id)
		root.X, root.Y, root.ParentID = abs.X, abs.Y, ""
		out = append(out, root)
		for _, d := range m.model.Descendants(id) {
			if de, ok := m.model.Get(d); ok {
				out = append(out, de.Clone())
			}
		}
	}
	return out
}

func (m *Machine) copySelection() error {
	if m.clip == nil {
		return nil
	}
	els := m.selectionTree()
	if len(els) == 0 {
		return nil
	}
	return m.clip.Copy(els)
}

func (m *Machine) paste() error {
	if m.clip == nil {
		return nil
	}
	els, err := m.clip.Paste(m.cfg.PasteOffset)
	if errors.Is(err, clipboard.ErrEmpty) {
		return nil
	}
	if err != nil {
		return err
	}
	return m.createInScope(els)
}

func (m *Machine) duplicate() error {
	els := m.selectionTree()
	if len(els) == 0 {
		return nil
	}
	return m.createInScope(clipboard.Reassign(els, m.cfg.PasteOffset, m.cfg.PasteOffset))
}

// createInScope places top-level elements into the current group scope and
// creates everything in one batch.
func (m *Machine) createInScope(els []*scene.Element) error {
	parent, origin := m.scopeOrigin()
	if parent != "" {
		for _, el := range els {
			if el.ParentID == "" {
				el.ParentID = parent
				el.X -= origin.X
				el.Y -= origin.Y
			}
		}
	}
	return m.eng.CreateBatch(els)
}

// square expands r to a square away from the anchor point a.
func square(a vector.Pt, r vector.Rect) vector.Rect {
	side := math.Max(r.W, r.H)
	out := vector.R(a.X, a.Y, side, side)
	if r.X < a.X {
		out.X = a.X - side
	}
	if r.Y < a.Y {
		out.Y = a.Y - side
	}
	return out
}
