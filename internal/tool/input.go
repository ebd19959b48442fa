/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tool

import (
	"parsec/internal/pathedit"
	"parsec/internal/scene"
	"parsec/internal/vector"
)

// downMarquee claims presses on empty canvas in select mode.
func (m *Machine) downMarquee(ev PointerEvent) (bool, error) {
	if m.mode != ModeSelect || ev.Mods.Has(ModSpace) {
		return false, nil
	}
	if _, h := m.handleAt(ev.Pos); h != vector.HandleNone {
		return false, nil
	}
	if _, hit := m.model.HitTest(ev.Pos); hit {
		return false, nil
	}
	sel := m.model.Selection()
	if sel.GroupScope != "" {
		// Leaving the open group's area closes it.
		if b, ok := m.model.VisualBounds(sel.GroupScope); !ok || !b.Contains(ev.Pos) {
			m.model.SetGroupScope("")
		}
	}
	g := &marqueeGesture{m: m, start: ev.Pos, rect: vector.R(ev.Pos.X, ev.Pos.Y, 0, 0)}
	if ev.Mods.Has(ModShift) {
		g.additive = true
		g.base = m.model.Selection().IDs
	}
	m.mode = ModeMarquee
	m.begin(g)
	return true, nil
}

func (m *Machine) downDraw(ev PointerEvent) (bool, error) {
	if m.mode != ModeDraw {
		return false, nil
	}
	r := vector.R(ev.Pos.X, ev.Pos.Y, 0, 0)
	m.preview = &r
	m.begin(&drawGesture{m: m, start: ev.Pos, box: r})
	return true, nil
}

// downPen places an anchor, closes on the first anchor, or finalizes on a
// double-click.
func (m *Machine) downPen(ev PointerEvent) (bool, error) {
	if m.mode != ModePen {
		return false, nil
	}
	if ev.Clicks >= 2 {
		return true, m.finalizePen(false)
	}
	pts := m.pen.points
	if len(pts) >= 2 && ev.Pos.Dist(pts[0].Anchor()) <= m.scaled(m.cfg.PenCloseRadiusPx) {
		return true, m.finalizePen(true)
	}
	m.pen.points = append(m.pen.points, vector.PathPoint{X: ev.Pos.X, Y: ev.Pos.Y, HandleType: vector.HandleSymmetrical})
	m.pen.hover = ev.Pos
	m.begin(&penGesture{m: m, i: len(m.pen.points) - 1})
	return true, nil
}

// downPathEdit grabs an anchor or handle of the edited path. A press that
// misses leaves path-edit and is handed on to select.
func (m *Machine) downPathEdit(ev PointerEvent) (bool, error) {
	if m.mode != ModePathEdit || m.path == nil {
		return false, nil
	}
	ed := m.path
	t, ok := ed.HitTest(ev.Pos, m.scaled(m.cfg.HandleRadiusPx))
	if !ok {
		m.leaveEdit()
		return false, nil
	}
	m.anchor = -1
	if t.Part == pathedit.PartAnchor {
		m.anchor = t.Index
	}
	switch {
	case ev.Mods.Has(ModAlt) && t.Part == pathedit.PartAnchor:
		if p, ok := ed.Promote(t.Index); ok {
			return true, m.eng.Commit(p)
		}
		return true, nil
	case ev.Mods.Has(ModAlt):
		if p, ok := ed.RemoveHandle(t); ok {
			return true, m.eng.Commit(p)
		}
		return true, nil
	case ev.Clicks >= 2 && t.Part == pathedit.PartAnchor:
		if p, ok := ed.CycleType(t.Index); ok {
			return true, m.eng.Commit(p)
		}
		return true, nil
	}
	if ed.Begin(t, ev.Pos) {
		m.begin(&pathGesture{m: m, ed: ed})
	}
	return true, nil
}

// DeleteAnchor removes anchor i of the path being edited.
func (m *Machine) DeleteAnchor(i int) error {
	if m.mode != ModePathEdit || m.path == nil || m.cur != nil {
		return nil
	}
	if p, ok := m.path.DeleteAnchor(i); ok {
		return m.eng.Commit(p)
	}
	return nil
}

// downTextEdit keeps presses inside the edited text for the host's caret
// handling. Anything else leaves text-edit and falls through.
func (m *Machine) downTextEdit(ev PointerEvent) (bool, error) {
	if m.mode != ModeTextEdit {
		return false, nil
	}
	if b, ok := m.model.VisualBounds(m.textID); ok && b.Contains(ev.Pos) {
		return true, nil
	}
	m.leaveEdit()
	return false, nil
}

// downSelect resizes, moves, toggles, drills down or opens an editor.
func (m *Machine) downSelect(ev PointerEvent) (bool, error) {
	if m.mode != ModeSelect {
		return false, nil
	}
	if ev.Mods.Has(ModSpace) {
		// Pan belongs to the host.
		return true, nil
	}
	if el, h := m.handleAt(ev.Pos); h != vector.HandleNone {
		m.begin(m.newResize(el, h, ev.Pos))
		return true, nil
	}
	hit, ok := m.model.HitTest(ev.Pos)
	if !ok {
		return false, nil
	}
	if ev.Clicks >= 2 {
		return true, m.doubleClick(hit, ev.Pos)
	}
	if ev.Mods.Has(ModShift) {
		m.model.ToggleSelected(hit)
		if !m.model.Selection().Has(hit) {
			return true, nil
		}
	} else if !m.model.Selection().Has(hit) {
		m.model.Select(hit)
	}
	m.begin(m.newMove(m.selectionRoots(), ev.Pos))
	return true, nil
}

// doubleClick drills into an unopened container, or opens a path or text
// element for editing.
func (m *Machine) doubleClick(hit string, at vector.Pt) error {
	el, ok := m.model.Get(hit)
	if !ok {
		return nil
	}
	switch el.Kind() {
	case scene.KindGroup, scene.KindFrame:
		prev := m.model.Selection().GroupScope
		m.model.SetGroupScope(hit)
		if child, ok := m.model.HitTest(at); ok && child != hit {
			m.model.Select(child)
			return nil
		}
		m.model.SetGroupScope(prev)
		m.model.Select(hit)
	case scene.KindPath:
		m.enterPathEdit(hit)
	case scene.KindText:
		m.enterTextEdit(hit)
	default:
		m.model.Select(hit)
	}
	return nil
}
