/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package reconcile is the single writer of the local scene. Every user
// mutation is applied optimistically, then forwarded to the remote
// authority; every authoritative push overwrites the local copy.
package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	applog "parsec/internal/log"
	"parsec/internal/scene"
	"parsec/internal/vector"
	"parsec/internal/wire"
)

var ErrEmptyPrompt = errors.New("reconcile: empty prompt")

// Sender delivers outbound messages. Send must not block the caller.
type Sender interface {
	Send(wire.Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(wire.Message) error

func (f SenderFunc) Send(m wire.Message) error { return f(m) }

type Options struct {
	Outbox OutboxConfig
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine owns the optimistic apply / reconcile cycle. Like the model it
// drives, it is confined to the session loop.
type Engine struct {
	model *scene.Model
	out   Sender
	box   *Outbox
	seq   uint64
	now   func() time.Time
	log   *slog.Logger

	onSnapshot []func(scene.Snapshot)
	onStatus   []func(json.RawMessage)
}

func New(model *scene.Model, out Sender, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		model: model,
		out:   out,
		box:   NewOutbox(opts.Outbox),
		now:   opts.Now,
		log:   applog.WithComponent("reconcile"),
	}
}

func (e *Engine) Model() *scene.Model { return e.model }

// Seq returns the sequence number of the last committed message.
func (e *Engine) Seq() uint64 { return e.seq }

// Outbox exposes the coalescing queue for diagnostics.
func (e *Engine) Outbox() *Outbox { return e.box }

// OnSnapshot registers fn to run after every full snapshot is applied.
func (e *Engine) OnSnapshot(fn func(scene.Snapshot)) { e.onSnapshot = append(e.onSnapshot, fn) }

// OnStatus registers fn for opaque status pushes.
func (e *Engine) OnStatus(fn func(json.RawMessage)) { e.onStatus = append(e.onStatus, fn) }

func (e *Engine) send(m wire.Message, err error) error {
	if err != nil {
		return fmt.Errorf("reconcile: encode: %w", err)
	}
	if m.Class == wire.Committed && m.Type != wire.TypeRequestWorkspaceState {
		e.seq++
		m.Seq = e.seq
	}
	if err := e.out.Send(m); err != nil {
		e.log.Warn("send failed", slog.String("type", m.Type), slog.Uint64("seq", m.Seq), slog.Any("err", err))
		return fmt.Errorf("reconcile: send %s: %w", m.Type, err)
	}
	return nil
}

func (e *Engine) known(ps []scene.Patch) []scene.Patch {
	out := make([]scene.Patch, 0, len(ps))
	for _, p := range ps {
		if _, ok := e.model.Get(p.ID); ok {
			out = append(out, p)
		}
	}
	return out
}

// Preview applies live gesture feedback and forwards it as ephemeral
// updates, rate limited per element.
func (e *Engine) Preview(ps ...scene.Patch) error {
	ps = e.known(ps)
	if len(ps) == 0 {
		return nil
	}
	if err := e.model.ApplyBatch(ps); err != nil {
		return err
	}
	now := e.now()
	for _, p := range ps {
		if ready, ok := e.box.Offer(p, now); ok {
			if err := e.send(wire.UpdateElement(ready, wire.Ephemeral)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush sends the pending ephemeral updates whose interval has elapsed.
func (e *Engine) Flush() error {
	for _, p := range e.box.Due(e.now()) {
		if err := e.send(wire.UpdateElement(p, wire.Ephemeral)); err != nil {
			return err
		}
	}
	return nil
}

// NextFlush reports when Flush next has work to do.
func (e *Engine) NextFlush() (time.Time, bool) { return e.box.Next() }

// Commit applies the final state of a discrete action and sends one
// committed update per element. Pending ephemeral updates for those
// elements are superseded and never sent.
func (e *Engine) Commit(ps ...scene.Patch) error {
	ps = e.known(ps)
	if len(ps) == 0 {
		return nil
	}
	for _, p := range ps {
		e.box.Drop(p.ID)
	}
	if err := e.model.ApplyBatch(ps); err != nil {
		return err
	}
	for _, p := range ps {
		if err := e.send(wire.UpdateElement(p, wire.Committed)); err != nil {
			return err
		}
	}
	return nil
}

// Restore puts back the pre-gesture copies of elements without any
// outbound traffic. Used when a gesture is cancelled.
func (e *Engine) Restore(originals []*scene.Element) {
	cp := make([]*scene.Element, 0, len(originals))
	for _, o := range originals {
		e.box.Drop(o.ID)
		if _, ok := e.model.Get(o.ID); ok {
			cp = append(cp, o.Clone())
		}
	}
	e.model.UpsertBatch(cp)
}

// Create adds one element locally and asks the authority to create it.
func (e *Engine) Create(el *scene.Element) error {
	e.model.Upsert(el)
	e.model.Select(el.ID)
	return e.send(wire.CreateElement(el))
}

// CreateBatch adds many elements with a single scene update and a single
// message, then selects the top-level ones.
func (e *Engine) CreateBatch(els []*scene.Element) error {
	if len(els) == 0 {
		return nil
	}
	e.model.UpsertBatch(els)
	var roots []string
	for _, el := range els {
		if el.ParentID == "" || !slices.ContainsFunc(els, func(o *scene.Element) bool { return o.ID == el.ParentID }) {
			roots = append(roots, el.ID)
		}
	}
	e.model.Select(roots...)
	return e.send(wire.CreateElementsBatch(els))
}

// Delete removes the elements and their descendants locally and sends one
// committed delete per requested id.
func (e *Engine) Delete(ids ...string) error {
	var sent []string
	for _, id := range ids {
		if _, ok := e.model.Get(id); !ok {
			continue
		}
		for _, r := range e.model.RemoveTree(id) {
			e.box.Drop(r)
		}
		sent = append(sent, id)
	}
	for _, id := range sent {
		if err := e.send(wire.DeleteElement(id)); err != nil {
			return err
		}
	}
	return nil
}

// DeleteSelection deletes whatever is selected.
func (e *Engine) DeleteSelection() error {
	return e.Delete(e.model.Selection().IDs...)
}

// Group asks the authority to wrap ids in a new group. The group id is
// assigned remotely, so the local scene changes when the push arrives.
func (e *Engine) Group(ids []string) error {
	if len(ids) < 2 {
		return nil
	}
	return e.send(wire.GroupElements(ids))
}

// Ungroup releases a group's children; the authority pushes the result.
func (e *Engine) Ungroup(id string) error {
	el, ok := e.model.Get(id)
	if !ok || !el.Kind().IsContainer() {
		return nil
	}
	return e.send(wire.UngroupElement(id))
}

// Reparent moves child under parent ("" for top level) keeping its
// absolute position. Moves that would create a cycle are rejected locally
// and never sent.
func (e *Engine) Reparent(child, parent string) error {
	if err := e.model.CanReparent(child, parent); err != nil {
		return err
	}
	el, _ := e.model.Get(child)
	abs, _ := e.model.AbsoluteBounds(child)
	var origin vector.Pt
	if parent != "" {
		pb, _ := e.model.AbsoluteBounds(parent)
		origin = pb.Min()
	}
	z := 0
	for _, s := range e.model.Children(parent) {
		z = max(z, s.ZIndex+1)
	}
	var pid any
	if parent != "" {
		pid = parent
	}
	p := scene.Patch{ID: el.ID, Fields: map[string]any{
		"x": abs.X - origin.X, "y": abs.Y - origin.Y, "parentId": pid, "zIndex": z,
	}}
	e.box.Drop(child)
	if err := e.model.ApplyPatch(p); err != nil {
		return err
	}
	return e.send(wire.ReparentElement(child, parent))
}

// restack assigns consecutive z values to sibs starting at base and
// returns patches for the ones that changed.
func restack(sibs []*scene.Element, base int) []scene.Patch {
	var ps []scene.Patch
	for i, s := range sibs {
		if s.ZIndex != base+i {
			ps = append(ps, scene.Patch{ID: s.ID, Fields: map[string]any{"zIndex": base + i}})
		}
	}
	return ps
}

// Reorder moves id within its siblings' stacking order.
func (e *Engine) Reorder(id string, cmd wire.ReorderCommand) error {
	el, ok := e.model.Get(id)
	if !ok {
		return nil
	}
	sibs := e.model.Children(el.ParentID)
	idx := slices.IndexFunc(sibs, func(s *scene.Element) bool { return s.ID == id })
	base := sibs[0].ZIndex
	sibs = slices.Delete(sibs, idx, idx+1)
	var at int
	switch cmd {
	case wire.BringToFront:
		at = len(sibs)
	case wire.BringForward:
		at = min(idx+1, len(sibs))
	case wire.SendBackward:
		at = max(idx-1, 0)
	case wire.SendToBack:
		at = 0
	default:
		return fmt.Errorf("reconcile: unknown reorder command %q", cmd)
	}
	sibs = slices.Insert(sibs, at, el)
	if err := e.model.ApplyBatch(restack(sibs, base)); err != nil {
		return err
	}
	return e.send(wire.ReorderElement(id, cmd))
}

// ReorderLayer drops dragged directly above or below target in the layer
// list. Siblings are restacked locally; a move across parents is left to
// the authority's push.
func (e *Engine) ReorderLayer(dragged, target string, pos wire.Position) error {
	d, ok1 := e.model.Get(dragged)
	t, ok2 := e.model.Get(target)
	if !ok1 || !ok2 || dragged == target {
		return nil
	}
	if d.ParentID == t.ParentID {
		sibs := e.model.Children(d.ParentID)
		base := sibs[0].ZIndex
		sibs = slices.DeleteFunc(sibs, func(s *scene.Element) bool { return s.ID == dragged })
		at := slices.IndexFunc(sibs, func(s *scene.Element) bool { return s.ID == target })
		if pos == wire.Above {
			at++
		}
		sibs = slices.Insert(sibs, at, d)
		if err := e.model.ApplyBatch(restack(sibs, base)); err != nil {
			return err
		}
	}
	return e.send(wire.ReorderLayer(dragged, target, pos))
}

// slides returns frames in presentation order.
func (e *Engine) slides() []*scene.Element {
	var out []*scene.Element
	for _, el := range e.model.Ordered() {
		if fp, ok := el.Props.(*scene.FrameProps); ok && fp.PresentationOrder != nil {
			out = append(out, el)
		}
	}
	slices.SortStableFunc(out, func(a, b *scene.Element) int {
		return *a.Props.(*scene.FrameProps).PresentationOrder - *b.Props.(*scene.FrameProps).PresentationOrder
	})
	return out
}

func orderPatches(frames []string, dropped []*scene.Element) []scene.Patch {
	var ps []scene.Patch
	for i, id := range frames {
		ps = append(ps, scene.Patch{ID: id, Fields: map[string]any{"presentationOrder": i}})
	}
	for _, el := range dropped {
		if !slices.Contains(frames, el.ID) {
			ps = append(ps, scene.Patch{ID: el.ID, Fields: map[string]any{"presentationOrder": nil}})
		}
	}
	return ps
}

// SetPresentationOrder replaces the slide order. Frames not listed leave
// the presentation.
func (e *Engine) SetPresentationOrder(frameIDs []string) error {
	var ids []string
	for _, id := range frameIDs {
		if el, ok := e.model.Get(id); ok && el.Kind() == scene.KindFrame {
			ids = append(ids, id)
		}
	}
	if err := e.model.ApplyBatch(orderPatches(ids, e.slides())); err != nil {
		return err
	}
	return e.send(wire.SetPresentationOrder(ids))
}

// AddToPresentation appends a frame as the last slide.
func (e *Engine) AddToPresentation(frameID string) error {
	el, ok := e.model.Get(frameID)
	if !ok || el.Kind() != scene.KindFrame {
		return nil
	}
	cur := e.slides()
	if slices.ContainsFunc(cur, func(s *scene.Element) bool { return s.ID == frameID }) {
		return nil
	}
	if err := e.model.ApplyPatch(scene.Patch{ID: frameID, Fields: map[string]any{"presentationOrder": len(cur)}}); err != nil {
		return err
	}
	return e.send(wire.AddToPresentation(frameID))
}

// ReorderSlide moves one slide before (above) or after (below) another.
func (e *Engine) ReorderSlide(dragged, target string, pos wire.Position) error {
	cur := e.slides()
	ids := make([]string, 0, len(cur))
	for _, s := range cur {
		if s.ID != dragged {
			ids = append(ids, s.ID)
		}
	}
	at := slices.Index(ids, target)
	if at < 0 || len(ids) == len(cur) {
		return nil
	}
	if pos == wire.Below {
		at++
	}
	ids = slices.Insert(ids, at, dragged)
	if err := e.model.ApplyBatch(orderPatches(ids, nil)); err != nil {
		return err
	}
	return e.send(wire.ReorderSlide(dragged, target, pos))
}

// Undo and Redo are committed-only; the authority answers with a snapshot.
func (e *Engine) Undo() error { return e.send(wire.Undo()) }

func (e *Engine) Redo() error { return e.send(wire.Redo()) }

// RequestSnapshot asks for a full workspace state, e.g. after a reconnect.
func (e *Engine) RequestSnapshot() error { return e.send(wire.RequestWorkspaceState()) }

// Prompt sends free text for the authority's agent with the current
// selection. Nothing changes locally; the edits arrive as pushes.
func (e *Engine) Prompt(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyPrompt
	}
	return e.send(wire.UserPrompt(text, e.model.Selection().IDs))
}

// Apply reconciles one authoritative push into the scene.
func (e *Engine) Apply(in wire.Inbound) error {
	switch in.Type {
	case wire.TypeSetWorkspaceState, wire.TypeWorkspaceReset:
		if in.Snapshot == nil {
			return fmt.Errorf("%w: %s without snapshot", wire.ErrMalformed, in.Type)
		}
		e.box.Reset()
		e.model.Replace(*in.Snapshot)
		for _, fn := range e.onSnapshot {
			fn(*in.Snapshot)
		}
	case wire.TypeElementCreated, wire.TypeElementsCreated, wire.TypeElementUpdated, wire.TypeElementsUpdated:
		e.model.UpsertBatch(in.Elements)
	case wire.TypeElementDeleted:
		e.box.Drop(in.DeletedID)
		e.model.Remove(in.DeletedID)
	case wire.TypeComponentDefinitionCreated:
		if in.Definition != nil {
			e.model.AddComponentDefinition(*in.Definition)
		}
	case wire.TypeAssetCreated:
		if in.Asset != nil {
			e.model.AddAsset(*in.Asset)
		}
	case wire.TypeAssetDeleted:
		e.model.RemoveAsset(in.DeletedID)
	case wire.TypeStatusUpdate:
		for _, fn := range e.onStatus {
			fn(in.Status)
		}
	default:
		return fmt.Errorf("%w: %q", wire.ErrUnknownType, in.Type)
	}
	return nil
}
