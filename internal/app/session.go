/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package app is the editing session: it owns the scene model, the protocol
// engine, the tool machine, the clipboard, the transport and the snapshot
// cache, and runs them on one event loop. Hosts post input and observe views.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"parsec/internal/backend"
	"parsec/internal/clipboard"
	"parsec/internal/config"
	"parsec/internal/crash"
	applog "parsec/internal/log"
	"parsec/internal/reconcile"
	"parsec/internal/scene"
	"parsec/internal/storage"
	"parsec/internal/telemetry"
	"parsec/internal/tool"
	"parsec/internal/wire"
)

// ErrClosed is returned by Post once the session has ended.
var ErrClosed = errors.New("app: session closed")

// Transport carries wire messages to and from the authority. backend.Client
// is the production implementation.
type Transport interface {
	Send(m wire.Message) error
	Run(ctx context.Context) error
	Inbound() <-chan []byte
	OnStatus(fn func(backend.Status))
	OnConnect(fn func())
	Close()
}

// Options wires a session. Only Config is required.
type Options struct {
	Config config.AppConfig
	// Token is sent as bearer credential when dialling.
	Token string
	// Transport overrides the websocket client.
	Transport Transport
	// Clipboard is the system clipboard; nil keeps copies in memory.
	Clipboard clipboard.System
	// Telemetry overrides the client built from Config.General.
	Telemetry *telemetry.Client
	Now       func() time.Time
}

// Session is created at session start and used for exactly one Run.
type Session struct {
	cfg       config.AppConfig
	log       *slog.Logger
	model     *scene.Model
	eng       *reconcile.Engine
	tools     *tool.Machine
	board     *clipboard.Board
	tr        Transport
	cache     *storage.Cache
	cachePath string
	tel       *telemetry.Client
	ownsTel   bool
	now       func() time.Time

	inputs chan Input
	calls  chan func()
	saves  chan scene.Snapshot
	done   chan struct{}

	mu        sync.Mutex
	observers []func(View)
	last      atomic.Pointer[scene.Snapshot]

	// loop state
	status    backend.Status
	wasOnline bool
	stale     bool
	remote    json.RawMessage
	dropped   int
	dirty     bool
}

// New builds a session and loads the last cached snapshot, if any, so the
// first frame shows the workspace as it was. Nothing connects until Run.
func New(opts Options) (*Session, error) {
	cfg := opts.Config
	s := &Session{
		cfg:    cfg,
		log:    applog.WithComponent("app"),
		model:  scene.NewModel(),
		now:    opts.Now,
		inputs: make(chan Input, 256),
		calls:  make(chan func(), 16),
		saves:  make(chan scene.Snapshot, 1),
		done:   make(chan struct{}),
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.tr = opts.Transport
	if s.tr == nil {
		c, err := backend.NewClient(backend.Options{
			URL:          cfg.Server.URL,
			Token:        opts.Token,
			DialTimeout:  cfg.Server.DialTimeout(),
			ReconnectMin: cfg.Server.ReconnectMin(),
			ReconnectMax: cfg.Server.ReconnectMax(),
			QueueLength:  cfg.Server.WriteQueueLength,
		})
		if err != nil {
			return nil, err
		}
		s.tr = c
	}

	s.tel = opts.Telemetry
	if s.tel == nil {
		s.tel, s.ownsTel = telemetry.New(telemetry.FromConfig(cfg.General)), true
	}

	if cfg.Cache.Enabled {
		s.openCache()
	}

	s.eng = reconcile.New(s.model, s.tr, reconcile.Options{
		Outbox: reconcile.OutboxConfig{MinInterval: cfg.Editor.EphemeralEvery(), MaxPending: cfg.Server.WriteQueueLength},
		Now:    s.now,
	})
	s.board = clipboard.New(opts.Clipboard)
	s.tools = tool.New(s.eng, s.board, tool.ConfigFrom(cfg.Editor))

	s.model.Subscribe(func(scene.Change) { s.dirty = true })
	s.eng.OnSnapshot(s.onSnapshot)
	s.eng.OnStatus(func(raw json.RawMessage) { s.remote, s.dirty = raw, true })
	s.tools.OnGesture(s.onGesture)
	s.tr.OnStatus(func(st backend.Status) { s.call(func() { s.setStatus(st) }) })
	s.tr.OnConnect(s.onConnect)
	return s, nil
}

func (s *Session) openCache() {
	path, err := s.cfg.CachePath()
	if err != nil {
		s.log.Warn("cache path unavailable; running without cache", slog.Any("err", err))
		return
	}
	c, err := storage.Open(path)
	if err != nil {
		s.log.Warn("cache unavailable; running without cache", slog.Any("err", err))
		return
	}
	s.cache, s.cachePath = c, path

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, at, ok, err := c.LatestWorkspace(ctx, s.cfg.Server.Workspace)
	if err != nil {
		s.log.Warn("cached snapshot unreadable", slog.Any("err", err))
		return
	}
	if ok {
		s.model.Replace(snap)
		s.stale = true
		s.log.Info("showing cached workspace until the server responds",
			slog.Int("elements", len(snap.Elements)), slog.Time("cached_at", at))
	}
}

// Observe registers fn to receive a view after every change. fn runs on the
// session loop and must not block.
func (s *Session) Observe(fn func(View)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Post queues one input for the loop. It blocks only while the queue is full.
func (s *Session) Post(in Input) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.inputs <- in:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// Done is closed when Run has returned and everything is released.
func (s *Session) Done() <-chan struct{} { return s.done }

// Snapshot returns the scene as of the last published view. Safe from any
// goroutine.
func (s *Session) Snapshot() scene.Snapshot {
	if p := s.last.Load(); p != nil {
		return *p
	}
	return scene.Snapshot{}
}

// Autosave describes where crash recovery should store the scene.
func (s *Session) Autosave() *crash.Autosave {
	return &crash.Autosave{CachePath: s.cachePath, Workspace: s.cfg.Server.Workspace, Snapshot: s.Snapshot}
}

// call runs fn on the loop. Used by transport callbacks.
func (s *Session) call(fn func()) {
	select {
	case s.calls <- fn:
	case <-s.done:
	}
}

// Run drives the session until ctx ends. The transport and the cache writer
// run beside the loop and are stopped before Run returns.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := s.tr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("transport stopped", slog.Any("err", err))
		}
	}()
	go func() {
		defer wg.Done()
		s.saveLoop(ctx)
	}()
	defer func() {
		cancel()
		s.tr.Close()
		close(s.done)
		wg.Wait()
		s.shutdown()
	}()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	inbound := s.tr.Inbound()
	s.publish()
	for {
		s.armFlush(timer)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in := <-s.inputs:
			s.handle(in)
		case raw, ok := <-inbound:
			if !ok {
				inbound = nil
				continue
			}
			s.receive(raw)
		case fn := <-s.calls:
			fn()
		case <-timer.C:
			if err := s.eng.Flush(); err != nil {
				s.log.Debug("flush failed", slog.Any("err", err))
			}
		}
		if s.dirty {
			s.publish()
		}
	}
}

func (s *Session) armFlush(t *time.Timer) {
	next, ok := s.eng.NextFlush()
	if !ok {
		t.Stop()
		return
	}
	d := next.Sub(s.now())
	if d < 0 {
		d = 0
	}
	t.Reset(d)
}

func (s *Session) handle(in Input) {
	var err error
	switch in.Kind {
	case InputPointerDown:
		err = s.tools.PointerDown(in.Pointer)
	case InputPointerMove:
		err = s.tools.PointerMove(in.Pointer)
	case InputPointerUp:
		err = s.tools.PointerUp(in.Pointer)
	case InputCaptureLost:
		s.tools.CaptureLost()
	case InputKey:
		err = s.tools.Key(in.Key)
	case InputZoom:
		s.tools.SetZoom(in.Zoom)
	case InputTool:
		s.tools.SetMode(in.Mode)
	case InputDrawTool:
		s.tools.SetDrawTool(in.DrawKind, in.DrawShape)
	case InputCommitText:
		err = s.tools.CommitText(in.Text)
	case InputReparent:
		err = s.eng.Reparent(in.ID, in.Target)
	case InputReorderLayer:
		err = s.eng.ReorderLayer(in.ID, in.Target, in.Position)
	case InputSetPresentationOrder:
		err = s.eng.SetPresentationOrder(in.IDs)
	case InputAddToPresentation:
		err = s.eng.AddToPresentation(in.ID)
	case InputReorderSlide:
		err = s.eng.ReorderSlide(in.ID, in.Target, in.Position)
	case InputRefresh:
		err = s.eng.RequestSnapshot()
	case InputPrompt:
		err = s.eng.Prompt(in.Text)
	}
	if err != nil {
		s.log.Warn("input rejected", slog.Int("kind", int(in.Kind)), slog.Any("err", err))
	}
	s.dirty = true
}

// receive applies one frame. A bad frame is logged and dropped on its own.
func (s *Session) receive(raw []byte) {
	in, err := wire.Decode(raw)
	if err == nil {
		err = s.eng.Apply(in)
	}
	if err == nil {
		return
	}
	reason := "malformed"
	if errors.Is(err, wire.ErrUnknownType) {
		reason = "unknown_type"
	}
	s.dropped++
	s.dirty = true
	s.log.Warn("inbound message dropped", slog.String("reason", reason), slog.Any("err", err))
	s.tel.Event(telemetry.InboundDropped, map[string]any{"reason": reason})
}

func (s *Session) setStatus(st backend.Status) {
	if st == backend.StatusOnline {
		if s.wasOnline {
			s.tel.Event(telemetry.Reconnect, nil)
		}
		s.wasOnline = true
	}
	s.status, s.dirty = st, true
}

// onConnect runs on the transport goroutine after a dial. It only touches
// the transport, which is safe for concurrent use.
func (s *Session) onConnect() {
	m, err := wire.RequestWorkspaceState()
	if err == nil {
		err = s.tr.Send(m)
	}
	if err != nil {
		s.log.Warn("snapshot request failed", slog.Any("err", err))
	}
}

func (s *Session) onGesture(ev tool.GestureEvent) {
	switch ev.Phase {
	case tool.PhaseCommitted:
		s.tel.Event(telemetry.GestureCommitted, map[string]any{"gesture": ev.Name})
	case tool.PhaseCancelled:
		s.tel.Event(telemetry.GestureCancelled, map[string]any{"gesture": ev.Name})
	}
}

// onSnapshot hands a copy of every authoritative snapshot to the cache writer.
func (s *Session) onSnapshot(snap scene.Snapshot) {
	s.stale, s.dirty = false, true
	if s.cache == nil {
		return
	}
	cp := scene.Snapshot{
		Elements:             make([]*scene.Element, len(snap.Elements)),
		ComponentDefinitions: snap.ComponentDefinitions,
		Assets:               snap.Assets,
	}
	for i, e := range snap.Elements {
		cp.Elements[i] = e.Clone()
	}
	// keep only the newest pending snapshot
	select {
	case <-s.saves:
	default:
	}
	s.saves <- cp
}

func (s *Session) saveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-s.saves:
			s.save(snap)
		}
	}
}

func (s *Session) save(snap scene.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.cache.SaveWorkspace(ctx, s.cfg.Server.Workspace, snap, s.now()); err != nil {
		s.log.Warn("cache save failed", slog.Any("err", err))
		return
	}
	if keep := s.cfg.Cache.Keep; keep > 0 {
		if _, err := s.cache.PruneWorkspaces(ctx, keep); err != nil {
			s.log.Warn("cache prune failed", slog.Any("err", err))
		}
	}
}

func (s *Session) publish() {
	s.dirty = false
	v := s.view()
	snap := scene.Snapshot{
		Elements:             v.Elements,
		ComponentDefinitions: s.model.ComponentDefinitions(),
		Assets:               s.model.Assets(),
	}
	s.last.Store(&snap)
	s.mu.Lock()
	obs := append([]func(View){}, s.observers...)
	s.mu.Unlock()
	for _, fn := range obs {
		fn(v)
	}
}

// shutdown releases what the session owns once the loop and its helpers
// have stopped.
func (s *Session) shutdown() {
	if s.cache != nil {
		select {
		case snap := <-s.saves:
			s.save(snap)
		default:
		}
		if err := s.cache.Close(); err != nil {
			s.log.Warn("cache close failed", slog.Any("err", err))
		}
	}
	s.board.Clear()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.tel.Flush(ctx)
	if s.ownsTel {
		s.tel.Close()
	}
	s.log.Debug("session ended")
}
