/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package reconcile

import (
	"maps"
	"sort"
	"time"

	"parsec/internal/scene"
)

// OutboxConfig controls ephemeral coalescing.
type OutboxConfig struct {
	// MinInterval is the minimum spacing between two ephemeral sends for the
	// same element. Updates arriving sooner are merged into one pending update.
	MinInterval time.Duration
	// MaxPending caps how many elements may wait at once (0 means unlimited).
	// The oldest pending update is dropped when the cap is exceeded.
	MaxPending int
}

type pendingUpdate struct {
	patch scene.Patch
	due   time.Time
	since time.Time
}

// Outbox rate-limits ephemeral element updates per element. It is owned by
// the engine and not safe for concurrent use.
type Outbox struct {
	cfg     OutboxConfig
	pending map[string]*pendingUpdate
	last    map[string]time.Time
	dropped int
}

func NewOutbox(cfg OutboxConfig) *Outbox {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 50 * time.Millisecond
	}
	return &Outbox{cfg: cfg, pending: map[string]*pendingUpdate{}, last: map[string]time.Time{}}
}

// Offer records an ephemeral patch. It returns the patch to send right away,
// or false when the update was merged into a pending one.
func (o *Outbox) Offer(p scene.Patch, now time.Time) (scene.Patch, bool) {
	if q, ok := o.pending[p.ID]; ok {
		maps.Copy(q.patch.Fields, p.Fields)
		return scene.Patch{}, false
	}
	if last, ok := o.last[p.ID]; ok && now.Sub(last) < o.cfg.MinInterval {
		o.pending[p.ID] = &pendingUpdate{patch: clonePatch(p), due: last.Add(o.cfg.MinInterval), since: now}
		o.enforceCap()
		return scene.Patch{}, false
	}
	o.last[p.ID] = now
	return p, true
}

// Due pops every pending update whose interval has elapsed, ordered by id.
func (o *Outbox) Due(now time.Time) []scene.Patch {
	var ids []string
	for id, q := range o.pending {
		if !now.Before(q.due) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]scene.Patch, 0, len(ids))
	for _, id := range ids {
		out = append(out, o.pending[id].patch)
		delete(o.pending, id)
		o.last[id] = now
	}
	return out
}

// Next reports when the earliest pending update becomes due.
func (o *Outbox) Next() (time.Time, bool) {
	var next time.Time
	for _, q := range o.pending {
		if next.IsZero() || q.due.Before(next) {
			next = q.due
		}
	}
	return next, !next.IsZero()
}

// Drop discards the pending update for id, reporting whether there was one.
// A committed update supersedes anything still waiting.
func (o *Outbox) Drop(id string) bool {
	_, ok := o.pending[id]
	delete(o.pending, id)
	return ok
}

// Reset forgets all pending updates and send times.
func (o *Outbox) Reset() {
	clear(o.pending)
	clear(o.last)
}

// Stats returns the number of pending and dropped updates for diagnostics.
func (o *Outbox) Stats() (pending, dropped int) {
	return len(o.pending), o.dropped
}

func (o *Outbox) enforceCap() {
	for o.cfg.MaxPending > 0 && len(o.pending) > o.cfg.MaxPending {
		oldest := ""
		var ts time.Time
		for id, q := range o.pending {
			if oldest == "" || q.since.Before(ts) || (q.since.Equal(ts) && id < oldest) {
				oldest, ts = id, q.since
			}
		}
		delete(o.pending, oldest)
		o.dropped++
	}
}

func clonePatch(p scene.Patch) scene.Patch {
	f := maps.Clone(p.Fields)
	if f == nil {
		f = map[string]any{}
	}
	return scene.Patch{ID: p.ID, Fields: f}
}
