/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"parsec/internal/scene"
	"parsec/internal/wire"
)

func TestWebsocketURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"http://localhost:8000", "ws://localhost:8000/api/v1/ws"},
		{"https://example.com/base/", "wss://example.com/base/api/v1/ws"},
		{"ws://example.com/api/v1/ws", "ws://example.com/api/v1/ws"},
	}
	for _, c := range cases {
		got, err := WebsocketURL(c.in)
		if err != nil || got != c.want {
			t.Fatalf("WebsocketURL(%q) = %q, %v; want %q", c.in, got, err, c.want)
		}
	}
	if _, err := WebsocketURL("ftp://x"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func ephemeral(t *testing.T, id string, x float64) wire.Message {
	t.Helper()
	m, err := wire.UpdateElement(scene.MovePatch(id, x, 0), wire.Ephemeral)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func committed(t *testing.T, id string) wire.Message {
	t.Helper()
	m, err := wire.DeleteElement(id)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestQueueDropsOldestEphemeralNeverCommitted(t *testing.T) {
	c, err := NewClient(Options{URL: "http://localhost:1", QueueLength: 2})
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Send(ephemeral(t, "a", 1))
	_ = c.Send(committed(t, "x"))
	_ = c.Send(committed(t, "y"))
	queued, dropped := c.Pending()
	if queued != 2 || dropped != 1 {
		t.Fatalf("expected the ephemeral to make room: queued=%d dropped=%d", queued, dropped)
	}
	_ = c.Send(committed(t, "z"))
	if queued, _ := c.Pending(); queued != 3 {
		t.Fatalf("committed messages must never be dropped, queued=%d", queued)
	}
	_ = c.Send(ephemeral(t, "b", 1))
	if queued, dropped := c.Pending(); queued != 3 || dropped != 2 {
		t.Fatalf("ephemeral into a committed-only full queue is dropped: queued=%d dropped=%d", queued, dropped)
	}
}

func TestQueueCoalescesEphemeralPerElement(t *testing.T) {
	c, _ := NewClient(Options{URL: "http://localhost:1"})
	_ = c.Send(ephemeral(t, "a", 1))
	_ = c.Send(ephemeral(t, "a", 2))
	m, ok := c.pop()
	if !ok {
		t.Fatal("expected a queued message")
	}
	if queued, _ := c.Pending(); queued != 0 {
		t.Fatalf("expected one message for the element, %d left", queued)
	}
	var p map[string]any
	_ = json.Unmarshal(m.Payload, &p)
	if p["x"] != 2.0 {
		t.Fatalf("expected latest position, got %v", p["x"])
	}
}

func TestSendAfterClose(t *testing.T) {
	c, _ := NewClient(Options{URL: "http://localhost:1"})
	c.Close()
	if err := c.Send(committed(t, "x")); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRunConnectsSendsAndReceives(t *testing.T) {
	var (
		mu   sync.Mutex
		got  []string
		auth string
	)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != WSPath {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"STATUS_UPDATE","payload":{"status":"ok"}}`))
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env wire.Envelope
			_ = json.Unmarshal(data, &env)
			mu.Lock()
			got = append(got, env.Type)
			mu.Unlock()
		}
	}))
	defer srv.Close()

	c, err := NewClient(Options{URL: srv.URL, Token: "secret", ReconnectMin: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	online := make(chan struct{}, 4)
	c.OnStatus(func(s Status) {
		if s == StatusOnline {
			online <- struct{}{}
		}
	})
	c.OnConnect(func() {
		m, _ := wire.RequestWorkspaceState()
		_ = c.Send(m)
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-online:
	case <-time.After(5 * time.Second):
		t.Fatal("client never came online")
	}
	select {
	case frame := <-c.Inbound():
		if !strings.Contains(string(frame), "STATUS_UPDATE") {
			t.Fatalf("unexpected frame %s", frame)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no inbound frame")
	}
	_ = c.Send(committed(t, "x"))

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) < 2 || got[0] != wire.TypeRequestWorkspaceState || got[1] != wire.TypeDeleteElement {
		t.Fatalf("unexpected server log %v", got)
	}
	if auth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", auth)
	}

	c.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after Close")
	}
}

func dialTestServer(t *testing.T) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	u, _ := WebsocketURL(srv.URL)
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestDrainRequeuesFailedCommittedWrite(t *testing.T) {
	c, _ := NewClient(Options{URL: "http://localhost:1"})
	conn := dialTestServer(t)
	_ = conn.Close()

	_ = c.Send(committed(t, "x"))
	_ = c.Send(ephemeral(t, "a", 1))
	if err := c.drain(conn); err == nil {
		t.Fatal("expected write on a closed connection to fail")
	}
	if queued, _ := c.Pending(); queued != 2 {
		t.Fatalf("committed message must stay queued, queued=%d", queued)
	}
	c.discardEphemeral()
	m, ok := c.pop()
	if !ok || m.Type != wire.TypeDeleteElement {
		t.Fatalf("expected the committed delete first, got %+v", m)
	}
	if queued, _ := c.Pending(); queued != 0 {
		t.Fatalf("stale ephemeral survived reconnect, queued=%d", queued)
	}
}

func TestRunReconnectsAndResyncs(t *testing.T) {
	var (
		mu    sync.Mutex
		conns int
		first []string
		again []string
	)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env wire.Envelope
			_ = json.Unmarshal(data, &env)
			mu.Lock()
			if n == 1 {
				first = append(first, env.Type)
			} else {
				again = append(again, env.Type)
			}
			mu.Unlock()
			// Drop the first connection after its resync request.
			if n == 1 {
				return
			}
		}
	}))
	defer srv.Close()

	c, err := NewClient(Options{URL: srv.URL, ReconnectMin: 10 * time.Millisecond, ReconnectMax: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	del, live := committed(t, "x"), ephemeral(t, "a", 5)
	var lost sync.Once
	c.OnStatus(func(s Status) {
		if s != StatusOffline {
			return
		}
		lost.Do(func() {
			_ = c.Send(del)
			_ = c.Send(live)
		})
	})
	c.OnConnect(func() {
		m, _ := wire.RequestWorkspaceState()
		_ = c.Send(m)
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(again)
		mu.Unlock()
		if n >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after Close")
	}

	mu.Lock()
	defer mu.Unlock()
	if conns < 2 {
		t.Fatalf("expected a reconnect, got %d connection(s)", conns)
	}
	if len(first) != 1 || first[0] != wire.TypeRequestWorkspaceState {
		t.Fatalf("unexpected first connection log %v", first)
	}
	var resync, deleted bool
	for _, typ := range again {
		switch typ {
		case wire.TypeRequestWorkspaceState:
			resync = true
		case wire.TypeDeleteElement:
			deleted = true
		case wire.TypeUpdateElement:
			t.Fatalf("ephemeral queued while offline was sent after reconnect: %v", again)
		}
	}
	if !resync || !deleted {
		t.Fatalf("expected resync and the queued delete after reconnect, got %v", again)
	}
}
