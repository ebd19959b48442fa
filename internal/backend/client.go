/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend is the transport to the remote authority: one websocket
// connection with reconnect, a bounded write queue and a raw inbound feed.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	applog "parsec/internal/log"
	"parsec/internal/wire"
)

// WSPath is where the authority serves the editing socket.
const WSPath = "/api/v1/ws"

var ErrClosed = errors.New("backend: client closed")

// Status is the passive connection state shown to the user.
type Status int

const (
	StatusOffline Status = iota
	StatusConnecting
	StatusOnline
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusOnline:
		return "online"
	}
	return "offline"
}

// Options configures a Client. Zero durations fall back to defaults.
type Options struct {
	URL          string
	Token        string
	DialTimeout  time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	QueueLength  int
	WriteWait    time.Duration
	PingPeriod   time.Duration
}

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.ReconnectMin <= 0 {
		o.ReconnectMin = 250 * time.Millisecond
	}
	if o.ReconnectMax < o.ReconnectMin {
		o.ReconnectMax = 10 * time.Second
		if o.ReconnectMax < o.ReconnectMin {
			o.ReconnectMax = o.ReconnectMin
		}
	}
	if o.QueueLength <= 0 {
		o.QueueLength = 256
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 30 * time.Second
	}
	return o
}

// WebsocketURL maps the authority's base URL to its socket endpoint.
func WebsocketURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url %q has no host", base)
	}
	if !strings.HasSuffix(u.Path, WSPath) {
		u.Path = strings.TrimRight(u.Path, "/") + WSPath
	}
	return u.String(), nil
}

// Client keeps one connection to the authority alive. Send never blocks;
// received frames arrive on Inbound in order.
type Client struct {
	opts   Options
	url    string
	dialer *websocket.Dialer
	log    *slog.Logger

	inbound chan []byte

	mu      sync.Mutex
	queue   []wire.Message
	dropped int
	wake    chan struct{}

	onStatus  func(Status)
	onConnect func()

	closed chan struct{}
	once   sync.Once
}

// NewClient validates the URL; nothing is dialled until Run.
func NewClient(opts Options) (*Client, error) {
	opts = opts.withDefaults()
	u, err := WebsocketURL(opts.URL)
	if err != nil {
		return nil, err
	}
	return &Client{
		opts:    opts,
		url:     u,
		dialer:  &websocket.Dialer{HandshakeTimeout: opts.DialTimeout, Proxy: http.ProxyFromEnvironment},
		log:     applog.WithComponent("backend"),
		inbound: make(chan []byte, 64),
		wake:    make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}, nil
}

// URL returns the socket endpoint.
func (c *Client) URL() string { return c.url }

// Inbound delivers raw frames from the authority.
func (c *Client) Inbound() <-chan []byte { return c.inbound }

// OnStatus registers fn for state changes. Call before Run; fn runs on the
// connection goroutine.
func (c *Client) OnStatus(fn func(Status)) { c.onStatus = fn }

// OnConnect registers fn to run after every successful dial, before
// queued messages are written.
func (c *Client) OnConnect(fn func()) { c.onConnect = fn }

func (c *Client) setStatus(s Status) {
	if c.onStatus != nil {
		c.onStatus(s)
	}
}

// Send queues m. When the queue is full the oldest ephemeral message is
// dropped to make room; committed messages are never dropped. A queued
// ephemeral for the same element is replaced in place.
func (c *Client) Send(m wire.Message) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	c.mu.Lock()
	c.enqueue(m)
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

func (c *Client) enqueue(m wire.Message) {
	if m.Class == wire.Ephemeral && m.ElementID != "" {
		for i, q := range c.queue {
			if q.Class == wire.Ephemeral && q.ElementID == m.ElementID {
				c.queue[i] = m
				return
			}
		}
	}
	if len(c.queue) >= c.opts.QueueLength {
		i := c.oldestEphemeral()
		switch {
		case i >= 0:
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			c.dropped++
		case m.Class == wire.Ephemeral:
			c.dropped++
			return
		}
	}
	c.queue = append(c.queue, m)
}

func (c *Client) oldestEphemeral() int {
	for i, q := range c.queue {
		if q.Class == wire.Ephemeral {
			return i
		}
	}
	return -1
}

// Pending returns the queue length and how many ephemerals were dropped.
func (c *Client) Pending() (queued, dropped int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue), c.dropped
}

// discardEphemeral empties stale live updates before a fresh connection.
func (c *Client) discardEphemeral() {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.queue[:0]
	for _, q := range c.queue {
		if q.Class == wire.Committed {
			kept = append(kept, q)
		}
	}
	c.queue = kept
}

func (c *Client) pop() (wire.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return wire.Message{}, false
	}
	m := c.queue[0]
	c.queue = c.queue[1:]
	return m, true
}

func (c *Client) pushFront(m wire.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append([]wire.Message{m}, c.queue...)
}

// Run dials and redials until ctx ends or Close is called. Failures back
// off exponentially between ReconnectMin and ReconnectMax.
func (c *Client) Run(ctx context.Context) error {
	l := applog.WithOperation(c.log, "run")
	backoff := c.opts.ReconnectMin
	for {
		c.setStatus(StatusConnecting)
		conn, err := c.dial(ctx)
		failed := err != nil
		if failed {
			l.Warn("dial failed", slog.Any("err", err), slog.Duration("retry_in", backoff))
		} else {
			backoff = c.opts.ReconnectMin
			c.discardEphemeral()
			c.setStatus(StatusOnline)
			l.Info("connected", slog.String("url", c.url))
			if c.onConnect != nil {
				c.onConnect()
			}
			err = c.serve(ctx, conn)
			if !errors.Is(err, ErrClosed) && ctx.Err() == nil {
				l.Warn("connection lost", slog.Any("err", err))
			}
		}
		c.setStatus(StatusOffline)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closed:
			return nil
		case <-time.After(backoff):
		}
		if failed {
			backoff = min(backoff*2, c.opts.ReconnectMax)
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	h := http.Header{}
	if c.opts.Token != "" {
		h.Set("Authorization", "Bearer "+c.opts.Token)
	}
	dctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()
	conn, resp, err := c.dialer.DialContext(dctx, c.url, h)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", c.url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}
	return conn, nil
}

// serve runs one connection: a reader feeding Inbound and this goroutine
// as the single writer. Either side failing closes the connection.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case c.inbound <- data:
			case <-ctx.Done():
				readErr <- ctx.Err()
				return
			case <-c.closed:
				readErr <- ErrClosed
				return
			}
		}
	}()
	ping := time.NewTicker(c.opts.PingPeriod)
	defer ping.Stop()
	defer conn.Close()
	for {
		if err := c.drain(conn); err != nil {
			return err
		}
		select {
		case err := <-readErr:
			return err
		case <-ctx.Done():
			c.closeGracefully(conn)
			return ctx.Err()
		case <-c.closed:
			c.closeGracefully(conn)
			return ErrClosed
		case <-c.wake:
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				return err
			}
		}
	}
}

// drain writes everything queued. A committed message whose write failed
// goes back to the front for the next connection.
func (c *Client) drain(conn *websocket.Conn) error {
	for {
		m, ok := c.pop()
		if !ok {
			return nil
		}
		data, err := m.Encode()
		if err != nil {
			c.log.Error("encode outbound", slog.String("type", m.Type), slog.Any("err", err))
			continue
		}
		err = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
		if err == nil {
			err = conn.WriteMessage(websocket.TextMessage, data)
		}
		if err != nil {
			if m.Class == wire.Committed {
				c.pushFront(m)
			}
			return err
		}
	}
}

func (c *Client) closeGracefully(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// Close stops Run and rejects further sends.
func (c *Client) Close() { c.once.Do(func() { close(c.closed) }) }
