// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/compras-tui/internal/api"
	"github.com/jeranaias/compras-tui/internal/mockapi"
	"github.com/jeranaias/compras-tui/internal/storage"
)

// =============================================================================
// MANUAL CLOCK
// =============================================================================

// fakeClock fires timers only when Advance is called, synchronously and in
// deadline order.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{}
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{c: c, at: c.now + d, seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward by d, firing every timer that falls due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		live := c.timers[:0]
		for _, t := range c.timers {
			if !t.stopped && !t.fired {
				live = append(live, t)
			}
		}
		c.timers = live
		sort.Slice(c.timers, func(i, j int) bool {
			if c.timers[i].at != c.timers[j].at {
				return c.timers[i].at < c.timers[j].at
			}
			return c.timers[i].seq < c.timers[j].seq
		})
		if len(c.timers) == 0 || c.timers[0].at > target {
			c.now = target
			c.mu.Unlock()
			return
		}
		next := c.timers[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()

		next.f()
	}
}

// Active returns the number of armed timers.
func (c *fakeClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// =============================================================================
// HARNESS
// =============================================================================

// harness wires a Store to the fake backend with in-memory storage.
type harness struct {
	srv     *mockapi.Server
	http    *httptest.Server
	url     string
	backend *storage.Backend
	clock   *fakeClock
	client  *api.Client
	store   *Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newWrappedHarness(t, nil)
}

// newWrappedHarness serves the fake backend through wrap, when set.
func newWrappedHarness(t *testing.T, wrap func(http.Handler) http.Handler) *harness {
	t.Helper()
	srv := mockapi.NewDemo(mockapi.Options{})
	var handler http.Handler = srv
	if wrap != nil {
		handler = wrap(srv)
	}
	hs := httptest.NewServer(handler)
	t.Cleanup(hs.Close)

	h := &harness{
		srv:     srv,
		http:    hs,
		url:     hs.URL + "/api",
		backend: storage.NewMemoryBackend(),
		clock:   newFakeClock(),
	}
	h.client = h.newClient(t)
	h.store = h.newStore(h.client)
	t.Cleanup(h.store.Close)
	return h
}

// newClient builds a client whose jar is restored from the backend, as a
// freshly started process would.
func (h *harness) newClient(t *testing.T) *api.Client {
	t.Helper()
	jar, err := api.NewPersistentJar(context.Background(), h.backend.Secrets, zerolog.Nop())
	require.NoError(t, err)
	c, err := api.NewClient(h.url)
	require.NoError(t, err)
	return c.WithJar(jar)
}

func (h *harness) newStore(client *api.Client) *Store {
	return NewStore(Options{
		Client:  client,
		Backend: h.backend,
		Clock:   h.clock,
	})
}

// login runs the full exchange for a single-tenant account.
func (h *harness) login(t *testing.T, username, password, tenant string) {
	t.Helper()
	auth := NewAuthenticator(h.client, 100, zerolog.Nop())
	_, err := SignIn(context.Background(), auth, h.store, username, password, tenant)
	require.NoError(t, err)
	require.True(t, h.store.Authenticated())
}

// events collects store events.
type events struct {
	mu   sync.Mutex
	list []Event
}

func (e *events) record(ev Event) {
	e.mu.Lock()
	e.list = append(e.list, ev)
	e.mu.Unlock()
}

func (e *events) count(kind EventKind) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.list {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (e *events) last() Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.list[len(e.list)-1]
}

func recordEvents(s *Store) *events {
	e := &events{}
	s.Subscribe(e.record)
	return e
}
