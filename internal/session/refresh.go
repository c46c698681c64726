// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/compras-tui/internal/api"
)

// Backend paths the session core talks to.
const (
	PathMe      = "/auth/me/"
	PathLogin   = "/auth/login/"
	PathLogout  = "/auth/logout/"
	PathRefresh = "/token/refresh/"
)

// refreshTimeout bounds the refresh call independently of the caller that
// happened to trigger it.
const refreshTimeout = 15 * time.Second

// pending is a request parked while a refresh is in flight.
type pending struct {
	ctx  context.Context
	req  *api.Request
	done chan result
}

type result struct {
	resp *api.Response
	err  error
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator recovers from expired access credentials. It sits in the
// client's error interceptor chain: on a 401 it runs at most one refresh
// at a time and parks every other 401 in a FIFO queue. When the refresh
// succeeds the queue is replayed in order, then the request that started
// the refresh; when it fails a logout is forced and the queue rejected.
type Coordinator struct {
	client *api.Client
	log    zerolog.Logger

	mu         sync.Mutex
	refreshing bool
	queue      []*pending
	logout     func(context.Context) error
	id         api.InterceptorID
	bound      bool
}

// NewCoordinator creates an unbound coordinator for client.
func NewCoordinator(client *api.Client, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		client: client,
		log:    log.With().Str("component", "refresh").Logger(),
	}
}

// Bind installs the interceptor with logout as the failure action. Binding
// again ejects the previous interceptor first so a stale logout is never
// called.
func (c *Coordinator) Bind(logout func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound {
		c.client.Eject(c.id)
	}
	c.logout = logout
	c.id = c.client.Use(c.intercept)
	c.bound = true
}

// Unbind removes the interceptor.
func (c *Coordinator) Unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound {
		c.client.Eject(c.id)
		c.bound = false
	}
	c.logout = nil
}

// Refreshing reports whether a refresh is in flight.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Pending returns the number of parked requests.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// terminalPath reports requests whose 401 must never trigger a refresh.
func terminalPath(path string) bool {
	return strings.Contains(path, "/token/") ||
		strings.Contains(path, PathLogout) ||
		strings.Contains(path, PathLogin)
}

// intercept is the api.ErrorInterceptor.
func (c *Coordinator) intercept(ctx context.Context, req *api.Request, err error) (*api.Response, error) {
	if !api.IsUnauthorized(err) || req.Retried || terminalPath(req.Path) {
		return nil, err
	}

	c.mu.Lock()
	if c.refreshing {
		p := &pending{ctx: ctx, req: req, done: make(chan result, 1)}
		c.queue = append(c.queue, p)
		c.mu.Unlock()

		select {
		case r := <-p.done:
			return r.resp, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.refreshing = true
	logout := c.logout
	c.mu.Unlock()

	c.log.Debug().Str("path", req.Path).Msg("access expired, refreshing")

	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
	_, rerr := c.client.Do(refreshCtx, &api.Request{Method: http.MethodPost, Path: PathRefresh})
	cancel()

	if rerr != nil {
		expired := fmt.Errorf("%w: %w", ErrSessionExpired, rerr)
		c.log.Warn().Err(rerr).Msg("refresh failed, logging out")

		// still marked in flight: late 401s park and are rejected below
		if logout != nil {
			if lerr := logout(context.WithoutCancel(ctx)); lerr != nil {
				c.log.Warn().Err(lerr).Msg("forced logout failed")
			}
		}

		c.mu.Lock()
		queue := c.queue
		c.queue = nil
		c.refreshing = false
		c.mu.Unlock()

		for _, p := range queue {
			p.done <- result{err: expired}
		}
		return nil, expired
	}

	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.refreshing = false
	c.mu.Unlock()

	c.replayAll(queue)
	return c.replay(ctx, req)
}

// replayAll re-sends parked requests in arrival order. Each replay is on
// the wire before the next one starts, but none waits for another's
// response, so a slow endpoint only delays its own caller.
func (c *Coordinator) replayAll(queue []*pending) {
	for _, p := range queue {
		sent := make(chan struct{})
		var once sync.Once
		markSent := func() { once.Do(func() { close(sent) }) }
		trace := &httptrace.ClientTrace{
			WroteRequest: func(httptrace.WroteRequestInfo) { markSent() },
		}

		go func(p *pending) {
			resp, err := c.replay(httptrace.WithClientTrace(p.ctx, trace), p.req)
			markSent()
			p.done <- result{resp: resp, err: err}
		}(p)
		<-sent
	}
}

// replay re-sends a copy of req marked as retried.
func (c *Coordinator) replay(ctx context.Context, req *api.Request) (*api.Response, error) {
	retry := *req
	retry.Retried = true
	return c.client.Do(ctx, &retry)
}
