// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shell

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/compras-tui/internal/app"
	"github.com/jeranaias/compras-tui/internal/events"
	"github.com/jeranaias/compras-tui/internal/session"
	"github.com/jeranaias/compras-tui/internal/ui/styles"
)

// Run starts the TUI on a and blocks until the user quits or ctx ends.
// The session is left as it is: quitting does not log out.
func Run(ctx context.Context, a *app.App) error {
	theme := styles.NewTheme(a.Config.UI.Theme == "light")
	m := New(ctx, a, theme)

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if a.Config.UI.Mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(m, opts...)

	relayCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r := newRelay()
	go r.run(relayCtx, p.Send)

	unsubscribe := a.Store.Subscribe(func(ev session.Event) {
		r.push(sessionMsg{event: ev})
	})
	defer unsubscribe()

	if a.Bus != nil {
		unsubscribeBus := a.Bus.Subscribe(events.TopicAll, func(msg events.Message) {
			r.push(busMsg{msg: msg})
		})
		defer unsubscribeBus()
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// =============================================================================
// RELAY
// =============================================================================

// relay forwards messages from store and bus callbacks to the program in
// arrival order. push never blocks, so callbacks fired from inside a store
// call made on the event loop cannot deadlock it.
type relay struct {
	mu    sync.Mutex
	queue []tea.Msg
	wake  chan struct{}
}

func newRelay() *relay {
	return &relay{wake: make(chan struct{}, 1)}
}

func (r *relay) push(msg tea.Msg) {
	r.mu.Lock()
	r.queue = append(r.queue, msg)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// run delivers queued messages with send until ctx ends.
func (r *relay) run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.wake:
		}

		r.mu.Lock()
		batch := r.queue
		r.queue = nil
		r.mu.Unlock()

		for _, msg := range batch {
			if ctx.Err() != nil {
				return
			}
			send(msg)
		}
	}
}
