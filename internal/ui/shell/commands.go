// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shell

import (
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/compras-tui/internal/api"
	"github.com/jeranaias/compras-tui/internal/events"
	"github.com/jeranaias/compras-tui/internal/session"
	"github.com/jeranaias/compras-tui/internal/ui/components"
)

// PathProcessos lists the selected tenant's processos.
const PathProcessos = "/processos/"

// =============================================================================
// COMMANDS
// =============================================================================

// Every command runs off the event loop, so store calls that emit events
// are safe here.

func (m Model) initCmd() tea.Cmd {
	return func() tea.Msg {
		return initDoneMsg{err: m.app.Initialize(m.ctx)}
	}
}

func (m Model) signInCmd(username, password, tenantSchema string) tea.Cmd {
	return func() tea.Msg {
		res, err := session.SignIn(m.ctx, m.app.Auth, m.app.Store, username, password, tenantSchema)
		return loginResultMsg{result: res, err: err}
	}
}

func (m Model) loadProcessosCmd() tea.Cmd {
	return func() tea.Msg {
		resp, err := m.app.Client.Get(m.ctx, PathProcessos, nil)
		if err != nil {
			return processosMsg{err: err}
		}
		var page components.ProcessoPage
		if err := resp.JSON(&page); err != nil {
			return processosMsg{err: err}
		}
		return processosMsg{rows: page.Results, at: time.Now()}
	}
}

func (m Model) logoutCmd() tea.Cmd {
	return func() tea.Msg {
		_ = m.app.Store.Logout(m.ctx)
		return logoutDoneMsg{}
	}
}

func (m Model) continueCmd() tea.Cmd {
	return func() tea.Msg {
		m.app.Store.ContinueSession()
		return sessionMsg{event: session.Event{Kind: session.EventWarning, Snapshot: m.app.Store.Snapshot()}}
	}
}

func (m Model) notifyCmd() tea.Cmd {
	return func() tea.Msg {
		if m.app.Bus == nil {
			return notifyDoneMsg{err: errBusUnavailable}
		}
		return notifyDoneMsg{err: m.app.Bus.Publish(events.TopicProcessoUpdate, "update")}
	}
}

var errBusUnavailable = errors.New("broadcast unavailable")

// loginMessage turns a sign-in failure into form text.
func loginMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		return "Invalid username or password"
	case errors.Is(err, session.ErrMissingCredentials):
		return "Username and password are required"
	case errors.Is(err, session.ErrLoginThrottled):
		return "Too many attempts, wait a moment"
	case errors.Is(err, session.ErrIdentityUnavailable):
		return "Signed in, but your profile could not be loaded"
	default:
		return api.Detail(err)
	}
}
