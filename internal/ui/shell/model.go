// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package shell is the top-level Bubble Tea model of the compras TUI. It
// renders whatever the session store says: the login form and company
// picker while anonymous, the processo list while signed in, and the
// inactivity warning on top of everything when it opens.
package shell

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jeranaias/compras-tui/internal/app"
	"github.com/jeranaias/compras-tui/internal/events"
	"github.com/jeranaias/compras-tui/internal/session"
	"github.com/jeranaias/compras-tui/internal/ui/components"
	"github.com/jeranaias/compras-tui/internal/ui/styles"
)

type screen int

const (
	screenLoading screen = iota
	screenLogin
	screenTenant
	screenHome
)

// String returns the screen name.
func (s screen) String() string {
	switch s {
	case screenLoading:
		return "loading"
	case screenLogin:
		return "login"
	case screenTenant:
		return "tenant"
	case screenHome:
		return "home"
	default:
		return "unknown"
	}
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the root model.
type Model struct {
	ctx   context.Context
	app   *app.App
	log   zerolog.Logger
	theme *styles.Theme
	keys  KeyMap
	help  help.Model

	spinner spinner.Model
	form    components.LoginForm
	picker  components.TenantPicker
	list    components.ProcessoList
	overlay components.InactivityOverlay

	screen screen
	snap   session.Snapshot

	// SECURITY: held only while the company picker is open
	pendingUser string
	pendingPass string

	// expired is set when the countdown ran out, until the logout lands
	expired bool

	status   string
	showHelp bool
	width    int
	height   int
}

// New creates the model for a (not yet initialized) app.
func New(ctx context.Context, a *app.App, theme *styles.Theme) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.HeaderBrand

	return Model{
		ctx:     ctx,
		app:     a,
		log:     a.Log.With().Str("component", "tui").Logger(),
		theme:   theme,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		form:    components.NewLoginForm(theme),
		list:    components.NewProcessoList(theme),
		overlay: components.NewInactivityOverlay(),
		screen:  screenLoading,
		snap:    session.Snapshot{Loading: true},
		width:   80,
		height:  24,
	}
}

// Init starts the bootstrap.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.initCmd(), m.spinner.Tick)
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		if m.screen != screenLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		m.app.Store.Activity()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sessionMsg:
		return m, m.apply(msg.event.Kind, msg.event.Snapshot)

	case initDoneMsg:
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Msg("session bootstrap incomplete")
		}
		return m, m.apply(session.EventChanged, m.app.Store.Snapshot())

	case components.LoginSubmitMsg:
		m.pendingUser, m.pendingPass = msg.Username, msg.Password
		return m, m.signInCmd(msg.Username, msg.Password, "")

	case components.TenantChosenMsg:
		return m, m.signInCmd(m.pendingUser, m.pendingPass, msg.Tenant.SchemaName)

	case components.TenantCancelMsg:
		m.clearPending()
		m.screen = screenLogin
		m.form.SetBusy(false)
		return m, m.form.Focus()

	case loginResultMsg:
		return m.handleLoginResult(msg)

	case components.ContinueMsg:
		return m, m.continueCmd()

	case processosMsg:
		if !m.snap.Authenticated() {
			return m, nil
		}
		if msg.err != nil {
			if !errors.Is(msg.err, session.ErrSessionExpired) {
				m.list.SetError(loginMessage(msg.err))
			}
			return m, nil
		}
		m.list.SetRows(msg.rows, msg.at)
		m.status = fmt.Sprintf("%d processos, updated %s", m.list.Len(), msg.at.Format("15:04:05"))
		return m, nil

	case busMsg:
		if msg.msg.Topic != events.TopicProcessoUpdate || !m.snap.Authenticated() {
			return m, nil
		}
		m.log.Debug().Str("origin", msg.msg.Origin).Msg("processo update broadcast")
		return m, m.reload()

	case notifyDoneMsg:
		if msg.err != nil {
			m.status = "Notify failed: " + msg.err.Error()
		} else {
			m.status = "Other compras windows notified"
		}
		return m, nil

	case logoutDoneMsg:
		return m, m.apply(session.EventChanged, m.app.Store.Snapshot())
	}

	return m, nil
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.overlay.SetSize(width, height)
	m.help.Width = width
	// header, status bar and one spacer line
	m.list.SetSize(width-2, height-3)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}

	// ignored by the store while the warning is open
	m.app.Store.Activity()

	if m.overlay.IsVisible() {
		var cmd tea.Cmd
		m.overlay, cmd = m.overlay.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	switch m.screen {
	case screenLogin:
		m.form, cmd = m.form.Update(msg)
	case screenTenant:
		m.picker, cmd = m.picker.Update(msg)
	case screenHome:
		return m.handleHomeKey(msg)
	}
	return m, cmd
}

func (m Model) handleHomeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	case key.Matches(msg, m.keys.Reload):
		return m, m.reload()
	case key.Matches(msg, m.keys.Notify):
		return m, m.notifyCmd()
	case key.Matches(msg, m.keys.Logout):
		m.status = "Signing out..."
		return m, m.logoutCmd()
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) reload() tea.Cmd {
	m.list.SetLoading(true)
	return m.loadProcessosCmd()
}

func (m *Model) clearPending() {
	m.pendingUser = ""
	m.pendingPass = ""
}

func (m Model) handleLoginResult(msg loginResultMsg) (tea.Model, tea.Cmd) {
	if errors.Is(msg.err, session.ErrTenantSelection) && msg.result != nil {
		m.picker = components.NewTenantPicker(m.theme, msg.result.Tenants)
		m.screen = screenTenant
		return m, nil
	}

	m.clearPending()
	if msg.err != nil {
		m.log.Info().Err(msg.err).Msg("sign-in failed")
		m.screen = screenLogin
		m.form.SetError(loginMessage(msg.err))
		return m, m.form.Focus()
	}

	m.form.Reset()
	m.form.SetNotice("")
	return m, m.apply(session.EventChanged, m.app.Store.Snapshot())
}

// apply moves the model to the state snap describes.
func (m *Model) apply(kind session.EventKind, snap session.Snapshot) tea.Cmd {
	wasAuthenticated := m.snap.Authenticated()
	warningWasOpen := m.overlay.IsVisible() || m.snap.WarningOpen

	m.snap = snap
	m.overlay.Sync(snap.WarningOpen, snap.Countdown)
	if kind == session.EventWarning && !snap.WarningOpen && snap.Countdown == 0 {
		m.expired = true
	}

	if snap.Authenticated() {
		m.screen = screenHome
		if !wasAuthenticated {
			m.status = ""
			return m.reload()
		}
		return nil
	}

	if snap.Loading && m.screen == screenLoading {
		return nil
	}

	if wasAuthenticated {
		m.list.Clear()
		m.showHelp = false
		m.status = ""
		m.form.Reset()
		switch {
		case kind == session.EventLoggedOut && (warningWasOpen || m.expired):
			m.form.SetNotice("Your session ended after a period of inactivity")
		case kind == session.EventLoggedOut:
			m.form.SetNotice("You have been signed out")
		}
	}

	if kind == session.EventLoggedOut {
		m.expired = false
	}

	switch m.screen {
	case screenLoading, screenHome:
		m.screen = screenLogin
		return m.form.Focus()
	}
	return nil
}
