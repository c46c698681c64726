// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shell

import (
	"time"

	"github.com/jeranaias/compras-tui/internal/events"
	"github.com/jeranaias/compras-tui/internal/session"
	"github.com/jeranaias/compras-tui/internal/ui/components"
)

// sessionMsg carries a store event into the program.
type sessionMsg struct {
	event session.Event
}

// busMsg carries a broadcast message into the program.
type busMsg struct {
	msg events.Message
}

// initDoneMsg reports the end of the session bootstrap.
type initDoneMsg struct {
	err error
}

// loginResultMsg reports one sign-in step.
type loginResultMsg struct {
	result *session.LoginResult
	err    error
}

// processosMsg reports a list load.
type processosMsg struct {
	rows []components.Processo
	err  error
	at   time.Time
}

// notifyDoneMsg reports a broadcast publish.
type notifyDoneMsg struct {
	err error
}

// logoutDoneMsg reports the end of a user-requested logout.
type logoutDoneMsg struct{}
