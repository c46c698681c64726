// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/jeranaias/compras-tui/internal/api"
	"github.com/jeranaias/compras-tui/internal/config"
	"github.com/jeranaias/compras-tui/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
)

// ErrNotSignedIn is returned by commands that need a session when there is none.
var ErrNotSignedIn = errors.New("not signed in; run 'compras login'")

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a failed command with context.
type CommandError struct {
	Command string
	Action  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError is bad user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// ErrMissingArgument reports a required argument that was not given.
func ErrMissingArgument(name, example string) error {
	return &ValidationError{Field: name, Reason: "is required", Example: example}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError prints err on env.Err, or as a JSON envelope on env.Out.
func DisplayError(env *Env, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		resp := NewJSONErrorResponse(command, err)
		resp.ErrorType = errorType(err)
		resp.Print(env.Out)
		return
	}
	fmt.Fprintf(env.Err, "%s %s\n", ErrorStyle.Render("[ERROR]"), describe(err))
}

// describe prefers the backend's own message.
func describe(err error) string {
	if api.StatusCode(err) != 0 {
		return fmt.Sprintf("%s (HTTP %d)", api.Detail(err), api.StatusCode(err))
	}
	return err.Error()
}

func errorType(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return "validation_error"
	case GetExitCode(err) == ExitAuthError:
		return "auth_error"
	case GetExitCode(err) == ExitNetworkError:
		return "network_error"
	case api.StatusCode(err) != 0:
		return "api_error"
	default:
		return "error"
	}
}

// HandleErrorAndExit displays err and exits with its exit code.
func HandleErrorAndExit(env *Env, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	DisplayError(env, command, err, jsonMode)
	os.Exit(GetExitCode(err))
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var verr *ValidationError
	if errors.As(err, &verr) || errors.Is(err, ErrNoTerminal) {
		return ExitUsageError
	}
	var cerr config.ValidateErrors
	if errors.As(err, &cerr) {
		return ExitConfigError
	}

	switch {
	case errors.Is(err, ErrNotSignedIn),
		errors.Is(err, session.ErrInvalidCredentials),
		errors.Is(err, session.ErrSessionExpired),
		errors.Is(err, session.ErrLoginThrottled),
		errors.Is(err, session.ErrIdentityUnavailable),
		errors.Is(err, session.ErrMissingCredentials):
		return ExitAuthError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	}

	switch api.StatusCode(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ExitAuthError
	case http.StatusNotFound:
		return ExitNotFoundError
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return ExitTimeoutError
		}
		return ExitNetworkError
	}
	var oerr *net.OpError
	if errors.As(err, &oerr) {
		return ExitNetworkError
	}
	return ExitGeneralError
}
