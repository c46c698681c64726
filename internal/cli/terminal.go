// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ErrNoTerminal is returned when a password is needed but stdin is piped.
// Use --password-stdin instead.
var ErrNoTerminal = errors.New("stdin is not a terminal; use --password-stdin")

// ReadPasswordTTY writes prompt to stderr and reads a line from the
// terminal with echo disabled.
// SECURITY: The password never reaches the screen or the shell history.
func ReadPasswordTTY(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNoTerminal
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}

// outputProfile is the color profile for stdout. NO_COLOR and
// CLICOLOR_FORCE are honored; a pipe gets plain text.
func outputProfile() termenv.Profile {
	return termenv.NewOutput(os.Stdout).EnvColorProfile()
}

// terminalWidth is the stdout width, 80 when it cannot be read.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
