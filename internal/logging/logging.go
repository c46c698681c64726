// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zerolog loggers used across compras.
//
// CLI commands log to stderr through a console writer. The TUI owns the
// terminal, so while it runs logs go to a JSON-lines file instead.
//
// SECURITY: Nothing in compras logs cookie values, request bodies or
// passwords. Request logs carry method, path, status, duration and the
// request id only.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/compras-tui/internal/config"
)

// Options control logger construction.
type Options struct {
	// Level is a zerolog level name; empty means info
	Level string
	// JSON writes raw JSON lines instead of the console format
	JSON bool
	// Writer overrides the destination (tests)
	Writer io.Writer
}

// New returns a logger writing to opts.Writer (stderr when nil).
func New(opts Options) zerolog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if !opts.JSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()
}

// ForCLI returns the logger for one-shot commands. Commands log warnings
// and errors only; verbose raises that to debug and quiet lowers it to
// errors. The configured level applies to the TUI log file.
func ForCLI(cfg *config.Config, w io.Writer, verbose, quiet bool) zerolog.Logger {
	level := "warn"
	switch {
	case verbose:
		level = "debug"
	case quiet:
		level = "error"
	}
	return New(Options{Level: level, JSON: cfg.Logging.JSON, Writer: w})
}

// ForTUI returns a logger appending JSON lines to cfg.Logging.Path and a
// closer for the file. If the file cannot be opened logging is disabled
// rather than corrupting the screen.
func ForTUI(cfg *config.Config) (zerolog.Logger, io.Closer, error) {
	path := cfg.Logging.Path
	if path == "" {
		return zerolog.Nop(), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return zerolog.Nop(), io.NopCloser(nil), fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return zerolog.Nop(), io.NopCloser(nil), fmt.Errorf("failed to open log file: %w", err)
	}
	return New(Options{Level: cfg.Logging.Level, JSON: true, Writer: f}), f, nil
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(name string) zerolog.Level {
	if name == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
