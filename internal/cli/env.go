// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jeranaias/compras-tui/internal/app"
	"github.com/jeranaias/compras-tui/internal/config"
	"github.com/jeranaias/compras-tui/internal/logging"
)

// Env is everything a command touches outside its arguments. Tests swap
// the streams, the password reader and the config loader.
type Env struct {
	Out io.Writer
	Err io.Writer
	In  io.Reader

	// ReadPassword prompts for a password without echo
	ReadPassword func(prompt string) (string, error)

	// LoadConfig loads the config at path, or the default location when
	// path is empty
	LoadConfig func(path string) (*config.Config, error)

	// AppOptions are passed to app.New
	AppOptions app.Options

	in *bufio.Reader
}

// DefaultEnv is the process environment.
func DefaultEnv() *Env {
	return &Env{
		Out:          os.Stdout,
		Err:          os.Stderr,
		In:           os.Stdin,
		ReadPassword: ReadPasswordTTY,
		LoadConfig:   loadConfig,
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	cfg, err := config.Load()
	if cfg != nil && err != nil {
		// defaults are usable; a broken file is only worth a warning
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		return cfg, nil
	}
	return cfg, err
}

// readLine reads one line from In without the trailing newline.
func (e *Env) readLine() (string, error) {
	if e.in == nil {
		e.in = bufio.NewReader(e.In)
	}
	line, err := e.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// prompt writes label on Err and reads the answer from In.
func (e *Env) prompt(label string) (string, error) {
	fmt.Fprint(e.Err, label)
	return e.readLine()
}

// =============================================================================
// APP
// =============================================================================

// loadConfigFor resolves the config for args.
func (e *Env) loadConfigFor(args Args) (*config.Config, error) {
	cfg, err := e.LoadConfig(args.ConfigPath)
	if err != nil {
		return nil, err
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// openApp loads the config, builds the session core and runs the bootstrap.
// The caller closes the returned App.
func (e *Env) openApp(ctx context.Context, args Args) (*app.App, error) {
	cfg, err := e.loadConfigFor(args)
	if err != nil {
		return nil, err
	}

	log := logging.ForCLI(cfg, e.Err, args.Verbose, args.Quiet).
		With().Str("command", args.Name).Logger()
	opts := e.AppOptions
	if opts.Logger == nil {
		opts.Logger = &log
	}

	a, err := app.New(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	if err := a.Initialize(ctx); err != nil {
		log.Warn().Err(err).Msg("session bootstrap incomplete")
	}
	return a, nil
}

// closeApp closes a and logs the failure.
func closeApp(a *app.App, log zerolog.Logger) {
	if err := a.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close")
	}
}
