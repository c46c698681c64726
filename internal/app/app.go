// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app assembles the session core from configuration. It is the one
// place that knows how storage, the cookie jar, the backend client, the
// session store and the broadcast bus fit together; CLI commands and the TUI
// receive a ready App.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jeranaias/compras-tui/internal/api"
	"github.com/jeranaias/compras-tui/internal/config"
	"github.com/jeranaias/compras-tui/internal/events"
	"github.com/jeranaias/compras-tui/internal/session"
	"github.com/jeranaias/compras-tui/internal/storage"
)

// Options adjust construction.
type Options struct {
	// Logger for every component (default: disabled)
	Logger *zerolog.Logger

	// Clock drives the inactivity monitor (default: system clock)
	Clock session.Clock

	// NoEvents skips the broadcast bus
	NoEvents bool
}

// App is a wired session core.
type App struct {
	Config  *config.Config
	Log     zerolog.Logger
	Backend *storage.Backend
	Client  *api.Client
	Store   *session.Store
	Auth    *session.Authenticator

	// Bus is nil when NoEvents is set or the runtime dir cannot be watched
	Bus *events.Bus
}

// New validates cfg and builds the core. The store is not initialized;
// call Initialize (or Store.Login) before using it.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}

	jar, err := api.NewPersistentJar(ctx, backend.Secrets, log)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to restore cookies: %w", err)
	}

	client, err := api.NewClient(cfg.API.BaseURL)
	if err != nil {
		backend.Close()
		return nil, err
	}
	client = client.
		WithJar(jar).
		WithTimeout(cfg.RequestTimeout()).
		WithTenantHeader(cfg.API.TenantHeader).
		WithInsecureSkipVerify(cfg.API.InsecureSkipVerify).
		WithLogger(log)

	store := session.NewStore(session.Options{
		Client:            client,
		Backend:           backend,
		Logger:            &log,
		Clock:             opts.Clock,
		InactivityTimeout: cfg.InactivityTimeout(),
		WarningCountdown:  cfg.Session.WarningCountdownSecs,
	})

	a := &App{
		Config:  cfg,
		Log:     log,
		Backend: backend,
		Client:  client,
		Store:   store,
		Auth:    session.NewAuthenticator(client, cfg.API.LoginRatePerMinute, log),
	}

	if !opts.NoEvents {
		bus, err := events.Open(cfg.Storage.RuntimeDir, log)
		if err != nil {
			log.Warn().Err(err).Msg("broadcast bus unavailable")
		} else {
			a.Bus = bus
		}
	}
	return a, nil
}

// Initialize runs the session bootstrap.
func (a *App) Initialize(ctx context.Context) error {
	return a.Store.Initialize(ctx)
}

// Close stops timers, the bus and storage. It does not log out.
func (a *App) Close() error {
	a.Store.Close()
	var errs []error
	if a.Bus != nil {
		errs = append(errs, a.Bus.Close())
	}
	errs = append(errs, a.Backend.Close())
	return errors.Join(errs...)
}
