// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// compras-mockapi serves the demo backend for local development:
//
//	compras-mockapi --addr 127.0.0.1:8000 --access-ttl 30s
//	compras config show   # api.base_url = "http://127.0.0.1:8000/api"
//
// Accounts: maria/segredo (two tenants), joao/segredo, dev/dev.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/compras-tui/internal/cli"
	"github.com/jeranaias/compras-tui/internal/logging"
	"github.com/jeranaias/compras-tui/internal/mockapi"
)

const shutdownTimeout = 5 * time.Second

func main() {
	p := cli.NewArgParser(os.Args[1:])
	if p.BoolFlag("help") || p.BoolFlag("h") {
		fmt.Println("usage: compras-mockapi [--addr HOST:PORT] [--access-ttl D] [--refresh-ttl D] [--log-level L] [--json]")
		return
	}

	log := logging.New(logging.Options{
		Level: p.FlagOrDefault("log-level", "info"),
		JSON:  p.BoolFlag("json"),
	})

	opts := mockapi.Options{Logger: &log}
	for name, dst := range map[string]*time.Duration{
		"access-ttl":  &opts.AccessTTL,
		"refresh-ttl": &opts.RefreshTTL,
	} {
		raw := p.Flag(name)
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			fmt.Fprintf(os.Stderr, "Error: --%s: invalid duration %q\n", name, raw)
			os.Exit(cli.ExitUsageError)
		}
		*dst = d
	}

	addr := p.FlagOrDefault("addr", "127.0.0.1:8000")
	srv := &http.Server{
		Addr:              addr,
		Handler:           mockapi.NewDemo(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("addr", addr).Str("base_url", "http://"+addr+"/api").Msg("mock backend listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server failed")
		os.Exit(cli.ExitNetworkError)
	}
}
