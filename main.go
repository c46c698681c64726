// compras - terminal client for the compras purchasing system.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/compras-tui/internal/app"
	"github.com/jeranaias/compras-tui/internal/cli"
	"github.com/jeranaias/compras-tui/internal/config"
	"github.com/jeranaias/compras-tui/internal/logging"
	"github.com/jeranaias/compras-tui/internal/ui/shell"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	env := cli.DefaultEnv()

	if cmd != cli.CmdTUI {
		code := cli.Run(ctx, env, cmd, args)
		stop()
		os.Exit(code)
	}

	err := runTUI(ctx, env, args)
	stop()
	cli.HandleErrorAndExit(env, "tui", err, args.JSON)
}

// runTUI owns the terminal until the user quits or a signal arrives.
// Logs go to the configured file; nothing may write to the screen.
func runTUI(ctx context.Context, env *cli.Env, args cli.Args) error {
	cfg, err := env.LoadConfig(args.ConfigPath)
	if err != nil {
		return err
	}
	config.SetGlobal(cfg)

	log, closer, err := logging.ForTUI(cfg)
	if err != nil {
		// the screen is not ours yet
		fmt.Fprintf(env.Err, "Warning: %v (logging disabled)\n", err)
	}
	defer closer.Close()

	a, err := app.New(ctx, cfg, app.Options{Logger: &log})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close")
		}
	}()

	log.Info().Str("version", Version).Str("api", cfg.API.BaseURL).Msg("tui starting")
	return shell.Run(ctx, a)
}
