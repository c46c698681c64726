// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/compras-tui/internal/config"
)

// HandleConfig shows configuration: show (default), get KEY, keys, path.
func HandleConfig(_ context.Context, env *Env, args Args) error {
	p := args.Parser()
	sub := strings.ToLower(p.Subcommand())

	if sub == "path" {
		path := args.ConfigPath
		if path == "" {
			var err error
			if path, err = config.ConfigPathTOML(); err != nil {
				return err
			}
		}
		if args.JSON {
			return NewJSONResponse("config", map[string]string{"path": path}).Print(env.Out)
		}
		fmt.Fprintln(env.Out, path)
		return nil
	}

	if sub == "keys" {
		keys := config.Keys()
		if args.JSON {
			return NewJSONResponse("config", keys).Print(env.Out)
		}
		fmt.Fprintln(env.Out, strings.Join(keys, "\n"))
		return nil
	}

	cfg, err := env.loadConfigFor(args)
	if err != nil {
		return err
	}
	safe := cfg.Redacted()

	switch sub {
	case "", "show":
		if args.JSON {
			return NewJSONResponse("config", safe).Print(env.Out)
		}
		return toml.NewEncoder(env.Out).Encode(safe)

	case "get":
		key := p.Positional(1)
		if key == "" {
			return ErrMissingArgument("key", "compras config get api.base_url")
		}
		v, err := safe.Get(key)
		if err != nil {
			return &ValidationError{Field: "key", Value: key, Reason: err.Error(), Example: "api.base_url"}
		}
		if args.JSON {
			return NewJSONResponse("config", map[string]interface{}{"key": key, "value": v}).Print(env.Out)
		}
		fmt.Fprintln(env.Out, v)
		return nil

	default:
		return &ValidationError{Field: "subcommand", Value: sub, Reason: "unknown", Example: "compras config get api.base_url"}
	}
}

// HandleVersion prints build information.
func HandleVersion(env *Env, args Args) error {
	data := VersionData{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
	if args.JSON {
		return NewJSONResponse("version", data).Print(env.Out)
	}
	fmt.Fprintf(env.Out, "compras %s (%s, built %s, %s)\n", data.Version, data.GitCommit, data.BuildDate, data.GoVersion)
	return nil
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes a non-TUI command and returns its exit code.
func Run(ctx context.Context, env *Env, cmd Command, args Args) int {
	var err error
	switch cmd {
	case CmdLogin:
		err = HandleLogin(ctx, env, args)
	case CmdLogout:
		err = HandleLogout(ctx, env, args)
	case CmdWhoami:
		err = HandleWhoami(ctx, env, args)
	case CmdGet:
		err = HandleGet(ctx, env, args)
	case CmdNotify:
		err = HandleNotify(ctx, env, args)
	case CmdWatch:
		err = HandleWatch(ctx, env, args)
	case CmdConfig:
		err = HandleConfig(ctx, env, args)
	case CmdVersion:
		err = HandleVersion(env, args)
	case CmdHelp:
		PrintUsage(env.Out)
	default:
		err = &ValidationError{Field: "command", Value: args.Name, Reason: "unknown", Example: "compras help"}
	}

	if err != nil {
		DisplayError(env, cmd.String(), err, args.JSON)
		return GetExitCode(err)
	}
	return ExitSuccess
}
