// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the one-shot commands of
// compras.
//
// # Key Types
//
//   - Command: enumeration of the available commands
//   - Args: parsed global flags plus the raw command arguments
//   - ArgParser: flag and positional parsing shared by every command
//   - Env: the I/O and wiring a command runs against
//
// # Usage
//
//	cmd, args := cli.Parse()
//	env := cli.DefaultEnv()
//	os.Exit(cli.Run(ctx, env, cmd, args))
//
// # Commands Overview
//
// Session:
//   - login: sign in, choosing a company when the account has several
//   - logout: end the session locally and on the server
//   - whoami / status: show the signed-in user and company
//
// Backend:
//   - get: authenticated GET against any API path
//
// Broadcast:
//   - notify: announce a data change to other compras processes
//   - watch: print announcements as they arrive
//
// Other:
//   - config: show configuration, read one key, print the file path
//   - version, help
//
// # Output
//
// Results go to stdout, prompts and logs to stderr. With --json every
// command prints one JSON envelope instead (watch prints one line per
// message).
package cli
