// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Version information (overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdLogin
	CmdLogout
	CmdWhoami
	CmdGet
	CmdNotify
	CmdWatch
	CmdConfig
	CmdVersion
	CmdHelp
	CmdUnknown
)

var commandNames = map[Command]string{
	CmdTUI:     "tui",
	CmdLogin:   "login",
	CmdLogout:  "logout",
	CmdWhoami:  "whoami",
	CmdGet:     "get",
	CmdNotify:  "notify",
	CmdWatch:   "watch",
	CmdConfig:  "config",
	CmdVersion: "version",
	CmdHelp:    "help",
	CmdUnknown: "unknown",
}

// String returns the command name.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	JSON       bool
	Verbose    bool
	Quiet      bool
	ConfigPath string

	// Name is the command as typed (for error messages)
	Name string

	// Raw holds the arguments after the command name
	Raw []string
}

// Parser returns an ArgParser over the command arguments.
func (a Args) Parser() *ArgParser {
	return NewArgParser(a.Raw)
}

const usageText = `compras - terminal client for the compras purchasing system

Usage:
  compras                          Start the TUI (default)
  compras login [flags]            Sign in
  compras logout                   Sign out here and on the server
  compras whoami, status           Show the signed-in user and company
  compras get <path> [flags]       Authenticated GET against the API
  compras notify [topic] [flags]   Tell other compras processes data changed
  compras watch [topic]            Print change notifications as they arrive
  compras config [show|get|path]   Configuration
  compras version                  Version information
  compras help                     This text

Login flags:
  --user, -u NAME                  Username (prompted when omitted)
  --tenant, -t SCHEMA              Company schema; skips the company prompt
  --password-stdin                 Read the password from stdin

Get flags:
  --query, -q KEY=VALUE            Query parameter (repeatable)

Notify flags:
  --data TEXT                      Payload (default "update")

Global flags:
  --json                           JSON output on stdout
  --config PATH                    Use this config file
  -v, --verbose                    Debug logging on stderr
  --quiet                          Errors only on stderr

Environment:
  COMPRAS_API_URL                  Backend API root
  COMPRAS_HOME                     Configuration directory (default ~/.compras)
  COMPRAS_STORAGE_BACKEND          file, sqlite or redis

Examples:
  compras login -u maria -t alfa
  compras get processos/ -q status=parcial --json
  compras notify processo-update

Version: %s
`

// PrintUsage writes the help text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses argv (without the program name) into a command and its
// arguments.
func ParseArgs(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, args
	}

	args.Name = remaining[0]
	args.Raw = remaining[1:]

	switch strings.ToLower(remaining[0]) {
	case "tui":
		return CmdTUI, args
	case "login", "signin":
		return CmdLogin, args
	case "logout", "signout":
		return CmdLogout, args
	case "whoami", "status", "s":
		return CmdWhoami, args
	case "get":
		return CmdGet, args
	case "notify":
		return CmdNotify, args
	case "watch":
		return CmdWatch, args
	case "config":
		return CmdConfig, args
	case "version", "--version", "-V":
		return CmdVersion, args
	case "help", "--help", "-h":
		return CmdHelp, args
	default:
		return CmdUnknown, args
	}
}

// parseGlobalFlags extracts global flags wherever they appear.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--json":
			args.JSON = true
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "--quiet":
			args.Quiet = true
		case arg == "--config":
			if i+1 < len(argv) {
				i++
				args.ConfigPath = argv[i]
			}
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args
}
