// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser splits command arguments into flags and positionals.
//
// Supported flag formats:
//
//	--flag value     long flag with a separate value
//	--flag=value     long flag with equals sign
//	-f value         short flag with a separate value
//	--flag           boolean flag
//
// Example:
//
//	p := NewArgParser([]string{"processos/", "--query", "status=parcial", "--json"})
//	p.Subcommand()      // "processos/"
//	p.Flag("query")     // "status=parcial"
//	p.BoolFlag("json")  // true
type ArgParser struct {
	subcommand string
	flags      map[string]string
	multi      map[string][]string
	boolFlags  map[string]bool
	positional []string
	raw        []string
}

// knownBoolFlags never consume the following argument as a value.
var knownBoolFlags = map[string]bool{
	"json":           true,
	"password-stdin": true,
	"help":           true,
	"h":              true,
}

// NewArgParser parses raw command arguments.
func NewArgParser(raw []string) *ArgParser {
	p := &ArgParser{
		flags:      make(map[string]string),
		multi:      make(map[string][]string),
		boolFlags:  make(map[string]bool),
		positional: make([]string, 0),
		raw:        raw,
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]

		if arg == "--" {
			p.positional = append(p.positional, raw[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			p.positional = append(p.positional, arg)
			continue
		}

		if name, value, ok := strings.Cut(arg, "="); ok {
			name = strings.TrimLeft(name, "-")
			if knownBoolFlags[name] {
				if b, err := ParseBoolString(value); err == nil {
					p.boolFlags[name] = b
					continue
				}
			}
			p.setFlag(name, value)
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if !knownBoolFlags[name] && i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
			p.setFlag(name, raw[i+1])
			i++
			continue
		}
		p.boolFlags[name] = true
	}

	if len(p.positional) > 0 {
		p.subcommand = p.positional[0]
	}
	return p
}

func (p *ArgParser) setFlag(name, value string) {
	p.flags[name] = value
	p.multi[name] = append(p.multi[name], value)
}

// Subcommand returns the first positional argument.
func (p *ArgParser) Subcommand() string {
	return p.subcommand
}

// Flag returns the last value given for a string flag, or "".
func (p *ArgParser) Flag(name string) string {
	return p.flags[strings.TrimLeft(name, "-")]
}

// Flags returns every value given for a repeatable flag, in order.
func (p *ArgParser) Flags(name string) []string {
	return p.multi[strings.TrimLeft(name, "-")]
}

// FlagOrDefault returns the flag value or defaultValue.
func (p *ArgParser) FlagOrDefault(name, defaultValue string) string {
	if v := p.Flag(name); v != "" {
		return v
	}
	return defaultValue
}

// FlagInt returns the flag value as an integer.
func (p *ArgParser) FlagInt(name string) (int, error) {
	v := p.Flag(name)
	if v == "" {
		return 0, fmt.Errorf("flag %s not found", name)
	}
	return strconv.Atoi(v)
}

// FlagIntOrDefault returns the flag as an integer, or defaultValue when it
// is missing or malformed.
func (p *ArgParser) FlagIntOrDefault(name string, defaultValue int) int {
	v, err := p.FlagInt(name)
	if err != nil {
		return defaultValue
	}
	return v
}

// BoolFlag reports whether a boolean flag is set.
func (p *ArgParser) BoolFlag(name string) bool {
	return p.boolFlags[strings.TrimLeft(name, "-")]
}

// Positional returns the positional argument at index, or "".
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns the positional arguments from index on.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return []string{}
	}
	return p.positional[index:]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// HasFlag reports whether name was given in any form.
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, s := p.flags[name]
	_, b := p.boolFlags[name]
	return s || b
}

// Raw returns the original arguments.
func (p *ArgParser) Raw() []string {
	return p.raw
}

// =============================================================================
// HELPERS
// =============================================================================

// ParseBoolString parses true/false, yes/no, y/n, 1/0 and on/off.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "on", "sim", "s":
		return true, nil
	case "false", "no", "n", "0", "off", "nao", "não":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}
