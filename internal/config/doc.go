// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for compras.
//
// # Key Types
//
//   - Config: complete configuration (api, session, storage, logging, ui)
//   - ValidationError / ValidateErrors: validation failures by field
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    // cfg still holds defaults when only the file failed to parse
//	}
//	timeout := cfg.InactivityTimeout()
//
// Example config.toml:
//
//	[api]
//	base_url = "https://compras.example.com/api"
//
//	[session]
//	inactivity_timeout_secs = 600
//	warning_countdown_secs = 60
//
//	[storage]
//	backend = "sqlite"
package config
