// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "errors"

var (
	// ErrSessionExpired wraps a failed credential refresh. The session has
	// been logged out by the time a caller sees it.
	ErrSessionExpired = errors.New("session expired")

	// ErrNoTenant indicates an operation that needs a selected tenant.
	ErrNoTenant = errors.New("no tenant selected")

	// ErrTenantSelection indicates the login exchange needs a tenant choice.
	ErrTenantSelection = errors.New("tenant selection required")

	// ErrInvalidCredentials indicates the login exchange rejected the
	// username or password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrMissingCredentials indicates an empty username or password.
	ErrMissingCredentials = errors.New("username and password are required")

	// ErrLoginThrottled indicates too many login attempts in a short window.
	ErrLoginThrottled = errors.New("too many login attempts, wait a moment")

	// ErrIdentityUnavailable indicates the identity fetch failed after login.
	ErrIdentityUnavailable = errors.New("could not load the current user")
)
