// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mockapi is an in-memory stand-in for the compras backend's
// authentication endpoints and one tenant-scoped resource.
//
// It issues JWT access and refresh cookies the way the real backend does
// (access_token 15 min, refresh_token 1 h by default) and exposes switches
// to expire access tokens, fail the refresh or logout calls, and hooks that
// run before those calls so tests can hold them open. Counters record how
// many times each endpoint was hit.
//
// Routes (under /api):
//
//	POST /auth/login/     two-step login with tenant selection
//	POST /auth/logout/    revokes the refresh token and deletes cookies
//	GET  /auth/me/        identity with the tenant's permission set
//	POST /token/refresh/  new access cookie from the refresh cookie
//	GET  /processos/      processos of the X-Tenant-ID tenant
package mockapi
