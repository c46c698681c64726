// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the authenticated session of a compras client.
//
// # Key Types
//
//   - Store: the single holder of user, tenant and loading state
//   - Monitor: inactivity deadline, warning and countdown
//   - Coordinator: single-flight credential refresh behind the HTTP client
//   - Authenticator: the two-step login exchange
//
// # Lifecycle
//
// A Store is built once at process start and injected into every consumer.
// Initialize restores a prior session when the runtime marker is present;
// Login establishes a new one after a successful exchange; Logout tears it
// down (idempotent, safe to call concurrently). While a user is set the
// Monitor watches for activity: after the quiet period the warning opens
// and a countdown runs; reaching zero logs out.
//
// # Usage
//
//	store := session.NewStore(session.Options{Client: client, Backend: backend})
//	defer store.Close()
//	unsubscribe := store.Subscribe(func(ev session.Event) { ... })
//	store.Initialize(ctx)
package session
