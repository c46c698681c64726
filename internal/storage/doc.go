// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the small amount of client state compras keeps
// between runs.
//
// # Key Types
//
//   - Store: durable key/value records (file, sqlite, redis, memory)
//   - SealedStore: a Store wrapper that encrypts values at rest
//   - Marker: the ephemeral "session active" flag
//
// # Records
//
// The durable store holds two keys: "tenant_info" (the selected company as
// JSON) and "cookies" (the persisted cookie jar, sealed by default). The
// marker is deliberately not durable: the file marker lives in the runtime
// directory and the redis marker carries a TTL, so a reboot or an expired
// marker forces a fresh login even when the tenant record survives.
//
// # Usage
//
//	b, err := storage.Open(ctx, cfg)
//	defer b.Close()
//	err = b.Store.Put(ctx, storage.KeyTenantInfo, data)
//	ok, err := b.Marker.Present(ctx)
package storage
