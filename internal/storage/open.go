// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jeranaias/compras-tui/internal/config"
)

// Backend bundles the stores a session needs.
type Backend struct {
	// Store holds the durable tenant record
	Store Store
	// Secrets holds the cookie jar; sealed unless disabled in config
	Secrets Store
	// Marker is the ephemeral session flag
	Marker Marker

	closers []func() error
}

// Close releases every backend resource.
func (b *Backend) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}

// Open builds the backend selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	sc := cfg.Storage
	b := &Backend{}

	switch sc.Backend {
	case "", "file":
		fs, err := NewFileStore(sc.StateDir)
		if err != nil {
			return nil, err
		}
		marker, err := NewRuntimeMarker(sc.RuntimeDir)
		if err != nil {
			return nil, err
		}
		b.Store, b.Marker = fs, marker

	case "sqlite":
		db, err := NewSQLiteStore(sc.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		marker, err := NewRuntimeMarker(sc.RuntimeDir)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Store, b.Marker = db, marker

	case "redis":
		client, err := DialRedis(ctx, sc.RedisAddr, sc.RedisPassword, sc.RedisDB)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		b.Store = NewRedisStore(client, sc.RedisPrefix)
		b.Marker = NewRedisMarker(client, sc.RedisPrefix, cfg.MarkerTTL())

	default:
		return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}

	b.Secrets = b.Store
	if sc.SealCookies {
		key, err := LoadOrCreateSealKey(filepath.Join(sc.StateDir, "seal.key"))
		if err != nil {
			b.Close()
			return nil, err
		}
		sealed, err := NewSealedStore(b.Store, key)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Secrets = sealed
	}
	return b, nil
}

// NewMemoryBackend returns an in-process backend.
func NewMemoryBackend() *Backend {
	s := NewMemoryStore()
	return &Backend{Store: s, Secrets: s, Marker: &MemoryMarker{}}
}
