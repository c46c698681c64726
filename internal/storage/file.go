// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/compras-tui/internal/util"
)

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps one file per key under BaseDir.
type FileStore struct {
	// BaseDir is the directory for records
	// Default: ~/.compras/state/
	BaseDir string
}

// NewFileStore creates a store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	// SECURITY: state holds session cookies; owner-only
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{BaseDir: baseDir}, nil
}

// Get reads the record for key.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(key)
		}
		return nil, err
	}
	return data, nil
}

// Put writes the record for key.
func (s *FileStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// RELIABILITY: Atomic write with fsync prevents a torn record on crash
	return util.AtomicWriteFile(s.filePath(key), value, 0o600)
}

// Delete removes the record for key.
func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return util.RemoveIfExists(s.filePath(key))
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) filePath(key string) string {
	return filepath.Join(s.BaseDir, key+".rec")
}

// =============================================================================
// RUNTIME MARKER
// =============================================================================

// markerFile is the on-disk body of a RuntimeMarker.
type markerFile struct {
	PID       int       `json:"pid"`
	CreatedAt time.Time `json:"created_at"`
}

// RuntimeMarker is a file in the per-user runtime directory. The runtime
// directory is emptied when the user's login session ends or the host
// reboots, which bounds the marker to one desktop session.
type RuntimeMarker struct {
	Path string
}

// NewRuntimeMarker creates a marker at <runtimeDir>/session_active.
func NewRuntimeMarker(runtimeDir string) (*RuntimeMarker, error) {
	if err := os.MkdirAll(runtimeDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}
	return &RuntimeMarker{Path: filepath.Join(runtimeDir, "session_active")}, nil
}

// Set raises the marker.
func (m *RuntimeMarker) Set(context.Context) error {
	data, err := json.Marshal(markerFile{PID: os.Getpid(), CreatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(m.Path, data, 0o600)
}

// Clear lowers the marker.
func (m *RuntimeMarker) Clear(context.Context) error {
	return util.RemoveIfExists(m.Path)
}

// Present reports whether the marker file exists.
func (m *RuntimeMarker) Present(context.Context) (bool, error) {
	_, err := os.Stat(m.Path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
