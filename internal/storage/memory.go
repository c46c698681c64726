// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store, used by tests and one-shot commands.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get returns a copy of the value for key.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, notFound(key)
	}
	return append([]byte(nil), v...), nil
}

// Put stores a copy of value.
func (m *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// MemoryMarker is an in-process Marker.
type MemoryMarker struct {
	mu  sync.Mutex
	set bool
}

// Set raises the marker.
func (m *MemoryMarker) Set(context.Context) error {
	m.mu.Lock()
	m.set = true
	m.mu.Unlock()
	return nil
}

// Clear lowers the marker.
func (m *MemoryMarker) Clear(context.Context) error {
	m.mu.Lock()
	m.set = false
	m.mu.Unlock()
	return nil
}

// Present reports whether the marker is raised.
func (m *MemoryMarker) Present(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set, nil
}
