// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"regexp"
)

// Well-known record keys.
const (
	// KeyTenantInfo holds the selected tenant as JSON {"schema_name","nome"}
	KeyTenantInfo = "tenant_info"

	// KeyCookies holds the persisted cookie jar
	KeyCookies = "cookies"
)

// =============================================================================
// INTERFACES
// =============================================================================

// Store is a durable key/value store. Values are opaque bytes.
// Get returns ErrNotFound for a missing key; Delete of a missing key is not
// an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Marker is the ephemeral flag recording that a session was established in
// the current runtime session.
type Marker interface {
	Set(ctx context.Context) error
	Clear(ctx context.Context) error
	Present(ctx context.Context) (bool, error)
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotFound is returned when a key doesn't exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &KeyError{Message: "key not found"}

// ErrInvalidKey is returned for keys outside [a-z0-9_.-].
var ErrInvalidKey = &KeyError{Message: "invalid key"}

// KeyError represents a storage key error.
// It implements the error interface and can be compared using errors.Is.
type KeyError struct {
	Message string
	Key     string
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %q", e.Message, e.Key)
	}
	return e.Message
}

// Is implements errors.Is support by comparing messages.
func (e *KeyError) Is(target error) bool {
	t, ok := target.(*KeyError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

func notFound(key string) error {
	return &KeyError{Message: ErrNotFound.Message, Key: key}
}

// SECURITY: keys become file names and redis keys; restrict the alphabet
var validKey = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)

// ValidateKey checks that key is safe for every backend.
func ValidateKey(key string) error {
	if !validKey.MatchString(key) {
		return &KeyError{Message: ErrInvalidKey.Message, Key: key}
	}
	return nil
}
