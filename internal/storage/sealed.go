// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/jeranaias/compras-tui/internal/util"
)

// sealedPrefix marks a sealed value (format: prefix|nonce|ciphertext|tag)
var sealedPrefix = []byte("SEAL1:")

var (
	// ErrSealBroken indicates a value that fails authentication (wrong key
	// or tampered data).
	ErrSealBroken = errors.New("sealed value failed authentication")

	// ErrBadSealKey indicates a key file of the wrong size.
	ErrBadSealKey = errors.New("seal key must be 32 bytes")
)

// SealedStore encrypts values with XChaCha20-Poly1305 before handing them to
// the inner store. The record key is bound as additional data so a sealed
// value cannot be moved to another key.
type SealedStore struct {
	inner Store
	aead  cipher.AEAD
}

// NewSealedStore wraps inner with the 32-byte key.
func NewSealedStore(inner Store, key []byte) (*SealedStore, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrBadSealKey
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &SealedStore{inner: inner, aead: aead}, nil
}

// LoadOrCreateSealKey reads the key at path, creating a random one (0600)
// when the file does not exist.
func LoadOrCreateSealKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != chacha20poly1305.KeySize {
			return nil, ErrBadSealKey
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read seal key: %w", err)
	}

	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate seal key: %w", err)
	}
	if err := util.AtomicWriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write seal key: %w", err)
	}
	return key, nil
}

// Get opens the sealed value for key.
func (s *SealedStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, sealedPrefix) {
		return nil, fmt.Errorf("%s: %w", key, ErrSealBroken)
	}
	data = data[len(sealedPrefix):]
	ns := s.aead.NonceSize()
	if len(data) < ns+s.aead.Overhead() {
		return nil, fmt.Errorf("%s: %w", key, ErrSealBroken)
	}
	plain, err := s.aead.Open(nil, data[:ns], data[ns:], []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, ErrSealBroken)
	}
	return plain, nil
}

// Put seals value and stores it.
func (s *SealedStore) Put(ctx context.Context, key string, value []byte) error {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := make([]byte, 0, len(sealedPrefix)+len(nonce)+len(value)+s.aead.Overhead())
	out = append(out, sealedPrefix...)
	out = append(out, nonce...)
	out = s.aead.Seal(out, nonce, value, []byte(key))
	return s.inner.Put(ctx, key, out)
}

// Delete removes key from the inner store.
func (s *SealedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// Close is a no-op; the inner store is closed by its owner.
func (s *SealedStore) Close() error { return nil }
