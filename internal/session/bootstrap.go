// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/compras-tui/internal/storage"
)

// =============================================================================
// TENANT RECORD
// =============================================================================

func (s *Store) saveTenant(ctx context.Context, t Tenant) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := s.records.Put(ctx, storage.KeyTenantInfo, data); err != nil {
		return fmt.Errorf("failed to save tenant record: %w", err)
	}
	return nil
}

// errMalformedRecord marks a tenant record that must be discarded.
var errMalformedRecord = errors.New("malformed tenant record")

// loadTenant reads the tenant record. It returns (nil, nil) when there is
// no record.
func (s *Store) loadTenant(ctx context.Context) (*Tenant, error) {
	data, err := s.records.Get(ctx, storage.KeyTenantInfo)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t Tenant
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedRecord, err)
	}
	if !t.Valid() {
		return nil, fmt.Errorf("%w: missing schema_name", errMalformedRecord)
	}
	return &t, nil
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

// Initialize decides, once per process, whether a prior session resumes.
//
//   - No session marker: the previous runtime session ended, so any stored
//     tenant is stale. Logout runs and the store settles anonymous.
//   - Marker and tenant record: the tenant header is restored and the
//     identity fetch validates the session against the server.
//   - Marker without record: anonymous.
//
// A malformed record is deleted. Later calls return the first call's result.
func (s *Store) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.initialize(ctx)
	})
	return s.initErr
}

func (s *Store) initialize(ctx context.Context) error {
	present, err := s.marker.Present(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("session marker unreadable, treating as absent")
		present = false
	}

	if !present {
		s.log.Debug().Msg("no session marker, discarding any stored session")
		_ = s.Logout(ctx)
		s.settle()
		return nil
	}

	tenant, err := s.loadTenant(ctx)
	if errors.Is(err, errMalformedRecord) {
		s.log.Warn().Err(err).Msg("discarding tenant record")
		if derr := s.records.Delete(ctx, storage.KeyTenantInfo); derr != nil {
			s.log.Warn().Err(derr).Msg("failed to delete tenant record")
		}
		s.settle()
		return nil
	}
	if err != nil {
		s.settle()
		return fmt.Errorf("failed to read tenant record: %w", err)
	}
	if tenant == nil {
		s.settle()
		return nil
	}

	s.client.SetTenant(tenant.SchemaName)
	s.mu.Lock()
	s.tenant = tenant
	s.mu.Unlock()

	if err := s.FetchAndSetUser(ctx); err != nil {
		s.log.Info().Err(err).Msg("stored session is no longer valid")
	}
	return nil
}

// settle ends the loading state without touching user or tenant.
func (s *Store) settle() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	s.emit(EventChanged)
}
