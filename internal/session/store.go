// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jeranaias/compras-tui/internal/api"
	"github.com/jeranaias/compras-tui/internal/storage"
)

// logoutTimeout bounds the best-effort server logout.
const logoutTimeout = 10 * time.Second

// Options configures a Store.
type Options struct {
	// Client is the shared backend client (required)
	Client *api.Client

	// Backend holds the tenant record and the session marker (required)
	Backend *storage.Backend

	// Logger for session transitions (default: disabled)
	Logger *zerolog.Logger

	// Clock for the inactivity monitor (default: SystemClock)
	Clock Clock

	// InactivityTimeout before the warning (default: 10 minutes)
	InactivityTimeout time.Duration

	// WarningCountdown in seconds (default: 60)
	WarningCountdown int
}

// =============================================================================
// STORE
// =============================================================================

// Store is the single authoritative holder of the session. Consumers read
// it through accessors, Snapshot or Subscribe; only the Store mutates it.
type Store struct {
	client  *api.Client
	records storage.Store
	marker  storage.Marker
	log     zerolog.Logger

	monitor     *Monitor
	coordinator *Coordinator
	logoutGroup singleflight.Group
	initOnce    sync.Once
	initErr     error

	mu      sync.RWMutex
	user    *User
	tenant  *Tenant
	loading bool
	// epoch changes on every logout so an identity fetch that started
	// before the logout cannot repopulate the session after it
	epoch   uint64
	subs    map[int]func(Event)
	nextSub int
}

// NewStore creates a Store, binds the refresh coordinator to the client and
// wires the inactivity monitor to Logout. The store starts in the loading
// state until Initialize or Login settles it.
func NewStore(opts Options) *Store {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	log = log.With().Str("component", "session").Logger()

	s := &Store{
		client:  opts.Client,
		records: opts.Backend.Store,
		marker:  opts.Backend.Marker,
		log:     log,
		loading: true,
		subs:    make(map[int]func(Event)),
	}

	s.monitor = NewMonitor(MonitorConfig{
		Timeout:   opts.InactivityTimeout,
		Countdown: opts.WarningCountdown,
		Clock:     opts.Clock,
	})
	s.monitor.SetChangeCallback(func() { s.emit(EventWarning) })
	s.monitor.SetExpireCallback(func() {
		s.log.Info().Msg("inactivity countdown elapsed, logging out")
		_ = s.Logout(context.Background())
	})

	s.coordinator = NewCoordinator(opts.Client, log)
	s.coordinator.Bind(s.Logout)

	return s
}

// Close stops the monitor and detaches from the client.
func (s *Store) Close() {
	s.monitor.Stop()
	s.coordinator.Unbind()
}

// Client returns the backend client the store is bound to.
func (s *Store) Client() *api.Client {
	return s.client
}

// Monitor returns the inactivity monitor.
func (s *Store) Monitor() *Monitor {
	return s.monitor
}

// Coordinator returns the refresh coordinator.
func (s *Store) Coordinator() *Coordinator {
	return s.coordinator
}

// =============================================================================
// ACCESSORS
// =============================================================================

// User returns a copy of the current user, or nil.
func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// Tenant returns a copy of the current tenant, or nil.
func (s *Store) Tenant() *Tenant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tenant == nil {
		return nil
	}
	t := *s.tenant
	return &t
}

// Loading reports whether an authentication determination is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Authenticated reports whether a user is set.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// Snapshot returns a consistent copy of the session state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		User:    s.user.Clone(),
		Loading: s.loading,
	}
	if s.tenant != nil {
		t := *s.tenant
		snap.Tenant = &t
	}
	s.mu.RUnlock()

	snap.WarningOpen = s.monitor.WarningOpen()
	snap.Countdown = s.monitor.Countdown()
	return snap
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers fn for every session event and returns a function
// that removes it. Callbacks run outside the store's lock, possibly on
// timer goroutines; they must not block.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) emit(kind EventKind) {
	snap := s.Snapshot()

	s.mu.RLock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	ev := Event{Kind: kind, Snapshot: snap}
	for _, fn := range subs {
		fn(ev)
	}
}

// =============================================================================
// ACTIVITY
// =============================================================================

// Activity records user interaction.
func (s *Store) Activity() {
	s.monitor.Activity()
}

// ContinueSession closes the inactivity warning and keeps the session.
func (s *Store) ContinueSession() bool {
	ok := s.monitor.Continue()
	if ok {
		s.log.Debug().Msg("session continued")
	}
	return ok
}

// =============================================================================
// LOGIN
// =============================================================================

// Login establishes the session for tenant after a successful exchange:
// it persists the tenant record and the session marker, attaches the
// tenant header, then fetches the identity. A failed identity fetch is not
// an error here; the session is simply left cleared. Errors are returned
// only for an invalid tenant or when local state cannot be written.
func (s *Store) Login(ctx context.Context, tenant Tenant) error {
	if !tenant.Valid() {
		return ErrNoTenant
	}

	if err := s.saveTenant(ctx, tenant); err != nil {
		return err
	}
	if err := s.marker.Set(ctx); err != nil {
		return fmt.Errorf("failed to set session marker: %w", err)
	}

	s.client.SetTenant(tenant.SchemaName)
	s.mu.Lock()
	t := tenant
	s.tenant = &t
	s.mu.Unlock()

	s.log.Info().Str("tenant", tenant.SchemaName).Msg("login")

	if err := s.FetchAndSetUser(ctx); err != nil {
		s.log.Info().Err(err).Msg("login left the session cleared")
	}
	return nil
}

// FetchAndSetUser loads the identity from the backend. On failure it clears
// user and tenant without a full logout; only a failed refresh forces that.
func (s *Store) FetchAndSetUser(ctx context.Context) error {
	s.mu.Lock()
	if s.tenant == nil {
		s.loading = false
		s.mu.Unlock()
		s.emit(EventChanged)
		return ErrNoTenant
	}
	s.loading = true
	epoch := s.epoch
	s.mu.Unlock()
	s.emit(EventChanged)

	var user User
	resp, err := s.client.Get(ctx, PathMe, nil)
	if err == nil {
		err = resp.JSON(&user)
	}

	s.mu.Lock()
	if s.epoch != epoch {
		// logged out while the fetch was in flight
		s.loading = false
		s.mu.Unlock()
		s.emit(EventChanged)
		if err != nil {
			return err
		}
		return ErrSessionExpired
	}
	if err != nil {
		s.user = nil
		s.tenant = nil
		s.loading = false
		s.mu.Unlock()

		s.client.ClearTenant()
		s.monitor.Stop()
		s.log.Warn().Err(err).Msg("identity fetch failed")
		s.emit(EventChanged)
		return err
	}
	s.user = &user
	s.loading = false
	s.mu.Unlock()

	s.monitor.Start()
	s.log.Debug().Str("user", user.Username).Msg("identity loaded")
	s.emit(EventChanged)
	return nil
}

// SetUser replaces the identity, e.g. after the user edits their profile.
// It refuses while no tenant is selected.
func (s *Store) SetUser(u *User) error {
	if u == nil {
		return errors.New("user must not be nil")
	}
	s.mu.Lock()
	if s.tenant == nil {
		s.mu.Unlock()
		return ErrNoTenant
	}
	s.user = u.Clone()
	s.mu.Unlock()

	s.monitor.Start()
	s.emit(EventChanged)
	return nil
}

// =============================================================================
// LOGOUT
// =============================================================================

// Logout ends the session. It is idempotent and safe to call concurrently:
// overlapping calls share one execution and one server call. It never
// returns an error; server and storage failures are logged and the local
// state is cleared regardless.
func (s *Store) Logout(ctx context.Context) error {
	s.logoutGroup.Do("logout", func() (interface{}, error) {
		s.logout(ctx)
		return nil, nil
	})
	return nil
}

func (s *Store) logout(ctx context.Context) {
	s.monitor.Stop()

	s.mu.Lock()
	s.epoch++
	s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
	if _, err := s.client.Post(callCtx, PathLogout, nil); err != nil {
		s.log.Warn().Err(err).Msg("server logout failed")
	}
	cancel()

	s.mu.Lock()
	s.user = nil
	s.tenant = nil
	s.loading = false
	s.mu.Unlock()

	localCtx := context.WithoutCancel(ctx)
	if err := s.records.Delete(localCtx, storage.KeyTenantInfo); err != nil {
		s.log.Warn().Err(err).Msg("failed to delete tenant record")
	}
	if err := s.marker.Clear(localCtx); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear session marker")
	}
	s.client.ClearTenant()
	if err := s.client.Jar().Clear(localCtx); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear cookies")
	}

	s.log.Info().Msg("logout")
	s.emit(EventLoggedOut)
}
