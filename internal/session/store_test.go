// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/compras-tui/internal/storage"
)

func TestNewStore_StartsLoading(t *testing.T) {
	h := newHarness(t)
	assert.True(t, h.store.Loading())
	assert.False(t, h.store.Authenticated())
	assert.Nil(t, h.store.Tenant())
	assert.Equal(t, 1, h.client.InterceptorCount())

	h.store.Close()
	assert.Equal(t, 0, h.client.InterceptorCount())
}

func TestStore_LoginEstablishesSession(t *testing.T) {
	h := newHarness(t)
	ev := recordEvents(h.store)
	h.login(t, "joao", "segredo", "")

	user := h.store.User()
	require.NotNil(t, user)
	assert.Equal(t, "joao", user.Username)
	assert.Equal(t, RoleGestor, user.Role)
	assert.True(t, user.Permissions.PageCompras)
	assert.False(t, h.store.Loading())
	assert.Equal(t, MonitorWatching, h.store.Monitor().State())

	assert.Equal(t, &Tenant{SchemaName: "alfa", Nome: "Construtora Alfa"}, h.store.Tenant())
	assert.Equal(t, "alfa", h.client.Tenant())

	data, err := h.backend.Store.Get(context.Background(), storage.KeyTenantInfo)
	require.NoError(t, err)
	var saved Tenant
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, "alfa", saved.SchemaName)

	present, err := h.backend.Marker.Present(context.Background())
	require.NoError(t, err)
	assert.True(t, present)

	last := ev.last()
	assert.Equal(t, EventChanged, last.Kind)
	assert.True(t, last.Snapshot.Authenticated())
}

func TestStore_LoginRejectsInvalidTenant(t *testing.T) {
	h := newHarness(t)
	err := h.store.Login(context.Background(), Tenant{Nome: "sem schema"})
	assert.ErrorIs(t, err, ErrNoTenant)

	_, err = h.backend.Store.Get(context.Background(), storage.KeyTenantInfo)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_LoginWithoutCredentialsFails(t *testing.T) {
	h := newHarness(t)

	// no cookies: the identity fetch 401s, the refresh fails, the session
	// is torn down
	require.NoError(t, h.store.Login(context.Background(), Tenant{SchemaName: "alfa"}))

	assert.False(t, h.store.Authenticated())
	assert.Nil(t, h.store.Tenant())
	assert.False(t, h.store.Loading())
	assert.Empty(t, h.client.Tenant())
	assert.Equal(t, int64(1), h.srv.Stats().Logouts)

	present, _ := h.backend.Marker.Present(context.Background())
	assert.False(t, present)
}

func TestStore_LogoutClearsEverything(t *testing.T) {
	h := newHarness(t)
	h.login(t, "joao", "segredo", "")
	ev := recordEvents(h.store)
	require.Positive(t, h.client.Jar().Len())

	require.NoError(t, h.store.Logout(context.Background()))

	assert.False(t, h.store.Authenticated())
	assert.Nil(t, h.store.Tenant())
	assert.False(t, h.store.Loading())
	assert.Empty(t, h.client.Tenant())
	assert.Zero(t, h.client.Jar().Len())
	assert.Equal(t, MonitorStopped, h.store.Monitor().State())

	_, err := h.backend.Store.Get(context.Background(), storage.KeyTenantInfo)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = h.backend.Secrets.Get(context.Background(), storage.KeyCookies)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	present, _ := h.backend.Marker.Present(context.Background())
	assert.False(t, present)

	assert.Equal(t, 1, ev.count(EventLoggedOut))
	assert.False(t, ev.last().Snapshot.Authenticated())

	// later requests go out without credentials or tenant
	_, err = h.client.Get(context.Background(), PathMe, nil)
	assert.Error(t, err)
}

func TestStore_LogoutSucceedsWhenServerFails(t *testing.T) {
	h := newHarness(t)
	h.login(t, "joao", "segredo", "")
	h.srv.FailLogout(true)

	assert.NoError(t, h.store.Logout(context.Background()))
	assert.False(t, h.store.Authenticated())
	assert.Nil(t, h.store.Tenant())
	_, err := h.backend.Store.Get(context.Background(), storage.KeyTenantInfo)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_LogoutIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.login(t, "joao", "segredo", "")

	for i := 0; i < 3; i++ {
		assert.NoError(t, h.store.Logout(context.Background()))
	}
	assert.False(t, h.store.Authenticated())

	// a logout with nothing to clear still succeeds
	fresh := newHarness(t)
	assert.NoError(t, fresh.store.Logout(context.Background()))
}

func TestStore_ConcurrentLogoutSharesOneCall(t *testing.T) {
	h := newHarness(t)
	h.login(t, "joao", "segredo", "")
	ev := recordEvents(h.store)

	g := newGate()
	h.srv.OnLogout(g.hook)
	t.Cleanup(g.open)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, h.store.Logout(context.Background()))
	}()
	<-g.entered

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.store.Logout(context.Background()))
		}()
	}
	// let the followers join the in-flight logout
	time.Sleep(50 * time.Millisecond)
	g.open()
	wg.Wait()

	assert.Equal(t, int64(1), h.srv.Stats().Logouts)
	assert.Equal(t, 1, ev.count(EventLoggedOut))
}

func TestStore_LogoutCancelledContextStillClears(t *testing.T) {
	h := newHarness(t)
	h.login(t, "joao", "segredo", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, h.store.Logout(ctx))
	assert.False(t, h.store.Authenticated())
	assert.Equal(t, int64(1), h.srv.Stats().Logouts, "server call detached from the caller")
}

func TestStore_FetchAndSetUserWithoutTenant(t *testing.T) {
	h := newHarness(t)
	err := h.store.FetchAndSetUser(context.Background())
	assert.ErrorIs(t, err, ErrNoTenant)
	assert.False(t, h.store.Loading())
	assert.Equal(t, int64(0), h.srv.Stats().Me)
}

func TestStore_FetchAndSetUserRefreshesUser(t *testing.T) {
	h := newHarness(t)
	h.login(t, "joao", "segredo", "")
	h.srv.ExpireAccessTokens()

	require.NoError(t, h.store.FetchAndSetUser(context.Background()))
	assert.True(t, h.store.Authenticated())
	assert.Equal(t, int64(1), h.srv.Stats().Refreshes)
}

func TestStore_SetUser(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.store.SetUser(&User{Username: "x"}), ErrNoTenant)
	assert.Error(t, h.store.SetUser(nil))

	h.login(t, "joao", "segredo", "")
	u := h.store.User()
	u.Email = "novo@alfa.com.br"
	require.NoError(t, h.store.SetUser(u))
	assert.Equal(t, "novo@alfa.com.br", h.store.User().Email)

	// callers get copies
	u.Email = "outro@alfa.com.br"
	assert.Equal(t, "novo@alfa.com.br", h.store.User().Email)
}

func TestStore_SubscribeAndUnsubscribe(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	calls := 0
	unsubscribe := h.store.Subscribe(func(Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	h.login(t, "joao", "segredo", "")
	mu.Lock()
	seen := calls
	mu.Unlock()
	assert.Positive(t, seen)

	unsubscribe()
	unsubscribe()
	require.NoError(t, h.store.Logout(context.Background()))
	mu.Lock()
	assert.Equal(t, seen, calls)
	mu.Unlock()
}

// =============================================================================
// INACTIVITY THROUGH THE STORE
// =============================================================================

func TestStore_InactivityLogsOut(t *testing.T) {
	h := newHarness(t)
	h.login(t, "joao", "segredo", "")
	ev := recordEvents(h.store)

	h.clock.Advance(DefaultInactivityTimeout)
	snap := h.store.Snapshot()
	require.True(t, snap.WarningOpen)
	assert.Equal(t, 60, snap.Countdown)
	assert.True(t, snap.Authenticated(), "still signed in during the warning")
	assert.Equal(t, EventWarning, ev.last().Kind)

	h.clock.Advance(59 * time.Second)
	assert.Equal(t, 1, h.store.Snapshot().Countdown)

	h.clock.Advance(time.Second)
	assert.False(t, h.store.Authenticated())
	assert.False(t, h.store.Snapshot().WarningOpen)
	assert.Equal(t, 1, ev.count(EventLoggedOut))
	assert.Equal(t, int64(1), h.srv.Stats().Logouts)

	h.clock.Advance(time.Hour)
	assert.Equal(t, int64(1), h.srv.Stats().Logouts)
}

func TestStore_ContinueSessionKeepsUser(t *testing.T) {
	h := newHarness(t)
	h.login(t, "joao", "segredo", "")

	assert.False(t, h.store.ContinueSession())

	h.clock.Advance(DefaultInactivityTimeout + 30*time.Second)
	require.True(t, h.store.Snapshot().WarningOpen)

	h.store.Activity()
	assert.True(t, h.store.Snapshot().WarningOpen)

	assert.True(t, h.store.ContinueSession())
	assert.False(t, h.store.Snapshot().WarningOpen)

	h.clock.Advance(DefaultInactivityTimeout - time.Second)
	assert.True(t, h.store.Authenticated())
	assert.Equal(t, int64(0), h.srv.Stats().Logouts)
}

func TestStore_ActivityDefersWarning(t *testing.T) {
	h := newHarness(t)
	h.login(t, "joao", "segredo", "")

	for i := 0; i < 6; i++ {
		h.clock.Advance(5 * time.Minute)
		h.store.Activity()
	}
	assert.False(t, h.store.Snapshot().WarningOpen)
	assert.True(t, h.store.Authenticated())
}

func TestStore_LogoutClosesWarning(t *testing.T) {
	h := newHarness(t)
	h.login(t, "joao", "segredo", "")
	h.clock.Advance(DefaultInactivityTimeout)
	require.True(t, h.store.Snapshot().WarningOpen)

	require.NoError(t, h.store.Logout(context.Background()))
	assert.False(t, h.store.Snapshot().WarningOpen)
	assert.Equal(t, 0, h.clock.Active())
}
