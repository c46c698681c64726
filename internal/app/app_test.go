// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/compras-tui/internal/config"
	"github.com/jeranaias/compras-tui/internal/events"
	"github.com/jeranaias/compras-tui/internal/mockapi"
	"github.com/jeranaias/compras-tui/internal/session"
)

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.API.BaseURL = baseURL
	cfg.Storage.StateDir = t.TempDir()
	cfg.Storage.RuntimeDir = t.TempDir()
	cfg.Logging.Path = ""
	cfg.SetDefaults()
	return cfg
}

func newBackend(t *testing.T) (*mockapi.Server, string) {
	t.Helper()
	srv := mockapi.NewDemo(mockapi.Options{})
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	return srv, hs.URL + "/api"
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), nil, Options{})
	assert.Error(t, err)

	cfg := testConfig(t, "http://localhost:8000/api")
	cfg.Storage.Backend = "mongo"
	_, err = New(context.Background(), cfg, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestApp_SessionSurvivesRestart(t *testing.T) {
	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			srv, url := newBackend(t)
			cfg := testConfig(t, url)
			cfg.Storage.Backend = backend
			ctx := context.Background()

			first, err := New(ctx, cfg, Options{NoEvents: true})
			require.NoError(t, err)
			require.NoError(t, first.Initialize(ctx))
			assert.False(t, first.Store.Authenticated())

			_, err = session.SignIn(ctx, first.Auth, first.Store, "joao", "segredo", "")
			require.NoError(t, err)
			require.NoError(t, first.Close())
			// the anonymous bootstrap above discarded any stale session
			logouts := srv.Stats().Logouts
			assert.Equal(t, int64(1), logouts)

			second, err := New(ctx, cfg, Options{NoEvents: true})
			require.NoError(t, err)
			t.Cleanup(func() { second.Close() })
			require.NoError(t, second.Initialize(ctx))

			require.True(t, second.Store.Authenticated())
			assert.Equal(t, "joao", second.Store.User().Username)
			assert.Equal(t, "alfa", second.Client.Tenant())
			assert.Equal(t, logouts, srv.Stats().Logouts, "resuming never logs out")
		})
	}
}

func TestApp_LogoutThenRestartIsAnonymous(t *testing.T) {
	_, url := newBackend(t)
	cfg := testConfig(t, url)
	ctx := context.Background()

	a, err := New(ctx, cfg, Options{NoEvents: true})
	require.NoError(t, err)
	require.NoError(t, a.Initialize(ctx))
	_, err = session.SignIn(ctx, a.Auth, a.Store, "joao", "segredo", "")
	require.NoError(t, err)
	require.NoError(t, a.Store.Logout(ctx))
	require.NoError(t, a.Close())

	b, err := New(ctx, cfg, Options{NoEvents: true})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	require.NoError(t, b.Initialize(ctx))
	assert.False(t, b.Store.Authenticated())
	assert.Zero(t, b.Client.Jar().Len())
}

func TestApp_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	_, url := newBackend(t)
	cfg := testConfig(t, url)
	cfg.Storage.Backend = "redis"
	cfg.Storage.RedisAddr = mr.Addr()
	ctx := context.Background()

	a, err := New(ctx, cfg, Options{NoEvents: true})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	require.NoError(t, a.Initialize(ctx))

	_, err = session.SignIn(ctx, a.Auth, a.Store, "joao", "segredo", "")
	require.NoError(t, err)
	assert.NotEmpty(t, mr.Keys())
}

func TestApp_OpensBus(t *testing.T) {
	_, url := newBackend(t)
	cfg := testConfig(t, url)

	a, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	require.NotNil(t, a.Bus)
	assert.NoError(t, a.Bus.Publish(events.TopicProcessoUpdate, "update"))
}
