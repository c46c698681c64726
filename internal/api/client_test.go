// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/compras-tui/internal/storage"
)

func newTestClient(t *testing.T, h http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL + "/api/")
	require.NoError(t, err)
	return c, srv
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8000", "/api", "://x"} {
		_, err := NewClient(raw)
		assert.Error(t, err, raw)
	}
}

func TestClient_JoinsPathUnderBase(t *testing.T) {
	var gotPath, gotQuery string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))

	_, err := c.Get(context.Background(), "/auth/me/", url.Values{"page": {"2"}})
	require.NoError(t, err)
	assert.Equal(t, "/api/auth/me/", gotPath)
	assert.Equal(t, "page=2", gotQuery)
}

func TestClient_TenantHeader(t *testing.T) {
	var seen []string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("X-Tenant-ID"))
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		w.WriteHeader(http.StatusNoContent)
	}))
	ctx := context.Background()

	_, err := c.Get(ctx, "/a/", nil)
	require.NoError(t, err)

	c.SetTenant("alfa")
	assert.Equal(t, "alfa", c.Tenant())
	_, err = c.Get(ctx, "/b/", nil)
	require.NoError(t, err)

	c.ClearTenant()
	_, err = c.Get(ctx, "/c/", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "alfa", ""}, seen)
}

func TestClient_CustomTenantHeader(t *testing.T) {
	var got string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Schema")
	}))
	c.WithTenantHeader("x-schema").SetTenant("beta")

	_, err := c.Get(context.Background(), "/x/", nil)
	require.NoError(t, err)
	assert.Equal(t, "beta", got)
}

func TestClient_PostJSON(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(map[string]string{"echo": body["username"]})
	}))

	resp, err := c.Post(context.Background(), "/auth/login/", map[string]string{"username": "maria"})
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, resp.JSON(&out))
	assert.Equal(t, "maria", out["echo"])
}

func TestClient_ErrorDetail(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"detail":"Sem permissão"}`))
	}))

	_, err := c.Get(context.Background(), "/processos/", nil)
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "Sem permissão", Detail(err))
	assert.False(t, IsUnauthorized(err))
	assert.Equal(t, 403, StatusCode(err))
}

func TestClient_InvalidPath(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	_, err := c.Get(context.Background(), "http://evil.example.com/", nil)
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = c.Get(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

// =============================================================================
// INTERCEPTORS
// =============================================================================

func TestClient_InterceptorRecovers(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))

	c.Use(func(ctx context.Context, req *Request, err error) (*Response, error) {
		if !IsUnauthorized(err) || req.Retried {
			return nil, err
		}
		retry := *req
		retry.Retried = true
		return c.Do(ctx, &retry)
	})

	resp, err := c.Get(context.Background(), "/data/", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_InterceptorChainAndEject(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	var order []string
	first := c.Use(func(ctx context.Context, req *Request, err error) (*Response, error) {
		order = append(order, "first")
		return nil, err
	})
	c.Use(func(ctx context.Context, req *Request, err error) (*Response, error) {
		order = append(order, "second")
		return nil, err
	})
	assert.Equal(t, 2, c.InterceptorCount())

	_, err := c.Get(context.Background(), "/x/", nil)
	require.Error(t, err)
	assert.Equal(t, 500, StatusCode(err))
	assert.Equal(t, []string{"first", "second"}, order)

	c.Eject(first)
	c.Eject(first)
	assert.Equal(t, 1, c.InterceptorCount())

	order = nil
	_, _ = c.Get(context.Background(), "/x/", nil)
	assert.Equal(t, []string{"second"}, order)
}

// =============================================================================
// COOKIE JAR
// =============================================================================

func TestJar_PersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "a1", Path: "/", MaxAge: 900, HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "tmp", Path: "/"})
	})
	mux.HandleFunc("/api/auth/me/", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("access_token"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/api/auth/logout/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "access_token", Path: "/", MaxAge: -1})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	jar, err := NewPersistentJar(ctx, store, zerolog.Nop())
	require.NoError(t, err)
	c, err := NewClient(srv.URL + "/api")
	require.NoError(t, err)
	c.WithJar(jar)

	_, err = c.Post(ctx, "/auth/login/", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, jar.Len(), "session cookie not persisted")

	// a second process restores the credential cookie
	jar2, err := NewPersistentJar(ctx, store, zerolog.Nop())
	require.NoError(t, err)
	c2, err := NewClient(srv.URL + "/api")
	require.NoError(t, err)
	c2.WithJar(jar2)
	_, err = c2.Get(ctx, "/auth/me/", nil)
	require.NoError(t, err)

	// server-side deletion removes the record
	_, err = c2.Post(ctx, "/auth/logout/", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, jar2.Len())
	_, err = store.Get(ctx, storage.KeyCookies)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestJar_DropsMalformedRecord(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Put(ctx, storage.KeyCookies, []byte("{not json")))

	jar, err := NewPersistentJar(ctx, store, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, jar.Len())

	_, err = store.Get(ctx, storage.KeyCookies)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestJar_Clear(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	jar, err := NewPersistentJar(ctx, store, zerolog.Nop())
	require.NoError(t, err)

	u, _ := url.Parse("http://compras.example.com/api/auth/login/")
	jar.SetCookies(u, []*http.Cookie{{Name: "refresh_token", Value: "r", Path: "/", MaxAge: 3600}})
	require.Equal(t, 1, jar.Len())
	require.Len(t, jar.Cookies(u), 1)

	require.NoError(t, jar.Clear(ctx))
	assert.Equal(t, 0, jar.Len())
	assert.Empty(t, jar.Cookies(u))
	_, err = store.Get(ctx, storage.KeyCookies)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
