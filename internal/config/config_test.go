// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points COMPRAS_HOME at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("COMPRAS_HOME", home)
	for _, k := range []string{
		"COMPRAS_API_URL", "COMPRAS_TENANT_HEADER", "COMPRAS_INSECURE",
		"COMPRAS_STORAGE_BACKEND", "COMPRAS_STATE_DIR", "COMPRAS_RUNTIME_DIR",
		"COMPRAS_REDIS_ADDR", "COMPRAS_REDIS_PASSWORD", "COMPRAS_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	return home
}

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "X-Tenant-ID", cfg.API.TenantHeader)
	assert.Equal(t, 10*time.Minute, cfg.InactivityTimeout())
	assert.Equal(t, 60, cfg.Session.WarningCountdownSecs)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.True(t, cfg.Storage.SealCookies)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api", cfg.API.BaseURL)
	assert.Equal(t, filepath.Join(home, "state"), cfg.Storage.StateDir)
	assert.Equal(t, filepath.Join(home, "state", "compras.db"), cfg.Storage.SQLitePath)
	assert.Equal(t, filepath.Join(home, "compras.log"), cfg.Logging.Path)
	assert.NotEmpty(t, cfg.Storage.RuntimeDir)
}

// =============================================================================
// FILE FORMATS
// =============================================================================

func TestLoad_TOML(t *testing.T) {
	home := isolate(t)
	body := `
[api]
base_url = "https://compras.example.com/api/"

[session]
inactivity_timeout_secs = 300

[storage]
backend = "SQLite"
`
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte(body), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://compras.example.com/api", cfg.API.BaseURL, "trailing slash trimmed")
	assert.Equal(t, 5*time.Minute, cfg.InactivityTimeout())
	assert.Equal(t, 60, cfg.Session.WarningCountdownSecs, "unset keys keep defaults")
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
}

func TestLoad_YAML(t *testing.T) {
	home := isolate(t)
	body := "api:\n  base_url: https://y.example.com/api\nstorage:\n  backend: redis\n  redis_addr: cache:6379\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(body), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://y.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "cache:6379", cfg.Storage.RedisAddr)
}

func TestLoad_JSON(t *testing.T) {
	home := isolate(t)
	body := `{"session": {"warning_countdown_secs": 30}}`
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.json"), []byte(body), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Session.WarningCountdownSecs)
}

func TestLoad_TOMLWinsOverJSON(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte("[ui]\ntheme = \"light\"\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.json"), []byte(`{"ui":{"theme":"dark"}}`), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "light", cfg.UI.Theme)
}

func TestLoad_BrokenFileFallsBackToDefaults(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte("[api\nbroken"), 0o600))

	cfg, err := Load()
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, Default().API.BaseURL, cfg.API.BaseURL)
}

func TestLoad_FixesPermissions(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("version = \"1\"\n"), 0o644))

	_, err := Load()
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.API.BaseURL = "https://saved.example.com/api"
	cfg.Session.InactivityTimeoutSecs = 900
	require.NoError(t, SaveTOML(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example.com/api", loaded.API.BaseURL)
	assert.Equal(t, 900, loaded.Session.InactivityTimeoutSecs)
}

// =============================================================================
// ENV OVERRIDES
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("COMPRAS_API_URL", "https://env.example.com/api")
	t.Setenv("COMPRAS_STORAGE_BACKEND", "redis")
	t.Setenv("COMPRAS_REDIS_ADDR", "redis:6380")
	t.Setenv("COMPRAS_INSECURE", "true")
	t.Setenv("COMPRAS_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "redis:6380", cfg.Storage.RedisAddr)
	assert.True(t, cfg.API.InsecureSkipVerify)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"relative url", func(c *Config) { c.API.BaseURL = "/api" }, "api.base_url"},
		{"ftp url", func(c *Config) { c.API.BaseURL = "ftp://x/api" }, "api.base_url"},
		{"bad header", func(c *Config) { c.API.TenantHeader = "X Tenant" }, "api.tenant_header"},
		{"bad backend", func(c *Config) { c.Storage.Backend = "etcd" }, "storage.backend"},
		{"negative timeout", func(c *Config) { c.Session.InactivityTimeoutSecs = -1 }, "session.inactivity_timeout_secs"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.SetDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	isolate(t)
	cfg := Default()
	cfg.SetDefaults()
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// GET / KEYS
// =============================================================================

func TestGet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("api.tenant_header")
	require.NoError(t, err)
	assert.Equal(t, "X-Tenant-ID", v)

	v, err = cfg.Get("session.inactivity_timeout_secs")
	require.NoError(t, err)
	assert.Equal(t, 600, v)

	_, err = cfg.Get("api.nope")
	assert.Error(t, err)
	_, err = cfg.Get("version.deeper")
	assert.Error(t, err)
	_, err = cfg.Get("")
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "api.base_url")
	assert.Contains(t, keys, "session.warning_countdown_secs")
	assert.Contains(t, keys, "storage.redis_addr")
	for _, k := range keys {
		_, err := Default().Get(k)
		assert.NoError(t, err, k)
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Storage.RedisPassword = "hunter2"

	r := cfg.Redacted()
	assert.Equal(t, "[REDACTED]", r.Storage.RedisPassword)
	assert.Equal(t, "hunter2", cfg.Storage.RedisPassword, "original untouched")
}

// =============================================================================
// GLOBAL
// =============================================================================

// TestConfig_ConcurrentAccess checks Global and SetGlobal under -race.
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}
