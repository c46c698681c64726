// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for compras.
//
// Supports TOML, YAML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.compras/config.toml
//   - ~/.compras/config.yaml
//   - ~/.compras/config.json
//   - Built-in defaults
//
// COMPRAS_HOME relocates the whole ~/.compras directory.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/compras-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete compras configuration.
type Config struct {
	Version string `toml:"version" json:"version" yaml:"version"`

	// API is the backend connection
	API APIConfig `toml:"api" json:"api" yaml:"api"`

	// Session holds inactivity timings
	Session SessionConfig `toml:"session" json:"session" yaml:"session"`

	// Storage selects where the tenant record, cookies and session marker live
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui" yaml:"ui"`
}

// APIConfig contains backend connection settings.
type APIConfig struct {
	// BaseURL is the API root, e.g. "https://compras.example.com/api"
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url"`
	// TenantHeader is the header carrying the selected company schema
	TenantHeader string `toml:"tenant_header" json:"tenant_header" yaml:"tenant_header"`
	// RequestTimeoutSecs bounds a single HTTP round trip
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs" yaml:"request_timeout_secs"`
	// InsecureSkipVerify disables TLS verification (local development only)
	InsecureSkipVerify bool `toml:"insecure_skip_verify" json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	// LoginRatePerMinute throttles login attempts client-side
	LoginRatePerMinute int `toml:"login_rate_per_minute" json:"login_rate_per_minute" yaml:"login_rate_per_minute"`
}

// SessionConfig contains inactivity settings.
type SessionConfig struct {
	// InactivityTimeoutSecs is the quiet period before the warning opens (default 600)
	InactivityTimeoutSecs int `toml:"inactivity_timeout_secs" json:"inactivity_timeout_secs" yaml:"inactivity_timeout_secs"`
	// WarningCountdownSecs is how long the warning stays up before logout (default 60)
	WarningCountdownSecs int `toml:"warning_countdown_secs" json:"warning_countdown_secs" yaml:"warning_countdown_secs"`
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	// Backend is one of "file", "sqlite", "redis"
	Backend string `toml:"backend" json:"backend" yaml:"backend"`
	// StateDir holds durable state (file backend, sqlite db, cookie key)
	StateDir string `toml:"state_dir" json:"state_dir" yaml:"state_dir"`
	// RuntimeDir holds the ephemeral session marker and broadcast channel.
	// Empty means $XDG_RUNTIME_DIR/compras, falling back to the temp dir.
	RuntimeDir string `toml:"runtime_dir" json:"runtime_dir" yaml:"runtime_dir"`
	// SQLitePath is the database file for the sqlite backend
	SQLitePath string `toml:"sqlite_path" json:"sqlite_path" yaml:"sqlite_path"`
	// RedisAddr is host:port for the redis backend
	RedisAddr string `toml:"redis_addr" json:"redis_addr" yaml:"redis_addr"`
	// RedisPassword for the redis backend
	RedisPassword string `toml:"redis_password" json:"redis_password" yaml:"redis_password"`
	// RedisDB selects the redis logical database
	RedisDB int `toml:"redis_db" json:"redis_db" yaml:"redis_db"`
	// RedisPrefix namespaces every key this client writes
	RedisPrefix string `toml:"redis_prefix" json:"redis_prefix" yaml:"redis_prefix"`
	// MarkerTTLSecs bounds the lifetime of the redis session marker
	MarkerTTLSecs int `toml:"marker_ttl_secs" json:"marker_ttl_secs" yaml:"marker_ttl_secs"`
	// SealCookies encrypts the persisted cookie jar at rest
	SealCookies bool `toml:"seal_cookies" json:"seal_cookies" yaml:"seal_cookies"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error
	Level string `toml:"level" json:"level" yaml:"level"`
	// Path is the log file used while the TUI owns the terminal
	Path string `toml:"path" json:"path" yaml:"path"`
	// JSON forces JSON output on stderr for CLI commands
	JSON bool `toml:"json" json:"json" yaml:"json"`
}

// UIConfig contains TUI settings.
type UIConfig struct {
	// Theme is "dark" or "light"
	Theme string `toml:"theme" json:"theme" yaml:"theme"`
	// Mouse enables mouse tracking, which also counts as activity
	Mouse bool `toml:"mouse" json:"mouse" yaml:"mouse"`
}

// InactivityTimeout returns the quiet period as a duration.
func (c *Config) InactivityTimeout() time.Duration {
	return time.Duration(c.Session.InactivityTimeoutSecs) * time.Second
}

// RequestTimeout returns the HTTP timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeoutSecs) * time.Second
}

// MarkerTTL returns the redis marker lifetime as a duration.
func (c *Config) MarkerTTL() time.Duration {
	return time.Duration(c.Storage.MarkerTTLSecs) * time.Second
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1",

		API: APIConfig{
			BaseURL:            "http://localhost:8000/api",
			TenantHeader:       "X-Tenant-ID",
			RequestTimeoutSecs: 30,
			LoginRatePerMinute: 10,
		},

		Session: SessionConfig{
			InactivityTimeoutSecs: 600, // 10 minutes
			WarningCountdownSecs:  60,
		},

		Storage: StorageConfig{
			Backend:       "file",
			RedisAddr:     "127.0.0.1:6379",
			RedisPrefix:   "compras",
			MarkerTTLSecs: 12 * 60 * 60,
			SealCookies:   true,
		},

		Logging: LoggingConfig{
			Level: "info",
		},

		UI: UIConfig{
			Theme: "dark",
			Mouse: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the compras configuration directory path.
func ConfigDir() (string, error) {
	if home := os.Getenv("COMPRAS_HOME"); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".compras"), nil
}

func configPath(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) { return configPath("config.toml") }

// ConfigPathYAML returns the path to the YAML config file.
func ConfigPathYAML() (string, error) { return configPath("config.yaml") }

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) { return configPath("config.json") }

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o700)
}

// DefaultRuntimeDir returns the per-login runtime directory. Its contents
// vanish when the OS session ends, which is what makes it a home for the
// session marker.
func DefaultRuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "compras")
	}
	return filepath.Join(os.TempDir(), "compras-"+strconv.Itoa(os.Getuid()))
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files may hold a redis password; keep them 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		if err := os.Chmod(path, 0o600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the first config file found, falling back to
// defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	finders := []func() (string, error){ConfigPathTOML, ConfigPathYAML, ConfigPathJSON}

	var loadErr error
	for _, find := range finders {
		path, err := find()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err != nil {
			loadErr = err
			break
		}
		return cfg, nil
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Defaults are still usable; the load error is informational
	return cfg, loadErr
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadYAML decodes a YAML file into cfg.
func LoadYAML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file with full validation.
// The format is chosen by extension; anything unrecognised is read as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = LoadJSON(cfg, path)
	case ".yaml", ".yml":
		err = LoadYAML(cfg, path)
	default:
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills zero values with defaults and resolves derived paths.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	c.API.BaseURL = strings.TrimSuffix(c.API.BaseURL, "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.TenantHeader == "" {
		c.API.TenantHeader = d.API.TenantHeader
	}
	if c.API.RequestTimeoutSecs == 0 {
		c.API.RequestTimeoutSecs = d.API.RequestTimeoutSecs
	}
	if c.API.LoginRatePerMinute == 0 {
		c.API.LoginRatePerMinute = d.API.LoginRatePerMinute
	}

	if c.Session.InactivityTimeoutSecs == 0 {
		c.Session.InactivityTimeoutSecs = d.Session.InactivityTimeoutSecs
	}
	if c.Session.WarningCountdownSecs == 0 {
		c.Session.WarningCountdownSecs = d.Session.WarningCountdownSecs
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	if c.Storage.StateDir == "" {
		if dir, err := ConfigDir(); err == nil {
			c.Storage.StateDir = filepath.Join(dir, "state")
		}
	}
	if c.Storage.RuntimeDir == "" {
		c.Storage.RuntimeDir = DefaultRuntimeDir()
	}
	if c.Storage.SQLitePath == "" && c.Storage.StateDir != "" {
		c.Storage.SQLitePath = filepath.Join(c.Storage.StateDir, "compras.db")
	}
	if c.Storage.RedisAddr == "" {
		c.Storage.RedisAddr = d.Storage.RedisAddr
	}
	if c.Storage.RedisPrefix == "" {
		c.Storage.RedisPrefix = d.Storage.RedisPrefix
	}
	if c.Storage.MarkerTTLSecs == 0 {
		c.Storage.MarkerTTLSecs = d.Storage.MarkerTTLSecs
	}

	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Path == "" {
		if dir, err := ConfigDir(); err == nil {
			c.Logging.Path = filepath.Join(dir, "compras.log")
		}
	}

	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# compras configuration file\n")
	b.WriteString("# Generated by compras - edit with care\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be an absolute http(s) URL", c.API.BaseURL),
		})
	}
	if strings.ContainsAny(c.API.TenantHeader, " :\r\n") {
		errs = append(errs, ValidationError{
			Field:   "api.tenant_header",
			Message: fmt.Sprintf("invalid header name '%s'", c.API.TenantHeader),
		})
	}
	if c.API.RequestTimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "api.request_timeout_secs", Message: "must not be negative"})
	}
	if c.API.LoginRatePerMinute < 0 {
		errs = append(errs, ValidationError{Field: "api.login_rate_per_minute", Message: "must not be negative"})
	}

	if c.Session.InactivityTimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "session.inactivity_timeout_secs", Message: "must not be negative"})
	}
	if c.Session.WarningCountdownSecs < 0 {
		errs = append(errs, ValidationError{Field: "session.warning_countdown_secs", Message: "must not be negative"})
	}

	validBackends := map[string]bool{"file": true, "sqlite": true, "redis": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, sqlite, redis", c.Storage.Backend),
		})
	}
	if c.Storage.Backend == "redis" && c.Storage.RedisAddr == "" {
		errs = append(errs, ValidationError{Field: "storage.redis_addr", Message: "required for the redis backend"})
	}
	if c.Storage.MarkerTTLSecs < 0 {
		errs = append(errs, ValidationError{Field: "storage.marker_ttl_secs", Message: "must not be negative"})
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "disabled": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s'", c.Logging.Level),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - COMPRAS_API_URL: overrides api.base_url
//   - COMPRAS_TENANT_HEADER: overrides api.tenant_header
//   - COMPRAS_INSECURE: "1" or "true" disables TLS verification
//   - COMPRAS_STORAGE_BACKEND: overrides storage.backend
//   - COMPRAS_STATE_DIR: overrides storage.state_dir
//   - COMPRAS_RUNTIME_DIR: overrides storage.runtime_dir
//   - COMPRAS_REDIS_ADDR: overrides storage.redis_addr
//   - COMPRAS_REDIS_PASSWORD: overrides storage.redis_password
//   - COMPRAS_LOG_LEVEL: overrides logging.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("COMPRAS_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("COMPRAS_TENANT_HEADER"); v != "" {
		c.API.TenantHeader = v
	}
	if v := os.Getenv("COMPRAS_INSECURE"); v != "" {
		c.API.InsecureSkipVerify = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("COMPRAS_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("COMPRAS_STATE_DIR"); v != "" {
		c.Storage.StateDir = v
	}
	if v := os.Getenv("COMPRAS_RUNTIME_DIR"); v != "" {
		c.Storage.RuntimeDir = v
	}
	if v := os.Getenv("COMPRAS_REDIS_ADDR"); v != "" {
		c.Storage.RedisAddr = v
	}
	if v := os.Getenv("COMPRAS_REDIS_PASSWORD"); v != "" {
		c.Storage.RedisPassword = v
	}
	if v := os.Getenv("COMPRAS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// =============================================================================
// GET HELPER (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "api.base_url").
// Keys match the toml tags.
func (c *Config) Get(key string) (interface{}, error) {
	if key == "" {
		return nil, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field.Interface(), nil
		}
		if field.Kind() != reflect.Struct {
			return nil, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return nil, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if strings.EqualFold(t.Field(i).Tag.Get("toml"), name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Keys lists every leaf key in dot notation, in declaration order.
func Keys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := prefix + f.Tag.Get("toml")
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, name+".")
				continue
			}
			keys = append(keys, name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// Redacted returns a copy safe to print: secrets are masked.
func (c *Config) Redacted() *Config {
	clone := *c
	if clone.Storage.RedisPassword != "" {
		clone.Storage.RedisPassword = "[REDACTED]"
	}
	return &clone
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
			cfg.SetDefaults()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
