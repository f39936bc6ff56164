// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/assetdesk/internal/security"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ASSETDESK_HOME", dir)
	for _, env := range []string{
		"ASSETDESK_STORE_PATH", "ASSETDESK_KEY_PATH", "ASSETDESK_BACKEND",
		"ASSETDESK_SQLITE_PATH", "ASSETDESK_POSTGRES_DSN", "ASSETDESK_LOG_LEVEL",
		"ASSETDESK_LOG_FORMAT", "ASSETDESK_LOG_FILE", "ASSETDESK_THEME",
		"ASSETDESK_AUDIT", "ASSETDESK_SCANNER",
	} {
		t.Setenv(env, "")
	}
	return dir
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
}

// =============================================================================
// DEFAULTS AND LOADING
// =============================================================================

func TestDefaultIsValid(t *testing.T) {
	dir := isolate(t)
	cfg := Default()
	require.NoError(t, cfg.Validate())

	require.Equal(t, 8*time.Hour, cfg.Security.SessionDuration())
	require.Equal(t, 2*time.Hour, cfg.Security.InactivityTimeout())
	require.Equal(t, 30*time.Minute, cfg.Security.LockoutDuration())
	require.Equal(t, 15*time.Minute, cfg.Security.RateLimitWindow())
	require.Equal(t, 5, cfg.Security.RateLimitAttempts)
	require.Equal(t, 50*time.Millisecond, cfg.Scanner.MaxKeyInterval())
	require.Equal(t, filepath.Join(dir, "assetdesk.db"), cfg.Store.Path)
	require.Equal(t, filepath.Join(dir, "keys", "master.key"), cfg.Store.KeyPath)
}

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadFromPathKeepsUnsetDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, `
[security]
lockout_minutes = 10

[ui]
theme = "dark"
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, 10, cfg.Security.LockoutMinutes)
	require.Equal(t, 5, cfg.Security.MaxFailedLogins)
	require.True(t, cfg.Security.AuditEnabled)
	require.True(t, cfg.Scanner.Enabled)
	require.Equal(t, "dark", cfg.UI.Theme)
}

func TestLoadFromPathFixesPermissions(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ui]\ntheme = \"light\"\n"), 0644))

	_, err := LoadFromPath(path)
	require.NoError(t, err)

	if os.PathSeparator == '/' {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestLoadFromPathRejectsInvalid(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, `
[security]
max_failed_logins = -1

[backend]
driver = "mysql"
`)

	_, err := LoadFromPath(path)
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	require.Contains(t, fields, "security.max_failed_logins")
	require.Contains(t, fields, "backend.driver")
}

func TestLoadFromPathRejectsBadTOML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "[security\n")

	_, err := LoadFromPath(path)
	require.Error(t, err)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "x.db"), expandHome("~/x.db"))
	require.Equal(t, "/abs/x.db", expandHome("/abs/x.db"))
}

// =============================================================================
// SAVE
// =============================================================================

func TestSaveRoundTrip(t *testing.T) {
	dir := isolate(t)
	cfg := Default()
	cfg.Security.LockoutMinutes = 45
	cfg.Backend.Driver = "postgres"
	cfg.Backend.PostgresDSN = "ENC:abc"
	cfg.UI.Compact = true

	require.NoError(t, Save(cfg))

	path := filepath.Join(dir, "config.toml")
	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		require.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := Load()
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
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
		{"zero session", func(c *Config) { c.Security.SessionDurationHours = 0 }, "security.session_duration_hours"},
		{"huge inactivity", func(c *Config) { c.Security.InactivityTimeoutMinutes = 5000 }, "security.inactivity_timeout_minutes"},
		{"warning beyond timeout", func(c *Config) { c.Security.SessionWarningMinutes = 120 }, "security.session_warning_minutes"},
		{"rate window", func(c *Config) { c.Security.RateLimitWindowMinutes = 0 }, "security.rate_limit_window_minutes"},
		{"no store", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"shared sqlite file", func(c *Config) { c.Backend.SQLitePath = c.Store.Path }, "backend.sqlite_path"},
		{"postgres without dsn", func(c *Config) { c.Backend.Driver = "postgres" }, "backend.postgres_dsn"},
		{"negative rps", func(c *Config) { c.Backend.RequestsPerSecond = -1 }, "backend.requests_per_second"},
		{"scanner interval", func(c *Config) { c.Scanner.MaxKeyIntervalMS = 5000 }, "scanner.max_key_interval_ms"},
		{"scanner suffix", func(c *Config) { c.Scanner.Suffix = "space" }, "scanner.suffix"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			require.Equal(t, tt.field, verrs[0].Field)
			require.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestWarningZeroDisables(t *testing.T) {
	isolate(t)
	cfg := Default()
	cfg.Security.SessionWarningMinutes = 0
	require.NoError(t, cfg.Validate())
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("ASSETDESK_BACKEND", "postgres")
	t.Setenv("ASSETDESK_POSTGRES_DSN", "postgres://localhost/inv")
	t.Setenv("ASSETDESK_LOG_LEVEL", "debug")
	t.Setenv("ASSETDESK_THEME", "light")
	t.Setenv("ASSETDESK_AUDIT", "false")
	t.Setenv("ASSETDESK_SCANNER", "0")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Backend.Driver)
	require.Equal(t, "postgres://localhost/inv", cfg.Backend.PostgresDSN)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "light", cfg.UI.Theme)
	require.False(t, cfg.Security.AuditEnabled)
	require.False(t, cfg.Scanner.Enabled)
}

// =============================================================================
// SECRETS AND DISPLAY
// =============================================================================

func TestPostgresDSNDecrypts(t *testing.T) {
	dir := isolate(t)
	enc := security.NewEncryptionManager(security.NewFileKeyStore(filepath.Join(dir, "master.key")))
	_, err := enc.EnsureKey()
	require.NoError(t, err)

	sealed, err := enc.EncryptString("postgres://u:secret@db/inv")
	require.NoError(t, err)

	cfg := Default()
	cfg.Backend.PostgresDSN = sealed
	dsn, err := cfg.PostgresDSN(enc)
	require.NoError(t, err)
	require.Equal(t, "postgres://u:secret@db/inv", dsn)

	_, err = cfg.PostgresDSN(nil)
	require.ErrorIs(t, err, security.ErrNotInitialized)

	cfg.Backend.PostgresDSN = "postgres://plain"
	dsn, err = cfg.PostgresDSN(nil)
	require.NoError(t, err)
	require.Equal(t, "postgres://plain", dsn)
}

func TestStringRedactsPlainDSN(t *testing.T) {
	isolate(t)
	cfg := Default()
	cfg.Backend.PostgresDSN = "postgres://u:secret@db/inv"
	out := cfg.String()
	require.NotContains(t, out, "secret")
	require.Contains(t, out, "[REDACTED]")
	require.Equal(t, "postgres://u:secret@db/inv", cfg.Backend.PostgresDSN)
}

func TestGetSet(t *testing.T) {
	isolate(t)
	cfg := Default()

	v, err := cfg.Get("security.lockout_minutes")
	require.NoError(t, err)
	require.Equal(t, 30, v)

	require.NoError(t, cfg.Set("security.lockout_minutes", "12"))
	require.Equal(t, 12, cfg.Security.LockoutMinutes)
	require.NoError(t, cfg.Set("ui.compact", "true"))
	require.True(t, cfg.UI.Compact)
	require.NoError(t, cfg.Set("backend.requests_per_second", "2.5"))
	require.Equal(t, 2.5, cfg.Backend.RequestsPerSecond)

	require.Error(t, cfg.Set("security.lockout_minutes", "soon"))
	_, err = cfg.Get("security.nope")
	require.Error(t, err)
	_, err = cfg.Get("lockout_minutes")
	require.Error(t, err)

	keys := Keys()
	require.Contains(t, keys, "scanner.min_length")
	for _, k := range keys {
		_, err := cfg.Get(k)
		require.NoError(t, err, k)
		require.Equal(t, 1, strings.Count(k, "."))
	}
}

// =============================================================================
// WATCH
// =============================================================================

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTo(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	err := WatchWithDebounce(ctx, path, 20*time.Millisecond, func(cfg *Config, err error) {
		if err == nil {
			reloaded <- cfg
		}
	})
	require.NoError(t, err)

	cfg := Default()
	cfg.UI.Theme = "light"
	require.NoError(t, SaveTo(cfg, path))

	select {
	case got := <-reloaded:
		require.Equal(t, "light", got.UI.Theme)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not delivered")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	dir := isolate(t)
	err := Watch(context.Background(), filepath.Join(dir, "missing", "config.toml"), func(*Config, error) {})
	require.Error(t, err)
}
