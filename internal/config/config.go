// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/assetdesk/internal/security"
	"github.com/jeranaias/assetdesk/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete assetdesk configuration.
type Config struct {
	Security SecurityConfig `toml:"security" json:"security"`
	Store    StoreConfig    `toml:"store" json:"store"`
	Backend  BackendConfig  `toml:"backend" json:"backend"`
	Scanner  ScannerConfig  `toml:"scanner" json:"scanner"`
	Logging  LoggingConfig  `toml:"logging" json:"logging"`
	UI       UIConfig       `toml:"ui" json:"ui"`
}

// SecurityConfig controls sessions, lockout and the audit trail.
type SecurityConfig struct {
	// SessionDurationHours is the absolute session lifetime.
	SessionDurationHours int `toml:"session_duration_hours" json:"session_duration_hours"`
	// InactivityTimeoutMinutes ends a session that has seen no activity.
	InactivityTimeoutMinutes int `toml:"inactivity_timeout_minutes" json:"inactivity_timeout_minutes"`
	// MaxFailedLogins locks an account after this many consecutive failures.
	MaxFailedLogins int `toml:"max_failed_logins" json:"max_failed_logins"`
	// LockoutMinutes is how long a locked account stays locked.
	LockoutMinutes int `toml:"lockout_minutes" json:"lockout_minutes"`
	// RateLimitAttempts is the number of login attempts allowed per window.
	RateLimitAttempts int `toml:"rate_limit_attempts" json:"rate_limit_attempts"`
	// RateLimitWindowMinutes is the length of the login rate limit window.
	RateLimitWindowMinutes int `toml:"rate_limit_window_minutes" json:"rate_limit_window_minutes"`
	// AuditEnabled writes security events to the audit log.
	AuditEnabled bool `toml:"audit_enabled" json:"audit_enabled"`
	// AuditLogPath defaults to audit.log in the config directory.
	AuditLogPath string `toml:"audit_log_path" json:"audit_log_path"`
	// SessionWarningMinutes is how long before the inactivity timeout the
	// TUI warns. Zero disables the warning.
	SessionWarningMinutes int `toml:"session_warning_minutes" json:"session_warning_minutes"`
}

// StoreConfig locates the encrypted identity store.
type StoreConfig struct {
	Path    string `toml:"path" json:"path"`
	KeyPath string `toml:"key_path" json:"key_path"`
}

// BackendConfig selects the asset directory backend.
type BackendConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver     string `toml:"driver" json:"driver"`
	SQLitePath string `toml:"sqlite_path" json:"sqlite_path"`
	// PostgresDSN may be an ENC: value produced by "assetdesk encrypt value".
	PostgresDSN string `toml:"postgres_dsn" json:"postgres_dsn"`
	// RequestsPerSecond throttles backend calls. Zero disables throttling.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst"`
}

// ScannerConfig tunes barcode scanner detection.
type ScannerConfig struct {
	Enabled          bool `toml:"enabled" json:"enabled"`
	MaxKeyIntervalMS int  `toml:"max_key_interval_ms" json:"max_key_interval_ms"`
	MinLength        int  `toml:"min_length" json:"min_length"`
	// Suffix is the key the scanner sends after a code: "enter" or "tab".
	Suffix string `toml:"suffix" json:"suffix"`
}

// LoggingConfig controls the diagnostic log.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	// File receives the log. When empty the CLI logs to stderr and the TUI
	// discards diagnostics.
	File string `toml:"file" json:"file"`
}

// UIConfig controls the terminal interface.
type UIConfig struct {
	// Theme is "auto", "dark" or "light".
	Theme   string `toml:"theme" json:"theme"`
	Compact bool   `toml:"compact" json:"compact"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	dir, err := ConfigDir()
	if err != nil {
		dir = ".assetdesk"
	}
	return &Config{
		Security: SecurityConfig{
			SessionDurationHours:     8,
			InactivityTimeoutMinutes: 120,
			MaxFailedLogins:          5,
			LockoutMinutes:           30,
			RateLimitAttempts:        5,
			RateLimitWindowMinutes:   15,
			AuditEnabled:             true,
			AuditLogPath:             filepath.Join(dir, "audit.log"),
			SessionWarningMinutes:    5,
		},
		Store: StoreConfig{
			Path:    filepath.Join(dir, "assetdesk.db"),
			KeyPath: filepath.Join(dir, "keys", "master.key"),
		},
		Backend: BackendConfig{
			Driver:            "sqlite",
			SQLitePath:        filepath.Join(dir, "inventory.db"),
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Scanner: ScannerConfig{
			Enabled:          true,
			MaxKeyIntervalMS: 50,
			MinLength:        4,
			Suffix:           "enter",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		UI: UIConfig{
			Theme: "auto",
		},
	}
}

// Durations derived from the security section.

func (s SecurityConfig) SessionDuration() time.Duration {
	return time.Duration(s.SessionDurationHours) * time.Hour
}

func (s SecurityConfig) InactivityTimeout() time.Duration {
	return time.Duration(s.InactivityTimeoutMinutes) * time.Minute
}

func (s SecurityConfig) LockoutDuration() time.Duration {
	return time.Duration(s.LockoutMinutes) * time.Minute
}

func (s SecurityConfig) RateLimitWindow() time.Duration {
	return time.Duration(s.RateLimitWindowMinutes) * time.Minute
}

func (s SecurityConfig) SessionWarning() time.Duration {
	return time.Duration(s.SessionWarningMinutes) * time.Minute
}

// MaxKeyInterval is the scanner inter-key gap as a duration.
func (s ScannerConfig) MaxKeyInterval() time.Duration {
	return time.Duration(s.MaxKeyIntervalMS) * time.Millisecond
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the assetdesk directory. ASSETDESK_HOME overrides the
// default of ~/.assetdesk.
func ConfigDir() (string, error) {
	if dir := os.Getenv("ASSETDESK_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".assetdesk"), nil
}

// ConfigPath returns the path to config.toml.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir creates the config directory owner-only.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads config.toml from the config directory. A missing file yields the
// defaults. Environment overrides are applied before validation.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		fillDefaults(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads a TOML config file with full validation. Keys absent
// from the file keep their default values.
func LoadFromPath(path string) (*Config, error) {
	if err := ensureSecurePermissions(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ReadFile decodes path over the defaults without environment overrides or
// validation, for editing the file in place.
func ReadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return cfg, nil
}

// fillDefaults replaces empty strings and zero counts with defaults and
// expands "~" in paths. Booleans and zero values with a meaning of their own
// (session_warning_minutes, requests_per_second) are left alone.
func fillDefaults(cfg *Config) {
	d := Default()

	if cfg.Security.SessionDurationHours == 0 {
		cfg.Security.SessionDurationHours = d.Security.SessionDurationHours
	}
	if cfg.Security.InactivityTimeoutMinutes == 0 {
		cfg.Security.InactivityTimeoutMinutes = d.Security.InactivityTimeoutMinutes
	}
	if cfg.Security.MaxFailedLogins == 0 {
		cfg.Security.MaxFailedLogins = d.Security.MaxFailedLogins
	}
	if cfg.Security.LockoutMinutes == 0 {
		cfg.Security.LockoutMinutes = d.Security.LockoutMinutes
	}
	if cfg.Security.RateLimitAttempts == 0 {
		cfg.Security.RateLimitAttempts = d.Security.RateLimitAttempts
	}
	if cfg.Security.RateLimitWindowMinutes == 0 {
		cfg.Security.RateLimitWindowMinutes = d.Security.RateLimitWindowMinutes
	}
	if cfg.Security.AuditLogPath == "" {
		cfg.Security.AuditLogPath = d.Security.AuditLogPath
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = d.Store.Path
	}
	if cfg.Store.KeyPath == "" {
		cfg.Store.KeyPath = d.Store.KeyPath
	}

	if cfg.Backend.Driver == "" {
		cfg.Backend.Driver = d.Backend.Driver
	}
	if cfg.Backend.SQLitePath == "" {
		cfg.Backend.SQLitePath = d.Backend.SQLitePath
	}

	if cfg.Scanner.MaxKeyIntervalMS == 0 {
		cfg.Scanner.MaxKeyIntervalMS = d.Scanner.MaxKeyIntervalMS
	}
	if cfg.Scanner.MinLength == 0 {
		cfg.Scanner.MinLength = d.Scanner.MinLength
	}
	if cfg.Scanner.Suffix == "" {
		cfg.Scanner.Suffix = d.Scanner.Suffix
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = d.UI.Theme
	}

	for _, p := range []*string{
		&cfg.Security.AuditLogPath, &cfg.Store.Path, &cfg.Store.KeyPath,
		&cfg.Backend.SQLitePath, &cfg.Logging.File,
	} {
		*p = expandHome(*p)
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default config path.
func Save(cfg *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes cfg as TOML to path with 0600 permissions.
func SaveTo(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# assetdesk configuration file")
	fmt.Fprintln(&buf, "# Generated by assetdesk - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid setting.
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

// Validate checks ranges and enumerations. It returns ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
	between := func(field string, v, lo, hi int) {
		if v < lo || v > hi {
			add(field, "must be between %d and %d, got %d", lo, hi, v)
		}
	}
	oneOf := func(field, v string, allowed ...string) {
		for _, a := range allowed {
			if strings.EqualFold(v, a) {
				return
			}
		}
		add(field, "invalid value '%s', must be one of: %s", v, strings.Join(allowed, ", "))
	}

	// Security
	s := c.Security
	between("security.session_duration_hours", s.SessionDurationHours, 1, 168)
	between("security.inactivity_timeout_minutes", s.InactivityTimeoutMinutes, 1, 1440)
	between("security.max_failed_logins", s.MaxFailedLogins, 1, 100)
	between("security.lockout_minutes", s.LockoutMinutes, 1, 1440)
	between("security.rate_limit_attempts", s.RateLimitAttempts, 1, 1000)
	between("security.rate_limit_window_minutes", s.RateLimitWindowMinutes, 1, 1440)
	if s.SessionWarningMinutes < 0 || (s.SessionWarningMinutes > 0 && s.SessionWarningMinutes >= s.InactivityTimeoutMinutes) {
		add("security.session_warning_minutes", "must be between 0 and inactivity_timeout_minutes, got %d", s.SessionWarningMinutes)
	}
	if s.AuditEnabled && s.AuditLogPath == "" {
		add("security.audit_log_path", "required when audit is enabled")
	}

	// Store
	if c.Store.Path == "" {
		add("store.path", "required")
	}
	if c.Store.KeyPath == "" {
		add("store.key_path", "required")
	}

	// Backend
	oneOf("backend.driver", c.Backend.Driver, "sqlite", "postgres")
	switch strings.ToLower(c.Backend.Driver) {
	case "sqlite":
		if c.Backend.SQLitePath == "" {
			add("backend.sqlite_path", "required for the sqlite driver")
		} else if filepath.Clean(c.Backend.SQLitePath) == filepath.Clean(c.Store.Path) {
			add("backend.sqlite_path", "must differ from store.path")
		}
	case "postgres":
		if c.Backend.PostgresDSN == "" {
			add("backend.postgres_dsn", "required for the postgres driver")
		}
	}
	if c.Backend.RequestsPerSecond < 0 {
		add("backend.requests_per_second", "must not be negative")
	}
	if c.Backend.Burst < 0 {
		add("backend.burst", "must not be negative")
	}

	// Scanner
	between("scanner.max_key_interval_ms", c.Scanner.MaxKeyIntervalMS, 1, 1000)
	between("scanner.min_length", c.Scanner.MinLength, 1, 128)
	oneOf("scanner.suffix", c.Scanner.Suffix, "enter", "tab")

	// Logging and UI
	oneOf("logging.level", c.Logging.Level, "debug", "info", "warn", "warning", "error")
	oneOf("logging.format", c.Logging.Format, "text", "json")
	oneOf("ui.theme", c.UI.Theme, "auto", "dark", "light")

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// SECRETS
// =============================================================================

// PostgresDSN returns the backend DSN, decrypting an ENC: value with enc.
func (c *Config) PostgresDSN(enc *security.EncryptionManager) (string, error) {
	dsn := c.Backend.PostgresDSN
	if !security.IsEncrypted(dsn) {
		return dsn, nil
	}
	if enc == nil || !enc.IsInitialized() {
		return "", fmt.Errorf("backend.postgres_dsn is encrypted: %w", security.ErrNotInitialized)
	}
	plain, err := enc.DecryptString(dsn)
	if err != nil {
		return "", fmt.Errorf("backend.postgres_dsn: %w", err)
	}
	return plain, nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - ASSETDESK_STORE_PATH: store.path
//   - ASSETDESK_KEY_PATH: store.key_path
//   - ASSETDESK_BACKEND: backend.driver
//   - ASSETDESK_SQLITE_PATH: backend.sqlite_path
//   - ASSETDESK_POSTGRES_DSN: backend.postgres_dsn
//   - ASSETDESK_LOG_LEVEL: logging.level
//   - ASSETDESK_LOG_FORMAT: logging.format
//   - ASSETDESK_LOG_FILE: logging.file
//   - ASSETDESK_THEME: ui.theme
//   - ASSETDESK_AUDIT: "0" or "false" disables the audit log
//   - ASSETDESK_SCANNER: "0" or "false" disables scanner detection
func (c *Config) ApplyEnvOverrides() {
	str := map[string]*string{
		"ASSETDESK_STORE_PATH":   &c.Store.Path,
		"ASSETDESK_KEY_PATH":     &c.Store.KeyPath,
		"ASSETDESK_BACKEND":      &c.Backend.Driver,
		"ASSETDESK_SQLITE_PATH":  &c.Backend.SQLitePath,
		"ASSETDESK_POSTGRES_DSN": &c.Backend.PostgresDSN,
		"ASSETDESK_LOG_LEVEL":    &c.Logging.Level,
		"ASSETDESK_LOG_FORMAT":   &c.Logging.Format,
		"ASSETDESK_LOG_FILE":     &c.Logging.File,
		"ASSETDESK_THEME":        &c.UI.Theme,
	}
	for env, field := range str {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
	if v := os.Getenv("ASSETDESK_AUDIT"); v != "" {
		c.Security.AuditEnabled = envBool(v)
	}
	if v := os.Getenv("ASSETDESK_SCANNER"); v != "" {
		c.Scanner.Enabled = envBool(v)
	}
}

func envBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get returns the value at a dotted TOML key such as "security.lockout_minutes".
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set parses value into the field at a dotted TOML key. The result is not
// validated; call Validate before saving.
func (c *Config) Set(key, value string) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: expected true or false: %w", key, err)
		}
		field.SetBool(b)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: expected an integer: %w", key, err)
		}
		field.SetInt(int64(n))
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: expected a number: %w", key, err)
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("%s: unsupported type %s", key, field.Kind())
	}
	return nil
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return reflect.Value{}, fmt.Errorf("invalid key %q: want section.name", key)
	}
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return v, nil
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tag, _, _ := strings.Cut(t.Field(i).Tag.Get("toml"), ","); tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Keys lists every dotted key accepted by Get and Set.
func Keys() []string {
	var keys []string
	root := reflect.TypeOf(Config{})
	for i := 0; i < root.NumField(); i++ {
		section := root.Field(i)
		st := section.Type
		for j := 0; j < st.NumField(); j++ {
			keys = append(keys, section.Tag.Get("toml")+"."+st.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// =============================================================================
// DISPLAY
// =============================================================================

// Clone returns a copy of c.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String renders the config as JSON with the DSN redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Backend.PostgresDSN != "" && !security.IsEncrypted(safe.Backend.PostgresDSN) {
		safe.Backend.PostgresDSN = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
