// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates the assetdesk configuration.
//
// Configuration is TOML, kept owner-only at ~/.assetdesk/config.toml
// (ASSETDESK_HOME moves the whole directory).
//
// # Key Types
//
//   - Config: all settings, one struct per TOML section
//   - SecurityConfig: session lifetime, lockout, rate limit and audit
//   - BackendConfig: asset directory driver and throttling
//   - ValidateErrors: every invalid setting found by Validate
//
// # Configuration Precedence
//
//   - Environment variables (ASSETDESK_*)
//   - ~/.assetdesk/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	policy := cfg.Security.SessionDuration()
//
// There is no package-level instance. main loads once and passes *Config
// down; Watch delivers reloaded copies.
package config
