// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - View and edit the configuration file.
//
// Command: config [subcommand]
//
// Subcommands:
//   show (default)      Effective configuration, DSN redacted
//   path                Configuration file location
//   init [--force]      Write a default configuration file
//   get <key>           Print one setting
//   set <key> <value>   Change one setting in the file
//   keys                List every setting name
//
// Keys are dotted TOML names such as security.lockout_minutes. Environment
// overrides apply to show and get but are never written by set.
//
// Examples:
//   assetdesk config set security.max_failed_logins 3
//   assetdesk config set backend.driver postgres
//   assetdesk config get scanner.max_key_interval_ms

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/assetdesk/internal/config"
	"github.com/jeranaias/assetdesk/internal/security"
)

const configUsage = "assetdesk config [show|path|init|get <key>|set <key> <value>|keys]"

// HandleConfig runs a config subcommand. It does not need the store, so a
// broken store can still be reconfigured.
func HandleConfig(out io.Writer, cfg *config.Config, path string, args Args) error {
	p := NewArgParser(args.Raw, "force")

	switch sub := p.Subcommand(); sub {
	case "", "show":
		if args.JSON {
			return writeJSON(out, "config show", redacted(cfg))
		}
		fmt.Fprintln(out, TitleStyle.Render("Configuration"))
		fmt.Fprintln(out, cfg.String())
		return nil

	case "path":
		if args.JSON {
			return writeJSON(out, "config path", map[string]string{"path": path})
		}
		fmt.Fprintln(out, path)
		return nil

	case "init":
		return configInit(out, path, p.BoolFlag("force"), args)

	case "get":
		key := p.Positional(1)
		if key == "" {
			return ErrMissingArgument("key", "assetdesk config get <key>")
		}
		v, err := redacted(cfg).Get(key)
		if err != nil {
			return &UsageError{Message: err.Error()}
		}
		if args.JSON {
			return writeJSON(out, "config get", map[string]any{"key": key, "value": v})
		}
		fmt.Fprintln(out, v)
		return nil

	case "set":
		key, value := p.Positional(1), p.Positional(2)
		if key == "" || p.PositionalCount() < 3 {
			return ErrMissingArgument("key and value", "assetdesk config set <key> <value>")
		}
		return configSet(out, path, key, value, args)

	case "keys":
		keys := config.Keys()
		if args.JSON {
			return writeJSON(out, "config keys", keys)
		}
		for _, k := range keys {
			fmt.Fprintln(out, k)
		}
		return nil

	default:
		return ErrUnknownSubcommand("config", sub, configUsage)
	}
}

// redacted hides a plaintext DSN. Encrypted values are safe to show.
func redacted(cfg *config.Config) *config.Config {
	safe := cfg.Clone()
	if dsn := safe.Backend.PostgresDSN; dsn != "" && !security.IsEncrypted(dsn) {
		safe.Backend.PostgresDSN = "[REDACTED]"
	}
	return safe
}

func configInit(out io.Writer, path string, force bool, args Args) error {
	if _, err := os.Stat(path); err == nil && !force {
		return &UsageError{Message: path + " already exists (use --force to overwrite)"}
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := config.SaveTo(config.Default(), path); err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(out, "config init", map[string]string{"path": path})
	}
	fmt.Fprintf(out, "%s Wrote %s\n", SuccessStyle.Render("[OK]"), path)
	return nil
}

// configSet edits the file itself so environment overrides in effect for
// this run are not persisted.
func configSet(out io.Writer, path, key, value string, args Args) error {
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if cfg, err = config.ReadFile(path); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := cfg.Set(key, value); err != nil {
		return &UsageError{Message: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveTo(cfg, path); err != nil {
		return err
	}

	shown := value
	if key == "backend.postgres_dsn" && !security.IsEncrypted(value) {
		shown = "[REDACTED]"
	}
	if args.JSON {
		return writeJSON(out, "config set", map[string]string{"key": key, "value": shown})
	}
	fmt.Fprintf(out, "%s %s = %s\n", SuccessStyle.Render("[OK]"), key, shown)
	if shown != value {
		fmt.Fprintln(out, WarningStyle.Render("The DSN is stored in plain text. Use: assetdesk encrypt value <dsn>"))
	}
	return nil
}
