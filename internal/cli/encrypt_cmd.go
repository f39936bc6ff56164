// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// encrypt_cmd.go - Data-at-rest encryption helpers.
//
// Command: encrypt [subcommand]
//
// Subcommands:
//   status (default)    Show the master key and algorithm
//   value [text]        Print text as an ENC: value for the config file
//   dsn                 Read a Postgres DSN and store it encrypted (admin)
//   keys [prefix]       List the sealed records in the store (admin)
//
// The master key is created under keys/ in the app home on first run. ENC:
// values can only be read back on a machine holding that key.

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jeranaias/assetdesk/internal/config"
	"github.com/jeranaias/assetdesk/internal/identity"
	"github.com/jeranaias/assetdesk/internal/security"
)

const encryptUsage = "assetdesk encrypt [status|value [text]|dsn|keys [prefix]]"

// HandleEncrypt dispatches encrypt subcommands.
func HandleEncrypt(ctx context.Context, app *App, args Args) error {
	p := NewArgParser(args.Raw)
	switch sub := p.Subcommand(); sub {
	case "", "status":
		return encryptStatus(app, args)
	case "value":
		return encryptValue(app, args, p.Positional(1))
	case "dsn":
		return encryptDSN(ctx, app, args)
	case "keys":
		return encryptKeys(ctx, app, args, p.Positional(1))
	default:
		return ErrUnknownSubcommand("encrypt", sub, encryptUsage)
	}
}

func encryptStatus(app *App, args Args) error {
	status := app.Enc.Status()
	if args.JSON {
		return writeJSON(app.Out, "encrypt status", status)
	}
	fmt.Fprintln(app.Out, TitleStyle.Render("Encryption"))
	printField(app.Out, "Initialized", RenderYesNo(status.Initialized))
	printField(app.Out, "Algorithm", status.Algorithm)
	printField(app.Out, "Key source", status.KeySource)
	if status.KeyPath != "" {
		printField(app.Out, "Key path", status.KeyPath)
	}
	printField(app.Out, "Store", app.Config.Store.Path)
	dsn := "not set"
	switch d := app.Config.Backend.PostgresDSN; {
	case security.IsEncrypted(d):
		dsn = SuccessStyle.Render("encrypted")
	case d != "":
		dsn = WarningStyle.Render("plain text")
	}
	printField(app.Out, "Postgres DSN", dsn)
	return nil
}

// encryptValue seals text, prompting for it without echo when it is not on
// the command line.
func encryptValue(app *App, args Args, text string) error {
	if text == "" {
		var err error
		if text, err = app.ReadPassword("Value to encrypt: "); err != nil {
			return err
		}
	}
	if text == "" {
		return ErrMissingArgument("text", encryptUsage)
	}
	sealed, err := app.Enc.EncryptString(text)
	if err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(app.Out, "encrypt value", map[string]string{"value": sealed})
	}
	fmt.Fprintln(app.Out, sealed)
	return nil
}

// encryptDSN writes an encrypted backend.postgres_dsn to the config file.
func encryptDSN(ctx context.Context, app *App, args Args) error {
	if _, err := app.requireLogin(ctx); err != nil {
		return err
	}
	if !app.Identity.HasPermission(identity.RoleAdmin) {
		return &identity.Failure{Kind: identity.KindPermissionDenied, Message: "Admin role required"}
	}
	if app.ConfigPath == "" {
		return &UsageError{Message: "no config file path"}
	}

	dsn, err := app.ReadPassword("Postgres DSN: ")
	if err != nil {
		return err
	}
	if dsn == "" {
		return ErrMissingArgument("dsn", encryptUsage)
	}
	sealed, err := app.Enc.EncryptString(dsn)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if _, statErr := os.Stat(app.ConfigPath); statErr == nil {
		if cfg, err = config.ReadFile(app.ConfigPath); err != nil {
			return err
		}
	}
	cfg.Backend.PostgresDSN = sealed
	if err := config.SaveTo(cfg, app.ConfigPath); err != nil {
		return err
	}

	if args.JSON {
		return writeJSON(app.Out, "encrypt dsn", map[string]string{"path": app.ConfigPath})
	}
	fmt.Fprintf(app.Out, "%s Encrypted DSN saved to %s\n", SuccessStyle.Render("[OK]"), app.ConfigPath)
	return nil
}

// encryptKeys lists store keys. Values stay sealed.
func encryptKeys(ctx context.Context, app *App, args Args, prefix string) error {
	if _, err := app.requireLogin(ctx); err != nil {
		return err
	}
	if !app.Identity.HasPermission(identity.RoleAdmin) {
		return &identity.Failure{Kind: identity.KindPermissionDenied, Message: "Admin role required"}
	}
	keys, err := app.Store.Keys(ctx, prefix)
	if err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(app.Out, "encrypt keys", keys)
	}
	if len(keys) == 0 {
		fmt.Fprintln(app.Out, DimStyle.Render("No records."))
		return nil
	}
	for _, k := range keys {
		fmt.Fprintln(app.Out, k)
	}
	return nil
}
