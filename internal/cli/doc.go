// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the assetdesk command line.
//
// main parses the command, builds an App from the loaded configuration and
// hands both to Run. Handlers return errors rather than printing them; main
// shows the error once with DisplayError and exits with GetExitCode.
//
// # Usage
//
//	cmd, args := cli.Parse()
//	cfg, path, err := cli.LoadConfig(args)
//	app, err := cli.NewApp(ctx, cfg)
//	err = cli.Run(ctx, app, cmd, args)
//
// # Commands
//
//   - login, logout, whoami: session management
//   - user: user administration and two-factor enrollment
//   - client: client registry and access
//   - asset: inventory listing, editing and barcode scanning
//   - config: view and edit config.toml
//   - encrypt: master key status and ENC: values
//   - audit: security audit log review
//
// Every command accepts --json for machine-readable output.
package cli
