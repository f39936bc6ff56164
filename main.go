// assetdesk - Inventory for managed-service clients, in the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/assetdesk/internal/cli"
	"github.com/jeranaias/assetdesk/internal/config"
	"github.com/jeranaias/assetdesk/internal/ui/desk"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()
	if err := run(cmd, args); err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}
}

func run(cmd cli.Command, args cli.Args) error {
	// Commands that need neither the config nor the store.
	switch cmd {
	case cli.CmdVersion:
		return cli.HandleVersion(os.Stdout, args)
	case cli.CmdHelp:
		return cli.HandleHelp(os.Stdout, args)
	}

	cfg, path, err := cli.LoadConfig(args)
	if err != nil {
		return err
	}
	if cmd == cli.CmdConfig {
		return cli.HandleConfig(os.Stdout, cfg, path, args)
	}
	if args.Verbose {
		cfg.Logging.Level = "debug"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd == cli.CmdTUI {
		return runTUI(ctx, cfg, path)
	}

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	app.ConfigPath = path
	return cli.Run(ctx, app, cmd, args)
}

// runTUI opens the dashboard and keeps it in step with the config file.
func runTUI(ctx context.Context, cfg *config.Config, path string) error {
	if !cli.IsTTY() || !cli.IsStdoutTTY() {
		return &cli.TTYRequiredError{Operation: "open the dashboard"}
	}

	app, err := cli.NewApp(ctx, cfg, cli.WithQuietLogs())
	if err != nil {
		return err
	}
	defer app.Close()
	app.ConfigPath = path

	m := desk.New(ctx, desk.Deps{
		Identity:  app.Identity,
		Directory: app.Directory,
		Config:    cfg,
		Logger:    app.Logger,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	err = config.Watch(watchCtx, path, func(next *config.Config, err error) {
		p.Send(desk.ConfigReloadedMsg{Config: next, Err: err})
	})
	if err != nil {
		app.Logger.Warn("config changes will not be picked up", "path", path, "error", err)
	}

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
