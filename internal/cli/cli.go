// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line parsing and dispatch.

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/assetdesk/internal/config"
)

// Version information, set at build time with -ldflags.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the top-level command to run.
type Command int

const (
	CmdTUI Command = iota
	CmdLogin
	CmdLogout
	CmdWhoami
	CmdUser
	CmdClient
	CmdAsset
	CmdConfig
	CmdEncrypt
	CmdAudit
	CmdVersion
	CmdHelp
)

var commandNames = map[Command]string{
	CmdTUI:     "tui",
	CmdLogin:   "login",
	CmdLogout:  "logout",
	CmdWhoami:  "whoami",
	CmdUser:    "user",
	CmdClient:  "client",
	CmdAsset:   "asset",
	CmdConfig:  "config",
	CmdEncrypt: "encrypt",
	CmdAudit:   "audit",
	CmdVersion: "version",
	CmdHelp:    "help",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Args holds parsed arguments.
type Args struct {
	// Global flags
	JSON       bool
	Quiet      bool
	Verbose    bool
	ConfigPath string

	// Raw holds the arguments after the command name.
	Raw []string

	// Unknown is set when the command name was not recognized.
	Unknown string
}

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses argv without the program name. No command means the TUI.
func ParseArgs(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)
	if len(remaining) == 0 {
		return CmdTUI, args
	}

	name := strings.ToLower(remaining[0])
	args.Raw = remaining[1:]

	switch name {
	case "tui":
		return CmdTUI, args
	case "login", "signin":
		return CmdLogin, args
	case "logout", "signout":
		return CmdLogout, args
	case "whoami", "me":
		return CmdWhoami, args
	case "user", "users":
		return CmdUser, args
	case "client", "clients":
		return CmdClient, args
	case "asset", "assets":
		return CmdAsset, args
	case "config":
		return CmdConfig, args
	case "encrypt", "encryption":
		return CmdEncrypt, args
	case "audit":
		return CmdAudit, args
	case "version", "--version":
		return CmdVersion, args
	case "help", "-h", "--help":
		return CmdHelp, args
	default:
		args.Unknown = remaining[0]
		return CmdHelp, args
	}
}

// parseGlobalFlags extracts flags valid for every command. They may appear
// anywhere on the line.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var (
		remaining []string
		args      Args
	)
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--json":
			args.JSON = true
		case arg == "-q" || arg == "--quiet":
			args.Quiet = true
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "--config" && i+1 < len(argv):
			i++
			args.ConfigPath = argv[i]
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes a command that needs the store. tui, config, version and
// help are handled by the caller.
func Run(ctx context.Context, app *App, cmd Command, args Args) error {
	switch cmd {
	case CmdLogin:
		return HandleLogin(ctx, app, args)
	case CmdLogout:
		return HandleLogout(ctx, app, args)
	case CmdWhoami:
		return HandleWhoami(ctx, app, args)
	case CmdUser:
		return HandleUser(ctx, app, args)
	case CmdClient:
		return HandleClient(ctx, app, args)
	case CmdAsset:
		return HandleAsset(ctx, app, args)
	case CmdEncrypt:
		return HandleEncrypt(ctx, app, args)
	case CmdAudit:
		return HandleAudit(ctx, app, args)
	default:
		return fmt.Errorf("command %s cannot run here", cmd)
	}
}

// LoadConfig loads the file named by --config, or the default location.
// It returns the path that was used.
func LoadConfig(args Args) (*config.Config, string, error) {
	if args.ConfigPath != "" {
		cfg, err := config.LoadFromPath(args.ConfigPath)
		return cfg, args.ConfigPath, err
	}
	path, err := config.ConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load()
	return cfg, path, err
}
