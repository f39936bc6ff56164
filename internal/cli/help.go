// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// help.go - help and version output.

package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/charmbracelet/glamour"
)

// helpText is the usage guide, in markdown so it renders nicely on a
// terminal and still reads as plain text when piped.
const helpText = `# assetdesk

Inventory for managed-service clients. Run with no command to open the
interactive dashboard.

## Usage

    assetdesk [command] [subcommand] [flags]

## Commands

| Command | Description |
|---------|-------------|
| ` + "`login`" + ` | Sign in (` + "`-u user`" + `, ` + "`--otp code`" + `) |
| ` + "`logout`" + ` | End the current session |
| ` + "`whoami`" + ` | Show the signed-in user and session |
| ` + "`user`" + ` | list, create, update, passwd, deactivate, mfa |
| ` + "`client`" + ` | list, create, access |
| ` + "`asset`" + ` | list, show, add, update, delete, scan |
| ` + "`config`" + ` | show, path, init, get, set, keys |
| ` + "`encrypt`" + ` | status, value, dsn, keys |
| ` + "`audit`" + ` | Review the security audit log (admin) |
| ` + "`version`" + ` | Print version information |

## Global flags

- ` + "`--json`" + ` machine-readable output
- ` + "`-q, --quiet`" + ` less output
- ` + "`-v, --verbose`" + ` debug logging
- ` + "`--config PATH`" + ` use another config file

## First run

A default ` + "`admin`" + ` account is created with password ` + "`admin123`" + `.
You must change it at first login.

## Exit codes

0 ok, 1 error, 2 usage, 3 config, 4 auth, 5 storage, 6 rate limited,
7 not found, 8 timeout.
`

// renderHelp renders markdown for a terminal, or returns it as is.
func renderHelp(md string, tty bool) string {
	if !tty {
		return md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(min(GetTerminalWidth(), 100)),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// HandleHelp prints usage. An unrecognized command name is reported first
// and returned as a usage error.
func HandleHelp(out io.Writer, args Args) error {
	fmt.Fprint(out, renderHelp(helpText, IsStdoutTTY()))
	if args.Unknown != "" {
		return &UsageError{Message: fmt.Sprintf("unknown command %q", args.Unknown)}
	}
	return nil
}

// versionInfo is the --json shape of version.
type versionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// HandleVersion prints build information.
func HandleVersion(out io.Writer, args Args) error {
	info := versionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if args.JSON {
		return writeJSON(out, "version", info)
	}
	fmt.Fprintf(out, "assetdesk %s\n", info.Version)
	if !args.Quiet {
		fmt.Fprintf(out, "  commit:   %s\n  built:    %s\n  go:       %s\n  platform: %s\n",
			info.GitCommit, info.BuildDate, info.GoVersion, info.Platform)
	}
	return nil
}
