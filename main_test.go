// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/assetdesk/internal/cli"
)

// The binary links every package, the TUI included.
func TestRun_OfflineCommands(t *testing.T) {
	t.Setenv("ASSETDESK_HOME", t.TempDir())
	require.NoError(t, run(cli.CmdVersion, cli.Args{}))
	require.NoError(t, run(cli.CmdHelp, cli.Args{}))
}
