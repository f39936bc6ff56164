// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel(" error "))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLoggerWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter(slog.LevelInfo, "json", &buf)

	log.Debug("hidden")
	log.Info("store opened", "path", "/tmp/assetdesk.db")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	require.Equal(t, "store opened", rec["msg"])
	require.Equal(t, "assetdesk", rec["app"])
	require.Equal(t, "/tmp/assetdesk.db", rec["path"])
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "assetdesk.log")

	log, closer, err := Open(Options{Level: "debug", File: path})
	require.NoError(t, err)
	log.Debug("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
}

func TestOpen_QuietDiscards(t *testing.T) {
	log, closer, err := Open(Options{Quiet: true})
	require.NoError(t, err)
	require.NotNil(t, log)
	require.NoError(t, closer.Close())
}
