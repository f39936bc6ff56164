// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// REDACTION TESTS
// =============================================================================

func TestRedact(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		leaked string
	}{
		{"password pair", "login failed password=hunter2", "hunter2"},
		{"dsn", "dial postgres://svc:s3cr3t@db:5432/inv", "s3cr3t"},
		{"bearer", "Authorization: Bearer abc.def-ghi", "abc.def-ghi"},
		{"otpauth", "otpauth://totp/AssetDesk:alice?secret=JBSWY3DPEHPK3PXP", "JBSWY3DPEHPK3PXP"},
		{"bcrypt", "$2a$12$" + strings.Repeat("a", 53), strings.Repeat("a", 53)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotContains(t, Redact(tt.input), tt.leaked)
		})
	}

	require.Equal(t, "user alice logged in", Redact("user alice logged in"))
}

// =============================================================================
// AUDIT LOGGER TESTS
// =============================================================================

func TestAuditEvent_ToLogLine(t *testing.T) {
	ev := AuditEvent{
		Timestamp: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		EventType: "LOGIN",
		Actor:     "alice",
		Success:   false,
		Error:     "invalid credentials",
		Metadata:  map[string]string{"z": "1", "a": "2"},
	}
	line := ev.ToLogLine()
	require.Contains(t, line, "LOGIN")
	require.Contains(t, line, "alice")
	require.Contains(t, line, "FAILURE: invalid credentials")
	require.Less(t, strings.Index(line, "a=2"), strings.Index(line, "z=1"))
}

func TestAuditLogger_WritesRedactedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")
	al, err := NewAuditLogger(path)
	require.NoError(t, err)
	defer al.Close()

	require.NoError(t, al.LogEvent("LOGIN", "alice", true, nil))
	require.NoError(t, al.Log(AuditEvent{
		EventType: "BACKEND_CONNECT",
		Actor:     "system",
		Error:     "dial postgres://svc:topsecret@db/inv refused",
		Metadata:  map[string]string{"note": "password=hunter2"},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "topsecret")
	require.NotContains(t, string(data), "hunter2")

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	lines, err := al.Tail(10)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "LOGIN")
	require.Contains(t, lines[1], "BACKEND_CONNECT")
}

func TestAuditLogger_DisabledAndCustomRedactor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	al, err := NewAuditLogger(path)
	require.NoError(t, err)
	defer al.Close()

	al.SetEnabled(false)
	require.NoError(t, al.LogEvent("IGNORED", "x", true, nil))

	al.SetEnabled(true)
	al.AddRedactor(NewPatternRedactor("Serial", regexp.MustCompile(`SN-\d+`), "[SERIAL]"))
	require.NoError(t, al.LogEvent("ASSET_ADD", "bob", true, map[string]string{"serial": "SN-12345"}))

	lines, err := TailAuditLog(path, 0)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "[SERIAL]")
}

func TestTailAuditLog_LastN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	al, err := NewAuditLogger(path)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, al.LogEvent("E", "a", true, map[string]string{"i": string(rune('0' + i))}))
	}
	require.NoError(t, al.Close())

	lines, err := TailAuditLog(path, 2)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], "i=4")
}
