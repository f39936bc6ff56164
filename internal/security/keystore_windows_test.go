// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows

package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWindowsKeyStore_WrapsKeyOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "master.key")
	ks := NewKeyStore(path)
	require.False(t, ks.Exists())

	key, err := GenerateMasterKey()
	require.NoError(t, err)
	require.NoError(t, ks.Store(key))
	require.True(t, ks.Exists())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEqual(t, key, raw)

	got, err := ks.Retrieve()
	require.NoError(t, err)
	require.Equal(t, key, got)

	require.NoError(t, ks.Delete())
	require.False(t, ks.Exists())
}

func TestWindowsKeyStore_RejectsEmptyKey(t *testing.T) {
	ks := NewKeyStore(filepath.Join(t.TempDir(), "master.key"))
	require.Error(t, ks.Store(nil))
	require.False(t, ks.Exists())
}
