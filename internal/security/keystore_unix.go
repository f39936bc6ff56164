// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows

package security

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeranaias/assetdesk/internal/util"
)

// =============================================================================
// UNIX KEY STORE
// =============================================================================

// UnixKeyStore keeps the master key in a file protected by filesystem
// permissions. Both the file (0600) and its directory (0700) are checked on
// every read and write; a key readable by group or world is refused.
type UnixKeyStore struct {
	path string
}

// NewKeyStore returns the platform key store for the key file at path.
func NewKeyStore(path string) KeyStore {
	return &UnixKeyStore{path: path}
}

// Path returns the key file location.
func (u *UnixKeyStore) Path() string {
	return u.path
}

// Store writes the key and verifies the resulting permissions.
func (u *UnixKeyStore) Store(key []byte) error {
	dir := filepath.Dir(u.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := checkPrivate(dir, "key directory", "chmod 700"); err != nil {
		return err
	}

	if err := util.AtomicWriteFileWithDir(u.path, key, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}

	if err := checkPrivate(u.path, "key file", "chmod 600"); err != nil {
		_ = os.Remove(u.path)
		return err
	}
	return nil
}

// Retrieve reads the key after checking directory and file permissions.
func (u *UnixKeyStore) Retrieve() ([]byte, error) {
	if err := checkPrivate(filepath.Dir(u.path), "key directory", "chmod 700"); err != nil {
		return nil, err
	}
	if err := checkPrivate(u.path, "key file", "chmod 600"); err != nil {
		return nil, err
	}

	key, err := os.ReadFile(u.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return key, nil
}

// Delete overwrites the key file with zeros and removes it.
func (u *UnixKeyStore) Delete() error {
	info, err := os.Stat(u.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat key file for deletion: %w", err)
	}

	if size := info.Size(); size > 0 {
		if f, err := os.OpenFile(u.path, os.O_WRONLY, 0600); err == nil {
			_, _ = f.Write(make([]byte, size))
			_ = f.Sync()
			_ = f.Close()
		}
	}

	if err := os.Remove(u.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete key file: %w", err)
	}
	return nil
}

// Exists checks if the key file exists.
func (u *UnixKeyStore) Exists() bool {
	_, err := os.Stat(u.path)
	return err == nil
}

// checkPrivate fails when path grants any group or world permission.
func checkPrivate(path, what, fix string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", what, err)
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		return fmt.Errorf("%s %s has insecure permissions (%o); fix with: %s %s",
			what, path, mode, fix, path)
	}
	return nil
}
