// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"fmt"
	"os"

	"github.com/jeranaias/assetdesk/internal/util"
)

// =============================================================================
// KEYSTORE INTERFACE
// =============================================================================

// KeyStore holds the master key that encrypts the local store. It is kept
// apart from the store itself:
//   - Windows: DPAPI-wrapped key file
//   - Unix: key file with 0600 permissions in a 0700 directory
type KeyStore interface {
	// Store securely stores the encryption key.
	Store(key []byte) error
	// Retrieve returns the stored key.
	Retrieve() ([]byte, error)
	// Delete removes the key.
	Delete() error
	// Exists checks if a key is stored.
	Exists() bool
}

// =============================================================================
// FILE-BASED KEYSTORE
// =============================================================================

// FileKeyStore keeps the key in a plain file without platform checks.
// Tests and the passphrase mode use it; NewKeyStore picks the platform store.
type FileKeyStore struct {
	path string
}

// NewFileKeyStore creates a file-based key store at path.
func NewFileKeyStore(path string) *FileKeyStore {
	return &FileKeyStore{path: path}
}

// Path returns the key file location.
func (f *FileKeyStore) Path() string {
	return f.path
}

// Store writes the key atomically with 0600 permissions.
func (f *FileKeyStore) Store(key []byte) error {
	if err := util.AtomicWriteFileWithDir(f.path, key, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// Retrieve reads the key from the file.
func (f *FileKeyStore) Retrieve() ([]byte, error) {
	key, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return key, nil
}

// Delete removes the key file.
func (f *FileKeyStore) Delete() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete key file: %w", err)
	}
	return nil
}

// Exists checks if the key file exists.
func (f *FileKeyStore) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}
