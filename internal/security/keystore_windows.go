// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows

package security

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// =============================================================================
// WINDOWS KEY STORE
// =============================================================================

// WindowsKeyStore is a FileKeyStore whose contents are wrapped with DPAPI,
// so the key file only opens for the Windows account that wrote it.
type WindowsKeyStore struct {
	*FileKeyStore
}

// NewKeyStore returns the platform key store for the key file at path.
func NewKeyStore(path string) KeyStore {
	return &WindowsKeyStore{FileKeyStore: NewFileKeyStore(path)}
}

func (w *WindowsKeyStore) Store(key []byte) error {
	wrapped, err := dpapi(procProtect, key)
	if err != nil {
		return fmt.Errorf("protect master key: %w", err)
	}
	return w.FileKeyStore.Store(wrapped)
}

func (w *WindowsKeyStore) Retrieve() ([]byte, error) {
	wrapped, err := w.FileKeyStore.Retrieve()
	if err != nil {
		return nil, err
	}
	key, err := dpapi(procUnprotect, wrapped)
	if err != nil {
		return nil, fmt.Errorf("unprotect master key: %w", err)
	}
	return key, nil
}

// =============================================================================
// DPAPI
// =============================================================================

var (
	crypt32       = windows.NewLazySystemDLL("crypt32.dll")
	procProtect   = crypt32.NewProc("CryptProtectData")
	procUnprotect = crypt32.NewProc("CryptUnprotectData")
)

type blob struct {
	n    uint32
	data *byte
}

const uiForbidden = 0x01

// dpapi runs one of the two DPAPI calls, which share a signature. The
// optional description, entropy and prompt arguments are all left unset.
func dpapi(proc *windows.LazyProc, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: empty input", proc.Name)
	}
	in := blob{n: uint32(len(data)), data: &data[0]}
	var out blob
	ret, _, callErr := proc.Call(uintptr(unsafe.Pointer(&in)), 0, 0, 0, 0, uiForbidden, uintptr(unsafe.Pointer(&out)))
	if ret == 0 {
		return nil, fmt.Errorf("%s: %w", proc.Name, callErr)
	}
	defer windows.LocalFree(windows.Handle(uintptr(unsafe.Pointer(out.data))))
	return append([]byte(nil), unsafe.Slice(out.data, out.n)...), nil
}
