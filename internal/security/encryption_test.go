// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"bytes"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestManager returns an initialized manager backed by a temp key file.
func newTestManager(t *testing.T) *EncryptionManager {
	t.Helper()
	ks := NewFileKeyStore(filepath.Join(t.TempDir(), "keys", "master.key"))
	em := NewEncryptionManager(ks)
	require.NoError(t, em.Initialize())
	return em
}

// =============================================================================
// KEY DERIVATION TESTS
// =============================================================================

func TestDeriveKey_Deterministic(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")

	key1 := DeriveKey("passphrase", salt)
	key2 := DeriveKey("passphrase", salt)
	require.Equal(t, key1, key2)
	require.Len(t, key1, KeySize)

	require.NotEqual(t, key1, DeriveKey("passphrase", []byte("another-salt-another-salt-12345!")))
	require.NotEqual(t, key1, DeriveKey("other", salt))
}

func TestGenerateMasterKey_Random(t *testing.T) {
	a, err := GenerateMasterKey()
	require.NoError(t, err)
	b, err := GenerateMasterKey()
	require.NoError(t, err)
	require.Len(t, a, KeySize)
	require.False(t, bytes.Equal(a, b))
}

// =============================================================================
// MANAGER LIFECYCLE TESTS
// =============================================================================

func TestEncryptionManager_NotInitialized(t *testing.T) {
	em := NewEncryptionManager(NewFileKeyStore(filepath.Join(t.TempDir(), "k")))
	require.False(t, em.IsInitialized())

	_, err := em.Encrypt([]byte("x"))
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = em.Decrypt(make([]byte, 64))
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestEncryptionManager_EnsureKeyCreatesThenLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "master.key")

	first := NewEncryptionManager(NewFileKeyStore(path))
	created, err := first.EnsureKey()
	require.NoError(t, err)
	require.True(t, created)

	sealed, err := first.Seal([]byte("serial-123"), []byte("asset:1"))
	require.NoError(t, err)

	second := NewEncryptionManager(NewFileKeyStore(path))
	created, err = second.EnsureKey()
	require.NoError(t, err)
	require.False(t, created)

	plain, err := second.Open(sealed, []byte("asset:1"))
	require.NoError(t, err)
	require.Equal(t, "serial-123", string(plain))

	status := second.Status()
	require.True(t, status.Initialized)
	require.Equal(t, "AES-256-GCM", status.Algorithm)
	require.Equal(t, "keystore", status.KeySource)
	require.Equal(t, path, status.KeyPath)
}

func TestEncryptionManager_LoadRejectsWrongLength(t *testing.T) {
	ks := NewFileKeyStore(filepath.Join(t.TempDir(), "master.key"))
	require.NoError(t, ks.Store([]byte("too-short")))

	err := NewEncryptionManager(ks).Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected length")
}

func TestEncryptionManager_Passphrase(t *testing.T) {
	saltPath := filepath.Join(t.TempDir(), "keys", "salt")

	em1 := NewEncryptionManager(NewFileKeyStore(filepath.Join(t.TempDir(), "unused")))
	require.NoError(t, em1.InitializeWithPassphrase("correct horse", saltPath))
	require.Equal(t, "passphrase", em1.Status().KeySource)

	sealed, err := em1.Encrypt([]byte("payload"))
	require.NoError(t, err)

	// Same passphrase and salt file decrypt.
	em2 := NewEncryptionManager(NewFileKeyStore(filepath.Join(t.TempDir(), "unused")))
	require.NoError(t, em2.InitializeWithPassphrase("correct horse", saltPath))
	plain, err := em2.Decrypt(sealed)
	require.NoError(t, err)
	require.Equal(t, "payload", string(plain))

	// A different passphrase does not.
	em3 := NewEncryptionManager(NewFileKeyStore(filepath.Join(t.TempDir(), "unused")))
	require.NoError(t, em3.InitializeWithPassphrase("wrong horse", saltPath))
	_, err = em3.Decrypt(sealed)
	require.ErrorIs(t, err, ErrDecryptionFailed)

	require.ErrorIs(t, em3.InitializeWithPassphrase("", saltPath), ErrInvalidInput)
}

// =============================================================================
// SEAL / OPEN TESTS
// =============================================================================

func TestSealOpen_RoundTrip(t *testing.T) {
	em := newTestManager(t)

	for _, msg := range [][]byte{{}, []byte("a"), bytes.Repeat([]byte("z"), 4096)} {
		sealed, err := em.Seal(msg, []byte("k"))
		require.NoError(t, err)
		require.Len(t, sealed, NonceSize+len(msg)+16)

		plain, err := em.Open(sealed, []byte("k"))
		require.NoError(t, err)
		require.True(t, bytes.Equal(msg, plain))
	}
}

func TestSealOpen_AssociatedDataBindsKey(t *testing.T) {
	em := newTestManager(t)

	sealed, err := em.Seal([]byte(`{"id":1}`), []byte("user:1"))
	require.NoError(t, err)

	_, err = em.Open(sealed, []byte("user:2"))
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestSealOpen_TamperDetected(t *testing.T) {
	em := newTestManager(t)

	sealed, err := em.Encrypt([]byte("inventory"))
	require.NoError(t, err)

	for i := range sealed {
		tampered := append([]byte(nil), sealed...)
		tampered[i] ^= 0x01
		_, err := em.Decrypt(tampered)
		require.ErrorIs(t, err, ErrDecryptionFailed, "flipped byte %d", i)
	}

	_, err = em.Decrypt(sealed[:NonceSize+3])
	require.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestSeal_UniqueNonces(t *testing.T) {
	em := newTestManager(t)

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				sealed, err := em.Encrypt([]byte("same"))
				if err != nil {
					t.Error(err)
					return
				}
				nonce := string(sealed[:NonceSize])
				mu.Lock()
				if seen[nonce] {
					t.Errorf("nonce reused")
				}
				seen[nonce] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, 800)
}

func TestEncryptString(t *testing.T) {
	em := newTestManager(t)

	enc, err := em.EncryptString("postgres://svc:pw@db/inventory")
	require.NoError(t, err)
	require.True(t, IsEncrypted(enc))

	dec, err := em.DecryptString(enc)
	require.NoError(t, err)
	require.Equal(t, "postgres://svc:pw@db/inventory", dec)

	plain, err := em.DecryptString("not encrypted")
	require.NoError(t, err)
	require.Equal(t, "not encrypted", plain)

	_, err = em.DecryptString(EncryptedPrefix + "!!!")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrDecryptionFailed))
}

func TestZeroBytes(t *testing.T) {
	b := []byte{1, 2, 3}
	ZeroBytes(b)
	require.Equal(t, []byte{0, 0, 0}, b)
}
