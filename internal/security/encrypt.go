// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/jeranaias/assetdesk/internal/util"
	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// SECURITY HELPER FUNCTIONS
// =============================================================================

// ZeroBytes overwrites key material once it is no longer needed.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// =============================================================================
// CONSTANTS
// =============================================================================

// EncryptedPrefix marks a config value as encrypted: ENC:base64(nonce|ciphertext|tag).
const EncryptedPrefix = "ENC:"

// NonceSize is the AES-GCM nonce size (12 bytes / 96 bits).
const NonceSize = 12

// KeySize is the AES-256 key size (32 bytes).
const KeySize = 32

// SaltSize is the salt size for passphrase key derivation.
const SaltSize = 32

// PBKDF2Iterations is the PBKDF2-SHA-256 iteration count for passphrase keys.
const PBKDF2Iterations = 600000

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotInitialized indicates no key has been loaded.
	ErrNotInitialized = errors.New("encryption not initialized")
	// ErrInvalidCiphertext indicates the ciphertext is too short to be valid.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	// ErrDecryptionFailed indicates a wrong key or tampered data.
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
)

// =============================================================================
// ENCRYPTION STATUS
// =============================================================================

// EncryptionStatus describes the state of an EncryptionManager.
type EncryptionStatus struct {
	Initialized bool   `json:"initialized"`
	Algorithm   string `json:"algorithm"`
	KeySource   string `json:"key_source"`
	KeyPath     string `json:"key_path,omitempty"`
}

// =============================================================================
// ENCRYPTION MANAGER
// =============================================================================

// EncryptionManager seals data at rest with AES-256-GCM. The key lives in a
// KeyStore, a separate artifact from the data it protects.
type EncryptionManager struct {
	mu        sync.RWMutex
	keyStore  KeyStore
	cipher    cipher.AEAD
	keySource string
}

// NewEncryptionManager creates a manager backed by ks. No key is loaded
// until EnsureKey, Initialize or InitializeWithPassphrase is called.
func NewEncryptionManager(ks KeyStore) *EncryptionManager {
	return &EncryptionManager{keyStore: ks}
}

// GenerateSalt generates a cryptographically secure random salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// GenerateMasterKey generates a random AES-256 key.
func GenerateMasterKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	return key, nil
}

// DeriveKey derives an AES-256 key from a passphrase with PBKDF2-SHA-256.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, KeySize, sha256.New)
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// EnsureKey loads the stored key, generating and storing a new one first if
// none exists yet. It reports whether a key was created.
func (e *EncryptionManager) EnsureKey() (created bool, err error) {
	if e.keyStore.Exists() {
		return false, e.Load()
	}
	return true, e.Initialize()
}

// Initialize generates a new master key and stores it in the key store.
func (e *EncryptionManager) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key, err := GenerateMasterKey()
	if err != nil {
		return err
	}
	defer ZeroBytes(key)

	if err := e.keyStore.Store(key); err != nil {
		return fmt.Errorf("failed to store master key: %w", err)
	}
	if err := e.initCipher(key); err != nil {
		_ = e.keyStore.Delete()
		return err
	}
	e.keySource = "keystore"
	return nil
}

// Load reads the master key from the key store.
func (e *EncryptionManager) Load() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key, err := e.keyStore.Retrieve()
	if err != nil {
		return fmt.Errorf("failed to retrieve master key: %w", err)
	}
	defer ZeroBytes(key)

	if len(key) != KeySize {
		return fmt.Errorf("master key has unexpected length %d", len(key))
	}
	if err := e.initCipher(key); err != nil {
		return err
	}
	e.keySource = "keystore"
	return nil
}

// InitializeWithPassphrase derives the key from a passphrase instead of the
// key store. The salt is kept at saltPath and created on first use, so the
// salt file is the separate artifact in this mode.
func (e *EncryptionManager) InitializeWithPassphrase(passphrase, saltPath string) error {
	if passphrase == "" {
		return fmt.Errorf("%w: empty passphrase", ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	salt, err := os.ReadFile(saltPath)
	if errors.Is(err, os.ErrNotExist) {
		salt, err = GenerateSalt()
		if err != nil {
			return err
		}
		if err := util.AtomicWriteFileWithDir(saltPath, salt, 0600, 0700); err != nil {
			return fmt.Errorf("failed to save salt: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to read salt: %w", err)
	}

	key := DeriveKey(passphrase, salt)
	defer ZeroBytes(key)

	if err := e.initCipher(key); err != nil {
		return err
	}
	e.keySource = "passphrase"
	return nil
}

func (e *EncryptionManager) initCipher(key []byte) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	e.cipher = gcm
	return nil
}

// =============================================================================
// STATUS
// =============================================================================

// IsInitialized returns true once a key has been loaded.
func (e *EncryptionManager) IsInitialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cipher != nil
}

// Status returns the current encryption status.
func (e *EncryptionManager) Status() EncryptionStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	status := EncryptionStatus{
		Initialized: e.cipher != nil,
		Algorithm:   "AES-256-GCM",
		KeySource:   e.keySource,
	}
	if p, ok := e.keyStore.(interface{ Path() string }); ok {
		status.KeyPath = p.Path()
	}
	return status
}

// =============================================================================
// ENCRYPTION OPERATIONS
// =============================================================================

// Encrypt seals plaintext. Output format: nonce || ciphertext || tag.
func (e *EncryptionManager) Encrypt(plaintext []byte) ([]byte, error) {
	return e.Seal(plaintext, nil)
}

// Decrypt opens data produced by Encrypt.
func (e *EncryptionManager) Decrypt(ciphertext []byte) ([]byte, error) {
	return e.Open(ciphertext, nil)
}

// Seal encrypts plaintext and binds it to associatedData, which must be
// presented again to Open. The store passes the record key so a sealed value
// cannot be moved under another key.
func (e *EncryptionManager) Seal(plaintext, associatedData []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.cipher == nil {
		return nil, ErrNotInitialized
	}

	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+e.cipher.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return e.cipher.Seal(nonce, nonce, plaintext, associatedData), nil
}

// Open decrypts data produced by Seal with the same associatedData.
func (e *EncryptionManager) Open(ciphertext, associatedData []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.cipher == nil {
		return nil, ErrNotInitialized
	}
	if len(ciphertext) < NonceSize+e.cipher.Overhead() {
		return nil, ErrInvalidCiphertext
	}

	nonce, body := ciphertext[:NonceSize], ciphertext[NonceSize:]
	plaintext, err := e.cipher.Open(nil, nonce, body, associatedData)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptString encrypts a string and returns it with the ENC: prefix.
func (e *EncryptionManager) EncryptString(plaintext string) (string, error) {
	ciphertext, err := e.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptString decrypts an ENC: value. Values without the prefix are
// returned unchanged so plain config entries keep working.
func (e *EncryptionManager) DecryptString(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("invalid base64 encoding: %w", err)
	}
	plaintext, err := e.Decrypt(data)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// IsEncrypted checks if a string value has the ENC: prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}
