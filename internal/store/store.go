// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/jeranaias/assetdesk/internal/logging"
	"github.com/jeranaias/assetdesk/internal/security"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrStorage wraps every I/O, cipher and decode failure from a Store.
var ErrStorage = errors.New("storage failure")

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is an encrypted key-value store for structured records.
type Store interface {
	// Get decodes the value under key into dest. It returns false and leaves
	// dest untouched when the key does not exist.
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Set encodes value and stores it under key, replacing any old value.
	Set(ctx context.Context, key string, value any) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists stored keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases the underlying database.
	Close() error
}

// =============================================================================
// SQLITE STORE
// =============================================================================

// SQLiteStore implements Store on a single SQLite table.
type SQLiteStore struct {
	db     *sql.DB
	enc    *security.EncryptionManager
	logger *slog.Logger
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger used for store diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SQLiteStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens the store at path and applies migrations. enc must already
// hold a key.
func Open(ctx context.Context, path string, enc *security.EncryptionManager, opts ...Option) (*SQLiteStore, error) {
	if enc == nil || !enc.IsInitialized() {
		return nil, fmt.Errorf("%w: %w", ErrStorage, security.ErrNotInitialized)
	}

	db, err := OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	migrations, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := Migrate(ctx, db, goose.DialectSQLite3, migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s := &SQLiteStore{db: db, enc: enc, logger: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// OpenWithKeyFile opens the store at dbPath using the platform key store at
// keyPath, generating the master key on first use.
func OpenWithKeyFile(ctx context.Context, dbPath, keyPath string, opts ...Option) (*SQLiteStore, *security.EncryptionManager, error) {
	enc := security.NewEncryptionManager(security.NewKeyStore(keyPath))
	if _, err := enc.EnsureKey(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	s, err := Open(ctx, dbPath, enc, opts...)
	if err != nil {
		return nil, nil, err
	}
	return s, enc, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	var sealed []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %w", ErrStorage, key, err)
	}

	plain, err := s.enc.Open(sealed, []byte(key))
	if err != nil {
		s.logger.Error("stored value failed authentication", "key", key, "error", err)
		return false, fmt.Errorf("%w: decrypt %s: %w", ErrStorage, key, err)
	}
	defer security.ZeroBytes(plain)

	if err := json.Unmarshal(plain, dest); err != nil {
		return false, fmt.Errorf("%w: decode %s: %w", ErrStorage, key, err)
	}
	return true, nil
}

// Set implements Store.
func (s *SQLiteStore) Set(ctx context.Context, key string, value any) error {
	plain, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrStorage, key, err)
	}
	defer security.ZeroBytes(plain)

	sealed, err := s.enc.Seal(plain, []byte(key))
	if err != nil {
		return fmt.Errorf("%w: encrypt %s: %w", ErrStorage, key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, sealed)
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrStorage, key, err)
	}
	s.logger.Debug("store write", "key", key, "bytes", len(sealed))
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrStorage, key, err)
	}
	return nil
}

// Keys implements Store.
func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("%w: list keys: %w", ErrStorage, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("%w: list keys: %w", ErrStorage, err)
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list keys: %w", ErrStorage, err)
	}
	return keys, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore is an unencrypted in-process Store. Values still round-trip
// through JSON so callers observe the same copy semantics as SQLiteStore.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("%w: decode %s: %w", ErrStorage, key, err)
	}
	return true, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrStorage, key, err)
	}
	m.data[key] = raw
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// Keys implements Store.
func (m *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
