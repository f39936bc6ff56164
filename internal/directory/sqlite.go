// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/jeranaias/assetdesk/internal/store"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// =============================================================================
// SQLITE BACKEND
// =============================================================================

// SQLiteBackend keeps clients and asset tables in a local SQLite file.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens the directory database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	db, err := store.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	migrations, err := fs.Sub(sqliteMigrations, "migrations/sqlite")
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := store.Migrate(ctx, db, goose.DialectSQLite3, migrations); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteBackend{db: db}, nil
}

// quoteSQLite quotes a validated table name.
func quoteSQLite(table string) string {
	return `"` + table + `"`
}

// ListClients implements Backend.
func (b *SQLiteBackend) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT id, name, table_name, created_at FROM clients ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		var created string
		if err := rows.Scan(&c.ID, &c.Name, &c.Table, &created); err != nil {
			return nil, fmt.Errorf("list clients: %w", err)
		}
		c.CreatedAt = parseTime(created)
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// GetClient implements Backend.
func (b *SQLiteBackend) GetClient(ctx context.Context, id string) (Client, error) {
	var c Client
	var created string
	err := b.db.QueryRowContext(ctx,
		`SELECT id, name, table_name, created_at FROM clients WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Table, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Client{}, fmt.Errorf("client %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Client{}, fmt.Errorf("get client: %w", err)
	}
	c.CreatedAt = parseTime(created)
	return c, nil
}

// CreateClient implements Backend.
func (b *SQLiteBackend) CreateClient(ctx context.Context, c Client) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, table_name, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Table, formatTime(c.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("client %q: %w", c.Name, ErrConflict)
		}
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

// EnsureTable implements Backend.
func (b *SQLiteBackend) EnsureTable(ctx context.Context, table string) error {
	if !validTable(table) {
		return fmt.Errorf("table %q: %w", table, ErrInvalid)
	}
	q := quoteSQLite(table)
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + q + ` (
			id            TEXT PRIMARY KEY,
			asset_tag     TEXT NOT NULL DEFAULT '',
			name          TEXT NOT NULL,
			category      TEXT NOT NULL DEFAULT '',
			manufacturer  TEXT NOT NULL DEFAULT '',
			model         TEXT NOT NULL DEFAULT '',
			serial_number TEXT NOT NULL DEFAULT '',
			barcode       TEXT NOT NULL DEFAULT '',
			location      TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL DEFAULT 'active',
			assigned_to   TEXT NOT NULL DEFAULT '',
			notes         TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS "idx_` + table + `_barcode" ON ` + q + ` (barcode)`,
	}
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure table %s: %w", table, err)
		}
	}
	return nil
}

const sqliteAssetColumns = `id, asset_tag, name, category, manufacturer, model, serial_number,
	barcode, location, status, assigned_to, notes, created_at, updated_at`

// ListAssets implements Backend.
func (b *SQLiteBackend) ListAssets(ctx context.Context, table string, f Filter) ([]Asset, error) {
	if !validTable(table) {
		return nil, fmt.Errorf("table %q: %w", table, ErrInvalid)
	}

	var (
		where []string
		args  []any
	)
	if f.Search != "" {
		where = append(where, `(name LIKE ? ESCAPE '\' OR asset_tag LIKE ? ESCAPE '\' OR serial_number LIKE ? ESCAPE '\'
			OR barcode LIKE ? ESCAPE '\' OR model LIKE ? ESCAPE '\' OR manufacturer LIKE ? ESCAPE '\'
			OR location LIKE ? ESCAPE '\' OR assigned_to LIKE ? ESCAPE '\')`)
		p := likePattern(f.Search)
		for i := 0; i < 8; i++ {
			args = append(args, p)
		}
	}
	if f.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, string(f.Status))
	}
	if f.Barcode != "" {
		where = append(where, `barcode = ?`)
		args = append(args, f.Barcode)
	}

	query := `SELECT ` + sqliteAssetColumns + ` FROM ` + quoteSQLite(table)
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name, asset_tag LIMIT ?`
	args = append(args, f.limit())

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		a, err := scanSQLiteAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("list assets: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// GetAsset implements Backend.
func (b *SQLiteBackend) GetAsset(ctx context.Context, table, id string) (Asset, error) {
	if !validTable(table) {
		return Asset{}, fmt.Errorf("table %q: %w", table, ErrInvalid)
	}
	row := b.db.QueryRowContext(ctx,
		`SELECT `+sqliteAssetColumns+` FROM `+quoteSQLite(table)+` WHERE id = ?`, id)
	a, err := scanSQLiteAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Asset{}, fmt.Errorf("asset %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Asset{}, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

// CreateAsset implements Backend.
func (b *SQLiteBackend) CreateAsset(ctx context.Context, table string, a Asset) error {
	if !validTable(table) {
		return fmt.Errorf("table %q: %w", table, ErrInvalid)
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO `+quoteSQLite(table)+` (`+sqliteAssetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.AssetTag, a.Name, a.Category, a.Manufacturer, a.Model, a.SerialNumber,
		a.Barcode, a.Location, string(a.Status), a.AssignedTo, a.Notes,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

// UpdateAsset implements Backend.
func (b *SQLiteBackend) UpdateAsset(ctx context.Context, table string, a Asset) error {
	if !validTable(table) {
		return fmt.Errorf("table %q: %w", table, ErrInvalid)
	}
	res, err := b.db.ExecContext(ctx,
		`UPDATE `+quoteSQLite(table)+` SET asset_tag = ?, name = ?, category = ?, manufacturer = ?,
			model = ?, serial_number = ?, barcode = ?, location = ?, status = ?, assigned_to = ?,
			notes = ?, updated_at = ?
		WHERE id = ?`,
		a.AssetTag, a.Name, a.Category, a.Manufacturer, a.Model, a.SerialNumber, a.Barcode,
		a.Location, string(a.Status), a.AssignedTo, a.Notes, formatTime(a.UpdatedAt), a.ID)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	return requireRow(res, a.ID)
}

// DeleteAsset implements Backend.
func (b *SQLiteBackend) DeleteAsset(ctx context.Context, table, id string) error {
	if !validTable(table) {
		return fmt.Errorf("table %q: %w", table, ErrInvalid)
	}
	res, err := b.db.ExecContext(ctx, `DELETE FROM `+quoteSQLite(table)+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return requireRow(res, id)
}

// Close implements Backend.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// =============================================================================
// HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAsset(row rowScanner) (Asset, error) {
	var (
		a                Asset
		status           string
		created, updated string
	)
	err := row.Scan(&a.ID, &a.AssetTag, &a.Name, &a.Category, &a.Manufacturer, &a.Model,
		&a.SerialNumber, &a.Barcode, &a.Location, &status, &a.AssignedTo, &a.Notes,
		&created, &updated)
	if err != nil {
		return Asset{}, err
	}
	a.Status = Status(status)
	a.CreatedAt = parseTime(created)
	a.UpdatedAt = parseTime(updated)
	return a, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("asset %q: %w", id, ErrNotFound)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
