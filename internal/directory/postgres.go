// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/jeranaias/assetdesk/internal/store"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// =============================================================================
// POSTGRES BACKEND
// =============================================================================

// PostgresBackend keeps clients and asset tables in a shared Postgres
// database so several technicians can work on the same inventory.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and applies migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	migrations, err := fs.Sub(postgresMigrations, "migrations/postgres")
	if err != nil {
		pool.Close()
		return nil, err
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	if err := store.Migrate(ctx, db, goose.DialectPostgres, migrations); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresBackend{pool: pool}, nil
}

func quotePostgres(table string) string {
	return pgx.Identifier{table}.Sanitize()
}

// ListClients implements Backend.
func (b *PostgresBackend) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := b.pool.Query(ctx, `SELECT id, name, table_name, created_at FROM clients ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Table, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("list clients: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// GetClient implements Backend.
func (b *PostgresBackend) GetClient(ctx context.Context, id string) (Client, error) {
	var c Client
	err := b.pool.QueryRow(ctx,
		`SELECT id, name, table_name, created_at FROM clients WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Table, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, fmt.Errorf("client %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Client{}, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

// CreateClient implements Backend.
func (b *PostgresBackend) CreateClient(ctx context.Context, c Client) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO clients (id, name, table_name, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.Table, c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("client %q: %w", c.Name, ErrConflict)
		}
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

// EnsureTable implements Backend.
func (b *PostgresBackend) EnsureTable(ctx context.Context, table string) error {
	if !validTable(table) {
		return fmt.Errorf("table %q: %w", table, ErrInvalid)
	}
	q := quotePostgres(table)
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
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ` + pgx.Identifier{"idx_" + table + "_barcode"}.Sanitize() + ` ON ` + q + ` (barcode)`,
	}
	for _, stmt := range stmts {
		if _, err := b.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure table %s: %w", table, err)
		}
	}
	return nil
}

const postgresAssetColumns = `id, asset_tag, name, category, manufacturer, model, serial_number,
	barcode, location, status, assigned_to, notes, created_at, updated_at`

// ListAssets implements Backend.
func (b *PostgresBackend) ListAssets(ctx context.Context, table string, f Filter) ([]Asset, error) {
	if !validTable(table) {
		return nil, fmt.Errorf("table %q: %w", table, ErrInvalid)
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Search != "" {
		p := arg(likePattern(f.Search))
		var ors []string
		for _, col := range []string{"name", "asset_tag", "serial_number", "barcode", "model", "manufacturer", "location", "assigned_to"} {
			ors = append(ors, col+" ILIKE "+p)
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if f.Barcode != "" {
		where = append(where, "barcode = "+arg(f.Barcode))
	}

	query := `SELECT ` + postgresAssetColumns + ` FROM ` + quotePostgres(table)
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name, asset_tag LIMIT ` + arg(f.limit())

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		a, err := scanPostgresAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("list assets: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// GetAsset implements Backend.
func (b *PostgresBackend) GetAsset(ctx context.Context, table, id string) (Asset, error) {
	if !validTable(table) {
		return Asset{}, fmt.Errorf("table %q: %w", table, ErrInvalid)
	}
	row := b.pool.QueryRow(ctx,
		`SELECT `+postgresAssetColumns+` FROM `+quotePostgres(table)+` WHERE id = $1`, id)
	a, err := scanPostgresAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Asset{}, fmt.Errorf("asset %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Asset{}, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

// CreateAsset implements Backend.
func (b *PostgresBackend) CreateAsset(ctx context.Context, table string, a Asset) error {
	if !validTable(table) {
		return fmt.Errorf("table %q: %w", table, ErrInvalid)
	}
	_, err := b.pool.Exec(ctx,
		`INSERT INTO `+quotePostgres(table)+` (`+postgresAssetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		a.ID, a.AssetTag, a.Name, a.Category, a.Manufacturer, a.Model, a.SerialNumber,
		a.Barcode, a.Location, string(a.Status), a.AssignedTo, a.Notes, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

// UpdateAsset implements Backend.
func (b *PostgresBackend) UpdateAsset(ctx context.Context, table string, a Asset) error {
	if !validTable(table) {
		return fmt.Errorf("table %q: %w", table, ErrInvalid)
	}
	tag, err := b.pool.Exec(ctx,
		`UPDATE `+quotePostgres(table)+` SET asset_tag = $1, name = $2, category = $3,
			manufacturer = $4, model = $5, serial_number = $6, barcode = $7, location = $8,
			status = $9, assigned_to = $10, notes = $11, updated_at = $12
		WHERE id = $13`,
		a.AssetTag, a.Name, a.Category, a.Manufacturer, a.Model, a.SerialNumber, a.Barcode,
		a.Location, string(a.Status), a.AssignedTo, a.Notes, a.UpdatedAt, a.ID)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %q: %w", a.ID, ErrNotFound)
	}
	return nil
}

// DeleteAsset implements Backend.
func (b *PostgresBackend) DeleteAsset(ctx context.Context, table, id string) error {
	if !validTable(table) {
		return fmt.Errorf("table %q: %w", table, ErrInvalid)
	}
	tag, err := b.pool.Exec(ctx, `DELETE FROM `+quotePostgres(table)+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %q: %w", id, ErrNotFound)
	}
	return nil
}

// Close implements Backend.
func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}

func scanPostgresAsset(row pgx.Row) (Asset, error) {
	var (
		a      Asset
		status string
	)
	err := row.Scan(&a.ID, &a.AssetTag, &a.Name, &a.Category, &a.Manufacturer, &a.Model,
		&a.SerialNumber, &a.Barcode, &a.Location, &status, &a.AssignedTo, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Asset{}, err
	}
	a.Status = Status(status)
	return a, nil
}
