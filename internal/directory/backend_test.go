// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// countingBackend counts ListClients calls. Other methods are not used.
type countingBackend struct {
	Backend
	calls int
}

func (c *countingBackend) ListClients(context.Context) ([]Client, error) {
	c.calls++
	return nil, nil
}

func (c *countingBackend) Close() error { return nil }

// =============================================================================
// THROTTLING
// =============================================================================

func TestThrottledHonorsBurst(t *testing.T) {
	inner := &countingBackend{}
	b := Throttled(inner, 1000, 3)

	for i := 0; i < 3; i++ {
		_, err := b.ListClients(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 3, inner.calls)
}

func TestThrottledRespectsContext(t *testing.T) {
	inner := &countingBackend{}
	b := Throttled(inner, 0.01, 1)

	_, err := b.ListClients(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = b.ListClients(ctx)
	require.Error(t, err)
	require.Equal(t, 1, inner.calls, "throttled call must not reach the backend")
}

func TestThrottledZeroBurst(t *testing.T) {
	inner := &countingBackend{}
	b := Throttled(inner, 1000, 0)
	_, err := b.ListClients(context.Background())
	require.NoError(t, err)
	require.NoError(t, b.Close())
}

// =============================================================================
// OPEN
// =============================================================================

func TestOpenSQLiteSettings(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, Settings{
		Driver:            DriverSQLite,
		SQLitePath:        filepath.Join(t.TempDir(), "inventory.db"),
		RequestsPerSecond: 100,
		Burst:             10,
	})
	require.NoError(t, err)
	defer b.Close()

	_, ok := b.(*throttledBackend)
	require.True(t, ok)

	clients, err := b.ListClients(ctx)
	require.NoError(t, err)
	require.Empty(t, clients)
}

func TestOpenRejectsBadSettings(t *testing.T) {
	ctx := context.Background()
	_, err := Open(ctx, Settings{Driver: "mongodb"})
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Open(ctx, Settings{Driver: DriverSQLite})
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Open(ctx, Settings{Driver: DriverPostgres})
	require.ErrorIs(t, err, ErrInvalid)
}

// =============================================================================
// POSTGRES
// =============================================================================

func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv("ASSETDESK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ASSETDESK_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	b, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer b.Close()

	name := "test " + uuid.NewString()[:8]
	c := seedClient(t, b, name)
	t.Cleanup(func() {
		b.pool.Exec(context.Background(), `DROP TABLE IF EXISTS `+quotePostgres(c.Table))
		b.pool.Exec(context.Background(), `DELETE FROM clients WHERE id = $1`, c.ID)
	})

	require.ErrorIs(t, b.CreateClient(ctx, c), ErrConflict)

	a := asset(uuid.NewString(), "Laptop", "PG-1")
	a.Manufacturer = "Lenovo"
	require.NoError(t, b.CreateAsset(ctx, c.Table, a))

	found, err := b.ListAssets(ctx, c.Table, Filter{Search: "LENOVO"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.True(t, a.CreatedAt.Equal(found[0].CreatedAt))

	a.Status = StatusRetired
	require.NoError(t, b.UpdateAsset(ctx, c.Table, a))
	got, err := b.GetAsset(ctx, c.Table, a.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRetired, got.Status)

	require.NoError(t, b.DeleteAsset(ctx, c.Table, a.ID))
	_, err = b.GetAsset(ctx, c.Table, a.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
