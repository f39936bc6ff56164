// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/assetdesk/internal/identity"
)

// fakeAuth grants role and access to the listed clients. An empty role
// denies everything.
type fakeAuth struct {
	role    identity.Role
	clients map[string]bool
}

func (f *fakeAuth) HasPermission(required identity.Role) bool {
	return f.role != "" && f.role.Satisfies(required)
}

func (f *fakeAuth) CanAccessClient(id string) bool {
	return f.role == identity.RoleAdmin || f.clients[id]
}

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newDirectory(t *testing.T) (*Directory, *fakeAuth) {
	t.Helper()
	auth := &fakeAuth{role: identity.RoleAdmin}
	d := New(newSQLiteBackend(t), auth, WithClock(func() time.Time { return fixedNow }))
	return d, auth
}

// =============================================================================
// CLIENTS
// =============================================================================

func TestCreateClient(t *testing.T) {
	ctx := context.Background()
	d, _ := newDirectory(t)

	c, err := d.CreateClient(ctx, "  Acme <Corp> ")
	require.NoError(t, err)
	require.Equal(t, "Acme Corp", c.Name)
	require.Equal(t, "acme_corp", c.ID)
	require.Equal(t, "assets_acme_corp", c.Table)
	require.Equal(t, fixedNow, c.CreatedAt)

	_, err = d.CreateClient(ctx, "ACME corp")
	require.ErrorIs(t, err, ErrConflict)

	_, err = d.CreateClient(ctx, "***")
	require.ErrorIs(t, err, ErrInvalid)
}

func TestCreateClientRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	d, auth := newDirectory(t)
	auth.role = identity.RoleTechnician

	_, err := d.CreateClient(ctx, "Acme")
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestListClientsFiltersByAccess(t *testing.T) {
	ctx := context.Background()
	d, auth := newDirectory(t)
	for _, name := range []string{"Acme", "Globex", "Initech"} {
		_, err := d.CreateClient(ctx, name)
		require.NoError(t, err)
	}

	all, err := d.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	auth.role = identity.RoleReadonly
	auth.clients = map[string]bool{"globex": true}
	visible, err := d.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, "globex", visible[0].ID)

	auth.role = ""
	_, err = d.ListClients(ctx)
	require.ErrorIs(t, err, ErrPermissionDenied)
}

// =============================================================================
// ASSETS
// =============================================================================

func TestAssetLifecycle(t *testing.T) {
	ctx := context.Background()
	d, _ := newDirectory(t)
	c, err := d.CreateClient(ctx, "Acme")
	require.NoError(t, err)

	a, err := d.CreateAsset(ctx, c.ID, Asset{Name: " Laptop ", Barcode: "BC-1", Notes: "<b>fragile</b>"})
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)
	require.Equal(t, "Laptop", a.Name)
	require.Equal(t, "bfragile/b", a.Notes)
	require.Equal(t, StatusActive, a.Status)
	require.Equal(t, fixedNow, a.CreatedAt)

	got, err := d.GetAsset(ctx, c.ID, a.ID)
	require.NoError(t, err)
	require.Equal(t, a, got)

	found, err := d.FindByBarcode(ctx, c.ID, "BC-1")
	require.NoError(t, err)
	require.Equal(t, a.ID, found.ID)

	_, err = d.FindByBarcode(ctx, c.ID, "BC-404")
	require.ErrorIs(t, err, ErrNotFound)

	later := fixedNow.Add(time.Hour)
	d.now = func() time.Time { return later }
	a.Status = StatusMissing
	a.CreatedAt = time.Time{}
	updated, err := d.UpdateAsset(ctx, c.ID, a)
	require.NoError(t, err)
	require.Equal(t, fixedNow, updated.CreatedAt)
	require.Equal(t, later, updated.UpdatedAt)

	missing, err := d.ListAssets(ctx, c.ID, Filter{Status: StatusMissing})
	require.NoError(t, err)
	require.Len(t, missing, 1)

	require.NoError(t, d.DeleteAsset(ctx, c.ID, a.ID))
	_, err = d.GetAsset(ctx, c.ID, a.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAssetValidation(t *testing.T) {
	ctx := context.Background()
	d, _ := newDirectory(t)
	c, err := d.CreateClient(ctx, "Acme")
	require.NoError(t, err)

	_, err = d.CreateAsset(ctx, c.ID, Asset{Name: "   "})
	require.ErrorIs(t, err, ErrInvalid)

	_, err = d.CreateAsset(ctx, c.ID, Asset{Name: "Laptop", Status: "stolen"})
	require.ErrorIs(t, err, ErrInvalid)

	_, err = d.ListAssets(ctx, c.ID, Filter{Status: "stolen"})
	require.ErrorIs(t, err, ErrInvalid)

	_, err = d.UpdateAsset(ctx, c.ID, Asset{ID: "missing", Name: "X"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAssetPermissions(t *testing.T) {
	ctx := context.Background()
	d, auth := newDirectory(t)
	acme, err := d.CreateClient(ctx, "Acme")
	require.NoError(t, err)
	globex, err := d.CreateClient(ctx, "Globex")
	require.NoError(t, err)
	a, err := d.CreateAsset(ctx, acme.ID, Asset{Name: "Laptop"})
	require.NoError(t, err)

	t.Run("readonly reads assigned client only", func(t *testing.T) {
		auth.role = identity.RoleReadonly
		auth.clients = map[string]bool{acme.ID: true}

		_, err := d.ListAssets(ctx, acme.ID, Filter{})
		require.NoError(t, err)
		_, err = d.GetAsset(ctx, acme.ID, a.ID)
		require.NoError(t, err)

		_, err = d.ListAssets(ctx, globex.ID, Filter{})
		require.ErrorIs(t, err, ErrPermissionDenied)
		_, err = d.CreateAsset(ctx, acme.ID, Asset{Name: "Mouse"})
		require.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("technician writes but cannot delete", func(t *testing.T) {
		auth.role = identity.RoleTechnician
		auth.clients = map[string]bool{acme.ID: true}

		_, err := d.CreateAsset(ctx, acme.ID, Asset{Name: "Mouse"})
		require.NoError(t, err)
		_, err = d.UpdateAsset(ctx, acme.ID, a)
		require.NoError(t, err)

		require.ErrorIs(t, d.DeleteAsset(ctx, acme.ID, a.ID), ErrPermissionDenied)
		_, err = d.CreateAsset(ctx, globex.ID, Asset{Name: "Mouse"})
		require.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("unassigned client is denied before lookup", func(t *testing.T) {
		auth.role = identity.RoleTechnician
		auth.clients = nil

		_, err := d.GetAsset(ctx, "does_not_exist", "x")
		require.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("no session", func(t *testing.T) {
		auth.role = ""
		_, err := d.GetAsset(ctx, acme.ID, a.ID)
		require.ErrorIs(t, err, ErrPermissionDenied)
	})
}
