// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/assetdesk/internal/identity"
	"github.com/jeranaias/assetdesk/internal/logging"
	"github.com/jeranaias/assetdesk/internal/security"
)

// Authorizer answers permission questions for the signed-in user.
// *identity.Manager satisfies it.
type Authorizer interface {
	HasPermission(required identity.Role) bool
	CanAccessClient(clientID string) bool
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Directory is the permission-checked view of a Backend.
type Directory struct {
	backend Backend
	auth    Authorizer
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Directory.
type Option func(*Directory)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Directory) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New returns a Directory over b that consults auth before every call.
func New(b Backend, auth Authorizer, opts ...Option) *Directory {
	d := &Directory{
		backend: b,
		auth:    auth,
		now:     time.Now,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Close closes the backend.
func (d *Directory) Close() error {
	return d.backend.Close()
}

func (d *Directory) require(role identity.Role, clientID string) error {
	if !d.auth.HasPermission(role) {
		return fmt.Errorf("%s role required: %w", role, ErrPermissionDenied)
	}
	if clientID != "" && !d.auth.CanAccessClient(clientID) {
		return fmt.Errorf("client %q: %w", clientID, ErrPermissionDenied)
	}
	return nil
}

// client resolves clientID after the access check so that the existence of a
// client is not revealed to users without access.
func (d *Directory) client(ctx context.Context, role identity.Role, clientID string) (Client, error) {
	if err := d.require(role, clientID); err != nil {
		return Client{}, err
	}
	return d.backend.GetClient(ctx, clientID)
}

// =============================================================================
// CLIENTS
// =============================================================================

// ListClients returns the clients the current user may access.
func (d *Directory) ListClients(ctx context.Context) ([]Client, error) {
	if err := d.require(identity.RoleReadonly, ""); err != nil {
		return nil, err
	}
	all, err := d.backend.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]Client, 0, len(all))
	for _, c := range all {
		if d.auth.CanAccessClient(c.ID) {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

// CreateClient registers a client named name and creates its asset table.
// The id is the slug of the name. Admin only.
func (d *Directory) CreateClient(ctx context.Context, name string) (Client, error) {
	if err := d.require(identity.RoleAdmin, ""); err != nil {
		return Client{}, err
	}
	name = security.SanitizeInput(name)
	id := Slug(name)
	if id == "" {
		return Client{}, fmt.Errorf("client name %q: %w", name, ErrInvalid)
	}

	c := Client{
		ID:        id,
		Name:      name,
		Table:     TableName(id),
		CreatedAt: d.now().UTC(),
	}
	if err := d.backend.EnsureTable(ctx, c.Table); err != nil {
		return Client{}, err
	}
	if err := d.backend.CreateClient(ctx, c); err != nil {
		return Client{}, err
	}
	d.logger.Info("client created", "client", c.ID)
	return c, nil
}

// =============================================================================
// ASSETS
// =============================================================================

// ListAssets returns the client's assets matching f.
func (d *Directory) ListAssets(ctx context.Context, clientID string, f Filter) ([]Asset, error) {
	c, err := d.client(ctx, identity.RoleReadonly, clientID)
	if err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("status %q: %w", f.Status, ErrInvalid)
	}
	f.Search = security.SanitizeInput(f.Search)
	f.Barcode = security.SanitizeInput(f.Barcode)
	return d.backend.ListAssets(ctx, c.Table, f)
}

// GetAsset returns one asset.
func (d *Directory) GetAsset(ctx context.Context, clientID, assetID string) (Asset, error) {
	c, err := d.client(ctx, identity.RoleReadonly, clientID)
	if err != nil {
		return Asset{}, err
	}
	return d.backend.GetAsset(ctx, c.Table, assetID)
}

// FindByBarcode returns the asset whose barcode is exactly code.
func (d *Directory) FindByBarcode(ctx context.Context, clientID, code string) (Asset, error) {
	assets, err := d.ListAssets(ctx, clientID, Filter{Barcode: code, Limit: 1})
	if err != nil {
		return Asset{}, err
	}
	if len(assets) == 0 {
		return Asset{}, fmt.Errorf("barcode %q: %w", code, ErrNotFound)
	}
	return assets[0], nil
}

// CreateAsset stores a new asset and returns it with its id and timestamps
// filled in.
func (d *Directory) CreateAsset(ctx context.Context, clientID string, a Asset) (Asset, error) {
	c, err := d.client(ctx, identity.RoleTechnician, clientID)
	if err != nil {
		return Asset{}, err
	}
	a = sanitizeAsset(a)
	if err := validateAsset(a); err != nil {
		return Asset{}, err
	}

	now := d.now().UTC()
	a.ID = uuid.NewString()
	a.CreatedAt = now
	a.UpdatedAt = now
	if err := d.backend.CreateAsset(ctx, c.Table, a); err != nil {
		return Asset{}, err
	}
	d.logger.Debug("asset created", "client", c.ID, "asset", a.ID)
	return a, nil
}

// UpdateAsset replaces an existing asset's fields. CreatedAt is preserved.
func (d *Directory) UpdateAsset(ctx context.Context, clientID string, a Asset) (Asset, error) {
	c, err := d.client(ctx, identity.RoleTechnician, clientID)
	if err != nil {
		return Asset{}, err
	}
	existing, err := d.backend.GetAsset(ctx, c.Table, a.ID)
	if err != nil {
		return Asset{}, err
	}
	a = sanitizeAsset(a)
	if err := validateAsset(a); err != nil {
		return Asset{}, err
	}

	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = d.now().UTC()
	if err := d.backend.UpdateAsset(ctx, c.Table, a); err != nil {
		return Asset{}, err
	}
	return a, nil
}

// DeleteAsset removes an asset. Admin only.
func (d *Directory) DeleteAsset(ctx context.Context, clientID, assetID string) error {
	c, err := d.client(ctx, identity.RoleAdmin, clientID)
	if err != nil {
		return err
	}
	if err := d.backend.DeleteAsset(ctx, c.Table, assetID); err != nil {
		return err
	}
	d.logger.Info("asset deleted", "client", c.ID, "asset", assetID)
	return nil
}

func sanitizeAsset(a Asset) Asset {
	for _, f := range []*string{
		&a.AssetTag, &a.Name, &a.Category, &a.Manufacturer, &a.Model,
		&a.SerialNumber, &a.Barcode, &a.Location, &a.AssignedTo, &a.Notes,
	} {
		*f = security.SanitizeInput(*f)
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	return a
}

func validateAsset(a Asset) error {
	var errs []error
	if a.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if !a.Status.Valid() {
		errs = append(errs, fmt.Errorf("unknown status %q", a.Status))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
