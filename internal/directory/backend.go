// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import (
	"context"

	"golang.org/x/time/rate"
)

// Backend stores clients and their per-client asset tables. It performs no
// authorization; Directory does that.
type Backend interface {
	ListClients(ctx context.Context) ([]Client, error)
	GetClient(ctx context.Context, id string) (Client, error)
	CreateClient(ctx context.Context, c Client) error

	// EnsureTable creates the asset table if it does not exist yet.
	EnsureTable(ctx context.Context, table string) error

	ListAssets(ctx context.Context, table string, f Filter) ([]Asset, error)
	GetAsset(ctx context.Context, table, id string) (Asset, error)
	CreateAsset(ctx context.Context, table string, a Asset) error
	UpdateAsset(ctx context.Context, table string, a Asset) error
	DeleteAsset(ctx context.Context, table, id string) error

	Close() error
}

// =============================================================================
// THROTTLED BACKEND
// =============================================================================

// throttledBackend delays each call until the token bucket admits it.
type throttledBackend struct {
	next    Backend
	limiter *rate.Limiter
}

// Throttled wraps b so that calls are admitted at most r per second with the
// given burst. Waiting honors ctx cancellation.
func Throttled(b Backend, r rate.Limit, burst int) Backend {
	if burst < 1 {
		burst = 1
	}
	return &throttledBackend{next: b, limiter: rate.NewLimiter(r, burst)}
}

func (t *throttledBackend) ListClients(ctx context.Context) ([]Client, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.ListClients(ctx)
}

func (t *throttledBackend) GetClient(ctx context.Context, id string) (Client, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return Client{}, err
	}
	return t.next.GetClient(ctx, id)
}

func (t *throttledBackend) CreateClient(ctx context.Context, c Client) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.next.CreateClient(ctx, c)
}

func (t *throttledBackend) EnsureTable(ctx context.Context, table string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.next.EnsureTable(ctx, table)
}

func (t *throttledBackend) ListAssets(ctx context.Context, table string, f Filter) ([]Asset, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.ListAssets(ctx, table, f)
}

func (t *throttledBackend) GetAsset(ctx context.Context, table, id string) (Asset, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return Asset{}, err
	}
	return t.next.GetAsset(ctx, table, id)
}

func (t *throttledBackend) CreateAsset(ctx context.Context, table string, a Asset) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.next.CreateAsset(ctx, table, a)
}

func (t *throttledBackend) UpdateAsset(ctx context.Context, table string, a Asset) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.next.UpdateAsset(ctx, table, a)
}

func (t *throttledBackend) DeleteAsset(ctx context.Context, table, id string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.next.DeleteAsset(ctx, table, id)
}

func (t *throttledBackend) Close() error {
	return t.next.Close()
}
