// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Settings selects and tunes a backend.
type Settings struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string

	// RequestsPerSecond throttles backend calls when positive.
	RequestsPerSecond float64
	Burst             int
}

// Open connects the backend named by s.Driver, wrapped in Throttled when a
// request rate is set.
func Open(ctx context.Context, s Settings) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch s.Driver {
	case DriverSQLite, "":
		if s.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite backend: path is required: %w", ErrInvalid)
		}
		b, err = OpenSQLite(ctx, s.SQLitePath)
	case DriverPostgres:
		if s.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres backend: dsn is required: %w", ErrInvalid)
		}
		b, err = OpenPostgres(ctx, s.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown backend driver %q: %w", s.Driver, ErrInvalid)
	}
	if err != nil {
		return nil, err
	}
	if s.RequestsPerSecond > 0 {
		b = Throttled(b, rate.Limit(s.RequestsPerSecond), s.Burst)
	}
	return b, nil
}
