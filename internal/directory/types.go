// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrPermissionDenied is returned when the signed-in user lacks the role
	// or client assignment an operation needs.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound is returned for a missing client or asset.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a client name or id is already taken.
	ErrConflict = errors.New("already exists")
	// ErrInvalid is returned for malformed input.
	ErrInvalid = errors.New("invalid input")
)

// =============================================================================
// CLIENT
// =============================================================================

// Client is a customer organization. Each client's assets live in their own
// table, named by TableName.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Table     string    `json:"table"`
	CreatedAt time.Time `json:"created_at"`
}

const tablePrefix = "assets_"

// maxSlugLength keeps table names well under identifier limits (63 in
// Postgres).
const maxSlugLength = 48

var (
	slugStrip    = regexp.MustCompile(`[^a-z0-9_]+`)
	tablePattern = regexp.MustCompile(`^assets_[a-z0-9_]{1,48}$`)
)

// Slug converts a client name or id into a lowercase identifier of
// [a-z0-9_] characters. It returns "" when nothing usable remains.
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugStrip.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "_")
	}
	return s
}

// TableName returns the asset table for clientID.
func TableName(clientID string) string {
	return tablePrefix + Slug(clientID)
}

// validTable reports whether table is safe to interpolate into SQL.
func validTable(table string) bool {
	return tablePattern.MatchString(table)
}

// =============================================================================
// ASSET
// =============================================================================

// Status is an asset's lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusInRepair Status = "in_repair"
	StatusRetired  Status = "retired"
	StatusMissing  Status = "missing"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInRepair, StatusRetired, StatusMissing:
		return true
	}
	return false
}

// Statuses lists the known statuses in display order.
func Statuses() []Status {
	return []Status{StatusActive, StatusInRepair, StatusRetired, StatusMissing}
}

// Asset is one inventory record.
type Asset struct {
	ID           string    `json:"id"`
	AssetTag     string    `json:"asset_tag"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Manufacturer string    `json:"manufacturer"`
	Model        string    `json:"model"`
	SerialNumber string    `json:"serial_number"`
	Barcode      string    `json:"barcode"`
	Location     string    `json:"location"`
	Status       Status    `json:"status"`
	AssignedTo   string    `json:"assigned_to"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Filter narrows ListAssets. Zero fields do not filter.
type Filter struct {
	// Search matches a substring of name, tag, serial, barcode, model,
	// manufacturer, location or assignee, ignoring case.
	Search string
	// Status matches exactly.
	Status Status
	// Barcode matches exactly.
	Barcode string
	// Limit caps the result count. Zero means DefaultLimit.
	Limit int
}

// DefaultLimit is the page size used when Filter.Limit is zero.
const DefaultLimit = 500

func (f Filter) limit() int {
	if f.Limit <= 0 || f.Limit > DefaultLimit {
		return DefaultLimit
	}
	return f.Limit
}

// likePattern escapes s for a LIKE/ILIKE pattern using '\' as the escape.
func likePattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}
