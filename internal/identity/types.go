// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"fmt"
	"time"

	"github.com/jeranaias/assetdesk/internal/util"
)

// =============================================================================
// ROLES
// =============================================================================

// Role is a permission level. Roles form a total order.
type Role string

const (
	// RoleAdmin manages users and sees every client.
	RoleAdmin Role = "admin"
	// RoleTechnician edits assets for assigned clients.
	RoleTechnician Role = "technician"
	// RoleReadonly views assets for assigned clients.
	RoleReadonly Role = "readonly"
)

// Rank returns the role's position in the hierarchy, or 0 for an unknown role.
func (r Role) Rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleTechnician:
		return 2
	case RoleReadonly:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// Satisfies reports whether r is at least as privileged as required.
func (r Role) Satisfies(required Role) bool {
	return required.Valid() && r.Rank() >= required.Rank()
}

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q (want admin, technician or readonly)", s)
	}
	return r, nil
}

// =============================================================================
// USER
// =============================================================================

// User is the stored user record. PasswordHash and the TOTP fields never
// leave the package; callers see PublicUser.
type User struct {
	ID                  int        `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email,omitempty"`
	PasswordHash        string     `json:"password_hash"`
	Role                Role       `json:"role"`
	AssignedClients     []string   `json:"assigned_clients,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
	Active              bool       `json:"active"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`
	MustChangePassword  bool       `json:"must_change_password"`
	TOTPSecret          string     `json:"totp_secret,omitempty"`
	TOTPPending         bool       `json:"totp_pending,omitempty"`
	TOTPEnabled         bool       `json:"totp_enabled"`
}

// PublicUser is the view of a user that is safe to display.
type PublicUser struct {
	ID                 int        `json:"id"`
	Username           string     `json:"username"`
	Email              string     `json:"email,omitempty"`
	Role               Role       `json:"role"`
	AssignedClients    []string   `json:"assigned_clients"`
	CreatedAt          time.Time  `json:"created_at"`
	LastLogin          *time.Time `json:"last_login,omitempty"`
	Active             bool       `json:"active"`
	Locked             bool       `json:"locked"`
	MustChangePassword bool       `json:"must_change_password"`
	MFAEnabled         bool       `json:"mfa_enabled"`
}

// Public returns the displayable view of u as of now.
func (u *User) Public(now time.Time) PublicUser {
	clients := make([]string, len(u.AssignedClients))
	copy(clients, u.AssignedClients)
	return PublicUser{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		Role:               u.Role,
		AssignedClients:    clients,
		CreatedAt:          u.CreatedAt,
		LastLogin:          u.LastLogin,
		Active:             u.Active,
		Locked:             u.isLocked(now),
		MustChangePassword: u.MustChangePassword,
		MFAEnabled:         u.TOTPEnabled,
	}
}

func (u *User) isLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// canAccess reports whether u may address clientID.
func (u *User) canAccess(clientID string) bool {
	if u.Role == RoleAdmin {
		return true
	}
	for _, c := range u.AssignedClients {
		if c == clientID {
			return true
		}
	}
	return false
}

// =============================================================================
// SESSION
// =============================================================================

// Session is proof of a successful login. Username and Role are captured at
// login and not re-read from the user record.
type Session struct {
	UserID       int       `json:"user_id"`
	Username     string    `json:"username"`
	Role         Role      `json:"role"`
	Token        string    `json:"token"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Valid reports whether s is inside both its absolute lifetime and its
// inactivity window at now.
func (s Session) Valid(now time.Time, inactivity time.Duration) bool {
	return now.Before(s.ExpiresAt) && now.Sub(s.LastActivity) < inactivity
}

// IdleDeadline returns when s expires if there is no further activity.
func (s Session) IdleDeadline(inactivity time.Duration) time.Time {
	idle := s.LastActivity.Add(inactivity)
	if idle.Before(s.ExpiresAt) {
		return idle
	}
	return s.ExpiresAt
}

// =============================================================================
// REQUESTS AND RESULTS
// =============================================================================

// Credentials is a login attempt. OTP is only consulted for users with a
// second factor enabled.
type Credentials struct {
	Username string
	Password string
	OTP      string
}

// LoginData is returned by a successful login.
type LoginData struct {
	User                   PublicUser `json:"user"`
	Token                  string     `json:"token"`
	ExpiresAt              time.Time  `json:"expires_at"`
	PasswordChangeRequired bool       `json:"password_change_required"`
}

// NewUser describes a user to create.
type NewUser struct {
	Username           string
	Email              string
	Password           string
	Role               Role
	AssignedClients    []string
	MustChangePassword bool
}

// UserUpdate carries the fields to change on an existing user. Nil fields
// are left as they are.
type UserUpdate struct {
	ID              int
	Email           *string
	Role            *Role
	AssignedClients *[]string
	Active          *bool
}

// Kind classifies an expected failure.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindRateLimited
	KindInvalidCredentials
	KindAccountLocked
	KindPermissionDenied
	KindNotFound
	KindMFARequired
)

// String returns the name of the failure kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindAccountLocked:
		return "account_locked"
	case KindPermissionDenied:
		return "permission_denied"
	case KindNotFound:
		return "not_found"
	case KindMFARequired:
		return "mfa_required"
	default:
		return "unknown"
	}
}

// Failure is an expected, user-facing failure. It is returned as data;
// only storage faults are returned as Go errors.
type Failure struct {
	Kind       Kind          `json:"kind"`
	Message    string        `json:"message"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Details    []string      `json:"details,omitempty"`
}

// Error lets a Failure be returned where an error is expected, such as from
// a CLI command.
func (f *Failure) Error() string {
	return f.Message
}

// RetryAfterMinutes is RetryAfter rounded up to whole minutes.
func (f *Failure) RetryAfterMinutes() int {
	return util.CeilMinutes(f.RetryAfter)
}

// Result is the outcome of an operation that can fail in expected ways.
type Result[T any] struct {
	Success bool     `json:"success"`
	Data    T        `json:"data,omitempty"`
	Failure *Failure `json:"error,omitempty"`
}

// Err returns the failure as an error, or nil on success.
func (r Result[T]) Err() error {
	if r.Success || r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Is reports whether r failed with kind.
func (r Result[T]) Is(kind Kind) bool {
	return !r.Success && r.Failure != nil && r.Failure.Kind == kind
}

func ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func fail[T any](kind Kind, format string, args ...any) Result[T] {
	return Result[T]{Failure: &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

func failWith[T any](f *Failure) Result[T] {
	return Result[T]{Failure: f}
}
