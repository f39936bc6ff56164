// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jeranaias/assetdesk/internal/logging"
	"github.com/jeranaias/assetdesk/internal/security"
	"github.com/jeranaias/assetdesk/internal/store"
)

// Store keys owned by the manager.
const (
	KeyUsers          = "users"
	KeySessions       = "sessions"
	KeyCurrentSession = "current_session"
)

// Default bootstrap credentials. The seeded account must change its password
// on first login.
const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin123"
)

// ErrStorage is store.ErrStorage, re-exported for callers that only import
// this package.
var ErrStorage = store.ErrStorage

// activityFlushInterval bounds how often RecordActivity writes to the store.
const activityFlushInterval = time.Minute

// =============================================================================
// POLICY
// =============================================================================

// Policy holds the session, lockout and throttling limits.
type Policy struct {
	SessionDuration   time.Duration
	InactivityTimeout time.Duration
	MaxFailedLogins   int
	LockoutDuration   time.Duration
	RateLimitAttempts int
	RateLimitWindow   time.Duration
}

// DefaultPolicy returns the standard limits: 8h sessions, 2h inactivity,
// lock for 30 minutes after 5 failures, 5 attempts per 15 minutes.
func DefaultPolicy() Policy {
	return Policy{
		SessionDuration:   8 * time.Hour,
		InactivityTimeout: 2 * time.Hour,
		MaxFailedLogins:   5,
		LockoutDuration:   30 * time.Minute,
		RateLimitAttempts: security.DefaultLoginAttempts,
		RateLimitWindow:   security.DefaultLoginWindow,
	}
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.SessionDuration <= 0 {
		p.SessionDuration = d.SessionDuration
	}
	if p.InactivityTimeout <= 0 {
		p.InactivityTimeout = d.InactivityTimeout
	}
	if p.MaxFailedLogins <= 0 {
		p.MaxFailedLogins = d.MaxFailedLogins
	}
	if p.LockoutDuration <= 0 {
		p.LockoutDuration = d.LockoutDuration
	}
	if p.RateLimitAttempts <= 0 {
		p.RateLimitAttempts = d.RateLimitAttempts
	}
	if p.RateLimitWindow <= 0 {
		p.RateLimitWindow = d.RateLimitWindow
	}
	return p
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns user records and the current session. It is the only writer
// of the users and sessions collections. Every public method holds mu for
// its whole read-modify-write cycle.
type Manager struct {
	mu      sync.Mutex
	store   store.Store
	limiter *security.RateLimiter
	hasher  security.PasswordHasher
	now     func() time.Time
	logger  *slog.Logger
	auditor Auditor
	policy  Policy

	current     *Session
	currentUser *User
	flushedAt   time.Time

	dummyOnce sync.Once
	dummyHash string
}

// Option configures a Manager.
type Option func(*Manager)

// WithRateLimiter sets the login rate limiter.
func WithRateLimiter(rl *security.RateLimiter) Option {
	return func(m *Manager) {
		if rl != nil {
			m.limiter = rl
		}
	}
}

// WithHasher sets the password hasher.
func WithHasher(h security.PasswordHasher) Option {
	return func(m *Manager) {
		m.hasher = h
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithAuditor sets the audit sink.
func WithAuditor(a Auditor) Option {
	return func(m *Manager) {
		if a != nil {
			m.auditor = a
		}
	}
}

// WithPolicy sets session and lockout limits. Zero fields keep defaults.
func WithPolicy(p Policy) Option {
	return func(m *Manager) {
		m.policy = p.withDefaults()
	}
}

// New creates a Manager over st. Call Bootstrap before first use.
func New(st store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:   st,
		hasher:  security.DefaultHasher,
		now:     time.Now,
		logger:  logging.Discard(),
		auditor: NopAuditor{},
		policy:  DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.limiter == nil {
		m.limiter = security.NewRateLimiter(security.WithClock(m.now))
	}
	return m
}

// Policy returns the limits in effect.
func (m *Manager) Policy() Policy {
	return m.policy
}

// FirstRun reports whether the seeded admin account has never signed in.
func (m *Manager) FirstRun(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users, err := m.loadUsers(ctx)
	if err != nil {
		return false, err
	}
	u := findActiveUser(users, DefaultAdminUsername)
	return u != nil && u.LastLogin == nil && u.MustChangePassword, nil
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

// Bootstrap prepares the store at process start: it purges expired
// sessions, seeds the default admin into an empty user collection, and
// restores the persisted current session if it is still valid.
func (m *Manager) Bootstrap(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	sessions, err := m.loadSessions(ctx)
	if err != nil {
		return err
	}
	live := sessions[:0]
	for _, s := range sessions {
		if s.Valid(now, m.policy.InactivityTimeout) {
			live = append(live, s)
		}
	}
	if purged := len(sessions) - len(live); purged > 0 {
		if err := m.saveSessions(ctx, live); err != nil {
			return err
		}
		m.logger.Info("purged expired sessions", "count", purged)
	}

	users, err := m.loadUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		hash, err := m.hasher.Hash(DefaultAdminPassword)
		if err != nil {
			return fmt.Errorf("seed default admin: %w", err)
		}
		users = []User{{
			ID:                 1,
			Username:           DefaultAdminUsername,
			PasswordHash:       hash,
			Role:               RoleAdmin,
			CreatedAt:          now,
			Active:             true,
			MustChangePassword: true,
		}}
		if err := m.saveUsers(ctx, users); err != nil {
			return err
		}
		m.logger.Warn("seeded default admin account; change its password at first login")
		m.auditor.Record(ctx, EventUserCreated, "system", true, map[string]string{"username": DefaultAdminUsername, "role": string(RoleAdmin)})
	}

	return m.restoreCurrent(ctx, live, users)
}

func (m *Manager) restoreCurrent(ctx context.Context, sessions []Session, users []User) error {
	var token string
	found, err := m.store.Get(ctx, KeyCurrentSession, &token)
	if err != nil {
		return fmt.Errorf("load current session: %w", err)
	}
	if !found {
		return nil
	}

	for i := range sessions {
		if sessions[i].Token != token {
			continue
		}
		if u := findUserByID(users, sessions[i].UserID); u != nil && u.Active {
			s := sessions[i]
			user := *u
			m.current = &s
			m.currentUser = &user
			m.flushedAt = s.LastActivity
			m.logger.Debug("restored session", "user", security.MaskIdentifier(s.Username))
			return nil
		}
	}

	if err := m.store.Delete(ctx, KeyCurrentSession); err != nil {
		return fmt.Errorf("clear current session: %w", err)
	}
	return nil
}

// =============================================================================
// PERSISTENCE HELPERS
// =============================================================================

func (m *Manager) loadUsers(ctx context.Context) ([]User, error) {
	var users []User
	if _, err := m.store.Get(ctx, KeyUsers, &users); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	return users, nil
}

func (m *Manager) saveUsers(ctx context.Context, users []User) error {
	if err := m.store.Set(ctx, KeyUsers, users); err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	return nil
}

func (m *Manager) loadSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if _, err := m.store.Get(ctx, KeySessions, &sessions); err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	return sessions, nil
}

func (m *Manager) saveSessions(ctx context.Context, sessions []Session) error {
	if err := m.store.Set(ctx, KeySessions, sessions); err != nil {
		return fmt.Errorf("save sessions: %w", err)
	}
	return nil
}

// removeSessions deletes every stored session for which drop returns true.
func (m *Manager) removeSessions(ctx context.Context, drop func(Session) bool) error {
	sessions, err := m.loadSessions(ctx)
	if err != nil {
		return err
	}
	kept := sessions[:0]
	for _, s := range sessions {
		if !drop(s) {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(sessions) {
		return nil
	}
	return m.saveSessions(ctx, kept)
}

func findUserByID(users []User, id int) *User {
	for i := range users {
		if users[i].ID == id {
			return &users[i]
		}
	}
	return nil
}

func findActiveUser(users []User, username string) *User {
	for i := range users {
		if users[i].Active && users[i].Username == username {
			return &users[i]
		}
	}
	return nil
}

// =============================================================================
// CURRENT SESSION HELPERS
// =============================================================================

// session returns the current session if it is still valid at now.
func (m *Manager) session(now time.Time) (*Session, *User) {
	if m.current == nil || m.currentUser == nil {
		return nil, nil
	}
	if !m.current.Valid(now, m.policy.InactivityTimeout) {
		return nil, nil
	}
	return m.current, m.currentUser
}

func (m *Manager) setCurrent(s *Session, u *User) {
	if s == nil {
		m.current, m.currentUser = nil, nil
		return
	}
	user := *u
	m.current = s
	m.currentUser = &user
	m.flushedAt = s.LastActivity
}

// refreshCurrentUser replaces the cached record when u is the current user.
func (m *Manager) refreshCurrentUser(u *User) {
	if m.currentUser != nil && m.currentUser.ID == u.ID {
		user := *u
		m.currentUser = &user
	}
}

// actor names the current user for audit records.
func (m *Manager) actor() string {
	if m.current == nil {
		return "anonymous"
	}
	return m.current.Username
}
