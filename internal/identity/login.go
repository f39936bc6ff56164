// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/assetdesk/internal/security"
	"github.com/jeranaias/assetdesk/internal/util"
)

// Login messages. Unknown user, wrong password and wrong code all read the
// same so the response does not reveal which check failed.
const (
	msgInvalidCredentials = "Invalid username or password"
	msgMissingCredentials = "Username and password are required"
	msgMFARequired        = "Enter the 6-digit code from your authenticator app"
)

// =============================================================================
// LOGIN
// =============================================================================

// Login authenticates creds and, on success, makes the new session current.
func (m *Manager) Login(ctx context.Context, creds Credentials) (Result[LoginData], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.login(ctx, creds)
}

func (m *Manager) login(ctx context.Context, creds Credentials) (Result[LoginData], error) {
	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		return fail[LoginData](KindValidation, msgMissingCredentials), nil
	}

	masked := security.MaskIdentifier(username)
	limitKey := "login:" + username
	if !m.limiter.IsAllowed(limitKey, m.policy.RateLimitAttempts, m.policy.RateLimitWindow) {
		wait := m.limiter.RemainingTime(limitKey)
		m.logger.Warn("login rate limited", "user", masked, "retry_after", wait)
		m.auditor.Record(ctx, EventRateLimited, masked, false, nil)
		return failWith[LoginData](&Failure{
			Kind:       KindRateLimited,
			Message:    "Too many login attempts. Try again in " + minutes(wait) + ".",
			RetryAfter: wait,
		}), nil
	}

	users, err := m.loadUsers(ctx)
	if err != nil {
		return Result[LoginData]{}, err
	}

	now := m.now()
	user := findActiveUser(users, username)
	if user == nil {
		// Spend the same bcrypt time as a real check.
		m.hasher.Verify(creds.Password, m.timingHash())
		m.logger.Info("login failed", "user", masked, "reason", "unknown user")
		m.auditor.Record(ctx, EventLoginFailure, masked, false, nil)
		return fail[LoginData](KindInvalidCredentials, msgInvalidCredentials), nil
	}

	if user.isLocked(now) {
		wait := user.LockedUntil.Sub(now)
		m.auditor.Record(ctx, EventLoginFailure, user.Username, false, map[string]string{"reason": "locked"})
		return failWith[LoginData](&Failure{
			Kind:       KindAccountLocked,
			Message:    "Account is locked. Try again in " + minutes(wait) + ".",
			RetryAfter: wait,
		}), nil
	}
	if user.LockedUntil != nil {
		// The lock has run out; start counting again.
		user.LockedUntil = nil
		user.FailedLoginAttempts = 0
	}

	if !m.hasher.Verify(creds.Password, user.PasswordHash) {
		return m.recordFailure(ctx, users, user, now, "bad password")
	}

	if user.TOTPEnabled {
		if strings.TrimSpace(creds.OTP) == "" {
			m.auditor.Record(ctx, EventLoginFailure, user.Username, false, map[string]string{"reason": "mfa required"})
			return fail[LoginData](KindMFARequired, msgMFARequired), nil
		}
		if !validateTOTP(creds.OTP, user.TOTPSecret, now) {
			return m.recordFailure(ctx, users, user, now, "bad code")
		}
	}

	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	stamp := now
	user.LastLogin = &stamp
	if err := m.saveUsers(ctx, users); err != nil {
		return Result[LoginData]{}, err
	}
	m.limiter.Reset(limitKey)

	session := &Session{
		UserID:       user.ID,
		Username:     user.Username,
		Role:         user.Role,
		Token:        security.GenerateSessionToken(),
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.policy.SessionDuration),
		LastActivity: now,
	}
	if err := m.storeSession(ctx, session); err != nil {
		return Result[LoginData]{}, err
	}
	m.setCurrent(session, user)

	m.logger.Info("login succeeded", "user", masked, "role", user.Role)
	m.auditor.Record(ctx, EventLoginSuccess, user.Username, true, map[string]string{"role": string(user.Role)})

	return ok(LoginData{
		User:                   user.Public(now),
		Token:                  session.Token,
		ExpiresAt:              session.ExpiresAt,
		PasswordChangeRequired: user.MustChangePassword,
	}), nil
}

// recordFailure counts a failed credential check against user, locking the
// account once the limit is reached.
func (m *Manager) recordFailure(ctx context.Context, users []User, user *User, now time.Time, reason string) (Result[LoginData], error) {
	user.FailedLoginAttempts++
	locked := false
	if user.FailedLoginAttempts >= m.policy.MaxFailedLogins {
		until := now.Add(m.policy.LockoutDuration)
		user.LockedUntil = &until
		locked = true
	}
	if err := m.saveUsers(ctx, users); err != nil {
		return Result[LoginData]{}, err
	}

	masked := security.MaskIdentifier(user.Username)
	m.logger.Info("login failed", "user", masked, "reason", reason, "failures", user.FailedLoginAttempts)
	m.auditor.Record(ctx, EventLoginFailure, user.Username, false, map[string]string{"reason": reason})
	if locked {
		m.logger.Warn("account locked", "user", masked, "until", user.LockedUntil)
		m.auditor.Record(ctx, EventAccountLocked, user.Username, true, map[string]string{
			"failures": strconv.Itoa(user.FailedLoginAttempts),
		})
	}
	return fail[LoginData](KindInvalidCredentials, msgInvalidCredentials), nil
}

// storeSession replaces any previous current session with s.
func (m *Manager) storeSession(ctx context.Context, s *Session) error {
	sessions, err := m.loadSessions(ctx)
	if err != nil {
		return err
	}
	kept := sessions[:0]
	for _, old := range sessions {
		if m.current != nil && old.Token == m.current.Token {
			continue
		}
		kept = append(kept, old)
	}
	kept = append(kept, *s)
	if err := m.saveSessions(ctx, kept); err != nil {
		return err
	}
	if err := m.store.Set(ctx, KeyCurrentSession, s.Token); err != nil {
		return err
	}
	return nil
}

// timingHash returns a hash that unknown usernames are verified against.
func (m *Manager) timingHash() string {
	m.dummyOnce.Do(func() {
		h, err := m.hasher.Hash(security.GenerateSessionToken())
		if err == nil {
			m.dummyHash = h
		}
	})
	return m.dummyHash
}

// =============================================================================
// LOGOUT AND SESSION STATE
// =============================================================================

// Logout ends the current session. With no session it does nothing.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	token := m.current.Token
	username := m.current.Username

	if err := m.removeSessions(ctx, func(s Session) bool { return s.Token == token }); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, KeyCurrentSession); err != nil {
		return err
	}
	m.setCurrent(nil, nil)

	m.logger.Info("logged out", "user", security.MaskIdentifier(username))
	m.auditor.Record(ctx, EventLogout, username, true, nil)
	return nil
}

// CurrentUser returns the signed-in user, or nil when there is no valid
// session. A nil user is "not authenticated", not an error.
func (m *Manager) CurrentUser(ctx context.Context) (*PublicUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.current == nil {
		return nil, nil
	}
	if _, u := m.session(now); u != nil {
		pub := u.Public(now)
		return &pub, nil
	}

	// Expired: forget it here and in the store.
	token := m.current.Token
	m.setCurrent(nil, nil)
	if err := m.removeSessions(ctx, func(s Session) bool { return s.Token == token }); err != nil {
		return nil, err
	}
	if err := m.store.Delete(ctx, KeyCurrentSession); err != nil {
		return nil, err
	}
	m.logger.Info("session expired")
	return nil, nil
}

// Session returns a copy of the current session if it is valid.
func (m *Manager) Session() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, _ := m.session(m.now())
	if s == nil {
		return Session{}, false
	}
	return *s, true
}

// RecordActivity refreshes the inactivity clock of the current session.
// Writes to the store are coalesced to at most one per minute.
func (m *Manager) RecordActivity(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s, _ := m.session(now)
	if s == nil {
		return nil
	}
	s.LastActivity = now
	if now.Sub(m.flushedAt) < activityFlushInterval {
		return nil
	}

	sessions, err := m.loadSessions(ctx)
	if err != nil {
		return err
	}
	for i := range sessions {
		if sessions[i].Token == s.Token {
			sessions[i].LastActivity = now
		}
	}
	if err := m.saveSessions(ctx, sessions); err != nil {
		return err
	}
	m.flushedAt = now
	return nil
}

// AutoLoginAsAdmin returns the current session if there is one, otherwise
// it tries the default admin credentials. It exists for first-run setup.
func (m *Manager) AutoLoginAsAdmin(ctx context.Context) (Result[LoginData], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if s, u := m.session(now); s != nil {
		return ok(LoginData{
			User:                   u.Public(now),
			Token:                  s.Token,
			ExpiresAt:              s.ExpiresAt,
			PasswordChangeRequired: u.MustChangePassword,
		}), nil
	}
	return m.login(ctx, Credentials{Username: DefaultAdminUsername, Password: DefaultAdminPassword})
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

// HasPermission reports whether the current session's role is at least
// required. Without a valid session it is false.
func (m *Manager) HasPermission(required Role) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, _ := m.session(m.now())
	if s == nil {
		return false
	}
	return s.Role.Satisfies(required)
}

// CanAccessClient reports whether the current user may address clientID.
// Admins may address every client.
func (m *Manager) CanAccessClient(clientID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, u := m.session(m.now())
	if s == nil {
		return false
	}
	if s.Role == RoleAdmin {
		return true
	}
	return u.canAccess(clientID)
}

func minutes(d time.Duration) string {
	n := util.CeilMinutes(d)
	return strconv.Itoa(n) + " " + util.Plural(n, "minute")
}
