// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"context"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPIssuer names the application inside authenticator apps.
const TOTPIssuer = "assetdesk"

// totpOpts matches what authenticator apps generate by default, allowing one
// period of clock drift either way.
var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Enrollment is the material a user loads into an authenticator app.
type Enrollment struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

func validateTOTP(code, secret string, now time.Time) bool {
	if secret == "" {
		return false
	}
	valid, err := totp.ValidateCustom(strings.TrimSpace(code), secret, now, totpOpts)
	return err == nil && valid
}

// =============================================================================
// ENROLLMENT
// =============================================================================

// EnrollTOTP generates a new secret for userID and stores it as pending.
// The second factor is not enforced until ConfirmTOTP succeeds.
func (m *Manager) EnrollTOTP(ctx context.Context, userID int) (Result[Enrollment], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users, user, denied, err := m.mfaTarget(ctx, userID)
	if err != nil || denied != nil {
		return failWith[Enrollment](denied), err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      TOTPIssuer,
		AccountName: user.Username,
	})
	if err != nil {
		return Result[Enrollment]{}, err
	}

	user.TOTPSecret = key.Secret()
	user.TOTPPending = true
	user.TOTPEnabled = false
	if err := m.saveUsers(ctx, users); err != nil {
		return Result[Enrollment]{}, err
	}
	m.refreshCurrentUser(user)

	return ok(Enrollment{Secret: key.Secret(), URL: key.URL()}), nil
}

// ConfirmTOTP enables the pending second factor once code checks out.
func (m *Manager) ConfirmTOTP(ctx context.Context, userID int, code string) (Result[struct{}], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users, user, denied, err := m.mfaTarget(ctx, userID)
	if err != nil || denied != nil {
		return failWith[struct{}](denied), err
	}
	if !user.TOTPPending {
		return fail[struct{}](KindValidation, "No authenticator enrollment is pending"), nil
	}
	if !validateTOTP(code, user.TOTPSecret, m.now()) {
		return fail[struct{}](KindValidation, "Invalid verification code"), nil
	}

	user.TOTPPending = false
	user.TOTPEnabled = true
	if err := m.saveUsers(ctx, users); err != nil {
		return Result[struct{}]{}, err
	}
	m.refreshCurrentUser(user)

	m.auditor.Record(ctx, EventMFAEnrolled, m.actor(), true, map[string]string{"target": user.Username})
	return ok(struct{}{}), nil
}

// DisableTOTP removes the second factor from userID.
func (m *Manager) DisableTOTP(ctx context.Context, userID int) (Result[struct{}], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users, user, denied, err := m.mfaTarget(ctx, userID)
	if err != nil || denied != nil {
		return failWith[struct{}](denied), err
	}

	user.TOTPSecret = ""
	user.TOTPPending = false
	user.TOTPEnabled = false
	if err := m.saveUsers(ctx, users); err != nil {
		return Result[struct{}]{}, err
	}
	m.refreshCurrentUser(user)

	m.auditor.Record(ctx, EventMFADisabled, m.actor(), true, map[string]string{"target": user.Username})
	return ok(struct{}{}), nil
}

// mfaTarget loads the users and resolves userID, applying the admin-or-self
// rule shared by the MFA operations.
func (m *Manager) mfaTarget(ctx context.Context, userID int) ([]User, *User, *Failure, error) {
	s, _ := m.session(m.now())
	if s == nil {
		return nil, nil, &Failure{Kind: KindPermissionDenied, Message: msgNotSignedIn}, nil
	}
	if s.UserID != userID && s.Role != RoleAdmin {
		return nil, nil, &Failure{Kind: KindPermissionDenied, Message: msgNotAuthorized}, nil
	}

	users, err := m.loadUsers(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	user := findUserByID(users, userID)
	if user == nil || !user.Active {
		return nil, nil, &Failure{Kind: KindNotFound, Message: msgUserNotFound}, nil
	}
	return users, user, nil, nil
}
