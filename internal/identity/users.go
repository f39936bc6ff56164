// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"context"
	"strconv"
	"strings"

	"github.com/jeranaias/assetdesk/internal/security"
)

const (
	msgAdminRequired  = "Admin privileges required"
	msgNotAuthorized  = "You are not allowed to change this user"
	msgNotSignedIn    = "You must be signed in"
	msgUserNotFound   = "User not found"
	msgDuplicateUser  = "Username already exists"
	msgWrongPassword  = "Current password is incorrect"
	msgPasswordPolicy = "Password does not meet requirements"
)

// =============================================================================
// USER ADMINISTRATION
// =============================================================================

// CreateUser adds a user. Only admins may create users.
func (m *Manager) CreateUser(ctx context.Context, req NewUser) (Result[PublicUser], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s, _ := m.session(now)
	if s == nil || s.Role != RoleAdmin {
		return fail[PublicUser](KindPermissionDenied, msgAdminRequired), nil
	}

	username := strings.TrimSpace(req.Username)
	if !security.ValidateUsername(username) {
		return fail[PublicUser](KindValidation, "Username must be 3-50 letters, digits, underscores or hyphens"), nil
	}
	email := strings.TrimSpace(req.Email)
	if email != "" && !security.ValidateEmail(email) {
		return fail[PublicUser](KindValidation, "Invalid email address"), nil
	}
	role := req.Role
	if role == "" {
		role = RoleReadonly
	}
	if !role.Valid() {
		return fail[PublicUser](KindValidation, "Unknown role %q", string(role)), nil
	}
	if v := security.ValidatePassword(req.Password); !v.Valid {
		return failWith[PublicUser](&Failure{Kind: KindValidation, Message: msgPasswordPolicy, Details: v.Errors}), nil
	}

	users, err := m.loadUsers(ctx)
	if err != nil {
		return Result[PublicUser]{}, err
	}
	if findActiveUser(users, username) != nil {
		return fail[PublicUser](KindValidation, msgDuplicateUser), nil
	}

	hash, err := m.hasher.Hash(req.Password)
	if err != nil {
		return fail[PublicUser](KindValidation, msgPasswordPolicy), nil
	}

	nextID := 1
	for _, u := range users {
		if u.ID >= nextID {
			nextID = u.ID + 1
		}
	}

	user := User{
		ID:                 nextID,
		Username:           username,
		Email:              email,
		PasswordHash:       hash,
		Role:               role,
		AssignedClients:    cleanClients(req.AssignedClients),
		CreatedAt:          now,
		Active:             true,
		MustChangePassword: req.MustChangePassword,
	}
	users = append(users, user)
	if err := m.saveUsers(ctx, users); err != nil {
		return Result[PublicUser]{}, err
	}

	m.logger.Info("user created", "id", user.ID, "role", user.Role)
	m.auditor.Record(ctx, EventUserCreated, s.Username, true, map[string]string{
		"target": username,
		"role":   string(role),
	})
	return ok(user.Public(now)), nil
}

// UpdateUser merges the set fields of upd into the user. Admins may update
// anyone; other users may only change their own email.
func (m *Manager) UpdateUser(ctx context.Context, upd UserUpdate) (Result[PublicUser], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s, _ := m.session(now)
	if s == nil {
		return fail[PublicUser](KindPermissionDenied, msgNotSignedIn), nil
	}
	isAdmin := s.Role == RoleAdmin
	isSelf := s.UserID == upd.ID
	if !isAdmin && !isSelf {
		return fail[PublicUser](KindPermissionDenied, msgNotAuthorized), nil
	}
	if !isAdmin && (upd.Role != nil || upd.AssignedClients != nil || upd.Active != nil) {
		return fail[PublicUser](KindPermissionDenied, msgAdminRequired), nil
	}

	users, err := m.loadUsers(ctx)
	if err != nil {
		return Result[PublicUser]{}, err
	}
	user := findUserByID(users, upd.ID)
	if user == nil {
		return fail[PublicUser](KindNotFound, msgUserNotFound), nil
	}

	var changed []string
	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		if email != "" && !security.ValidateEmail(email) {
			return fail[PublicUser](KindValidation, "Invalid email address"), nil
		}
		user.Email = email
		changed = append(changed, "email")
	}
	if upd.Role != nil {
		if !upd.Role.Valid() {
			return fail[PublicUser](KindValidation, "Unknown role %q", string(*upd.Role)), nil
		}
		if isSelf && *upd.Role != RoleAdmin {
			return fail[PublicUser](KindValidation, "You cannot remove your own admin role"), nil
		}
		user.Role = *upd.Role
		changed = append(changed, "role")
	}
	if upd.AssignedClients != nil {
		user.AssignedClients = cleanClients(*upd.AssignedClients)
		changed = append(changed, "assigned_clients")
	}
	if upd.Active != nil {
		if isSelf && !*upd.Active {
			return fail[PublicUser](KindValidation, "You cannot deactivate your own account"), nil
		}
		if *upd.Active && !user.Active && findActiveUser(users, user.Username) != nil {
			return fail[PublicUser](KindValidation, msgDuplicateUser), nil
		}
		user.Active = *upd.Active
		changed = append(changed, "active")
	}

	if err := m.saveUsers(ctx, users); err != nil {
		return Result[PublicUser]{}, err
	}
	if !user.Active {
		id := user.ID
		if err := m.removeSessions(ctx, func(s Session) bool { return s.UserID == id }); err != nil {
			return Result[PublicUser]{}, err
		}
	}
	m.refreshCurrentUser(user)

	m.auditor.Record(ctx, EventUserUpdated, s.Username, true, map[string]string{
		"target": user.Username,
		"fields": strings.Join(changed, ","),
	})
	return ok(user.Public(now)), nil
}

// Users lists active users. Non-admins get an empty list, not an error, so
// the response does not reveal whether the call could have succeeded.
func (m *Manager) Users(ctx context.Context) ([]PublicUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := []PublicUser{}
	s, _ := m.session(now)
	if s == nil || s.Role != RoleAdmin {
		return out, nil
	}

	users, err := m.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Active {
			out = append(out, users[i].Public(now))
		}
	}
	return out, nil
}

// ChangePassword sets a new password for userID. Users changing their own
// password must supply the current one. An admin resetting someone else's
// password forces that user to change it at next login.
func (m *Manager) ChangePassword(ctx context.Context, userID int, oldPassword, newPassword string) (Result[struct{}], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s, _ := m.session(now)
	if s == nil {
		return fail[struct{}](KindPermissionDenied, msgNotSignedIn), nil
	}
	isSelf := s.UserID == userID
	if !isSelf && s.Role != RoleAdmin {
		return fail[struct{}](KindPermissionDenied, msgNotAuthorized), nil
	}

	users, err := m.loadUsers(ctx)
	if err != nil {
		return Result[struct{}]{}, err
	}
	user := findUserByID(users, userID)
	if user == nil || !user.Active {
		return fail[struct{}](KindNotFound, msgUserNotFound), nil
	}

	if isSelf {
		if !m.hasher.Verify(oldPassword, user.PasswordHash) {
			m.auditor.Record(ctx, EventPasswordChanged, s.Username, false, map[string]string{"reason": "wrong current password"})
			return fail[struct{}](KindInvalidCredentials, msgWrongPassword), nil
		}
		if oldPassword == newPassword {
			return fail[struct{}](KindValidation, "New password must be different from the current password"), nil
		}
	}
	if v := security.ValidatePassword(newPassword); !v.Valid {
		return failWith[struct{}](&Failure{Kind: KindValidation, Message: msgPasswordPolicy, Details: v.Errors}), nil
	}

	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return fail[struct{}](KindValidation, msgPasswordPolicy), nil
	}
	user.PasswordHash = hash
	user.MustChangePassword = !isSelf
	if err := m.saveUsers(ctx, users); err != nil {
		return Result[struct{}]{}, err
	}
	m.refreshCurrentUser(user)

	m.logger.Info("password changed", "id", user.ID, "self", isSelf)
	m.auditor.Record(ctx, EventPasswordChanged, s.Username, true, map[string]string{"target": user.Username})
	return ok(struct{}{}), nil
}

// DeactivateUser soft-deletes a user and revokes their sessions. Admin only;
// admins cannot deactivate themselves.
func (m *Manager) DeactivateUser(ctx context.Context, userID int) (Result[struct{}], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s, _ := m.session(now)
	if s == nil || s.Role != RoleAdmin {
		return fail[struct{}](KindPermissionDenied, msgAdminRequired), nil
	}
	if s.UserID == userID {
		return fail[struct{}](KindValidation, "You cannot deactivate your own account"), nil
	}

	users, err := m.loadUsers(ctx)
	if err != nil {
		return Result[struct{}]{}, err
	}
	user := findUserByID(users, userID)
	if user == nil || !user.Active {
		return fail[struct{}](KindNotFound, msgUserNotFound), nil
	}

	user.Active = false
	if err := m.saveUsers(ctx, users); err != nil {
		return Result[struct{}]{}, err
	}
	if err := m.removeSessions(ctx, func(s Session) bool { return s.UserID == userID }); err != nil {
		return Result[struct{}]{}, err
	}

	m.auditor.Record(ctx, EventUserDeactivated, s.Username, true, map[string]string{
		"target": user.Username,
		"id":     strconv.Itoa(user.ID),
	})
	return ok(struct{}{}), nil
}

// cleanClients sanitizes, trims and de-duplicates client identifiers.
func cleanClients(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = security.SanitizeInput(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
