// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// ROLE HIERARCHY TESTS
// =============================================================================

func TestRole_Satisfies(t *testing.T) {
	roles := []Role{RoleAdmin, RoleTechnician, RoleReadonly}
	for _, have := range roles {
		for _, need := range roles {
			require.Equal(t, have.Rank() >= need.Rank(), have.Satisfies(need), "%s vs %s", have, need)
		}
		require.False(t, have.Satisfies("superuser"))
	}
	require.False(t, Role("guest").Satisfies(RoleReadonly))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("technician")
	require.NoError(t, err)
	require.Equal(t, RoleTechnician, r)

	_, err = ParseRole("root")
	require.Error(t, err)
}

func TestHasPermission_Monotonic(t *testing.T) {
	env := newEnv(t)
	env.createUser(t, "tech1", "Tech#Pass1", RoleTechnician)
	env.createUser(t, "viewer", "View#Pass1", RoleReadonly)

	// Signed out: nothing is permitted.
	require.False(t, env.m.HasPermission(RoleReadonly))

	env.loginAdmin(t)
	require.True(t, env.m.HasPermission(RoleAdmin))
	require.True(t, env.m.HasPermission(RoleTechnician))
	require.True(t, env.m.HasPermission(RoleReadonly))

	env.login(t, "tech1", "Tech#Pass1")
	require.False(t, env.m.HasPermission(RoleAdmin))
	require.True(t, env.m.HasPermission(RoleTechnician))
	require.True(t, env.m.HasPermission(RoleReadonly))

	env.login(t, "viewer", "View#Pass1")
	require.False(t, env.m.HasPermission(RoleAdmin))
	require.False(t, env.m.HasPermission(RoleTechnician))
	require.True(t, env.m.HasPermission(RoleReadonly))
}

// Scenario B: client access follows the assigned list.
func TestCanAccessClient(t *testing.T) {
	env := newEnv(t)
	env.createUser(t, "tech1", "Tech#Pass1", RoleTechnician, "clientA")

	require.False(t, env.m.CanAccessClient("clientA"))

	env.login(t, "tech1", "Tech#Pass1")
	require.False(t, env.m.CanAccessClient("clientB"))
	require.True(t, env.m.CanAccessClient("clientA"))

	env.loginAdmin(t)
	require.True(t, env.m.CanAccessClient("clientB"))
	require.True(t, env.m.CanAccessClient("anything"))
}

// =============================================================================
// CREATE USER TESTS
// =============================================================================

func TestCreateUser_AssignsSequentialIDs(t *testing.T) {
	env := newEnv(t)
	a := env.createUser(t, "alice", "Alice#Pass1", RoleTechnician)
	b := env.createUser(t, "bob", "Bob#Pass12", RoleReadonly)
	require.Equal(t, 2, a.ID)
	require.Equal(t, 3, b.ID)
	require.Equal(t, []string{}, b.AssignedClients)
}

func TestCreateUser_RequiresAdmin(t *testing.T) {
	env := newEnv(t)
	env.createUser(t, "tech1", "Tech#Pass1", RoleTechnician)
	env.login(t, "tech1", "Tech#Pass1")

	res, err := env.m.CreateUser(context.Background(), NewUser{Username: "eve", Password: "Eve#Pass12", Role: RoleAdmin})
	require.NoError(t, err)
	require.True(t, res.Is(KindPermissionDenied))
	require.Len(t, env.storedUsers(t), 2)
}

func TestCreateUser_Validation(t *testing.T) {
	env := newEnv(t)
	env.loginAdmin(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  NewUser
	}{
		{"bad username", NewUser{Username: "a b", Password: "Good#Pass1"}},
		{"short username", NewUser{Username: "ab", Password: "Good#Pass1"}},
		{"bad email", NewUser{Username: "carol", Email: "carol@", Password: "Good#Pass1"}},
		{"bad role", NewUser{Username: "carol", Password: "Good#Pass1", Role: "root"}},
		{"weak password", NewUser{Username: "carol", Password: "password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.m.CreateUser(ctx, tt.req)
			require.NoError(t, err)
			require.True(t, res.Is(KindValidation), "%+v", res.Failure)
		})
	}

	res, err := env.m.CreateUser(ctx, NewUser{Username: "carol", Password: "short"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Failure.Details)
	require.Len(t, env.storedUsers(t), 1)
}

// Usernames are unique among active users; a duplicate leaves the store
// untouched.
func TestCreateUser_DuplicateUsername(t *testing.T) {
	env := newEnv(t)
	env.createUser(t, "tech1", "Tech#Pass1", RoleTechnician)
	env.loginAdmin(t)
	ctx := context.Background()

	before := env.storedUsers(t)
	res, err := env.m.CreateUser(ctx, NewUser{Username: "tech1", Password: "Other#Pass1", Role: RoleReadonly})
	require.NoError(t, err)
	require.True(t, res.Is(KindValidation))
	require.Contains(t, res.Failure.Message, "already exists")
	require.Equal(t, before, env.storedUsers(t))

	// Case differs: a distinct username.
	res, err = env.m.CreateUser(ctx, NewUser{Username: "Tech1", Password: "Other#Pass1", Role: RoleReadonly})
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestCreateUser_SanitizesClients(t *testing.T) {
	env := newEnv(t)
	u := env.createUser(t, "tech1", "Tech#Pass1", RoleTechnician, "acme", " acme ", "<b>", "", "globex")
	require.Equal(t, []string{"acme", "b", "globex"}, u.AssignedClients)
}

// =============================================================================
// UPDATE USER TESTS
// =============================================================================

func TestUpdateUser_SelfEmail(t *testing.T) {
	env := newEnv(t)
	tech := env.createUser(t, "tech1", "Tech#Pass1", RoleTechnician)
	env.login(t, "tech1", "Tech#Pass1")
	ctx := context.Background()

	email := "tech1@example.com"
	res, err := env.m.UpdateUser(ctx, UserUpdate{ID: tech.ID, Email: &email})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, email, env.storedUser(t, tech.ID).Email)

	bad := "nope"
	res, err = env.m.UpdateUser(ctx, UserUpdate{ID: tech.ID, Email: &bad})
	require.NoError(t, err)
	require.True(t, res.Is(KindValidation))
}

func TestUpdateUser_NonAdminRestrictions(t *testing.T) {
	env := newEnv(t)
	tech := env.createUser(t, "tech1", "Tech#Pass1", RoleTechnician)
	env.login(t, "tech1", "Tech#Pass1")
	ctx := context.Background()

	admin := RoleAdmin
	res, err := env.m.UpdateUser(ctx, UserUpdate{ID: tech.ID, Role: &admin})
	require.NoError(t, err)
	require.True(t, res.Is(KindPermissionDenied))

	email := "x@example.com"
	res, err = env.m.UpdateUser(ctx, UserUpdate{ID: 1, Email: &email})
	require.NoError(t, err)
	require.True(t, res.Is(KindPermissionDenied))

	require.Equal(t, RoleTechnician, env.storedUser(t, tech.ID).Role)
}

func TestUpdateUser_AdminChangesRoleAndClients(t *testing.T) {
	env := newEnv(t)
	tech := env.createUser(t, "tech1", "Tech#Pass1", RoleTechnician, "clientA")
	env.loginAdmin(t)
	ctx := context.Background()

	role := RoleReadonly
	clients := []string{"clientB"}
	res, err := env.m.UpdateUser(ctx, UserUpdate{ID: tech.ID, Role: &role, AssignedClients: &clients})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, RoleReadonly, res.Data.Role)
	require.Equal(t, []string{"clientB"}, res.Data.AssignedClients)

	res, err = env.m.UpdateUser(ctx, UserUpdate{ID: 42, Role: &role})
	require.NoError(t, err)
	require.True(t, res.Is(KindNotFound))

	demote := RoleTechnician
	res, err = env.m.UpdateUser(ctx, UserUpdate{ID: 1, Role: &demote})
	require.NoError(t, err)
	require.True(t, res.Is(KindValidation))
}

// =============================================================================
// LIST USERS TESTS
// =============================================================================

func TestUsers_SilentDenialForNonAdmins(t *testing.T) {
	env := newEnv(t)
	env.createUser(t, "tech1", "Tech#Pass1", RoleTechnician)
	ctx := context.Background()

	users, err := env.m.Users(ctx)
	require.NoError(t, err)
	require.NotNil(t, users)
	require.Empty(t, users)

	env.login(t, "tech1", "Tech#Pass1")
	users, err = env.m.Users(ctx)
	require.NoError(t, err)
	require.NotNil(t, users)
	require.Empty(t, users)

	env.loginAdmin(t)
	users, err = env.m.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
}

// =============================================================================
// PASSWORD CHANGE TESTS
// =============================================================================

// Scenario C: a wrong current password leaves the stored hash alone.
func TestChangePassword_WrongOldPassword(t *testing.T) {
	env := newEnv(t)
	tech := env.createUser(t, "tech1", "Tech#Pass1", RoleTechnician)
	require.Equal(t, 2, tech.ID)
	env.login(t, "tech1", "Tech#Pass1")

	before := env.storedUser(t, 2).PasswordHash
	res, err := env.m.ChangePassword(context.Background(), 2, "wrongOld", "NewPass1!")
	require.NoError(t, err)
	require.False(t, res.Success)
	require.True(t, res.Is(KindInvalidCredentials))
	require.Contains(t, res.Failure.Message, "Current password")
	require.Equal(t, before, env.storedUser(t, 2).PasswordHash)
}

func TestChangePassword_Self(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	data := env.loginAdmin(t)
	require.True(t, data.PasswordChangeRequired)

	res, err := env.m.ChangePassword(ctx, 1, DefaultAdminPassword, "weak")
	require.NoError(t, err)
	require.True(t, res.Is(KindValidation))
	require.NotEmpty(t, res.Failure.Details)

	res, err = env.m.ChangePassword(ctx, 1, DefaultAdminPassword, "Adm1n!Secure")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.False(t, env.storedUser(t, 1).MustChangePassword)

	require.NoError(t, env.m.Logout(ctx))
	again := env.login(t, "admin", "Adm1n!Secure")
	require.False(t, again.PasswordChangeRequired)
}

func TestChangePassword_AdminResetForcesChange(t *testing.T) {
	env := newEnv(t)
	tech := env.createUser(t, "tech1", "Tech#Pass1", RoleTechnician)
	env.loginAdmin(t)
	ctx := context.Background()

	res, err := env.m.ChangePassword(ctx, tech.ID, "", "Reset#Pass9")
	require.NoError(t, err)
	require.True(t, res.Success)

	data := env.login(t, "tech1", "Reset#Pass9")
	require.True(t, data.PasswordChangeRequired)

	// Technicians cannot reset other users.
	res, err = env.m.ChangePassword(ctx, 1, "", "Reset#Pass9")
	require.NoError(t, err)
	require.True(t, res.Is(KindPermissionDenied))
}

func TestChangePassword_NotFound(t *testing.T) {
	env := newEnv(t)
	env.loginAdmin(t)
	res, err := env.m.ChangePassword(context.Background(), 99, "", "Reset#Pass9")
	require.NoError(t, err)
	require.True(t, res.Is(KindNotFound))
}

// =============================================================================
// DEACTIVATION TESTS
// =============================================================================

func TestDeactivateUser(t *testing.T) {
	env := newEnv(t)
	tech := env.createUser(t, "tech1", "Tech#Pass1", RoleTechnician)
	ctx := context.Background()

	env.login(t, "tech1", "Tech#Pass1")
	res, err := env.m.DeactivateUser(ctx, 1)
	require.NoError(t, err)
	require.True(t, res.Is(KindPermissionDenied))

	env.loginAdmin(t)
	res, err = env.m.DeactivateUser(ctx, 1)
	require.NoError(t, err)
	require.True(t, res.Is(KindValidation))

	res, err = env.m.DeactivateUser(ctx, tech.ID)
	require.NoError(t, err)
	require.True(t, res.Success)

	stored := env.storedUser(t, tech.ID)
	require.False(t, stored.Active)

	res, err = env.m.DeactivateUser(ctx, tech.ID)
	require.NoError(t, err)
	require.True(t, res.Is(KindNotFound))

	login, err := env.m.Login(ctx, Credentials{Username: "tech1", Password: "Tech#Pass1"})
	require.NoError(t, err)
	require.True(t, login.Is(KindInvalidCredentials))

	// The username is free again.
	created, err := env.m.CreateUser(ctx, NewUser{Username: "tech1", Password: "Fresh#Pass1", Role: RoleReadonly})
	require.NoError(t, err)
	require.True(t, created.Success)
	require.Equal(t, 3, created.Data.ID)

	require.Contains(t, env.audit.events(), EventUserDeactivated)
}

func TestDeactivateUser_RevokesSessions(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	tech := env.createUser(t, "tech1", "Tech#Pass1", RoleTechnician)

	// A second process, started earlier, is used by the admin.
	admin := env.newManager()
	require.NoError(t, admin.Bootstrap(ctx))

	env.login(t, "tech1", "Tech#Pass1")

	res, err := admin.Login(ctx, Credentials{Username: "admin", Password: DefaultAdminPassword})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, env.storedSessions(t), 2)

	out, err := admin.DeactivateUser(ctx, tech.ID)
	require.NoError(t, err)
	require.True(t, out.Success)

	sessions := env.storedSessions(t)
	require.Len(t, sessions, 1)
	require.Equal(t, 1, sessions[0].UserID)
}
