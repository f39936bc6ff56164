// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func currentCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, at)
	require.NoError(t, err)
	return code
}

// wrongCode returns a code that is not valid in any accepted period around at.
func wrongCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	valid := map[string]bool{}
	for _, d := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		valid[currentCode(t, secret, at.Add(d))] = true
	}
	for n := 0; ; n++ {
		c := fmt.Sprintf("%06d", n)
		if !valid[c] {
			return c
		}
	}
}

// =============================================================================
// TOTP ENROLLMENT TESTS
// =============================================================================

func TestTOTP_EnrollConfirmLogin(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.loginAdmin(t)

	enr, err := env.m.EnrollTOTP(ctx, 1)
	require.NoError(t, err)
	require.True(t, enr.Success)
	require.NotEmpty(t, enr.Data.Secret)
	require.True(t, strings.HasPrefix(enr.Data.URL, "otpauth://totp/"))
	require.Contains(t, enr.Data.URL, "issuer="+TOTPIssuer)

	// Pending enrollment is not enforced yet.
	require.NoError(t, env.m.Logout(ctx))
	env.loginAdmin(t)

	secret := enr.Data.Secret
	bad, err := env.m.ConfirmTOTP(ctx, 1, wrongCode(t, secret, env.clock.Now()))
	require.NoError(t, err)
	require.True(t, bad.Is(KindValidation))

	conf, err := env.m.ConfirmTOTP(ctx, 1, currentCode(t, secret, env.clock.Now()))
	require.NoError(t, err)
	require.True(t, conf.Success)
	require.True(t, env.storedUser(t, 1).TOTPEnabled)
	require.NoError(t, env.m.Logout(ctx))

	res, err := env.m.Login(ctx, Credentials{Username: "admin", Password: DefaultAdminPassword})
	require.NoError(t, err)
	require.True(t, res.Is(KindMFARequired))

	res, err = env.m.Login(ctx, Credentials{Username: "admin", Password: DefaultAdminPassword, OTP: wrongCode(t, secret, env.clock.Now())})
	require.NoError(t, err)
	require.True(t, res.Is(KindInvalidCredentials))
	require.Equal(t, 1, env.storedUser(t, 1).FailedLoginAttempts)

	res, err = env.m.Login(ctx, Credentials{Username: "admin", Password: DefaultAdminPassword, OTP: currentCode(t, secret, env.clock.Now())})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, res.Data.User.MFAEnabled)

	// A wrong password never reaches the code check.
	require.NoError(t, env.m.Logout(ctx))
	res, err = env.m.Login(ctx, Credentials{Username: "admin", Password: "Wrong-pass1"})
	require.NoError(t, err)
	require.True(t, res.Is(KindInvalidCredentials))

	require.Contains(t, env.audit.events(), EventMFAEnrolled)
}

func TestTOTP_ConfirmWithoutEnrollment(t *testing.T) {
	env := newEnv(t)
	env.loginAdmin(t)
	res, err := env.m.ConfirmTOTP(context.Background(), 1, "123456")
	require.NoError(t, err)
	require.True(t, res.Is(KindValidation))
}

func TestTOTP_Disable(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.loginAdmin(t)

	enr, err := env.m.EnrollTOTP(ctx, 1)
	require.NoError(t, err)
	_, err = env.m.ConfirmTOTP(ctx, 1, currentCode(t, enr.Data.Secret, env.clock.Now()))
	require.NoError(t, err)

	res, err := env.m.DisableTOTP(ctx, 1)
	require.NoError(t, err)
	require.True(t, res.Success)

	stored := env.storedUser(t, 1)
	require.False(t, stored.TOTPEnabled)
	require.Empty(t, stored.TOTPSecret)

	require.NoError(t, env.m.Logout(ctx))
	env.loginAdmin(t)
	require.Contains(t, env.audit.events(), EventMFADisabled)
}

func TestTOTP_AdminOrSelf(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	tech := env.createUser(t, "tech1", "Tech#Pass1", RoleTechnician)

	res, err := env.m.EnrollTOTP(ctx, tech.ID)
	require.NoError(t, err)
	require.True(t, res.Is(KindPermissionDenied))

	env.login(t, "tech1", "Tech#Pass1")
	res, err = env.m.EnrollTOTP(ctx, 1)
	require.NoError(t, err)
	require.True(t, res.Is(KindPermissionDenied))

	res, err = env.m.EnrollTOTP(ctx, tech.ID)
	require.NoError(t, err)
	require.True(t, res.Success)

	env.loginAdmin(t)
	res, err = env.m.EnrollTOTP(ctx, 77)
	require.NoError(t, err)
	require.True(t, res.Is(KindNotFound))

	dis, err := env.m.DisableTOTP(ctx, tech.ID)
	require.NoError(t, err)
	require.True(t, dis.Success)
}
