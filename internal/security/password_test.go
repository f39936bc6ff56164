// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// HASHING TESTS
// =============================================================================

func TestHashPassword_UsesCost12(t *testing.T) {
	hash, err := HashPassword("Str0ng!Pass")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, 12, cost)
	require.NotContains(t, hash, "Str0ng!Pass")
}

func TestHashPassword_RejectsShortInput(t *testing.T) {
	for _, pw := range []string{"", "short", "1234567"} {
		_, err := HashPassword(pw)
		require.Error(t, err, "input %q", pw)
		require.True(t, errors.Is(err, ErrInvalidInput))
	}
}

func TestHashPassword_Salted(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	a, err := h.Hash("Same!Pass1")
	require.NoError(t, err)
	b, err := h.Hash("Same!Pass1")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

// Round trip: a policy-compliant password verifies against its own hash and
// no other password does.
func TestVerifyPassword_RoundTrip(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	passwords := []string{
		"Correct#Horse9",
		"Tr0ub4dor&3x",
		"Zebra-Crossing-77",
		"Ünïcødé#Pass1",
	}

	for _, p := range passwords {
		require.True(t, ValidatePassword(p).Valid, "fixture %q must meet policy", p)
		hash, err := h.Hash(p)
		require.NoError(t, err)
		require.True(t, h.Verify(p, hash), "round trip for %q", p)

		for _, other := range passwords {
			if other != p {
				require.False(t, h.Verify(other, hash), "%q must not verify against hash of %q", other, p)
			}
		}
		require.False(t, h.Verify(strings.ToUpper(p), hash))
	}
}

func TestVerifyPassword_LongPasswordsUseEveryCharacter(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	base := strings.Repeat("Aa1!", 20) // 80 bytes, past bcrypt's 72 byte window

	hash, err := h.Hash(base + "X")
	require.NoError(t, err)
	require.True(t, h.Verify(base+"X", hash))
	require.False(t, h.Verify(base+"Y", hash))
}

func TestVerifyPassword_NeverPanics(t *testing.T) {
	require.False(t, VerifyPassword("anything", "not-a-bcrypt-hash"))
	require.False(t, VerifyPassword("", "$2a$12$abc"))
	require.False(t, VerifyPassword("anything", ""))
}

func TestNewPasswordHasher_ClampsCost(t *testing.T) {
	require.Equal(t, DefaultBcryptCost, NewPasswordHasher(0).Cost())
	require.Equal(t, DefaultBcryptCost, NewPasswordHasher(99).Cost())
	require.Equal(t, bcrypt.MinCost, NewPasswordHasher(bcrypt.MinCost).Cost())
}

// =============================================================================
// POLICY TESTS
// =============================================================================

func TestValidatePassword_CollectsAllErrors(t *testing.T) {
	result := ValidatePassword("abc")
	require.False(t, result.Valid)
	// too short, no upper, no digit, no symbol
	require.Len(t, result.Errors, 4)
}

func TestValidatePassword_Rules(t *testing.T) {
	tests := []struct {
		name     string
		password string
		contains string
	}{
		{"missing lowercase", "UPPER123!", "lowercase"},
		{"missing uppercase", "lower123!", "uppercase"},
		{"missing digit", "NoDigits!!", "number"},
		{"missing symbol", "NoSymbol123", "special"},
		{"too long", "Aa1!" + strings.Repeat("x", MaxPasswordLength), "at most"},
		{"deny list", "Password1!", "too common"},
		{"deny list case insensitive", "Welcome123!", "too common"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidatePassword(tt.password)
			require.False(t, result.Valid)
			require.Len(t, result.Errors, 1, "errors: %v", result.Errors)
			require.Contains(t, result.Errors[0], tt.contains)
		})
	}
}

func TestValidatePassword_Accepts(t *testing.T) {
	result := ValidatePassword("NewPass1!")
	require.True(t, result.Valid)
	require.Empty(t, result.Errors)
}

// =============================================================================
// INPUT CHECK TESTS
// =============================================================================

func TestGenerateSessionToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok := GenerateSessionToken()
		require.Len(t, tok, 36)
		require.False(t, seen[tok])
		seen[tok] = true
	}
}

func TestValidateUsername(t *testing.T) {
	valid := []string{"admin", "tech_1", "jane-doe", "abc", strings.Repeat("a", 50)}
	invalid := []string{"", "ab", "has space", "semi;colon", "emoji😀", strings.Repeat("a", 51), "dot.name"}

	for _, u := range valid {
		require.True(t, ValidateUsername(u), u)
	}
	for _, u := range invalid {
		require.False(t, ValidateUsername(u), u)
	}
}

func TestValidateEmail(t *testing.T) {
	valid := []string{"tech@example.com", "first.last+tag@msp.co.uk", "a_b@sub-domain.io"}
	invalid := []string{"", "plain", "@example.com", "user@", "user@domain", "user@-bad.com", "a b@example.com"}

	for _, e := range valid {
		require.True(t, ValidateEmail(e), e)
	}
	for _, e := range invalid {
		require.False(t, ValidateEmail(e), e)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Dell Latitude 7440", "Dell Latitude 7440"},
		{"<script>alert(1)</script>", "scriptalert(1)/script"},
		{"javascript:alert(1)", "alert(1)"},
		{"JaVaScRiPt :alert(1)", "alert(1)"},
		{"javajavascript:script:x", "x"},
		{`img src=x onerror=alert(1)`, "img src=x alert(1)"},
		{"ONCLICK = steal()", "steal()"},
		{"＜b＞full width＜/b＞", "bfull width/b"},
		{"  padded  ", "padded"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, SanitizeInput(tt.in), "input %q", tt.in)
	}
}

func TestMaskIdentifier(t *testing.T) {
	a := MaskIdentifier("admin")
	require.Equal(t, a, MaskIdentifier("admin"))
	require.NotEqual(t, a, MaskIdentifier("admin2"))
	require.NotContains(t, a, "admin")
	require.True(t, strings.HasPrefix(a, "hash:"))
}

func TestMaskToken(t *testing.T) {
	require.Equal(t, "****", MaskToken(""))
	require.Equal(t, "****", MaskToken("abcdefgh"))
	require.Equal(t, "abcdefgh****", MaskToken("abcdefghijklmnop"))
}
