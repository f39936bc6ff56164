// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// PASSWORD POLICY CONSTANTS
// =============================================================================

const (
	// DefaultBcryptCost is the work factor for every stored password hash.
	DefaultBcryptCost = 12

	// MinPasswordLength is the shortest password that will be hashed or accepted.
	MinPasswordLength = 8

	// MaxPasswordLength is the longest password accepted by ValidatePassword.
	MaxPasswordLength = 128

	// bcryptMaxInput is the number of bytes bcrypt actually consumes.
	bcryptMaxInput = 72
)

// ErrInvalidInput is returned by HashPassword for empty or short input.
var ErrInvalidInput = errors.New("invalid input")

// weakPasswords is compared case-insensitively.
var weakPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password1!":  {},
	"password123": {},
	"p@ssw0rd":    {},
	"p@ssw0rd1":   {},
	"passw0rd!":   {},
	"12345678":    {},
	"123456789":   {},
	"1234567890":  {},
	"qwerty123":   {},
	"qwerty123!":  {},
	"admin123":    {},
	"admin@123":   {},
	"letmein1":    {},
	"letmein123!": {},
	"welcome1":    {},
	"welcome123!": {},
	"changeme":    {},
	"changeme1!":  {},
	"iloveyou":    {},
	"abc12345":    {},
	"abcd1234!":   {},
	"trustno1":    {},
	"football1!":  {},
}

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)
	emailPattern    = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?)*\.[A-Za-z]{2,}$`)

	scriptSchemePattern  = regexp.MustCompile(`(?i)javascript\s*:`)
	eventHandlerPattern  = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)
	angleBracketReplacer = strings.NewReplacer("<", "", ">", "")
)

// =============================================================================
// PASSWORD HASHER
// =============================================================================

// PasswordHasher hashes and verifies passwords with bcrypt.
// The zero value is not usable; use NewPasswordHasher or DefaultHasher.
type PasswordHasher struct {
	cost   int
	logger *slog.Logger
}

// DefaultHasher hashes at DefaultBcryptCost.
var DefaultHasher = NewPasswordHasher(DefaultBcryptCost)

// NewPasswordHasher returns a hasher using the given bcrypt cost. Costs
// outside bcrypt's supported range fall back to DefaultBcryptCost.
func NewPasswordHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return PasswordHasher{cost: cost}
}

// WithLogger returns a copy of h that reports verification faults to logger.
func (h PasswordHasher) WithLogger(logger *slog.Logger) PasswordHasher {
	h.logger = logger
	return h
}

// Cost returns the configured bcrypt work factor.
func (h PasswordHasher) Cost() int {
	return h.cost
}

// Hash returns a salted bcrypt hash of plaintext.
func (h PasswordHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("%w: password is empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(plaintext) < MinPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword(bcryptInput(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. It never returns an error:
// a malformed hash is logged and treated as a mismatch.
func (h PasswordHasher) Verify(plaintext, hash string) bool {
	if plaintext == "" || hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(plaintext))
	if err == nil {
		return true
	}
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		h.log().Debug("password verification failed", "error", err)
	}
	return false
}

func (h PasswordHasher) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

// bcryptInput maps passwords longer than bcrypt's 72-byte window to a fixed
// length digest so that every character still contributes to the hash.
func bcryptInput(plaintext string) []byte {
	if len(plaintext) <= bcryptMaxInput {
		return []byte(plaintext)
	}
	sum := sha256.Sum256([]byte(plaintext))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// HashPassword hashes plaintext with DefaultHasher.
func HashPassword(plaintext string) (string, error) {
	return DefaultHasher.Hash(plaintext)
}

// VerifyPassword checks plaintext against hash with DefaultHasher.
func VerifyPassword(plaintext, hash string) bool {
	return DefaultHasher.Verify(plaintext, hash)
}

// =============================================================================
// PASSWORD POLICY
// =============================================================================

// PasswordValidation is the outcome of ValidatePassword. Errors lists every
// rule the candidate violated, in a stable order.
type PasswordValidation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidatePassword checks candidate against the password policy.
func ValidatePassword(candidate string) PasswordValidation {
	var errs []string

	length := utf8.RuneCountInString(candidate)
	if length < MinPasswordLength {
		errs = append(errs, fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength))
	}
	if length > MaxPasswordLength {
		errs = append(errs, fmt.Sprintf("Password must be at most %d characters long", MaxPasswordLength))
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range candidate {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	if !hasLower {
		errs = append(errs, "Password must contain at least one lowercase letter")
	}
	if !hasUpper {
		errs = append(errs, "Password must contain at least one uppercase letter")
	}
	if !hasDigit {
		errs = append(errs, "Password must contain at least one number")
	}
	if !hasSymbol {
		errs = append(errs, "Password must contain at least one special character")
	}
	if _, weak := weakPasswords[strings.ToLower(candidate)]; weak {
		errs = append(errs, "Password is too common, choose a stronger password")
	}

	return PasswordValidation{Valid: len(errs) == 0, Errors: errs}
}

// =============================================================================
// TOKENS AND INPUT CHECKS
// =============================================================================

// GenerateSessionToken returns an unguessable, globally unique session token.
func GenerateSessionToken() string {
	return uuid.NewString()
}

// ValidateUsername reports whether s is 3-50 characters of letters, digits,
// underscore or hyphen.
func ValidateUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// ValidateEmail performs a syntactic check of an email address.
func ValidateEmail(s string) bool {
	if len(s) > 254 {
		return false
	}
	return emailPattern.MatchString(s)
}

// SanitizeInput strips markup that could be interpreted as script if a value
// is ever rendered by something other than a terminal: angle brackets, the
// javascript: scheme and inline event handler attributes. Input is NFKC
// normalized first so full-width look-alikes are caught too.
func SanitizeInput(s string) string {
	out := norm.NFKC.String(s)
	// Removing one pattern can splice together another ("javajavascript:script:").
	for i := 0; i < 8; i++ {
		prev := out
		out = angleBracketReplacer.Replace(out)
		out = scriptSchemePattern.ReplaceAllString(out, "")
		out = eventHandlerPattern.ReplaceAllString(out, "")
		if out == prev {
			break
		}
	}
	return strings.TrimSpace(out)
}
