// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, display and exit codes.
//
// Handlers always return errors; main displays them once and exits with
// GetExitCode.

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/assetdesk/internal/config"
	"github.com/jeranaias/assetdesk/internal/directory"
	"github.com/jeranaias/assetdesk/internal/identity"
	"github.com/jeranaias/assetdesk/internal/security"
	"github.com/jeranaias/assetdesk/internal/store"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitStorageError  = 5
	ExitRateLimited   = 6
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
)

var (
	// ErrNotLoggedIn is returned by commands that need a session.
	ErrNotLoggedIn = errors.New("not logged in (run: assetdesk login)")

	// ErrPasswordChangeRequired is returned while the signed-in user still
	// has to replace an assigned password.
	ErrPasswordChangeRequired = errors.New("password change required (run: assetdesk user passwd)")
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports a malformed command line.
type UsageError struct {
	Message string
	Usage   string
}

func (e *UsageError) Error() string {
	if e.Usage == "" {
		return e.Message
	}
	return e.Message + "\nUsage: " + e.Usage
}

// ErrMissingArgument builds a UsageError for a missing positional argument.
func ErrMissingArgument(argName, usage string) error {
	return &UsageError{Message: "missing required argument: " + argName, Usage: usage}
}

// ErrUnknownSubcommand builds a UsageError for an unrecognized subcommand.
func ErrUnknownSubcommand(command, sub, usage string) error {
	return &UsageError{Message: fmt.Sprintf("unknown %s subcommand %q", command, sub), Usage: usage}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		out := map[string]any{
			"success":    false,
			"error":      err.Error(),
			"error_type": errorType(err),
		}
		var f *identity.Failure
		if errors.As(err, &f) && f.RetryAfter > 0 {
			out["retry_after_minutes"] = f.RetryAfterMinutes()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.Encode(out)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())

	var f *identity.Failure
	if errors.As(err, &f) {
		for _, d := range f.Details {
			fmt.Fprintf(w, "  - %s\n", d)
		}
	}
}

func errorType(err error) string {
	var (
		usage *UsageError
		f     *identity.Failure
		verrs config.ValidateErrors
	)
	switch {
	case errors.As(err, &usage):
		return "usage_error"
	case errors.As(err, &f):
		return f.Kind.String()
	case errors.As(err, &verrs):
		return "config_error"
	case errors.Is(err, ErrNotLoggedIn):
		return "not_logged_in"
	case errors.Is(err, ErrPasswordChangeRequired):
		return "password_change_required"
	case errors.Is(err, directory.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, directory.ErrNotFound):
		return "not_found"
	case errors.Is(err, directory.ErrConflict), errors.Is(err, directory.ErrInvalid):
		return "validation"
	case errors.Is(err, store.ErrStorage):
		return "storage_error"
	default:
		return "error"
	}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var f *identity.Failure
	if errors.As(err, &f) {
		switch f.Kind {
		case identity.KindValidation:
			return ExitUsageError
		case identity.KindRateLimited:
			return ExitRateLimited
		case identity.KindNotFound:
			return ExitNotFoundError
		default:
			return ExitAuthError
		}
	}

	var (
		usage *UsageError
		tty   *TTYRequiredError
		verrs config.ValidateErrors
	)
	switch {
	case errors.As(err, &usage), errors.As(err, &tty),
		errors.Is(err, directory.ErrInvalid), errors.Is(err, directory.ErrConflict):
		return ExitUsageError
	case errors.As(err, &verrs):
		return ExitConfigError
	case errors.Is(err, ErrNotLoggedIn), errors.Is(err, ErrPasswordChangeRequired),
		errors.Is(err, directory.ErrPermissionDenied):
		return ExitAuthError
	case errors.Is(err, directory.ErrNotFound):
		return ExitNotFoundError
	case errors.Is(err, store.ErrStorage), errors.Is(err, security.ErrDecryptionFailed),
		errors.Is(err, security.ErrNotInitialized):
		return ExitStorageError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	default:
		return ExitGeneralError
	}
}
