// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - login, logout and whoami.
//
// Command: login [-u user] [--otp code]
//
// The session is kept in the encrypted store, so it carries over to later
// invocations until it expires or is ended with logout. An account that must
// change its password does so inline; with --json the session can only run
// whoami, logout and user passwd until the change is made.
//
// Examples:
//   assetdesk login                    Prompt for username and password
//   assetdesk login -u jsmith          Prompt for the password only
//   assetdesk whoami --json            Current user and session as JSON
//   assetdesk logout                   End the session

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/assetdesk/internal/identity"
	"github.com/jeranaias/assetdesk/internal/security"
)

const loginUsage = "assetdesk login [-u user] [--otp code]"

// =============================================================================
// LOGIN
// =============================================================================

// HandleLogin authenticates and starts a session.
func HandleLogin(ctx context.Context, app *App, args Args) error {
	p := NewArgParser(args.Raw)

	username := p.Flag("u", "user", "username")
	if username == "" {
		username = p.Positional(0)
	}
	if username == "" {
		var err error
		if username, err = app.prompt("Username: "); err != nil {
			return fmt.Errorf("read username: %w", err)
		}
	}
	if username == "" {
		return ErrMissingArgument("username", loginUsage)
	}

	password, err := app.ReadPassword("Password: ")
	if err != nil {
		return err
	}

	creds := identity.Credentials{Username: username, Password: password, OTP: p.Flag("otp")}
	result, err := app.Identity.Login(ctx, creds)
	if err != nil {
		return err
	}
	if result.Is(identity.KindMFARequired) {
		code, err := app.prompt("Authentication code: ")
		if err != nil {
			return fmt.Errorf("read code: %w", err)
		}
		creds.OTP = code
		if result, err = app.Identity.Login(ctx, creds); err != nil {
			return err
		}
	}
	if err := result.Err(); err != nil {
		return err
	}

	data := result.Data
	if data.PasswordChangeRequired && !args.JSON {
		fmt.Fprintln(app.Err, WarningStyle.Render("Your password must be changed before continuing."))
		if err := changeOwnPassword(ctx, app, data.User.ID, password); err != nil {
			if logoutErr := app.Identity.Logout(ctx); logoutErr != nil {
				app.Logger.Warn("logout after failed password change", "error", logoutErr)
			}
			return err
		}
		data.PasswordChangeRequired = false
	}

	if args.JSON {
		return writeJSON(app.Out, "login", data)
	}
	if args.Quiet {
		return nil
	}
	fmt.Fprintf(app.Out, "%s Logged in as %s (%s)\n",
		SuccessStyle.Render("[OK]"), data.User.Username, RenderRole(data.User.Role))
	fmt.Fprintf(app.Out, "Session expires %s\n", formatTime(data.ExpiresAt))
	return nil
}

// changeOwnPassword prompts for the current password when it is not
// already known, then twice for the new one.
func changeOwnPassword(ctx context.Context, app *App, userID int, current string) error {
	var err error
	if current == "" {
		if current, err = app.ReadPassword("Current password: "); err != nil {
			return err
		}
	}
	next, err := app.ReadPassword("New password: ")
	if err != nil {
		return err
	}
	confirm, err := app.ReadPassword("Confirm new password: ")
	if err != nil {
		return err
	}
	if next != confirm {
		return &identity.Failure{Kind: identity.KindValidation, Message: "Passwords do not match"}
	}
	result, err := app.Identity.ChangePassword(ctx, userID, current, next)
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}
	fmt.Fprintln(app.Out, SuccessStyle.Render("[OK]")+" Password changed")
	return nil
}

// =============================================================================
// LOGOUT
// =============================================================================

// HandleLogout ends the current session. It succeeds when nobody is logged in.
func HandleLogout(ctx context.Context, app *App, args Args) error {
	u, err := app.Identity.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if err := app.Identity.Logout(ctx); err != nil {
		return err
	}

	if args.JSON {
		return writeJSON(app.Out, "logout", map[string]bool{"was_logged_in": u != nil})
	}
	if args.Quiet {
		return nil
	}
	if u == nil {
		fmt.Fprintln(app.Out, DimStyle.Render("Not logged in."))
		return nil
	}
	fmt.Fprintf(app.Out, "%s Logged out %s\n", SuccessStyle.Render("[OK]"), u.Username)
	return nil
}

// =============================================================================
// WHOAMI
// =============================================================================

// whoamiOutput is the --json shape of whoami.
type whoamiOutput struct {
	User          identity.PublicUser `json:"user"`
	Token         string              `json:"token"`
	ExpiresAt     time.Time           `json:"expires_at"`
	IdleExpiresAt time.Time           `json:"idle_expires_at"`
}

// HandleWhoami shows the logged-in user and how long the session has left.
func HandleWhoami(ctx context.Context, app *App, args Args) error {
	u, err := app.Identity.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrNotLoggedIn
	}
	s, _ := app.Identity.Session()
	idle := s.IdleDeadline(app.Identity.Policy().InactivityTimeout)

	if args.JSON {
		return writeJSON(app.Out, "whoami", whoamiOutput{
			User:          *u,
			Token:         security.MaskToken(s.Token),
			ExpiresAt:     s.ExpiresAt,
			IdleExpiresAt: idle,
		})
	}

	fmt.Fprintln(app.Out, TitleStyle.Render("Current User"))
	printField(app.Out, "Username", u.Username)
	printField(app.Out, "Role", RenderRole(u.Role))
	if u.Email != "" {
		printField(app.Out, "Email", u.Email)
	}
	printField(app.Out, "Clients", clientList(*u))
	printField(app.Out, "MFA", RenderYesNo(u.MFAEnabled))
	printField(app.Out, "Session", security.MaskToken(s.Token))
	printField(app.Out, "Expires", formatTime(s.ExpiresAt))
	printField(app.Out, "Idle timeout", formatTime(idle))
	if u.MustChangePassword {
		fmt.Fprintln(app.Out, WarningStyle.Render("Password change required."))
	}
	return nil
}

// clientList describes the clients a user may see.
func clientList(u identity.PublicUser) string {
	if u.Role == identity.RoleAdmin {
		return "all"
	}
	if len(u.AssignedClients) == 0 {
		return DimStyle.Render("none")
	}
	return strings.Join(u.AssignedClients, ", ")
}
