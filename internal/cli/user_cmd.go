// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// user_cmd.go - User administration.
//
// Command: user [subcommand]
//
// Subcommands:
//   list (default)                     List active users (admin)
//   create <name> [flags]              Create a user (admin)
//   update <name> [flags]              Change role, email or clients
//   passwd [name]                      Change a password
//   deactivate <name>                  Deactivate a user (admin)
//   mfa enroll|confirm|disable [name]  Manage the authenticator app
//
// Flags:
//   --role ROLE          admin, technician or readonly
//   --email ADDR         Email address
//   --clients A,B        Assigned clients by ID or name ("" clears)
//   --must-change        Force a password change at next login
//   --code CODE          Authenticator code for mfa confirm

package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jeranaias/assetdesk/internal/directory"
	"github.com/jeranaias/assetdesk/internal/identity"
	"github.com/jeranaias/assetdesk/internal/util"
)

const userUsage = "assetdesk user [list|create|update|passwd|deactivate|mfa] ..."

// HandleUser dispatches user subcommands.
func HandleUser(ctx context.Context, app *App, args Args) error {
	p := NewArgParser(args.Raw, "must-change")
	sub := p.Subcommand()

	check := app.requireLogin
	if sub == "passwd" || sub == "password" {
		check = app.requireSession
	}
	me, err := check(ctx)
	if err != nil {
		return err
	}

	switch sub {
	case "", "list", "ls":
		return userList(ctx, app, args)
	case "create", "add":
		return userCreate(ctx, app, args, p)
	case "update", "edit":
		return userUpdate(ctx, app, args, me, p)
	case "passwd", "password":
		return userPasswd(ctx, app, args, me, p)
	case "deactivate", "disable", "rm":
		return userDeactivate(ctx, app, args, me, p)
	case "mfa", "2fa":
		return userMFA(ctx, app, args, me, p)
	default:
		return ErrUnknownSubcommand("user", sub, userUsage)
	}
}

// resolveUser maps a username to an ID. An empty name means the caller.
// Other users can only be resolved by admins.
func resolveUser(ctx context.Context, app *App, me *identity.PublicUser, name string) (identity.PublicUser, error) {
	if name == "" || name == me.Username {
		return *me, nil
	}
	users, err := app.Identity.Users(ctx)
	if err != nil {
		return identity.PublicUser{}, err
	}
	for _, u := range users {
		if u.Username == name {
			return u, nil
		}
	}
	if me.Role != identity.RoleAdmin {
		return identity.PublicUser{}, &identity.Failure{Kind: identity.KindPermissionDenied, Message: "Admin role required"}
	}
	return identity.PublicUser{}, &identity.Failure{Kind: identity.KindNotFound, Message: "User not found: " + name}
}

// assignedClients turns a --clients value into client IDs. Names are
// accepted and slugged the way client create does it. IDs that match no
// existing client are kept, with a warning.
func assignedClients(ctx context.Context, app *App, raw string) []string {
	seen := make(map[string]bool)
	ids := []string{}
	for _, c := range util.SplitCSV(raw) {
		id := directory.Slug(c)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ids
	}

	dir, err := app.Directory(ctx)
	if err != nil {
		app.Logger.Debug("client check skipped", "error", err)
		return ids
	}
	clients, err := dir.ListClients(ctx)
	if err != nil {
		app.Logger.Debug("client check skipped", "error", err)
		return ids
	}
	known := make(map[string]bool, len(clients))
	for _, c := range clients {
		known[c.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			fmt.Fprintf(app.Err, "%s no client %q yet (see: assetdesk client list)\n", WarningStyle.Render("[WARN]"), id)
		}
	}
	return ids
}

// =============================================================================
// LIST
// =============================================================================

func userList(ctx context.Context, app *App, args Args) error {
	users, err := app.Identity.Users(ctx)
	if err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(app.Out, "user list", users)
	}
	if len(users) == 0 {
		fmt.Fprintln(app.Out, DimStyle.Render("No users visible (admin role required)."))
		return nil
	}

	cols := []column{{"ID", 4}, {"USERNAME", 16}, {"ROLE", 10}, {"MFA", 3}, {"LOCKED", 6}, {"LAST LOGIN", 16}, {"CLIENTS", 24}}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{
			strconv.Itoa(u.ID),
			util.TruncateWidth(u.Username, 16),
			string(u.Role),
			yesNo(u.MFAEnabled),
			yesNo(u.Locked),
			formatTimePtr(u.LastLogin),
			util.TruncateWidth(clientList(u), 24),
		})
	}
	printTable(app.Out, cols, rows)
	if !args.Quiet {
		fmt.Fprintf(app.Out, "\n%d %s\n", len(users), util.Plural(len(users), "user"))
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// =============================================================================
// CREATE / UPDATE
// =============================================================================

func userCreate(ctx context.Context, app *App, args Args, p *ArgParser) error {
	name := p.Positional(1)
	if name == "" {
		return ErrMissingArgument("username", "assetdesk user create <name> [--role r] [--email e] [--clients a,b] [--must-change]")
	}
	role, err := roleFlag(p, identity.RoleReadonly)
	if err != nil {
		return err
	}

	password, err := app.ReadPassword("Password for " + name + ": ")
	if err != nil {
		return err
	}
	confirm, err := app.ReadPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return &identity.Failure{Kind: identity.KindValidation, Message: "Passwords do not match"}
	}

	result, err := app.Identity.CreateUser(ctx, identity.NewUser{
		Username:           name,
		Email:              p.Flag("email"),
		Password:           password,
		Role:               role,
		AssignedClients:    assignedClients(ctx, app, p.Flag("clients")),
		MustChangePassword: p.BoolFlag("must-change"),
	})
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	if args.JSON {
		return writeJSON(app.Out, "user create", result.Data)
	}
	fmt.Fprintf(app.Out, "%s Created %s (%s)\n", SuccessStyle.Render("[OK]"), result.Data.Username, RenderRole(result.Data.Role))
	return nil
}

func userUpdate(ctx context.Context, app *App, args Args, me *identity.PublicUser, p *ArgParser) error {
	target, err := resolveUser(ctx, app, me, p.Positional(1))
	if err != nil {
		return err
	}

	upd := identity.UserUpdate{ID: target.ID}
	if p.HasFlag("email") {
		email := p.Flag("email")
		upd.Email = &email
	}
	if p.HasFlag("role") {
		role, err := roleFlag(p, "")
		if err != nil {
			return err
		}
		upd.Role = &role
	}
	if p.HasFlag("clients") {
		clients := assignedClients(ctx, app, p.Flag("clients"))
		upd.AssignedClients = &clients
	}
	if upd.Email == nil && upd.Role == nil && upd.AssignedClients == nil {
		return &UsageError{Message: "nothing to update", Usage: "assetdesk user update [name] [--role r] [--email e] [--clients a,b]"}
	}

	result, err := app.Identity.UpdateUser(ctx, upd)
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(app.Out, "user update", result.Data)
	}
	fmt.Fprintf(app.Out, "%s Updated %s\n", SuccessStyle.Render("[OK]"), result.Data.Username)
	return nil
}

// roleFlag parses --role, returning def when it is absent.
func roleFlag(p *ArgParser, def identity.Role) (identity.Role, error) {
	v := p.Flag("role")
	if v == "" {
		if def == "" {
			return "", &UsageError{Message: "--role needs a value: admin, technician or readonly"}
		}
		return def, nil
	}
	r, err := identity.ParseRole(v)
	if err != nil {
		return "", &UsageError{Message: err.Error()}
	}
	return r, nil
}

// =============================================================================
// PASSWORD
// =============================================================================

func userPasswd(ctx context.Context, app *App, args Args, me *identity.PublicUser, p *ArgParser) error {
	name := p.Positional(1)
	if me.MustChangePassword && name != "" && name != me.Username {
		return ErrPasswordChangeRequired
	}
	target, err := resolveUser(ctx, app, me, name)
	if err != nil {
		return err
	}
	if target.ID == me.ID {
		return changeOwnPassword(ctx, app, me.ID, "")
	}

	next, err := app.ReadPassword("New password for " + target.Username + ": ")
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
	result, err := app.Identity.ChangePassword(ctx, target.ID, "", next)
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(app.Out, "user passwd", map[string]any{"user": target.Username, "must_change_password": true})
	}
	fmt.Fprintf(app.Out, "%s Password reset for %s; they must change it at next login\n",
		SuccessStyle.Render("[OK]"), target.Username)
	return nil
}

// =============================================================================
// DEACTIVATE
// =============================================================================

func userDeactivate(ctx context.Context, app *App, args Args, me *identity.PublicUser, p *ArgParser) error {
	name := p.Positional(1)
	if name == "" {
		return ErrMissingArgument("username", "assetdesk user deactivate <name>")
	}
	target, err := resolveUser(ctx, app, me, name)
	if err != nil {
		return err
	}
	result, err := app.Identity.DeactivateUser(ctx, target.ID)
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(app.Out, "user deactivate", map[string]string{"user": target.Username})
	}
	fmt.Fprintf(app.Out, "%s Deactivated %s\n", SuccessStyle.Render("[OK]"), target.Username)
	return nil
}

// =============================================================================
// MFA
// =============================================================================

const mfaUsage = "assetdesk user mfa enroll|confirm|disable [name] [--code c]"

func userMFA(ctx context.Context, app *App, args Args, me *identity.PublicUser, p *ArgParser) error {
	action := p.Positional(1)
	target, err := resolveUser(ctx, app, me, p.Positional(2))
	if err != nil {
		return err
	}

	switch action {
	case "enroll":
		result, err := app.Identity.EnrollTOTP(ctx, target.ID)
		if err != nil {
			return err
		}
		if err := result.Err(); err != nil {
			return err
		}
		if args.JSON {
			return writeJSON(app.Out, "user mfa enroll", result.Data)
		}
		fmt.Fprintln(app.Out, TitleStyle.Render("Authenticator enrollment for "+target.Username))
		printField(app.Out, "Secret", result.Data.Secret)
		printField(app.Out, "URL", result.Data.URL)
		fmt.Fprintln(app.Out, DimStyle.Render("Add the secret to an authenticator app, then run: assetdesk user mfa confirm"))
		return nil

	case "confirm":
		code := p.Flag("code")
		if code == "" {
			if code, err = app.prompt("Authentication code: "); err != nil {
				return fmt.Errorf("read code: %w", err)
			}
		}
		result, err := app.Identity.ConfirmTOTP(ctx, target.ID, code)
		if err != nil {
			return err
		}
		if err := result.Err(); err != nil {
			return err
		}
		if args.JSON {
			return writeJSON(app.Out, "user mfa confirm", map[string]any{"user": target.Username, "mfa_enabled": true})
		}
		fmt.Fprintf(app.Out, "%s Two-factor login enabled for %s\n", SuccessStyle.Render("[OK]"), target.Username)
		return nil

	case "disable":
		result, err := app.Identity.DisableTOTP(ctx, target.ID)
		if err != nil {
			return err
		}
		if err := result.Err(); err != nil {
			return err
		}
		if args.JSON {
			return writeJSON(app.Out, "user mfa disable", map[string]any{"user": target.Username, "mfa_enabled": false})
		}
		fmt.Fprintf(app.Out, "%s Two-factor login disabled for %s\n", SuccessStyle.Render("[OK]"), target.Username)
		return nil

	case "":
		return ErrMissingArgument("action", mfaUsage)
	default:
		return ErrUnknownSubcommand("user mfa", action, mfaUsage)
	}
}
