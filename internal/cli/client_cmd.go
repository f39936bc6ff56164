// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// client_cmd.go - Client (tenant) management.
//
// Command: client [subcommand]
//
// Subcommands:
//   list (default)       Clients visible to the current user
//   create <name>        Register a client and its asset table (admin)
//   access <id>          Show who may work with a client

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/assetdesk/internal/identity"
	"github.com/jeranaias/assetdesk/internal/util"
)

const clientUsage = "assetdesk client [list|create <name>|access <id>]"

// HandleClient dispatches client subcommands.
func HandleClient(ctx context.Context, app *App, args Args) error {
	me, err := app.requireLogin(ctx)
	if err != nil {
		return err
	}

	p := NewArgParser(args.Raw)
	switch sub := p.Subcommand(); sub {
	case "", "list", "ls":
		return clientListCmd(ctx, app, args)
	case "create", "add":
		name := strings.Join(p.PositionalFrom(1), " ")
		if name == "" {
			return ErrMissingArgument("name", "assetdesk client create <name>")
		}
		return clientCreate(ctx, app, args, name)
	case "access":
		id := p.Positional(1)
		if id == "" {
			return ErrMissingArgument("id", "assetdesk client access <id>")
		}
		return clientAccess(ctx, app, args, me, id)
	default:
		return ErrUnknownSubcommand("client", sub, clientUsage)
	}
}

func clientListCmd(ctx context.Context, app *App, args Args) error {
	dir, err := app.Directory(ctx)
	if err != nil {
		return err
	}
	clients, err := dir.ListClients(ctx)
	if err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(app.Out, "client list", clients)
	}
	if len(clients) == 0 {
		fmt.Fprintln(app.Out, DimStyle.Render("No clients available."))
		return nil
	}

	rows := make([][]string, 0, len(clients))
	for _, c := range clients {
		rows = append(rows, []string{c.ID, util.TruncateWidth(c.Name, 30), formatTime(c.CreatedAt)})
	}
	printTable(app.Out, []column{{"ID", 24}, {"NAME", 30}, {"CREATED", 16}}, rows)
	if !args.Quiet {
		fmt.Fprintf(app.Out, "\n%d %s\n", len(clients), util.Plural(len(clients), "client"))
	}
	return nil
}

func clientCreate(ctx context.Context, app *App, args Args, name string) error {
	dir, err := app.Directory(ctx)
	if err != nil {
		return err
	}
	c, err := dir.CreateClient(ctx, name)
	if err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(app.Out, "client create", c)
	}
	fmt.Fprintf(app.Out, "%s Created client %s (%s)\n", SuccessStyle.Render("[OK]"), c.Name, c.ID)
	return nil
}

// clientAccessOutput is the --json shape of client access.
type clientAccessOutput struct {
	Client    string   `json:"client"`
	CanAccess bool     `json:"can_access"`
	Users     []string `json:"users,omitempty"`
}

// clientAccess reports whether the caller may use a client and, for admins,
// which users are assigned to it.
func clientAccess(ctx context.Context, app *App, args Args, me *identity.PublicUser, id string) error {
	out := clientAccessOutput{Client: id, CanAccess: app.Identity.CanAccessClient(id)}

	if me.Role == identity.RoleAdmin {
		users, err := app.Identity.Users(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			if u.Role == identity.RoleAdmin {
				out.Users = append(out.Users, u.Username+" (admin)")
				continue
			}
			for _, c := range u.AssignedClients {
				if c == id {
					out.Users = append(out.Users, u.Username)
					break
				}
			}
		}
	}

	if args.JSON {
		return writeJSON(app.Out, "client access", out)
	}
	printField(app.Out, "Client", id)
	printField(app.Out, "You can access", RenderYesNo(out.CanAccess))
	if me.Role == identity.RoleAdmin {
		printField(app.Out, "Users", strings.Join(out.Users, ", "))
	}
	return nil
}
