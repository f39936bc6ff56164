// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package desk

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/glamour"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/assetdesk/internal/identity"
)

// =============================================================================
// OVERLAYS
// =============================================================================

type overlayKind int

const (
	overlayNone overlayKind = iota
	overlayHelp
	overlayUsers
)

// dashboardHelp is the key reference shown by "?".
const dashboardHelp = `# Dashboard keys

| Key | Action |
|-----|--------|
| tab / shift+tab | Move between clients, search and assets |
| up/k, down/j | Move in the focused list |
| enter | Open the highlighted client, or run the search |
| / | Search the selected client's assets |
| esc | Clear the search |
| ctrl+r | Reload clients and assets |
| u | List users (admin) |
| ctrl+l | Sign out |
| q, ctrl+c | Quit |

## Barcode scanner

With the scanner enabled, scan a barcode at any time. Input arriving faster
than a person can type is treated as a scan and looked up in the selected
client instead of being handled as keys.
`

// renderMarkdown renders md at width in the theme's light or dark style.
// Auto style would query the terminal while the program owns it.
func (m *Model) renderMarkdown(md string, width int) string {
	style := "light"
	if m.theme.IsDark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}

func (m *Model) openHelp() tea.Cmd {
	d := &m.dash
	d.helpView = m.renderMarkdown(dashboardHelp, max(min(m.width-10, 80), 30))
	d.overlay = overlayHelp
	return nil
}

// openUsers lists accounts. Admin only.
func (m *Model) openUsers() tea.Cmd {
	if !m.deps.Identity.HasPermission(identity.RoleAdmin) {
		return m.toasts.Warning("Listing users requires the admin role")
	}
	d := &m.dash
	d.overlay = overlayUsers
	d.users = nil
	d.usersTable.SetRows(nil)
	d.usersTable.Focus()
	return tea.Batch(m.loadUsersCmd(), m.startActivity("Loading users"))
}

func (m *Model) closeOverlay() {
	d := &m.dash
	d.overlay = overlayNone
	d.usersTable.Blur()
}

func (m *Model) updateOverlay(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := &m.dash
	switch {
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Quit):
		m.closeOverlay()
		return m, nil
	case d.overlay == overlayHelp && key.Matches(msg, m.keys.Help):
		m.closeOverlay()
		return m, nil
	case d.overlay == overlayUsers && key.Matches(msg, m.keys.Users):
		m.closeOverlay()
		return m, nil
	case key.Matches(msg, m.keys.Logout):
		m.closeOverlay()
		return m, m.logoutCmd("You have been signed out.")
	}

	if d.overlay == overlayUsers {
		var cmd tea.Cmd
		d.usersTable, cmd = d.usersTable.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleUsersLoaded(msg usersLoadedMsg) (tea.Model, tea.Cmd) {
	if m.state != StateDashboard {
		return m, nil
	}
	m.stopActivity()
	d := &m.dash
	if msg.err != nil {
		m.logger.Warn("list users failed", "error", msg.err)
		m.closeOverlay()
		return m, m.toasts.Error("Could not load users: " + describeError(msg.err))
	}
	d.users = msg.users
	d.usersTable.SetRows(userRows(d.users))
	d.usersTable.SetCursor(0)
	return m, nil
}

// =============================================================================
// USER TABLE
// =============================================================================

func userColumns(width int) []table.Column {
	cols := []table.Column{
		{Title: "ID", Width: 4},
		{Title: "Username", Width: 16},
		{Title: "Role", Width: 11},
		{Title: "State", Width: 10},
		{Title: "MFA", Width: 4},
		{Title: "Last login", Width: 16},
		{Title: "Clients"},
	}
	used := 0
	for _, c := range cols {
		used += c.Width + 2
	}
	cols[len(cols)-1].Width = max(width-used-2, 8)
	return cols
}

func userRows(users []identity.PublicUser) []table.Row {
	rows := make([]table.Row, 0, len(users))
	for _, u := range users {
		state := "active"
		switch {
		case !u.Active:
			state = "disabled"
		case u.Locked:
			state = "locked"
		case u.MustChangePassword:
			state = "new pass"
		}
		mfa := "no"
		if u.MFAEnabled {
			mfa = "yes"
		}
		last := "never"
		if u.LastLogin != nil {
			last = u.LastLogin.Local().Format("2006-01-02 15:04")
		}
		clients := strings.Join(u.AssignedClients, ",")
		if u.Role == identity.RoleAdmin {
			clients = "all"
		}
		rows = append(rows, table.Row{strconv.Itoa(u.ID), u.Username, string(u.Role), state, mfa, last, clients})
	}
	return rows
}

// =============================================================================
// OVERLAY VIEW
// =============================================================================

func (m *Model) viewOverlay() string {
	d := &m.dash
	t := m.theme

	var title, content, hint string
	switch d.overlay {
	case overlayHelp:
		title, content, hint = "Help", d.helpView, "esc or ? to close"
	case overlayUsers:
		title, hint = "Users", "esc or u to close"
		switch {
		case len(d.users) == 0 && m.spinner.IsActive():
			content = m.spinner.View()
		case len(d.users) == 0:
			content = t.Muted.Render("No users visible.")
		default:
			content = d.usersTable.View()
		}
	}

	box := t.OverlayBox.Render(lipgloss.JoinVertical(lipgloss.Left,
		t.OverlayTitle.Render(title),
		"",
		content,
		"",
		t.Muted.Render(hint),
	))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
