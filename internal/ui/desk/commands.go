// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package desk

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/assetdesk/internal/directory"
	"github.com/jeranaias/assetdesk/internal/identity"
)

// =============================================================================
// SESSION COMMANDS
// =============================================================================

// sessionCheckInterval is how often the dashboard confirms the session is
// still valid.
const sessionCheckInterval = 30 * time.Second

func (m *Model) restoreSessionCmd() tea.Cmd {
	ctx, id := m.ctx, m.deps.Identity
	return func() tea.Msg {
		u, err := id.CurrentUser(ctx)
		if err != nil {
			return sessionRestoredMsg{err: err}
		}
		if u != nil {
			return sessionRestoredMsg{user: u}
		}
		first, err := id.FirstRun(ctx)
		return sessionRestoredMsg{firstRun: first, err: err}
	}
}

func sessionTickCmd(gen int, d time.Duration) tea.Cmd {
	if d <= 0 {
		return func() tea.Msg { return sessionTickMsg{gen: gen, at: time.Now()} }
	}
	return tea.Tick(d, func(t time.Time) tea.Msg { return sessionTickMsg{gen: gen, at: t} })
}

// checkSessionCmd reports the current user and the time left before the
// session ends, whichever of the idle and absolute limits comes first.
func (m *Model) checkSessionCmd() tea.Cmd {
	ctx, id, now := m.ctx, m.deps.Identity, m.now
	return func() tea.Msg {
		u, err := id.CurrentUser(ctx)
		if err != nil || u == nil {
			return sessionStatusMsg{err: err}
		}
		s, ok := id.Session()
		if !ok {
			return sessionStatusMsg{}
		}
		deadline := s.IdleDeadline(id.Policy().InactivityTimeout)
		if s.ExpiresAt.Before(deadline) {
			deadline = s.ExpiresAt
		}
		return sessionStatusMsg{user: u, remaining: deadline.Sub(now())}
	}
}

func (m *Model) recordActivityCmd() tea.Cmd {
	ctx, id := m.ctx, m.deps.Identity
	return func() tea.Msg {
		if err := id.RecordActivity(ctx); err != nil {
			return activityErrMsg{err: err}
		}
		return nil
	}
}

// =============================================================================
// AUTHENTICATION COMMANDS
// =============================================================================

func (m *Model) loginCmd(creds identity.Credentials) tea.Cmd {
	ctx, id := m.ctx, m.deps.Identity
	return func() tea.Msg {
		res, err := id.Login(ctx, creds)
		return loginDoneMsg{res: res, password: creds.Password, err: err}
	}
}

func (m *Model) autoLoginCmd() tea.Cmd {
	ctx, id := m.ctx, m.deps.Identity
	return func() tea.Msg {
		res, err := id.AutoLoginAsAdmin(ctx)
		return loginDoneMsg{res: res, password: identity.DefaultAdminPassword, auto: true, err: err}
	}
}

func (m *Model) changePasswordCmd(userID int, current, next string) tea.Cmd {
	ctx, id := m.ctx, m.deps.Identity
	return func() tea.Msg {
		res, err := id.ChangePassword(ctx, userID, current, next)
		return passwordDoneMsg{res: res, err: err}
	}
}

func (m *Model) logoutCmd(notice string) tea.Cmd {
	ctx, id := m.ctx, m.deps.Identity
	return func() tea.Msg {
		return loggedOutMsg{notice: notice, err: id.Logout(ctx)}
	}
}

// =============================================================================
// DIRECTORY COMMANDS
// =============================================================================

func (m *Model) loadClientsCmd() tea.Cmd {
	base, open := m.ctx, m.deps.Directory
	return func() tea.Msg {
		ctx, cancel := withTimeout(base)
		defer cancel()
		dir, err := open(ctx)
		if err != nil {
			return clientsLoadedMsg{err: err}
		}
		clients, err := dir.ListClients(ctx)
		return clientsLoadedMsg{clients: clients, err: err}
	}
}

func (m *Model) loadAssetsCmd(seq int, clientID, search string) tea.Cmd {
	base, open := m.ctx, m.deps.Directory
	return func() tea.Msg {
		ctx, cancel := withTimeout(base)
		defer cancel()
		dir, err := open(ctx)
		if err != nil {
			return assetsLoadedMsg{seq: seq, clientID: clientID, err: err}
		}
		assets, err := dir.ListAssets(ctx, clientID, directory.Filter{Search: search})
		return assetsLoadedMsg{seq: seq, clientID: clientID, assets: assets, err: err}
	}
}

func (m *Model) scanCmd(clientID, code string) tea.Cmd {
	base, open := m.ctx, m.deps.Directory
	return func() tea.Msg {
		ctx, cancel := withTimeout(base)
		defer cancel()
		dir, err := open(ctx)
		if err != nil {
			return scanDoneMsg{clientID: clientID, code: code, err: err}
		}
		a, err := dir.FindByBarcode(ctx, clientID, code)
		return scanDoneMsg{clientID: clientID, code: code, asset: a, err: err}
	}
}

func (m *Model) loadUsersCmd() tea.Cmd {
	ctx, id := m.ctx, m.deps.Identity
	return func() tea.Msg {
		users, err := id.Users(ctx)
		return usersLoadedMsg{users: users, err: err}
	}
}

// withTimeout bounds a single asset database call.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 30*time.Second)
}
