// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package desk

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// SESSION MONITORING
// =============================================================================

// expiredNotice is shown on the login screen after a session ends on its own.
const expiredNotice = "Your session has expired. Please sign in again."

// nextSessionCheck schedules the next session check after d and supersedes
// any check already scheduled.
func (m *Model) nextSessionCheck(d time.Duration) tea.Cmd {
	m.tickGen++
	return sessionTickCmd(m.tickGen, d)
}

func (m *Model) signedIn() bool {
	return m.state == StateDashboard || m.state == StatePasswordChange
}

func (m *Model) handleSessionTick(msg sessionTickMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.tickGen {
		return m, nil
	}
	if !m.signedIn() {
		return m, m.nextSessionCheck(sessionCheckInterval)
	}
	return m, m.checkSessionCmd()
}

func (m *Model) handleSessionStatus(msg sessionStatusMsg) (tea.Model, tea.Cmd) {
	if !m.signedIn() {
		return m, m.nextSessionCheck(sessionCheckInterval)
	}
	if msg.err != nil {
		m.logger.Warn("session check failed", "error", msg.err)
		return m, m.nextSessionCheck(sessionCheckInterval)
	}
	if msg.user == nil {
		m.logger.Info("session ended")
		return m, tea.Batch(m.showLogin(expiredNotice), m.nextSessionCheck(sessionCheckInterval))
	}

	visible := false
	if m.warnEnabled {
		visible = m.session.Check(msg.remaining)
	}
	return m, m.nextSessionCheck(sessionDelay(msg.remaining, m.session.Threshold(), m.warnEnabled, visible))
}

// sessionDelay picks when to look again: every second while the warning is
// counting down, otherwise at the regular interval, but never later than
// the moment the warning should appear or the session should end.
func sessionDelay(remaining, threshold time.Duration, warn, visible bool) time.Duration {
	if visible {
		return time.Second
	}
	d := sessionCheckInterval
	if warn {
		if untilWarn := remaining - threshold; untilWarn < d {
			d = untilWarn
		}
	}
	if remaining < d {
		d = remaining
	}
	return max(d, time.Second)
}
