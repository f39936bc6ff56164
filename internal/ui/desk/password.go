// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package desk

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/assetdesk/internal/identity"
	"github.com/jeranaias/assetdesk/internal/security"
	"github.com/jeranaias/assetdesk/internal/ui/styles"
)

// =============================================================================
// PASSWORD CHANGE FORM
// =============================================================================

const (
	fieldCurrent = iota
	fieldNew
	fieldConfirm
)

// passwordForm replaces a password the account must change. The current
// password is asked for only when it is not already known from sign in.
type passwordForm struct {
	inputs []textinput.Model
	focus  int

	userID  int
	known   string
	policy  []string
	err     string
	details []string
	busy    bool
}

func newPasswordForm() passwordForm {
	inputs := make([]textinput.Model, 3)
	for i, ph := range []string{"current password", "new password", "repeat new password"} {
		in := textinput.New()
		in.Placeholder = ph
		in.EchoMode = textinput.EchoPassword
		in.EchoCharacter = '*'
		in.CharLimit = security.MaxPasswordLength
		in.Prompt = ""
		inputs[i] = in
	}
	return passwordForm{inputs: inputs}
}

func (f *passwordForm) firstField() int {
	if f.known != "" {
		return fieldNew
	}
	return fieldCurrent
}

func (f *passwordForm) setFocus(i int) tea.Cmd {
	f.focus = i
	var cmd tea.Cmd
	for j := range f.inputs {
		if j == i {
			cmd = f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
	return cmd
}

func (f *passwordForm) current() string {
	if f.known != "" {
		return f.known
	}
	return f.inputs[fieldCurrent].Value()
}

// enterPasswordChange shows the password screen for u. known is the password
// u just signed in with, or empty for a restored session.
func (m *Model) enterPasswordChange(u *identity.PublicUser, known string) tea.Cmd {
	m.state = StatePasswordChange
	m.user = u
	m.password = newPasswordForm()
	m.password.userID = u.ID
	m.password.known = known
	return tea.Batch(m.password.setFocus(m.password.firstField()), m.nextSessionCheck(0))
}

// =============================================================================
// PASSWORD UPDATE
// =============================================================================

func (m *Model) updatePassword(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.password
	if f.busy {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Back):
		return m, m.logoutCmd("A new password is required before you can continue.")

	case key.Matches(msg, m.keys.NextFocus), msg.Type == tea.KeyDown:
		if f.focus < fieldConfirm {
			return m, f.setFocus(f.focus + 1)
		}
		return m, f.setFocus(f.firstField())

	case key.Matches(msg, m.keys.PrevFocus), msg.Type == tea.KeyUp:
		if f.focus > f.firstField() {
			return m, f.setFocus(f.focus - 1)
		}
		return m, f.setFocus(fieldConfirm)

	case key.Matches(msg, m.keys.Select):
		if f.focus < fieldConfirm {
			return m, f.setFocus(f.focus + 1)
		}
		return m.submitPassword()
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	if f.focus == fieldNew {
		f.policy = nil
		if next := f.inputs[fieldNew].Value(); next != "" {
			f.policy = security.ValidatePassword(next).Errors
		}
	}
	return m, cmd
}

func (m *Model) submitPassword() (tea.Model, tea.Cmd) {
	f := &m.password
	f.err, f.details = "", nil

	next := f.inputs[fieldNew].Value()
	switch {
	case f.current() == "":
		f.err = "Enter your current password."
		return m, f.setFocus(fieldCurrent)
	case next != f.inputs[fieldConfirm].Value():
		f.err = "Passwords do not match."
		f.inputs[fieldConfirm].Reset()
		return m, f.setFocus(fieldConfirm)
	case len(f.policy) > 0:
		f.err = "Password does not meet requirements."
		return m, f.setFocus(fieldNew)
	}

	f.busy = true
	return m, tea.Batch(m.changePasswordCmd(f.userID, f.current(), next), m.spinner.Start("Saving"))
}

func (m *Model) handlePasswordDone(msg passwordDoneMsg) (tea.Model, tea.Cmd) {
	f := &m.password
	f.busy = false
	m.spinner.Stop()

	switch {
	case msg.err != nil:
		f.err = "Could not change password: " + msg.err.Error()
		return m, nil
	case !msg.res.Success:
		f.err = msg.res.Failure.Message
		f.details = msg.res.Failure.Details
		if msg.res.Failure.Kind == identity.KindInvalidCredentials {
			f.known = ""
			f.inputs[fieldCurrent].Reset()
			return m, f.setFocus(fieldCurrent)
		}
		return m, f.setFocus(fieldNew)
	}

	u := *m.user
	u.MustChangePassword = false
	m.password = newPasswordForm()
	return m, tea.Batch(m.enterDashboard(&u), m.toasts.Success("Password changed"))
}

// =============================================================================
// PASSWORD VIEW
// =============================================================================

func (m *Model) viewPassword() string {
	f := &m.password
	t := m.theme

	rows := []string{
		t.FormTitle.Render("Change your password"),
		t.Muted.Render("Signed in as " + m.user.Username + ". Choose a new password to continue."),
		"",
	}
	labels := []string{"Current password", "New password", "Confirm"}
	for i := f.firstField(); i <= fieldConfirm; i++ {
		label := t.Label
		if i == f.focus {
			label = t.LabelFocus
		}
		rows = append(rows, label.Render(labels[i])+f.inputs[i].View())
	}

	if len(f.policy) > 0 {
		rows = append(rows, "")
		for _, p := range f.policy {
			rows = append(rows, t.WarningText.Render("  - "+p))
		}
	}
	if f.busy {
		rows = append(rows, "", m.spinner.View())
	}
	if f.err != "" {
		rows = append(rows, "", t.ErrorText.Render(styles.StatusIndicators.Error+" "+f.err))
		for _, d := range f.details {
			rows = append(rows, t.ErrorText.Render("  - "+d))
		}
	}
	rows = append(rows, "", t.Muted.Render("enter next/save  esc sign out  ctrl+c quit"))

	box := t.FormBox.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
