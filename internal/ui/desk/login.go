// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package desk

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/assetdesk/internal/identity"
	"github.com/jeranaias/assetdesk/internal/ui/styles"
)

// =============================================================================
// LOGIN FORM
// =============================================================================

const (
	fieldUsername = iota
	fieldPassword
	fieldOTP
)

// loginForm collects credentials. The code field appears only after the
// account asks for one.
type loginForm struct {
	inputs  []textinput.Model
	focus   int
	showOTP bool

	// err is the last failure; notice is neutral information such as an
	// expired session.
	err      string
	notice   string
	firstRun bool
	busy     bool
}

func newLoginForm() loginForm {
	username := textinput.New()
	username.Placeholder = "username"
	username.CharLimit = 64
	username.Prompt = ""

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'
	password.CharLimit = 128
	password.Prompt = ""

	otp := textinput.New()
	otp.Placeholder = "6-digit code"
	otp.CharLimit = 8
	otp.Prompt = ""

	f := loginForm{inputs: []textinput.Model{username, password, otp}}
	f.inputs[fieldUsername].Focus()
	return f
}

// reset clears every field but keeps the notice.
func (f *loginForm) reset() {
	for i := range f.inputs {
		f.inputs[i].Reset()
	}
	f.showOTP = false
	f.err = ""
	f.busy = false
	f.setFocus(fieldUsername)
}

func (f *loginForm) fieldCount() int {
	if f.showOTP {
		return 3
	}
	return 2
}

func (f *loginForm) setFocus(i int) tea.Cmd {
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

func (f *loginForm) credentials() identity.Credentials {
	creds := identity.Credentials{
		Username: strings.TrimSpace(f.inputs[fieldUsername].Value()),
		Password: f.inputs[fieldPassword].Value(),
	}
	if f.showOTP {
		creds.OTP = strings.TrimSpace(f.inputs[fieldOTP].Value())
	}
	return creds
}

// =============================================================================
// LOGIN UPDATE
// =============================================================================

func (m *Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.login
	if f.busy {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.AutoLogin) && f.firstRun:
		f.busy = true
		f.err = ""
		return m, tea.Batch(m.autoLoginCmd(), m.spinner.Start("Signing in"))

	case key.Matches(msg, m.keys.NextFocus), msg.Type == tea.KeyDown:
		return m, f.setFocus((f.focus + 1) % f.fieldCount())

	case key.Matches(msg, m.keys.PrevFocus), msg.Type == tea.KeyUp:
		return m, f.setFocus((f.focus + f.fieldCount() - 1) % f.fieldCount())

	case key.Matches(msg, m.keys.Select):
		if f.focus == fieldUsername && f.inputs[fieldPassword].Value() == "" {
			return m, f.setFocus(fieldPassword)
		}
		f.busy = true
		f.err = ""
		return m, tea.Batch(m.loginCmd(f.credentials()), m.spinner.Start("Signing in"))
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return m, cmd
}

func (m *Model) handleLoginDone(msg loginDoneMsg) (tea.Model, tea.Cmd) {
	f := &m.login
	f.busy = false
	m.spinner.Stop()

	if msg.err != nil {
		f.err = "Sign in failed: " + msg.err.Error()
		return m, nil
	}
	if !msg.res.Success {
		fail := msg.res.Failure
		f.inputs[fieldPassword].Reset()
		if fail.Kind == identity.KindMFARequired && !f.showOTP {
			f.showOTP = true
			f.inputs[fieldPassword].SetValue(msg.password)
			f.notice = fail.Message
			return m, f.setFocus(fieldOTP)
		}
		f.inputs[fieldOTP].Reset()
		f.err = fail.Message
		if f.inputs[fieldUsername].Value() == "" {
			return m, f.setFocus(fieldUsername)
		}
		return m, f.setFocus(fieldPassword)
	}

	data := msg.res.Data
	f.reset()
	f.notice = ""
	f.firstRun = false
	user := data.User
	m.logger.Info("signed in", "user", user.Username, "default_admin", msg.auto)
	if data.PasswordChangeRequired {
		return m, m.enterPasswordChange(&user, msg.password)
	}
	return m, m.enterDashboard(&user)
}

// =============================================================================
// LOGIN VIEW
// =============================================================================

func (m *Model) viewLogin() string {
	f := &m.login
	t := m.theme

	labels := []string{"Username", "Password", "Authentication code"}
	rows := []string{t.FormTitle.Render("assetdesk") + "\n" + t.Muted.Render("Sign in to continue")}
	for i := 0; i < f.fieldCount(); i++ {
		label := t.Label
		if i == f.focus {
			label = t.LabelFocus
		}
		rows = append(rows, label.Render(labels[i])+f.inputs[i].View())
	}

	if f.busy {
		rows = append(rows, "", m.spinner.View())
	}
	if f.err != "" {
		rows = append(rows, "", t.ErrorText.Render(styles.StatusIndicators.Error+" "+f.err))
	}
	if f.notice != "" {
		rows = append(rows, "", t.WarningText.Render(f.notice))
	}
	if f.firstRun {
		rows = append(rows, "", t.Hint.Render("First run: press ctrl+a to sign in as the default admin.\nYou will be asked to choose a new password."))
	}
	rows = append(rows, "", t.Muted.Render("enter sign in  tab next field  ctrl+c quit"))

	box := t.FormBox.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
