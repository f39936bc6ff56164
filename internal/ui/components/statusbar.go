// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/assetdesk/internal/ui/styles"
	"github.com/jeranaias/assetdesk/internal/util"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Shortcut is one key hint shown in the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar is the bottom line of the dashboard.
type StatusBar struct {
	Width int

	Username string
	Role     string
	Client   string
	// ScannerOn is shown as a badge so the user knows scans are captured.
	ScannerOn bool
	// Activity replaces the shortcuts while something is loading.
	Activity  string
	Shortcuts []Shortcut

	theme *styles.Theme
}

// NewStatusBar creates a status bar using theme.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{Width: 80, theme: theme}
}

// SetWidth updates the status bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// SetTheme replaces the theme after a config reload.
func (s *StatusBar) SetTheme(theme *styles.Theme) {
	s.theme = theme
}

// SetUser sets the signed-in user shown on the left.
func (s *StatusBar) SetUser(username, role string) {
	s.Username = username
	s.Role = role
}

// View renders the bar. Narrow terminals drop the role and the shortcuts.
func (s *StatusBar) View() string {
	sep := lipgloss.NewStyle().Foreground(styles.OverlayDim).Render(" | ")

	var left []string
	if s.Username != "" {
		user := s.Username
		if s.Width >= 60 && s.Role != "" {
			user += " (" + s.Role + ")"
		}
		left = append(left, lipgloss.NewStyle().Foreground(styles.TextPrimary).Bold(true).Render(user))
	}
	if s.Client != "" {
		left = append(left, lipgloss.NewStyle().Foreground(styles.Cyan).Render(util.TruncateWidth(s.Client, 24)))
	}
	if s.ScannerOn {
		left = append(left, lipgloss.NewStyle().Foreground(styles.Emerald).Render("SCAN"))
	}
	leftView := strings.Join(left, sep)

	var right string
	switch {
	case s.Activity != "":
		right = s.Activity
	case s.Width >= 60:
		right = s.renderShortcuts()
	}

	gap := s.Width - 2 - lipgloss.Width(leftView) - lipgloss.Width(right)
	if gap < 1 {
		right = ""
		gap = max(s.Width-2-lipgloss.Width(leftView), 0)
	}

	return s.theme.StatusBar.
		Width(s.Width).
		MaxWidth(s.Width).
		Render(leftView + strings.Repeat(" ", gap) + right)
}

func (s *StatusBar) renderShortcuts() string {
	parts := make([]string, 0, len(s.Shortcuts))
	for _, sc := range s.Shortcuts {
		parts = append(parts, s.theme.ShortcutKey.Render(sc.Key)+" "+s.theme.ShortcutDesc.Render(sc.Desc))
	}
	return strings.Join(parts, "  ")
}
