// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared lipgloss styles for command output.

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/assetdesk/internal/directory"
	"github.com/jeranaias/assetdesk/internal/identity"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	// LabelStyle is used for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(20)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255"))
)

// =============================================================================
// HELPERS
// =============================================================================

// RenderSeparator renders a horizontal rule, 70 columns by default.
func RenderSeparator(width ...int) string {
	w := 70
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return SeparatorStyle.Render(strings.Repeat("=", w))
}

// RenderLabel renders a fixed-width label.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}

// RenderRole colors a role by privilege.
func RenderRole(r identity.Role) string {
	switch r {
	case identity.RoleAdmin:
		return ErrorStyle.Render(string(r))
	case identity.RoleTechnician:
		return WarningStyle.Render(string(r))
	default:
		return ValueStyle.Render(string(r))
	}
}

// RenderAssetStatus colors an asset status.
func RenderAssetStatus(s directory.Status) string {
	switch s {
	case directory.StatusActive:
		return SuccessStyle.Render(string(s))
	case directory.StatusInRepair:
		return WarningStyle.Render(string(s))
	case directory.StatusMissing:
		return ErrorStyle.Render(string(s))
	default:
		return DimStyle.Render(string(s))
	}
}

// RenderYesNo renders a boolean as yes/no.
func RenderYesNo(b bool) string {
	if b {
		return SuccessStyle.Render("yes")
	}
	return DimStyle.Render("no")
}
