// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styles for every screen. It detects the terminal's color
// capability once and honors a forced light or dark mode.
type Theme struct {
	// Terminal capabilities
	Mode         string
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile
	Compact      bool

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER AND STATUS BAR
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderMeta  lipgloss.Style

	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// PANELS
	// ==========================================================================

	Panel            lipgloss.Style
	PanelFocused     lipgloss.Style
	PanelTitle       lipgloss.Style
	ListItem         lipgloss.Style
	ListItemSelected lipgloss.Style
	ListItemActive   lipgloss.Style

	// ==========================================================================
	// FORMS
	// ==========================================================================

	FormBox    lipgloss.Style
	FormTitle  lipgloss.Style
	Label      lipgloss.Style
	LabelFocus lipgloss.Style
	Hint       lipgloss.Style

	// ==========================================================================
	// TEXT
	// ==========================================================================

	ErrorText   lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	Muted       lipgloss.Style

	// ==========================================================================
	// OVERLAYS
	// ==========================================================================

	OverlayBox   lipgloss.Style
	OverlayTitle lipgloss.Style
}

// NewTheme returns a theme for the detected terminal background.
func NewTheme() *Theme {
	return NewThemeFor("auto")
}

// NewThemeFor returns a theme for mode: "dark", "light", or "auto" to detect
// the background.
func NewThemeFor(mode string) *Theme {
	colorProfile := termenv.ColorProfile()

	mode = strings.ToLower(strings.TrimSpace(mode))
	var isDark bool
	switch mode {
	case "dark":
		isDark = true
		lipgloss.SetHasDarkBackground(true)
	case "light":
		isDark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		mode = "auto"
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{
		Mode:         mode,
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextPrimary).
		Padding(0, 1)
	t.HeaderBrand = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.HeaderMeta = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(OverlayDim).
		Padding(0, 1)
	t.PanelFocused = t.Panel.
		BorderForeground(Cyan)
	t.PanelTitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)
	t.ListItem = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.ListItemSelected = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Cyan).
		Bold(true)
	t.ListItemActive = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.FormBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(1, 3)
	t.FormTitle = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true).
		MarginBottom(1)
	t.Label = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Width(18)
	t.LabelFocus = t.Label.
		Foreground(Cyan).
		Bold(true)
	t.Hint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.ErrorText = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.SuccessText = lipgloss.NewStyle().Foreground(Emerald)
	t.WarningText = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)

	t.OverlayBox = lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Purple).
		Padding(1, 2)
	t.OverlayTitle = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)
}

// TableStyles returns bubbles table styles matching the theme.
func (t *Theme) TableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(OverlayDim).
		BorderBottom(true).
		Foreground(TextSecondary).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(TextInverse).
		Background(CyanDeep).
		Bold(false)
	return s
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width. Compact
// mode always reports LayoutNarrow.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Compact || t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns: client list hidden
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns: every asset column shown
)
