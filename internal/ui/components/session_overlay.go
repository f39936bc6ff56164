// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/assetdesk/internal/ui/styles"
)

// DefaultWarningThreshold is how long before the idle deadline the warning
// appears when no threshold is configured.
const DefaultWarningThreshold = 5 * time.Minute

// =============================================================================
// SESSION OVERLAY
// =============================================================================

// SessionOverlay warns that an idle session is about to end. Any key
// dismisses it; the key press itself counts as activity.
type SessionOverlay struct {
	visible       bool
	timeRemaining time.Duration
	threshold     time.Duration

	width  int
	height int
}

// NewSessionOverlay creates a hidden overlay with the default threshold.
func NewSessionOverlay() SessionOverlay {
	return SessionOverlay{threshold: DefaultWarningThreshold}
}

// SetSize sets the area the overlay is centered in.
func (o *SessionOverlay) SetSize(width, height int) {
	o.width = width
	o.height = height
}

// SetThreshold sets how early the warning appears. Non-positive values
// restore the default.
func (o *SessionOverlay) SetThreshold(threshold time.Duration) {
	if threshold <= 0 {
		threshold = DefaultWarningThreshold
	}
	o.threshold = threshold
}

// Threshold returns the warning lead time.
func (o *SessionOverlay) Threshold() time.Duration {
	return o.threshold
}

// Check shows or hides the overlay for the time left before the session
// ends. It reports whether the overlay is visible afterwards.
func (o *SessionOverlay) Check(remaining time.Duration) bool {
	o.timeRemaining = remaining
	o.visible = remaining > 0 && remaining <= o.threshold
	return o.visible
}

// Hide hides the overlay.
func (o *SessionOverlay) Hide() {
	o.visible = false
}

// IsVisible returns whether the overlay is currently visible.
func (o *SessionOverlay) IsVisible() bool {
	return o.visible
}

// TimeRemaining returns the last remaining time passed to Check.
func (o *SessionOverlay) TimeRemaining() time.Duration {
	return o.timeRemaining
}

// =============================================================================
// RENDERING
// =============================================================================

// View renders the warning box centered in the overlay's area, or nothing
// when hidden.
func (o SessionOverlay) View() string {
	if !o.visible {
		return ""
	}
	width, height := o.width, o.height
	if width == 0 {
		width = 60
	}
	if height == 0 {
		height = 24
	}
	boxWidth := min(max(width-8, 40), 60)

	title := lipgloss.NewStyle().
		Foreground(styles.Amber).
		Bold(true).
		Render(styles.StatusIndicators.Warning + " Session expiring")
	body := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(boxWidth - 8).
		Align(lipgloss.Center).
		Render("You will be signed out for inactivity in " +
			lipgloss.NewStyle().Foreground(styles.Amber).Bold(true).Render(FormatCountdown(o.timeRemaining)))
	hint := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Italic(true).
		Render("Press any key to stay signed in")

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(styles.Amber).
		Padding(1, 3).
		Width(boxWidth).
		Align(lipgloss.Center).
		Render(lipgloss.JoinVertical(lipgloss.Center, title, "", body, "", hint))

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box,
		lipgloss.WithWhitespaceBackground(styles.SurfaceDim))
}

// FormatCountdown formats a duration as M:SS. Negative durations are 0:00.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
