// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/assetdesk/internal/ui/styles"
	"github.com/jeranaias/assetdesk/internal/util"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// ToastKind selects a toast's color and indicator.
type ToastKind int

const (
	ToastInfo ToastKind = iota
	ToastSuccess
	ToastWarning
	ToastError
)

const (
	// DefaultToastDuration applies to info and success toasts.
	DefaultToastDuration = 4 * time.Second
	// ErrorToastDuration is longer so errors can be read.
	ErrorToastDuration = 8 * time.Second
	// maxToasts is how many toasts are kept at once.
	maxToasts = 3
)

// Toast is one auto-dismissing notice.
type Toast struct {
	Message   string
	Kind      ToastKind
	CreatedAt time.Time
	Duration  time.Duration
}

func (t Toast) expired(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Duration
}

// =============================================================================
// TOAST STACK
// =============================================================================

// Toasts is a newest-first stack of notices. It is owned by a single Bubble
// Tea model and is not safe for concurrent use.
type Toasts struct {
	items []Toast
	now   func() time.Time
}

// NewToasts returns an empty stack.
func NewToasts() *Toasts {
	return &Toasts{now: time.Now}
}

// SetClock replaces time.Now, for tests.
func (s *Toasts) SetClock(now func() time.Time) {
	s.now = now
}

// Add pushes a notice and returns the tick that will expire it.
func (s *Toasts) Add(kind ToastKind, message string) tea.Cmd {
	d := DefaultToastDuration
	if kind == ToastError || kind == ToastWarning {
		d = ErrorToastDuration
	}
	s.items = append([]Toast{{Message: message, Kind: kind, CreatedAt: s.now(), Duration: d}}, s.items...)
	if len(s.items) > maxToasts {
		s.items = s.items[:maxToasts]
	}
	return tea.Tick(d, func(t time.Time) tea.Msg { return ToastTickMsg{Time: t} })
}

// Info, Success, Warning and Error are shorthands for Add.
func (s *Toasts) Info(message string) tea.Cmd    { return s.Add(ToastInfo, message) }
func (s *Toasts) Success(message string) tea.Cmd { return s.Add(ToastSuccess, message) }
func (s *Toasts) Warning(message string) tea.Cmd { return s.Add(ToastWarning, message) }
func (s *Toasts) Error(message string) tea.Cmd   { return s.Add(ToastError, message) }

// Prune drops expired notices.
func (s *Toasts) Prune() {
	now := s.now()
	live := s.items[:0]
	for _, t := range s.items {
		if !t.expired(now) {
			live = append(live, t)
		}
	}
	s.items = live
}

// Items returns the current notices, newest first.
func (s *Toasts) Items() []Toast {
	out := make([]Toast, len(s.items))
	copy(out, s.items)
	return out
}

// Clear removes every notice.
func (s *Toasts) Clear() {
	s.items = nil
}

// ToastTickMsg asks the owner to Prune.
type ToastTickMsg struct {
	Time time.Time
}

// =============================================================================
// TOAST RENDERING
// =============================================================================

// View renders the stack, one line per notice, truncated to width.
func (s *Toasts) View(width int) string {
	if len(s.items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(s.items))
	for _, t := range s.items {
		lines = append(lines, renderToast(t, width))
	}
	return strings.Join(lines, "\n")
}

func renderToast(t Toast, width int) string {
	var indicator string
	var color lipgloss.AdaptiveColor
	switch t.Kind {
	case ToastSuccess:
		indicator, color = styles.StatusIndicators.Success, styles.Emerald
	case ToastWarning:
		indicator, color = styles.StatusIndicators.Warning, styles.Amber
	case ToastError:
		indicator, color = styles.StatusIndicators.Error, styles.Rose
	default:
		indicator, color = styles.StatusIndicators.Info, styles.Cyan
	}
	text := indicator + " " + t.Message
	if width > 4 {
		text = util.TruncateWidth(text, width-2)
	}
	return lipgloss.NewStyle().Foreground(color).PaddingLeft(1).Render(text)
}
