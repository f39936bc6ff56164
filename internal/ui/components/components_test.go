// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/assetdesk/internal/ui/styles"
)

// =============================================================================
// SPINNER TESTS
// =============================================================================

func TestSpinnerStartStop(t *testing.T) {
	s := NewSpinner()
	if s.IsActive() {
		t.Fatal("new spinner should be stopped")
	}
	if s.View() != "" {
		t.Error("stopped spinner should render nothing")
	}

	if cmd := s.Start("Loading assets"); cmd == nil {
		t.Error("Start should return the first tick")
	}
	if !s.IsActive() {
		t.Fatal("spinner should be active after Start")
	}
	if !strings.Contains(s.View(), "Loading assets...") {
		t.Errorf("View() = %q, want message", s.View())
	}

	if cmd := s.Start("Searching"); cmd != nil {
		t.Error("restarting an active spinner should not start a second tick loop")
	}
	if !strings.Contains(s.View(), "Searching") {
		t.Error("restart should replace the message")
	}

	s.Stop()
	if s.IsActive() {
		t.Error("spinner should be stopped")
	}
	if _, cmd := s.Update(nil); cmd != nil {
		t.Error("stopped spinner should drop ticks")
	}
}

func TestSpinnerTimer(t *testing.T) {
	now := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	s := NewSpinner()
	s.now = func() time.Time { return now }
	s.Start("Loading")

	if strings.Contains(s.View(), "(") {
		t.Error("timer should be hidden for the first second")
	}
	now = now.Add(75 * time.Second)
	if !strings.Contains(s.View(), "(1m 15s)") {
		t.Errorf("View() = %q, want elapsed time", s.View())
	}
	s.SetShowTimer(false)
	if strings.Contains(s.View(), "(") {
		t.Error("timer should be hidden when disabled")
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{59 * time.Second, "59s"},
		{60 * time.Second, "1m 00s"},
		{125 * time.Second, "2m 05s"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.d); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

// =============================================================================
// SESSION OVERLAY TESTS
// =============================================================================

func TestSessionOverlayCheck(t *testing.T) {
	o := NewSessionOverlay()
	o.SetThreshold(2 * time.Minute)

	if o.Check(10 * time.Minute) {
		t.Error("overlay should stay hidden well before the deadline")
	}
	if !o.Check(90 * time.Second) {
		t.Error("overlay should show inside the threshold")
	}
	if !strings.Contains(o.View(), "1:30") {
		t.Errorf("View() should show the countdown, got %q", o.View())
	}
	if o.Check(0) {
		t.Error("an ended session is not warned about")
	}

	o.Check(time.Minute)
	o.Hide()
	if o.IsVisible() || o.View() != "" {
		t.Error("Hide should hide the overlay")
	}
}

func TestSessionOverlayThresholdDefault(t *testing.T) {
	o := NewSessionOverlay()
	o.SetThreshold(-1)
	if o.Threshold() != DefaultWarningThreshold {
		t.Errorf("Threshold() = %v, want default", o.Threshold())
	}
}

func TestFormatCountdown(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "0:00"},
		{0, "0:00"},
		{9 * time.Second, "0:09"},
		{5*time.Minute + 30*time.Second, "5:30"},
	}
	for _, tt := range tests {
		if got := FormatCountdown(tt.d); got != tt.want {
			t.Errorf("FormatCountdown(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

// =============================================================================
// STATUS BAR TESTS
// =============================================================================

func TestStatusBarView(t *testing.T) {
	bar := NewStatusBar(styles.NewTheme())
	bar.SetWidth(120)
	bar.SetUser("jsmith", "technician")
	bar.Client = "acme_corp"
	bar.ScannerOn = true
	bar.Shortcuts = []Shortcut{{"?", "help"}, {"^L", "logout"}}

	view := bar.View()
	for _, want := range []string{"jsmith (technician)", "acme_corp", "SCAN", "help", "logout"} {
		if !strings.Contains(view, want) {
			t.Errorf("status bar missing %q: %q", want, view)
		}
	}

	bar.Activity = "Loading assets"
	if strings.Contains(bar.View(), "logout") {
		t.Error("activity should replace the shortcuts")
	}
}

func TestStatusBarNarrow(t *testing.T) {
	bar := NewStatusBar(styles.NewTheme())
	bar.SetWidth(40)
	bar.SetUser("jsmith", "technician")
	bar.Shortcuts = []Shortcut{{"?", "help"}}

	view := bar.View()
	if strings.Contains(view, "technician") || strings.Contains(view, "help") {
		t.Errorf("narrow bar should drop role and shortcuts: %q", view)
	}
	if !strings.Contains(view, "jsmith") {
		t.Error("narrow bar should keep the username")
	}
}

// =============================================================================
// TOAST TESTS
// =============================================================================

func TestToastsExpire(t *testing.T) {
	now := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	toasts := NewToasts()
	toasts.SetClock(func() time.Time { return now })

	if cmd := toasts.Success("Found LAP-0042"); cmd == nil {
		t.Error("Add should schedule a tick")
	}
	toasts.Error("No asset with barcode 0000")

	items := toasts.Items()
	if len(items) != 2 || items[0].Kind != ToastError {
		t.Fatalf("Items() = %+v, want newest first", items)
	}

	now = now.Add(DefaultToastDuration)
	toasts.Prune()
	items = toasts.Items()
	if len(items) != 1 || items[0].Kind != ToastError {
		t.Fatalf("success toast should expire first, got %+v", items)
	}

	now = now.Add(ErrorToastDuration)
	toasts.Prune()
	if len(toasts.Items()) != 0 {
		t.Error("error toast should expire")
	}
}

func TestToastsCapped(t *testing.T) {
	toasts := NewToasts()
	for i := 0; i < maxToasts+2; i++ {
		toasts.Info("scan")
	}
	if len(toasts.Items()) != maxToasts {
		t.Errorf("len = %d, want %d", len(toasts.Items()), maxToasts)
	}
	toasts.Clear()
	if toasts.View(80) != "" {
		t.Error("cleared stack should render nothing")
	}
}

func TestToastView(t *testing.T) {
	toasts := NewToasts()
	toasts.Warning("Scanner input ignored: no client selected")
	view := toasts.View(30)
	if !strings.Contains(view, styles.StatusIndicators.Warning) {
		t.Errorf("View() = %q, want warning indicator", view)
	}
	if !strings.Contains(view, "...") {
		t.Errorf("View() = %q, want truncation", view)
	}
}
