// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"sync"
	"time"
)

// =============================================================================
// RATE LIMIT CONSTANTS
// =============================================================================

const (
	// DefaultLoginAttempts is the number of login attempts allowed per window.
	DefaultLoginAttempts = 5

	// DefaultLoginWindow is the fixed window login attempts are counted in.
	DefaultLoginWindow = 15 * time.Minute
)

// =============================================================================
// ATTEMPT WINDOW
// =============================================================================

// AttemptWindow tracks attempts for one identifier within a fixed window.
type AttemptWindow struct {
	// Count is the number of attempts admitted in the current window.
	Count int `json:"count"`

	// ResetAt is when the window closes and counting starts over.
	ResetAt time.Time `json:"reset_at"`
}

// expired reports whether the window has closed at now.
func (w *AttemptWindow) expired(now time.Time) bool {
	return !now.Before(w.ResetAt)
}

// =============================================================================
// RATE LIMITER
// =============================================================================

// RateLimiter is a fixed-window attempt counter keyed by identifier.
// It is safe for concurrent use; the check and the increment happen under
// one lock so two racing attempts cannot both take the last slot.
//
// State is in memory only and does not survive a restart. Persistent
// per-account lockout lives on the user record instead.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*AttemptWindow
	now     func() time.Time
}

// RateLimiterOption is a functional option for configuring RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithClock replaces time.Now, for tests that need to move time forward.
func WithClock(now func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRateLimiter creates an empty rate limiter.
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		windows: make(map[string]*AttemptWindow),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsAllowed records an attempt for id and reports whether it is admitted.
//
// A missing or expired window starts fresh with a count of 1. Within a live
// window the attempt is admitted and counted while count < maxAttempts;
// once the limit is reached further attempts are denied and not counted.
func (r *RateLimiter) IsAllowed(id string, maxAttempts int, window time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	w, ok := r.windows[id]
	if !ok || w.expired(now) {
		if maxAttempts <= 0 {
			return false
		}
		r.windows[id] = &AttemptWindow{Count: 1, ResetAt: now.Add(window)}
		return true
	}

	if w.Count < maxAttempts {
		w.Count++
		return true
	}
	return false
}

// Reset forgets id entirely. Call it only after a genuine success.
func (r *RateLimiter) Reset(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.windows, id)
}

// RemainingTime returns how long until the window for id resets, or 0 when
// there is no live window.
func (r *RateLimiter) RemainingTime(id string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[id]
	if !ok {
		return 0
	}
	remaining := w.ResetAt.Sub(r.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingMillis is RemainingTime in whole milliseconds.
func (r *RateLimiter) RemainingMillis(id string) int64 {
	return r.RemainingTime(id).Milliseconds()
}

// Snapshot returns a copy of the window for id, if one exists.
func (r *RateLimiter) Snapshot(id string) (AttemptWindow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[id]
	if !ok {
		return AttemptWindow{}, false
	}
	return *w, true
}

// Cleanup drops expired windows and returns how many were removed.
func (r *RateLimiter) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, w := range r.windows {
		if w.expired(now) {
			delete(r.windows, id)
			removed++
		}
	}
	return removed
}
