// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scanner recognizes barcode scanner input arriving as keystrokes.
//
// A keyboard-wedge scanner types the code much faster than a person can,
// followed by Enter. Detector buffers keys that arrive close together and
// reports a Scan when Enter completes a long enough burst.
//
//	d := scanner.NewDetector(scanner.Options{})
//	for each key: d.Feed(r, time.Now())
//	on Enter:     if scan, ok := d.Submit(time.Now()); ok { lookup(scan.Code) }
package scanner

import (
	"strings"
	"sync"
	"time"
)

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultMaxInterval is the longest gap between two scanner keystrokes.
	DefaultMaxInterval = 50 * time.Millisecond

	// DefaultMinLength is the shortest code accepted as a scan.
	DefaultMinLength = 4

	// MaxCodeLength is the longest code ValidCode accepts.
	MaxCodeLength = 128
)

// Options tunes a Detector. Zero fields take the defaults.
type Options struct {
	MaxInterval time.Duration
	MinLength   int
}

// Scan is one completed barcode read.
type Scan struct {
	Code string
	At   time.Time
}

// =============================================================================
// DETECTOR
// =============================================================================

// Detector is safe for concurrent use.
type Detector struct {
	mu      sync.Mutex
	opts    Options
	buf     strings.Builder
	started time.Time
	last    time.Time
}

// NewDetector returns a Detector with opts applied over the defaults.
func NewDetector(opts Options) *Detector {
	d := &Detector{}
	d.SetOptions(opts)
	return d
}

// SetOptions replaces the tuning. The current buffer is discarded.
func (d *Detector) SetOptions(opts Options) {
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = DefaultMaxInterval
	}
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts = opts
	d.resetLocked()
}

// Options returns the effective tuning.
func (d *Detector) Options() Options {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts
}

// Feed records a keystroke at time at. A key that arrives more than
// MaxInterval after the previous one starts a new buffer. It reports whether
// the key continued a burst that may still become a scan.
func (d *Detector) Feed(r rune, at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if r < 0x20 || r > 0x7e {
		d.resetLocked()
		return false
	}
	if d.buf.Len() > 0 && at.Sub(d.last) > d.opts.MaxInterval {
		d.resetLocked()
	}
	if d.buf.Len() == 0 {
		d.started = at
	}
	if d.buf.Len() >= MaxCodeLength {
		d.resetLocked()
		return false
	}
	d.buf.WriteRune(r)
	d.last = at
	return d.buf.Len() > 1
}

// Submit handles Enter at time at. It returns the buffered code as a Scan
// when the buffer is at least MinLength and Enter followed the last key within
// MaxInterval. The buffer is cleared either way.
func (d *Detector) Submit(at time.Time) (Scan, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.resetLocked()

	if d.buf.Len() < d.opts.MinLength || at.Sub(d.last) > d.opts.MaxInterval {
		return Scan{}, false
	}
	return Scan{Code: d.buf.String(), At: d.started}, true
}

// Continues reports whether a key arriving at at would extend the current
// buffer rather than start a new one.
func (d *Detector) Continues(at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Len() > 0 && at.Sub(d.last) <= d.opts.MaxInterval
}

// Pending returns the number of buffered keys.
func (d *Detector) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Len()
}

// Reset discards buffered keys.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
}

func (d *Detector) resetLocked() {
	d.buf.Reset()
	d.started = time.Time{}
	d.last = time.Time{}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidCode reports whether s looks like a barcode: printable ASCII without
// surrounding space, DefaultMinLength to MaxCodeLength characters.
func ValidCode(s string) bool {
	if len(s) < DefaultMinLength || len(s) > MaxCodeLength {
		return false
	}
	if strings.TrimSpace(s) != s {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
