// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package scanner

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

// feed types s with gap between keys and returns the time of the last key.
func feed(d *Detector, s string, start time.Time, gap time.Duration) time.Time {
	at := start
	for i, r := range s {
		if i > 0 {
			at = at.Add(gap)
		}
		d.Feed(r, at)
	}
	return at
}

// =============================================================================
// DETECTOR
// =============================================================================

func TestFastBurstIsScan(t *testing.T) {
	d := NewDetector(Options{})
	last := feed(d, "BC-12345", t0, 5*time.Millisecond)

	scan, ok := d.Submit(last.Add(5 * time.Millisecond))
	require.True(t, ok)
	require.Equal(t, "BC-12345", scan.Code)
	require.Equal(t, t0, scan.At)
	require.Zero(t, d.Pending())
}

func TestHumanTypingIsNotScan(t *testing.T) {
	d := NewDetector(Options{})
	last := feed(d, "laptop", t0, 180*time.Millisecond)

	require.Equal(t, 1, d.Pending(), "each slow key restarts the buffer")
	_, ok := d.Submit(last.Add(100 * time.Millisecond))
	require.False(t, ok)
}

func TestShortBurstIsNotScan(t *testing.T) {
	d := NewDetector(Options{})
	last := feed(d, "abc", t0, time.Millisecond)
	_, ok := d.Submit(last.Add(time.Millisecond))
	require.False(t, ok)
}

func TestSlowEnterIsNotScan(t *testing.T) {
	d := NewDetector(Options{})
	last := feed(d, "BC-12345", t0, time.Millisecond)
	_, ok := d.Submit(last.Add(time.Second))
	require.False(t, ok)
}

func TestSlowKeyRestartsBuffer(t *testing.T) {
	d := NewDetector(Options{})
	last := feed(d, "xy", t0, time.Millisecond)
	last = feed(d, "CODE1", last.Add(time.Second), time.Millisecond)

	scan, ok := d.Submit(last.Add(time.Millisecond))
	require.True(t, ok)
	require.Equal(t, "CODE1", scan.Code)
}

func TestContinues(t *testing.T) {
	d := NewDetector(Options{})
	require.False(t, d.Continues(t0), "empty buffer")

	last := feed(d, "p", t0, 0)
	require.Equal(t, 1, d.Pending())
	require.True(t, d.Continues(last.Add(DefaultMaxInterval)))
	require.False(t, d.Continues(last.Add(time.Second)), "a slow key starts a new buffer")
}

func TestControlKeyResets(t *testing.T) {
	d := NewDetector(Options{})
	last := feed(d, "ABCD", t0, time.Millisecond)
	d.Feed('\t', last)
	require.Zero(t, d.Pending())
}

func TestCustomOptions(t *testing.T) {
	d := NewDetector(Options{MaxInterval: 200 * time.Millisecond, MinLength: 2})
	require.Equal(t, 200*time.Millisecond, d.Options().MaxInterval)

	last := feed(d, "ok", t0, 150*time.Millisecond)
	scan, ok := d.Submit(last.Add(150 * time.Millisecond))
	require.True(t, ok)
	require.Equal(t, "ok", scan.Code)

	d.SetOptions(Options{})
	require.Equal(t, DefaultMaxInterval, d.Options().MaxInterval)
	require.Equal(t, DefaultMinLength, d.Options().MinLength)
}

func TestOverlongBurstIsDropped(t *testing.T) {
	d := NewDetector(Options{})
	feed(d, strings.Repeat("9", MaxCodeLength+1), t0, time.Microsecond)
	require.Zero(t, d.Pending())
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidCode(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"BC-0001", true},
		{"0123456789012", true},
		{"abc", false},
		{" BC-1", false},
		{"BC\t01", false},
		{"BC-é01", false},
		{strings.Repeat("x", MaxCodeLength), true},
		{strings.Repeat("x", MaxCodeLength+1), false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ValidCode(tt.in), "ValidCode(%q)", tt.in)
	}
}
