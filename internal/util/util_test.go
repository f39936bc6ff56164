// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := []byte("[store]\npath = \"x\"\n")

	if err := AtomicWriteFile(path, data, 0644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("Content mismatch: got %q, want %q", content, data)
	}
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.key")

	if err := AtomicWriteFile(path, []byte("initial"), 0600); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("replaced"), 0600); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "replaced" {
		t.Errorf("Expected 'replaced', got %q", content)
	}

	// No temp files left behind
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("Expected 1 file in directory, found %d", len(entries))
	}
}

func TestAtomicWriteFileWithDir_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX permissions")
	}
	dir := filepath.Join(t.TempDir(), "keys")
	path := filepath.Join(dir, "master.key")

	if err := AtomicWriteFileWithDir(path, []byte("k"), 0600, 0700); err != nil {
		t.Fatalf("AtomicWriteFileWithDir failed: %v", err)
	}

	dirInfo, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if dirInfo.Mode().Perm() != 0700 {
		t.Errorf("dir mode = %o, want 700", dirInfo.Mode().Perm())
	}
	fileInfo, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat file: %v", err)
	}
	if fileInfo.Mode().Perm() != 0600 {
		t.Errorf("file mode = %o, want 600", fileInfo.Mode().Perm())
	}
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		input    string
		max      int
		expected string
	}{
		{"laptop", 10, "laptop"},
		{"ThinkPad X1 Carbon", 10, "ThinkPa..."},
		{"abc", 0, ""},
		{"abcdef", 2, "ab"},
		{"日本語テキスト", 5, "日本..."},
	}

	for _, tt := range tests {
		if got := TruncateRunes(tt.input, tt.max); got != tt.expected {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.expected)
		}
	}
}

func TestTruncateWidth_WideCharacters(t *testing.T) {
	// Each CJK character occupies two columns.
	if got := StringWidth("東京"); got != 4 {
		t.Fatalf("StringWidth = %d, want 4", got)
	}
	got := TruncateWidth("東京オフィス", 7)
	if StringWidth(got) > 7 {
		t.Errorf("TruncateWidth result %q is %d columns wide", got, StringWidth(got))
	}
	if TruncateWidth("rack", 10) != "rack" {
		t.Error("short strings must be returned unchanged")
	}
}

func TestPadRight(t *testing.T) {
	if got := PadRight("SN-1", 6); got != "SN-1  " {
		t.Errorf("PadRight = %q", got)
	}
	if got := PadRight("東京", 6); StringWidth(got) != 6 {
		t.Errorf("PadRight width = %d, want 6", StringWidth(got))
	}
	if got := PadRight("a very long serial number", 8); StringWidth(got) != 8 {
		t.Errorf("PadRight should truncate to width, got %q", got)
	}
}

func TestCeilMinutes(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 0},
		{-time.Second, 0},
		{10 * time.Second, 1},
		{time.Minute, 1},
		{time.Minute + time.Millisecond, 2},
		{30 * time.Minute, 30},
	}
	for _, tt := range tests {
		if got := CeilMinutes(tt.in); got != tt.want {
			t.Errorf("CeilMinutes(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" acme, ,globex,, initech ")
	want := []string{"acme", "globex", "initech"}
	if len(got) != len(want) {
		t.Fatalf("SplitCSV = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SplitCSV[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if SplitCSV("") != nil {
		t.Error("empty input should yield nil")
	}
}
