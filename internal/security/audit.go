// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT
// =============================================================================

// AuditEvent is a single security-relevant event.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Actor     string            `json:"actor,omitempty"`
	Target    string            `json:"target,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ToLogLine formats the event as a single pipe-separated line.
func (e *AuditEvent) ToLogLine() string {
	status := "SUCCESS"
	if !e.Success {
		status = "FAILURE"
		if e.Error != "" {
			status = "FAILURE: " + e.Error
		}
	}

	var meta []string
	if len(e.Metadata) > 0 {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			meta = append(meta, k+"="+e.Metadata[k])
		}
	}

	return fmt.Sprintf("%s | %s | %s | %s | %s | %s",
		e.Timestamp.Format("2006-01-02 15:04:05"),
		e.EventType,
		e.Actor,
		e.Target,
		status,
		strings.Join(meta, " "),
	)
}

// ToJSON formats the event as JSON.
func (e *AuditEvent) ToJSON() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// =============================================================================
// REDACTION
// =============================================================================

// Redactor replaces sensitive data in a string.
type Redactor interface {
	Redact(input string) string
	Name() string
}

// PatternRedactor redacts text matching a regex pattern.
type PatternRedactor struct {
	name    string
	pattern *regexp.Regexp
	replace string
}

// NewPatternRedactor creates a new pattern-based redactor.
func NewPatternRedactor(name string, pattern *regexp.Regexp, replace string) *PatternRedactor {
	return &PatternRedactor{name: name, pattern: pattern, replace: replace}
}

// Redact replaces matches with the replacement string.
func (r *PatternRedactor) Redact(input string) string {
	return r.pattern.ReplaceAllString(input, r.replace)
}

// Name returns the redactor name.
func (r *PatternRedactor) Name() string {
	return r.name
}

var secretPatterns = []struct {
	name    string
	pattern *regexp.Regexp
	replace string
}{
	{"Password", regexp.MustCompile(`(?i)(password|passwd|pwd|secret)\s*[=:]\s*\S+`), "[PASSWORD_REDACTED]"},
	{"DSN", regexp.MustCompile(`(postgres(?:ql)?://[^:/\s]+):[^@\s]+@`), "$1:[REDACTED]@"},
	{"Bearer", regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-_.]+`), "Bearer [TOKEN_REDACTED]"},
	{"JWT", regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), "[JWT_REDACTED]"},
	{"OTPAuth", regexp.MustCompile(`otpauth://\S+`), "[OTPAUTH_REDACTED]"},
	{"Bcrypt", regexp.MustCompile(`\$2[aby]\$\d{2}\$[./A-Za-z0-9]{53}`), "[HASH_REDACTED]"},
	{"AWS", regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "[AWS_KEY_REDACTED]"},
	{"GitHub", regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{36,}`), "[GITHUB_TOKEN_REDACTED]"},
}

func defaultRedactors() []Redactor {
	redactors := make([]Redactor, 0, len(secretPatterns))
	for _, sp := range secretPatterns {
		redactors = append(redactors, NewPatternRedactor(sp.name, sp.pattern, sp.replace))
	}
	return redactors
}

// Redact runs input through the default redactors.
func Redact(input string) string {
	for _, r := range defaultRedactors() {
		input = r.Redact(input)
	}
	return input
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

// AuditLogger appends redacted audit events to a file, one line per event.
// Each write is synced before Log returns.
type AuditLogger struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	enabled   bool
	redactors []Redactor
	now       func() time.Time
}

// NewAuditLogger opens (or creates) the audit log at path.
func NewAuditLogger(path string) (*AuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &AuditLogger{
		path:      path,
		file:      file,
		enabled:   true,
		redactors: defaultRedactors(),
		now:       time.Now,
	}, nil
}

// Path returns the audit log location.
func (l *AuditLogger) Path() string {
	return l.path
}

// SetEnabled turns logging on or off without closing the file.
func (l *AuditLogger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// AddRedactor appends a custom redactor.
func (l *AuditLogger) AddRedactor(r Redactor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.redactors = append(l.redactors, r)
}

// Log writes event to the audit file.
func (l *AuditLogger) Log(event AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || l.file == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}

	event.Error = l.redactLocked(event.Error)
	if event.Metadata != nil {
		redacted := make(map[string]string, len(event.Metadata))
		for k, v := range event.Metadata {
			redacted[k] = l.redactLocked(v)
		}
		event.Metadata = redacted
	}

	if _, err := fmt.Fprintln(l.file, event.ToLogLine()); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	return nil
}

// LogEvent is a convenience wrapper around Log.
func (l *AuditLogger) LogEvent(eventType, actor string, success bool, metadata map[string]string) error {
	return l.Log(AuditEvent{
		EventType: eventType,
		Actor:     actor,
		Success:   success,
		Metadata:  metadata,
	})
}

func (l *AuditLogger) redactLocked(input string) string {
	for _, r := range l.redactors {
		input = r.Redact(input)
	}
	return input
}

// Tail returns up to the last n lines of the audit log.
func (l *AuditLogger) Tail(n int) ([]string, error) {
	l.mu.Lock()
	path := l.path
	l.mu.Unlock()
	return TailAuditLog(path, n)
}

// TailAuditLog returns up to the last n lines of the audit log at path.
func TailAuditLog(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return lines, nil
}

// Close closes the audit log file.
func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
