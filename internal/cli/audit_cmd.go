// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// audit_cmd.go - Review the security audit log.
//
// Command: audit [show] [flags]
//
// Admin only. Entries are listed newest first.
//
// Flags:
//   --lines N           Number of entries (default 50)
//   --type EVENT        Only this event, e.g. LOGIN_FAILURE
//   --since DURATION    Only entries newer than this, e.g. 24h or 7d
//
// Examples:
//   assetdesk audit
//   assetdesk audit --type ACCOUNT_LOCKED --since 7d
//   assetdesk audit --json --lines 500

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/assetdesk/internal/identity"
	"github.com/jeranaias/assetdesk/internal/util"
)

const auditUsage = "assetdesk audit [show] [--lines n] [--type EVENT] [--since 24h]"

// AuditEntry is one parsed audit log line.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	Actor     string    `json:"actor"`
	Target    string    `json:"target,omitempty"`
	Success   bool      `json:"success"`
	Detail    string    `json:"detail,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
}

// HandleAudit shows recent audit entries.
func HandleAudit(ctx context.Context, app *App, args Args) error {
	if _, err := app.requireLogin(ctx); err != nil {
		return err
	}
	if !app.Identity.HasPermission(identity.RoleAdmin) {
		return &identity.Failure{Kind: identity.KindPermissionDenied, Message: "Admin role required"}
	}

	p := NewArgParser(args.Raw)
	if sub := p.Subcommand(); sub != "" && sub != "show" {
		return ErrUnknownSubcommand("audit", sub, auditUsage)
	}
	lines, err := p.FlagInt("lines", 50)
	if err != nil {
		return &UsageError{Message: err.Error(), Usage: auditUsage}
	}
	var since time.Time
	if s := p.Flag("since"); s != "" {
		d, err := parseRelativeTime(s)
		if err != nil {
			return &UsageError{Message: err.Error(), Usage: auditUsage}
		}
		since = time.Now().Add(-d)
	}

	if !app.Config.Security.AuditEnabled {
		return &UsageError{Message: "audit logging is disabled (security.audit_enabled = false)"}
	}
	entries, err := readAuditEntries(app.Config.Security.AuditLogPath, lines, since, strings.ToUpper(p.Flag("type")))
	if err != nil {
		return err
	}

	if args.JSON {
		if entries == nil {
			entries = []AuditEntry{}
		}
		return writeJSON(app.Out, "audit", entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(app.Out, DimStyle.Render("No audit entries."))
		return nil
	}

	cols := []column{{"TIME", 19}, {"EVENT", 18}, {"ACTOR", 18}, {"TARGET", 14}, {"RESULT", 7}, {"DETAIL", 24}}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		result := "ok"
		if !e.Success {
			result = "FAILED"
		}
		detail := e.Metadata
		if e.Detail != "" {
			detail = e.Detail
		}
		rows = append(rows, []string{
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Event,
			util.TruncateWidth(e.Actor, 18),
			util.TruncateWidth(e.Target, 14),
			result,
			util.TruncateWidth(detail, 24),
		})
	}
	printTable(app.Out, cols, rows)
	return nil
}

// parseAuditLine parses one line of the form
// "timestamp | event | actor | target | status | metadata".
func parseAuditLine(line string) (AuditEntry, error) {
	parts := strings.Split(line, " | ")
	if len(parts) < 5 {
		return AuditEntry{}, errors.New("invalid audit line")
	}
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", strings.TrimSpace(parts[0]), time.Local)
	if err != nil {
		return AuditEntry{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	e := AuditEntry{
		Timestamp: ts,
		Event:     strings.TrimSpace(parts[1]),
		Actor:     strings.TrimSpace(parts[2]),
		Target:    strings.TrimSpace(parts[3]),
	}
	status := strings.TrimSpace(parts[4])
	e.Success = status == "SUCCESS"
	if rest, ok := strings.CutPrefix(status, "FAILURE:"); ok {
		e.Detail = strings.TrimSpace(rest)
	}
	if len(parts) > 5 {
		e.Metadata = strings.TrimSpace(strings.Join(parts[5:], " | "))
	}
	return e, nil
}

// readAuditEntries returns up to limit matching entries, newest first.
// Lines that do not parse are skipped.
func readAuditEntries(path string, limit int, since time.Time, event string) ([]AuditEntry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var entries []AuditEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		e, err := parseAuditLine(sc.Text())
		if err != nil {
			continue
		}
		if !since.IsZero() && e.Timestamp.Before(since) {
			continue
		}
		if event != "" && e.Event != event {
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	// The file is append-only, so reversing gives newest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// parseRelativeTime parses durations like "30m", "24h" or "7d".
func parseRelativeTime(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
