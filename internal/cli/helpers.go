// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - Formatting helpers shared by command handlers.

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeranaias/assetdesk/internal/util"
)

// formatDuration formats a duration coarsely for display.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// formatTime renders t in local time, or "-" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return formatTime(*t)
}

// =============================================================================
// TABLES
// =============================================================================

// column is one table column: a header and its display width.
type column struct {
	title string
	width int
}

// printTable writes rows under a header, padding each cell to its column
// width in terminal columns. Styling is applied after padding so escape
// codes do not disturb the layout.
func printTable(w io.Writer, cols []column, rows [][]string) {
	var hdr strings.Builder
	for i, c := range cols {
		if i > 0 {
			hdr.WriteString("  ")
		}
		hdr.WriteString(util.PadRight(c.title, c.width))
	}
	fmt.Fprintln(w, HeaderStyle.Render(strings.TrimRight(hdr.String(), " ")))

	total := 0
	for _, c := range cols {
		total += c.width + 2
	}
	fmt.Fprintln(w, SeparatorStyle.Render(strings.Repeat("-", total-2)))

	for _, row := range rows {
		var line strings.Builder
		for i, c := range cols {
			if i > 0 {
				line.WriteString("  ")
			}
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			line.WriteString(util.PadRight(cell, c.width))
		}
		fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}
}

// printField writes one "label value" line.
func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s%s\n", RenderLabel(label), value)
}
