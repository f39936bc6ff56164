// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// asset_cmd.go - Asset inventory commands.
//
// Command: asset [subcommand] <client> ...
//
// Subcommands:
//   list <client> [--search q] [--status s] [--limit n]
//   show <client> <id>
//   add <client> --name N [fields]
//   update <client> <id> [fields]
//   delete <client> <id>                      (admin)
//   scan <client>                             Look up scanned barcodes
//
// Fields:
//   --name --tag --category --manufacturer --model --serial --barcode
//   --location --status --assigned-to --notes
//
// Examples:
//   assetdesk asset list acme_corp --search dell
//   assetdesk asset add acme_corp --name "Laptop 12" --barcode 0042-7781
//   assetdesk asset scan acme_corp

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/assetdesk/internal/config"
	"github.com/jeranaias/assetdesk/internal/directory"
	"github.com/jeranaias/assetdesk/internal/scanner"
	"github.com/jeranaias/assetdesk/internal/util"
)

const assetUsage = "assetdesk asset [list|show|add|update|delete|scan] <client> ..."

// HandleAsset dispatches asset subcommands.
func HandleAsset(ctx context.Context, app *App, args Args) error {
	if _, err := app.requireLogin(ctx); err != nil {
		return err
	}

	p := NewArgParser(args.Raw)
	sub := p.Subcommand()
	clientID := p.Positional(1)
	if sub == "" {
		return &UsageError{Message: "missing subcommand", Usage: assetUsage}
	}
	if clientID == "" {
		return ErrMissingArgument("client", assetUsage)
	}

	dir, err := app.Directory(ctx)
	if err != nil {
		return err
	}

	switch sub {
	case "list", "ls":
		return assetList(ctx, app, args, dir, clientID, p)
	case "show", "get":
		return assetShow(ctx, app, args, dir, clientID, p.Positional(2))
	case "add", "create":
		return assetAdd(ctx, app, args, dir, clientID, p)
	case "update", "edit":
		return assetUpdate(ctx, app, args, dir, clientID, p)
	case "delete", "rm":
		return assetDelete(ctx, app, args, dir, clientID, p.Positional(2))
	case "scan":
		return assetScan(ctx, app, args, dir, clientID)
	default:
		return ErrUnknownSubcommand("asset", sub, assetUsage)
	}
}

// =============================================================================
// LIST / SHOW
// =============================================================================

func assetList(ctx context.Context, app *App, args Args, dir *directory.Directory, clientID string, p *ArgParser) error {
	limit, err := p.FlagInt("limit", 0)
	if err != nil {
		return &UsageError{Message: err.Error()}
	}
	f := directory.Filter{
		Search: p.Flag("search", "s"),
		Status: directory.Status(p.Flag("status")),
		Limit:  limit,
	}
	assets, err := dir.ListAssets(ctx, clientID, f)
	if err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(app.Out, "asset list", assets)
	}
	if len(assets) == 0 {
		fmt.Fprintln(app.Out, DimStyle.Render("No assets found."))
		return nil
	}

	cols := []column{{"TAG", 12}, {"NAME", 28}, {"STATUS", 10}, {"BARCODE", 16}, {"LOCATION", 16}, {"ASSIGNED", 14}}
	rows := make([][]string, 0, len(assets))
	for _, a := range assets {
		rows = append(rows, []string{
			util.TruncateWidth(a.AssetTag, 12),
			util.TruncateWidth(a.Name, 28),
			string(a.Status),
			util.TruncateWidth(a.Barcode, 16),
			util.TruncateWidth(a.Location, 16),
			util.TruncateWidth(a.AssignedTo, 14),
		})
	}
	printTable(app.Out, cols, rows)
	if !args.Quiet {
		fmt.Fprintf(app.Out, "\n%d %s\n", len(assets), util.Plural(len(assets), "asset"))
	}
	return nil
}

func assetShow(ctx context.Context, app *App, args Args, dir *directory.Directory, clientID, id string) error {
	if id == "" {
		return ErrMissingArgument("id", "assetdesk asset show <client> <id>")
	}
	a, err := dir.GetAsset(ctx, clientID, id)
	if err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(app.Out, "asset show", a)
	}
	printAsset(app.Out, a)
	return nil
}

// printAsset writes every non-empty field of a.
func printAsset(w io.Writer, a directory.Asset) {
	fmt.Fprintln(w, TitleStyle.Render(a.Name))
	fields := []struct{ label, value string }{
		{"ID", a.ID},
		{"Tag", a.AssetTag},
		{"Category", a.Category},
		{"Manufacturer", a.Manufacturer},
		{"Model", a.Model},
		{"Serial", a.SerialNumber},
		{"Barcode", a.Barcode},
		{"Location", a.Location},
		{"Assigned to", a.AssignedTo},
		{"Notes", a.Notes},
	}
	for _, f := range fields {
		if f.value != "" {
			printField(w, f.label, f.value)
		}
	}
	printField(w, "Status", RenderAssetStatus(a.Status))
	printField(w, "Updated", formatTime(a.UpdatedAt))
}

// =============================================================================
// ADD / UPDATE / DELETE
// =============================================================================

// assetFields maps flag names onto asset fields.
var assetFields = map[string]func(*directory.Asset) *string{
	"name":         func(a *directory.Asset) *string { return &a.Name },
	"tag":          func(a *directory.Asset) *string { return &a.AssetTag },
	"category":     func(a *directory.Asset) *string { return &a.Category },
	"manufacturer": func(a *directory.Asset) *string { return &a.Manufacturer },
	"model":        func(a *directory.Asset) *string { return &a.Model },
	"serial":       func(a *directory.Asset) *string { return &a.SerialNumber },
	"barcode":      func(a *directory.Asset) *string { return &a.Barcode },
	"location":     func(a *directory.Asset) *string { return &a.Location },
	"assigned-to":  func(a *directory.Asset) *string { return &a.AssignedTo },
	"notes":        func(a *directory.Asset) *string { return &a.Notes },
}

// applyAssetFlags copies the given flags onto a and reports whether any
// were set.
func applyAssetFlags(p *ArgParser, a *directory.Asset) bool {
	changed := false
	for name, field := range assetFields {
		if p.HasFlag(name) {
			*field(a) = p.Flag(name)
			changed = true
		}
	}
	if p.HasFlag("status") {
		a.Status = directory.Status(p.Flag("status"))
		changed = true
	}
	return changed
}

func assetAdd(ctx context.Context, app *App, args Args, dir *directory.Directory, clientID string, p *ArgParser) error {
	var a directory.Asset
	applyAssetFlags(p, &a)
	if a.Barcode != "" && !scanner.ValidCode(a.Barcode) {
		return fmt.Errorf("barcode %q: %w", a.Barcode, directory.ErrInvalid)
	}

	created, err := dir.CreateAsset(ctx, clientID, a)
	if err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(app.Out, "asset add", created)
	}
	fmt.Fprintf(app.Out, "%s Added %s (%s)\n", SuccessStyle.Render("[OK]"), created.Name, created.ID)
	return nil
}

func assetUpdate(ctx context.Context, app *App, args Args, dir *directory.Directory, clientID string, p *ArgParser) error {
	id := p.Positional(2)
	if id == "" {
		return ErrMissingArgument("id", "assetdesk asset update <client> <id> [fields]")
	}
	a, err := dir.GetAsset(ctx, clientID, id)
	if err != nil {
		return err
	}
	if !applyAssetFlags(p, &a) {
		return &UsageError{Message: "nothing to update", Usage: "assetdesk asset update <client> <id> [fields]"}
	}
	if a.Barcode != "" && !scanner.ValidCode(a.Barcode) {
		return fmt.Errorf("barcode %q: %w", a.Barcode, directory.ErrInvalid)
	}

	updated, err := dir.UpdateAsset(ctx, clientID, a)
	if err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(app.Out, "asset update", updated)
	}
	fmt.Fprintf(app.Out, "%s Updated %s\n", SuccessStyle.Render("[OK]"), updated.Name)
	return nil
}

func assetDelete(ctx context.Context, app *App, args Args, dir *directory.Directory, clientID, id string) error {
	if id == "" {
		return ErrMissingArgument("id", "assetdesk asset delete <client> <id>")
	}
	if err := dir.DeleteAsset(ctx, clientID, id); err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(app.Out, "asset delete", map[string]string{"client": clientID, "id": id})
	}
	fmt.Fprintf(app.Out, "%s Deleted %s\n", SuccessStyle.Render("[OK]"), id)
	return nil
}

// =============================================================================
// SCAN
// =============================================================================

// lineReader reads one line of input per scan.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// linerReader edits lines on a terminal and keeps scan history.
type linerReader struct {
	state       *liner.State
	historyFile string
}

func newLinerReader() *linerReader {
	r := &linerReader{state: liner.NewLiner()}
	r.state.SetCtrlCAborts(true)
	if dir, err := config.ConfigDir(); err == nil {
		r.historyFile = filepath.Join(dir, "scan_history")
		if f, err := os.Open(r.historyFile); err == nil {
			r.state.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}
	return line, nil
}

func (r *linerReader) Close() error {
	if r.historyFile != "" && config.EnsureConfigDir() == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.state.WriteHistory(f)
			f.Close()
		}
	}
	return r.state.Close()
}

// promptReader reads plain lines, for piped input.
type promptReader struct{ app *App }

func (r promptReader) Prompt(prompt string) (string, error) { return r.app.prompt(prompt) }
func (r promptReader) Close() error                         { return nil }

// scanResult is one looked-up code.
type scanResult struct {
	Code  string           `json:"code"`
	Found bool             `json:"found"`
	Asset *directory.Asset `json:"asset,omitempty"`
	Error string           `json:"error,omitempty"`
}

// assetScan reads barcodes, one per line, until EOF or "q", and looks each
// one up in the client's inventory. A USB scanner acting as a keyboard ends
// each code with Enter, so it works the same as typing.
func assetScan(ctx context.Context, app *App, args Args, dir *directory.Directory, clientID string) error {
	// Fail before the first scan when the client is unknown or off limits.
	if _, err := dir.ListAssets(ctx, clientID, directory.Filter{Limit: 1}); err != nil {
		return err
	}

	var in lineReader = promptReader{app}
	if app.In == os.Stdin && IsTTY() {
		in = newLinerReader()
	}
	defer in.Close()

	if !args.JSON && !args.Quiet {
		fmt.Fprintln(app.Err, DimStyle.Render("Scan or type a barcode. Enter q to finish."))
	}

	var results []scanResult
	found := 0
	for {
		line, err := in.Prompt("scan> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				break
			}
			return err
		}
		code := strings.TrimSpace(line)
		if code == "" {
			continue
		}
		if code == "q" || code == "quit" || code == "exit" {
			break
		}

		r := lookupCode(ctx, dir, clientID, code)
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.Found {
			found++
		}
		results = append(results, r)
		if !args.JSON {
			printScanResult(app.Out, r)
		}
		if err := app.Identity.RecordActivity(ctx); err != nil {
			return err
		}
	}

	if args.JSON {
		if results == nil {
			results = []scanResult{}
		}
		return writeJSON(app.Out, "asset scan", results)
	}
	if !args.Quiet {
		fmt.Fprintf(app.Out, "\n%d of %d %s found\n", found, len(results), util.Plural(len(results), "code"))
	}
	return nil
}

// lookupCode validates code and finds the asset carrying it.
func lookupCode(ctx context.Context, dir *directory.Directory, clientID, code string) scanResult {
	r := scanResult{Code: code}
	if !scanner.ValidCode(code) {
		r.Error = "not a valid barcode"
		return r
	}
	a, err := dir.FindByBarcode(ctx, clientID, code)
	switch {
	case err == nil:
		r.Found, r.Asset = true, &a
	case errors.Is(err, directory.ErrNotFound):
	default:
		r.Error = err.Error()
	}
	return r
}

func printScanResult(w io.Writer, r scanResult) {
	switch {
	case r.Error != "":
		fmt.Fprintf(w, "%s %s: %s\n", ErrorStyle.Render("[!]"), r.Code, r.Error)
	case r.Found:
		fmt.Fprintf(w, "%s %s  %s  %s  %s\n", SuccessStyle.Render("[OK]"), r.Code,
			r.Asset.Name, RenderAssetStatus(r.Asset.Status), DimStyle.Render(r.Asset.Location))
	default:
		fmt.Fprintf(w, "%s %s: no asset with this barcode\n", WarningStyle.Render("[?]"), r.Code)
	}
}
