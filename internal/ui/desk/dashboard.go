// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package desk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/assetdesk/internal/directory"
	"github.com/jeranaias/assetdesk/internal/identity"
	"github.com/jeranaias/assetdesk/internal/scanner"
	"github.com/jeranaias/assetdesk/internal/ui/styles"
	"github.com/jeranaias/assetdesk/internal/util"
)

// =============================================================================
// DASHBOARD STATE
// =============================================================================

type focusArea int

const (
	focusClients focusArea = iota
	focusSearch
	focusTable
	focusCount
)

const (
	// clientPaneWidth is the outer width of the client list.
	clientPaneWidth = 26
	// footerLines is reserved under the panes for toasts or asset details.
	footerLines = 3
)

// dashboard is the signed-in screen: a client list, a search box and the
// asset table for the selected client.
type dashboard struct {
	clients  []directory.Client
	cursor   int
	selected string
	loaded   bool

	assets  []directory.Asset
	table   table.Model
	search  textinput.Model
	focus   focusArea
	seq     int
	loading bool

	// searchBefore is the search text from before a scanner burst started
	// typing into the search box.
	searchBefore string

	mode        styles.LayoutMode
	columns     []table.Column
	tableWidth  int
	tableHeight int

	overlay    overlayKind
	helpView   string
	users      []identity.PublicUser
	usersTable table.Model
}

func newDashboard(theme *styles.Theme) dashboard {
	search := textinput.New()
	search.Placeholder = "name, tag, serial or barcode"
	search.Prompt = ""
	search.CharLimit = 100

	d := dashboard{
		table:      table.New(table.WithStyles(theme.TableStyles())),
		usersTable: table.New(table.WithStyles(theme.TableStyles())),
		search:     search,
		mode:       styles.LayoutWide,
	}
	d.setFocus(focusTable)
	return d
}

func (d *dashboard) setFocus(f focusArea) tea.Cmd {
	d.focus = f
	d.table.Blur()
	d.search.Blur()
	switch f {
	case focusTable:
		d.table.Focus()
	case focusSearch:
		return d.search.Focus()
	}
	return nil
}

// selectedAsset returns the asset under the table cursor.
func (d *dashboard) selectedAsset() (directory.Asset, bool) {
	i := d.table.Cursor()
	if i < 0 || i >= len(d.assets) {
		return directory.Asset{}, false
	}
	return d.assets[i], true
}

// =============================================================================
// LAYOUT
// =============================================================================

// layout propagates the window size to every sized component.
func (m *Model) layout() {
	m.theme.SetSize(m.width, m.height)
	m.statusBar.SetWidth(m.width)
	m.session.SetSize(m.width, m.height)
	m.dash.resize(m.theme.GetLayoutMode(), m.width, m.height)
}

func (d *dashboard) resize(mode styles.LayoutMode, width, height int) {
	d.mode = mode

	right := width
	if mode != styles.LayoutNarrow {
		right -= clientPaneWidth
	}
	d.tableWidth = max(right-4, 20)
	// header, search panel, table border, footer, status bar
	d.tableHeight = max(height-1-3-2-footerLines-1, 3)
	d.search.Width = max(d.tableWidth-10, 10)

	d.columns = assetColumns(mode, d.tableWidth)
	d.table.SetRows(nil)
	d.table.SetColumns(d.columns)
	d.table.SetWidth(d.tableWidth)
	d.table.SetHeight(d.tableHeight)
	d.table.SetRows(assetRows(mode, d.assets))

	d.usersTable.SetRows(nil)
	d.usersTable.SetColumns(userColumns(min(width-8, 100)))
	d.usersTable.SetHeight(max(height-10, 3))
	d.usersTable.SetRows(userRows(d.users))
}

// assetColumns sizes the table for width. The name column takes whatever
// the fixed columns leave over.
func assetColumns(mode styles.LayoutMode, width int) []table.Column {
	var cols []table.Column
	switch mode {
	case styles.LayoutWide:
		cols = []table.Column{
			{Title: "Tag", Width: 12},
			{Title: "Name"},
			{Title: "Category", Width: 12},
			{Title: "Status", Width: 10},
			{Title: "Location", Width: 16},
			{Title: "Assigned", Width: 14},
			{Title: "Barcode", Width: 15},
		}
	case styles.LayoutMedium:
		cols = []table.Column{
			{Title: "Tag", Width: 12},
			{Title: "Name"},
			{Title: "Status", Width: 10},
			{Title: "Location", Width: 14},
		}
	default:
		cols = []table.Column{
			{Title: "Name"},
			{Title: "Status", Width: 10},
		}
	}

	// Each cell carries one column of padding on either side.
	used := 0
	for _, c := range cols {
		used += c.Width + 2
	}
	for i := range cols {
		if cols[i].Title == "Name" {
			cols[i].Width = max(width-used-2, 10)
		}
	}
	return cols
}

func assetRows(mode styles.LayoutMode, assets []directory.Asset) []table.Row {
	rows := make([]table.Row, 0, len(assets))
	for _, a := range assets {
		status := string(a.Status)
		switch mode {
		case styles.LayoutWide:
			rows = append(rows, table.Row{a.AssetTag, a.Name, a.Category, status, a.Location, a.AssignedTo, a.Barcode})
		case styles.LayoutMedium:
			rows = append(rows, table.Row{a.AssetTag, a.Name, status, a.Location})
		default:
			rows = append(rows, table.Row{a.Name, status})
		}
	}
	return rows
}

// setAssets replaces the table contents and keeps the cursor in range. An
// empty table leaves the cursor at -1; the next non-empty set moves it back.
func (d *dashboard) setAssets(assets []directory.Asset) {
	d.assets = assets
	d.table.SetRows(assetRows(d.mode, assets))
	if len(assets) == 0 {
		return
	}
	if c := d.table.Cursor(); c < 0 || c >= len(assets) {
		d.table.SetCursor(min(max(c, 0), len(assets)-1))
	}
}

// =============================================================================
// DASHBOARD COMMANDS
// =============================================================================

// enterDashboard shows the dashboard for u and starts loading its clients.
func (m *Model) enterDashboard(u *identity.PublicUser) tea.Cmd {
	m.state = StateDashboard
	m.user = u
	m.dash = newDashboard(m.theme)
	m.layout()
	m.detector.Reset()
	m.statusBar.SetUser(u.Username, string(u.Role))
	m.statusBar.Client = ""
	m.logger.Info("dashboard opened", "user", u.Username, "role", u.Role)

	return tea.Batch(
		m.loadClientsCmd(),
		m.startActivity("Loading clients"),
		m.nextSessionCheck(0),
	)
}

// startActivity shows msg in the status bar with the spinner running.
func (m *Model) startActivity(msg string) tea.Cmd {
	m.statusBar.Activity = msg
	return m.spinner.Start(msg)
}

func (m *Model) stopActivity() {
	m.statusBar.Activity = ""
	m.spinner.Stop()
}

// selectClient makes clients[i] the active client and loads its assets.
func (m *Model) selectClient(i int) tea.Cmd {
	d := &m.dash
	if i < 0 || i >= len(d.clients) {
		return nil
	}
	c := d.clients[i]
	d.cursor = i
	if d.selected != c.ID {
		d.search.Reset()
		d.setAssets(nil)
		d.table.SetCursor(0)
	}
	d.selected = c.ID
	m.statusBar.Client = c.Name
	return m.reloadAssets()
}

// reloadAssets fetches the selected client's assets for the current search.
func (m *Model) reloadAssets() tea.Cmd {
	d := &m.dash
	if d.selected == "" {
		return nil
	}
	d.seq++
	d.loading = true
	return tea.Batch(
		m.loadAssetsCmd(d.seq, d.selected, strings.TrimSpace(d.search.Value())),
		m.startActivity("Loading assets"),
	)
}

// startScan looks code up in the selected client.
func (m *Model) startScan(code string) tea.Cmd {
	d := &m.dash
	if !scanner.ValidCode(code) {
		return m.toasts.Warning("Ignored scan: not a valid barcode")
	}
	if d.selected == "" {
		return m.toasts.Warning("Scanner input ignored: no client selected")
	}
	m.logger.Debug("barcode scanned", "client", d.selected, "length", len(code))
	return tea.Batch(m.scanCmd(d.selected, code), m.startActivity("Looking up "+code))
}

// =============================================================================
// DASHBOARD UPDATE
// =============================================================================

func (m *Model) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := &m.dash
	if d.overlay != overlayNone {
		return m.updateOverlay(msg)
	}

	if m.scanEnabled {
		if handled, cmd := m.captureScan(msg); handled {
			return m, cmd
		}
	}

	switch {
	case key.Matches(msg, m.keys.Logout):
		return m, m.logoutCmd("You have been signed out.")
	case key.Matches(msg, m.keys.Refresh):
		return m, tea.Batch(m.loadClientsCmd(), m.startActivity("Refreshing"))
	case key.Matches(msg, m.keys.NextFocus):
		return m, d.setFocus(m.nextFocus(1))
	case key.Matches(msg, m.keys.PrevFocus):
		return m, d.setFocus(m.nextFocus(-1))
	}

	if d.focus == focusSearch {
		switch {
		case key.Matches(msg, m.keys.Select):
			d.setFocus(focusTable)
			return m, m.reloadAssets()
		case key.Matches(msg, m.keys.Back):
			d.search.Reset()
			d.setFocus(focusTable)
			return m, m.reloadAssets()
		}
		var cmd tea.Cmd
		d.search, cmd = d.search.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		return m, m.openHelp()
	case key.Matches(msg, m.keys.Users):
		return m, m.openUsers()
	case key.Matches(msg, m.keys.Search):
		return m, d.setFocus(focusSearch)
	}

	if d.focus == focusClients {
		switch {
		case key.Matches(msg, m.keys.Up):
			d.cursor = max(d.cursor-1, 0)
		case key.Matches(msg, m.keys.Down):
			d.cursor = min(d.cursor+1, max(len(d.clients)-1, 0))
		case key.Matches(msg, m.keys.Select):
			d.setFocus(focusTable)
			return m, m.selectClient(d.cursor)
		}
		return m, nil
	}

	var cmd tea.Cmd
	d.table, cmd = d.table.Update(msg)
	return m, cmd
}

// nextFocus cycles the focus. The narrow layout still reaches the client
// list; it replaces the table while focused.
func (m *Model) nextFocus(step int) focusArea {
	f := (int(m.dash.focus) + step + int(focusCount)) % int(focusCount)
	return focusArea(f)
}

// captureScan feeds key presses to the scanner detector. It reports whether
// the key belonged to a scan, in which case it must not act as a shortcut.
func (m *Model) captureScan(msg tea.KeyMsg) (bool, tea.Cmd) {
	d := &m.dash
	now := m.now()

	switch {
	case msg.Type == tea.KeyRunes:
		if !m.detector.Continues(now) {
			d.searchBefore = d.search.Value()
		}
		burst := len(msg.Runes) > 1
		for _, r := range msg.Runes {
			if m.detector.Feed(r, now) {
				burst = true
			}
		}
		if !burst {
			return false, nil
		}
		if d.focus == focusSearch {
			var cmd tea.Cmd
			d.search, cmd = d.search.Update(msg)
			return true, cmd
		}
		return true, nil

	case m.isScanSuffix(msg):
		scan, ok := m.detector.Submit(now)
		if !ok {
			return false, nil
		}
		if d.focus == focusSearch {
			d.search.SetValue(d.searchBefore)
		}
		return true, m.startScan(scan.Code)

	default:
		m.detector.Reset()
		return false, nil
	}
}

func (m *Model) isScanSuffix(msg tea.KeyMsg) bool {
	if m.scanSuffix == "tab" {
		return msg.Type == tea.KeyTab
	}
	return msg.Type == tea.KeyEnter
}

// =============================================================================
// DASHBOARD RESULTS
// =============================================================================

func (m *Model) handleClientsLoaded(msg clientsLoadedMsg) (tea.Model, tea.Cmd) {
	if m.state != StateDashboard {
		return m, nil
	}
	d := &m.dash
	m.stopActivity()
	if msg.err != nil {
		m.logger.Warn("list clients failed", "error", msg.err)
		return m, m.toasts.Error("Could not load clients: " + describeError(msg.err))
	}

	d.clients = msg.clients
	d.loaded = true
	if len(d.clients) == 0 {
		d.selected = ""
		d.setAssets(nil)
		m.statusBar.Client = ""
		return m, nil
	}

	idx := 0
	for i, c := range d.clients {
		if c.ID == d.selected {
			idx = i
			break
		}
	}
	return m, m.selectClient(idx)
}

func (m *Model) handleAssetsLoaded(msg assetsLoadedMsg) (tea.Model, tea.Cmd) {
	d := &m.dash
	if m.state != StateDashboard || msg.seq != d.seq {
		return m, nil
	}
	d.loading = false
	m.stopActivity()
	if msg.err != nil {
		m.logger.Warn("list assets failed", "client", msg.clientID, "error", msg.err)
		d.setAssets(nil)
		return m, m.toasts.Error("Could not load assets: " + describeError(msg.err))
	}
	d.setAssets(msg.assets)
	return m, nil
}

func (m *Model) handleScanDone(msg scanDoneMsg) (tea.Model, tea.Cmd) {
	if m.state != StateDashboard {
		return m, nil
	}
	d := &m.dash
	m.stopActivity()

	switch {
	case errors.Is(msg.err, directory.ErrNotFound):
		return m, m.toasts.Warning("No asset with barcode " + msg.code)
	case msg.err != nil:
		m.logger.Warn("barcode lookup failed", "client", msg.clientID, "error", msg.err)
		return m, m.toasts.Error("Lookup failed: " + describeError(msg.err))
	}

	a := msg.asset
	found := fmt.Sprintf("%s  %s  %s", a.AssetTag, a.Name, a.Status)
	if a.Location != "" {
		found += "  " + a.Location
	}
	if msg.clientID != d.selected {
		return m, m.toasts.Success(found)
	}

	for i, row := range d.assets {
		if row.ID == a.ID {
			d.table.SetCursor(i)
			d.setFocus(focusTable)
			return m, m.toasts.Success(found)
		}
	}

	// The asset is hidden by the current search; clear it so the row shows.
	d.search.Reset()
	d.setFocus(focusTable)
	return m, tea.Batch(m.toasts.Success(found), m.reloadAssets())
}

// describeError turns a backend error into a message for the user.
func describeError(err error) string {
	var fail *identity.Failure
	switch {
	case errors.As(err, &fail):
		return fail.Message
	case errors.Is(err, directory.ErrPermissionDenied):
		return "you do not have access to this client"
	case errors.Is(err, directory.ErrNotFound):
		return "not found"
	case errors.Is(err, context.DeadlineExceeded):
		return "the asset database did not respond in time"
	default:
		return err.Error()
	}
}

// =============================================================================
// DASHBOARD VIEW
// =============================================================================

func (m *Model) viewDashboard() string {
	if m.dash.overlay != overlayNone {
		return m.viewOverlay()
	}

	d := &m.dash
	bodyHeight := max(m.height-1-footerLines-1, 5)

	var body string
	switch {
	case d.mode == styles.LayoutNarrow && d.focus == focusClients:
		body = m.viewClients(m.width, bodyHeight)
	case d.mode == styles.LayoutNarrow:
		body = m.viewAssets(m.width, bodyHeight)
	default:
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			m.viewClients(clientPaneWidth, bodyHeight),
			m.viewAssets(m.width-clientPaneWidth, bodyHeight),
		)
	}

	footer := m.toasts.View(m.width)
	if footer == "" {
		footer = m.viewAssetDetail()
	}
	footer = lipgloss.NewStyle().Height(footerLines).MaxHeight(footerLines).Render(footer)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewHeader(),
		body,
		footer,
		m.statusBar.View(),
	)
}

func (m *Model) viewHeader() string {
	t := m.theme
	d := &m.dash
	meta := fmt.Sprintf("%d %s", len(d.clients), util.Plural(len(d.clients), "client"))
	if d.selected != "" {
		meta += fmt.Sprintf("  %d %s", len(d.assets), util.Plural(len(d.assets), "asset"))
	}
	line := t.HeaderBrand.Render("assetdesk") + "  " + t.HeaderMeta.Render(meta)
	return t.Header.Width(m.width).MaxHeight(1).Render(line)
}

func (m *Model) viewClients(width, height int) string {
	d := &m.dash
	t := m.theme
	style := t.Panel
	if d.focus == focusClients {
		style = t.PanelFocused
	}
	inner := width - 4

	lines := []string{t.PanelTitle.Render("Clients")}
	switch {
	case !d.loaded:
		lines = append(lines, t.Muted.Render("Loading..."))
	case len(d.clients) == 0:
		lines = append(lines, t.Muted.Render("No clients available."))
	}

	// Keep the cursor visible in long lists.
	visible := max(height-3, 1)
	start := 0
	if d.cursor >= visible {
		start = d.cursor - visible + 1
	}
	for i := start; i < len(d.clients) && i < start+visible; i++ {
		c := d.clients[i]
		name := util.TruncateWidth(c.Name, inner-2)
		switch {
		case i == d.cursor && d.focus == focusClients:
			lines = append(lines, t.ListItemSelected.Render("> "+util.PadRight(name, inner-2)))
		case c.ID == d.selected:
			lines = append(lines, t.ListItemActive.Render("* "+name))
		default:
			lines = append(lines, t.ListItem.Render("  "+name))
		}
	}

	return style.Width(width - 2).Height(height - 2).Render(strings.Join(lines, "\n"))
}

func (m *Model) viewAssets(width, height int) string {
	d := &m.dash
	t := m.theme

	searchStyle := t.Panel
	if d.focus == focusSearch {
		searchStyle = t.PanelFocused
	}
	search := searchStyle.Width(width - 2).Render(t.PanelTitle.Render("Search ") + d.search.View())

	tableStyle := t.Panel
	if d.focus == focusTable {
		tableStyle = t.PanelFocused
	}
	var content string
	switch {
	case !d.loaded:
		content = t.Muted.Render("Loading clients...")
	case len(d.clients) == 0:
		content = t.Muted.Render("No clients available. An admin can add one with:\n  assetdesk client create <name>")
	case len(d.assets) == 0 && d.loading:
		content = t.Muted.Render("Loading assets...")
	case len(d.assets) == 0 && strings.TrimSpace(d.search.Value()) != "":
		content = t.Muted.Render("No assets match the search.")
	case len(d.assets) == 0:
		content = t.Muted.Render("This client has no assets yet.")
	default:
		content = d.table.View()
	}
	assets := tableStyle.Width(width - 2).Height(max(height-3-2, 1)).Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, search, assets)
}

// viewAssetDetail describes the asset under the cursor.
func (m *Model) viewAssetDetail() string {
	a, ok := m.dash.selectedAsset()
	if !ok {
		return ""
	}
	t := m.theme

	status := lipgloss.NewStyle().Foreground(styles.StatusColor(string(a.Status))).Render(string(a.Status))
	first := t.ListItemActive.Render(a.AssetTag) + "  " + a.Name + "  " + status
	var parts []string
	for _, p := range [][2]string{
		{"Model", strings.TrimSpace(a.Manufacturer + " " + a.Model)},
		{"Serial", a.SerialNumber},
		{"Barcode", a.Barcode},
		{"Location", a.Location},
		{"Assigned", a.AssignedTo},
	} {
		if p[1] != "" {
			parts = append(parts, p[0]+" "+p[1])
		}
	}
	second := util.TruncateWidth(strings.Join(parts, "  "), max(m.width-2, 10))
	lines := []string{" " + first, " " + t.Muted.Render(second)}
	if a.Notes != "" {
		lines = append(lines, " "+t.Hint.Render(util.TruncateWidth(a.Notes, max(m.width-2, 10))))
	}
	return strings.Join(lines, "\n")
}
