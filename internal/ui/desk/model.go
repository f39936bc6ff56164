// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package desk

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/assetdesk/internal/config"
	"github.com/jeranaias/assetdesk/internal/directory"
	"github.com/jeranaias/assetdesk/internal/identity"
	"github.com/jeranaias/assetdesk/internal/logging"
	"github.com/jeranaias/assetdesk/internal/scanner"
	"github.com/jeranaias/assetdesk/internal/ui/components"
	"github.com/jeranaias/assetdesk/internal/ui/styles"
)

// =============================================================================
// APPLICATION MODEL
// =============================================================================

// State is the screen being shown.
type State int

const (
	StateStarting       State = iota // Restoring the saved session
	StateLogin                       // Credentials form
	StatePasswordChange              // Mandatory password change
	StateDashboard                   // Clients and assets
)

// Deps are the services the dashboard drives.
type Deps struct {
	Identity *identity.Manager
	// Directory returns the asset directory, connecting on first use.
	Directory func(context.Context) (*directory.Directory, error)
	Config    *config.Config
	Logger    *slog.Logger
	// Now replaces time.Now, for tests.
	Now func() time.Time
}

// Model is the root Bubble Tea model.
type Model struct {
	ctx    context.Context
	deps   Deps
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
	keys   KeyMap

	theme  *styles.Theme
	width  int
	height int

	state State
	user  *identity.PublicUser

	login    loginForm
	password passwordForm
	dash     dashboard

	spinner   components.Spinner
	toasts    *components.Toasts
	statusBar *components.StatusBar

	// Session expiry warning
	session     components.SessionOverlay
	warnEnabled bool
	tickGen     int

	// Barcode scanner capture
	detector    *scanner.Detector
	scanEnabled bool
	scanSuffix  string
}

// New creates the root model. ctx bounds every backend call the UI makes.
func New(ctx context.Context, deps Deps) *Model {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Config == nil {
		deps.Config = config.Default()
	}

	m := &Model{
		ctx:      ctx,
		deps:     deps,
		logger:   deps.Logger,
		now:      deps.Now,
		keys:     DefaultKeyMap(),
		width:    80,
		height:   24,
		state:    StateStarting,
		login:    newLoginForm(),
		password: newPasswordForm(),
		spinner:  components.NewSpinner(),
		toasts:   components.NewToasts(),
		session:  components.NewSessionOverlay(),
		detector: scanner.NewDetector(scanner.Options{}),
	}
	m.toasts.SetClock(deps.Now)
	m.applyConfig(deps.Config)
	m.dash = newDashboard(m.theme)
	m.layout()
	return m
}

// applyConfig installs cfg's theme, scanner and session settings.
func (m *Model) applyConfig(cfg *config.Config) {
	m.cfg = cfg

	m.theme = styles.NewThemeFor(cfg.UI.Theme)
	m.theme.Compact = cfg.UI.Compact
	m.theme.SetSize(m.width, m.height)
	if m.statusBar == nil {
		m.statusBar = components.NewStatusBar(m.theme)
	} else {
		m.statusBar.SetTheme(m.theme)
	}
	m.statusBar.SetWidth(m.width)

	m.detector.SetOptions(scanner.Options{
		MaxInterval: cfg.Scanner.MaxKeyInterval(),
		MinLength:   cfg.Scanner.MinLength,
	})
	m.scanEnabled = cfg.Scanner.Enabled
	m.scanSuffix = cfg.Scanner.Suffix
	m.statusBar.ScannerOn = m.scanEnabled

	warn := cfg.Security.SessionWarning()
	m.warnEnabled = warn > 0
	m.session.SetThreshold(warn)
	if !m.warnEnabled {
		m.session.Hide()
	}

	var shortcuts []components.Shortcut
	for _, b := range m.keys.dashboardShortcuts() {
		h := b.Help()
		shortcuts = append(shortcuts, components.Shortcut{Key: h.Key, Desc: h.Desc})
	}
	m.statusBar.Shortcuts = shortcuts
}

// State returns the current screen.
func (m *Model) State() State {
	return m.state
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init restores the saved session and starts the session checks.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.restoreSessionCmd(),
		m.spinner.Start("Starting"),
		m.nextSessionCheck(sessionCheckInterval),
	)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case components.ToastTickMsg:
		m.toasts.Prune()
		return m, nil

	case ConfigReloadedMsg:
		if msg.Err != nil {
			m.logger.Warn("config reload failed", "error", msg.Err)
			return m, m.toasts.Error("Config reload failed: " + msg.Err.Error())
		}
		m.applyConfig(msg.Config)
		m.dash.table.SetStyles(m.theme.TableStyles())
		m.dash.usersTable.SetStyles(m.theme.TableStyles())
		m.layout()
		m.logger.Info("config reloaded")
		return m, m.toasts.Info("Configuration reloaded")

	// Session
	case sessionRestoredMsg:
		return m.handleSessionRestored(msg)
	case sessionTickMsg:
		return m.handleSessionTick(msg)
	case sessionStatusMsg:
		return m.handleSessionStatus(msg)
	case activityErrMsg:
		m.logger.Warn("record activity failed", "error", msg.err)
		return m, nil

	// Authentication
	case loginDoneMsg:
		return m.handleLoginDone(msg)
	case passwordDoneMsg:
		return m.handlePasswordDone(msg)
	case loggedOutMsg:
		return m.handleLoggedOut(msg)

	// Directory
	case clientsLoadedMsg:
		return m.handleClientsLoaded(msg)
	case assetsLoadedMsg:
		return m.handleAssetsLoaded(msg)
	case scanDoneMsg:
		return m.handleScanDone(msg)
	case usersLoadedMsg:
		return m.handleUsersLoaded(msg)
	}
	return m, nil
}

// handleKey routes a key press. In the signed-in screens every key counts as
// activity, and a key pressed while the expiry warning is up only dismisses
// it.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}

	switch m.state {
	case StateLogin:
		return m.updateLogin(msg)
	case StatePasswordChange, StateDashboard:
	default:
		return m, nil
	}

	activity := m.recordActivityCmd()
	if m.session.IsVisible() {
		m.session.Hide()
		return m, activity
	}

	var next tea.Model
	var cmd tea.Cmd
	if m.state == StatePasswordChange {
		next, cmd = m.updatePassword(msg)
	} else {
		next, cmd = m.updateDashboard(msg)
	}
	return next, tea.Batch(activity, cmd)
}

// View renders the current screen.
func (m *Model) View() string {
	if m.session.IsVisible() && (m.state == StateDashboard || m.state == StatePasswordChange) {
		return m.session.View()
	}

	switch m.state {
	case StateLogin:
		return m.viewLogin()
	case StatePasswordChange:
		return m.viewPassword()
	case StateDashboard:
		return m.viewDashboard()
	default:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.spinner.View())
	}
}

// =============================================================================
// SCREEN TRANSITIONS
// =============================================================================

// showLogin switches to the login screen with notice, discarding everything
// that belonged to the previous user.
func (m *Model) showLogin(notice string) tea.Cmd {
	m.state = StateLogin
	m.user = nil
	m.password = newPasswordForm()
	m.dash = newDashboard(m.theme)
	m.layout()
	m.session.Hide()
	m.spinner.Stop()
	m.toasts.Clear()
	m.detector.Reset()
	m.statusBar.SetUser("", "")
	m.statusBar.Client = ""
	m.statusBar.Activity = ""

	m.login.reset()
	m.login.notice = notice
	return m.login.setFocus(fieldUsername)
}

func (m *Model) handleLoggedOut(msg loggedOutMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.logger.Warn("logout failed", "error", msg.err)
	}
	return m, m.showLogin(msg.notice)
}

func (m *Model) handleSessionRestored(msg sessionRestoredMsg) (tea.Model, tea.Cmd) {
	m.spinner.Stop()
	switch {
	case msg.err != nil:
		cmd := m.showLogin("")
		m.login.err = "Could not read the saved session: " + describeError(msg.err)
		return m, cmd
	case msg.user == nil:
		cmd := m.showLogin("")
		m.login.firstRun = msg.firstRun
		return m, cmd
	case msg.user.MustChangePassword:
		return m, m.enterPasswordChange(msg.user, "")
	default:
		return m, m.enterDashboard(msg.user)
	}
}
