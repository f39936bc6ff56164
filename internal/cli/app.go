// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/jeranaias/assetdesk/internal/config"
	"github.com/jeranaias/assetdesk/internal/directory"
	"github.com/jeranaias/assetdesk/internal/identity"
	"github.com/jeranaias/assetdesk/internal/logging"
	"github.com/jeranaias/assetdesk/internal/security"
	"github.com/jeranaias/assetdesk/internal/store"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// App holds everything a command handler needs. It is built once in main
// from the loaded config.
type App struct {
	Config *config.Config
	// ConfigPath is the file Config was loaded from.
	ConfigPath string

	Logger   *slog.Logger
	Enc      *security.EncryptionManager
	Store    store.Store
	Identity *identity.Manager
	Audit    *security.AuditLogger

	Out io.Writer
	Err io.Writer
	In  io.Reader

	// ReadPassword prompts for a secret without echo.
	ReadPassword func(prompt string) (string, error)

	inOnce   sync.Once
	inReader *bufio.Reader

	dirOnce sync.Once
	dir     *directory.Directory
	dirErr  error

	closers []io.Closer
}

type appOptions struct {
	hasher       *security.PasswordHasher
	out, errOut  io.Writer
	in           io.Reader
	readPassword func(string) (string, error)
	quiet        bool
}

// AppOption configures NewApp.
type AppOption func(*appOptions)

// WithHasher overrides the bcrypt cost, for tests.
func WithHasher(h security.PasswordHasher) AppOption {
	return func(o *appOptions) { o.hasher = &h }
}

// WithIO redirects command input and output.
func WithIO(in io.Reader, out, errOut io.Writer) AppOption {
	return func(o *appOptions) {
		o.in, o.out, o.errOut = in, out, errOut
	}
}

// WithPasswordReader replaces the terminal password prompt.
func WithPasswordReader(fn func(prompt string) (string, error)) AppOption {
	return func(o *appOptions) { o.readPassword = fn }
}

// WithQuietLogs discards diagnostics unless a log file is configured. The TUI
// uses it so stderr does not draw over the screen.
func WithQuietLogs() AppOption {
	return func(o *appOptions) { o.quiet = true }
}

// NewApp opens the encrypted store, the audit log and the identity manager.
// The asset directory backend is connected on first use.
func NewApp(ctx context.Context, cfg *config.Config, opts ...AppOption) (*App, error) {
	o := appOptions{out: os.Stdout, errOut: os.Stderr, in: os.Stdin, readPassword: readPasswordTTY}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Out: o.out, Err: o.errOut, In: o.in, ReadPassword: o.readPassword}

	logger, closer, err := logging.Open(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Quiet:  o.quiet,
	})
	if err != nil {
		return nil, err
	}
	a.Logger = logger
	a.closers = append(a.closers, closer)

	st, enc, err := store.OpenWithKeyFile(ctx, cfg.Store.Path, cfg.Store.KeyPath, store.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store, a.Enc = st, enc
	a.closers = append(a.closers, st)

	idOpts := []identity.Option{
		identity.WithPolicy(PolicyFromConfig(cfg)),
		identity.WithLogger(logger),
	}
	if o.hasher != nil {
		idOpts = append(idOpts, identity.WithHasher(*o.hasher))
	}
	if cfg.Security.AuditEnabled {
		al, err := security.NewAuditLogger(cfg.Security.AuditLogPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Audit = al
		a.closers = append(a.closers, al)
		idOpts = append(idOpts, identity.WithAuditor(identity.NewFileAuditor(al, logger)))
	}

	a.Identity = identity.New(st, idOpts...)
	if err := a.Identity.Bootstrap(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// PolicyFromConfig converts the security section into identity limits.
func PolicyFromConfig(cfg *config.Config) identity.Policy {
	s := cfg.Security
	return identity.Policy{
		SessionDuration:   s.SessionDuration(),
		InactivityTimeout: s.InactivityTimeout(),
		MaxFailedLogins:   s.MaxFailedLogins,
		LockoutDuration:   s.LockoutDuration(),
		RateLimitAttempts: s.RateLimitAttempts,
		RateLimitWindow:   s.RateLimitWindow(),
	}
}

// Directory connects the configured backend on first call.
func (a *App) Directory(ctx context.Context) (*directory.Directory, error) {
	a.dirOnce.Do(func() {
		dsn, err := a.Config.PostgresDSN(a.Enc)
		if err != nil {
			a.dirErr = err
			return
		}
		b, err := directory.Open(ctx, directory.Settings{
			Driver:            a.Config.Backend.Driver,
			SQLitePath:        a.Config.Backend.SQLitePath,
			PostgresDSN:       dsn,
			RequestsPerSecond: a.Config.Backend.RequestsPerSecond,
			Burst:             a.Config.Backend.Burst,
		})
		if err != nil {
			a.dirErr = fmt.Errorf("open asset directory: %w", err)
			return
		}
		a.dir = directory.New(b, a.Identity, directory.WithLogger(a.Logger))
		a.closers = append(a.closers, a.dir)
	})
	return a.dir, a.dirErr
}

// Close releases everything NewApp opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// prompt reads one trimmed line from In.
func (a *App) prompt(label string) (string, error) {
	a.inOnce.Do(func() { a.inReader = bufio.NewReader(a.In) })
	return promptLine(a.inReader, a.Err, label)
}

// requireLogin returns the signed-in user, or an error telling the user to
// log in. A user who still has to change an assigned password gets
// ErrPasswordChangeRequired. Successful commands count as activity.
func (a *App) requireLogin(ctx context.Context) (*identity.PublicUser, error) {
	u, err := a.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	if u.MustChangePassword {
		return nil, ErrPasswordChangeRequired
	}
	return u, nil
}

// requireSession is requireLogin without the password change check. Only
// the user's own password change may run on it.
func (a *App) requireSession(ctx context.Context) (*identity.PublicUser, error) {
	u, err := a.Identity.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotLoggedIn
	}
	if err := a.Identity.RecordActivity(ctx); err != nil {
		return nil, err
	}
	return u, nil
}
