// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package desk

import (
	"time"

	"github.com/jeranaias/assetdesk/internal/config"
	"github.com/jeranaias/assetdesk/internal/directory"
	"github.com/jeranaias/assetdesk/internal/identity"
)

// ConfigReloadedMsg delivers a config file change from config.Watch. Err is
// set when the new file failed to load; the running config is kept.
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}

// =============================================================================
// SESSION MESSAGES
// =============================================================================

// sessionRestoredMsg reports the session found at startup.
type sessionRestoredMsg struct {
	user     *identity.PublicUser
	firstRun bool
	err      error
}

// sessionTickMsg triggers a session check. Ticks from a superseded schedule
// carry an old gen and are ignored.
type sessionTickMsg struct {
	gen int
	at  time.Time
}

// sessionStatusMsg is the outcome of a session check. user is nil once the
// session has ended.
type sessionStatusMsg struct {
	user      *identity.PublicUser
	remaining time.Duration
	err       error
}

// activityErrMsg reports a failure to record activity.
type activityErrMsg struct {
	err error
}

// =============================================================================
// AUTHENTICATION MESSAGES
// =============================================================================

type loginDoneMsg struct {
	res      identity.Result[identity.LoginData]
	password string
	auto     bool
	err      error
}

type passwordDoneMsg struct {
	res identity.Result[struct{}]
	err error
}

type loggedOutMsg struct {
	notice string
	err    error
}

// =============================================================================
// DIRECTORY MESSAGES
// =============================================================================

type clientsLoadedMsg struct {
	clients []directory.Client
	err     error
}

// assetsLoadedMsg carries the seq of the request so stale results are
// dropped.
type assetsLoadedMsg struct {
	seq      int
	clientID string
	assets   []directory.Asset
	err      error
}

type scanDoneMsg struct {
	clientID string
	code     string
	asset    directory.Asset
	err      error
}

type usersLoadedMsg struct {
	users []identity.PublicUser
	err   error
}
