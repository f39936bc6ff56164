// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package desk is the interactive assetdesk dashboard.
//
// The root Model moves through three screens:
//
//	Login -> (Change password) -> Dashboard
//
// The password screen appears only when the account must change its
// password. The dashboard lists the clients the user may access and the
// assets of the selected client, with a search box and barcode scanner
// capture. Every key press counts as session activity; a periodic check
// returns to the login screen once the session has ended and shows a
// warning shortly before it ends for inactivity.
//
// Backend calls run as tea.Cmds so the screen never blocks on the store or
// the asset database.
package desk
