// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the reusable pieces of the assetdesk dashboard.

# Components

Spinner (spinner.go) - Loading indicator with message and elapsed time.
StatusBar (statusbar.go) - Bottom bar with the signed-in user, the selected
client, the scanner state and key hints.
Toasts (toast.go) - Auto-dismissing notices for scan results and errors.
SessionOverlay (session_overlay.go) - Warning shown before an idle session
expires, and the notice shown after it has.

Each component follows the Bubble Tea shape used by the rest of the UI:
value receivers for Update and View, pointer receivers for setters.

	bar := components.NewStatusBar(theme)
	bar.SetWidth(msg.Width)
	bar.SetUser("jsmith", "technician")
	view := bar.View()
*/
package components
