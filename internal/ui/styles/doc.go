// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and lipgloss styles of the assetdesk
dashboard.

All colors are lipgloss AdaptiveColor values, so they follow the terminal's
light or dark background. The ui.theme config key can force either mode:

	theme := styles.NewThemeFor(cfg.UI.Theme)
	theme.SetSize(width, height)
	if theme.GetLayoutMode() == styles.LayoutNarrow {
		// hide the client list
	}

Status text always carries an ASCII indicator ([OK], [X], [!]) as well as a
color.
*/
package styles
