// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and lipgloss styles of the wattchat TUI.

All colors are lipgloss AdaptiveColor values, so they follow the terminal
background. NewTheme takes the configured ui.theme (auto, dark or light):

	theme := styles.NewTheme(cfg.UI.Theme)
	bubble := theme.AssistantBubble.Render(answer)

Status text carries an ASCII marker as well as a color:

	styles.RenderError("Upload failed")   // "[X] Upload failed"
*/
package styles
