// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/wattchat/internal/ui/styles"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(styles.Leaf)

	LabelStyle = lipgloss.NewStyle().Foreground(styles.TextSecondary).Width(24)

	SuccessStyle = lipgloss.NewStyle().Foreground(styles.Leaf).Bold(true)

	ErrorStyle = lipgloss.NewStyle().Foreground(styles.Rose).Bold(true)

	WarningStyle = lipgloss.NewStyle().Foreground(styles.Amber)

	DimStyle = lipgloss.NewStyle().Foreground(styles.TextMuted)

	UserStyle = lipgloss.NewStyle().Foreground(styles.Sky).Bold(true)

	AssistantStyle = lipgloss.NewStyle().Foreground(styles.Leaf).Bold(true)
)

// RenderStatus renders a bracketed status tag.
func RenderStatus(status string) string {
	switch strings.ToLower(status) {
	case "ok", "success":
		return SuccessStyle.Render("[OK]")
	case "error", "fail":
		return ErrorStyle.Render("[X]")
	case "warning", "warn":
		return WarningStyle.Render("[!]")
	default:
		return DimStyle.Render("[" + strings.ToUpper(status) + "]")
	}
}

// RenderLabel renders a fixed-width field label.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}
