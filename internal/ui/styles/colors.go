// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Leaf - Brand color, header, assistant label
var Leaf = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}

// Sky - User highlights, focused inputs
var Sky = lipgloss.AdaptiveColor{Light: "#0369A1", Dark: "#38BDF8"}

// Amber - Warnings, session timeout, file turns
var Amber = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}

// Rose - Errors and failed turns
var Rose = lipgloss.AdaptiveColor{Light: "#BE123C", Dark: "#FB7185"}

// =============================================================================
// SURFACE AND TEXT COLORS
// =============================================================================

var (
	Surface       = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#1B1F1D"}
	SurfaceDim    = lipgloss.AdaptiveColor{Light: "#F1F5F2", Dark: "#141816"}
	Overlay       = lipgloss.AdaptiveColor{Light: "#D6DDD8", Dark: "#34403A"}
	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1C2520", Dark: "#E3EBE6"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#56635B", Dark: "#A3B3AA"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#8A968F", Dark: "#66736C"}
	TextInverse   = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#141816"}
)

// =============================================================================
// BUBBLE COLORS
// =============================================================================

// User bubble - blue tones
var UserBubbleBg = lipgloss.AdaptiveColor{Light: "#E0F2FE", Dark: "#0C4A6E"}
var UserBubbleFg = lipgloss.AdaptiveColor{Light: "#0C4A6E", Dark: "#E0F2FE"}
var UserBubbleBorder = lipgloss.AdaptiveColor{Light: "#38BDF8", Dark: "#38BDF8"}

// Assistant bubble - soft green
var AssistantBubbleFg = lipgloss.AdaptiveColor{Light: "#14532D", Dark: "#DCFCE7"}
var AssistantBubbleBorder = lipgloss.AdaptiveColor{Light: "#86EFAC", Dark: "#16A34A"}

// Error bubble
var ErrorBubbleFg = lipgloss.AdaptiveColor{Light: "#881337", Dark: "#FECDD3"}
var ErrorBubbleBorder = lipgloss.AdaptiveColor{Light: "#FB7185", Dark: "#E11D48"}

// Selection highlight in lists
var SelectionBg = lipgloss.AdaptiveColor{Light: "#DCFCE7", Dark: "#14532D"}

// =============================================================================
// STATUS INDICATORS
// =============================================================================

// StatusIndicatorSet holds the ASCII markers shown next to status text so
// state does not depend on color alone.
type StatusIndicatorSet struct {
	Success string
	Error   string
	Warning string
	Info    string
}

// StatusIndicators are the markers used by the Render helpers.
var StatusIndicators = StatusIndicatorSet{
	Success: "[OK]",
	Error:   "[X]",
	Warning: "[!]",
	Info:    "[i]",
}

func renderStatus(color lipgloss.AdaptiveColor, indicator, message string) string {
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(indicator + " " + message)
}

// RenderSuccess renders message with the success marker.
func RenderSuccess(message string) string {
	return renderStatus(Leaf, StatusIndicators.Success, message)
}

// RenderError renders message with the error marker.
func RenderError(message string) string {
	return renderStatus(Rose, StatusIndicators.Error, message)
}

// RenderWarning renders message with the warning marker.
func RenderWarning(message string) string {
	return renderStatus(Amber, StatusIndicators.Warning, message)
}

// RenderInfo renders message with the info marker.
func RenderInfo(message string) string {
	return renderStatus(Sky, StatusIndicators.Info, message)
}
