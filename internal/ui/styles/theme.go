// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds all the styled components for the application.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER / FOOTER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderMeta  lipgloss.Style

	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// TURN BUBBLES
	// ==========================================================================

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	ErrorBubble     lipgloss.Style
	FileBubble      lipgloss.Style
	LoadingText     lipgloss.Style
	RoleLabel       lipgloss.Style
	Cursor          lipgloss.Style

	// ==========================================================================
	// INPUT
	// ==========================================================================

	InputContainer lipgloss.Style
	InputBlocked   lipgloss.Style
	InputPrompt    lipgloss.Style

	// ==========================================================================
	// MODALS AND LISTS
	// ==========================================================================

	Modal            lipgloss.Style
	ModalTitle       lipgloss.Style
	ListItem         lipgloss.Style
	ListItemSelected lipgloss.Style
	ListMeta         lipgloss.Style

	// ==========================================================================
	// PLAIN TEXT
	// ==========================================================================

	Muted       lipgloss.Style
	ErrorText   lipgloss.Style
	WarningText lipgloss.Style
	SuccessText lipgloss.Style
}

// NewTheme creates a theme. mode is auto, dark or light; auto asks the
// terminal for its background. Forcing a mode also switches lipgloss so
// adaptive colors follow it.
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()

	var isDark bool
	switch mode {
	case ModeDark:
		isDark = true
		lipgloss.SetHasDarkBackground(true)
	case ModeLight:
		isDark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

// GlamourStyle names the glamour standard style matching the terminal.
func (t *Theme) GlamourStyle() string {
	switch {
	case t.ColorProfile == termenv.Ascii:
		return "notty"
	case t.IsDark:
		return "dark"
	default:
		return "light"
	}
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextPrimary).
		Padding(0, 1)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Leaf)

	t.HeaderMeta = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Sky).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Turn bubbles
	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		Background(UserBubbleBg).
		Padding(0, 1)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 1)

	t.ErrorBubble = lipgloss.NewStyle().
		Foreground(ErrorBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ErrorBubbleBorder).
		Padding(0, 1)

	t.FileBubble = lipgloss.NewStyle().
		Foreground(Amber).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Amber).
		BorderLeft(true).
		PaddingLeft(1)

	t.LoadingText = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.RoleLabel = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)

	t.Cursor = lipgloss.NewStyle().
		Foreground(Leaf).
		Bold(true)

	// Input
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputBlocked = t.InputContainer.
		BorderForeground(Rose)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Sky).
		Bold(true)

	// Modals
	t.Modal = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Leaf).
		Padding(1, 2)

	t.ModalTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Leaf).
		MarginBottom(1)

	t.ListItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.ListItemSelected = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SelectionBg).
		Bold(true).
		PaddingLeft(2)

	t.ListMeta = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
	t.ErrorText = lipgloss.NewStyle().Foreground(Rose)
	t.WarningText = lipgloss.NewStyle().Foreground(Amber)
	t.SuccessText = lipgloss.NewStyle().Foreground(Leaf)
}
