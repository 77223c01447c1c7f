// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/wattchat/internal/ui/styles"
)

// =============================================================================
// SESSION TIMEOUT NOTICE
// =============================================================================

// TimeoutNotice is the banner shown above the input when the chat session
// is about to expire, and after it has expired and the chat was reset.
type TimeoutNotice struct {
	visible   bool
	expired   bool
	remaining time.Duration
	width     int
	theme     *styles.Theme
}

// SessionExtendedMsg is sent when a key press dismisses the warning. The
// receiver should refresh the session timestamp.
type SessionExtendedMsg struct{}

// NewTimeoutNotice creates a hidden notice.
func NewTimeoutNotice(theme *styles.Theme) TimeoutNotice {
	return TimeoutNotice{theme: theme, width: 80}
}

// SetWidth sets the notice width.
func (n *TimeoutNotice) SetWidth(width int) {
	n.width = width
}

// Show displays the warning with the time left.
func (n *TimeoutNotice) Show(remaining time.Duration) {
	n.visible = true
	n.expired = false
	n.remaining = remaining
}

// ShowExpired displays the expiry notice.
func (n *TimeoutNotice) ShowExpired() {
	n.visible = true
	n.expired = true
	n.remaining = 0
}

// Hide hides the notice.
func (n *TimeoutNotice) Hide() {
	n.visible = false
	n.expired = false
}

// IsVisible reports whether the notice is shown.
func (n TimeoutNotice) IsVisible() bool {
	return n.visible
}

// IsExpired reports whether the notice is the expiry notice.
func (n TimeoutNotice) IsExpired() bool {
	return n.expired
}

// Update dismisses the notice on any key. Dismissing a warning emits
// SessionExtendedMsg.
func (n TimeoutNotice) Update(msg tea.Msg) (TimeoutNotice, tea.Cmd) {
	if _, ok := msg.(tea.KeyMsg); !ok || !n.visible {
		return n, nil
	}
	wasWarning := !n.expired
	n.Hide()
	if wasWarning {
		return n, func() tea.Msg { return SessionExtendedMsg{} }
	}
	return n, nil
}

// View renders the notice, "" when hidden.
func (n TimeoutNotice) View() string {
	if !n.visible {
		return ""
	}

	var title, body string
	var border lipgloss.AdaptiveColor
	if n.expired {
		border = styles.Rose
		title = styles.RenderError("Session expired")
		body = "Your chat was idle too long and has been cleared."
	} else {
		border = styles.Amber
		title = styles.RenderWarning("Session timeout warning")
		body = "Chat history will be cleared in " +
			lipgloss.NewStyle().Foreground(styles.Amber).Bold(true).Render(formatTimeRemaining(n.remaining)) +
			". Press any key to keep it."
	}

	width := clamp(n.width-2, 30, 80)
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Width(width).
		Render(title + "\n" + body)
}

// formatTimeRemaining formats a duration as M:SS.
func formatTimeRemaining(d time.Duration) string {
	if d < 0 {
		return "0:00"
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
