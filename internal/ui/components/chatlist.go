// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/wattchat/internal/api"
	"github.com/jeranaias/wattchat/internal/ui/styles"
)

// =============================================================================
// CHAT LIST
// =============================================================================

// ChatSelectedMsg is sent when a stored chat is picked.
type ChatSelectedMsg struct {
	ID string
}

// ChatListClosedMsg is sent when the list is closed without a pick.
type ChatListClosedMsg struct{}

// ChatList shows the user's stored chats.
type ChatList struct {
	items   []api.ChatSummary
	cursor  int
	offset  int
	loading bool
	err     string

	width  int
	height int
	theme  *styles.Theme
}

// NewChatList creates an empty list in the loading state.
func NewChatList(theme *styles.Theme) ChatList {
	return ChatList{theme: theme, loading: true, width: 80, height: 24}
}

// SetSize sets the available screen size.
func (l *ChatList) SetSize(width, height int) {
	l.width, l.height = width, height
}

// SetItems replaces the list contents.
func (l *ChatList) SetItems(items []api.ChatSummary) {
	l.items = items
	l.loading = false
	l.err = ""
	l.cursor, l.offset = 0, 0
}

// SetError shows a load failure.
func (l *ChatList) SetError(msg string) {
	l.loading = false
	l.err = msg
}

// Selected returns the chat under the cursor.
func (l ChatList) Selected() (api.ChatSummary, bool) {
	if l.cursor < 0 || l.cursor >= len(l.items) {
		return api.ChatSummary{}, false
	}
	return l.items[l.cursor], true
}

func (l ChatList) rows() int {
	return clamp(l.height-10, 3, 30)
}

// Update moves the cursor and reports a pick or close.
func (l ChatList) Update(msg tea.Msg) (ChatList, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return l, nil
	}
	switch key.String() {
	case "up", "k":
		if l.cursor > 0 {
			l.cursor--
		}
	case "down", "j":
		if l.cursor < len(l.items)-1 {
			l.cursor++
		}
	case "home", "g":
		l.cursor = 0
	case "end", "G":
		if len(l.items) > 0 {
			l.cursor = len(l.items) - 1
		}
	case "enter":
		if item, ok := l.Selected(); ok {
			return l, func() tea.Msg { return ChatSelectedMsg{ID: item.ID} }
		}
	case "esc", "q", "ctrl+o":
		return l, func() tea.Msg { return ChatListClosedMsg{} }
	}

	rows := l.rows()
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+rows {
		l.offset = l.cursor - rows + 1
	}
	return l, nil
}

// View renders the list modal.
func (l ChatList) View() string {
	width := clamp(l.width-4, 40, 100)
	inner := width - 6

	parts := []string{l.theme.ModalTitle.Render("Your chats")}
	switch {
	case l.loading:
		parts = append(parts, l.theme.Muted.Render("Loading..."))
	case l.err != "":
		parts = append(parts, styles.RenderError(l.err))
	case len(l.items) == 0:
		parts = append(parts, l.theme.Muted.Render("No saved chats yet."))
	default:
		end := l.offset + l.rows()
		if end > len(l.items) {
			end = len(l.items)
		}
		var lines []string
		for i := l.offset; i < end; i++ {
			lines = append(lines, l.renderItem(i, inner))
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	parts = append(parts, "", l.theme.Muted.Render("up/down move | enter open | esc close"))

	return l.theme.Modal.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (l ChatList) renderItem(i, width int) string {
	item := l.items[i]
	id := "#" + item.ID
	preview := item.Content
	if preview == "" {
		preview = "(empty)"
	}
	text := l.theme.ListMeta.Render(id) + " " + truncate(preview, width-len(id)-3)
	if i == l.cursor {
		return l.theme.ListItemSelected.Render(text)
	}
	return l.theme.ListItem.Render(text)
}
