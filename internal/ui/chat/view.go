// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/wattchat/internal/conversation"
	"github.com/jeranaias/wattchat/internal/model"
	"github.com/jeranaias/wattchat/internal/ui/components"
	"github.com/jeranaias/wattchat/internal/ui/styles"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders header, turn list (or the open modal), notice, input and
// status line.
func (m Model) View() string {
	var body string
	switch m.overlay {
	case overlayUpload:
		body = m.place(m.upload.View())
	case overlayChats:
		body = m.place(m.chats.View())
	default:
		body = m.viewport.View()
	}

	parts := []string{m.header.View(), body}
	if n := m.notice.View(); n != "" {
		parts = append(parts, n)
	}
	parts = append(parts, m.renderInput(), m.renderStatus())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) place(modal string) string {
	return lipgloss.Place(m.width, m.viewport.Height, lipgloss.Center, lipgloss.Center, modal)
}

func (m Model) renderInput() string {
	conv := m.engine.Conversation()
	switch conv.State() {
	case conversation.StateErrored:
		return m.theme.InputBlocked.Width(m.width).Render(
			m.theme.ErrorText.Render("Request failed. ctrl+r retry | ctrl+n new chat"))
	}
	return m.theme.InputContainer.Width(m.width).Render(m.input.View())
}

func (m Model) renderStatus() string {
	var line string
	switch {
	case m.status != "" && m.statusErr:
		line = styles.RenderError(m.status)
	case m.status != "":
		line = m.theme.Muted.Render(m.status)
	default:
		line = renderHelp(m.theme, m.keys.ShortHelp())
	}
	return m.theme.StatusBar.Width(m.width).MaxHeight(1).Render(line)
}

// turnView picks how t is drawn this frame.
func (m *Model) turnView(t model.Turn, lastID string) components.TurnView {
	var v components.TurnView
	switch {
	case t.Type == model.TypeLoading:
		v.Spinner = m.spinner.View()
	case t.Type == model.TypeError:
		v.Retry = t.ID == lastID
	case m.reveal.Active() && t.ID == m.reveal.ID():
		v.Revealing = true
		v.Text = m.reveal.Visible()
	}
	return v
}

// =============================================================================
// HELPERS
// =============================================================================

func stateLabel(s conversation.State) string {
	switch s {
	case conversation.StateLoading, conversation.StateUserTurn:
		return "thinking"
	case conversation.StateErrored:
		return "error"
	default:
		return ""
	}
}

func blockedReason(c *conversation.Conversation) string {
	if c.State() == conversation.StateErrored {
		return "The last request failed. Retry with ctrl+r or start a new chat."
	}
	return "Wait for the current answer first."
}

func submitError(c *conversation.Conversation, err error) string {
	if errors.Is(err, conversation.ErrBlocked) || errors.Is(err, conversation.ErrBusy) {
		return blockedReason(c)
	}
	return err.Error()
}

func countLines(s string) int {
	return strings.Count(s, "\n") + 1
}
