// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/wattchat/internal/api"
	"github.com/jeranaias/wattchat/internal/conversation"
	"github.com/jeranaias/wattchat/internal/logger"
	"github.com/jeranaias/wattchat/internal/ui/components"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all messages of the chat screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		if m.overlay == overlayUpload {
			var cmd tea.Cmd
			m.upload, cmd = m.upload.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case responseMsg:
		return m.handleResponse(msg)

	case syncMsg:
		m.engine.ApplySync(m.ctx, msg.job, msg.chatID, msg.err)
		m.refresh()
		return m, nil

	case RevealTickMsg:
		cmd, done := m.reveal.Update(msg)
		if done {
			m.conv().MarkRevealed()
		}
		m.refresh()
		return m, cmd

	case spinner.TickMsg:
		if m.conv().State() != conversation.StateLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case components.SessionExtendedMsg:
		if err := m.engine.Sessions().Touch(m.ctx); err != nil {
			logger.WarnCF("chat", "Failed to extend session", map[string]interface{}{
				"error": err.Error(),
			})
		}
		m.layout()
		return m, nil

	case components.UploadChosenMsg:
		m.overlay = overlayNone
		return m.submitFile(msg.Path)

	case components.UploadCancelledMsg:
		m.overlay = overlayNone
		return m, nil

	case chatsMsg:
		if msg.err != nil {
			if errors.Is(msg.err, api.ErrUnauthorized) {
				return m, unauthorizedCmd(msg.err)
			}
			m.chats.SetError(msg.err.Error())
			return m, nil
		}
		m.chats.SetItems(msg.chats)
		return m, nil

	case components.ChatSelectedMsg:
		m.overlay = overlayNone
		m.setStatus("Loading chat #"+msg.ID+"...", false)
		return m, fetchChatCmd(m.ctx, m.engine, msg.ID)

	case components.ChatListClosedMsg:
		m.overlay = overlayNone
		return m, nil

	case chatLoadedMsg:
		return m.handleChatLoaded(msg)

	case cleanupMsg:
		if msg.err != nil {
			logger.WarnCF("chat", "Failed to remove uploaded data", map[string]interface{}{
				"error": msg.err.Error(),
			})
		}
		return m, nil
	}

	// Anything else belongs to the open modal (e.g. filepicker reads).
	if m.overlay == overlayUpload {
		var cmd tea.Cmd
		m.upload, cmd = m.upload.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.overlay {
	case overlayUpload:
		var cmd tea.Cmd
		m.upload, cmd = m.upload.Update(msg)
		return m, cmd
	case overlayChats:
		var cmd tea.Cmd
		m.chats, cmd = m.chats.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	if m.notice.IsVisible() {
		var cmd tea.Cmd
		m.notice, cmd = m.notice.Update(msg)
		cmds = append(cmds, cmd)
		m.layout()
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		var cmd tea.Cmd
		m, cmd = m.submitText()
		cmds = append(cmds, cmd)

	case key.Matches(msg, m.keys.Retry):
		var cmd tea.Cmd
		m, cmd = m.retry()
		cmds = append(cmds, cmd)

	case key.Matches(msg, m.keys.NewChat):
		var cmd tea.Cmd
		m, cmd = m.newChat()
		cmds = append(cmds, cmd)

	case key.Matches(msg, m.keys.Upload):
		if !m.conv().CanSubmit() {
			m.setStatus(blockedReason(m.conv()), true)
			break
		}
		m.overlay = overlayUpload
		m.upload = components.NewUploadModal(m.theme, m.opts.UploadDir)
		m.upload.SetSize(m.width, m.height)
		cmds = append(cmds, m.upload.Init())

	case key.Matches(msg, m.keys.Chats):
		m.overlay = overlayChats
		m.chats = components.NewChatList(m.theme)
		m.chats.SetSize(m.width, m.height)
		cmds = append(cmds, listChatsCmd(m.ctx, m.engine))

	case key.Matches(msg, m.keys.Logout):
		cmds = append(cmds, func() tea.Msg { return LogoutRequestMsg{} })

	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)
	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// =============================================================================
// TURN LIFECYCLE
// =============================================================================

func (m Model) submitText() (Model, tea.Cmd) {
	text := m.input.Value()
	if _, err := m.engine.SubmitText(text); err != nil {
		if errors.Is(err, conversation.ErrEmptyInput) {
			return m, nil
		}
		m.setStatus(submitError(m.conv(), err), true)
		return m, nil
	}
	m.input.Reset()
	m.finishReveal()
	m.setStatus("", false)
	cmd := m.startResponse()
	m.viewport.GotoBottom()
	return m, cmd
}

func (m Model) submitFile(path string) (Model, tea.Cmd) {
	if _, err := m.engine.SubmitFile(path); err != nil {
		m.setStatus(submitError(m.conv(), err), true)
		return m, nil
	}
	m.finishReveal()
	m.setStatus("", false)
	cmd := m.startResponse()
	m.viewport.GotoBottom()
	return m, cmd
}

// finishReveal shows a still-revealing answer in full.
func (m *Model) finishReveal() {
	if m.reveal.Active() {
		m.reveal.Stop()
		m.conv().MarkRevealed()
	}
}

// startResponse appends the loading turn and starts the remote call.
func (m *Model) startResponse() tea.Cmd {
	req, err := m.engine.Begin()
	if err != nil {
		m.setStatus(err.Error(), true)
		return nil
	}
	m.refresh()
	return tea.Batch(executeCmd(m.ctx, m.engine, req), m.spinner.Tick)
}

func (m Model) handleResponse(msg responseMsg) (Model, tea.Cmd) {
	res, err := m.engine.Complete(m.ctx, msg.req, msg.answer, msg.err)
	if errors.Is(err, conversation.ErrStaleCompletion) {
		logger.DebugCF("chat", "Dropped a response for a replaced chat", map[string]interface{}{
			"loading_id": msg.req.LoadingID,
		})
		return m, nil
	}
	if err != nil {
		m.setStatus(err.Error(), true)
		return m, nil
	}

	var cmds []tea.Cmd
	if res.Unauthorized {
		cmds = append(cmds, unauthorizedCmd(res.Err))
	}
	if res.Sync != nil {
		cmds = append(cmds, syncCmd(m.ctx, m.engine, *res.Sync))
	}
	if res.Err == nil && m.conv().RevealID() == res.Turn.ID {
		cmds = append(cmds, m.reveal.Start(res.Turn.ID, res.Turn.Text))
	}
	m.refresh()
	return m, tea.Batch(cmds...)
}

func (m Model) retry() (Model, tea.Cmd) {
	if err := m.engine.Retry(); err != nil {
		if errors.Is(err, conversation.ErrNothingToRetry) {
			return m, nil
		}
		m.setStatus(err.Error(), true)
		return m, nil
	}
	m.setStatus("", false)
	if m.conv().NeedsResponse() {
		return m, m.startResponse()
	}
	m.refresh()
	return m, nil
}

func (m Model) newChat() (Model, tea.Cmd) {
	m.reveal.Stop()
	hadFile, err := m.engine.NewChat(m.ctx)
	if err != nil {
		logger.WarnCF("chat", "Failed to clear stored session", map[string]interface{}{
			"error": err.Error(),
		})
	}
	m.notice.Hide()
	m.setStatus("Started a new chat", false)
	m.layout()
	if hadFile {
		return m, cleanupCmd(m.ctx, m.engine)
	}
	return m, nil
}

func (m Model) handleChatLoaded(msg chatLoadedMsg) (Model, tea.Cmd) {
	if msg.err != nil {
		if errors.Is(msg.err, api.ErrUnauthorized) {
			return m, unauthorizedCmd(msg.err)
		}
		m.setStatus("Could not load chat #"+msg.id+": "+msg.err.Error(), true)
		return m, nil
	}
	m.reveal.Stop()
	if err := m.engine.ApplyChat(m.ctx, msg.history, msg.id); err != nil {
		logger.WarnCF("chat", "Failed to persist loaded chat", map[string]interface{}{
			"chat_id": msg.id,
			"error":   err.Error(),
		})
	}
	m.setStatus("Loaded chat #"+msg.id, false)
	m.refresh()
	m.viewport.GotoBottom()
	if m.conv().NeedsResponse() {
		return m, m.startResponse()
	}
	return m, nil
}
