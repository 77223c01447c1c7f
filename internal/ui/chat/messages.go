// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/wattchat/internal/api"
	"github.com/jeranaias/wattchat/internal/conversation"
	"github.com/jeranaias/wattchat/internal/model"
)

// =============================================================================
// MESSAGES TO THE APP
// =============================================================================

// UnauthorizedMsg reports that the backend rejected the session token.
type UnauthorizedMsg struct {
	Err error
}

// LogoutRequestMsg asks the app to log out.
type LogoutRequestMsg struct{}

// =============================================================================
// INTERNAL RESULT MESSAGES
// =============================================================================

type responseMsg struct {
	req    conversation.Request
	answer string
	err    error
}

type syncMsg struct {
	job    conversation.SyncJob
	chatID string
	err    error
}

type chatsMsg struct {
	chats []api.ChatSummary
	err   error
}

type chatLoadedMsg struct {
	id      string
	history model.History
	err     error
}

type cleanupMsg struct {
	err error
}

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// All of these only do I/O through the engine; the results are applied in
// Update.

func executeCmd(ctx context.Context, e *conversation.Engine, req conversation.Request) tea.Cmd {
	return func() tea.Msg {
		answer, err := e.Execute(ctx, req)
		return responseMsg{req: req, answer: answer, err: err}
	}
}

func syncCmd(ctx context.Context, e *conversation.Engine, job conversation.SyncJob) tea.Cmd {
	return func() tea.Msg {
		id, err := e.Sync(ctx, job)
		return syncMsg{job: job, chatID: id, err: err}
	}
}

func listChatsCmd(ctx context.Context, e *conversation.Engine) tea.Cmd {
	return func() tea.Msg {
		chats, err := e.ListChats(ctx)
		return chatsMsg{chats: chats, err: err}
	}
}

func fetchChatCmd(ctx context.Context, e *conversation.Engine, id string) tea.Cmd {
	return func() tea.Msg {
		h, err := e.FetchChat(ctx, id)
		return chatLoadedMsg{id: id, history: h, err: err}
	}
}

func cleanupCmd(ctx context.Context, e *conversation.Engine) tea.Cmd {
	return func() tea.Msg {
		return cleanupMsg{err: e.Cleanup(ctx)}
	}
}

func unauthorizedCmd(err error) tea.Cmd {
	return func() tea.Msg {
		return UnauthorizedMsg{Err: err}
	}
}
