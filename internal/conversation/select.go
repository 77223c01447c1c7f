// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/wattchat/internal/api"
	"github.com/jeranaias/wattchat/internal/model"
)

// FileMarker in a text turn asks about the uploaded table.
const FileMarker = "/file"

// Kind is the remote call a user turn maps to.
type Kind int

const (
	// KindChat is a chat completion call.
	KindChat Kind = iota
	// KindUpload is a file-analysis upload.
	KindUpload
)

// Request describes the remote call for one pending user turn.
type Request struct {
	Kind Kind

	// TurnID is the user turn being answered.
	TurnID string

	// Chat is set for KindChat.
	Chat api.ChatRequest

	// File and Path are set for KindUpload.
	File model.FileRef
	Path string

	// LoadingID and Generation tie the result back to the placeholder.
	LoadingID  string
	Generation int
}

// Select maps the last turn of h, which must be a user turn, to its remote
// call. The turn before it is attached as context unless it is the greeting
// at position 0.
func Select(h model.History) (Request, error) {
	last, ok := h.Last()
	if !ok || last.Role != model.RoleUser {
		return Request{}, ErrNoPendingTurn
	}

	req := Request{TurnID: last.ID}
	switch last.Type {
	case model.TypeFile:
		if last.File == nil {
			return Request{}, fmt.Errorf("file turn %s has no file reference", last.ID)
		}
		req.Kind = KindUpload
		req.File = *last.File
		return req, nil

	case model.TypeText:
		mode, query := ParseQuery(last.Text)
		req.Kind = KindChat
		req.Chat = api.ChatRequest{Type: mode, Query: query}
		if prev, ok := h.Prev(); ok && len(h) > 2 {
			req.Chat.PrevChat = prev.ContentString()
		}
		return req, nil
	}
	return Request{}, fmt.Errorf("cannot answer a %s turn", last.Type)
}

// ParseQuery normalizes text and picks the chat mode. Text carrying the
// file marker goes to the table model with the marker removed.
func ParseQuery(text string) (api.Mode, string) {
	text = norm.NFKC.String(text)
	if strings.Contains(text, FileMarker) {
		return api.ModeTapas, strings.TrimSpace(strings.ReplaceAll(text, FileMarker, ""))
	}
	return api.ModePhi, strings.TrimSpace(text)
}
