// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jeranaias/wattchat/internal/model"
)

// =============================================================================
// CHAT MODES
// =============================================================================

// Mode selects the backend model family.
type Mode string

const (
	// ModePhi is the general conversational model.
	ModePhi Mode = "phi"

	// ModeTapas answers questions about the uploaded table.
	ModeTapas Mode = "tapas"
)

// =============================================================================
// REQUEST / RESPONSE TYPES
// =============================================================================

// Envelope is the body every endpoint returns.
type Envelope struct {
	Status string          `json:"status"`
	Answer json.RawMessage `json:"answer"`
}

// AnswerString returns the answer as text. Non-string answers are returned
// as their JSON encoding.
func (e Envelope) AnswerString() string {
	return answerText(e.Answer)
}

// ChatRequest is the body of the chat completion call.
type ChatRequest struct {
	Type     Mode   `json:"type"`
	Query    string `json:"query"`
	PrevChat string `json:"prevChat,omitempty"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// chatRecord is the body of POST /chats and PATCH /chats/:id.
type chatRecord struct {
	ChatHistory []model.WireTurn `json:"chat_history"`
}

// ChatSummary is one entry of GET /chats.
type ChatSummary struct {
	ID      string `json:"chatID"`
	Content string `json:"content"`
}

// UnmarshalJSON accepts numeric or string chat ids.
func (s *ChatSummary) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID      json.RawMessage `json:"chatID"`
		Content string          `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.ID = answerText(raw.ID)
	s.Content = raw.Content
	return nil
}

// answerText renders a raw JSON value as display text.
func answerText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}

// =============================================================================
// UPLOAD LIMITS
// =============================================================================

const (
	// MaxUploadSize is the largest file the backend accepts.
	MaxUploadSize = 1 << 20

	// UploadExt is the only accepted file extension.
	UploadExt = ".csv"
)

var (
	// ErrUploadTooLarge is returned for files over MaxUploadSize.
	ErrUploadTooLarge = errors.New("file exceeds the 1 MB upload limit")

	// ErrUploadType is returned for anything that is not a .csv file.
	ErrUploadType = errors.New("only .csv files can be uploaded")
)

// ValidateUpload checks name and size against the backend limits.
func ValidateUpload(name string, size int64) error {
	if !strings.EqualFold(filepath.Ext(name), UploadExt) {
		return ErrUploadType
	}
	if size > MaxUploadSize {
		return fmt.Errorf("%w (%s)", ErrUploadTooLarge, model.FormatSize(size))
	}
	return nil
}
