// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat turns and histories.
package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// TURN TYPE
// =============================================================================

// TurnType is the kind of content a turn carries.
type TurnType string

const (
	TypeText    TurnType = "text"
	TypeFile    TurnType = "file"
	TypeError   TurnType = "error"
	TypeLoading TurnType = "loading"
)

// Fixed turn contents.
const (
	GreetingText = "Hello, how can I help you?"
	LoadingText  = "LOADING..."
)

// FileRef describes an uploaded file. Only the name and size are kept; the
// bytes go straight to the upload endpoint.
type FileRef struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Turn is a single chat message.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Type      TurnType  `json:"type"`
	Text      string    `json:"-"`
	File      *FileRef  `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTurn creates a turn with a generated ID.
func NewTurn(role Role, typ TurnType, text string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Type:      typ,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// NewGreeting creates the assistant greeting every history starts with.
func NewGreeting() Turn {
	return NewTurn(RoleAssistant, TypeText, GreetingText)
}

// NewUserText creates a user text turn.
func NewUserText(text string) Turn {
	return NewTurn(RoleUser, TypeText, text)
}

// NewUserFile creates a user file-reference turn.
func NewUserFile(name string, size int64) Turn {
	t := NewTurn(RoleUser, TypeFile, "")
	t.File = &FileRef{Name: name, Size: size}
	return t
}

// NewAnswer creates an assistant text turn.
func NewAnswer(text string) Turn {
	return NewTurn(RoleAssistant, TypeText, text)
}

// NewLoading creates the transient placeholder shown while a call is pending.
func NewLoading() Turn {
	return NewTurn(RoleAssistant, TypeLoading, LoadingText)
}

// NewError creates an assistant error turn.
func NewError(text string) Turn {
	return NewTurn(RoleAssistant, TypeError, text)
}

// =============================================================================
// TURN METHODS
// =============================================================================

// IsGreeting reports whether the turn is the initial assistant greeting.
func (t Turn) IsGreeting() bool {
	return t.Role == RoleAssistant && t.Type == TypeText && t.Text == GreetingText
}

// IsFile reports whether the turn references an uploaded file.
func (t Turn) IsFile() bool {
	return t.Type == TypeFile && t.File != nil
}

// ContentString returns the textual content of the turn. File turns
// return the file name.
func (t Turn) ContentString() string {
	if t.IsFile() {
		return t.File.Name
	}
	return t.Text
}

// Preview returns a truncated preview of the content.
// Uses rune-based truncation to handle Unicode correctly.
func (t Turn) Preview(maxLen int) string {
	runes := []rune(t.ContentString())
	if len(runes) <= maxLen || maxLen < 4 {
		return string(runes)
	}
	return string(runes[:maxLen-3]) + "..."
}

// =============================================================================
// JSON
// =============================================================================

// turnJSON is the persisted shape. Content is a string for text, error and
// loading turns and an object for file turns.
type turnJSON struct {
	ID        string          `json:"id"`
	Role      Role            `json:"role"`
	Type      TurnType        `json:"type"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (t Turn) MarshalJSON() ([]byte, error) {
	content, err := encodeContent(t)
	if err != nil {
		return nil, err
	}
	return json.Marshal(turnJSON{
		ID:        t.ID,
		Role:      t.Role,
		Type:      t.Type,
		Content:   content,
		CreatedAt: t.CreatedAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Turn) UnmarshalJSON(data []byte) error {
	var raw turnJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.ID = raw.ID
	t.Role = raw.Role
	t.Type = raw.Type
	t.CreatedAt = raw.CreatedAt
	return decodeContent(t, raw.Content)
}

func encodeContent(t Turn) (json.RawMessage, error) {
	if t.Type == TypeFile {
		if t.File == nil {
			return nil, fmt.Errorf("file turn %s has no file reference", t.ID)
		}
		return json.Marshal(t.File)
	}
	return json.Marshal(t.Text)
}

func decodeContent(t *Turn, content json.RawMessage) error {
	t.Text = ""
	t.File = nil
	if len(content) == 0 || string(content) == "null" {
		return nil
	}
	if content[0] == '{' {
		var ref FileRef
		if err := json.Unmarshal(content, &ref); err != nil {
			return fmt.Errorf("decode file content: %w", err)
		}
		t.File = &ref
		return nil
	}
	if content[0] == '"' {
		return json.Unmarshal(content, &t.Text)
	}
	// Anything else (numbers, arrays) is kept as its JSON text.
	t.Text = string(content)
	return nil
}
