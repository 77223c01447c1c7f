// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// HISTORY
// =============================================================================

// History is the ordered list of turns of one chat. Index 0 is always the
// assistant greeting.
type History []Turn

// NewHistory returns a history holding only the greeting.
func NewHistory() History {
	return History{NewGreeting()}
}

// Len returns the number of turns.
func (h History) Len() int {
	return len(h)
}

// Last returns the newest turn.
func (h History) Last() (Turn, bool) {
	if len(h) == 0 {
		return Turn{}, false
	}
	return h[len(h)-1], true
}

// Prev returns the turn before the newest one.
func (h History) Prev() (Turn, bool) {
	if len(h) < 2 {
		return Turn{}, false
	}
	return h[len(h)-2], true
}

// Clone returns a copy that shares no backing array or file refs with h.
func (h History) Clone() History {
	out := make(History, len(h))
	for i, t := range h {
		if t.File != nil {
			ref := *t.File
			t.File = &ref
		}
		out[i] = t
	}
	return out
}

// Equal reports whether both histories hold the same turns in the same order.
func (h History) Equal(other History) bool {
	if len(h) != len(other) {
		return false
	}
	for i := range h {
		a, b := h[i], other[i]
		if a.ID != b.ID || a.Role != b.Role || a.Type != b.Type || a.Text != b.Text {
			return false
		}
		if (a.File == nil) != (b.File == nil) {
			return false
		}
		if a.File != nil && *a.File != *b.File {
			return false
		}
	}
	return true
}

// HasFile reports whether any turn references an uploaded file.
func (h History) HasFile() bool {
	for _, t := range h {
		if t.IsFile() {
			return true
		}
	}
	return false
}

// Repair makes sure the history starts with a greeting and holds no
// loading placeholder. Rehydrated or remote histories go through it. Only
// position 0 is the greeting; later turns with the same text are answers.
func Repair(h History) History {
	out := make(History, 0, len(h)+1)
	for _, t := range h {
		if t.Type == TypeLoading {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 || !out[0].IsGreeting() {
		out = append(History{NewGreeting()}, out...)
	}
	return out
}

// =============================================================================
// WIRE FORMAT
// =============================================================================

// WireTurn is the entry shape of a remote chat record. ID is the 1-based
// position in the history, which is what the chat backend indexes on.
type WireTurn struct {
	ID      int             `json:"id"`
	Role    Role            `json:"role"`
	Type    TurnType        `json:"type"`
	Content json.RawMessage `json:"content"`
}

// Wire converts the turns in h to remote entries, numbering them from
// offset+1.
func (h History) Wire(offset int) ([]WireTurn, error) {
	out := make([]WireTurn, 0, len(h))
	for i, t := range h {
		content, err := encodeContent(t)
		if err != nil {
			return nil, err
		}
		out = append(out, WireTurn{
			ID:      offset + i + 1,
			Role:    t.Role,
			Type:    t.Type,
			Content: content,
		})
	}
	return out, nil
}

// FromWire decodes remote entries into a repaired history with fresh IDs.
func FromWire(entries []WireTurn) (History, error) {
	h := make(History, 0, len(entries))
	for _, e := range entries {
		t := Turn{
			ID:   uuid.NewString(),
			Role: e.Role,
			Type: e.Type,
		}
		if err := decodeContent(&t, e.Content); err != nil {
			return nil, fmt.Errorf("entry %d: %w", e.ID, err)
		}
		h = append(h, t)
	}
	return Repair(h), nil
}
