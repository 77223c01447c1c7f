// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"strings"

	"github.com/jeranaias/wattchat/internal/model"
)

// =============================================================================
// STATE
// =============================================================================

// State is the position in the turn lifecycle, derived from the last turn.
type State int

const (
	// StateIdle: the last turn is an assistant answer (or the greeting).
	StateIdle State = iota
	// StateUserTurn: a user turn is waiting for its remote call.
	StateUserTurn
	// StateLoading: the remote call is in flight.
	StateLoading
	// StateErrored: the last call failed; input is blocked until retry.
	StateErrored
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUserTurn:
		return "user-turn-appended"
	case StateLoading:
		return "loading"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Errors returned by the state machine.
var (
	ErrEmptyInput      = errors.New("nothing to send")
	ErrBusy            = errors.New("a response is still pending")
	ErrBlocked         = errors.New("the last request failed; retry first")
	ErrNothingToRetry  = errors.New("the last turn is not an error")
	ErrNoPendingTurn   = errors.New("no user turn is waiting for a response")
	ErrStaleCompletion = errors.New("response arrived for a turn that is gone")
)

// =============================================================================
// CONVERSATION
// =============================================================================

// Conversation is the ordered turn list plus the flags the UI needs. It has
// no lock; only one goroutine may use it.
type Conversation struct {
	history model.History
	errored bool
	chatID  string

	// revealID is the answer that should be typed out; empty when the
	// newest answer came from storage.
	revealID string

	// generation changes whenever the list is replaced wholesale, so
	// late results for a dropped list can be recognised.
	generation int
}

// New returns a conversation holding only the greeting.
func New() *Conversation {
	return &Conversation{history: model.NewHistory()}
}

// History returns a copy of the turn list.
func (c *Conversation) History() model.History {
	return c.history.Clone()
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	return len(c.history)
}

// Last returns the newest turn.
func (c *Conversation) Last() model.Turn {
	t, _ := c.history.Last()
	return t
}

// ChatID returns the remote chat record id, "" if none exists yet.
func (c *Conversation) ChatID() string {
	return c.chatID
}

// SetChatID records the remote chat record id.
func (c *Conversation) SetChatID(id string) {
	c.chatID = id
}

// Generation identifies the current list; see Reset and Load.
func (c *Conversation) Generation() int {
	return c.generation
}

// RevealID returns the id of the answer to animate, "" for none.
func (c *Conversation) RevealID() string {
	return c.revealID
}

// MarkRevealed stops the reveal of the newest answer.
func (c *Conversation) MarkRevealed() {
	c.revealID = ""
}

// State derives the lifecycle state from the last turn.
func (c *Conversation) State() State {
	last := c.Last()
	switch {
	case c.errored || last.Type == model.TypeError:
		return StateErrored
	case last.Type == model.TypeLoading:
		return StateLoading
	case last.Role == model.RoleUser:
		return StateUserTurn
	default:
		return StateIdle
	}
}

// IsErrored reports whether input is blocked by a failed call.
func (c *Conversation) IsErrored() bool {
	return c.errored
}

// CanSubmit reports whether a new user turn would be accepted.
func (c *Conversation) CanSubmit() bool {
	return c.State() == StateIdle
}

// =============================================================================
// SUBMISSION
// =============================================================================

func (c *Conversation) checkSubmit() error {
	switch c.State() {
	case StateErrored:
		return ErrBlocked
	case StateLoading, StateUserTurn:
		return ErrBusy
	}
	return nil
}

// SubmitText appends a user text turn. Whitespace-only text is rejected.
func (c *Conversation) SubmitText(text string) (model.Turn, error) {
	if strings.TrimSpace(text) == "" {
		return model.Turn{}, ErrEmptyInput
	}
	if err := c.checkSubmit(); err != nil {
		return model.Turn{}, err
	}
	t := model.NewUserText(text)
	c.history = append(c.history, t)
	return t, nil
}

// SubmitFile appends a user file-reference turn.
func (c *Conversation) SubmitFile(name string, size int64) (model.Turn, error) {
	if name == "" {
		return model.Turn{}, ErrEmptyInput
	}
	if err := c.checkSubmit(); err != nil {
		return model.Turn{}, err
	}
	t := model.NewUserFile(name, size)
	c.history = append(c.history, t)
	return t, nil
}

// NeedsResponse reports whether the last turn is a user turn with no call
// in flight.
func (c *Conversation) NeedsResponse() bool {
	return c.State() == StateUserTurn
}

// BeginResponse selects the remote call for the pending user turn and
// appends the loading placeholder.
func (c *Conversation) BeginResponse() (Request, error) {
	if !c.NeedsResponse() {
		return Request{}, ErrNoPendingTurn
	}
	req, err := Select(c.history)
	if err != nil {
		return Request{}, err
	}
	loading := model.NewLoading()
	c.history = append(c.history, loading)
	req.LoadingID = loading.ID
	req.Generation = c.generation
	return req, nil
}

// =============================================================================
// COMPLETION
// =============================================================================

// pending reports whether req is the call the list is waiting on.
func (c *Conversation) pending(req Request) bool {
	last := c.Last()
	return req.Generation == c.generation && last.Type == model.TypeLoading && last.ID == req.LoadingID
}

// dropLoading slices the placeholder off the end of the list.
func (c *Conversation) dropLoading() {
	if last := c.Last(); last.Type == model.TypeLoading {
		c.history = c.history[:len(c.history)-1]
	}
}

// Resolve replaces the placeholder for req with the assistant answer.
func (c *Conversation) Resolve(req Request, answer string) (model.Turn, error) {
	if !c.pending(req) {
		return model.Turn{}, ErrStaleCompletion
	}
	c.dropLoading()
	t := model.NewAnswer(answer)
	c.history = append(c.history, t)
	c.errored = false
	c.revealID = t.ID
	return t, nil
}

// Fail replaces the placeholder for req with an error turn and blocks input.
func (c *Conversation) Fail(req Request, cause error) (model.Turn, error) {
	if !c.pending(req) {
		return model.Turn{}, ErrStaleCompletion
	}
	c.dropLoading()
	msg := "Something went wrong"
	if cause != nil && cause.Error() != "" {
		msg = cause.Error()
	}
	t := model.NewError(msg)
	c.history = append(c.history, t)
	c.errored = true
	return t, nil
}

// Retry drops the error turn, and the file turn before it if there is one,
// then clears the error flag. After a failed text turn the user turn stays,
// so NeedsResponse is true again and the call is re-issued.
func (c *Conversation) Retry() error {
	last := c.Last()
	if last.Type != model.TypeError {
		return ErrNothingToRetry
	}
	c.history = c.history[:len(c.history)-1]
	if prev := c.Last(); prev.Type == model.TypeFile && len(c.history) > 1 {
		c.history = c.history[:len(c.history)-1]
	}
	c.errored = false
	return nil
}

// =============================================================================
// WHOLE-LIST CHANGES
// =============================================================================

// Reset returns to the greeting and forgets the remote chat.
func (c *Conversation) Reset() {
	c.history = model.NewHistory()
	c.errored = false
	c.chatID = ""
	c.revealID = ""
	c.generation++
}

// Load replaces the list with h, shown in full without a reveal.
func (c *Conversation) Load(h model.History, chatID string) {
	c.history = model.Repair(h)
	c.errored = false
	c.chatID = chatID
	c.revealID = ""
	c.generation++
	if last := c.Last(); last.Type == model.TypeError {
		c.errored = true
	}
}
