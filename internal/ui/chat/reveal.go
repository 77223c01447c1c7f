// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// TYPED-RESPONSE REVEAL
// =============================================================================

// DefaultRevealInterval is the time between two revealed runes.
const DefaultRevealInterval = 5 * time.Millisecond

// RevealTickMsg advances the reveal by one rune.
type RevealTickMsg struct {
	ID  string
	seq int
}

// Revealer types out one answer a rune per tick. Each Start or Stop bumps
// a sequence number so ticks scheduled for an earlier reveal are dropped
// instead of doubling the speed of the current one.
type Revealer struct {
	id       string
	runes    []rune
	shown    int
	interval time.Duration
	active   bool
	seq      int
}

// NewRevealer creates an idle revealer. A non-positive interval uses the
// default.
func NewRevealer(interval time.Duration) *Revealer {
	if interval <= 0 {
		interval = DefaultRevealInterval
	}
	return &Revealer{interval: interval}
}

// Start begins revealing text for turn id and returns the first tick.
func (r *Revealer) Start(id, text string) tea.Cmd {
	r.seq++
	r.id = id
	r.runes = []rune(text)
	r.shown = 0
	r.active = len(r.runes) > 0
	if !r.active {
		return nil
	}
	return r.tick()
}

func (r *Revealer) tick() tea.Cmd {
	id, seq := r.id, r.seq
	return tea.Tick(r.interval, func(time.Time) tea.Msg {
		return RevealTickMsg{ID: id, seq: seq}
	})
}

// Update shows one more rune. It returns the next tick, or done=true when
// the whole text is visible. Ticks from a stopped reveal return nothing.
func (r *Revealer) Update(msg RevealTickMsg) (cmd tea.Cmd, done bool) {
	if !r.active || msg.seq != r.seq || msg.ID != r.id {
		return nil, false
	}
	r.shown++
	if r.shown >= len(r.runes) {
		r.active = false
		return nil, true
	}
	return r.tick(), false
}

// Stop ends the reveal; the turn is then shown in full.
func (r *Revealer) Stop() {
	r.active = false
	r.seq++
}

// Active reports whether a reveal is running.
func (r *Revealer) Active() bool {
	return r.active
}

// ID returns the turn being revealed.
func (r *Revealer) ID() string {
	return r.id
}

// Visible returns the revealed prefix.
func (r *Revealer) Visible() string {
	return string(r.runes[:r.shown])
}

// Progress returns revealed and total rune counts.
func (r *Revealer) Progress() (shown, total int) {
	return r.shown, len(r.runes)
}
