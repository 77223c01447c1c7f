// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"
	"time"
)

func TestRevealer_OneRunePerTick(t *testing.T) {
	r := NewRevealer(time.Millisecond)
	if cmd := r.Start("a1", "héllo"); cmd == nil {
		t.Fatal("Start() returned no tick for non-empty text")
	}

	want := []string{"h", "hé", "hél", "héll"}
	for i, w := range want {
		cmd, done := r.Update(RevealTickMsg{ID: "a1", seq: r.seq})
		if done || cmd == nil {
			t.Fatalf("tick %d: done = %v, cmd nil = %v; want more ticks", i, done, cmd == nil)
		}
		if got := r.Visible(); got != w {
			t.Errorf("tick %d: Visible() = %q, want %q", i, got, w)
		}
	}

	cmd, done := r.Update(RevealTickMsg{ID: "a1", seq: r.seq})
	if !done || cmd != nil {
		t.Errorf("last tick: done = %v, cmd nil = %v; want done and no cmd", done, cmd == nil)
	}
	if r.Active() {
		t.Error("Active() = true after the last rune")
	}
	if got := r.Visible(); got != "héllo" {
		t.Errorf("Visible() = %q, want %q", got, "héllo")
	}
}

func TestRevealer_StaleTicksIgnored(t *testing.T) {
	r := NewRevealer(0)
	if r.interval != DefaultRevealInterval {
		t.Errorf("interval = %v, want %v", r.interval, DefaultRevealInterval)
	}

	r.Start("a1", "first answer")
	old := r.seq
	r.Start("a2", "second")

	if cmd, done := r.Update(RevealTickMsg{ID: "a1", seq: old}); cmd != nil || done {
		t.Error("tick from the replaced reveal was applied")
	}
	if shown, _ := r.Progress(); shown != 0 {
		t.Errorf("shown = %d after a stale tick, want 0", shown)
	}

	r.Stop()
	if cmd, _ := r.Update(RevealTickMsg{ID: "a2", seq: old + 1}); cmd != nil {
		t.Error("tick after Stop scheduled another tick")
	}
	if r.Active() {
		t.Error("Active() = true after Stop")
	}
}

func TestRevealer_EmptyText(t *testing.T) {
	r := NewRevealer(time.Millisecond)
	if cmd := r.Start("a1", ""); cmd != nil {
		t.Error("Start(\"\") returned a tick")
	}
	if r.Active() {
		t.Error("Active() = true for empty text")
	}
}
