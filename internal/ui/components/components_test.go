// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/wattchat/internal/api"
	"github.com/jeranaias/wattchat/internal/model"
	"github.com/jeranaias/wattchat/internal/ui/styles"
)

func testTheme() *styles.Theme {
	return styles.NewTheme(styles.ModeDark)
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func runCmd(cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	return cmd()
}

// =============================================================================
// HELPERS
// =============================================================================

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"energy usage report", 10, "energy ..."},
		{"abc", 0, ""},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestWrap(t *testing.T) {
	out := wrap("run the dishwasher late in the evening", 12)
	for _, line := range strings.Split(out, "\n") {
		if w := runewidth.StringWidth(line); w > 12 {
			t.Errorf("line %q is %d cells, want <= 12", line, w)
		}
	}
	assert.Equal(t, "run the dishwasher late in the evening", strings.Join(strings.Fields(out), " "))

	long := wrap(strings.Repeat("x", 25), 10)
	assert.Equal(t, "xxxxxxxxxx\nxxxxxxxxxx\nxxxxx", long)
}

// =============================================================================
// MESSAGE RENDERER
// =============================================================================

func TestMessageRenderer(t *testing.T) {
	r := NewMessageRenderer(testTheme(), nil)
	r.SetWidth(80)

	user := r.Render(model.NewUserText("How much does my fridge use?"), TurnView{})
	assert.Contains(t, user, "How much does my fridge use?")
	assert.Contains(t, user, "You")

	file := r.Render(model.NewUserFile("usage.csv", 1536), TurnView{})
	assert.Contains(t, file, "usage.csv (1.50 KB)")

	loading := r.Render(model.NewLoading(), TurnView{Spinner: "|"})
	assert.Contains(t, loading, "| "+model.LoadingText)

	errTurn := r.Render(model.NewError("backend unreachable"), TurnView{Retry: true})
	assert.Contains(t, errTurn, "backend unreachable")
	assert.Contains(t, errTurn, "ctrl+r")

	answer := model.NewAnswer("Use LED bulbs")
	revealing := r.Render(answer, TurnView{Revealing: true, Text: "Use L"})
	assert.Contains(t, revealing, "Use L▌")
	assert.NotContains(t, revealing, "bulbs")

	done := r.Render(answer, TurnView{})
	assert.Contains(t, done, "Use LED bulbs")
}

func TestMessageRenderer_Markdown(t *testing.T) {
	r := NewMessageRenderer(testTheme(), NewMarkdown("notty"))
	r.SetWidth(60)

	out := r.Render(model.NewAnswer("Switch to **LED** bulbs"), TurnView{})
	assert.Contains(t, out, "LED")
	assert.Contains(t, out, "bulbs")

	// The greeting is never run through markdown.
	greet := r.Render(model.NewGreeting(), TurnView{})
	assert.Contains(t, greet, model.GreetingText)
}

func TestMarkdownCache(t *testing.T) {
	md := NewMarkdown("notty")
	first := md.Render("# Tips", 40)
	second := md.Render("# Tips", 40)
	assert.Equal(t, first, second)
	assert.Len(t, md.cache, 1)
	assert.Len(t, md.renderers, 1)
}

// =============================================================================
// HEADER
// =============================================================================

func TestHeaderView(t *testing.T) {
	h := NewHeader(testTheme())
	h.SetWidth(60)
	h.User = "demo"
	h.ChatID = "7"
	out := h.View()
	assert.Contains(t, out, "wattchat")
	assert.Contains(t, out, "chat #7")
	assert.Contains(t, out, "demo")
}

// =============================================================================
// TIMEOUT NOTICE
// =============================================================================

func TestTimeoutNotice(t *testing.T) {
	n := NewTimeoutNotice(testTheme())
	assert.Empty(t, n.View())

	n.Show(90 * time.Second)
	assert.True(t, n.IsVisible())
	assert.Contains(t, n.View(), "1:30")

	n, cmd := n.Update(keyRunes("a"))
	assert.False(t, n.IsVisible())
	assert.IsType(t, SessionExtendedMsg{}, runCmd(cmd))

	n.ShowExpired()
	assert.Contains(t, n.View(), "Session expired")
	n, cmd = n.Update(keyRunes("a"))
	assert.False(t, n.IsVisible())
	assert.Nil(t, cmd)
}

func TestFormatTimeRemaining(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "0:00"},
		{59 * time.Second, "0:59"},
		{2 * time.Minute, "2:00"},
	}
	for _, tt := range tests {
		if got := formatTimeRemaining(tt.d); got != tt.want {
			t.Errorf("formatTimeRemaining(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

// =============================================================================
// LOGIN FORM
// =============================================================================

func TestLoginForm_Validation(t *testing.T) {
	f := NewLoginForm(testTheme())

	f, cmd := f.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Contains(t, f.View(), ErrMissingFields)
	assert.False(t, f.Busy())
}

func TestLoginForm_Submit(t *testing.T) {
	f := NewLoginForm(testTheme())

	f, _ = f.Update(keyRunes("demo"))
	f, _ = f.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, fieldPass, f.focus, "enter on a filled username moves to the password")

	f, _ = f.Update(keyRunes("secret"))
	assert.NotContains(t, f.View(), "secret", "password is masked")

	f, cmd := f.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, f.Busy())
	assert.Equal(t, LoginSubmitMsg{Username: "demo", Password: "secret"}, runCmd(cmd))

	f.SetError("Invalid credentials")
	assert.False(t, f.Busy())
	f.Reset()
	assert.Equal(t, "demo", f.Username())
	assert.Equal(t, fieldPass, f.focus)
	assert.Empty(t, f.pass.Value())
}

// =============================================================================
// UPLOAD MODAL
// =============================================================================

func TestUploadModal_PickAndConfirm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usage.csv")
	require.NoError(t, os.WriteFile(path, []byte("Appliance,kWh\nTV,0.4\n"), 0o644))

	u := NewUploadModal(testTheme(), dir)
	u.pick(path)
	require.Equal(t, path, u.Chosen())
	assert.Contains(t, u.View(), "usage.csv (")

	_, cmd := u.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, UploadChosenMsg{Path: path}, runCmd(cmd))

	u, _ = u.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, u.Chosen(), "esc goes back to the list")

	_, cmd = u.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, UploadCancelledMsg{}, runCmd(cmd))
}

func TestUploadModal_RejectsLargeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.csv")
	require.NoError(t, os.WriteFile(path, make([]byte, api.MaxUploadSize+1), 0o644))

	u := NewUploadModal(testTheme(), dir)
	u.pick(path)
	assert.Empty(t, u.Chosen())
	assert.Contains(t, u.View(), "exceeds")
}

// =============================================================================
// CHAT LIST
// =============================================================================

func TestChatList(t *testing.T) {
	l := NewChatList(testTheme())
	assert.Contains(t, l.View(), "Loading")

	l.SetItems([]api.ChatSummary{
		{ID: "1", Content: "Run the dishwasher late..."},
		{ID: "2", Content: "Standby power can reach..."},
	})
	l, _ = l.Update(tea.KeyMsg{Type: tea.KeyDown})
	item, ok := l.Selected()
	require.True(t, ok)
	assert.Equal(t, "2", item.ID)

	_, cmd := l.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ChatSelectedMsg{ID: "2"}, runCmd(cmd))

	_, cmd = l.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ChatListClosedMsg{}, runCmd(cmd))
}

func TestChatList_Empty(t *testing.T) {
	l := NewChatList(testTheme())
	l.SetItems(nil)
	l, _ = l.Update(keyRunes("G"))
	_, ok := l.Selected()
	assert.False(t, ok)
	assert.Contains(t, l.View(), "No saved chats")

	l.SetError("backend down")
	assert.Contains(t, l.View(), "backend down")
}
