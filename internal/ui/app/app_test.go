// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/wattchat/internal/api"
	"github.com/jeranaias/wattchat/internal/auth"
	"github.com/jeranaias/wattchat/internal/config"
	"github.com/jeranaias/wattchat/internal/conversation"
	"github.com/jeranaias/wattchat/internal/model"
	"github.com/jeranaias/wattchat/internal/session"
	"github.com/jeranaias/wattchat/internal/storage"
	"github.com/jeranaias/wattchat/internal/stub"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

type env struct {
	ctx      context.Context
	srv      *stub.Server
	client   *api.Client
	store    storage.Storage
	sessions *session.Manager
	gate     *auth.Gate
	engine   *conversation.Engine
}

func newEnv(t *testing.T, store storage.Storage) *env {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := stub.New(stub.Options{Secret: "test"})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client := api.NewClient(ts.URL)
	sessions := session.NewManager(store, session.Config{
		Timeout:      time.Hour,
		PollInterval: time.Hour,
	})
	return &env{
		ctx:      ctx,
		srv:      srv,
		client:   client,
		store:    store,
		sessions: sessions,
		gate:     auth.NewGate(store, client, sessions, auth.Options{}),
		engine:   conversation.NewEngine(client, sessions),
	}
}

func (e *env) app(t *testing.T) Model {
	t.Helper()
	cfg := config.Default()
	cfg.UI.RevealMs = 1
	cfg.UI.Markdown = false
	cfg.UI.Theme = "dark"

	m := New(e.ctx, Deps{Gate: e.gate, Engine: e.engine, Config: cfg})
	return update(m, tea.WindowSizeMsg{Width: 100, Height: 40})
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

// run executes cmd unless it blocks longer than a short grace period
// (cursor blinks, session ticks, the logout watch).
func run(cmd tea.Cmd) (tea.Msg, bool) {
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	select {
	case msg := <-done:
		return msg, true
	case <-time.After(300 * time.Millisecond):
		return nil, false
	}
}

// drive runs cmd and everything it leads to, feeding each message back
// through Update. It returns every message seen.
func drive(t *testing.T, m Model, cmd tea.Cmd) (Model, []tea.Msg) {
	t.Helper()
	var seen []tea.Msg
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 10000, "command loop did not settle")
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg, ok := run(c)
		if !ok || msg == nil {
			continue
		}
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		seen = append(seen, msg)
		if _, ok := msg.(tea.QuitMsg); ok {
			continue
		}
		next, nextCmd := m.Update(msg)
		m = next.(Model)
		queue = append(queue, nextCmd)
	}
	return m, seen
}

func press(t *testing.T, m Model, msg tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m, _ = drive(t, next.(Model), cmd)
	return m
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	return press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func enter(t *testing.T, m Model) Model {
	t.Helper()
	return press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

func login(t *testing.T, m Model, user, pass string) Model {
	t.Helper()
	m = typeText(t, m, user)
	m = enter(t, m)
	m = typeText(t, m, pass)
	return enter(t, m)
}

func start(t *testing.T, e *env) Model {
	t.Helper()
	m := e.app(t)
	m, _ = drive(t, m, m.Init())
	return m
}

// =============================================================================
// STARTUP
// =============================================================================

func TestStartsOnLoginWithoutToken(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	m := e.app(t)
	assert.Contains(t, m.View(), "Checking session")

	m, _ = drive(t, m, m.Init())
	assert.False(t, m.OnChat())
	assert.Contains(t, m.View(), "Sign in to wattchat")
}

func TestStoredSessionRestoresChat(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	token, err := e.srv.IssueToken("demo", time.Hour)
	require.NoError(t, err)
	require.NoError(t, e.store.Set(e.ctx, storage.KeyToken, token))
	require.NoError(t, e.sessions.Save(e.ctx, model.History{
		model.NewGreeting(), model.NewUserText("q"), model.NewAnswer("Unplug the second fridge"),
	}))

	m := start(t, e)
	require.True(t, m.OnChat())
	assert.Equal(t, "demo", m.User(), "user read from the token")
	assert.Equal(t, 3, e.engine.Conversation().Len())
	assert.Empty(t, e.engine.Conversation().RevealID())
	assert.Contains(t, m.View(), "Unplug the second fridge")
}

func TestExpiredTokenShowsNotice(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	token, err := e.srv.IssueToken("demo", -time.Minute)
	require.NoError(t, err)
	require.NoError(t, e.store.Set(e.ctx, storage.KeyToken, token))

	m := start(t, e)
	assert.False(t, m.OnChat())
	assert.Contains(t, m.View(), NoticeSessionExpired)
	assert.False(t, e.gate.LoggedIn(e.ctx), "expired token removed")
}

// =============================================================================
// LOGIN AND LOGOUT
// =============================================================================

func TestLoginOpensChat(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	m := start(t, e)

	m = login(t, m, "demo", "demo")
	require.True(t, m.OnChat())
	assert.Equal(t, "demo", m.User())
	assert.True(t, e.gate.LoggedIn(e.ctx))
	assert.Contains(t, m.View(), model.GreetingText)
}

func TestLoginRejected(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	m := start(t, e)

	m = login(t, m, "demo", "wrong")
	assert.False(t, m.OnChat())
	assert.Contains(t, m.View(), ErrBadCredentials)
	assert.False(t, e.gate.LoggedIn(e.ctx))
}

func TestLoginMissingPassword(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	m := start(t, e)

	m = typeText(t, m, "demo")
	m = enter(t, m)
	m = enter(t, m)
	assert.False(t, m.OnChat())
	assert.Contains(t, m.View(), "Please enter both username and password")
}

func TestLogoutKeyReturnsToLogin(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	m := login(t, start(t, e), "demo", "demo")
	require.True(t, m.OnChat())

	m = typeText(t, m, "How much does my fridge use?")
	m = enter(t, m)
	require.Equal(t, 3, e.engine.Conversation().Len())

	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.False(t, m.OnChat())
	assert.Contains(t, m.View(), NoticeSignedOut)
	assert.False(t, e.gate.LoggedIn(e.ctx))
	assert.Equal(t, 1, e.engine.Conversation().Len(), "chat dropped")

	_, restored, err := e.sessions.Load(e.ctx)
	require.NoError(t, err)
	assert.False(t, restored, "stored chat cleared")
}

func TestUnauthorizedKeepsStoredChat(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	m := login(t, start(t, e), "demo", "demo")

	m = typeText(t, m, "hello")
	m = enter(t, m)
	require.Equal(t, 3, e.engine.Conversation().Len())

	e.client.SetToken("garbage")
	m = typeText(t, m, "and again")
	m = enter(t, m)

	assert.False(t, m.OnChat())
	assert.Contains(t, m.View(), NoticeSessionExpired)
	assert.False(t, e.gate.LoggedIn(e.ctx))

	m = login(t, m, "demo", "demo")
	require.True(t, m.OnChat())
	assert.Equal(t, 3, e.engine.Conversation().Len(), "last saved chat restored")
}

func TestExternalLogout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := storage.NewFileStore(path)
	require.NoError(t, err)
	e := newEnv(t, store)
	require.NoError(t, e.gate.Login(e.ctx, "demo", "demo"))

	m := e.app(t)
	require.NotNil(t, m.logouts)
	token, err := e.gate.Token(e.ctx)
	require.NoError(t, err)
	m = update(m, sessionCheckedMsg{token: token})
	require.True(t, m.OnChat())

	other, err := storage.NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, other.Remove(e.ctx, storage.KeyToken))

	wait := waitLogout(m.logouts)
	got := make(chan tea.Msg, 1)
	go func() { got <- wait() }()
	select {
	case msg := <-got:
		require.IsType(t, externalLogoutMsg{}, msg)
		m = update(m, msg)
	case <-time.After(3 * time.Second):
		t.Fatal("logout in another terminal was not noticed")
	}

	assert.False(t, m.OnChat())
	assert.Contains(t, m.View(), NoticeExternalLogout)
}

// =============================================================================
// SESSION CLOCK
// =============================================================================

func TestSessionMessagesReachChat(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	m := login(t, start(t, e), "demo", "demo")

	m = update(m, session.TimeoutWarningMsg{Remaining: 75 * time.Second})
	assert.Contains(t, m.View(), "1:15")

	m = typeText(t, m, "hi")
	m = enter(t, m)
	require.Equal(t, 3, e.engine.Conversation().Len())

	m = update(m, session.ExpiredMsg{})
	assert.True(t, m.OnChat(), "expiry resets the chat, not the login")
	assert.Equal(t, 1, e.engine.Conversation().Len())
	assert.Contains(t, m.View(), "Session expired")
}

func TestCtrlCQuits(t *testing.T) {
	e := newEnv(t, storage.NewMemoryStore())
	m := start(t, e)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestLoginErrorMapping(t *testing.T) {
	assert.Equal(t, ErrBadCredentials, loginError(&api.Error{Status: 401, Message: "bad"}))
	assert.Equal(t, auth.ErrTooManyAttempts.Error(), loginError(auth.ErrTooManyAttempts))
}
