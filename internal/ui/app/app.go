// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the root Bubble Tea model of wattchat. It routes between
// the login form and the chat screen and owns the session clock.
package app

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/wattchat/internal/api"
	"github.com/jeranaias/wattchat/internal/auth"
	"github.com/jeranaias/wattchat/internal/config"
	"github.com/jeranaias/wattchat/internal/conversation"
	"github.com/jeranaias/wattchat/internal/logger"
	"github.com/jeranaias/wattchat/internal/session"
	"github.com/jeranaias/wattchat/internal/ui/chat"
	"github.com/jeranaias/wattchat/internal/ui/components"
	"github.com/jeranaias/wattchat/internal/ui/styles"
)

// LogoutDebounce coalesces bursts of store writes seen by the logout watch.
const LogoutDebounce = 200 * time.Millisecond

// Notices shown on the login form.
const (
	NoticeSignedOut      = "Signed out"
	NoticeSessionExpired = "Your session has expired. Please log in again."
	NoticeExternalLogout = "You were logged out from another terminal"
	ErrBadCredentials    = "Invalid username or password"
)

type screen int

const (
	screenStarting screen = iota
	screenLogin
	screenChat
)

// =============================================================================
// MESSAGES
// =============================================================================

type sessionCheckedMsg struct {
	token string
	err   error
}

type loginResultMsg struct {
	username string
	err      error
}

type logoutDoneMsg struct {
	notice string
	err    error
}

type externalLogoutMsg struct{}

// =============================================================================
// MODEL
// =============================================================================

// Deps are the services the app drives.
type Deps struct {
	Gate   *auth.Gate
	Engine *conversation.Engine
	Config *config.Config
	Theme  *styles.Theme
}

// Model is the root model.
type Model struct {
	ctx   context.Context
	deps  Deps
	theme *styles.Theme

	screen  screen
	login   components.LoginForm
	chat    chat.Model
	hasChat bool
	user    string

	logouts <-chan struct{}

	width  int
	height int
}

// New creates the root model. ctx bounds every call the app starts and
// stops the logout watch.
func New(ctx context.Context, deps Deps) Model {
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	if deps.Theme == nil {
		deps.Theme = styles.NewTheme(deps.Config.UI.Theme)
	}

	m := Model{
		ctx:    ctx,
		deps:   deps,
		theme:  deps.Theme,
		screen: screenStarting,
		login:  components.NewLoginForm(deps.Theme),
		width:  80,
		height: 24,
	}

	ch, err := deps.Gate.WatchLogout(ctx, LogoutDebounce)
	switch {
	case err == nil:
		m.logouts = ch
	case errors.Is(err, auth.ErrWatchUnsupported):
	default:
		logger.WarnCF("app", "Cannot watch for logout", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return m
}

// Init checks for a stored session and starts the session clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		checkSessionCmd(m.ctx, m.deps.Gate),
		m.deps.Engine.Sessions().TickCmd(),
		waitLogout(m.logouts),
	)
}

// OnChat reports whether the chat screen is showing.
func (m Model) OnChat() bool {
	return m.screen == screenChat
}

// User returns the logged-in user, "" before login.
func (m Model) User() string {
	return m.user
}

// =============================================================================
// UPDATE
// =============================================================================

// Update routes msg to the active screen.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.login.SetSize(msg.Width, msg.Height)
		if m.hasChat {
			var cmd tea.Cmd
			m.chat, cmd = m.chat.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.screen {
		case screenLogin:
			var cmd tea.Cmd
			m.login, cmd = m.login.Update(msg)
			return m, cmd
		case screenChat:
			var cmd tea.Cmd
			m.chat, cmd = m.chat.Update(msg)
			return m, cmd
		}
		return m, nil

	case sessionCheckedMsg:
		if msg.err == nil {
			return m.enterChat(auth.TokenSubject(msg.token))
		}
		cmd := m.showLogin()
		switch {
		case errors.Is(msg.err, auth.ErrSessionExpired):
			m.login.SetNotice(NoticeSessionExpired)
		case !errors.Is(msg.err, auth.ErrNoSession):
			m.login.SetError(msg.err.Error())
		}
		return m, cmd

	case components.LoginSubmitMsg:
		return m, loginCmd(m.ctx, m.deps.Gate, msg.Username, msg.Password)

	case loginResultMsg:
		if msg.err != nil {
			m.login.SetError(loginError(msg.err))
			return m, nil
		}
		return m.enterChat(msg.username)

	case chat.LogoutRequestMsg:
		m.deps.Engine.Expired()
		cmd := m.showLogin()
		m.login.SetNotice("Signing out...")
		return m, tea.Batch(cmd, logoutCmd(m.ctx, m.deps.Gate))

	case chat.UnauthorizedMsg:
		// The stored chat stays; it is restored after the next login.
		logger.InfoCF("app", "Backend rejected the session token", nil)
		cmd := m.showLogin()
		m.login.SetNotice(NoticeSessionExpired)
		return m, tea.Batch(cmd, invalidateCmd(m.ctx, m.deps.Gate))

	case logoutDoneMsg:
		if msg.err != nil {
			logger.WarnCF("app", "Logout incomplete", map[string]interface{}{
				"error": msg.err.Error(),
			})
		}
		if msg.notice != "" && m.screen == screenLogin && !m.login.Busy() {
			m.login.SetNotice(msg.notice)
		}
		return m, nil

	case externalLogoutMsg:
		cmds := []tea.Cmd{waitLogout(m.logouts)}
		if m.screen == screenChat {
			m.deps.Engine.Expired()
			cmds = append(cmds, m.showLogin())
			m.login.SetNotice(NoticeExternalLogout)
		}
		return m, tea.Batch(cmds...)

	case session.TickMsg:
		return m, m.deps.Engine.Sessions().HandleTick(m.ctx)

	case session.TimeoutWarningMsg:
		if m.screen == screenChat {
			m.chat.ShowTimeoutWarning(msg.Remaining)
		}
		return m, nil

	case session.ExpiredMsg:
		if m.hasChat {
			m.chat.SessionExpired()
		} else {
			m.deps.Engine.Expired()
		}
		return m, nil
	}

	// Results of commands the chat screen started.
	if m.hasChat {
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		return m, cmd
	}
	if m.screen == screenLogin {
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(msg)
		return m, cmd
	}
	return m, nil
}

// enterChat restores the stored conversation and shows the chat screen.
func (m Model) enterChat(user string) (tea.Model, tea.Cmd) {
	if user != "" {
		m.user = user
	}
	if _, err := m.deps.Engine.Restore(m.ctx); err != nil {
		logger.WarnCF("app", "Failed to restore session", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err := m.deps.Engine.Sessions().Touch(m.ctx); err != nil {
		logger.WarnCF("app", "Failed to stamp session", map[string]interface{}{
			"error": err.Error(),
		})
	}

	cfg := m.deps.Config
	m.chat = chat.New(m.ctx, m.deps.Engine, chat.Options{
		Theme:          m.theme,
		RevealInterval: cfg.RevealInterval(),
		Markdown:       cfg.UI.Markdown,
		WordWrap:       cfg.UI.WordWrap,
		User:           m.user,
	})
	m.chat, _ = m.chat.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
	m.hasChat = true
	m.screen = screenChat
	return m, m.chat.Init()
}

// showLogin drops the chat screen and focuses the login form.
func (m *Model) showLogin() tea.Cmd {
	m.hasChat = false
	m.screen = screenLogin
	m.login.SetSize(m.width, m.height)
	return tea.Batch(m.login.Reset(), m.login.Init())
}

func loginError(err error) string {
	if errors.Is(err, api.ErrUnauthorized) {
		return ErrBadCredentials
	}
	return err.Error()
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the active screen.
func (m Model) View() string {
	switch m.screen {
	case screenLogin:
		return m.login.View()
	case screenChat:
		return m.chat.View()
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		m.theme.Muted.Render("Checking session..."))
}

// =============================================================================
// COMMANDS
// =============================================================================

func checkSessionCmd(ctx context.Context, gate *auth.Gate) tea.Cmd {
	return func() tea.Msg {
		token, err := gate.Check(ctx)
		return sessionCheckedMsg{token: token, err: err}
	}
}

func loginCmd(ctx context.Context, gate *auth.Gate, username, password string) tea.Cmd {
	return func() tea.Msg {
		return loginResultMsg{username: username, err: gate.Login(ctx, username, password)}
	}
}

func logoutCmd(ctx context.Context, gate *auth.Gate) tea.Cmd {
	return func() tea.Msg {
		return logoutDoneMsg{notice: NoticeSignedOut, err: gate.Logout(ctx)}
	}
}

func invalidateCmd(ctx context.Context, gate *auth.Gate) tea.Cmd {
	return func() tea.Msg {
		return logoutDoneMsg{err: gate.Invalidate(ctx)}
	}
}

// waitLogout blocks until the watch reports a logout. It returns nil when
// the watch is closed so the loop ends with ctx.
func waitLogout(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return externalLogoutMsg{}
	}
}
