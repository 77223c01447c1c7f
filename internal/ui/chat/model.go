// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/wattchat/internal/conversation"
	"github.com/jeranaias/wattchat/internal/model"
	"github.com/jeranaias/wattchat/internal/ui/components"
	"github.com/jeranaias/wattchat/internal/ui/styles"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures the chat screen.
type Options struct {
	Theme *styles.Theme

	// RevealInterval is the delay between revealed runes.
	RevealInterval time.Duration

	// Markdown renders finished answers with glamour.
	Markdown bool

	// WordWrap caps bubble width in cells; 0 follows the terminal.
	WordWrap int

	// User is shown in the header.
	User string

	// UploadDir is where the upload picker starts; "" for the working
	// directory.
	UploadDir string
}

// overlay is the modal drawn over the turn list.
type overlay int

const (
	overlayNone overlay = iota
	overlayUpload
	overlayChats
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the chat screen. It owns the conversation through the engine:
// only Update mutates it, and network calls run as commands whose results
// come back as messages.
type Model struct {
	engine *conversation.Engine
	ctx    context.Context
	opts   Options
	theme  *styles.Theme
	keys   KeyMap

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	reveal   *Revealer

	renderer *components.MessageRenderer
	header   *components.Header
	notice   components.TimeoutNotice
	upload   components.UploadModal
	chats    components.ChatList
	overlay  overlay

	status    string
	statusErr bool

	width  int
	height int
}

// New creates the chat screen for engine. ctx bounds every network call
// the screen starts.
func New(ctx context.Context, engine *conversation.Engine, opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme(styles.ModeAuto)
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "."
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your energy use..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}

	var md *components.Markdown
	if opts.Markdown {
		md = components.NewMarkdown(opts.Theme.GlamourStyle())
	}

	header := components.NewHeader(opts.Theme)
	header.User = opts.User

	m := Model{
		engine:   engine,
		ctx:      ctx,
		opts:     opts,
		theme:    opts.Theme,
		keys:     DefaultKeyMap(),
		input:    ti,
		viewport: vp,
		spinner:  sp,
		reveal:   NewRevealer(opts.RevealInterval),
		renderer: components.NewMessageRenderer(opts.Theme, md),
		header:   header,
		notice:   components.NewTimeoutNotice(opts.Theme),
		chats:    components.NewChatList(opts.Theme),
		width:    80,
		height:   24,
	}
	m.renderer.SetMaxWidth(opts.WordWrap)
	m.layout()
	return m
}

// Init resumes a restored turn that never got its answer.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.conv().NeedsResponse() {
		cmds = append(cmds, m.startResponse())
	}
	return tea.Batch(cmds...)
}

func (m *Model) conv() *conversation.Conversation {
	return m.engine.Conversation()
}

// Engine returns the driven engine.
func (m Model) Engine() *conversation.Engine {
	return m.engine
}

// SetUser changes the user shown in the header.
func (m *Model) SetUser(user string) {
	m.header.User = user
}

// ShowTimeoutWarning shows the session timeout notice.
func (m *Model) ShowTimeoutWarning(remaining time.Duration) {
	m.notice.Show(remaining)
	m.layout()
}

// SessionExpired resets the screen after the session manager cleared the
// stored chat.
func (m *Model) SessionExpired() {
	m.engine.Expired()
	m.reveal.Stop()
	m.overlay = overlayNone
	m.notice.ShowExpired()
	m.setStatus("", false)
	m.layout()
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

// layout sizes the viewport to what the other parts leave over.
func (m *Model) layout() {
	m.header.SetWidth(m.width)
	m.notice.SetWidth(m.width)
	m.renderer.SetWidth(m.width - 2)
	m.chats.SetSize(m.width, m.height)
	m.upload.SetSize(m.width, m.height)
	m.input.Width = m.width - 6

	// header 1, input 2 (border + line), status 1
	used := 4
	if n := m.notice.View(); n != "" {
		used += countLines(n)
	}
	h := m.height - used
	if h < 3 {
		h = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	m.refresh()
}

// refresh re-renders the turn list into the viewport.
func (m *Model) refresh() {
	conv := m.conv()
	h := conv.History()
	lastID := conv.Last().ID

	content := m.renderer.RenderAll(h, func(t model.Turn) components.TurnView {
		return m.turnView(t, lastID)
	})
	m.header.ChatID = conv.ChatID()
	m.header.Status = stateLabel(conv.State())

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(content)
	if atBottom || m.reveal.Active() || conv.State() == conversation.StateLoading {
		m.viewport.GotoBottom()
	}
}
