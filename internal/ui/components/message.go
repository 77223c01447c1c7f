// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/wattchat/internal/model"
	"github.com/jeranaias/wattchat/internal/ui/styles"
)

// =============================================================================
// TURN BUBBLES
// =============================================================================

// TurnView carries the per-frame state a turn is drawn with.
type TurnView struct {
	// Revealing means Text is a partial answer still being typed out.
	Revealing bool

	// Text overrides the turn's own text when Revealing.
	Text string

	// Spinner is the current spinner frame for the loading turn.
	Spinner string

	// Retry adds the retry hint under an error turn.
	Retry bool
}

// MessageRenderer draws turns as chat bubbles.
type MessageRenderer struct {
	theme    *styles.Theme
	markdown *Markdown
	width    int
	maxWidth int
}

// NewMessageRenderer creates a renderer. md may be nil to show answers as
// plain wrapped text.
func NewMessageRenderer(theme *styles.Theme, md *Markdown) *MessageRenderer {
	return &MessageRenderer{theme: theme, markdown: md, width: 80}
}

// SetWidth sets the width of the area bubbles are laid out in.
func (r *MessageRenderer) SetWidth(width int) {
	r.width = width
}

// SetMaxWidth caps bubble width in cells; 0 restores the default cap.
func (r *MessageRenderer) SetMaxWidth(width int) {
	r.maxWidth = width
}

// bubbleWidth is the widest a bubble may grow.
func (r *MessageRenderer) bubbleWidth() int {
	limit := 100
	if r.maxWidth > 0 {
		limit = r.maxWidth
	}
	return clamp(r.width*4/5, 20, limit)
}

// Render draws one turn.
func (r *MessageRenderer) Render(t model.Turn, v TurnView) string {
	switch {
	case t.Type == model.TypeLoading:
		return r.renderLoading(v.Spinner)
	case t.Type == model.TypeError:
		return r.renderError(t, v.Retry)
	case t.Role == model.RoleUser:
		return r.renderUser(t)
	default:
		return r.renderAnswer(t, v)
	}
}

// RenderAll draws a list of turns separated by blank lines.
func (r *MessageRenderer) RenderAll(h model.History, view func(model.Turn) TurnView) string {
	parts := make([]string, 0, len(h))
	for _, t := range h {
		parts = append(parts, r.Render(t, view(t)))
	}
	return strings.Join(parts, "\n\n")
}

func (r *MessageRenderer) label(text string) string {
	return r.theme.RoleLabel.Render(text)
}

// alignRight pushes block to the right edge of the layout width.
func (r *MessageRenderer) alignRight(block string) string {
	return lipgloss.PlaceHorizontal(r.width, lipgloss.Right, block)
}

func (r *MessageRenderer) renderUser(t model.Turn) string {
	maxW := r.bubbleWidth()
	var body string
	if t.IsFile() {
		body = r.theme.FileBubble.Render("[file] " + t.File.Label())
	} else {
		inner := clamp(widestLine(t.Text), 1, maxW-2)
		body = r.theme.UserBubble.Width(inner + 2).Render(t.Text)
	}
	return r.alignRight(lipgloss.JoinVertical(lipgloss.Right, r.label(model.RoleUser.DisplayName()), body))
}

func (r *MessageRenderer) renderAnswer(t model.Turn, v TurnView) string {
	maxW := r.bubbleWidth()
	// border + padding
	inner := maxW - 4

	var body string
	switch {
	case v.Revealing:
		body = wrap(v.Text, inner) + r.theme.Cursor.Render("▌")
	case r.markdown != nil && !t.IsGreeting():
		body = r.markdown.Render(t.Text, inner)
	default:
		body = wrap(t.Text, inner)
	}
	bubble := r.theme.AssistantBubble.Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, r.label(model.RoleAssistant.DisplayName()), bubble)
}

func (r *MessageRenderer) renderLoading(frame string) string {
	text := model.LoadingText
	if frame != "" {
		text = frame + " " + text
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		r.label(model.RoleAssistant.DisplayName()),
		r.theme.LoadingText.Render(text))
}

func (r *MessageRenderer) renderError(t model.Turn, retry bool) string {
	inner := r.bubbleWidth() - 4
	body := styles.StatusIndicators.Error + " " + wrap(t.Text, inner-4)
	if retry {
		body += "\n" + r.theme.Muted.Render("Press ctrl+r to retry")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		r.label(model.RoleAssistant.DisplayName()),
		r.theme.ErrorBubble.Render(body))
}

// wrap breaks text into lines of at most width display cells, on word
// boundaries where it can.
func wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	var out []string
	for _, para := range strings.Split(text, "\n") {
		if runewidth.StringWidth(para) <= width {
			out = append(out, para)
			continue
		}
		line := ""
		for _, word := range strings.Fields(para) {
			for runewidth.StringWidth(word) > width {
				if line != "" {
					out = append(out, line)
					line = ""
				}
				head := runewidth.Truncate(word, width, "")
				if head == "" {
					break
				}
				out = append(out, head)
				word = word[len(head):]
			}
			switch {
			case line == "":
				line = word
			case runewidth.StringWidth(line)+1+runewidth.StringWidth(word) <= width:
				line += " " + word
			default:
				out = append(out, line)
				line = word
			}
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
