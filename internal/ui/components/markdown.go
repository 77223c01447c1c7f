// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// Markdown renders answer text with glamour. Renderers are built per wrap
// width and results are cached, since View runs on every tick.
type Markdown struct {
	style     string
	renderers map[int]*glamour.TermRenderer
	cache     map[mdKey]string
}

type mdKey struct {
	text  string
	width int
}

// maxCachedRenders bounds the cache; it is dropped wholesale when full.
const maxCachedRenders = 256

// NewMarkdown creates a renderer using a glamour standard style name
// ("dark", "light", "notty").
func NewMarkdown(style string) *Markdown {
	if style == "" {
		style = "dark"
	}
	return &Markdown{
		style:     style,
		renderers: make(map[int]*glamour.TermRenderer),
		cache:     make(map[mdKey]string),
	}
}

// Render returns text rendered for width columns. On renderer failure the
// raw text is returned.
func (m *Markdown) Render(text string, width int) string {
	if width < 10 {
		width = 10
	}
	key := mdKey{text: text, width: width}
	if out, ok := m.cache[key]; ok {
		return out
	}

	r, ok := m.renderers[width]
	if !ok {
		var err error
		r, err = glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return text
		}
		m.renderers[width] = r
	}

	out, err := r.Render(text)
	if err != nil {
		return text
	}
	out = strings.Trim(out, "\n")

	if len(m.cache) >= maxCachedRenders {
		m.cache = make(map[mdKey]string)
	}
	m.cache[key] = out
	return out
}
