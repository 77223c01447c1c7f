// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/wattchat/internal/ui/styles"
)

// =============================================================================
// HEADER COMPONENT
// =============================================================================

// Header is the one-line title bar.
type Header struct {
	Title  string
	User   string
	ChatID string
	Status string
	Width  int
	theme  *styles.Theme
}

// NewHeader creates a header with the default title.
func NewHeader(theme *styles.Theme) *Header {
	return &Header{
		Title: "wattchat",
		Width: 80,
		theme: theme,
	}
}

// SetWidth updates the header width.
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// View renders the brand on the left and the meta fields on the right.
func (h *Header) View() string {
	width := h.Width
	if width < 20 {
		width = 20
	}
	inner := width - 2

	brand := h.theme.HeaderBrand.Render(h.Title)

	var meta []string
	if h.Status != "" {
		meta = append(meta, h.Status)
	}
	if h.ChatID != "" {
		meta = append(meta, "chat #"+h.ChatID)
	}
	if h.User != "" {
		meta = append(meta, h.User)
	}
	room := inner - lipgloss.Width(brand) - 1
	right := h.theme.HeaderMeta.Render(truncate(strings.Join(meta, " | "), room))

	gap := inner - lipgloss.Width(brand) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return h.theme.Header.Width(width).Render(brand + strings.Repeat(" ", gap) + right)
}
