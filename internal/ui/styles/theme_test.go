// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func TestNewTheme_ForcedModes(t *testing.T) {
	dark := NewTheme(ModeDark)
	if !dark.IsDark {
		t.Error("NewTheme(dark).IsDark = false, want true")
	}
	light := NewTheme(ModeLight)
	if light.IsDark {
		t.Error("NewTheme(light).IsDark = true, want false")
	}
}

func TestThemeStylesRender(t *testing.T) {
	theme := NewTheme(ModeDark)

	cases := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Header", theme.Header},
		{"UserBubble", theme.UserBubble},
		{"AssistantBubble", theme.AssistantBubble},
		{"ErrorBubble", theme.ErrorBubble},
		{"FileBubble", theme.FileBubble},
		{"InputContainer", theme.InputContainer},
		{"Modal", theme.Modal},
		{"ListItemSelected", theme.ListItemSelected},
	}
	for _, c := range cases {
		if out := c.style.Render("test"); !strings.Contains(out, "test") {
			t.Errorf("%s.Render() = %q, want it to contain the text", c.name, out)
		}
	}
}

func TestGlamourStyle(t *testing.T) {
	cases := []struct {
		profile termenv.Profile
		dark    bool
		want    string
	}{
		{termenv.Ascii, true, "notty"},
		{termenv.TrueColor, true, "dark"},
		{termenv.ANSI256, false, "light"},
	}
	for _, c := range cases {
		theme := &Theme{ColorProfile: c.profile, IsDark: c.dark}
		if got := theme.GlamourStyle(); got != c.want {
			t.Errorf("GlamourStyle(%v, dark=%v) = %q, want %q", c.profile, c.dark, got, c.want)
		}
	}
}

func TestStatusRenderers(t *testing.T) {
	cases := []struct {
		name   string
		render func(string) string
		marker string
	}{
		{"success", RenderSuccess, StatusIndicators.Success},
		{"error", RenderError, StatusIndicators.Error},
		{"warning", RenderWarning, StatusIndicators.Warning},
		{"info", RenderInfo, StatusIndicators.Info},
	}
	for _, c := range cases {
		out := c.render("saved")
		if !strings.Contains(out, c.marker) || !strings.Contains(out, "saved") {
			t.Errorf("%s render = %q, want marker %q and text", c.name, out, c.marker)
		}
	}
}
