// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/wattchat/internal/model"
)

func sampleHistory() model.History {
	return model.History{
		model.NewGreeting(),
		model.NewUserText("Which appliance uses the most energy?"),
		model.NewAnswer("Your **dryer** does."),
		model.NewUserFile("usage.csv", 2048),
		model.NewError("Data file not found"),
		model.NewLoading(),
	}
}

func TestNewDocumentTitle(t *testing.T) {
	doc := NewDocument(sampleHistory(), "7")
	if doc.Title != "Which appliance uses the most energy?" {
		t.Errorf("Title = %q, want the first user turn", doc.Title)
	}

	doc = NewDocument(model.NewHistory(), "")
	if doc.Title != "New chat" {
		t.Errorf("Title = %q, want %q", doc.Title, "New chat")
	}
}

func TestEmptyHistoryRefused(t *testing.T) {
	doc := NewDocument(model.NewHistory(), "")
	for _, format := range []string{"md", "json", "html"} {
		exp, err := ForFormat(format, nil)
		require.NoError(t, err)
		_, err = exp.Export(doc)
		assert.ErrorIs(t, err, ErrEmpty, format)
	}
}

func TestForFormat(t *testing.T) {
	exp, err := ForFormat("Markdown", nil)
	require.NoError(t, err)
	assert.Equal(t, ".md", exp.FileExtension())

	_, err = ForFormat("pdf", nil)
	assert.Error(t, err)
}

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(NewDocument(sampleHistory(), "7"))
	require.NoError(t, err)
	md := string(out)

	assert.Contains(t, md, "chat_id: 7")
	assert.Contains(t, md, "turns: 5")
	assert.Contains(t, md, "# Which appliance uses the most energy?")
	assert.Contains(t, md, "Your **dryer** does.")
	assert.Contains(t, md, "`usage.csv` (2.00 KB)")
	assert.Contains(t, md, "> **Error:** Data file not found")
	assert.NotContains(t, md, model.LoadingText)
}

func TestMarkdownExportWithoutMetadata(t *testing.T) {
	opts := &Options{}
	out, err := NewMarkdownExporter(opts).Export(NewDocument(sampleHistory(), "7"))
	require.NoError(t, err)
	md := string(out)
	assert.False(t, strings.HasPrefix(md, "---"), "no frontmatter")
	assert.Contains(t, md, "### You\n")
}

func TestJSONExportLoadsBack(t *testing.T) {
	h := sampleHistory()
	out, err := NewJSONExporter(nil).Export(NewDocument(h, "7"))
	require.NoError(t, err)

	var got struct {
		ChatID string        `json:"chat_id"`
		Turns  model.History `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "7", got.ChatID)
	require.Len(t, got.Turns, 5)
	assert.True(t, got.Turns[3].IsFile())
	assert.Equal(t, h[2].ID, got.Turns[2].ID)
}

func TestHTMLExportEscapes(t *testing.T) {
	h := model.History{
		model.NewGreeting(),
		model.NewUserText("<script>alert(1)</script>"),
		model.NewAnswer("Use *less* heating"),
	}
	out, err := NewHTMLExporter(nil).Export(NewDocument(h, ""))
	require.NoError(t, err)
	page := string(out)

	assert.NotContains(t, page, "<script>")
	assert.Contains(t, page, "&lt;script&gt;")
	assert.Contains(t, page, "<em>less</em>")
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	doc := NewDocument(sampleHistory(), "7")

	path, err := ExportToFile(doc, NewMarkdownExporter(nil), &Options{OutputDir: dir, IncludeMetadata: true})
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, ".md"))
	assert.Contains(t, filepath.Base(path), "Which_appliance")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "generator: wattchat")

	path, err = ExportToFile(doc, NewJSONExporter(nil), &Options{OutputDir: dir, Filename: "chat.json"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "chat.json"), path)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a/b:c", "a-b-c"},
		{"hello world", "hello_world"},
		{"", "chat"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
