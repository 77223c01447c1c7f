// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/wattchat/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports chats to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a document to Markdown.
func (e *MarkdownExporter) Export(doc *Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}
	turns := doc.turns()

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(doc.Title))
		if doc.ChatID != "" {
			fmt.Fprintf(&sb, "chat_id: %s\n", escapeYAML(doc.ChatID))
		}
		fmt.Fprintf(&sb, "turns: %d\n", len(turns))
		fmt.Fprintf(&sb, "exported: %s\n", doc.ExportedAt.Format(time.RFC3339))
		sb.WriteString("generator: wattchat\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(doc.Title))

	for i, t := range turns {
		label := t.Role.DisplayName()
		if e.options.IncludeTimestamps && !t.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(t.CreatedAt))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		sb.WriteString(formatTurn(t))
		sb.WriteString("\n\n")

		if i < len(turns)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Exported from wattchat on %s*\n", formatTimestamp(doc.ExportedAt))
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func formatTurn(t model.Turn) string {
	switch {
	case t.IsFile():
		return fmt.Sprintf("*Uploaded file:* `%s` (%s)", t.File.Name, model.FormatSize(t.File.Size))
	case t.Type == model.TypeError:
		return "> **Error:** " + strings.TrimSpace(t.Text)
	}
	// Answers are already Markdown.
	return strings.TrimSpace(t.Text)
}

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer("#", `\#`, "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`)
	return r.Replace(s)
}

// escapeYAML quotes a frontmatter value when needed.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)
		return `"` + r.Replace(s) + `"`
	}
	return s
}
