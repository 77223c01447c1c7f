// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/jeranaias/wattchat/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports chats to a standalone HTML page with embedded CSS.
// Answers are converted from Markdown with goldmark; raw HTML inside them
// is not passed through.
type HTMLExporter struct {
	options *Options
	md      goldmark.Markdown
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts, md: goldmark.New()}
}

// Export converts a document to HTML.
func (e *HTMLExporter) Export(doc *Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}
	turns := doc.turns()
	title := html.EscapeString(doc.Title)

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("  <meta charset=\"UTF-8\">\n")
	fmt.Fprintf(&sb, "  <title>%s</title>\n", title)
	sb.WriteString("  <meta name=\"generator\" content=\"wattchat\">\n")
	fmt.Fprintf(&sb, "  <meta name=\"date\" content=\"%s\">\n", doc.ExportedAt.Format(time.RFC3339))
	sb.WriteString(css)
	sb.WriteString("</head>\n<body>\n<main>\n")

	fmt.Fprintf(&sb, "<header><h1>%s</h1>\n", title)
	if e.options.IncludeMetadata {
		sb.WriteString("<p class=\"meta\">")
		if doc.ChatID != "" {
			fmt.Fprintf(&sb, "Chat #%s &middot; ", html.EscapeString(doc.ChatID))
		}
		fmt.Fprintf(&sb, "%d turns &middot; exported %s</p>\n", len(turns), formatTimestamp(doc.ExportedAt))
	}
	sb.WriteString("</header>\n")

	for _, t := range turns {
		body, err := e.renderTurn(t)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, "<section class=\"turn %s %s\">\n", t.Role, t.Type)
		sb.WriteString("<div class=\"who\">")
		sb.WriteString(t.Role.DisplayName())
		if e.options.IncludeTimestamps && !t.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, " <span class=\"time\">%s</span>", formatShortTimestamp(t.CreatedAt))
		}
		sb.WriteString("</div>\n")
		sb.WriteString(body)
		sb.WriteString("</section>\n")
	}

	sb.WriteString("</main>\n</body>\n</html>\n")
	return []byte(sb.String()), nil
}

func (e *HTMLExporter) renderTurn(t model.Turn) (string, error) {
	switch {
	case t.IsFile():
		return fmt.Sprintf("<p class=\"file\">Uploaded file: <code>%s</code> (%s)</p>\n",
			html.EscapeString(t.File.Name), model.FormatSize(t.File.Size)), nil
	case t.Type == model.TypeError:
		return fmt.Sprintf("<p class=\"error\">%s</p>\n", html.EscapeString(t.Text)), nil
	case t.Role == model.RoleUser:
		return fmt.Sprintf("<p>%s</p>\n", html.EscapeString(t.Text)), nil
	}
	var buf bytes.Buffer
	if err := e.md.Convert([]byte(t.Text), &buf); err != nil {
		return "", fmt.Errorf("render answer %s: %w", t.ID, err)
	}
	return buf.String(), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

const css = `  <style>
    body { font-family: system-ui, sans-serif; background: #f4f7f2; color: #1f2a1f; margin: 0; }
    main { max-width: 760px; margin: 0 auto; padding: 24px; }
    header h1 { color: #2e7d32; margin-bottom: 4px; }
    .meta { color: #6b7a6b; font-size: 0.9em; margin-top: 0; }
    .turn { border-radius: 10px; padding: 10px 14px; margin: 12px 0; }
    .turn.user { background: #dcedc8; margin-left: 20%; }
    .turn.assistant { background: #ffffff; margin-right: 20%; border: 1px solid #dfe6dc; }
    .turn.error { background: #fdecea; border-color: #f5c2c0; }
    .who { font-weight: 600; font-size: 0.85em; color: #4b5b4b; margin-bottom: 4px; }
    .time { font-weight: normal; color: #8a978a; }
    .error { color: #b3261e; }
    pre { background: #f0f3ee; padding: 8px; overflow-x: auto; }
  </style>
`
