// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/jeranaias/wattchat/internal/model"
	"github.com/jeranaias/wattchat/internal/storage"
)

// ErrEmpty is returned for a history with nothing but the greeting.
var ErrEmpty = errors.New("chat has no messages to export")

// =============================================================================
// DOCUMENT
// =============================================================================

// Document is what gets exported.
type Document struct {
	Title      string
	ChatID     string
	History    model.History
	ExportedAt time.Time
}

// NewDocument wraps h. The title is taken from the first user turn.
func NewDocument(h model.History, chatID string) *Document {
	title := "New chat"
	for _, t := range h {
		if t.Role == model.RoleUser {
			title = t.Preview(60)
			break
		}
	}
	return &Document{
		Title:      title,
		ChatID:     chatID,
		History:    h,
		ExportedAt: time.Now(),
	}
}

// turns returns the exportable turns: everything except loading
// placeholders.
func (d *Document) turns() model.History {
	out := make(model.History, 0, len(d.History))
	for _, t := range d.History {
		if t.Type != model.TypeLoading {
			out = append(out, t)
		}
	}
	return out
}

func (d *Document) validate() error {
	if d == nil {
		return errors.New("document is nil")
	}
	for _, t := range d.History {
		if t.Role == model.RoleUser {
			return nil
		}
	}
	return ErrEmpty
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a document in one format.
type Exporter interface {
	// Export converts a document to the target format.
	Export(doc *Document) ([]byte, error)

	// FileExtension returns the file extension, e.g. ".md".
	FileExtension() string

	// MimeType returns the MIME type of the format.
	MimeType() string
}

// ForFormat returns the exporter for "md", "json" or "html".
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(format) {
	case "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	case "html":
		return NewHTMLExporter(opts), nil
	}
	return nil, fmt.Errorf("unknown export format %q (want md, json or html)", format)
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where files are written. Default: working directory.
	OutputDir string

	// Filename overrides the generated file name.
	Filename string

	// OpenAfterExport opens the file in the default application.
	OpenAfterExport bool

	// IncludeMetadata adds the title block (chat id, turn count, date).
	IncludeMetadata bool

	// IncludeTimestamps adds the time to each turn heading.
	IncludeTimestamps bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile renders doc with exporter and writes it atomically. It
// returns the path written.
func ExportToFile(doc *Document, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(doc)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	filename := opts.Filename
	if filename == "" {
		filename = fmt.Sprintf("wattchat_%s_%s%s",
			sanitizeFilename(doc.Title),
			doc.ExportedAt.Format("20060102_150405"),
			exporter.FileExtension(),
		)
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	outputPath := filepath.Join(dir, filename)
	if err := storage.WriteFileAtomic(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	if opts.OpenAfterExport {
		if err := openFile(outputPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not open %s: %v\n", outputPath, err)
		}
	}
	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in file names.
func sanitizeFilename(s string) string {
	runes := []rune(s)
	if len(runes) > 50 {
		runes = runes[:50]
	}

	var b strings.Builder
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "chat"
	}
	return b.String()
}

// openFile opens a file in the default application for the OS.
func openFile(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", `""`, path)
	case "darwin":
		cmd = exec.Command("open", path)
	case "linux":
		cmd = exec.Command("xdg-open", path)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
