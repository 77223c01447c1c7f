// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/wattchat/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports chats as JSON. The turn list uses the stored turn
// encoding, so an export can be loaded back as a history.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter. JSON exports always carry
// the metadata.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonDocument struct {
	Title      string        `json:"title"`
	ChatID     string        `json:"chat_id,omitempty"`
	ExportedAt time.Time     `json:"exported_at"`
	Turns      model.History `json:"turns"`
}

// Export converts a document to indented JSON.
func (e *JSONExporter) Export(doc *Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(jsonDocument{
		Title:      doc.Title,
		ChatID:     doc.ChatID,
		ExportedAt: doc.ExportedAt,
		Turns:      doc.turns(),
	}, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
