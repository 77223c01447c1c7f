// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a chat history to Markdown, JSON or HTML.
//
// # Key Types
//
//   - Document: the history plus the title and chat id shown in the export
//   - Exporter: one output format
//   - Options: where files go and what metadata they carry
//
// # Usage
//
//	doc := export.NewDocument(history, chatID)
//	path, err := export.ExportToFile(doc, export.NewMarkdownExporter(nil), nil)
//
// Loading placeholders are never exported.
package export
