// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat turns and histories.
//
// # Key Types
//
//   - Turn: one chat message with role, type (text, file, error, loading) and content
//   - History: ordered list of turns that always starts with the greeting
//   - FileRef: name and size of an uploaded file
//   - WireTurn: the positional entry shape used by remote chat records
//
// # Usage
//
//	h := model.NewHistory()
//	h = append(h, model.NewUserText("How much did the heat pump use today?"))
//	last, _ := h.Last()
//	fmt.Println(last.Role.DisplayName(), last.ContentString())
package model
