// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stub is an in-memory stand-in for the chat backend.
//
// It answers every endpoint the client uses with canned energy advice,
// analyses uploaded CSV files, keeps chat records per user and issues
// HS256 session tokens. `wattchat serve-stub` runs it for local use and
// the api and cli tests run against it through httptest.
package stub
