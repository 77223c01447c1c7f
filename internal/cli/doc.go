// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the wattchat command line.
//
// Running wattchat without a subcommand starts the TUI. The other
// commands share the same configuration, storage and session state.
//
// # Commands Overview
//
//   - repl: line-mode chat with input history
//   - login / logout: manage the stored session token
//   - history list|show|export: stored and remote chats
//   - config show|get|set|path: configuration file
//   - serve-stub: local development backend
//   - version: build information
//
// Global flags: --config, --server, --log-level.
package cli
