// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation implements the chat-turn lifecycle.
//
// A Conversation moves through idle -> user turn appended -> loading ->
// resolved or errored. It is a plain value mutated only from the UI
// goroutine; network work is split out so the caller can run it as a
// background command and feed the result back:
//
//	req, err := engine.Begin()           // appends the loading turn
//	answer, err := engine.Execute(ctx, req) // network, any goroutine
//	res := engine.Complete(ctx, req, answer, err)
//
// The Engine also persists the history through the session manager and
// mirrors every successful exchange to the remote chat record.
package conversation
