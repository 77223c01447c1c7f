// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session persists the chat history and expires it after inactivity.
//
// Every successful turn append stores the history together with a
// last-access timestamp. A periodic poll compares the timestamp with the
// clock; once the session has been idle past the timeout (30 minutes by
// default) the stored history is cleared and the chat resets to the
// greeting.
//
// # Key Types
//
//   - Manager: storage-backed history persistence with expiry checks
//   - TickMsg: Bubble Tea message driving the poll
//   - TimeoutWarningMsg: sent once when expiry is near
//   - ExpiredMsg: sent when the stored session has been cleared
//
// # Usage
//
//	mgr := session.NewManager(store, session.DefaultConfig())
//	history, restored, err := mgr.Load(ctx)
//	...
//	err = mgr.Save(ctx, history)
//
// In a Bubble Tea model, start the poll with mgr.TickCmd() and answer each
// session.TickMsg with mgr.HandleTick(ctx).
package session
