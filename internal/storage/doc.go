// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the key/value persistence boundary for wattchat.
//
// Chat history, the last-access timestamp, the remote chat id and the
// session token are all kept behind the Storage interface so the chat
// logic never touches files or servers directly.
//
// # Backends
//
//   - MemoryStore: process-local map, used in tests and with --ephemeral
//   - FileStore: one JSON document written atomically (default)
//   - SQLiteStore: a kv table in a local SQLite database
//   - RedisStore: shared store with optional key TTL
//   - Sealed: wraps any backend and encrypts selected keys at rest
//
// # Usage
//
//	store, err := storage.Open(storage.Options{Backend: "file", Path: path})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	err = store.Set(ctx, storage.KeyToken, token)
package storage
