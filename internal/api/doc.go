// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the energy chatbot backend.
//
// Every endpoint answers with the envelope {"status": "...", "answer": ...}.
// A non-2xx status becomes an *Error whose message is the answer text, which
// is what the chat shows in its error turn. A 401 from any endpoint also
// matches ErrUnauthorized so callers can route back to login.
//
// # Endpoints
//
//   - POST /login, POST /logout, GET /validate-session
//   - POST /chat-with-ai (or /chat), POST /upload
//   - GET /chats, GET /chats/:id, POST /chats, PATCH /chats/:id
//   - POST /remove-session
//
// # Usage
//
//	client := api.NewClient("http://localhost:8080")
//	token, err := client.Login(ctx, "alice", "secret")
//	client.SetToken(token)
//	answer, err := client.Chat(ctx, api.ChatRequest{Type: api.ModePhi, Query: "..."})
package api
