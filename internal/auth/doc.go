// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth gates the chat screen behind a stored session token.
//
// The token comes from POST /login and is kept in the session store under
// storage.KeyToken, optionally sealed at rest. Check inspects the JWT
// expiry locally and can confirm the token with the backend. Logout tears
// the session down remotely (best effort) and locally (always).
package auth
