// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// # Key Types
//
//   - Config: main configuration structure
//   - ServerConfig: backend URL, chat path, request timeout
//   - SessionConfig: inactivity window and poll interval
//   - StorageConfig: session store backend and token sealing
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (WATTCHAT_*), including those from ./.env
//   - ~/.wattchat/config.toml
//   - ~/.wattchat/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store, err := storage.Open(ctx, cfg.StorageOptions())
package config
