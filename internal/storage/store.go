// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// =============================================================================
// KEYS
// =============================================================================

// Fixed keys for client state.
const (
	KeyHistory    = "chat_history"
	KeyLastAccess = "last_access"
	KeyChatID     = "chat_id"
	KeyToken      = "session_token"
)

// =============================================================================
// STORAGE INTERFACE
// =============================================================================

// Storage is a string key/value store. Get returns ErrNotFound for keys
// that were never set or have been removed.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// =============================================================================
// FACTORY
// =============================================================================

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend string

	// Path is the state file (file) or database (sqlite). Empty means the
	// default under ~/.wattchat.
	Path string

	// Redis settings.
	RedisURL    string
	RedisPrefix string
	TTL         time.Duration

	// EncryptKeys lists keys sealed at rest with Passphrase.
	EncryptKeys []string
	Passphrase  string
}

// Open creates the backend described by opts.
func Open(ctx context.Context, opts Options) (Storage, error) {
	var (
		store Storage
		err   error
	)

	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		path := opts.Path
		if path == "" {
			path, err = DefaultPath("state.json")
			if err != nil {
				return nil, err
			}
		}
		store, err = NewFileStore(path)
	case BackendSQLite:
		path := opts.Path
		if path == "" {
			path, err = DefaultPath("state.db")
			if err != nil {
				return nil, err
			}
		}
		store, err = NewSQLiteStore(ctx, path)
	case BackendRedis:
		store, err = NewRedisStore(ctx, opts.RedisURL, opts.RedisPrefix, opts.TTL)
	case BackendMemory:
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	if len(opts.EncryptKeys) > 0 {
		sealed, err := NewSealed(ctx, store, opts.Passphrase, opts.EncryptKeys...)
		if err != nil {
			store.Close()
			return nil, err
		}
		return sealed, nil
	}
	return store, nil
}

// DefaultDir returns ~/.wattchat.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".wattchat"), nil
}

// DefaultPath returns a file name inside DefaultDir.
func DefaultPath(name string) (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotFound is returned when a key has no value.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &StoreError{Message: "key not found"}

// ErrClosed is returned by operations on a closed store.
var ErrClosed = &StoreError{Message: "store closed"}

// StoreError represents a storage error.
// It implements the error interface and can be compared using errors.Is.
type StoreError struct {
	Message string
	Key     string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Key != "" {
		return e.Message + ": " + e.Key
	}
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

func notFound(key string) error {
	return &StoreError{Message: ErrNotFound.Message, Key: key}
}
