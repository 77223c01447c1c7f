// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// Keep key derivation fast in tests.
	sealIterations = 1000
}

// =============================================================================
// BACKEND CONFORMANCE
// =============================================================================

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	ctx := context.Background()

	file, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	sqlite, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)

	out := map[string]Storage{
		"memory": NewMemoryStore(),
		"file":   file,
		"sqlite": sqlite,
	}

	if url := os.Getenv("WATTCHAT_TEST_REDIS_URL"); url != "" {
		prefix := "wattchat-test:" + strings.ReplaceAll(t.Name(), "/", "_") + ":"
		redisStore, err := NewRedisStore(ctx, url, prefix, time.Minute)
		require.NoError(t, err)
		out["redis"] = redisStore
	}

	t.Cleanup(func() {
		for _, s := range out {
			s.Close()
		}
	})
	return out
}

func TestStorage_Conformance(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, KeyToken)
			assert.True(t, errors.Is(err, ErrNotFound), "Get on missing key: %v", err)

			require.NoError(t, store.Set(ctx, KeyToken, "abc"))
			v, err := store.Get(ctx, KeyToken)
			require.NoError(t, err)
			assert.Equal(t, "abc", v)

			require.NoError(t, store.Set(ctx, KeyToken, "def"))
			v, err = store.Get(ctx, KeyToken)
			require.NoError(t, err)
			assert.Equal(t, "def", v)

			require.NoError(t, store.Remove(ctx, KeyToken))
			_, err = store.Get(ctx, KeyToken)
			assert.True(t, errors.Is(err, ErrNotFound))

			// Removing twice is fine.
			assert.NoError(t, store.Remove(ctx, KeyToken))
		})
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore()
	s.Close()
	if err := s.Set(context.Background(), "k", "v"); !errors.Is(err, ErrClosed) {
		t.Errorf("Set after Close = %v, want ErrClosed", err)
	}
}

func TestStoreError_Is(t *testing.T) {
	err := notFound(KeyHistory)
	if !errors.Is(err, ErrNotFound) {
		t.Error("notFound() should match ErrNotFound")
	}
	if errors.Is(err, ErrClosed) {
		t.Error("notFound() should not match ErrClosed")
	}
	if !strings.Contains(err.Error(), KeyHistory) {
		t.Errorf("Error() = %q, want key in message", err.Error())
	}
}

// =============================================================================
// FILE STORE TESTS
// =============================================================================

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	a, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, a.Set(ctx, KeyChatID, "42"))

	b, err := NewFileStore(path)
	require.NoError(t, err)
	v, err := b.Get(ctx, KeyChatID)
	require.NoError(t, err)
	assert.Equal(t, "42", v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = s.Get(context.Background(), KeyToken)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestFileStore_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "state.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	events, err := s.Watch(ctx, 20*time.Millisecond)
	require.NoError(t, err)

	other, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, other.Set(ctx, KeyToken, "t"))

	select {
	case <-events:
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification after write")
	}

	cancel()
	select {
	case _, ok := <-events:
		for ok {
			_, ok = <-events
		}
	case <-time.After(3 * time.Second):
		t.Fatal("events channel not closed after cancel")
	}
}

// =============================================================================
// SEALED STORE TESTS
// =============================================================================

func TestSealed_EncryptsSelectedKeys(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()

	s, err := NewSealed(ctx, inner, "hunter2", KeyToken)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, KeyToken, "secret-token"))
	require.NoError(t, s.Set(ctx, KeyChatID, "7"))

	raw, err := inner.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, sealPrefix))
	assert.NotContains(t, raw, "secret-token")

	raw, err = inner.Get(ctx, KeyChatID)
	require.NoError(t, err)
	assert.Equal(t, "7", raw)

	v, err := s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", v)
}

func TestSealed_ReusesSaltAndRejectsWrongPassphrase(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()

	s1, err := NewSealed(ctx, inner, "right", KeyToken)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, KeyToken, "tok"))

	s2, err := NewSealed(ctx, inner, "right", KeyToken)
	require.NoError(t, err)
	v, err := s2.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	s3, err := NewSealed(ctx, inner, "wrong", KeyToken)
	require.NoError(t, err)
	_, err = s3.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrBadPassphrase)
}

func TestSealed_PlaintextPassthrough(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	require.NoError(t, inner.Set(ctx, KeyToken, "legacy"))

	s, err := NewSealed(ctx, inner, "pw", KeyToken)
	require.NoError(t, err)
	v, err := s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "legacy", v)
}

func TestNewSealed_RequiresPassphrase(t *testing.T) {
	_, err := NewSealed(context.Background(), NewMemoryStore(), "", KeyToken)
	assert.ErrorIs(t, err, ErrNoPassphrase)
}

// =============================================================================
// FACTORY TESTS
// =============================================================================

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Options{Backend: "file", Path: filepath.Join(t.TempDir(), "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, Options{Backend: BackendMemory, EncryptKeys: []string{KeyToken}, Passphrase: "pw"})
	require.NoError(t, err)
	assert.IsType(t, &Sealed{}, s)

	_, err = Open(ctx, Options{Backend: "floppy"})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Backend: BackendRedis})
	assert.Error(t, err, "redis without url should fail")
}
