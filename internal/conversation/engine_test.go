// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/wattchat/internal/api"
	"github.com/jeranaias/wattchat/internal/model"
	"github.com/jeranaias/wattchat/internal/session"
	"github.com/jeranaias/wattchat/internal/storage"
)

// fakeBackend records calls and answers from canned values.
type fakeBackend struct {
	mu sync.Mutex

	chatAnswer string
	chatErr    error
	uploadErr  error

	chats    []api.ChatRequest
	uploads  map[string]string
	creates  []model.History
	updates  []model.History
	offsets  []int
	removed  int
	stored   map[string]model.History
	nextID   string
	createEr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chatAnswer: "Run the dishwasher after 10pm.",
		uploads:    make(map[string]string),
		stored:     make(map[string]model.History),
		nextID:     "1",
	}
}

func (f *fakeBackend) Chat(_ context.Context, req api.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, req)
	return f.chatAnswer, f.chatErr
}

func (f *fakeBackend) Upload(_ context.Context, name string, r io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, _ := io.ReadAll(r)
	f.uploads[name] = string(data)
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "File uploaded", nil
}

func (f *fakeBackend) ListChats(context.Context) ([]api.ChatSummary, error) {
	return []api.ChatSummary{{ID: "1", Content: "Run the dishwasher..."}}, nil
}

func (f *fakeBackend) GetChat(_ context.Context, id string) (model.History, error) {
	h, ok := f.stored[id]
	if !ok {
		return nil, &api.Error{Status: 404, Message: "Chat history not found"}
	}
	return h, nil
}

func (f *fakeBackend) CreateChat(_ context.Context, h model.History) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createEr != nil {
		return "", f.createEr
	}
	f.creates = append(f.creates, h)
	return f.nextID, nil
}

func (f *fakeBackend) UpdateChat(_ context.Context, _ string, turns model.History, offset int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, turns)
	f.offsets = append(f.offsets, offset)
	return nil
}

func (f *fakeBackend) RemoveSession(context.Context) error {
	f.removed++
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeBackend, *session.Manager) {
	t.Helper()
	backend := newFakeBackend()
	mgr := session.NewManager(storage.NewMemoryStore(), session.DefaultConfig())
	return NewEngine(backend, mgr), backend, mgr
}

// =============================================================================
// ENGINE TESTS
// =============================================================================

func TestEngine_RespondPersistsAndCreatesRecord(t *testing.T) {
	ctx := context.Background()
	e, backend, mgr := newTestEngine(t)

	_, err := e.SubmitText("When should I run the dishwasher?")
	require.NoError(t, err)

	res, err := e.Respond(ctx)
	require.NoError(t, err)
	assert.NoError(t, res.Err)
	assert.Equal(t, "Run the dishwasher after 10pm.", res.Turn.Text)

	// Persisted.
	h, restored, err := mgr.Load(ctx)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.True(t, h.Equal(e.Conversation().History()))

	// First exchange creates the remote record with the whole list.
	require.Len(t, backend.creates, 1)
	assert.Equal(t, 3, backend.creates[0].Len())
	assert.Equal(t, "1", e.Conversation().ChatID())
	id, _ := mgr.ChatID(ctx)
	assert.Equal(t, "1", id)
}

func TestEngine_SecondExchangeUpdatesRecord(t *testing.T) {
	ctx := context.Background()
	e, backend, _ := newTestEngine(t)

	e.SubmitText("q1")
	e.Respond(ctx)
	e.SubmitText("q2")
	_, err := e.Respond(ctx)
	require.NoError(t, err)

	require.Len(t, backend.creates, 1)
	require.Len(t, backend.updates, 1)
	assert.Equal(t, 2, backend.updates[0].Len())
	assert.Equal(t, "q2", backend.updates[0][0].Text)
	assert.Equal(t, 3, backend.offsets[0])

	// The second request carried the first answer as context.
	require.Len(t, backend.chats, 2)
	assert.Equal(t, backend.chatAnswer, backend.chats[1].PrevChat)
}

func TestEngine_FailedCallNotPersisted(t *testing.T) {
	ctx := context.Background()
	e, backend, mgr := newTestEngine(t)
	backend.chatErr = &api.Error{Status: 500, Message: "model offline"}

	e.SubmitText("q")
	res, err := e.Respond(ctx)
	require.NoError(t, err)
	assert.Error(t, res.Err)
	assert.False(t, res.Unauthorized)
	assert.Equal(t, model.TypeError, res.Turn.Type)
	assert.Equal(t, "model offline", res.Turn.Text)
	assert.Nil(t, res.Sync)
	assert.Empty(t, backend.creates)

	_, restored, _ := mgr.Load(ctx)
	assert.False(t, restored, "error turns are not persisted")
}

func TestEngine_UnauthorizedFlagged(t *testing.T) {
	e, backend, _ := newTestEngine(t)
	backend.chatErr = &api.Error{Status: 401, Message: "Unauthorized"}

	e.SubmitText("q")
	res, err := e.Respond(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Unauthorized)
}

func TestEngine_SyncFailureKeepsLocalHistory(t *testing.T) {
	ctx := context.Background()
	e, backend, _ := newTestEngine(t)
	backend.createEr = errors.New("db down")

	e.SubmitText("q")
	res, err := e.Respond(ctx)
	require.NoError(t, err)
	assert.NoError(t, res.Err)
	assert.Equal(t, "", e.Conversation().ChatID())
	assert.Equal(t, StateIdle, e.Conversation().State())

	// Next exchange tries to create again with everything so far.
	backend.createEr = nil
	e.SubmitText("q2")
	e.Respond(ctx)
	require.Len(t, backend.creates, 1)
	assert.Equal(t, 5, backend.creates[0].Len())
}

func TestEngine_FileUpload(t *testing.T) {
	ctx := context.Background()
	e, backend, _ := newTestEngine(t)

	path := filepath.Join(t.TempDir(), "usage.csv")
	require.NoError(t, os.WriteFile(path, []byte("day,kwh\nmon,12\n"), 0600))

	turn, err := e.SubmitFile(path)
	require.NoError(t, err)
	assert.Equal(t, "usage.csv", turn.File.Name)
	assert.EqualValues(t, 16, turn.File.Size)

	res, err := e.Respond(ctx)
	require.NoError(t, err)
	assert.Equal(t, "File uploaded", res.Turn.Text)
	assert.Equal(t, "day,kwh\nmon,12\n", backend.uploads["usage.csv"])
}

func TestEngine_SubmitFileValidation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	dir := t.TempDir()

	xlsx := filepath.Join(dir, "usage.xlsx")
	os.WriteFile(xlsx, []byte("x"), 0600)
	_, err := e.SubmitFile(xlsx)
	assert.ErrorIs(t, err, api.ErrUploadType)

	big := filepath.Join(dir, "big.csv")
	os.WriteFile(big, []byte(strings.Repeat("a", api.MaxUploadSize+1)), 0600)
	_, err = e.SubmitFile(big)
	assert.ErrorIs(t, err, api.ErrUploadTooLarge)

	_, err = e.SubmitFile(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	assert.Equal(t, 1, e.Conversation().Len(), "rejected files add no turn")
}

func TestEngine_FileFailureRetryDropsFileTurn(t *testing.T) {
	ctx := context.Background()
	e, backend, _ := newTestEngine(t)
	backend.uploadErr = errors.New("invalid csv")

	path := filepath.Join(t.TempDir(), "bad.csv")
	os.WriteFile(path, []byte("x"), 0600)
	e.SubmitFile(path)
	e.Respond(ctx)
	assert.Equal(t, StateErrored, e.Conversation().State())

	require.NoError(t, e.Retry())
	assert.Equal(t, 1, e.Conversation().Len())
	assert.Empty(t, e.files)
}

func TestEngine_CompleteForResetConversationIsStale(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	e.SubmitText("q")
	req, err := e.Begin()
	require.NoError(t, err)
	answer, callErr := e.Execute(ctx, req)

	_, err = e.NewChat(ctx)
	require.NoError(t, err)

	_, err = e.Complete(ctx, req, answer, callErr)
	assert.ErrorIs(t, err, ErrStaleCompletion)
	assert.Equal(t, 1, e.Conversation().Len())
}

func TestEngine_ApplySyncIgnoresOldGeneration(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	job := SyncJob{Generation: e.Conversation().Generation()}
	e.NewChat(ctx)
	e.ApplySync(ctx, job, "77", nil)
	assert.Equal(t, "", e.Conversation().ChatID())
}

func TestEngine_NewChatReportsUploadedFile(t *testing.T) {
	ctx := context.Background()
	e, backend, mgr := newTestEngine(t)

	path := filepath.Join(t.TempDir(), "u.csv")
	os.WriteFile(path, []byte("a,b\n"), 0600)
	e.SubmitFile(path)
	e.Respond(ctx)

	hadFile, err := e.NewChat(ctx)
	require.NoError(t, err)
	assert.True(t, hadFile)
	require.NoError(t, e.Cleanup(ctx))
	assert.Equal(t, 1, backend.removed)

	_, restored, _ := mgr.Load(ctx)
	assert.False(t, restored)
	assert.Equal(t, 1, e.Conversation().Len())
}

func TestEngine_RestoreAndApplyChat(t *testing.T) {
	ctx := context.Background()
	e, backend, mgr := newTestEngine(t)

	saved := model.History{model.NewGreeting(), model.NewUserText("q"), model.NewAnswer("a")}
	require.NoError(t, mgr.Save(ctx, saved))
	require.NoError(t, mgr.SetChatID(ctx, "3"))

	restored, err := e.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, "3", e.Conversation().ChatID())
	assert.Equal(t, "", e.Conversation().RevealID())

	backend.stored["9"] = model.History{model.NewGreeting(), model.NewUserText("other"), model.NewAnswer("b")}
	h, err := e.FetchChat(ctx, "9")
	require.NoError(t, err)
	require.NoError(t, e.ApplyChat(ctx, h, "9"))
	assert.Equal(t, "other", e.Conversation().History()[1].Text)
	id, _ := mgr.ChatID(ctx)
	assert.Equal(t, "9", id)

	_, err = e.FetchChat(ctx, "404")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestEngine_RemoteSyncDisabled(t *testing.T) {
	e, backend, _ := newTestEngine(t)
	e.RemoteSync = false

	e.SubmitText("q")
	res, err := e.Respond(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Sync)
	assert.Empty(t, backend.creates)
}
