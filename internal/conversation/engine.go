// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jeranaias/wattchat/internal/api"
	"github.com/jeranaias/wattchat/internal/logger"
	"github.com/jeranaias/wattchat/internal/model"
	"github.com/jeranaias/wattchat/internal/session"
)

// =============================================================================
// BACKEND
// =============================================================================

// Backend is the subset of the API client the engine needs.
type Backend interface {
	Chat(ctx context.Context, req api.ChatRequest) (string, error)
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
	ListChats(ctx context.Context) ([]api.ChatSummary, error)
	GetChat(ctx context.Context, id string) (model.History, error)
	CreateChat(ctx context.Context, h model.History) (string, error)
	UpdateChat(ctx context.Context, id string, turns model.History, offset int) error
	RemoveSession(ctx context.Context) error
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine drives a Conversation against the backend and keeps the session
// store and the remote chat record in step with it. Methods that mutate
// the conversation must be called from one goroutine; Execute, Sync,
// FetchChat and Cleanup only do I/O and may run anywhere.
type Engine struct {
	conv     *Conversation
	backend  Backend
	sessions *session.Manager

	// files maps file-turn ids to the local path to upload.
	files map[string]string

	// RemoteSync mirrors exchanges to the remote chat record.
	RemoteSync bool
}

// NewEngine creates an engine with a greeting-only conversation.
func NewEngine(backend Backend, sessions *session.Manager) *Engine {
	return &Engine{
		conv:       New(),
		backend:    backend,
		sessions:   sessions,
		files:      make(map[string]string),
		RemoteSync: true,
	}
}

// Conversation returns the driven conversation.
func (e *Engine) Conversation() *Conversation {
	return e.conv
}

// Sessions returns the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Restore loads the persisted history and chat id. Restored answers are
// shown without a reveal.
func (e *Engine) Restore(ctx context.Context) (bool, error) {
	h, restored, err := e.sessions.Load(ctx)
	if err != nil {
		return false, err
	}
	chatID := ""
	if restored {
		if chatID, err = e.sessions.ChatID(ctx); err != nil {
			return false, err
		}
	}
	e.conv.Load(h, chatID)
	logger.DebugCF("conversation", "Session restored", map[string]interface{}{
		"turns":    e.conv.Len(),
		"restored": restored,
		"chat_id":  chatID,
	})
	return restored, nil
}

// =============================================================================
// SUBMISSION
// =============================================================================

// SubmitText appends a user text turn.
func (e *Engine) SubmitText(text string) (model.Turn, error) {
	return e.conv.SubmitText(text)
}

// SubmitFile checks the file at path against the upload limits and appends
// a user file turn for it.
func (e *Engine) SubmitFile(path string) (model.Turn, error) {
	if !e.conv.CanSubmit() {
		return model.Turn{}, e.conv.checkSubmit()
	}
	info, err := os.Stat(path)
	if err != nil {
		return model.Turn{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if info.IsDir() {
		return model.Turn{}, fmt.Errorf("%s is a directory", path)
	}
	name := filepath.Base(path)
	if err := api.ValidateUpload(name, info.Size()); err != nil {
		return model.Turn{}, err
	}
	t, err := e.conv.SubmitFile(name, info.Size())
	if err != nil {
		return model.Turn{}, err
	}
	e.files[t.ID] = path
	return t, nil
}

// Begin appends the loading turn for the pending user turn and returns the
// call to make.
func (e *Engine) Begin() (Request, error) {
	req, err := e.conv.BeginResponse()
	if err != nil {
		return Request{}, err
	}
	if req.Kind == KindUpload {
		req.Path = e.files[req.TurnID]
	}
	return req, nil
}

// Execute performs the remote call for req. It does not touch the
// conversation.
func (e *Engine) Execute(ctx context.Context, req Request) (string, error) {
	switch req.Kind {
	case KindUpload:
		if req.Path == "" {
			return "", fmt.Errorf("file %s is no longer available", req.File.Name)
		}
		f, err := os.Open(req.Path)
		if err != nil {
			return "", fmt.Errorf("cannot open %s: %w", req.File.Name, err)
		}
		defer f.Close()
		return e.backend.Upload(ctx, req.File.Name, f)
	default:
		return e.backend.Chat(ctx, req.Chat)
	}
}

// =============================================================================
// COMPLETION
// =============================================================================

// Result is the outcome of Complete.
type Result struct {
	// Turn is the appended answer or error turn.
	Turn model.Turn

	// Err is the call error, nil on success.
	Err error

	// Unauthorized is set when the backend rejected the session token.
	Unauthorized bool

	// Sync is the remote record update to run, nil when there is none.
	Sync *SyncJob
}

// Complete applies the outcome of Execute. On success the history is
// persisted and a sync job is returned; on failure an error turn is
// appended and input is blocked.
func (e *Engine) Complete(ctx context.Context, req Request, answer string, callErr error) (Result, error) {
	if callErr != nil {
		t, err := e.conv.Fail(req, callErr)
		if err != nil {
			return Result{}, err
		}
		logger.WarnCF("conversation", "Request failed", map[string]interface{}{
			"kind":  req.Kind,
			"error": callErr.Error(),
		})
		return Result{
			Turn:         t,
			Err:          callErr,
			Unauthorized: errors.Is(callErr, api.ErrUnauthorized),
		}, nil
	}

	t, err := e.conv.Resolve(req, answer)
	if err != nil {
		return Result{}, err
	}
	if err := e.sessions.Save(ctx, e.conv.History()); err != nil {
		logger.WarnCF("conversation", "Failed to persist history", map[string]interface{}{
			"error": err.Error(),
		})
	}

	res := Result{Turn: t}
	if e.RemoteSync {
		res.Sync = e.syncJob()
	}
	return res, nil
}

// Respond runs Begin, Execute and Complete in sequence, then the sync. It
// is the blocking form used by the line-mode REPL.
func (e *Engine) Respond(ctx context.Context) (Result, error) {
	req, err := e.Begin()
	if err != nil {
		return Result{}, err
	}
	answer, callErr := e.Execute(ctx, req)
	res, err := e.Complete(ctx, req, answer, callErr)
	if err != nil {
		return res, err
	}
	if res.Sync != nil {
		id, syncErr := e.Sync(ctx, *res.Sync)
		e.ApplySync(ctx, *res.Sync, id, syncErr)
	}
	return res, nil
}

// Retry drops the failed turn (and its file turn) so the user can go on.
func (e *Engine) Retry() error {
	if err := e.conv.Retry(); err != nil {
		return err
	}
	for id := range e.files {
		if !e.hasTurn(id) {
			delete(e.files, id)
		}
	}
	return nil
}

func (e *Engine) hasTurn(id string) bool {
	for _, t := range e.conv.history {
		if t.ID == id {
			return true
		}
	}
	return false
}

// =============================================================================
// REMOTE CHAT RECORD
// =============================================================================

// SyncJob is one create or update of the remote chat record.
type SyncJob struct {
	// ChatID is empty for a create.
	ChatID string

	// Turns is the whole history for a create, or the last exchange for
	// an update.
	Turns model.History

	// Offset is the number of turns before Turns in the full history.
	Offset int

	Generation int
}

// Create reports whether the job creates a new record.
func (j SyncJob) Create() bool {
	return j.ChatID == ""
}

// syncJob builds the job for the exchange that was just resolved: the
// whole list when no record exists yet, the user turn and its answer
// otherwise.
func (e *Engine) syncJob() *SyncJob {
	h := e.conv.History()
	job := &SyncJob{ChatID: e.conv.ChatID(), Generation: e.conv.Generation()}
	if job.Create() || len(h) < 3 {
		job.ChatID = ""
		job.Turns = h
		return job
	}
	job.Offset = len(h) - 2
	job.Turns = h[job.Offset:]
	return job
}

// Sync sends job to the backend and returns the chat id.
func (e *Engine) Sync(ctx context.Context, job SyncJob) (string, error) {
	if job.Create() {
		return e.backend.CreateChat(ctx, job.Turns)
	}
	return job.ChatID, e.backend.UpdateChat(ctx, job.ChatID, job.Turns, job.Offset)
}

// ApplySync records the chat id from a finished sync. Failures are only
// logged: the local history is already safe and the next exchange will
// try again.
func (e *Engine) ApplySync(ctx context.Context, job SyncJob, chatID string, syncErr error) {
	if syncErr != nil {
		logger.WarnCF("conversation", "Failed to sync chat record", map[string]interface{}{
			"chat_id": job.ChatID,
			"create":  job.Create(),
			"error":   syncErr.Error(),
		})
		return
	}
	if job.Generation != e.conv.Generation() || chatID == "" {
		return
	}
	if e.conv.ChatID() == chatID {
		return
	}
	e.conv.SetChatID(chatID)
	if err := e.sessions.SetChatID(ctx, chatID); err != nil {
		logger.WarnCF("conversation", "Failed to persist chat id", map[string]interface{}{
			"error": err.Error(),
		})
	}
	logger.InfoCF("conversation", "Chat record created", map[string]interface{}{
		"chat_id": chatID,
	})
}

// ListChats returns the user's stored chats.
func (e *Engine) ListChats(ctx context.Context) ([]api.ChatSummary, error) {
	return e.backend.ListChats(ctx)
}

// FetchChat downloads a stored chat.
func (e *Engine) FetchChat(ctx context.Context, id string) (model.History, error) {
	return e.backend.GetChat(ctx, id)
}

// ApplyChat replaces the conversation with a fetched chat and persists it.
func (e *Engine) ApplyChat(ctx context.Context, h model.History, chatID string) error {
	e.conv.Load(h, chatID)
	e.files = make(map[string]string)
	if err := e.sessions.Save(ctx, e.conv.History()); err != nil {
		return err
	}
	return e.sessions.SetChatID(ctx, chatID)
}

// =============================================================================
// RESET
// =============================================================================

// NewChat resets to the greeting and clears the stored session. It reports
// whether the dropped chat had uploaded a file, in which case Cleanup
// should be run.
func (e *Engine) NewChat(ctx context.Context) (bool, error) {
	hadFile := e.conv.history.HasFile()
	e.conv.Reset()
	e.files = make(map[string]string)
	return hadFile, e.sessions.Clear(ctx)
}

// Cleanup asks the backend to drop the uploaded data file.
func (e *Engine) Cleanup(ctx context.Context) error {
	err := e.backend.RemoveSession(ctx)
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		return err
	}
	return nil
}

// Expired resets the conversation after the session manager cleared the
// stored session.
func (e *Engine) Expired() {
	e.conv.Reset()
	e.files = make(map[string]string)
}
