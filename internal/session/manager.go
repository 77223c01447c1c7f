// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session persists the chat history and expires it after inactivity.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/wattchat/internal/logger"
	"github.com/jeranaias/wattchat/internal/model"
	"github.com/jeranaias/wattchat/internal/storage"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager stores the turn list with a last-access timestamp and clears both
// once the session has been idle for longer than the timeout.
type Manager struct {
	mu sync.Mutex

	store storage.Storage

	timeout       time.Duration
	pollInterval  time.Duration
	warningBefore time.Duration
	warningShown  bool

	// now is replaceable for tests.
	now func() time.Time

	onExpire  func()
	onWarning func(remaining time.Duration)
}

// Config holds configuration for the session manager.
type Config struct {
	// Timeout is the inactivity window (default: 30 minutes)
	Timeout time.Duration

	// PollInterval is how often the stored timestamp is checked (default: 5 seconds)
	PollInterval time.Duration

	// WarningBefore is how long before expiry to warn (default: 2 minutes, 0 disables)
	WarningBefore time.Duration
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Minute,
		PollInterval:  5 * time.Second,
		WarningBefore: 2 * time.Minute,
	}
}

// NewManager creates a session manager on top of store.
func NewManager(store storage.Storage, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.WarningBefore < 0 || cfg.WarningBefore >= cfg.Timeout {
		cfg.WarningBefore = 0
	}
	return &Manager{
		store:         store,
		timeout:       cfg.Timeout,
		pollInterval:  cfg.PollInterval,
		warningBefore: cfg.WarningBefore,
		now:           time.Now,
	}
}

// Timeout returns the configured inactivity window.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// Store returns the underlying storage.
func (m *Manager) Store() storage.Storage {
	return m.store
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Load rehydrates the stored history. A missing or expired session yields
// a fresh greeting-only history; restored reports whether turns came from
// storage.
func (m *Manager) Load(ctx context.Context) (h model.History, restored bool, err error) {
	expired, err := m.Check(ctx)
	if err != nil {
		return nil, false, err
	}
	if expired {
		return model.NewHistory(), false, nil
	}

	raw, err := m.store.Get(ctx, storage.KeyHistory)
	if errors.Is(err, storage.ErrNotFound) {
		return model.NewHistory(), false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		// A corrupt blob is not worth failing startup over.
		logger.WarnCF("session", "Discarding unreadable chat history", map[string]interface{}{
			"error": err.Error(),
		})
		return model.NewHistory(), false, nil
	}
	return model.Repair(h), true, nil
}

// Save serializes h and stamps the last-access time.
func (m *Manager) Save(ctx context.Context, h model.History) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := m.store.Set(ctx, storage.KeyHistory, string(data)); err != nil {
		return err
	}
	return m.Touch(ctx)
}

// Touch updates the last-access timestamp.
func (m *Manager) Touch(ctx context.Context) error {
	m.mu.Lock()
	now := m.now()
	m.warningShown = false
	m.mu.Unlock()
	return m.store.Set(ctx, storage.KeyLastAccess, strconv.FormatInt(now.UnixMilli(), 10))
}

// LastAccess returns the stored timestamp, zero if none.
func (m *Manager) LastAccess(ctx context.Context) (time.Time, error) {
	raw, err := m.store.Get(ctx, storage.KeyLastAccess)
	if errors.Is(err, storage.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt last-access value %q", raw)
	}
	return time.UnixMilli(ms), nil
}

// ChatID returns the remote chat record id for this session, "" if none.
func (m *Manager) ChatID(ctx context.Context) (string, error) {
	id, err := m.store.Get(ctx, storage.KeyChatID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	return id, err
}

// SetChatID remembers the remote chat record id. An empty id forgets it.
func (m *Manager) SetChatID(ctx context.Context, id string) error {
	if id == "" {
		return m.store.Remove(ctx, storage.KeyChatID)
	}
	return m.store.Set(ctx, storage.KeyChatID, id)
}

// Clear removes the history, timestamp and chat id. The session token is
// left alone; logging out is the auth gate's job.
func (m *Manager) Clear(ctx context.Context) error {
	var errs []error
	for _, key := range []string{storage.KeyHistory, storage.KeyLastAccess, storage.KeyChatID} {
		if err := m.store.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// CALLBACKS
// =============================================================================

// SetExpireCallback sets the function called when the session expires.
func (m *Manager) SetExpireCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = fn
}

// SetWarningCallback sets the function called when approaching expiry.
func (m *Manager) SetWarningCallback(fn func(remaining time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onWarning = fn
}

// =============================================================================
// EXPIRY CHECKING
// =============================================================================

// Remaining returns the time left before expiry. A session with no stored
// timestamp never expires.
func (m *Manager) Remaining(ctx context.Context) (time.Duration, error) {
	last, err := m.LastAccess(ctx)
	if err != nil || last.IsZero() {
		return m.timeout, err
	}
	remaining := m.timeout - m.now().Sub(last)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// Check compares now with the stored timestamp. Past the timeout it clears
// the stored session, fires the expire callback and reports true.
func (m *Manager) Check(ctx context.Context) (bool, error) {
	last, err := m.LastAccess(ctx)
	if err != nil {
		return false, err
	}
	if last.IsZero() {
		return false, nil
	}

	m.mu.Lock()
	idle := m.now().Sub(last)
	expired := idle >= m.timeout

	shouldWarn := false
	if !expired && !m.warningShown && m.warningBefore > 0 && idle >= m.timeout-m.warningBefore {
		shouldWarn = true
		m.warningShown = true
	}
	onExpire := m.onExpire
	onWarning := m.onWarning
	m.mu.Unlock()

	if shouldWarn && onWarning != nil {
		onWarning(m.timeout - idle)
	}

	if !expired {
		return false, nil
	}

	logger.InfoCF("session", "Session expired, clearing chat history", map[string]interface{}{
		"idle": idle.Round(time.Second).String(),
	})
	if err := m.Clear(ctx); err != nil {
		return true, err
	}
	if onExpire != nil {
		onExpire()
	}
	return true, nil
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// TickMsg is sent periodically to check session state.
type TickMsg struct {
	Time time.Time
}

// TimeoutWarningMsg indicates the session is about to expire.
type TimeoutWarningMsg struct {
	Remaining time.Duration
}

// ExpiredMsg indicates the session expired and storage was cleared.
type ExpiredMsg struct{}

// TickCmd returns a command that fires after one poll interval.
func (m *Manager) TickCmd() tea.Cmd {
	return tea.Tick(m.pollInterval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// HandleTick runs one check and schedules the next tick.
func (m *Manager) HandleTick(ctx context.Context) tea.Cmd {
	var cmds []tea.Cmd

	remaining, _ := m.Remaining(ctx)
	m.mu.Lock()
	warned := m.warningShown
	m.mu.Unlock()

	expired, err := m.Check(ctx)
	if err != nil {
		logger.WarnCF("session", "Session check failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	m.mu.Lock()
	warnedNow := !warned && m.warningShown
	m.mu.Unlock()

	if warnedNow && !expired {
		cmds = append(cmds, func() tea.Msg {
			return TimeoutWarningMsg{Remaining: remaining}
		})
	}
	if expired {
		cmds = append(cmds, func() tea.Msg {
			return ExpiredMsg{}
		})
	}

	cmds = append(cmds, m.TickCmd())
	return tea.Batch(cmds...)
}
