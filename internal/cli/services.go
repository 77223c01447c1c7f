// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/wattchat/internal/api"
	"github.com/jeranaias/wattchat/internal/auth"
	"github.com/jeranaias/wattchat/internal/config"
	"github.com/jeranaias/wattchat/internal/conversation"
	"github.com/jeranaias/wattchat/internal/session"
	"github.com/jeranaias/wattchat/internal/storage"
	"github.com/jeranaias/wattchat/internal/ui/app"
	"github.com/jeranaias/wattchat/internal/ui/styles"
)

// ErrNotLoggedIn asks the user to run `wattchat login`.
var ErrNotLoggedIn = errors.New("not logged in, run: wattchat login")

// services is everything a chat command needs, wired from the config.
type services struct {
	cfg      *config.Config
	store    storage.Storage
	client   *api.Client
	sessions *session.Manager
	gate     *auth.Gate
	engine   *conversation.Engine
}

func openServices(ctx context.Context, cfg *config.Config) (*services, error) {
	store, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}

	client := api.NewClient(cfg.Server.BaseURL).
		WithChatPath(cfg.Server.ChatPath).
		WithTimeout(cfg.RequestTimeout())

	sessions := session.NewManager(store, session.Config{
		Timeout:       cfg.SessionTimeout(),
		PollInterval:  cfg.PollInterval(),
		WarningBefore: cfg.WarningBefore(),
	})

	engine := conversation.NewEngine(client, sessions)
	engine.RemoteSync = cfg.Server.SyncChats

	return &services{
		cfg:      cfg,
		store:    store,
		client:   client,
		sessions: sessions,
		gate: auth.NewGate(store, client, sessions, auth.Options{
			VerifyRemote:      cfg.Auth.VerifyRemote,
			AttemptsPerMinute: cfg.Auth.LoginAttemptsPerMin,
		}),
		engine: engine,
	}, nil
}

func (s *services) Close() error {
	return s.store.Close()
}

// requireLogin hands the stored token to the client.
func (s *services) requireLogin(ctx context.Context) error {
	_, err := s.gate.Check(ctx)
	switch {
	case errors.Is(err, auth.ErrNoSession):
		return ErrNotLoggedIn
	case errors.Is(err, auth.ErrSessionExpired):
		return fmt.Errorf("%w; run: wattchat login", err)
	}
	return err
}

// =============================================================================
// TUI
// =============================================================================

func runTUI(ctx context.Context, cfg *config.Config) error {
	svc, err := openServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	m := app.New(ctx, app.Deps{
		Gate:   svc.gate,
		Engine: svc.engine,
		Config: cfg,
		Theme:  styles.NewTheme(cfg.UI.Theme),
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
