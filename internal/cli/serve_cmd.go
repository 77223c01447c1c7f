// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/wattchat/internal/logger"
	"github.com/jeranaias/wattchat/internal/stub"
)

// =============================================================================
// SERVE-STUB
// =============================================================================

func serveStubCmd(opts *globalOptions) *cobra.Command {
	var (
		addr     string
		user     string
		password string
		secret   string
		latency  time.Duration
		tokenTTL time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve-stub",
		Short: "Run a local backend with canned energy advice",
		Long: "serve-stub answers every endpoint the client uses, keeps chats in memory " +
			"and issues JWT session tokens. It is meant for local development.",
		Args: cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.logStderr = true
			return opts.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := stub.New(stub.Options{
				Secret:   secret,
				Users:    map[string]string{user: password},
				TokenTTL: tokenTTL,
				Latency:  latency,
			})
			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stub backend on http://%s (user %q)\n", addr, user)
			return serve(cmd.Context(), httpSrv)
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", "localhost:8080", "listen address")
	f.StringVar(&user, "user", "demo", "accepted username")
	f.StringVar(&password, "password", "demo", "accepted password")
	f.StringVar(&secret, "secret", "", "token signing secret (random when empty)")
	f.DurationVar(&latency, "latency", 0, "delay before each answer, e.g. 800ms")
	f.DurationVar(&tokenTTL, "token-ttl", 5*time.Hour, "session token lifetime")
	return cmd
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.InfoCF("stub", "Shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
