// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/wattchat/internal/config"
	"github.com/jeranaias/wattchat/internal/logger"
	"github.com/jeranaias/wattchat/internal/storage"
)

// BuildInfo is set by main from linker flags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// globalOptions are the flags every command shares.
type globalOptions struct {
	configPath string
	server     string
	logLevel   string
	logStderr  bool

	cfg *config.Config
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCmd builds the command tree.
func NewRootCmd(info BuildInfo) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "wattchat",
		Short: "Chat with your smart home energy assistant",
		Long: "wattchat is a terminal client for the energy advice chatbot. " +
			"Run it without arguments to open the chat screen.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), opts.cfg)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.wattchat/config.toml)")
	flags.StringVar(&opts.server, "server", "", "backend base URL, overrides server.base_url")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn, error or off")

	root.AddCommand(
		replCmd(opts),
		loginCmd(opts),
		logoutCmd(opts),
		historyCmd(opts),
		configCmd(opts),
		serveStubCmd(opts),
		versionCmd(info),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(info BuildInfo) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logger.Close()

	root := NewRootCmd(info)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), err)
		return 1
	}
	return 0
}

// =============================================================================
// SETUP
// =============================================================================

// setup loads the configuration, applies flag overrides and opens the log.
func (o *globalOptions) setup() error {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}
	if o.server != "" {
		cfg.Server.BaseURL = strings.TrimRight(o.server, "/")
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	o.cfg = cfg
	config.SetGlobal(cfg)

	if o.logStderr {
		logger.SetOutput(os.Stderr, cfg.Log.Level)
		return nil
	}
	path := cfg.Log.Path
	if path == "" {
		if path, err = storage.DefaultPath("wattchat.log"); err != nil {
			return err
		}
	}
	if err := logger.Init(cfg.Log.Level, path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	return nil
}

// loadConfig reads path, or the default locations when path is empty. A
// named file that does not exist yet yields the defaults so `config set`
// can create it.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	if _, err := os.Stat(path); err == nil {
		return config.LoadFrom(path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg := config.Default()
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// configFile returns the file `config set` writes to.
func (o *globalOptions) configFile() (string, error) {
	if o.configPath != "" {
		return filepath.Abs(o.configPath)
	}
	return config.ConfigPathTOML()
}

// =============================================================================
// VERSION
// =============================================================================

func versionCmd(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wattchat %s\n", info.Version)
			fmt.Fprintf(out, "%s%s\n", RenderLabel("Commit:"), info.Commit)
			fmt.Fprintf(out, "%s%s\n", RenderLabel("Built:"), info.Date)
			return nil
		},
	}
}
