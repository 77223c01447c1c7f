// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/wattchat/internal/config"
)

// =============================================================================
// CONFIG
// =============================================================================

func configCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, highlight(opts.cfg.String(), "json", ColorsEnabled() && isTerminalWriter(out)))
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := opts.configFile()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		&cobra.Command{
			Use:       "get <key>",
			Short:     "Print one value, e.g. ui.theme",
			Args:      cobra.ExactArgs(1),
			ValidArgs: config.GetAllKeys(),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := opts.cfg.Get(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
		&cobra.Command{
			Use:       "set <key> <value>",
			Short:     "Change one value and save the config file",
			Args:      cobra.ExactArgs(2),
			ValidArgs: config.GetAllKeys(),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := opts.configFile()
				if err != nil {
					return err
				}
				cfg, err := loadConfig(path)
				if err != nil {
					return err
				}
				if err := cfg.Set(args[0], args[1]); err != nil {
					return err
				}
				if err := cfg.Validate(); err != nil {
					return err
				}
				if strings.HasSuffix(path, ".json") {
					err = config.SaveJSON(cfg, path)
				} else {
					err = config.SaveTOML(cfg, path)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", RenderStatus("ok"), args[0], args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:   "keys",
			Short: "List the settable keys",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, k := range config.GetAllKeys() {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				return nil
			},
		},
	)
	return cmd
}
