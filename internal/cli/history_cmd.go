// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/wattchat/internal/export"
	"github.com/jeranaias/wattchat/internal/model"
)

// =============================================================================
// HISTORY
// =============================================================================

func historyCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, show and export chats",
	}
	cmd.AddCommand(historyListCmd(opts), historyShowCmd(opts), historyExportCmd(opts))
	return cmd
}

func historyListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the chats stored on the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := openServices(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer svc.Close()
			if err := svc.requireLogin(ctx); err != nil {
				return err
			}

			chats, err := svc.engine.ListChats(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(chats) == 0 {
				fmt.Fprintln(out, DimStyle.Render("No stored chats"))
				return nil
			}
			current, _ := svc.sessions.ChatID(ctx)
			for _, c := range chats {
				marker := "  "
				if c.ID == current {
					marker = "* "
				}
				fmt.Fprintf(out, "%s%s %s\n", marker, TitleStyle.Render("#"+c.ID), c.Content)
			}
			return nil
		},
	}
}

func historyShowCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [chat-id]",
		Short: "Print the local chat, or a stored chat by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := openServices(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			h, chatID, err := loadHistory(ctx, svc, args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := export.NewJSONExporter(nil).Export(export.NewDocument(h, chatID))
				if err != nil {
					return err
				}
				fmt.Fprintln(out, highlight(string(data), "json", ColorsEnabled() && isTerminalWriter(out)))
				return nil
			}

			if chatID != "" {
				fmt.Fprintln(out, TitleStyle.Render("Chat #"+chatID))
			}
			if h.Len() <= 1 {
				fmt.Fprintln(out, DimStyle.Render("No messages yet"))
				return nil
			}
			printHistory(out, h)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func historyExportCmd(opts *globalOptions) *cobra.Command {
	var (
		format   string
		outDir   string
		filename string
		open     bool
		noMeta   bool
	)

	cmd := &cobra.Command{
		Use:   "export [chat-id]",
		Short: "Write the local chat, or a stored chat by id, to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := openServices(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			h, chatID, err := loadHistory(ctx, svc, args)
			if err != nil {
				return err
			}

			eopts := export.DefaultOptions()
			eopts.OutputDir = outDir
			eopts.Filename = filename
			eopts.OpenAfterExport = open
			eopts.IncludeMetadata = !noMeta
			exporter, err := export.ForFormat(format, eopts)
			if err != nil {
				return err
			}

			path, err := export.ExportToFile(export.NewDocument(h, chatID), exporter, eopts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Exported to %s\n", RenderStatus("ok"), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "md, json or html")
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "output directory")
	cmd.Flags().StringVar(&filename, "file", "", "file name (generated when empty)")
	cmd.Flags().BoolVar(&open, "open", false, "open the file afterwards")
	cmd.Flags().BoolVar(&noMeta, "no-metadata", false, "leave out the title block")
	return cmd
}

// loadHistory returns the local chat, or the remote chat args[0].
func loadHistory(ctx context.Context, svc *services, args []string) (model.History, string, error) {
	if len(args) == 0 {
		h, _, err := svc.sessions.Load(ctx)
		if err != nil {
			return nil, "", err
		}
		chatID, err := svc.sessions.ChatID(ctx)
		if err != nil {
			return nil, "", err
		}
		return h, chatID, nil
	}

	if err := svc.requireLogin(ctx); err != nil {
		return nil, "", err
	}
	h, err := svc.engine.FetchChat(ctx, args[0])
	if err != nil {
		return nil, "", fmt.Errorf("fetch chat #%s: %w", args[0], err)
	}
	return h, args[0], nil
}

// =============================================================================
// PRINTING
// =============================================================================

func printHistory(w io.Writer, h model.History) {
	for _, t := range h {
		printTurn(w, t)
	}
}

func printTurn(w io.Writer, t model.Turn) {
	switch {
	case t.Type == model.TypeLoading:
	case t.IsFile():
		fmt.Fprintf(w, "%s [file] %s\n", UserStyle.Render("you>"), t.File.Label())
	case t.Role == model.RoleUser:
		fmt.Fprintf(w, "%s %s\n", UserStyle.Render("you>"), t.Text)
	case t.Type == model.TypeError:
		fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[X]"), t.Text)
	default:
		fmt.Fprintf(w, "%s %s\n", AssistantStyle.Render("wattchat>"), t.Text)
	}
}
