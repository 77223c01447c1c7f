// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/wattchat/internal/api"
	"github.com/jeranaias/wattchat/internal/conversation"
	"github.com/jeranaias/wattchat/internal/logger"
	"github.com/jeranaias/wattchat/internal/storage"
	"github.com/jeranaias/wattchat/internal/ui/components"
	"github.com/jeranaias/wattchat/internal/ui/styles"
)

const replHelp = `Commands:
  /new            start a new chat
  /retry          resend the failed message
  /upload <path>  send a .csv file
  /file <query>   ask about the uploaded file
  /chats          list stored chats
  /open <id>      load a stored chat
  /history        print this chat
  /quit           leave`

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader reads one line of input per prompt. io.EOF ends the REPL.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// linerReader provides history and line editing on a terminal.
type linerReader struct {
	state       *liner.State
	historyFile string
}

func newLinerReader() *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)

	r := &linerReader{state: state}
	if path, err := storage.DefaultPath("repl_history"); err == nil {
		r.historyFile = path
		if f, err := os.Open(path); err == nil {
			state.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

func (r *linerReader) ReadLine(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}
	return line, nil
}

func (r *linerReader) Close() error {
	if r.historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
			if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
				r.state.WriteHistory(f)
				f.Close()
			}
		}
	}
	return r.state.Close()
}

// scanReader reads piped input.
type scanReader struct {
	in *bufio.Reader
}

func (r *scanReader) ReadLine(string) (string, error) {
	return readLine(r.in)
}

func (r *scanReader) Close() error { return nil }

// =============================================================================
// REPL COMMAND
// =============================================================================

func replCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Chat in line mode",
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

			var in lineReader
			if isTerminalReader(cmd.InOrStdin()) {
				in = newLinerReader()
			} else {
				in = &scanReader{in: bufio.NewReader(cmd.InOrStdin())}
			}
			defer in.Close()

			r := &repl{svc: svc, in: in, out: cmd.OutOrStdout()}
			if svc.cfg.UI.Markdown && isTerminalWriter(r.out) {
				r.md = components.NewMarkdown(styles.NewTheme(svc.cfg.UI.Theme).GlamourStyle())
			}
			return r.run(ctx)
		},
	}
}

type repl struct {
	svc *services
	in  lineReader
	out io.Writer
	md  *components.Markdown
}

func (r *repl) engine() *conversation.Engine {
	return r.svc.engine
}

func (r *repl) run(ctx context.Context) error {
	if _, err := r.engine().Restore(ctx); err != nil {
		logger.WarnCF("repl", "Failed to restore session", map[string]interface{}{
			"error": err.Error(),
		})
	}
	fmt.Fprintln(r.out, DimStyle.Render("wattchat line mode. /help for commands, /quit to leave."))
	printHistory(r.out, r.engine().Conversation().History())

	// A restored turn that never got its answer.
	if r.engine().Conversation().NeedsResponse() {
		if err := r.respond(ctx); err != nil {
			return err
		}
	}

	for {
		if expired, err := r.svc.sessions.Check(ctx); err == nil && expired {
			r.engine().Expired()
			fmt.Fprintln(r.out, WarningStyle.Render("Session expired. Started a new chat."))
			printHistory(r.out, r.engine().Conversation().History())
		}

		line, err := r.in.ReadLine("you> ")
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") && !strings.HasPrefix(line, conversation.FileMarker) {
			quit, err := r.command(ctx, line)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
			continue
		}

		if _, err := r.engine().SubmitText(line); err != nil {
			r.refused(err)
			continue
		}
		if err := r.respond(ctx); err != nil {
			return err
		}
	}
}

// respond runs the pending turn to completion. A rejected token ends the
// REPL.
func (r *repl) respond(ctx context.Context) error {
	res, err := r.engine().Respond(ctx)
	if err != nil {
		fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[X]"), err)
		return nil
	}
	if res.Unauthorized {
		if err := r.svc.gate.Invalidate(ctx); err != nil {
			logger.WarnCF("repl", "Failed to remove rejected token", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return fmt.Errorf("%w; run: wattchat login", api.ErrUnauthorized)
	}
	if res.Err != nil {
		printTurn(r.out, res.Turn)
		fmt.Fprintln(r.out, DimStyle.Render("Type /retry to resend or /new to start over."))
		return nil
	}

	r.engine().Conversation().MarkRevealed()
	if r.md != nil {
		fmt.Fprintln(r.out, AssistantStyle.Render("wattchat>"))
		fmt.Fprintln(r.out, r.md.Render(res.Turn.Text, GetTerminalWidth()))
		return nil
	}
	printTurn(r.out, res.Turn)
	return nil
}

func (r *repl) refused(err error) {
	conv := r.engine().Conversation()
	switch {
	case errors.Is(err, conversation.ErrEmptyInput):
	case conv.State() == conversation.StateErrored:
		fmt.Fprintln(r.out, WarningStyle.Render("The last request failed. Use /retry or /new first."))
	default:
		fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[X]"), err)
	}
}

// command runs a slash command. It reports whether the REPL should end.
func (r *repl) command(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Fprintln(r.out, replHelp)

	case "/new":
		hadFile, err := r.engine().NewChat(ctx)
		if err != nil {
			logger.WarnCF("repl", "Failed to clear stored session", map[string]interface{}{
				"error": err.Error(),
			})
		}
		if hadFile {
			if err := r.engine().Cleanup(ctx); err != nil {
				logger.WarnCF("repl", "Failed to remove uploaded data", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
		fmt.Fprintln(r.out, DimStyle.Render("Started a new chat."))
		printHistory(r.out, r.engine().Conversation().History())

	case "/retry":
		if err := r.engine().Retry(); err != nil {
			fmt.Fprintln(r.out, DimStyle.Render("Nothing to retry."))
			return false, nil
		}
		if r.engine().Conversation().NeedsResponse() {
			return false, r.respond(ctx)
		}

	case "/upload":
		if arg == "" {
			fmt.Fprintln(r.out, "Usage: /upload <path to .csv>")
			return false, nil
		}
		t, err := r.engine().SubmitFile(arg)
		if err != nil {
			r.refused(err)
			return false, nil
		}
		printTurn(r.out, t)
		return false, r.respond(ctx)

	case "/chats":
		chats, err := r.engine().ListChats(ctx)
		if err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				return false, fmt.Errorf("%w; run: wattchat login", err)
			}
			fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[X]"), err)
			return false, nil
		}
		if len(chats) == 0 {
			fmt.Fprintln(r.out, DimStyle.Render("No stored chats"))
		}
		for _, c := range chats {
			fmt.Fprintf(r.out, "%s %s\n", TitleStyle.Render("#"+c.ID), c.Content)
		}

	case "/open":
		if arg == "" {
			fmt.Fprintln(r.out, "Usage: /open <chat id>")
			return false, nil
		}
		h, err := r.engine().FetchChat(ctx, arg)
		if err != nil {
			fmt.Fprintf(r.out, "%s could not load chat #%s: %v\n", ErrorStyle.Render("[X]"), arg, err)
			return false, nil
		}
		if err := r.engine().ApplyChat(ctx, h, arg); err != nil {
			logger.WarnCF("repl", "Failed to persist loaded chat", map[string]interface{}{
				"chat_id": arg,
				"error":   err.Error(),
			})
		}
		fmt.Fprintln(r.out, TitleStyle.Render("Chat #"+arg))
		printHistory(r.out, r.engine().Conversation().History())
		if r.engine().Conversation().NeedsResponse() {
			return false, r.respond(ctx)
		}

	case "/history":
		printHistory(r.out, r.engine().Conversation().History())

	default:
		fmt.Fprintf(r.out, "Unknown command %s. /help lists them.\n", name)
	}
	return false, nil
}
