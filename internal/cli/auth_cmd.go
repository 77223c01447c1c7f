// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/wattchat/internal/api"
)

// =============================================================================
// LOGIN
// =============================================================================

func loginCmd(opts *globalOptions) *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			if username == "" {
				fmt.Fprint(out, "Username: ")
				line, err := readLine(in)
				if err != nil {
					return fmt.Errorf("failed to read username: %w", err)
				}
				username = line
			}

			password, err := promptPassword(cmd, in, passwordStdin)
			if err != nil {
				return err
			}

			svc, err := openServices(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.gate.Login(ctx, username, password); err != nil {
				if errors.Is(err, api.ErrUnauthorized) {
					return errors.New("invalid username or password")
				}
				return err
			}
			fmt.Fprintf(out, "%s Logged in as %s\n", RenderStatus("ok"), strings.TrimSpace(username))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "username (prompted when empty)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

// promptPassword reads the password without echo from a terminal, or as
// a plain line when stdin is not one (or --password-stdin is set).
func promptPassword(cmd *cobra.Command, in *bufio.Reader, fromStdin bool) (string, error) {
	src := cmd.InOrStdin()
	if !fromStdin && isTerminalReader(src) {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		pw, err := readPassword(src.(*os.File))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return pw, nil
	}
	if !fromStdin {
		return "", &TTYRequiredError{Operation: "read a password (use --password-stdin)"}
	}
	pw, err := readLine(in)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return pw, nil
}

// readLine returns one line without its line ending. A last line without
// a newline is accepted.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// =============================================================================
// LOGOUT
// =============================================================================

func logoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear the stored chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := openServices(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			if !svc.gate.LoggedIn(ctx) {
				fmt.Fprintln(cmd.OutOrStdout(), DimStyle.Render("Not logged in"))
				return nil
			}
			if err := svc.gate.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Logged out\n", RenderStatus("ok"))
			return nil
		},
	}
}
