// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat screen of the wattchat TUI.

The Model drives a conversation.Engine from the Bubble Tea event loop.
Submitting a turn appends it together with the loading placeholder; the
remote call runs as a tea.Cmd and its result comes back as a message that
Engine.Complete applies. A result for a chat that has since been replaced
(new chat, loaded chat, expiry) is dropped.

# Files

  - model.go: Model, Options and layout
  - update.go: message handling and the turn lifecycle
  - view.go: rendering
  - reveal.go: Revealer, which types out the newest answer one rune per tick
  - keys.go: key bindings
  - messages.go: result messages and the commands that produce them

# Keys

	enter   send            ctrl+u  upload a .csv file
	ctrl+r  retry           ctrl+o  open a stored chat
	ctrl+n  new chat        ctrl+l  log out

The screen reports UnauthorizedMsg and LogoutRequestMsg to its parent,
which owns the login screen.
*/
package chat
