// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the widgets of the wattchat TUI.

# Display

MessageRenderer (message.go) - Turn bubbles. Answers are rendered as
markdown with glamour once their reveal finishes.
Header (header.go) - Brand line with user, chat id and state.
TimeoutNotice (timeout.go) - Session timeout warning and expiry notice.

# Interactive

Each of these follows the Bubble Tea Update/View shape and reports its
outcome as a message:

	LoginForm   (login.go)    -> LoginSubmitMsg
	UploadModal (upload.go)   -> UploadChosenMsg, UploadCancelledMsg
	ChatList    (chatlist.go) -> ChatSelectedMsg, ChatListClosedMsg

All components take a *styles.Theme.
*/
package components
