// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/wattchat/internal/ui/styles"
)

// =============================================================================
// LOGIN FORM
// =============================================================================

// LoginSubmitMsg carries the credentials entered in the form.
type LoginSubmitMsg struct {
	Username string
	Password string
}

// ErrMissingFields is shown when either field is left blank.
const ErrMissingFields = "Please enter both username and password"

const (
	fieldUser = iota
	fieldPass
)

// LoginForm is the username/password screen.
type LoginForm struct {
	user  textinput.Model
	pass  textinput.Model
	focus int

	message string
	isError bool
	busy    bool

	width  int
	height int
	theme  *styles.Theme
}

// NewLoginForm creates the form with the username field focused.
func NewLoginForm(theme *styles.Theme) LoginForm {
	user := textinput.New()
	user.Prompt = "Username: "
	user.Placeholder = "username"
	user.CharLimit = 128
	user.Focus()

	pass := textinput.New()
	pass.Prompt = "Password: "
	pass.Placeholder = "password"
	pass.CharLimit = 256
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '*'

	return LoginForm{user: user, pass: pass, theme: theme, width: 80, height: 24}
}

// SetSize sets the screen size the form is centered in.
func (f *LoginForm) SetSize(width, height int) {
	f.width, f.height = width, height
}

// SetError shows msg under the fields and ends the busy state.
func (f *LoginForm) SetError(msg string) {
	f.message = msg
	f.isError = true
	f.busy = false
}

// SetNotice shows an informational msg under the fields.
func (f *LoginForm) SetNotice(msg string) {
	f.message = msg
	f.isError = false
}

// Reset clears the password and focuses the first empty field.
func (f *LoginForm) Reset() tea.Cmd {
	f.busy = false
	f.pass.Reset()
	if strings.TrimSpace(f.user.Value()) == "" {
		return f.setFocus(fieldUser)
	}
	return f.setFocus(fieldPass)
}

// Busy reports whether a login is in flight.
func (f LoginForm) Busy() bool {
	return f.busy
}

// Username returns the entered username.
func (f LoginForm) Username() string {
	return strings.TrimSpace(f.user.Value())
}

func (f *LoginForm) setFocus(field int) tea.Cmd {
	f.focus = field
	if field == fieldUser {
		f.pass.Blur()
		return f.user.Focus()
	}
	f.user.Blur()
	return f.pass.Focus()
}

// Init starts the cursor blink.
func (f LoginForm) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles focus changes and submission.
func (f LoginForm) Update(msg tea.Msg) (LoginForm, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		if f.busy {
			return f, nil
		}
		switch key.String() {
		case "tab", "shift+tab", "up", "down":
			return f, f.setFocus(1 - f.focus)
		case "enter":
			return f.submit()
		}
	}

	var cmd tea.Cmd
	if f.focus == fieldUser {
		f.user, cmd = f.user.Update(msg)
	} else {
		f.pass, cmd = f.pass.Update(msg)
	}
	return f, cmd
}

func (f LoginForm) submit() (LoginForm, tea.Cmd) {
	user := strings.TrimSpace(f.user.Value())
	pass := f.pass.Value()

	// Enter on a filled username moves on to the password.
	if f.focus == fieldUser && user != "" && pass == "" {
		return f, f.setFocus(fieldPass)
	}
	if user == "" || strings.TrimSpace(pass) == "" {
		f.SetError(ErrMissingFields)
		return f, nil
	}

	f.busy = true
	f.SetNotice("Signing in...")
	return f, func() tea.Msg {
		return LoginSubmitMsg{Username: user, Password: pass}
	}
}

// View renders the form centered on the screen.
func (f LoginForm) View() string {
	parts := []string{
		f.theme.ModalTitle.Render("Sign in to wattchat"),
		f.user.View(),
		f.pass.View(),
	}
	if f.message != "" {
		style := f.theme.Muted
		if f.isError {
			style = f.theme.ErrorText
		}
		parts = append(parts, "", style.Render(f.message))
	}
	parts = append(parts, "", f.theme.Muted.Render("tab switch field | enter sign in | ctrl+c quit"))

	box := f.theme.Modal.Width(clamp(f.width-4, 40, 60)).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
	return lipgloss.Place(f.width, f.height, lipgloss.Center, lipgloss.Center, box)
}
