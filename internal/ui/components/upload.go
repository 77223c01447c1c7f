// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/bubbles/filepicker"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/wattchat/internal/api"
	"github.com/jeranaias/wattchat/internal/model"
	"github.com/jeranaias/wattchat/internal/ui/styles"
)

// =============================================================================
// UPLOAD MODAL
// =============================================================================

// UploadChosenMsg is sent when the user confirms a file.
type UploadChosenMsg struct {
	Path string
}

// UploadCancelledMsg is sent when the modal is closed without a file.
type UploadCancelledMsg struct{}

// UploadModal lets the user pick a .csv file. A picked file is checked
// against the upload limits and shown with its size before it is sent.
type UploadModal struct {
	picker filepicker.Model

	chosen string
	file   model.FileRef
	err    string

	width int
	theme *styles.Theme
}

// NewUploadModal creates a modal browsing dir.
func NewUploadModal(theme *styles.Theme, dir string) UploadModal {
	fp := filepicker.New()
	fp.AllowedTypes = []string{api.UploadExt}
	fp.CurrentDirectory = dir
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.ShowHidden = false
	fp.Height = 10

	return UploadModal{picker: fp, theme: theme, width: 80}
}

// SetSize sets the modal width and the number of listed files.
func (u *UploadModal) SetSize(width, height int) {
	u.width = width
	u.picker.Height = clamp(height-12, 3, 20)
}

// Chosen returns the confirmed-pending file, "" when none.
func (u UploadModal) Chosen() string {
	return u.chosen
}

// Init reads the starting directory.
func (u UploadModal) Init() tea.Cmd {
	return u.picker.Init()
}

// Update drives the picker. Once a valid file is picked, enter confirms and
// esc goes back to the list; esc in the list closes the modal.
func (u UploadModal) Update(msg tea.Msg) (UploadModal, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		if u.chosen != "" {
			switch key.String() {
			case "enter", "y":
				path := u.chosen
				return u, func() tea.Msg { return UploadChosenMsg{Path: path} }
			case "esc", "n", "backspace":
				u.chosen = ""
				return u, nil
			}
			return u, nil
		}
		if key.String() == "esc" {
			return u, func() tea.Msg { return UploadCancelledMsg{} }
		}
	}

	var cmd tea.Cmd
	u.picker, cmd = u.picker.Update(msg)

	if ok, path := u.picker.DidSelectFile(msg); ok {
		u.pick(path)
	}
	if ok, path := u.picker.DidSelectDisabledFile(msg); ok {
		u.err = filepath.Base(path) + ": " + api.ErrUploadType.Error()
	}
	return u, cmd
}

// pick validates path and holds it for confirmation.
func (u *UploadModal) pick(path string) {
	u.err = ""
	info, err := os.Stat(path)
	if err != nil {
		u.err = err.Error()
		return
	}
	name := filepath.Base(path)
	if err := api.ValidateUpload(name, info.Size()); err != nil {
		u.err = name + ": " + err.Error()
		return
	}
	u.chosen = path
	u.file = model.FileRef{Name: name, Size: info.Size()}
}

// View renders the modal.
func (u UploadModal) View() string {
	parts := []string{u.theme.ModalTitle.Render("Upload energy usage data (.csv, max 1 MB)")}

	if u.chosen != "" {
		parts = append(parts,
			u.theme.FileBubble.Render(u.file.Label()),
			"",
			u.theme.Muted.Render("enter upload | esc choose another"))
	} else {
		parts = append(parts,
			u.theme.Muted.Render(u.picker.CurrentDirectory),
			u.picker.View(),
			u.theme.Muted.Render("arrows move | enter select | esc close"))
	}
	if u.err != "" {
		parts = append(parts, "", styles.RenderError(u.err))
	}

	return u.theme.Modal.Width(clamp(u.width-4, 40, 90)).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
