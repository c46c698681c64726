// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/compras-tui/internal/ui/styles"
)

// =============================================================================
// LOGIN FORM
// =============================================================================

const (
	fieldUser = iota
	fieldPassword
	fieldCount
)

// LoginSubmitMsg carries the credentials when the form is submitted.
type LoginSubmitMsg struct {
	Username string
	Password string
}

// LoginForm collects a username and password.
type LoginForm struct {
	theme  *styles.Theme
	inputs [fieldCount]textinput.Model
	focus  int

	err    string
	notice string
	busy   bool
}

// NewLoginForm creates a form with the username focused.
func NewLoginForm(theme *styles.Theme) LoginForm {
	user := textinput.New()
	user.Placeholder = "username"
	user.CharLimit = 150
	user.Width = 30
	user.Prompt = ""

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.CharLimit = 128
	pass.Width = 30
	pass.Prompt = ""
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'

	f := LoginForm{theme: theme, inputs: [fieldCount]textinput.Model{user, pass}}
	f.inputs[fieldUser].Focus()
	return f
}

// Focus focuses the first empty field and returns the blink command.
func (f *LoginForm) Focus() tea.Cmd {
	target := fieldUser
	if f.inputs[fieldUser].Value() != "" {
		target = fieldPassword
	}
	return f.setFocus(target)
}

func (f *LoginForm) setFocus(i int) tea.Cmd {
	f.focus = i
	for j := range f.inputs {
		f.inputs[j].Blur()
	}
	return f.inputs[i].Focus()
}

// SetError shows a failure under the form and clears the password.
func (f *LoginForm) SetError(msg string) {
	f.err = msg
	f.busy = false
	f.inputs[fieldPassword].Reset()
}

// SetNotice shows an informational line above the fields.
func (f *LoginForm) SetNotice(msg string) {
	f.notice = msg
}

// SetBusy disables input while a login is in flight.
func (f *LoginForm) SetBusy(busy bool) {
	f.busy = busy
	if busy {
		f.err = ""
	}
}

// Busy reports whether a login is in flight.
func (f LoginForm) Busy() bool {
	return f.busy
}

// Reset clears both fields and any error.
func (f *LoginForm) Reset() {
	for i := range f.inputs {
		f.inputs[i].Reset()
	}
	f.err = ""
	f.busy = false
}

// Username returns the typed username.
func (f LoginForm) Username() string {
	return strings.TrimSpace(f.inputs[fieldUser].Value())
}

// Update handles navigation and submission.
func (f LoginForm) Update(msg tea.Msg) (LoginForm, tea.Cmd) {
	if f.busy {
		return f, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			return f, f.setFocus((f.focus + 1) % fieldCount)
		case "shift+tab", "up":
			return f, f.setFocus((f.focus + fieldCount - 1) % fieldCount)
		case "enter":
			if f.focus == fieldUser {
				return f, f.setFocus(fieldPassword)
			}
			username := f.Username()
			password := f.inputs[fieldPassword].Value()
			if username == "" || password == "" {
				f.err = "Username and password are required"
				return f, nil
			}
			f.busy = true
			f.err = ""
			return f, func() tea.Msg {
				return LoginSubmitMsg{Username: username, Password: password}
			}
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

// View renders the form box.
func (f LoginForm) View() string {
	t := f.theme
	var parts []string

	parts = append(parts, t.FormTitle.Render("Compras"))
	if f.notice != "" {
		parts = append(parts, t.FormNotice.Render(f.notice), "")
	}

	labels := [fieldCount]string{"Username", "Password"}
	for i := range f.inputs {
		box := t.BlurredInput
		if i == f.focus {
			box = t.FocusedInput
		}
		parts = append(parts, t.FormLabel.Render(labels[i]), box.Render(f.inputs[i].View()))
	}

	switch {
	case f.busy:
		parts = append(parts, "", t.FormHint.Render(styles.StatusIndicators.Loading+" Signing in..."))
	case f.err != "":
		parts = append(parts, "", t.FormError.Render(styles.StatusIndicators.Error+" "+f.err))
	default:
		parts = append(parts, "", t.FormHint.Render("Tab switches fields, Enter signs in"))
	}

	return t.FormBox.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
