// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/compras-tui/internal/ui/styles"
)

// =============================================================================
// INACTIVITY OVERLAY
// =============================================================================

// InactivityOverlay is the warning shown while the inactivity countdown
// runs. Enter, Esc or c continue the session; every other key is swallowed
// so that typing cannot dismiss it by accident.
type InactivityOverlay struct {
	visible   bool
	countdown int

	width  int
	height int
}

// NewInactivityOverlay creates a hidden overlay.
func NewInactivityOverlay() InactivityOverlay {
	return InactivityOverlay{}
}

// ContinueMsg asks the shell to continue the session.
type ContinueMsg struct{}

// SetSize sets the overlay dimensions.
func (o *InactivityOverlay) SetSize(width, height int) {
	o.width = width
	o.height = height
}

// Sync shows or hides the overlay to match the session snapshot.
func (o *InactivityOverlay) Sync(open bool, countdown int) {
	o.visible = open
	o.countdown = countdown
}

// IsVisible returns whether the overlay is showing.
func (o InactivityOverlay) IsVisible() bool {
	return o.visible
}

// Countdown returns the seconds shown.
func (o InactivityOverlay) Countdown() int {
	return o.countdown
}

// Update handles keys while visible.
func (o InactivityOverlay) Update(msg tea.Msg) (InactivityOverlay, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		o.SetSize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if !o.visible {
			return o, nil
		}
		switch msg.String() {
		case "enter", "esc", "c", "C":
			// hidden optimistically; the next snapshot confirms it
			o.visible = false
			return o, func() tea.Msg { return ContinueMsg{} }
		}
	}
	return o, nil
}

// View renders the warning centered on a dimmed backdrop.
func (o InactivityOverlay) View() string {
	if !o.visible {
		return ""
	}

	width := o.width
	if width == 0 {
		width = 60
	}
	height := o.height
	if height == 0 {
		height = 24
	}

	maxWidth := width - 8
	if maxWidth < 40 {
		maxWidth = 40
	}
	if maxWidth > 60 {
		maxWidth = 60
	}

	titleStyle := lipgloss.NewStyle().
		Foreground(styles.Amber).
		Bold(true)
	timeStyle := lipgloss.NewStyle().
		Foreground(styles.Amber).
		Bold(true)
	msgStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(maxWidth - 8).
		Align(lipgloss.Center)
	hintStyle := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Italic(true)

	content := lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render(styles.StatusIndicators.Warning+" Session about to expire"),
		"",
		msgStyle.Render("You will be signed out for inactivity in "+
			timeStyle.Render(FormatCountdown(o.countdown))),
		"",
		hintStyle.Render("Press Enter to continue the session"),
	)

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(styles.Amber).
		Padding(1, 3).
		Width(maxWidth).
		Align(lipgloss.Center).
		Render(content)

	return lipgloss.Place(
		width, height,
		lipgloss.Center, lipgloss.Center,
		box,
		lipgloss.WithWhitespaceBackground(styles.SurfaceDim),
	)
}

// FormatCountdown formats seconds as M:SS.
func FormatCountdown(secs int) string {
	if secs < 0 {
		secs = 0
	}
	d := time.Duration(secs) * time.Second
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), secs%60)
}
