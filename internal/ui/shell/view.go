// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shell

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/compras-tui/internal/ui/components"
	"github.com/jeranaias/compras-tui/internal/ui/styles"
)

// View renders the current screen. The inactivity warning replaces the
// whole frame while it is open.
func (m Model) View() string {
	if m.overlay.IsVisible() {
		return m.overlay.View()
	}

	switch m.screen {
	case screenLoading:
		return m.center(m.spinner.View() + " " + m.theme.MutedStyle.Render("Restoring session..."))
	case screenLogin:
		return m.center(m.form.View())
	case screenTenant:
		return m.center(m.picker.View())
	default:
		return m.viewHome()
	}
}

func (m Model) center(content string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) viewHome() string {
	header := components.RenderHeader(m.theme, m.snap, m.width)

	body := m.list.View()
	if m.showHelp {
		body = lipgloss.JoinVertical(lipgloss.Left, body, "", m.help.FullHelpView(m.keys.FullHelp()))
	}

	status := m.status
	if status == "" {
		status = styles.StatusIndicators.Info + " Ready"
	}
	bar := components.RenderStatusBar(m.theme, status, m.keys.ShortHelp(), m.width)

	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(bar)
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Padding(0, 1).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, bar)
}
