// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/compras-tui/internal/ui/styles"
)

func init() {
	lipgloss.SetColorProfile(outputProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

// Command output uses the TUI palette so both surfaces look alike.
var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(styles.Teal)
	LabelStyle   = lipgloss.NewStyle().Foreground(styles.TextMuted).Width(14)
	ValueStyle   = lipgloss.NewStyle().Foreground(styles.TextPrimary)
	SuccessStyle = lipgloss.NewStyle().Bold(true).Foreground(styles.Emerald)
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(styles.Rose)
	DimStyle     = lipgloss.NewStyle().Foreground(styles.TextMuted)
)

// separatorWidth is the widest rule drawn under a title.
const separatorWidth = 48

// RenderSeparator renders a rule as wide as the terminal allows.
func RenderSeparator() string {
	w := min(terminalWidth(), separatorWidth)
	return DimStyle.Render(strings.Repeat("─", w))
}

// RenderLabel renders a fixed-width field label.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}

// RenderYesNo renders a permission flag.
func RenderYesNo(v bool) string {
	if v {
		return SuccessStyle.Render("yes")
	}
	return DimStyle.Render("no")
}
