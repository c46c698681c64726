// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/compras-tui/internal/session"
	"github.com/jeranaias/compras-tui/internal/ui/styles"
	"github.com/jeranaias/compras-tui/internal/util"
)

// =============================================================================
// HEADER
// =============================================================================

// RenderHeader renders the top bar: brand on the left, user and company on
// the right.
func RenderHeader(t *styles.Theme, snap session.Snapshot, width int) string {
	left := t.HeaderBrand.Render("compras")

	var right string
	if snap.User != nil {
		who := snap.User.DisplayName()
		if snap.User.Role != "" {
			who += " (" + string(snap.User.Role) + ")"
		}
		if snap.Tenant != nil {
			who += " @ " + snap.Tenant.Label()
		}
		right = t.HeaderInfo.Render(util.TruncateWidth(who, max(width-lipgloss.Width(left)-4, 0)))
	}
	return t.Header.Width(width).Render(spread(left, right, width-2))
}

// =============================================================================
// STATUS BAR
// =============================================================================

// RenderStatusBar renders the bottom bar: a status message on the left and
// the short help on the right.
func RenderStatusBar(t *styles.Theme, status string, bindings []key.Binding, width int) string {
	var help []string
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		help = append(help, t.ShortcutKey.Render(h.Key)+" "+t.ShortcutDsc.Render(h.Desc))
	}
	right := strings.Join(help, "  ")
	left := util.TruncateWidth(status, max(width-lipgloss.Width(right)-4, 0))
	return t.StatusBar.Width(width).Render(spread(left, right, width-2))
}

// spread places left and right at the edges of width cells.
func spread(left, right string, width int) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}
