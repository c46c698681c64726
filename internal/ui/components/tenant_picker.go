// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/compras-tui/internal/session"
	"github.com/jeranaias/compras-tui/internal/ui/styles"
)

// =============================================================================
// TENANT PICKER
// =============================================================================

// TenantChosenMsg is sent when the user picks a company.
type TenantChosenMsg struct {
	Tenant session.Tenant
}

// TenantCancelMsg is sent when the user backs out of the picker.
type TenantCancelMsg struct{}

// TenantPicker lets a user who belongs to several companies choose one.
type TenantPicker struct {
	theme   *styles.Theme
	tenants []session.Tenant
	cursor  int
	busy    bool
}

// NewTenantPicker creates a picker over tenants.
func NewTenantPicker(theme *styles.Theme, tenants []session.Tenant) TenantPicker {
	return TenantPicker{theme: theme, tenants: tenants}
}

// SetBusy disables input while the selected login is in flight.
func (p *TenantPicker) SetBusy(busy bool) {
	p.busy = busy
}

// Selected returns the tenant under the cursor.
func (p TenantPicker) Selected() (session.Tenant, bool) {
	if p.cursor < 0 || p.cursor >= len(p.tenants) {
		return session.Tenant{}, false
	}
	return p.tenants[p.cursor], true
}

// Update moves the cursor and confirms. Digits 1-9 pick directly.
func (p TenantPicker) Update(msg tea.Msg) (TenantPicker, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || p.busy || len(p.tenants) == 0 {
		return p, nil
	}

	switch s := key.String(); s {
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.tenants)-1 {
			p.cursor++
		}
	case "esc":
		return p, func() tea.Msg { return TenantCancelMsg{} }
	case "enter":
		return p.choose()
	default:
		if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			if i := int(s[0] - '1'); i < len(p.tenants) {
				p.cursor = i
				return p.choose()
			}
		}
	}
	return p, nil
}

func (p TenantPicker) choose() (TenantPicker, tea.Cmd) {
	t, ok := p.Selected()
	if !ok {
		return p, nil
	}
	p.busy = true
	return p, func() tea.Msg { return TenantChosenMsg{Tenant: t} }
}

// View renders the list.
func (p TenantPicker) View() string {
	t := p.theme
	parts := []string{t.FormTitle.Render("Select a company")}

	for i, tenant := range p.tenants {
		line := fmt.Sprintf("%d) %s", i+1, tenant.Label())
		if i == p.cursor {
			parts = append(parts, t.ListItemSelected.Render("> "+line))
		} else {
			parts = append(parts, t.ListItem.Render(line))
		}
	}

	hint := "Up/Down choose, Enter confirms, Esc goes back"
	if p.busy {
		hint = styles.StatusIndicators.Loading + " Signing in..."
	}
	parts = append(parts, "", t.FormHint.Render(hint))
	return t.FormBox.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
