// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/compras-tui/internal/session"
	"github.com/jeranaias/compras-tui/internal/ui/styles"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeInto[M interface {
	Update(tea.Msg) (M, tea.Cmd)
}](m M, text string) M {
	for _, r := range text {
		m, _ = m.Update(keyMsg(string(r)))
	}
	return m
}

// =============================================================================
// INACTIVITY OVERLAY
// =============================================================================

func TestInactivityOverlay_HiddenByDefault(t *testing.T) {
	o := NewInactivityOverlay()
	assert.False(t, o.IsVisible())
	assert.Empty(t, o.View())

	o, cmd := o.Update(keyMsg("enter"))
	assert.Nil(t, cmd)
	assert.False(t, o.IsVisible())
}

func TestInactivityOverlay_ShowsCountdown(t *testing.T) {
	o := NewInactivityOverlay()
	o.SetSize(80, 24)
	o.Sync(true, 42)

	assert.True(t, o.IsVisible())
	assert.Equal(t, 42, o.Countdown())
	assert.Contains(t, o.View(), "0:42")
	assert.Contains(t, o.View(), "Session about to expire")
}

func TestInactivityOverlay_SwallowsOrdinaryKeys(t *testing.T) {
	o := NewInactivityOverlay()
	o.Sync(true, 60)

	o, cmd := o.Update(keyMsg("x"))
	assert.Nil(t, cmd)
	assert.True(t, o.IsVisible())
}

func TestInactivityOverlay_ContinueKeys(t *testing.T) {
	for _, k := range []string{"enter", "esc", "c"} {
		t.Run(k, func(t *testing.T) {
			o := NewInactivityOverlay()
			o.Sync(true, 30)

			o, cmd := o.Update(keyMsg(k))
			require.NotNil(t, cmd)
			assert.IsType(t, ContinueMsg{}, cmd())
			assert.False(t, o.IsVisible())
		})
	}
}

func TestFormatCountdown(t *testing.T) {
	assert.Equal(t, "1:00", FormatCountdown(60))
	assert.Equal(t, "0:05", FormatCountdown(5))
	assert.Equal(t, "0:00", FormatCountdown(0))
	assert.Equal(t, "0:00", FormatCountdown(-3))
	assert.Equal(t, "2:30", FormatCountdown(150))
}

// =============================================================================
// LOGIN FORM
// =============================================================================

func TestLoginForm_Submit(t *testing.T) {
	f := NewLoginForm(styles.NewTheme(false))
	f = typeInto(f, "maria")
	f, _ = f.Update(keyMsg("enter")) // moves to password
	f = typeInto(f, "segredo")

	f, cmd := f.Update(keyMsg("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, LoginSubmitMsg{Username: "maria", Password: "segredo"}, cmd())
	assert.True(t, f.Busy())

	// input is ignored while busy
	f, cmd = f.Update(keyMsg("x"))
	assert.Nil(t, cmd)
	assert.Equal(t, "maria", f.Username())
}

func TestLoginForm_RequiresBothFields(t *testing.T) {
	f := NewLoginForm(styles.NewTheme(false))
	f, _ = f.Update(keyMsg("tab"))

	f, cmd := f.Update(keyMsg("enter"))
	assert.Nil(t, cmd)
	assert.False(t, f.Busy())
	assert.Contains(t, f.View(), "required")
}

func TestLoginForm_ErrorClearsPassword(t *testing.T) {
	f := NewLoginForm(styles.NewTheme(false))
	f = typeInto(f, "joao")
	f, _ = f.Update(keyMsg("tab"))
	f = typeInto(f, "errada")
	f, _ = f.Update(keyMsg("enter"))

	f.SetError("invalid username or password")
	assert.False(t, f.Busy())
	assert.Contains(t, f.View(), "invalid username or password")
	assert.NotContains(t, f.View(), "errada")

	f.Focus()
	f = typeInto(f, "segredo")
	_, cmd := f.Update(keyMsg("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, LoginSubmitMsg{Username: "joao", Password: "segredo"}, cmd())
}

func TestLoginForm_NoticeAndReset(t *testing.T) {
	f := NewLoginForm(styles.NewTheme(false))
	f.SetNotice("Signed out for inactivity")
	f = typeInto(f, "maria")
	assert.Contains(t, f.View(), "Signed out for inactivity")

	f.Reset()
	assert.Empty(t, f.Username())
}

// =============================================================================
// TENANT PICKER
// =============================================================================

var twoTenants = []session.Tenant{
	{SchemaName: "alfa", Nome: "Construtora Alfa"},
	{SchemaName: "beta", Nome: "Beta Engenharia"},
}

func TestTenantPicker_NavigateAndChoose(t *testing.T) {
	p := NewTenantPicker(styles.NewTheme(false), twoTenants)
	assert.Contains(t, p.View(), "Construtora Alfa")

	p, _ = p.Update(keyMsg("down"))
	sel, ok := p.Selected()
	require.True(t, ok)
	assert.Equal(t, "beta", sel.SchemaName)

	p, _ = p.Update(keyMsg("down")) // clamps
	p, cmd := p.Update(keyMsg("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, TenantChosenMsg{Tenant: twoTenants[1]}, cmd())

	// busy until the shell resolves the login
	_, cmd = p.Update(keyMsg("up"))
	assert.Nil(t, cmd)
}

func TestTenantPicker_DigitPicks(t *testing.T) {
	p := NewTenantPicker(styles.NewTheme(false), twoTenants)
	_, cmd := p.Update(keyMsg("1"))
	require.NotNil(t, cmd)
	assert.Equal(t, TenantChosenMsg{Tenant: twoTenants[0]}, cmd())

	p = NewTenantPicker(styles.NewTheme(false), twoTenants)
	_, cmd = p.Update(keyMsg("9"))
	assert.Nil(t, cmd)
}

func TestTenantPicker_Cancel(t *testing.T) {
	p := NewTenantPicker(styles.NewTheme(false), twoTenants)
	_, cmd := p.Update(keyMsg("esc"))
	require.NotNil(t, cmd)
	assert.IsType(t, TenantCancelMsg{}, cmd())
}

// =============================================================================
// PROCESSO LIST
// =============================================================================

func sampleRows() []Processo {
	return []Processo{
		{ID: 101, Nome: "Cimento CP-II lote 4", Status: "nao_concluido", CRDII: "Obra Centro"},
		{ID: 102, Nome: "Locação de andaimes", Status: "parcial", CRDII: "Obra Centro"},
		{ID: 103, Nome: "Vergalhões CA-50 com um nome bem comprido que não cabe", Status: "concluido", CRDII: "Galpão Norte"},
	}
}

func TestProcessoList_EmptyStates(t *testing.T) {
	l := NewProcessoList(styles.NewTheme(false))
	assert.Contains(t, l.View(), "No processos")

	l.SetLoading(true)
	assert.Contains(t, l.View(), "Loading")

	l.SetError("HTTP 500")
	assert.Contains(t, l.View(), "HTTP 500")
}

func TestProcessoList_RendersAndTruncates(t *testing.T) {
	l := NewProcessoList(styles.NewTheme(false))
	l.SetSize(70, 10)
	l.SetRows(sampleRows(), time.Now())

	view := l.View()
	assert.Contains(t, view, "Cimento CP-II")
	assert.Contains(t, view, "não concluído")
	assert.Contains(t, view, "...")
	assert.Equal(t, 3, l.Len())
	for _, line := range strings.Split(view, "\n") {
		assert.LessOrEqual(t, len([]rune(line)), 72, line)
	}
}

func TestProcessoList_CursorSurvivesReload(t *testing.T) {
	l := NewProcessoList(styles.NewTheme(false))
	l.SetRows(sampleRows(), time.Now())
	l, _ = l.Update(keyMsg("down"))
	sel, _ := l.Selected()
	require.Equal(t, 102, sel.ID)

	rows := sampleRows()
	rows = append([]Processo{{ID: 100, Nome: "Novo"}}, rows...)
	l.SetRows(rows, time.Now())
	sel, _ = l.Selected()
	assert.Equal(t, 102, sel.ID)

	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.True(t, l.LoadedAt().IsZero())
}

func TestProcessoList_Scrolls(t *testing.T) {
	l := NewProcessoList(styles.NewTheme(false))
	l.SetSize(80, 3) // header plus two rows
	l.SetRows(sampleRows(), time.Now())

	l, _ = l.Update(keyMsg("G"))
	view := l.View()
	assert.Contains(t, view, "103")
	assert.NotContains(t, view, "101")
}

// =============================================================================
// BARS
// =============================================================================

func TestRenderHeader(t *testing.T) {
	theme := styles.NewTheme(false)
	snap := session.Snapshot{
		User:   &session.User{Username: "maria", Role: session.RoleCompras},
		Tenant: &session.Tenant{SchemaName: "alfa", Nome: "Construtora Alfa"},
	}
	out := RenderHeader(theme, snap, 80)
	assert.Contains(t, out, "compras")
	assert.Contains(t, out, "maria (compras) @ Construtora Alfa")

	assert.NotContains(t, RenderHeader(theme, session.Snapshot{}, 80), "@")
}

func TestRenderStatusBar(t *testing.T) {
	theme := styles.NewTheme(false)
	quit := key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit"))
	hidden := key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "hidden"))
	hidden.SetEnabled(false)

	out := RenderStatusBar(theme, "3 processos", []key.Binding{quit, hidden}, 80)
	assert.Contains(t, out, "3 processos")
	assert.Contains(t, out, "quit")
	assert.NotContains(t, out, "hidden")
}
