// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/compras-tui/internal/ui/styles"
	"github.com/jeranaias/compras-tui/internal/util"
)

// Processo is one row of GET /processos/.
type Processo struct {
	ID     int    `json:"id"`
	Nome   string `json:"nome"`
	Status string `json:"status"`
	CRDII  string `json:"crdii"`
	Tipo   string `json:"tipo"`
}

// ProcessoPage is the list endpoint's envelope.
type ProcessoPage struct {
	Count   int        `json:"count"`
	Results []Processo `json:"results"`
}

// Column widths in cells; the name takes what is left.
const (
	colID     = 6
	colStatus = 15
	colCRDII  = 18
	colGaps   = 3
	minName   = 10
)

// =============================================================================
// PROCESSO LIST
// =============================================================================

// ProcessoList is a scrollable table of the tenant's processos.
type ProcessoList struct {
	theme  *styles.Theme
	rows   []Processo
	cursor int
	offset int

	loading  bool
	err      string
	loadedAt time.Time

	width  int
	height int
}

// NewProcessoList creates an empty list.
func NewProcessoList(theme *styles.Theme) ProcessoList {
	return ProcessoList{theme: theme, width: 80, height: 10}
}

// SetSize sets the area available to the table, header row included.
func (l *ProcessoList) SetSize(width, height int) {
	l.width = width
	l.height = height
	l.clampOffset()
}

// SetLoading marks a reload in flight.
func (l *ProcessoList) SetLoading(loading bool) {
	l.loading = loading
}

// SetRows replaces the rows, keeping the cursor on the same id when it is
// still present.
func (l *ProcessoList) SetRows(rows []Processo, at time.Time) {
	var keep int
	if sel, ok := l.Selected(); ok {
		keep = sel.ID
	}
	l.rows = rows
	l.err = ""
	l.loading = false
	l.loadedAt = at

	l.cursor = 0
	for i, r := range rows {
		if r.ID == keep {
			l.cursor = i
			break
		}
	}
	l.clampOffset()
}

// SetError shows a load failure and keeps the previous rows.
func (l *ProcessoList) SetError(msg string) {
	l.err = msg
	l.loading = false
}

// Clear drops every row, e.g. on logout.
func (l *ProcessoList) Clear() {
	l.rows = nil
	l.cursor = 0
	l.offset = 0
	l.err = ""
	l.loading = false
	l.loadedAt = time.Time{}
}

// Len returns the number of rows.
func (l ProcessoList) Len() int {
	return len(l.rows)
}

// LoadedAt returns when the rows were last replaced.
func (l ProcessoList) LoadedAt() time.Time {
	return l.loadedAt
}

// Selected returns the row under the cursor.
func (l ProcessoList) Selected() (Processo, bool) {
	if l.cursor < 0 || l.cursor >= len(l.rows) {
		return Processo{}, false
	}
	return l.rows[l.cursor], true
}

func (l *ProcessoList) visibleRows() int {
	if n := l.height - 1; n > 0 {
		return n
	}
	return 1
}

func (l *ProcessoList) clampOffset() {
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if vis := l.visibleRows(); l.cursor >= l.offset+vis {
		l.offset = l.cursor - vis + 1
	}
	if l.offset < 0 {
		l.offset = 0
	}
}

// Update moves the cursor.
func (l ProcessoList) Update(msg tea.Msg) (ProcessoList, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || len(l.rows) == 0 {
		return l, nil
	}
	switch key.String() {
	case "up", "k":
		if l.cursor > 0 {
			l.cursor--
		}
	case "down", "j":
		if l.cursor < len(l.rows)-1 {
			l.cursor++
		}
	case "pgup":
		l.cursor -= l.visibleRows()
		if l.cursor < 0 {
			l.cursor = 0
		}
	case "pgdown":
		l.cursor += l.visibleRows()
		if l.cursor > len(l.rows)-1 {
			l.cursor = len(l.rows) - 1
		}
	case "home", "g":
		l.cursor = 0
	case "end", "G":
		l.cursor = len(l.rows) - 1
	}
	l.clampOffset()
	return l, nil
}

// View renders the header and the visible rows.
func (l ProcessoList) View() string {
	t := l.theme

	switch {
	case l.err != "" && len(l.rows) == 0:
		return t.ErrorStyle.Render(styles.StatusIndicators.Error + " " + l.err)
	case l.loading && len(l.rows) == 0:
		return t.Empty.Render(styles.StatusIndicators.Loading + " Loading processos...")
	case len(l.rows) == 0:
		return t.Empty.Render("No processos for this company")
	}

	nameWidth := l.width - colID - colStatus - colCRDII - colGaps - 2
	if nameWidth < minName {
		nameWidth = minName
	}

	lines := []string{t.ListHeader.Render(l.row("ID", "Name", "Status", "CRDII", nameWidth))}
	end := l.offset + l.visibleRows()
	if end > len(l.rows) {
		end = len(l.rows)
	}
	for i := l.offset; i < end; i++ {
		p := l.rows[i]
		text := l.row(fmt.Sprint(p.ID), p.Nome, statusLabel(p.Status), p.CRDII, nameWidth)
		if i == l.cursor {
			lines = append(lines, t.ListItemSelected.Render("> "+text))
			continue
		}
		lines = append(lines, t.ListItem.Foreground(styles.StatusColor(p.Status)).Render(text))
	}
	if l.err != "" {
		lines = append(lines, t.ErrorStyle.Render(styles.StatusIndicators.Error+" "+l.err))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (l ProcessoList) row(id, name, status, crdii string, nameWidth int) string {
	cells := []string{
		util.PadRight(util.TruncateWidth(id, colID), colID),
		util.PadRight(util.TruncateWidth(name, nameWidth), nameWidth),
		util.PadRight(util.TruncateWidth(status, colStatus), colStatus),
		util.TruncateWidth(crdii, colCRDII),
	}
	return strings.Join(cells, " ")
}

// statusLabel maps backend status slugs to display text.
func statusLabel(status string) string {
	switch status {
	case "nao_concluido":
		return "não concluído"
	case "parcial":
		return "parcial"
	case "concluido":
		return "concluído"
	case "arquivado":
		return "arquivado"
	case "cancelado":
		return "cancelado"
	default:
		return status
	}
}
