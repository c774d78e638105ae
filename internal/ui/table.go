package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// NewTable creates a non-focused Bubbles table with default styling.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{
			Title: c.Title,
			Width: c.Width,
		}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+2), // header and its border
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.
		Foreground(ColorPrimary)
	// Nothing is selectable; keep the first row from rendering highlighted.
	s.Selected = s.Cell

	t.SetStyles(s)
	return t
}

// RenderSimpleTable renders a non-interactive table string.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}
	return NewTable(columns, tableRows).View()
}

// Node states shown in the status table.
const (
	StateOnline   = "online"
	StateOffline  = "offline"
	StateDisabled = "disabled"
	StatePending  = "pending"
)

// NodeTableRow is one node's line in the status table.
type NodeTableRow struct {
	Node   string
	State  string
	Label  string // snapshot timestamp, or the placeholder label
	CPU    string
	RAM    string
	GPUs   string // "<busy>/<total>"
	Detail string // offline reason or disabled notice
}

var nodeTableColumns = []TableColumn{
	{Title: "", Width: 2},
	{Title: "NODE", Width: 16},
	{Title: "UPDATED", Width: 20},
	{Title: "CPU", Width: 6},
	{Title: "RAM", Width: 6},
	{Title: "GPUS", Width: 6},
	{Title: "DETAIL", Width: 36},
}

// RenderNodeTable renders the one-shot node summary printed by the status command.
func RenderNodeTable(rows []NodeTableRow) string {
	if len(rows) == 0 {
		return "No nodes configured"
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row{
			stateSymbol(row.State),
			row.Node,
			row.Label,
			row.CPU,
			row.RAM,
			row.GPUs,
			truncate(row.Detail, nodeTableColumns[6].Width),
		}
	}
	return NewTable(nodeTableColumns, tableRows).View()
}

// stateSymbol returns the plain symbol for a node state. Table cells are
// truncated by display width, so the symbol is left unstyled.
func stateSymbol(state string) string {
	switch state {
	case StateOnline:
		return SymbolSuccess
	case StateOffline:
		return SymbolFail
	case StateDisabled:
		return SymbolSkipped
	default:
		return SymbolPending
	}
}

// StateStyle colors a state name for line-oriented output.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case StateOnline:
		return SuccessStyle()
	case StateOffline:
		return ErrorStyle()
	case StateDisabled:
		return MutedStyle()
	default:
		return WarningStyle()
	}
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= width || width <= 3 {
		return s
	}
	return string(r[:width-3]) + "..."
}
