package ui

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// ConnectionRow is one line of the "conn list" table.
type ConnectionRow struct {
	ID        int
	Name      string
	URL       string
	Connected bool   // only meaningful after a reachability check
	Checked   bool   // false when the list was printed without probing
	Detail    string // latency, GPU count or error text
}

// RenderConnectionTable renders saved connections as a bordered table.
func RenderConnectionTable(rows []ConnectionRow) string {
	if len(rows) == 0 {
		return ""
	}

	headers := []string{"ID", "NAME", "URL"}
	checked := false
	for _, r := range rows {
		checked = checked || r.Checked
	}
	if checked {
		headers = append(headers, "STATUS", "DETAIL")
	}

	data := make([][]string, len(rows))
	for i, r := range rows {
		line := []string{strconv.Itoa(r.ID), r.Name, r.URL}
		if checked {
			line = append(line, statusCell(r), r.Detail)
		}
		data[i] = line
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	mutedCell := cellStyle.Foreground(ColorMuted)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorMuted)).
		Headers(headers...).
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0 || col == 4:
				return mutedCell
			default:
				return cellStyle
			}
		})
	return t.Render()
}

func statusCell(r ConnectionRow) string {
	switch {
	case !r.Checked:
		return SymbolPending
	case r.Connected:
		return SuccessStyle().Render(SymbolConnected + " up")
	default:
		return ErrorStyle().Render(SymbolDisconnected + " down")
	}
}
