package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderDashboard renders the complete list view.
func (m Model) renderDashboard() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderCards())
	b.WriteString("\n")
	if line := m.renderStatusLine(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the dashboard header with summary stats.
func (m Model) renderHeader() string {
	var updateText string
	switch secs := m.SecondsSinceUpdate(); {
	case secs < 0:
		updateText = "no data yet"
	case secs == 0:
		updateText = "last update just now"
	default:
		updateText = fmt.Sprintf("last update %ds ago", secs)
	}

	title := lipgloss.NewStyle().
		Foreground(m.styles.Palette.Accent).
		Bold(true).
		Render("gpuwatch")

	mode := "multi"
	if m.mgr != nil {
		mode = string(m.mgr.Policy().Mode)
	}
	stats := lipgloss.NewStyle().
		Foreground(m.styles.Palette.TextSecondary).
		Render(fmt.Sprintf(" | %s | %d connections | %d connected | %s",
			mode, len(m.conns), m.ConnectedCount(), updateText))

	return m.styles.Header.Render(title + stats)
}

// renderCards renders the grid of connection cards.
func (m Model) renderCards() string {
	if len(m.conns) == 0 {
		return m.styles.Label.Render("No connections configured. Add one with: gpuwatch conn add")
	}

	cardWidth := m.calculateCardWidth()
	cards := make([]string, 0, len(m.conns))
	for i, info := range m.conns {
		cards = append(cards, m.renderCard(info, cardWidth, i == m.selected))
	}
	return m.layoutCards(cards, cardWidth)
}

// calculateCardWidth picks a card width for the current layout.
func (m Model) calculateCardWidth() int {
	const frame = 3 // border + margin
	switch m.Layout() {
	case LayoutWide:
		return max(m.width/3-frame, 40)
	case LayoutStandard:
		if m.width == 0 {
			return 44
		}
		return max(m.width/2-frame, 40)
	default:
		return max(m.width-4, 24)
	}
}

// layoutCards arranges cards in rows based on terminal width.
func (m Model) layoutCards(cards []string, cardWidth int) string {
	if len(cards) == 0 {
		return ""
	}

	cardsPerRow := 1
	if m.width > 0 {
		cardsPerRow = max(m.width/(cardWidth+3), 1)
	}

	var rows []string
	for i := 0; i < len(cards); i += cardsPerRow {
		end := min(i+cardsPerRow, len(cards))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[i:end]...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderStatusLine renders the last status or error, if any.
func (m Model) renderStatusLine() string {
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return m.styles.Error.Render("✗ " + m.status)
	}
	return m.styles.Status.Render(m.status)
}

// renderFooter renders the short key help.
func (m Model) renderFooter() string {
	return m.styles.Footer.Render(m.help.ShortHelpView(m.keys.ShortHelp()))
}
