package monitor

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

// newHelp styles the bubbles help component for a palette.
func newHelp(p Palette) help.Model {
	h := help.New()
	h.ShortSeparator = " | "
	h.Styles.ShortKey = lipgloss.NewStyle().Foreground(p.TextSecondary)
	h.Styles.ShortDesc = lipgloss.NewStyle().Foreground(p.TextMuted)
	h.Styles.ShortSeparator = lipgloss.NewStyle().Foreground(p.Border)
	h.Styles.FullKey = lipgloss.NewStyle().Foreground(p.TextPrimary).Bold(true)
	h.Styles.FullDesc = lipgloss.NewStyle().Foreground(p.TextSecondary)
	h.Styles.FullSeparator = lipgloss.NewStyle().Foreground(p.Border)
	return h
}

// renderHelpOverlay renders a centered box with every key binding.
func (m Model) renderHelpOverlay() string {
	p := m.styles.Palette

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Accent).
		Background(p.Surface).
		Padding(1, 2)
	title := lipgloss.NewStyle().Foreground(p.Accent).Bold(true).MarginBottom(1)

	h := m.help
	h.ShowAll = true
	lines := []string{
		title.Render("Keyboard Shortcuts"),
		h.View(m.keys),
		"",
		m.styles.Label.Render("Theme: " + string(m.theme) + "   Press ? to close"),
	}

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		box.Render(strings.Join(lines, "\n")),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(p.Background),
	)
}
