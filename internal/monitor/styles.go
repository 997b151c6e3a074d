package monitor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/rileyhilliard/gpuwatch/internal/store"
)

// Palette is the set of colors a theme renders with.
type Palette struct {
	Background lipgloss.Color
	Surface    lipgloss.Color
	Border     lipgloss.Color

	Healthy  lipgloss.Color
	Warning  lipgloss.Color
	Critical lipgloss.Color

	TextPrimary   lipgloss.Color
	TextSecondary lipgloss.Color
	TextMuted     lipgloss.Color

	Accent    lipgloss.Color
	AccentDim lipgloss.Color
	Graph     lipgloss.Color
}

// DarkPalette - neon on near-black.
var DarkPalette = Palette{
	Background:    lipgloss.Color("#0A0A0F"),
	Surface:       lipgloss.Color("#12121A"),
	Border:        lipgloss.Color("#2A2A4A"),
	Healthy:       lipgloss.Color("#39FF14"),
	Warning:       lipgloss.Color("#FFAA00"),
	Critical:      lipgloss.Color("#FF0055"),
	TextPrimary:   lipgloss.Color("#FFFFFF"),
	TextSecondary: lipgloss.Color("#B4B4D0"),
	TextMuted:     lipgloss.Color("#6B6B8D"),
	Accent:        lipgloss.Color("#FF2E97"),
	AccentDim:     lipgloss.Color("#BF40FF"),
	Graph:         lipgloss.Color("#00FFFF"),
}

// LightPalette keeps the same hues but darkens them for a white terminal.
var LightPalette = Palette{
	Background:    lipgloss.Color("#FAFAFC"),
	Surface:       lipgloss.Color("#F0F0F5"),
	Border:        lipgloss.Color("#C8C8DC"),
	Healthy:       lipgloss.Color("#1E8C0A"),
	Warning:       lipgloss.Color("#C77800"),
	Critical:      lipgloss.Color("#D0003F"),
	TextPrimary:   lipgloss.Color("#12121A"),
	TextSecondary: lipgloss.Color("#4A4A66"),
	TextMuted:     lipgloss.Color("#8A8AA6"),
	Accent:        lipgloss.Color("#D4006E"),
	AccentDim:     lipgloss.Color("#8A1FC2"),
	Graph:         lipgloss.Color("#007C91"),
}

// detectDarkBackground is swapped out in tests so rendering never queries the terminal.
var detectDarkBackground = termenv.HasDarkBackground

// PaletteFor resolves a theme preference. ThemeSystem follows the terminal.
func PaletteFor(theme store.Theme, darkBackground bool) Palette {
	switch theme {
	case store.ThemeLight:
		return LightPalette
	case store.ThemeDark:
		return DarkPalette
	}
	if darkBackground {
		return DarkPalette
	}
	return LightPalette
}

// Styles holds every lipgloss style derived from a Palette.
type Styles struct {
	Palette Palette

	Header lipgloss.Style
	Footer lipgloss.Style
	Status lipgloss.Style
	Error  lipgloss.Style

	Card         lipgloss.Style
	CardSelected lipgloss.Style
	CardDivider  lipgloss.Style

	Name  lipgloss.Style
	Label lipgloss.Style
	Value lipgloss.Style
	Badge lipgloss.Style

	Connected    lipgloss.Style
	Connecting   lipgloss.Style
	Disconnected lipgloss.Style
}

// NewStyles builds the style set for a palette.
func NewStyles(p Palette) Styles {
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Border).
		Padding(0, 1).
		MarginRight(1).
		MarginBottom(1)

	return Styles{
		Palette: p,
		Header: lipgloss.NewStyle().
			Foreground(p.TextPrimary).
			Background(p.Surface).
			Bold(true).
			Padding(0, 1),
		Footer: lipgloss.NewStyle().
			Foreground(p.TextMuted).
			Padding(0, 1),
		Status: lipgloss.NewStyle().
			Foreground(p.TextSecondary).
			Padding(0, 1),
		Error: lipgloss.NewStyle().
			Foreground(p.Critical).
			Padding(0, 1),
		Card:         card,
		CardSelected: card.BorderForeground(p.Accent),
		CardDivider:  lipgloss.NewStyle().Foreground(p.Border).Background(p.Surface),
		Name:         lipgloss.NewStyle().Foreground(p.TextPrimary).Bold(true),
		Label:        lipgloss.NewStyle().Foreground(p.TextSecondary),
		Value:        lipgloss.NewStyle().Foreground(p.TextPrimary),
		Badge:        lipgloss.NewStyle().Foreground(p.Background).Background(p.Accent).Bold(true).Padding(0, 1),
		Connected:    lipgloss.NewStyle().Foreground(p.Healthy),
		Connecting:   lipgloss.NewStyle().Foreground(p.Warning),
		Disconnected: lipgloss.NewStyle().Foreground(p.Critical),
	}
}

// State indicator glyphs.
const (
	GlyphConnected    = "◉"
	GlyphDisconnected = "◌"
)

// ConnectingSpinnerFrames animate the connecting indicator.
var ConnectingSpinnerFrames = []string{"◐", "◓", "◑", "◒"}

// ThinProgressBar renders a thin bar (━ filled, ─ empty) colored by level.
func ThinProgressBar(width int, percent float64, color lipgloss.Color) string {
	if width < 1 {
		width = 1
	}
	percent = clampPercent(percent)

	filled := min(int(percent/100.0*float64(width)), width)
	bar := strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
	return lipgloss.NewStyle().Foreground(color).Render(bar)
}

// SectionHeader renders a section header with the title on the left and value on the right.
// Format: ╭─ Title ────────────────────────────────────── Value ╮
func (s Styles) SectionHeader(title, value string, width int) string {
	width = max(width, 10)

	// "╭─ " + title + " " on the left, " " + value + " ╮" on the right
	leftWidth := 3 + lipgloss.Width(title) + 1
	rightWidth := 1 + lipgloss.Width(value) + 2
	fillWidth := max(width-leftWidth-rightWidth, 1)

	borderStyle := lipgloss.NewStyle().Foreground(s.Palette.Border)
	titleStyle := lipgloss.NewStyle().Foreground(s.Palette.Accent).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(s.Palette.Graph).Bold(true)

	return borderStyle.Render("╭─ ") +
		titleStyle.Render(title) +
		borderStyle.Render(" "+strings.Repeat("─", fillWidth)+" ") +
		valueStyle.Render(value) +
		borderStyle.Render(" ╮")
}

// SectionFooter renders the bottom border of a section.
func (s Styles) SectionFooter(width int) string {
	width = max(width, 2)
	return lipgloss.NewStyle().Foreground(s.Palette.Border).Render("╰" + strings.Repeat("─", width-2) + "╯")
}

// SectionContentLine renders │ content │ padded to width.
func (s Styles) SectionContentLine(content string, width int) string {
	width = max(width, 4)
	border := lipgloss.NewStyle().Foreground(s.Palette.Border).Render("│")
	padding := max(width-4-lipgloss.Width(content), 0)
	return border + " " + content + strings.Repeat(" ", padding) + " " + border
}

func clampPercent(p float64) float64 {
	return min(max(p, 0), 100)
}
