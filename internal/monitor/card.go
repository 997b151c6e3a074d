package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
)

// Card layout constants
const (
	cardGraphHeight = 2  // braille graph rows
	cardMinBarWidth = 10 // minimum graph width
	cardLabelWidth  = 5  // "UTIL " / "MEM  " / "TEMP "
)

// WaitingForData is shown on a connected card before the first sample.
const WaitingForData = "Waiting for data..."

// renderCardLine renders a text line with the card surface filled behind it.
func (s Styles) renderCardLine(content string, width int) string {
	padding := ""
	if w := lipgloss.Width(content); width > w {
		padding = strings.Repeat(" ", width-w)
	}
	return lipgloss.NewStyle().Background(s.Palette.Surface).Render(content + padding)
}

// renderCardDivider creates a subtle thin divider line.
func (s Styles) renderCardDivider(width int) string {
	return s.CardDivider.Render(strings.Repeat("─", max(width, 0)))
}

// truncateWithEllipsis shortens s to maxLen runes, ending in "...".
func truncateWithEllipsis(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 3 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

// alignRight places right at the end of a width-wide line starting with left.
func alignRight(left, right string, width int) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// formatMemoryGB formats a device's total memory, e.g. "24.00 GB".
func formatMemoryGB(d telemetry.DeviceSnapshot) string {
	return fmt.Sprintf("%.2f GB", d.TotalMemoryGB())
}

// renderCard renders one connection with a section per device.
func (m Model) renderCard(info telemetry.ConnectionInfo, width int, selected bool) string {
	s := m.styles
	style := s.Card.Width(width)
	if selected {
		style = s.CardSelected.Width(width)
	}
	inner := max(width-2, cardMinBarWidth)

	lines := []string{
		s.renderCardLine(m.renderConnectionLine(info, inner), inner),
		s.renderCardLine(s.Label.Render(truncateWithEllipsis(info.URL, inner)), inner),
		s.renderCardDivider(inner),
	}

	devices := m.devices[info.ID]
	switch {
	case info.State == telemetry.StateConnecting:
		frame := ConnectingSpinnerFrames[m.spinnerFrame%len(ConnectingSpinnerFrames)]
		lines = append(lines, s.renderCardLine(s.Connecting.Render(frame+" Connecting..."), inner))

	case info.State == telemetry.StateDisconnected:
		lines = append(lines, s.renderCardLine(s.Disconnected.Render("Disconnected"), inner))
		if info.LastError != "" {
			for _, l := range wrapWords(info.LastError, inner-2) {
				lines = append(lines, s.renderCardLine(s.Label.Render("  "+l), inner))
			}
		}

	case len(devices) == 0:
		lines = append(lines, s.renderCardLine(s.Label.Render(WaitingForData), inner))

	default:
		for i, d := range devices {
			if i > 0 {
				lines = append(lines, s.renderCardDivider(inner))
			}
			lines = append(lines, m.renderDeviceSection(d, inner)...)
		}
	}

	return style.Render(strings.Join(lines, "\n"))
}

// renderConnectionLine renders the state glyph, name, and a LIVE badge.
func (m Model) renderConnectionLine(info telemetry.ConnectionInfo, width int) string {
	s := m.styles
	var glyph string
	switch info.State {
	case telemetry.StateConnected:
		glyph = s.Connected.Render(GlyphConnected)
	case telemetry.StateConnecting:
		glyph = s.Connecting.Render(ConnectingSpinnerFrames[m.spinnerFrame%len(ConnectingSpinnerFrames)])
	default:
		glyph = s.Disconnected.Render(GlyphDisconnected)
	}

	badge := ""
	if info.Streaming {
		badge = s.Badge.Render("LIVE")
	}
	name := truncateWithEllipsis(info.Name, width-lipgloss.Width(badge)-3)
	left := glyph + " " + s.Name.Render(name)
	if badge == "" {
		return left
	}
	return alignRight(left, badge, width)
}

// renderDeviceSection renders one GPU. Detail drops as the terminal narrows.
func (m Model) renderDeviceSection(d telemetry.DeviceSnapshot, width int) []string {
	s := m.styles
	p := s.Palette
	t := m.thresholds

	title := fmt.Sprintf("GPU%d %s", d.Index, d.Name)
	mem := s.Label.Render(formatMemoryGB(d))
	title = truncateWithEllipsis(title, width-lipgloss.Width(mem)-1)
	lines := []string{s.renderCardLine(alignRight(s.Value.Render(title), mem, width), width)}

	util, memPct, temp, ok := d.Latest()
	if !ok {
		return append(lines, s.renderCardLine(s.Label.Render(WaitingForData), width))
	}

	utilText := t.Utilization.Style(util, p).Render(fmt.Sprintf("%3.0f%%", util))
	memText := t.Memory.Style(memPct, p).Render(fmt.Sprintf("%3.0f%%", memPct))
	tempText := t.Temperature.Style(temp, p).Render(fmt.Sprintf("%3.0f°C", temp))

	switch m.Layout() {
	case LayoutMinimal:
		row := s.Label.Render("util ") + utilText + s.Label.Render("  mem ") + memText + s.Label.Render("  ") + tempText
		return append(lines, s.renderCardLine(row, width))

	case LayoutCompact:
		graphWidth := max(width-cardLabelWidth-lipgloss.Width(tempText)-1, cardMinBarWidth)
		rows := []struct {
			label string
			data  []float64
			scale Scale
			value string
		}{
			{"UTIL", d.Utilization, PercentScale(t.Utilization, p), utilText},
			{"MEM", d.Memory, PercentScale(t.Memory, p), memText},
			{"TEMP", d.Temperature, TemperatureScale(t.Temperature, p), tempText},
		}
		for _, r := range rows {
			label := s.Label.Render(fmt.Sprintf("%-*s", cardLabelWidth, r.label))
			spark := RenderMiniSparkline(r.data, graphWidth, r.scale)
			lines = append(lines, s.renderCardLine(alignRight(label+spark, r.value, width), width))
		}
		return lines
	}

	graphWidth := max(width, cardMinBarWidth)
	utilScale := PercentScale(t.Utilization, p)
	utilScale.Background = p.Surface
	memScale := PercentScale(t.Memory, p)
	memScale.Background = p.Surface

	lines = append(lines, s.renderCardLine(alignRight(s.Label.Render("UTIL"), utilText, width), width))
	for _, gl := range strings.Split(RenderBrailleSparkline(d.Utilization, graphWidth, cardGraphHeight, utilScale), "\n") {
		lines = append(lines, s.renderCardLine(gl, width))
	}
	lines = append(lines, s.renderCardLine(alignRight(s.Label.Render("MEM"), memText, width), width))
	for _, gl := range strings.Split(RenderBrailleSparkline(d.Memory, graphWidth, cardGraphHeight, memScale), "\n") {
		lines = append(lines, s.renderCardLine(gl, width))
	}

	tempSpark := RenderMiniSparkline(d.Temperature, max(width-cardLabelWidth-lipgloss.Width(tempText)-1, cardMinBarWidth), TemperatureScale(t.Temperature, p))
	lines = append(lines, s.renderCardLine(alignRight(s.Label.Render("TEMP ")+tempSpark, tempText, width), width))
	return lines
}

// wrapWords wraps text on spaces to at most width columns per line.
func wrapWords(text string, width int) []string {
	if width < 1 {
		return []string{text}
	}
	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		switch {
		case current == "":
			current = word
		case len(current)+1+len(word) <= width:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}
