package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
)

const detailGraphHeight = 3

// renderDetailFrame wraps the scrollable detail content with a header and footer.
func (m Model) renderDetailFrame() string {
	info, ok := m.SelectedConnection()
	if !ok {
		return m.styles.Label.Render("No connection selected")
	}

	var b strings.Builder
	b.WriteString(m.renderDetailHeader(info))
	b.WriteString("\n\n")
	if m.viewportReady {
		b.WriteString(m.detailViewport.View())
	} else {
		b.WriteString(m.renderDetailContent())
	}
	b.WriteString("\n")
	if line := m.renderStatusLine(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Footer.Render("esc back | l live | r refresh | pgup/pgdn scroll | q quit"))
	return b.String()
}

// renderDetailHeader renders the connection name and state prominently.
func (m Model) renderDetailHeader(info telemetry.ConnectionInfo) string {
	s := m.styles
	var state string
	switch info.State {
	case telemetry.StateConnected:
		state = s.Connected.Render(GlyphConnected + " Connected")
		if !info.ConnectedAt.IsZero() {
			state += s.Label.Render(" for " + m.now().Sub(info.ConnectedAt).Truncate(time.Second).String())
		}
	case telemetry.StateConnecting:
		state = s.Connecting.Render(ConnectingSpinnerFrames[m.spinnerFrame%len(ConnectingSpinnerFrames)] + " Connecting")
	default:
		state = s.Disconnected.Render(GlyphDisconnected + " Disconnected")
	}
	if info.Streaming {
		state += " " + s.Badge.Render("LIVE")
	}

	title := lipgloss.NewStyle().Foreground(s.Palette.Accent).Bold(true).Render(info.Name)
	return fmt.Sprintf("%s  %s  %s", title, s.Label.Render(info.URL), state)
}

// renderDetailContent renders every device of the selected connection at full size.
func (m Model) renderDetailContent() string {
	info, ok := m.SelectedConnection()
	if !ok {
		return ""
	}
	s := m.styles
	width := max(m.width-4, 40)

	var sections []string
	if info.LastStatus.Status != "" {
		sections = append(sections, s.Label.Render(statusLine("server", info.LastStatus)))
	}
	if info.LastError != "" {
		sections = append(sections, s.Disconnected.Render("Last error: "+info.LastError))
	}

	devices := m.devices[info.ID]
	if len(devices) == 0 {
		sections = append(sections, s.Label.Render(WaitingForData))
		return strings.Join(sections, "\n\n")
	}
	for _, d := range devices {
		sections = append(sections, m.renderDetailDevice(d, width))
	}
	return strings.Join(sections, "\n\n")
}

// renderDetailDevice renders one GPU as a bordered section with three graphs.
func (m Model) renderDetailDevice(d telemetry.DeviceSnapshot, width int) string {
	s := m.styles
	p := s.Palette
	t := m.thresholds

	lines := []string{s.SectionHeader(fmt.Sprintf("GPU%d %s", d.Index, d.Name), formatMemoryGB(d), width)}

	util, memPct, temp, ok := d.Latest()
	if !ok {
		lines = append(lines, s.SectionContentLine(s.Label.Render(WaitingForData), width), s.SectionFooter(width))
		return strings.Join(lines, "\n")
	}

	barWidth := max(width-22, 10)
	metrics := []struct {
		label string
		data  []float64
		level Level
		scale Scale
		value string
		pct   float64
	}{
		{"Usage", d.Utilization, t.Utilization, PercentScale(t.Utilization, p), fmt.Sprintf("%5.1f%%", util), util},
		{"Memory", d.Memory, t.Memory, PercentScale(t.Memory, p), fmt.Sprintf("%5.1f%%", memPct), memPct},
		{"Temp", d.Temperature, t.Temperature, TemperatureScale(t.Temperature, p), fmt.Sprintf("%4.0f°C", temp), temp / TemperatureScale(t.Temperature, p).Ceiling * 100},
	}

	graphWidth := max(width-6, 10)
	for _, mt := range metrics {
		color := mt.level.Color(mt.data[len(mt.data)-1], p)
		row := fmt.Sprintf("%-7s %s %s", mt.label, ThinProgressBar(barWidth, mt.pct, color), lipgloss.NewStyle().Foreground(color).Render(mt.value))
		lines = append(lines, s.SectionContentLine(row, width))
		for _, gl := range strings.Split(RenderBrailleSparkline(mt.data, graphWidth, detailGraphHeight, mt.scale), "\n") {
			lines = append(lines, s.SectionContentLine(gl, width))
		}
	}

	lines = append(lines,
		s.SectionContentLine(s.Label.Render(fmt.Sprintf("History (%d samples)", len(d.Labels))), width),
		s.SectionFooter(width),
	)
	return strings.Join(lines, "\n")
}
