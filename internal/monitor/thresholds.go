package monitor

import "github.com/charmbracelet/lipgloss"

// Level is a warning/critical pair. Values at or above a bound take its color.
type Level struct {
	Warning  float64
	Critical float64
}

// Thresholds drive metric coloring per reading.
type Thresholds struct {
	Utilization Level
	Memory      Level
	Temperature Level // degrees C
}

// DefaultThresholds match the config defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Utilization: Level{Warning: 70, Critical: 90},
		Memory:      Level{Warning: 70, Critical: 90},
		Temperature: Level{Warning: 75, Critical: 85},
	}
}

// withDefaults replaces zero bounds with the defaults.
func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	fill := func(l, def Level) Level {
		if l.Warning <= 0 {
			l.Warning = def.Warning
		}
		if l.Critical <= 0 {
			l.Critical = def.Critical
		}
		return l
	}
	return Thresholds{
		Utilization: fill(t.Utilization, d.Utilization),
		Memory:      fill(t.Memory, d.Memory),
		Temperature: fill(t.Temperature, d.Temperature),
	}
}

// Color picks healthy, warning, or critical from the palette.
func (l Level) Color(value float64, p Palette) lipgloss.Color {
	switch {
	case value >= l.Critical:
		return p.Critical
	case value >= l.Warning:
		return p.Warning
	default:
		return p.Healthy
	}
}

// Style is Color wrapped in a foreground style.
func (l Level) Style(value float64, p Palette) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(l.Color(value, p))
}
