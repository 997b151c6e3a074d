package monitor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Braille character rendering for high-resolution terminal graphs.
//
// Braille patterns use a 2x4 dot matrix per character:
//
//	  Col 0  Col 1
//	Row 0:   ⠁      ⠈     (dots 1, 4)
//	Row 1:   ⠂      ⠐     (dots 2, 5)
//	Row 2:   ⠄      ⠠     (dots 3, 6)
//	Row 3:   ⡀      ⢀     (dots 7, 8)
//
// Unicode braille starts at U+2800 (empty) and uses bit patterns:
// bit 0 = dot 1, bit 1 = dot 2, bit 2 = dot 3, bit 3 = dot 4,
// bit 4 = dot 5, bit 5 = dot 6, bit 6 = dot 7, bit 7 = dot 8

const brailleBase = '\u2800'

// sparklineBlocks are block characters for 8-level vertical resolution (lowest to highest).
var sparklineBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// brailleDots maps [row][col] to the bit offset inside a braille cell.
var brailleDots = [4][2]uint8{
	{0, 3},
	{1, 4},
	{2, 5},
	{6, 7},
}

// Scale fixes a graph's vertical range and how each column is colored.
type Scale struct {
	Ceiling    float64 // values are plotted against 0..Ceiling
	Level      Level
	Palette    Palette
	Background lipgloss.Color // empty for no background
}

// PercentScale is the 0-100 scale used by utilization and memory.
func PercentScale(l Level, p Palette) Scale {
	return Scale{Ceiling: 100, Level: l, Palette: p}
}

// TemperatureScale plots temperatures against 0..max(100, critical+15).
func TemperatureScale(l Level, p Palette) Scale {
	return Scale{Ceiling: max(100, l.Critical+15), Level: l, Palette: p}
}

func (s Scale) normalize(v float64) float64 {
	if s.Ceiling <= 0 {
		return 0.5
	}
	return min(max(v/s.Ceiling, 0), 1)
}

func (s Scale) style(v float64) lipgloss.Style {
	st := lipgloss.NewStyle().Foreground(s.Level.Color(v, s.Palette))
	if s.Background != "" {
		st = st.Background(s.Background)
	}
	return st
}

// RenderBrailleSparkline renders data as a braille graph. Each character covers
// two data points and four vertical levels per row. Data shorter than the
// graph fills from the right; longer data is downsampled keeping peaks.
func RenderBrailleSparkline(data []float64, width, height int, scale Scale) string {
	if len(data) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	totalDots := height * 4
	targetPoints := width * 2

	resampled := data
	if len(data) > targetPoints {
		resampled = resampleData(data, targetPoints)
	}

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = make([]rune, width)
		for j := range grid[i] {
			grid[i][j] = brailleBase
		}
	}

	// Highest value per character column, for coloring
	colMax := make([]float64, width)
	horizOffset := max(targetPoints-len(resampled), 0)

	for i, val := range resampled {
		dotHeight := clampInt(int(scale.normalize(val)*float64(totalDots)), totalDots)

		charCol := (i + horizOffset) / 2
		if charCol >= width {
			continue
		}
		colMax[charCol] = max(colMax[charCol], val)
		subCol := (i + horizOffset) % 2

		// Fill dots from bottom up
		for dot := 0; dot < dotHeight; dot++ {
			row := height - 1 - (dot / 4)
			if row < 0 {
				continue
			}
			subRow := 3 - (dot % 4)
			grid[row][charCol] |= rune(1 << brailleDots[subRow][subCol])
		}
	}

	lines := make([]string, 0, height)
	for _, row := range grid {
		var sb strings.Builder
		for col, char := range row {
			sb.WriteString(scale.style(colMax[col]).Render(string(char)))
		}
		lines = append(lines, sb.String())
	}
	return strings.Join(lines, "\n")
}

// RenderMiniSparkline renders a single-row block sparkline colored by the latest value.
func RenderMiniSparkline(data []float64, width int, scale Scale) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}
	if len(data) > width {
		data = resampleData(data, width)
	}

	var sb strings.Builder
	for _, val := range data {
		idx := clampInt(int(scale.normalize(val)*float64(len(sparklineBlocks)-1)), len(sparklineBlocks)-1)
		sb.WriteRune(sparklineBlocks[idx])
	}
	return scale.style(data[len(data)-1]).Render(sb.String())
}

// RenderGradientBar renders a horizontal bar whose filled cells shade from
// healthy to critical by position.
func RenderGradientBar(width int, value float64, scale Scale) string {
	width = max(width, 1)
	filled := min(int(scale.normalize(value)*float64(width)), width)

	var sb strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			pos := float64(i+1) / float64(width) * scale.Ceiling
			sb.WriteString(scale.style(pos).Render("█"))
		} else {
			empty := lipgloss.NewStyle().Foreground(scale.Palette.TextMuted)
			if scale.Background != "" {
				empty = empty.Background(scale.Background)
			}
			sb.WriteString(empty.Render("░"))
		}
	}
	return sb.String()
}

// clampInt clamps an integer to [0, maxVal].
func clampInt(val, maxVal int) int {
	return min(max(val, 0), maxVal)
}

// resampleData resamples data to targetSize. Downsampling keeps the max of
// each bucket so spikes survive; upsampling interpolates linearly.
func resampleData(data []float64, targetSize int) []float64 {
	if len(data) == 0 || targetSize <= 0 {
		return nil
	}
	if len(data) == targetSize {
		return data
	}

	result := make([]float64, targetSize)
	if len(data) == 1 {
		for i := range result {
			result[i] = data[0]
		}
		return result
	}

	if len(data) > targetSize {
		bucketSize := float64(len(data)) / float64(targetSize)
		for i := 0; i < targetSize; i++ {
			start := int(float64(i) * bucketSize)
			end := min(int(float64(i+1)*bucketSize), len(data))
			if start >= end {
				start = max(end-1, 0)
			}

			peak := data[start]
			for j := start + 1; j < end; j++ {
				peak = max(peak, data[j])
			}
			result[i] = peak
		}
		return result
	}

	scale := float64(len(data)-1) / float64(targetSize-1)
	for i := 0; i < targetSize; i++ {
		pos := float64(i) * scale
		idx := int(pos)
		frac := pos - float64(idx)

		if idx >= len(data)-1 {
			result[i] = data[len(data)-1]
		} else {
			result[i] = data[idx]*(1-frac) + data[idx+1]*frac
		}
	}
	return result
}
