package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// speedBlocks are the partial glyphs for the top cell of a column, indexed in eighths.
var speedBlocks = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇"}

// graphCeiling returns the axis maximum in MB/s for samples: the peak plus 10%,
// rounded up to a whole number, or to a multiple of 5 from 5 MB/s on.
func graphCeiling(samples []float64) float64 {
	peak := 1.0
	for _, v := range samples {
		if v > peak {
			peak = v
		}
	}
	peak *= 1.1
	if peak >= 5 {
		return math.Ceil(peak/5) * 5
	}
	return math.Ceil(peak)
}

// speedColumns right-aligns the newest width samples. Columns without a sample are -1.
func speedColumns(samples []float64, width int) []float64 {
	cols := make([]float64, width)
	for i := range cols {
		cols[i] = -1
	}
	if len(samples) > width {
		samples = samples[len(samples)-width:]
	}
	copy(cols[width-len(samples):], samples)
	return cols
}

// columnCell returns the glyph for row y (0 is the bottom) of a column filled to eighths.
func columnCell(eighths, y int) (string, bool) {
	rest := eighths - y*8
	switch {
	case rest <= 0:
		return "", false
	case rest >= 8:
		return "█", true
	default:
		return speedBlocks[rest], true
	}
}

// renderSpeedGraph draws MB/s samples as bars scaled to ceiling, newest on the right.
// Empty cells show a dashed grid on alternate rows. Bars turn pink in the upper half.
func renderSpeedGraph(samples []float64, width, height int, ceiling float64) string {
	if width < 1 || height < 1 || ceiling <= 0 {
		return ""
	}

	gridStyle := lipgloss.NewStyle().Foreground(ColorGray)
	lowStyle := lipgloss.NewStyle().Foreground(ColorNeonCyan)
	highStyle := lipgloss.NewStyle().Foreground(ColorNeonPink)

	cols := speedColumns(samples, width)
	levels := make([]int, width)
	for x, v := range cols {
		if v <= 0 {
			continue
		}
		levels[x] = int(math.Min(v/ceiling, 1) * float64(height*8))
	}

	lines := make([]string, height)
	for row := 0; row < height; row++ {
		y := height - 1 - row
		barStyle := lowStyle
		if y*2 >= height {
			barStyle = highStyle
		}

		var b strings.Builder
		for x := range cols {
			if cell, ok := columnCell(levels[x], y); ok {
				b.WriteString(barStyle.Render(cell))
			} else if row%2 == 0 {
				b.WriteString(gridStyle.Render("╌"))
			} else {
				b.WriteByte(' ')
			}
		}
		lines[row] = b.String()
	}
	return strings.Join(lines, "\n")
}

// renderSpeedAxis labels the graph's left edge with ceiling, its half and 0.
// Short graphs drop the middle label.
func renderSpeedAxis(ceiling float64, width, height int) string {
	axisStyle := lipgloss.NewStyle().Width(width).Foreground(ColorGray).Align(lipgloss.Right)
	top := axisStyle.Render(fmt.Sprintf("%.0f", ceiling))
	bottom := axisStyle.Render("0")

	if height < 5 {
		gap := max(height-2, 0)
		return lipgloss.JoinVertical(lipgloss.Right, top, strings.Repeat("\n", gap), bottom)
	}

	gap := height - 3
	above := gap / 2
	return lipgloss.JoinVertical(lipgloss.Right,
		top,
		strings.Repeat("\n", above),
		axisStyle.Render(fmt.Sprintf("%.1f", ceiling/2)),
		strings.Repeat("\n", gap-above),
		bottom,
	)
}
