package viz

import (
	"github.com/guptarohit/asciigraph"
)

// LevelTrace plots the certified level c across iterations.
func LevelTrace(levels []float64, width int) string {
	if len(levels) < 2 {
		return ""
	}
	return graphStyle.Render(asciigraph.Plot(levels,
		asciigraph.Height(6),
		asciigraph.Width(width),
		asciigraph.Caption("certified level c"),
	))
}

// SafeFractionTrace plots the fraction of grid points inside the certified
// set across iterations.
func SafeFractionTrace(fractions []float64, width int) string {
	if len(fractions) < 2 {
		return ""
	}
	return graphStyle.Render(asciigraph.Plot(fractions,
		asciigraph.Height(6),
		asciigraph.Width(width),
		asciigraph.Caption("safe fraction"),
	))
}
