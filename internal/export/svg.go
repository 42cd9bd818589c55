// Package export renders certified regions to SVG for reports and external
// plotting.
package export

import (
	"fmt"
	"strings"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
	"github.com/panos108/lyapunov-learning/internal/grid"
)

// SafeSetSVG draws a 2-D certified region: one cell per grid point,
// dimension 0 horizontal, dimension 1 vertical with positive values up.
// Seed cells are drawn over safe cells, queried samples as circles on top.
func SafeSetSVG(g *grid.Grid, safe, seed []bool, samples []dynamo.State, cellPx float64) (string, error) {
	if g.Dim() != 2 {
		return "", fmt.Errorf("export: SVG map needs a 2-D grid, got %d dimensions", g.Dim())
	}
	if len(safe) != g.Len() {
		return "", fmt.Errorf("export: mask length %d does not match grid size %d", len(safe), g.Len())
	}
	if cellPx <= 0 {
		cellPx = 8
	}

	axes := g.Axes()
	cols := axes[0].Count()
	rows := axes[1].Count()
	width := float64(cols) * cellPx
	height := float64(rows) * cellPx

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	cell := func(c, r int, fill string) {
		x := float64(c) * cellPx
		y := float64(rows-1-r) * cellPx
		sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>
`, x, y, cellPx, cellPx, fill))
	}

	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			idx := c*rows + r
			switch {
			case seed != nil && seed[idx]:
				cell(c, r, "#3399ff")
			case safe[idx]:
				cell(c, r, "#00cc66")
			}
		}
	}

	radius := cellPx * 0.35
	for _, x := range samples {
		c := (x[0] - axes[0].Min) / axes[0].Step
		r := (x[1] - axes[1].Min) / axes[1].Step
		cx := (c + 0.5) * cellPx
		cy := (float64(rows-1) - r + 0.5) * cellPx
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill="#ffaa00"/>
`, cx, cy, radius))
	}

	sb.WriteString("</svg>")
	return sb.String(), nil
}
