package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
	"github.com/panos108/lyapunov-learning/internal/grid"
)

const (
	cellSafe   = '█'
	cellUnsafe = '·'
	cellSeed   = 'o'
	cellSample = '●'
)

// SafeMap renders a 2-D certified region as a character map: dimension 0 on
// the horizontal axis, dimension 1 vertical with positive values up. Seed
// points and queried samples overlay the mask. maxWidth caps the number of
// character columns; the grid is strided down to fit.
func SafeMap(g *grid.Grid, safe, seed []bool, samples []dynamo.State, maxWidth int) (string, error) {
	if g.Dim() != 2 {
		return "", fmt.Errorf("viz: safe map needs a 2-D grid, got %d dimensions", g.Dim())
	}
	if len(safe) != g.Len() {
		return "", fmt.Errorf("viz: mask length %d does not match grid size %d", len(safe), g.Len())
	}
	if maxWidth < 8 {
		maxWidth = 8
	}

	axes := g.Axes()
	cols := axes[0].Count()
	rows := axes[1].Count()

	stride := 1
	for cols/stride > maxWidth {
		stride++
	}

	sampleCells := make(map[[2]int]bool, len(samples))
	for _, x := range samples {
		i0 := nearestIndex(axes[0], x[0])
		i1 := nearestIndex(axes[1], x[1])
		if i0 >= 0 && i1 >= 0 {
			sampleCells[[2]int{i0 / stride, i1 / stride}] = true
		}
	}

	var b strings.Builder
	for r := rows - 1; r >= 0; r -= stride {
		for c := 0; c < cols; c += stride {
			idx := c*rows + r
			cell := [2]int{c / stride, r / stride}
			switch {
			case sampleCells[cell]:
				b.WriteString(sampleStyle.Render(string(cellSample)))
			case seed != nil && seed[idx]:
				b.WriteString(seedStyle.Render(string(cellSeed)))
			case safe[idx]:
				b.WriteString(safeStyle.Render(string(cellSafe)))
			default:
				b.WriteString(unsafeStyle.Render(string(cellUnsafe)))
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// nearestIndex maps a coordinate onto the axis sample it is closest to, -1
// when it falls outside the axis range.
func nearestIndex(a grid.Axis, v float64) int {
	idx := int(math.Round((v - a.Min) / a.Step))
	if idx < 0 || idx >= a.Count() {
		return -1
	}
	return idx
}
