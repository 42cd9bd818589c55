package grid

import (
	"fmt"
	"math"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
)

// Axis describes one dimension of the discretization: samples start at Min
// (inclusive) and advance by Step while strictly below Max.
type Axis struct {
	Min  float64
	Max  float64
	Step float64
}

// Count returns the number of samples the axis produces. The small epsilon
// keeps exact multiples of Step from landing on the exclusive upper bound;
// Min itself is always included, so the count is never below one.
func (a Axis) Count() int {
	n := int(math.Ceil((a.Max-a.Min)/a.Step - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}

func (a Axis) validate() error {
	if a.Step <= 0 {
		return fmt.Errorf("grid: step must be positive, got %f", a.Step)
	}
	if a.Min >= a.Max {
		return fmt.Errorf("grid: min %f must be below max %f", a.Min, a.Max)
	}
	return nil
}

// Grid is the dense Cartesian product of per-axis progressions, enumerated
// row-major with the last dimension varying fastest. The ordering is part of
// the contract: every per-point array in the pipeline indexes into it.
type Grid struct {
	axes   []Axis
	counts []int
	points []dynamo.State
}

func New(axes []Axis) (*Grid, error) {
	if len(axes) == 0 {
		return nil, fmt.Errorf("grid: at least one axis required")
	}

	counts := make([]int, len(axes))
	total := 1
	for i, a := range axes {
		if err := a.validate(); err != nil {
			return nil, err
		}
		counts[i] = a.Count()
		total *= counts[i]
	}

	g := &Grid{
		axes:   append([]Axis(nil), axes...),
		counts: counts,
		points: make([]dynamo.State, total),
	}

	idx := make([]int, len(axes))
	for i := 0; i < total; i++ {
		p := make(dynamo.State, len(axes))
		for d := range axes {
			p[d] = axes[d].Min + float64(idx[d])*axes[d].Step
		}
		g.points[i] = p

		for d := len(axes) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < counts[d] {
				break
			}
			idx[d] = 0
		}
	}

	return g, nil
}

func (g *Grid) Len() int { return len(g.points) }

func (g *Grid) Dim() int { return len(g.axes) }

func (g *Grid) Point(i int) dynamo.State { return g.points[i] }

// Points exposes the full enumeration. The slice is shared, read-only by
// convention.
func (g *Grid) Points() []dynamo.State { return g.points }

func (g *Grid) Axes() []Axis { return g.axes }

// Spacing returns the largest per-axis step, the discretization constant tau
// used in the Lipschitz slack of the safety threshold.
func (g *Grid) Spacing() float64 {
	tau := 0.0
	for _, a := range g.axes {
		if a.Step > tau {
			tau = a.Step
		}
	}
	return tau
}
