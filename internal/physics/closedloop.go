package physics

import (
	"fmt"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
)

// ClosedLoop composes a plant with a feedback controller into an autonomous
// system over normalized coordinates: dz/dt = S^-1 f(Sz, k(z)). The
// controller sees normalized state; the plant sees physical state.
type ClosedLoop struct {
	Sys  dynamo.System
	Ctrl dynamo.Controller
	Norm *Normalizer
}

func NewClosedLoop(sys dynamo.System, ctrl dynamo.Controller, norm *Normalizer) *ClosedLoop {
	return &ClosedLoop{Sys: sys, Ctrl: ctrl, Norm: norm}
}

func (c *ClosedLoop) StateDim() int   { return c.Sys.StateDim() }
func (c *ClosedLoop) ControlDim() int { return 0 }

func (c *ClosedLoop) Derive(z dynamo.State, _ dynamo.Control, t float64) dynamo.State {
	u := c.Ctrl.Compute(z, t)
	dx := c.Sys.Derive(c.Norm.From(z), u, t)
	return c.Norm.ScaleDeriv(dx)
}

// Evaluate implements dynamo.Oracle: one ground-truth derivative sample at a
// normalized state. An invalid result is surfaced, never returned silently.
func (c *ClosedLoop) Evaluate(z dynamo.State) (dynamo.State, error) {
	if len(z) != c.Sys.StateDim() {
		return nil, fmt.Errorf("physics: query dimension %d: %w", len(z), dynamo.ErrDimensionMismatch)
	}
	dz := c.Derive(z, nil, 0)
	if !dz.IsValid() {
		return nil, fmt.Errorf("physics: derivative at %v: %w", z, dynamo.ErrInvalidState)
	}
	return dz, nil
}
