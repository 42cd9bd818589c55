package physics

import (
	"fmt"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
)

// Normalizer maps between physical and normalized coordinates via a
// per-dimension scale: physical = Scale * normalized. The learner operates
// entirely on the normalized hypercube.
type Normalizer struct {
	Scale []float64
}

func NewNormalizer(scale []float64) (*Normalizer, error) {
	for i, s := range scale {
		if s <= 0 {
			return nil, fmt.Errorf("physics: scale[%d] must be positive, got %f", i, s)
		}
	}
	return &Normalizer{Scale: append([]float64(nil), scale...)}, nil
}

// To converts a physical state to normalized coordinates.
func (n *Normalizer) To(x dynamo.State) dynamo.State {
	z := make(dynamo.State, len(x))
	for i := range x {
		z[i] = x[i] / n.Scale[i]
	}
	return z
}

// From converts a normalized state to physical coordinates.
func (n *Normalizer) From(z dynamo.State) dynamo.State {
	x := make(dynamo.State, len(z))
	for i := range z {
		x[i] = z[i] * n.Scale[i]
	}
	return x
}

// ScaleDeriv converts a physical-coordinate derivative to normalized
// coordinates; the chain rule for z = S^-1 x gives dz/dt = S^-1 dx/dt.
func (n *Normalizer) ScaleDeriv(dx dynamo.State) dynamo.State {
	return n.To(dx)
}
