package physics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
)

// PendulumParams parameterize an inverted pendulum. Two sets exist per run:
// the true plant, and a deliberately wrong prior the learner must correct.
type PendulumParams struct {
	Mass      float64 `yaml:"mass"`
	Length    float64 `yaml:"length"`
	Friction  float64 `yaml:"friction"`
	Gravity   float64 `yaml:"gravity"`
	MaxTorque float64 `yaml:"max_torque"`
}

// DefaultTrueParams matches the physical plant being sampled.
func DefaultTrueParams() PendulumParams {
	return PendulumParams{
		Mass:      0.15,
		Length:    0.5,
		Friction:  0.1,
		Gravity:   9.81,
		MaxTorque: 2.0,
	}
}

// DefaultPriorParams underestimate mass and friction, so the prior model is
// optimistic about how easily the pendulum is caught.
func DefaultPriorParams() PendulumParams {
	return PendulumParams{
		Mass:      0.1,
		Length:    0.5,
		Friction:  0.0,
		Gravity:   9.81,
		MaxTorque: 2.0,
	}
}

// Validate checks the parameters are physically meaningful. Friction may be
// zero (the optimistic prior uses that), everything else must be positive.
func (p PendulumParams) Validate() error {
	if p.Mass <= 0 || p.Length <= 0 || p.Gravity <= 0 || p.MaxTorque <= 0 {
		return fmt.Errorf("physics: mass, length, gravity and max torque must be positive: %w", dynamo.ErrParameterBounds)
	}
	if p.Friction < 0 {
		return fmt.Errorf("physics: friction must be nonnegative: %w", dynamo.ErrParameterBounds)
	}
	return nil
}

// InvertedPendulum is the pendulum linearized-about-upright convention:
// theta = 0 is the upright equilibrium, gravity destabilizes.
//
//	m l^2 theta'' = m g l sin(theta) - b theta' + u
type InvertedPendulum struct {
	Params PendulumParams
}

func NewInvertedPendulum(params PendulumParams) *InvertedPendulum {
	return &InvertedPendulum{Params: params}
}

func (p *InvertedPendulum) StateDim() int   { return 2 }
func (p *InvertedPendulum) ControlDim() int { return 1 }

func (p *InvertedPendulum) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	theta := x[0]
	omega := x[1]

	torque := 0.0
	if len(u) > 0 {
		torque = clamp(u[0], p.Params.MaxTorque)
	}

	inertia := p.Params.Mass * p.Params.Length * p.Params.Length
	alpha := p.Params.Gravity/p.Params.Length*math.Sin(theta) -
		p.Params.Friction/inertia*omega + torque/inertia

	return dynamo.State{omega, alpha}
}

// Linearize returns the Jacobians about the upright equilibrium, in physical
// coordinates.
func (p *InvertedPendulum) Linearize() (a, b *mat.Dense) {
	inertia := p.Params.Mass * p.Params.Length * p.Params.Length
	a = mat.NewDense(2, 2, []float64{
		0, 1,
		p.Params.Gravity / p.Params.Length, -p.Params.Friction / inertia,
	})
	b = mat.NewDense(2, 1, []float64{
		0,
		1 / inertia,
	})
	return a, b
}

// LinearizeNormalized rescales the upright Jacobians into the normalized
// coordinates z = S^-1 x: A_n = S^-1 A S, B_n = S^-1 B.
func (p *InvertedPendulum) LinearizeNormalized(norm *Normalizer) (a, b *mat.Dense) {
	a, b = p.Linearize()
	s := norm.Scale
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			a.Set(i, j, a.At(i, j)*s[j]/s[i])
		}
		b.Set(i, 0, b.At(i, 0)/s[i])
	}
	return a, b
}

func clamp(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
