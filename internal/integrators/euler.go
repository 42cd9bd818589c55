package integrators

import "github.com/panos108/lyapunov-learning/internal/dynamo"

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t float64, dt float64) dynamo.State {
	dx := dyn.Derive(x, u, t)
	result := make(dynamo.State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result
}

// New returns the integrator registered under name, defaulting to RK4 for
// unknown names.
func New(name string) dynamo.Integrator {
	switch name {
	case "euler":
		return NewEuler()
	default:
		return NewRK4()
	}
}
