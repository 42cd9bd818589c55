package integrators

import (
	"math"
	"testing"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
)

type harmonicOscillator struct{}

func (h *harmonicOscillator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (h *harmonicOscillator) StateDim() int   { return 2 }
func (h *harmonicOscillator) ControlDim() int { return 0 }

func TestRK4Accuracy(t *testing.T) {
	dyn := &harmonicOscillator{}
	integ := NewRK4()

	x := dynamo.State{1.0, 0.0}
	dt := 0.01
	steps := 100

	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, nil, float64(i)*dt, dt)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-4 {
		t.Errorf("position error too large: got %.6f, expected %.6f", x[0], expectedX)
	}
	if math.Abs(x[1]-expectedV) > 1e-4 {
		t.Errorf("velocity error too large: got %.6f, expected %.6f", x[1], expectedV)
	}
}

func TestEulerFirstOrder(t *testing.T) {
	dyn := &harmonicOscillator{}

	// Halving dt should roughly halve the global error.
	run := func(dt float64) float64 {
		x := dynamo.State{1.0, 0.0}
		steps := int(1.0 / dt)
		integ := NewEuler()
		for i := 0; i < steps; i++ {
			x = integ.Step(dyn, x, nil, float64(i)*dt, dt)
		}
		return math.Abs(x[0] - math.Cos(1.0))
	}

	coarse := run(0.01)
	fine := run(0.005)
	ratio := coarse / fine
	if ratio < 1.5 || ratio > 2.5 {
		t.Errorf("error ratio %.2f, expected ~2 for a first-order method", ratio)
	}
}

func TestNewByName(t *testing.T) {
	if _, ok := New("euler").(*Euler); !ok {
		t.Error("expected Euler for name \"euler\"")
	}
	if _, ok := New("rk4").(*RK4); !ok {
		t.Error("expected RK4 for name \"rk4\"")
	}
	if _, ok := New("unknown").(*RK4); !ok {
		t.Error("expected RK4 fallback for unknown name")
	}
}
