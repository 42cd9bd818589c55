package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
	"github.com/panos108/lyapunov-learning/internal/integrators"
)

type decaySystem struct{ rate float64 }

func (d *decaySystem) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	dx := make(dynamo.State, len(x))
	for i := range x {
		dx[i] = -d.rate * x[i]
	}
	return dx
}

func (d *decaySystem) StateDim() int   { return 2 }
func (d *decaySystem) ControlDim() int { return 0 }

type blowupSystem struct{}

func (b *blowupSystem) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[0] * x[0] * 1e6, 0}
}

func (b *blowupSystem) StateDim() int   { return 2 }
func (b *blowupSystem) ControlDim() int { return 0 }

func TestRolloutSettles(t *testing.T) {
	r := &Rollout{
		System:     &decaySystem{rate: 2.0},
		Integ:      integrators.NewRK4(),
		Dt:         0.01,
		Duration:   5.0,
		SettleNorm: 0.05,
	}

	tr, err := r.Run(context.Background(), dynamo.State{1, -0.5})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !tr.Settled {
		t.Fatal("exponential decay should settle within the horizon")
	}
	if tr.SettleTime <= 0 || tr.SettleTime >= 5.0 {
		t.Errorf("settle time %f outside (0, 5)", tr.SettleTime)
	}
	if tr.Final().Norm() >= 0.05 {
		t.Errorf("final norm %f, want below settle radius", tr.Final().Norm())
	}
	if len(tr.States) != len(tr.Times) {
		t.Errorf("states/times length mismatch: %d vs %d", len(tr.States), len(tr.Times))
	}
}

func TestRolloutDivergenceSurfaced(t *testing.T) {
	r := &Rollout{
		System:   &blowupSystem{},
		Integ:    integrators.NewEuler(),
		Dt:       0.1,
		Duration: 10.0,
	}

	tr, err := r.Run(context.Background(), dynamo.State{10, 0})
	if !errors.Is(err, dynamo.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if tr == nil || len(tr.States) == 0 {
		t.Error("partial trajectory should be returned alongside the error")
	}
}

func TestRolloutValidation(t *testing.T) {
	r := &Rollout{System: &decaySystem{rate: 1}, Integ: integrators.NewRK4(), Dt: -1, Duration: 1}
	if _, err := r.Run(context.Background(), dynamo.State{1, 0}); err == nil {
		t.Error("expected error for negative dt")
	}
}

func TestRolloutCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Rollout{
		System:   &decaySystem{rate: 1},
		Integ:    integrators.NewRK4(),
		Dt:       0.01,
		Duration: 1.0,
	}
	if _, err := r.Run(ctx, dynamo.State{1, 0}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
