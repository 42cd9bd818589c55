package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
	"github.com/panos108/lyapunov-learning/internal/integrators"
)

type linearSystem struct{ rate float64 }

func (l *linearSystem) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	dx := make(dynamo.State, len(x))
	for i := range x {
		dx[i] = l.rate * x[i]
	}
	return dx
}

func (l *linearSystem) StateDim() int   { return 2 }
func (l *linearSystem) ControlDim() int { return 0 }

type gainController struct{ k float64 }

func (g *gainController) Compute(x dynamo.State, t float64) dynamo.Control {
	return dynamo.Control{-g.k * x[0]}
}

func TestBoundarySelection(t *testing.T) {
	points := []dynamo.State{{0}, {0.5}, {0.7}, {0.9}, {1.1}}
	v := []float64{0, 0.25, 0.49, 0.81, 1.21}
	safe := []bool{true, true, true, true, false}

	// Level 0.81, band 0.5: keep safe states with 0.405 <= V <= 0.81.
	band := Boundary(points, v, safe, 0.81, 0.5)
	if len(band) != 2 {
		t.Fatalf("selected %d states, want 2", len(band))
	}
	if band[0][0] != 0.7 || band[1][0] != 0.9 {
		t.Errorf("selected %v, want [0.7] and [0.9]", band)
	}
}

func TestBoundaryZeroLevel(t *testing.T) {
	points := []dynamo.State{{0}, {0.5}}
	v := []float64{0, 0.25}
	safe := []bool{true, false}

	band := Boundary(points, v, safe, 0, 0.1)
	if len(band) != 1 || band[0][0] != 0 {
		t.Errorf("zero level should select only the origin, got %v", band)
	}
}

func TestRunAllSettle(t *testing.T) {
	vf := &Verifier{
		System:     &linearSystem{rate: -2},
		Ctrl:       &gainController{k: 1},
		Integ:      func() dynamo.Integrator { return integrators.NewRK4() },
		Dt:         0.01,
		Duration:   5,
		SettleNorm: 0.05,
	}

	states := []dynamo.State{{1, 0}, {0, 1}, {-0.5, 0.5}, {0.2, -0.8}}
	report, err := vf.Run(context.Background(), states)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Settled != len(states) {
		t.Errorf("settled %d/%d, want all", report.Settled, report.Total)
	}
	if report.SettleFraction() != 1.0 {
		t.Errorf("settle fraction %f, want 1", report.SettleFraction())
	}
	if len(report.Failures) != 0 {
		t.Errorf("unexpected failures: %v", report.Failures)
	}
	// Initial state (1, 0) gives the largest |u| = k * |x0| = 1.
	if report.MaxControl < 0.9 || report.MaxControl > 1.1 {
		t.Errorf("max control %f, want ~1", report.MaxControl)
	}
}

func TestRunUnstableFails(t *testing.T) {
	vf := &Verifier{
		System:     &linearSystem{rate: 2},
		Ctrl:       &gainController{k: 1},
		Integ:      func() dynamo.Integrator { return integrators.NewRK4() },
		Dt:         0.01,
		Duration:   2,
		SettleNorm: 0.05,
	}

	states := []dynamo.State{{1, 0}, {0.5, 0.5}}
	report, err := vf.Run(context.Background(), states)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Settled != 0 {
		t.Errorf("settled %d, want 0 for an unstable plant", report.Settled)
	}
	if len(report.Failures) != 2 {
		t.Errorf("recorded %d failures, want 2", len(report.Failures))
	}
	// Effort is tallied on failed rollouts too: |u| grows with the
	// diverging state, far past the initial k * |x0| = 1.
	if report.MaxControl <= 1 {
		t.Errorf("max control %f on diverging rollouts, want above 1", report.MaxControl)
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	vf := &Verifier{
		System:     &linearSystem{rate: -1},
		Integ:      func() dynamo.Integrator { return integrators.NewRK4() },
		Dt:         0.01,
		Duration:   1,
		SettleNorm: 0.05,
	}
	if _, err := vf.Run(ctx, []dynamo.State{{1, 0}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
