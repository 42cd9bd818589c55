package gp

import (
	"math"
	"testing"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
)

func newTestGP(t *testing.T) *GP {
	t.Helper()
	k, err := NewRBF(1.0, []float64{0.5})
	if err != nil {
		t.Fatalf("NewRBF failed: %v", err)
	}
	g, err := New(k, 1e-6)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return g
}

func TestRBFValidation(t *testing.T) {
	if _, err := NewRBF(0, []float64{1}); err == nil {
		t.Error("expected error for zero variance")
	}
	if _, err := NewRBF(1, []float64{-1}); err == nil {
		t.Error("expected error for negative lengthscale")
	}
}

func TestRBFSimilarity(t *testing.T) {
	k, _ := NewRBF(2.0, []float64{1, 1})

	same := k.Eval([]float64{0.5, -0.5}, []float64{0.5, -0.5})
	if math.Abs(same-2.0) > 1e-12 {
		t.Errorf("k(x,x) = %f, want variance 2.0", same)
	}

	far := k.Eval([]float64{0, 0}, []float64{10, 10})
	if far > 1e-10 {
		t.Errorf("distant points should have ~0 covariance, got %e", far)
	}
}

func TestPriorPrediction(t *testing.T) {
	g := newTestGP(t)

	mean, variance, err := g.Predict([][]float64{{0.3}, {-0.7}})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for i := range mean {
		if mean[i] != 0 {
			t.Errorf("prior mean at %d = %f, want 0", i, mean[i])
		}
		if math.Abs(variance[i]-1.0) > 1e-12 {
			t.Errorf("prior variance at %d = %f, want kernel variance 1.0", i, variance[i])
		}
	}
}

func TestPosteriorInterpolates(t *testing.T) {
	g := newTestGP(t)

	if err := g.AddObservation([]float64{0.2}, 1.5); err != nil {
		t.Fatalf("AddObservation failed: %v", err)
	}

	mean, variance, err := g.Predict([][]float64{{0.2}})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if math.Abs(mean[0]-1.5) > 1e-3 {
		t.Errorf("posterior mean at training point = %f, want ~1.5", mean[0])
	}
	if variance[0] > 1e-4 {
		t.Errorf("posterior variance at training point = %e, want ~0", variance[0])
	}
}

func TestVarianceShrinksNearObservation(t *testing.T) {
	g := newTestGP(t)

	_, before, err := g.Predict([][]float64{{0.25}})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if err := g.AddObservation([]float64{0.2}, 0.8); err != nil {
		t.Fatalf("AddObservation failed: %v", err)
	}

	_, after, err := g.Predict([][]float64{{0.25}})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if after[0] >= before[0] {
		t.Errorf("variance did not shrink: %f -> %f", before[0], after[0])
	}
}

func TestAddObservationRejectsNonFinite(t *testing.T) {
	g := newTestGP(t)

	if err := g.AddObservation([]float64{0}, math.NaN()); err == nil {
		t.Error("expected error for NaN target")
	}
	if err := g.AddObservation([]float64{math.Inf(1)}, 0); err == nil {
		t.Error("expected error for Inf input")
	}
}

func TestCompositeStructuralDimension(t *testing.T) {
	k, _ := NewRBF(1.0, []float64{1, 1})
	residual, _ := New(k, 1e-6)

	c, err := NewComposite(
		Dimension{Prior: func(x dynamo.State) float64 { return x[1] }},
		Dimension{Prior: func(x dynamo.State) float64 { return -x[0] }, Residual: residual},
	)
	if err != nil {
		t.Fatalf("NewComposite failed: %v", err)
	}

	points := []dynamo.State{{0.5, -0.25}, {-1, 2}}
	mean, variance, err := c.Predict(points)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	for i, p := range points {
		// Integrator-chain dimension: derivative equals second state,
		// variance exactly zero by construction.
		if mean[i][0] != p[1] {
			t.Errorf("point %d: structural mean %f, want %f", i, mean[i][0], p[1])
		}
		if variance[i][0] != 0 {
			t.Errorf("point %d: structural variance %f, want exactly 0", i, variance[i][0])
		}
		if variance[i][1] <= 0 {
			t.Errorf("point %d: learned dimension should carry prior uncertainty", i)
		}
	}

	if got := c.Uncertain(); len(got) != 1 || got[0] != 1 {
		t.Errorf("Uncertain() = %v, want [1]", got)
	}
}

func TestCompositeObservationResidual(t *testing.T) {
	k, _ := NewRBF(1.0, []float64{1, 1})
	residual, _ := New(k, 1e-6)

	prior := func(x dynamo.State) float64 { return -x[0] }
	c, _ := NewComposite(
		Dimension{Prior: func(x dynamo.State) float64 { return x[1] }},
		Dimension{Prior: prior, Residual: residual},
	)

	// True derivative differs from the prior by +0.5 at this point.
	x := dynamo.State{0.4, 0.1}
	if err := c.AddObservation(x, dynamo.State{0.1, prior(x) + 0.5}); err != nil {
		t.Fatalf("AddObservation failed: %v", err)
	}

	mean, variance, err := c.Predict([]dynamo.State{x})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if math.Abs(mean[0][1]-(prior(x)+0.5)) > 1e-3 {
		t.Errorf("posterior mean %f, want ~%f", mean[0][1], prior(x)+0.5)
	}
	if variance[0][1] > 1e-4 {
		t.Errorf("posterior variance at observed point = %e, want ~0", variance[0][1])
	}
}
