// Package learner runs the safe active-learning loop: certify the current
// region of attraction estimate, sample the most uncertain state inside it,
// and fold the measured derivative back into the dynamics model.
package learner

import (
	"context"
	"errors"
	"fmt"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
	"github.com/panos108/lyapunov-learning/internal/gp"
	"github.com/panos108/lyapunov-learning/internal/grid"
	"github.com/panos108/lyapunov-learning/internal/safety"
)

// ErrNoSafePoint signals that the certified set is empty, leaving no state
// the loop is allowed to sample. Exploration never leaves the certified set,
// so there is no fallback query.
var ErrNoSafePoint = errors.New("learner: certified set is empty, nothing safe to sample")

// Learner owns the per-iteration orchestration. The grid, Lyapunov arrays and
// seed are fixed for the run; the predictor is the only state that mutates,
// and only through AddObservation at the end of a successful iteration.
type Learner struct {
	Grid      *grid.Grid
	V         []float64
	GradV     [][]float64
	Predictor *gp.Composite
	Oracle    dynamo.Oracle
	Certifier *safety.Certifier
	Seed      []bool
	Eps       float64

	// Tol, when positive, stops Run early once the largest predictive
	// variance inside the certified set falls below it.
	Tol float64

	iter int
}

// Iteration records one pass of the loop, for history and live display.
type Iteration struct {
	Index       int
	Level       float64
	SafeCount   int
	QueryIndex  int
	QueryPoint  dynamo.State
	MaxVariance float64
}

// Result is the outcome of a full Run.
type Result struct {
	Iterations []Iteration
	Level      float64
	Safe       []bool
	Converged  bool
}

func (l *Learner) validate() error {
	if l.Grid == nil || l.Predictor == nil || l.Oracle == nil || l.Certifier == nil {
		return fmt.Errorf("learner: grid, predictor, oracle and certifier are all required")
	}
	n := l.Grid.Len()
	if len(l.V) != n || len(l.GradV) != n {
		return fmt.Errorf("learner: Lyapunov arrays sized %d/%d do not match grid size %d", len(l.V), len(l.GradV), n)
	}
	if l.Seed != nil && len(l.Seed) != n {
		return fmt.Errorf("learner: seed length %d does not match grid size %d", len(l.Seed), n)
	}
	if l.Predictor.Dim() != l.Grid.Dim() {
		return fmt.Errorf("learner: predictor dimension %d does not match grid dimension %d", l.Predictor.Dim(), l.Grid.Dim())
	}
	return nil
}

// Step runs one iteration: predict over the grid, certify, pick the most
// uncertain certified point, measure the true derivative there, and append
// the observation. A certification failure aborts the iteration with no
// mutation.
func (l *Learner) Step(ctx context.Context) (*Iteration, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mean, variance, err := l.Predictor.Predict(l.Grid.Points())
	if err != nil {
		return nil, fmt.Errorf("learner: predicting dynamics: %w", err)
	}

	res, err := l.Certifier.Certify(l.V, l.GradV, mean, variance, l.Seed, l.Eps)
	if err != nil {
		return nil, fmt.Errorf("learner: certifying: %w", err)
	}

	uncertain := l.Predictor.Uncertain()
	best, bestVar := -1, 0.0
	for i, safe := range res.Safe {
		if !safe {
			continue
		}
		v := 0.0
		for _, d := range uncertain {
			v += variance[i][d]
		}
		// Strict comparison keeps the first occurrence on ties.
		if best < 0 || v > bestVar {
			best, bestVar = i, v
		}
	}
	if best < 0 {
		return nil, ErrNoSafePoint
	}

	point := l.Grid.Point(best).Clone()
	deriv, err := l.Oracle.Evaluate(point)
	if err != nil {
		return nil, fmt.Errorf("learner: querying true dynamics at %v: %w", point, err)
	}
	if err := l.Predictor.AddObservation(point, deriv); err != nil {
		return nil, fmt.Errorf("learner: recording observation: %w", err)
	}

	l.iter++
	safeCount := 0
	for _, s := range res.Safe {
		if s {
			safeCount++
		}
	}
	return &Iteration{
		Index:       l.iter,
		Level:       res.Level,
		SafeCount:   safeCount,
		QueryIndex:  best,
		QueryPoint:  point,
		MaxVariance: bestVar,
	}, nil
}

// Certify runs a certification pass against the current model without
// sampling. Used for the final estimate after the budget is spent, and by
// diagnostic callers that supply exact dynamics.
func (l *Learner) Certify(ctx context.Context) (*safety.Result, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mean, variance, err := l.Predictor.Predict(l.Grid.Points())
	if err != nil {
		return nil, fmt.Errorf("learner: predicting dynamics: %w", err)
	}
	res, err := l.Certifier.Certify(l.V, l.GradV, mean, variance, l.Seed, l.Eps)
	if err != nil {
		return nil, fmt.Errorf("learner: certifying: %w", err)
	}
	return res, nil
}

// Run executes up to budget iterations, invoking observe (when non-nil)
// after each one. It stops early on context cancellation, on Tol-convergence,
// or on the first iteration error. The returned result reflects a final
// certification pass over the post-run model, so the last observation is
// accounted for.
func (l *Learner) Run(ctx context.Context, budget int, observe func(Iteration)) (*Result, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("learner: iteration budget must be positive, got %d", budget)
	}

	result := &Result{}
	for i := 0; i < budget; i++ {
		it, err := l.Step(ctx)
		if err != nil {
			return nil, err
		}
		result.Iterations = append(result.Iterations, *it)
		if observe != nil {
			observe(*it)
		}
		if l.Tol > 0 && it.MaxVariance < l.Tol {
			result.Converged = true
			break
		}
	}

	final, err := l.Certify(ctx)
	if err != nil {
		return nil, err
	}
	result.Level = final.Level
	result.Safe = final.Safe
	return result, nil
}

// SeedBall marks the grid points with state norm strictly below radius. The
// caller asserts, not verifies, that this ball lies inside the true region
// of attraction.
func SeedBall(g *grid.Grid, radius float64) []bool {
	seed := make([]bool, g.Len())
	for i := range seed {
		seed[i] = g.Point(i).Norm() < radius
	}
	return seed
}
