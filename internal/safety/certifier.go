package safety

import (
	"errors"
	"fmt"
	"math"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
	"github.com/panos108/lyapunov-learning/internal/lyapunov"
)

var (
	// ErrSeedNotCertified signals that the assumed-safe seed region fails
	// the pointwise decrease test under the current dynamics estimate. The
	// setup is inconsistent; widening the set silently would void the
	// certificate.
	ErrSeedNotCertified = errors.New("safety: seed set not pointwise certified")

	// ErrNumericalAnomaly signals NaN/Inf in the decrease bound, typically
	// from a broken prediction. Classifying such a point either way would
	// be arbitrary.
	ErrNumericalAnomaly = errors.New("safety: non-finite value in decrease bound")
)

// Certifier runs the Lyapunov-decrease test over a discretized state space.
//
// For each point the certifier forms a high-probability upper bound on the
// derivative of V along trajectories,
//
//	Vdot_upper = gradV . mu + beta * sum_d |gradV_d| * sigma_d
//
// and certifies the point when the bound stays below Threshold. Threshold is
// 0 for an oracle check against known dynamics, or -L*tau to absorb
// discretization error with Lipschitz constant L and grid spacing tau.
type Certifier struct {
	Beta      float64
	Threshold float64
}

// Result is one full certification pass.
type Result struct {
	// Level is the largest certified sublevel value of V.
	Level float64
	// Safe is the certified region {V <= Level}, plus the seed when one
	// was supplied. This is the forward-invariant set downstream decisions
	// may use.
	Safe []bool
	// Pointwise is the raw per-point decrease mask before levelset
	// propagation. Not forward invariant on its own.
	Pointwise []bool
	// Bound holds the per-point Vdot upper bounds, for diagnostics.
	Bound []float64
}

// Bound computes the conservative Vdot upper bound at every grid point.
// A nil variance selects the deterministic case: the bound degenerates to
// the plain inner product with no slack term.
func (c *Certifier) Bound(gradV, mean, variance [][]float64) ([]float64, error) {
	if len(gradV) != len(mean) {
		return nil, fmt.Errorf("safety: gradient count %d does not match mean count %d", len(gradV), len(mean))
	}
	if variance != nil && len(variance) != len(mean) {
		return nil, fmt.Errorf("safety: variance count %d does not match mean count %d", len(variance), len(mean))
	}

	n := len(gradV)
	bound := make([]float64, n)

	dynamo.ParallelFor(n, 512, func(start, end int) {
		for i := start; i < end; i++ {
			v := 0.0
			for d := range gradV[i] {
				v += gradV[i][d] * mean[i][d]
			}
			if variance != nil {
				for d := range gradV[i] {
					v += c.Beta * math.Abs(gradV[i][d]) * math.Sqrt(variance[i][d])
				}
			}
			bound[i] = v
		}
	})

	for i, v := range bound {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: point %d", ErrNumericalAnomaly, i)
		}
	}

	return bound, nil
}

func zeroGradient(g []float64) bool {
	for _, v := range g {
		if v != 0 {
			return false
		}
	}
	return true
}

// Pointwise classifies each point against the certification threshold.
func (c *Certifier) Pointwise(bound []float64) []bool {
	mask := make([]bool, len(bound))
	for i, v := range bound {
		mask[i] = v < c.Threshold
	}
	return mask
}

// Certify runs the full pass: decrease bound, pointwise classification, seed
// consistency check, and levelset propagation. The certified set is the
// largest sublevel set of V contained in the pointwise mask; a decreasing
// pointwise set need not be forward invariant, so membership is always
// expressed through a level of V rather than the raw mask.
//
// Points where the gradient of V vanishes (the minimum of V, the
// equilibrium) have a bound of exactly zero under any dynamics, so the
// strict threshold test can never admit them. They join the mask
// unconditionally; without this the equilibrium itself would block every
// nonzero levelset.
//
// A non-nil seed is the assumed-safe region: it joins the mask before the
// level search and the returned set always contains it, even when the search
// degenerates to zero. The assumption is checked on the mean drift gradV.mu
// alone: strictly positive drift at a seed point means the model predicts V
// grows on assumed-safe ground, which fails with ErrSeedNotCertified. The
// beta slack term is deliberately excluded here, since wide predictive
// variance is ignorance, not a prediction of growth.
func (c *Certifier) Certify(v []float64, gradV, mean, variance [][]float64, seed []bool, eps float64) (*Result, error) {
	if len(v) != len(gradV) {
		return nil, fmt.Errorf("safety: V count %d does not match gradient count %d", len(v), len(gradV))
	}
	if seed != nil && len(seed) != len(v) {
		return nil, fmt.Errorf("safety: seed length %d does not match grid size %d", len(seed), len(v))
	}

	bound, err := c.Bound(gradV, mean, variance)
	if err != nil {
		return nil, err
	}
	pointwise := c.Pointwise(bound)

	mask := make([]bool, len(pointwise))
	copy(mask, pointwise)
	for i := range mask {
		if !mask[i] && zeroGradient(gradV[i]) {
			mask[i] = true
		}
	}
	if seed != nil {
		for i := range seed {
			if !seed[i] {
				continue
			}
			drift := 0.0
			for d := range gradV[i] {
				drift += gradV[i][d] * mean[i][d]
			}
			if drift > 0 {
				return nil, fmt.Errorf("%w: seed point %d has positive drift %f",
					ErrSeedNotCertified, i, drift)
			}
			mask[i] = true
		}
	}

	level := lyapunov.MaxLevelset(v, mask, eps)
	safe := lyapunov.Sublevel(v, level)
	if seed != nil {
		for i := range seed {
			if seed[i] {
				safe[i] = true
			}
		}
	}

	return &Result{
		Level:     level,
		Safe:      safe,
		Pointwise: pointwise,
		Bound:     bound,
	}, nil
}
