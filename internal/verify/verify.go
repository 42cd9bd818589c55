// Package verify stress-tests a certified region against the true plant:
// every selected state is rolled out under the closed loop and must settle
// into the equilibrium ball. A certificate that fails here is worthless, so
// this is the empirical counterpart to the Lyapunov argument.
package verify

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
	"github.com/panos108/lyapunov-learning/internal/sim"
)

// Verifier rolls out a batch of initial states in parallel. Integ is a
// factory because stepper implementations keep per-call scratch buffers and
// must not be shared across workers.
type Verifier struct {
	System dynamo.System
	Ctrl   dynamo.Controller
	Integ  func() dynamo.Integrator

	Dt         float64
	Duration   float64
	SettleNorm float64
}

// Report aggregates a verification batch.
type Report struct {
	Total   int
	Settled int
	// MaxControl is the largest |u| observed across all trajectories, for
	// spotting actuator saturation inside the certified set.
	MaxControl float64
	// Failures holds the initial states that did not settle.
	Failures []dynamo.State
}

func (r *Report) SettleFraction() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Settled) / float64(r.Total)
}

// Boundary selects the certified states in the outer band of the levelset:
// safe points with V >= (1-band)*level. These are the hardest states the
// certificate vouches for. A zero level degenerates to the origin.
func Boundary(points []dynamo.State, v []float64, safe []bool, level, band float64) []dynamo.State {
	cut := (1 - band) * level
	var out []dynamo.State
	for i, ok := range safe {
		if ok && v[i] >= cut && v[i] <= level {
			out = append(out, points[i].Clone())
		}
	}
	return out
}

// Run rolls out every state. Each state's pass/fail is independent; a
// diverged trajectory counts as a failure, not an error. Only a cancelled
// context aborts the batch.
func (vf *Verifier) Run(ctx context.Context, states []dynamo.State) (*Report, error) {
	if vf.System == nil || vf.Integ == nil {
		return nil, fmt.Errorf("verify: system and integrator factory are required")
	}

	settled := make([]bool, len(states))
	maxU := make([]float64, len(states))

	var mu sync.Mutex
	var failed []dynamo.State

	dynamo.ParallelFor(len(states), 1, func(start, end int) {
		r := &sim.Rollout{
			System:     vf.System,
			Integ:      vf.Integ(),
			Dt:         vf.Dt,
			Duration:   vf.Duration,
			SettleNorm: vf.SettleNorm,
		}
		for i := start; i < end; i++ {
			tr, err := r.Run(ctx, states[i])
			// Control effort is tallied for failures as well; saturation is
			// most likely exactly where the rollout escapes.
			if tr != nil && vf.Ctrl != nil {
				for j, x := range tr.States {
					u := vf.Ctrl.Compute(x, tr.Times[j])
					for _, val := range u {
						if a := math.Abs(val); a > maxU[i] {
							maxU[i] = a
						}
					}
				}
			}
			if err != nil || tr == nil || !tr.Settled {
				mu.Lock()
				failed = append(failed, states[i].Clone())
				mu.Unlock()
				continue
			}
			settled[i] = true
		}
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Total: len(states), Failures: failed}
	for i := range states {
		if settled[i] {
			report.Settled++
		}
		if maxU[i] > report.MaxControl {
			report.MaxControl = maxU[i]
		}
	}
	return report, nil
}
