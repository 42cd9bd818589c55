// Package sim rolls out autonomous closed-loop trajectories, used to verify
// that states inside a certified region actually converge under the real
// plant.
package sim

import (
	"context"
	"fmt"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
)

// Rollout integrates an autonomous system (control folded into Derive) for a
// fixed horizon.
type Rollout struct {
	System dynamo.System
	Integ  dynamo.Integrator
	Dt     float64
	// Duration is the simulated horizon in seconds.
	Duration float64
	// SettleNorm is the radius of the ball around the origin that counts as
	// converged. Zero disables settle detection.
	SettleNorm float64
}

// Trajectory is a completed rollout. SettleTime is the first time the state
// entered the settle ball without leaving it again; meaningful only when
// Settled is true.
type Trajectory struct {
	States     []dynamo.State
	Times      []float64
	Settled    bool
	SettleTime float64
}

// Final returns the last state of the trajectory.
func (tr *Trajectory) Final() dynamo.State {
	if len(tr.States) == 0 {
		return nil
	}
	return tr.States[len(tr.States)-1]
}

func (r *Rollout) validate() error {
	if r.System == nil || r.Integ == nil {
		return fmt.Errorf("sim: system and integrator are required")
	}
	if r.Dt <= 0 {
		return fmt.Errorf("sim: dt must be positive, got %f", r.Dt)
	}
	if r.Duration <= 0 {
		return fmt.Errorf("sim: duration must be positive, got %f", r.Duration)
	}
	return nil
}

// Run integrates from x0. A NaN/Inf state aborts the rollout with an error;
// a diverged trajectory is a finding, not a crash, so the caller gets the
// partial trajectory alongside it.
func (r *Rollout) Run(ctx context.Context, x0 dynamo.State) (*Trajectory, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	steps := int(r.Duration / r.Dt)
	tr := &Trajectory{
		States: make([]dynamo.State, 0, steps+1),
		Times:  make([]float64, 0, steps+1),
	}

	x := x0.Clone()
	t := 0.0
	tr.States = append(tr.States, x.Clone())
	tr.Times = append(tr.Times, t)

	settledAt := -1.0
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return tr, ctx.Err()
		default:
		}

		x = r.Integ.Step(r.System, x, nil, t, r.Dt)
		t += r.Dt

		if !x.IsValid() {
			return tr, fmt.Errorf("sim: state diverged at t=%.4f: %w", t, dynamo.ErrInvalidState)
		}

		tr.States = append(tr.States, x.Clone())
		tr.Times = append(tr.Times, t)

		if r.SettleNorm > 0 {
			if x.Norm() < r.SettleNorm {
				if settledAt < 0 {
					settledAt = t
				}
			} else {
				settledAt = -1
			}
		}
	}

	if settledAt >= 0 {
		tr.Settled = true
		tr.SettleTime = settledAt
	}
	return tr, nil
}
