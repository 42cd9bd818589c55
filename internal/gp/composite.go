package gp

import (
	"fmt"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
)

// MeanFunc is a deterministic prior for one derivative dimension.
type MeanFunc func(x dynamo.State) float64

// Dimension is one output dimension of the composite predictor. A nil
// Residual marks the dimension as structurally certain (integrator chain):
// the prior passes through with exactly zero variance. Otherwise the
// prediction is prior mean plus a learned zero-mean GP correction.
type Dimension struct {
	Prior    MeanFunc
	Residual *GP
}

// Composite is the per-dimension dynamics predictor consumed by the safety
// certifier: Predict returns (mean, variance) arrays of shape (len(points),
// number of dimensions).
type Composite struct {
	dims []Dimension
}

func NewComposite(dims ...Dimension) (*Composite, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("gp: composite needs at least one dimension")
	}
	for i, d := range dims {
		if d.Prior == nil {
			return nil, fmt.Errorf("gp: dimension %d has no prior mean", i)
		}
	}
	return &Composite{dims: append([]Dimension(nil), dims...)}, nil
}

func (c *Composite) Dim() int { return len(c.dims) }

// Uncertain returns the indices of dimensions carrying a learned residual.
func (c *Composite) Uncertain() []int {
	var idx []int
	for i, d := range c.dims {
		if d.Residual != nil {
			idx = append(idx, i)
		}
	}
	return idx
}

// Predict evaluates all dimensions over a batch of points. The full batch is
// re-evaluated on every call: the posterior changes whenever an observation
// is added, so nothing is cached across learner iterations.
func (c *Composite) Predict(points []dynamo.State) (mean, variance [][]float64, err error) {
	n := len(points)
	mean = make([][]float64, n)
	variance = make([][]float64, n)
	for i := range points {
		mean[i] = make([]float64, len(c.dims))
		variance[i] = make([]float64, len(c.dims))
	}

	raw := make([][]float64, n)
	for i, p := range points {
		raw[i] = p
	}

	for d, dim := range c.dims {
		if dim.Residual == nil {
			for i, p := range points {
				mean[i][d] = dim.Prior(p)
			}
			continue
		}

		resMean, resVar, err := dim.Residual.Predict(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("gp: dimension %d: %w", d, err)
		}
		for i, p := range points {
			mean[i][d] = dim.Prior(p) + resMean[i]
			variance[i][d] = resVar[i]
		}
	}

	return mean, variance, nil
}

// Samples returns the training inputs shared by the learned dimensions, in
// observation order. Empty when no dimension carries a residual.
func (c *Composite) Samples() []dynamo.State {
	for _, d := range c.dims {
		if d.Residual == nil {
			continue
		}
		x, _ := d.Residual.Observations()
		samples := make([]dynamo.State, len(x))
		for i := range x {
			samples[i] = dynamo.State(x[i])
		}
		return samples
	}
	return nil
}

// AddObservation folds one ground-truth derivative sample into every learned
// dimension as a residual against that dimension's prior. This is the single
// mutation of the learning loop.
func (c *Composite) AddObservation(x dynamo.State, deriv dynamo.State) error {
	if len(deriv) != len(c.dims) {
		return fmt.Errorf("gp: derivative dimension %d does not match predictor %d", len(deriv), len(c.dims))
	}
	for d, dim := range c.dims {
		if dim.Residual == nil {
			continue
		}
		if err := dim.Residual.AddObservation(x, deriv[d]-dim.Prior(x)); err != nil {
			return fmt.Errorf("gp: dimension %d: %w", d, err)
		}
	}
	return nil
}
