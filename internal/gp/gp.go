package gp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// GP is an exact zero-mean Gaussian process regressor. The training set only
// grows; the Cholesky factor of the kernel matrix is rebuilt lazily after an
// observation is added, so repeated Predict calls between observations share
// one factorization. Refit cost is the collaborator's concern, accepted for
// the grid sizes this serves.
type GP struct {
	kernel Kernel
	noise  float64

	x [][]float64
	y []float64

	chol  mat.Cholesky
	alpha *mat.VecDense
	stale bool
}

func New(kernel Kernel, noise float64) (*GP, error) {
	if noise <= 0 {
		return nil, fmt.Errorf("gp: observation noise must be positive, got %f", noise)
	}
	return &GP{kernel: kernel, noise: noise}, nil
}

func (g *GP) Len() int { return len(g.x) }

// Observations returns copies of the training inputs and targets.
func (g *GP) Observations() ([][]float64, []float64) {
	x := make([][]float64, len(g.x))
	for i := range g.x {
		x[i] = append([]float64(nil), g.x[i]...)
	}
	return x, append([]float64(nil), g.y...)
}

// AddObservation appends one (input, target) pair. Existing observations are
// never overwritten.
func (g *GP) AddObservation(x []float64, y float64) error {
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return fmt.Errorf("gp: target is not finite: %f", y)
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("gp: input dimension %d is not finite: %f", i, v)
		}
	}
	g.x = append(g.x, append([]float64(nil), x...))
	g.y = append(g.y, y)
	g.stale = true
	return nil
}

func (g *GP) refit() error {
	n := len(g.x)
	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := g.kernel.Eval(g.x[i], g.x[j])
			if i == j {
				v += g.noise
			}
			k.SetSym(i, j, v)
		}
	}

	if ok := g.chol.Factorize(k); !ok {
		return fmt.Errorf("gp: kernel matrix not positive definite (duplicate inputs with tiny noise?)")
	}

	g.alpha = mat.NewVecDense(n, nil)
	if err := g.chol.SolveVecTo(g.alpha, mat.NewVecDense(n, append([]float64(nil), g.y...))); err != nil {
		return fmt.Errorf("gp: solving for weights: %w", err)
	}
	g.stale = false
	return nil
}

// Predict returns the posterior mean and variance at each query point.
// With an empty training set the prior is returned: zero mean, k(x,x)
// variance.
func (g *GP) Predict(points [][]float64) (mean, variance []float64, err error) {
	n := len(g.x)
	mean = make([]float64, len(points))
	variance = make([]float64, len(points))

	if n == 0 {
		for i, p := range points {
			variance[i] = g.kernel.Eval(p, p)
		}
		return mean, variance, nil
	}

	if g.stale {
		if err := g.refit(); err != nil {
			return nil, nil, err
		}
	}

	kstar := mat.NewVecDense(n, nil)
	solved := mat.NewVecDense(n, nil)
	for i, p := range points {
		for j := 0; j < n; j++ {
			kstar.SetVec(j, g.kernel.Eval(p, g.x[j]))
		}

		mean[i] = mat.Dot(kstar, g.alpha)

		if err := g.chol.SolveVecTo(solved, kstar); err != nil {
			return nil, nil, fmt.Errorf("gp: variance solve at point %d: %w", i, err)
		}
		v := g.kernel.Eval(p, p) - mat.Dot(kstar, solved)
		if v < 0 {
			// Numerical floor: the exact posterior variance is nonnegative.
			v = 0
		}
		variance[i] = v
	}

	return mean, variance, nil
}
