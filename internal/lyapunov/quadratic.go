package lyapunov

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
	"github.com/panos108/lyapunov-learning/internal/grid"
)

// Quadratic is the certificate V(x) = x'Px for a symmetric positive-definite
// P, typically the LQR cost-to-go. P is fixed for the lifetime of the value.
type Quadratic struct {
	p *mat.SymDense
}

// NewQuadratic validates P by attempting a Cholesky factorization; a P that
// is not positive definite cannot certify anything.
func NewQuadratic(p *mat.SymDense) (*Quadratic, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(p); !ok {
		return nil, fmt.Errorf("lyapunov: P is not positive definite")
	}
	c := mat.NewSymDense(p.SymmetricDim(), nil)
	c.CopySym(p)
	return &Quadratic{p: c}, nil
}

func (q *Quadratic) Dim() int { return q.p.SymmetricDim() }

// Value returns x'Px.
func (q *Quadratic) Value(x dynamo.State) float64 {
	n := q.p.SymmetricDim()
	v := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v += x[i] * q.p.At(i, j) * x[j]
		}
	}
	return v
}

// Gradient returns 2Px.
func (q *Quadratic) Gradient(x dynamo.State) []float64 {
	n := q.p.SymmetricDim()
	g := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			g[i] += 2 * q.p.At(i, j) * x[j]
		}
	}
	return g
}

// Evaluate computes V and its gradient at every grid point. Both arrays share
// the grid's enumeration order. Per-point evaluation is independent, so the
// loop is chunked across workers.
func (q *Quadratic) Evaluate(g *grid.Grid) (v []float64, grad [][]float64) {
	n := g.Len()
	v = make([]float64, n)
	grad = make([][]float64, n)

	dynamo.ParallelFor(n, 256, func(start, end int) {
		for i := start; i < end; i++ {
			p := g.Point(i)
			v[i] = q.Value(p)
			grad[i] = q.Gradient(p)
		}
	})

	return v, grad
}
