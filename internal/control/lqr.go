package control

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
)

// LQR applies the state-feedback law u = -Kx.
type LQR struct {
	k *mat.Dense
}

func NewLQR(k *mat.Dense) *LQR {
	return &LQR{k: k}
}

func (l *LQR) Compute(x dynamo.State, t float64) dynamo.Control {
	m, n := l.k.Dims()
	u := make(dynamo.Control, m)
	for i := 0; i < m; i++ {
		for j := 0; j < n && j < len(x); j++ {
			u[i] -= l.k.At(i, j) * x[j]
		}
	}
	return u
}

func (l *LQR) Gain() *mat.Dense { return l.k }

// Synthesize computes the infinite-horizon LQR gain K = R^-1 B' P for the
// linearized plant (A, B) under quadratic weights (Q, R). The returned
// cost-to-go P doubles as the Lyapunov certificate matrix downstream.
func Synthesize(a, b *mat.Dense, q, r *mat.SymDense) (*LQR, *mat.SymDense, error) {
	n, na := a.Dims()
	if n != na {
		return nil, nil, fmt.Errorf("control: A must be square, got %dx%d", n, na)
	}
	nb, m := b.Dims()
	if nb != n {
		return nil, nil, fmt.Errorf("control: B rows %d must match A dimension %d", nb, n)
	}
	if q.SymmetricDim() != n || r.SymmetricDim() != m {
		return nil, nil, fmt.Errorf("control: weight dimensions do not match plant")
	}

	p, err := solveCARE(a, b, q, r)
	if err != nil {
		return nil, nil, err
	}

	var rInv mat.Dense
	if err := rInv.Inverse(r); err != nil {
		return nil, nil, fmt.Errorf("control: R not invertible: %w", err)
	}

	var tmp, k mat.Dense
	tmp.Mul(&rInv, b.T())
	k.Mul(&tmp, p)

	return NewLQR(&k), p, nil
}
