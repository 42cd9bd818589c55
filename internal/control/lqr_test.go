package control

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
)

// careResidual computes ||A'P + PA - P B R^-1 B' P + Q||_max.
func careResidual(a, b *mat.Dense, q, r, p *mat.SymDense) float64 {
	var rInv mat.Dense
	if err := rInv.Inverse(r); err != nil {
		return math.Inf(1)
	}

	var atp, pa, bt, g, pgp, res mat.Dense
	atp.Mul(a.T(), p)
	pa.Mul(p, a)
	bt.Mul(b, &rInv)
	g.Mul(&bt, b.T())
	pgp.Mul(p, &g)
	pgp.Mul(&pgp, p)

	res.Add(&atp, &pa)
	res.Sub(&res, &pgp)

	n, _ := a.Dims()
	worst := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := math.Abs(res.At(i, j) + q.At(i, j))
			if v > worst {
				worst = v
			}
		}
	}
	return worst
}

func TestSynthesizeDoubleIntegrator(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{0, 1, 0, 0})
	b := mat.NewDense(2, 1, []float64{0, 1})
	q := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	r := mat.NewSymDense(1, []float64{1})

	lqr, p, err := Synthesize(a, b, q, r)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if res := careResidual(a, b, q, r, p); res > 1e-8 {
		t.Errorf("CARE residual too large: %e", res)
	}

	// Known solution for the double integrator: P = [[sqrt(3), 1], [1, sqrt(3)]].
	s3 := math.Sqrt(3)
	want := [][]float64{{s3, 1}, {1, s3}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if math.Abs(p.At(i, j)-want[i][j]) > 1e-8 {
				t.Errorf("P[%d][%d] = %f, want %f", i, j, p.At(i, j), want[i][j])
			}
		}
	}

	// K = R^-1 B' P = [1, sqrt(3)].
	k := lqr.Gain()
	if math.Abs(k.At(0, 0)-1) > 1e-8 || math.Abs(k.At(0, 1)-s3) > 1e-8 {
		t.Errorf("unexpected gain: [%f, %f]", k.At(0, 0), k.At(0, 1))
	}
}

func TestSynthesizeStabilizesUnstablePlant(t *testing.T) {
	// Unstable scalar-input plant: upright pendulum shape.
	a := mat.NewDense(2, 2, []float64{0, 1, 19.62, -0.1})
	b := mat.NewDense(2, 1, []float64{0, 26.67})
	q := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	r := mat.NewSymDense(1, []float64{1})

	lqr, p, err := Synthesize(a, b, q, r)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if res := careResidual(a, b, q, r, p); res > 1e-6 {
		t.Errorf("CARE residual too large: %e", res)
	}

	// Closed-loop A - BK must be Hurwitz.
	k := lqr.Gain()
	var bk, acl mat.Dense
	bk.Mul(b, k)
	acl.Sub(a, &bk)

	var eig mat.Eigen
	if ok := eig.Factorize(&acl, mat.EigenNone); !ok {
		t.Fatal("eigendecomposition failed")
	}
	for _, v := range eig.Values(nil) {
		if real(v) >= 0 {
			t.Errorf("closed loop not stable: eigenvalue %v", v)
		}
	}
}

func TestLQRCompute(t *testing.T) {
	lqr := NewLQR(mat.NewDense(1, 2, []float64{2, 3}))
	u := lqr.Compute(dynamo.State{1, -1}, 0)
	if len(u) != 1 || math.Abs(u[0]-1) > 1e-12 {
		t.Errorf("expected u = [1], got %v", u)
	}
}

func TestSynthesizeDimensionErrors(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{0, 1, 0, 0})
	b := mat.NewDense(1, 1, []float64{1})
	q := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	r := mat.NewSymDense(1, []float64{1})

	if _, _, err := Synthesize(a, b, q, r); err == nil {
		t.Error("expected dimension error")
	}
}
