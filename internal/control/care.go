package control

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// solveCARE solves the continuous-time algebraic Riccati equation
//
//	A'P + PA - P B R^-1 B' P + Q = 0
//
// by the Hamiltonian eigenvector method: assemble
//
//	H = | A   -B R^-1 B' |
//	    | -Q  -A'        |
//
// take the n eigenvectors belonging to stable eigenvalues, split them into
// [X1; X2], and recover P = Re(X2 X1^-1).
func solveCARE(a, b *mat.Dense, q, r *mat.SymDense) (*mat.SymDense, error) {
	n, _ := a.Dims()

	var rInv mat.Dense
	if err := rInv.Inverse(r); err != nil {
		return nil, fmt.Errorf("control: R not invertible: %w", err)
	}

	// G = B R^-1 B'
	var tmp, g mat.Dense
	tmp.Mul(b, &rInv)
	g.Mul(&tmp, b.T())

	h := mat.NewDense(2*n, 2*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			h.Set(i, j, a.At(i, j))
			h.Set(i, n+j, -g.At(i, j))
			h.Set(n+i, j, -q.At(i, j))
			h.Set(n+i, n+j, -a.At(j, i))
		}
	}

	var eig mat.Eigen
	if ok := eig.Factorize(h, mat.EigenRight); !ok {
		return nil, fmt.Errorf("control: eigendecomposition of Hamiltonian failed")
	}

	values := eig.Values(nil)
	vectors := mat.NewCDense(2*n, 2*n, nil)
	eig.VectorsTo(vectors)

	stable := make([]int, 0, n)
	for i, v := range values {
		if real(v) < 0 {
			stable = append(stable, i)
		}
	}
	if len(stable) != n {
		return nil, fmt.Errorf("control: expected %d stable Hamiltonian eigenvalues, got %d", n, len(stable))
	}

	x1 := make([][]complex128, n)
	x2 := make([][]complex128, n)
	for i := 0; i < n; i++ {
		x1[i] = make([]complex128, n)
		x2[i] = make([]complex128, n)
		for j, col := range stable {
			x1[i][j] = vectors.At(i, col)
			x2[i][j] = vectors.At(n+i, col)
		}
	}

	x1Inv, err := invertComplex(x1)
	if err != nil {
		return nil, fmt.Errorf("control: X1 block singular: %w", err)
	}

	p := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var pij, pji complex128
			for k := 0; k < n; k++ {
				pij += x2[i][k] * x1Inv[k][j]
				pji += x2[j][k] * x1Inv[k][i]
			}
			// Symmetrize; the imaginary parts cancel up to roundoff.
			p.SetSym(i, j, (real(pij)+real(pji))/2)
		}
	}

	return p, nil
}

// invertComplex inverts a small dense complex matrix by Gauss-Jordan
// elimination with partial pivoting.
func invertComplex(a [][]complex128) ([][]complex128, error) {
	n := len(a)
	work := make([][]complex128, n)
	inv := make([][]complex128, n)
	for i := range a {
		work[i] = append([]complex128(nil), a[i]...)
		inv[i] = make([]complex128, n)
		inv[i][i] = 1
	}

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if cmplx.Abs(work[row][col]) > cmplx.Abs(work[pivot][col]) {
				pivot = row
			}
		}
		if cmplx.Abs(work[pivot][col]) < 1e-14 {
			return nil, fmt.Errorf("matrix is singular")
		}
		work[col], work[pivot] = work[pivot], work[col]
		inv[col], inv[pivot] = inv[pivot], inv[col]

		scale := work[col][col]
		for j := 0; j < n; j++ {
			work[col][j] /= scale
			inv[col][j] /= scale
		}

		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			factor := work[row][col]
			for j := 0; j < n; j++ {
				work[row][j] -= factor * work[col][j]
				inv[row][j] -= factor * inv[col][j]
			}
		}
	}

	return inv, nil
}
