package gp

import (
	"fmt"
	"math"
)

// Kernel measures covariance between two input points.
type Kernel interface {
	Eval(x1, x2 []float64) float64
}

// RBF is the squared-exponential kernel with per-dimension lengthscales:
//
//	k(x1, x2) = variance * exp(-0.5 * sum_d ((x1_d - x2_d) / l_d)^2)
type RBF struct {
	Variance     float64
	Lengthscales []float64
}

func NewRBF(variance float64, lengthscales []float64) (RBF, error) {
	if variance <= 0 {
		return RBF{}, fmt.Errorf("gp: kernel variance must be positive, got %f", variance)
	}
	for i, l := range lengthscales {
		if l <= 0 {
			return RBF{}, fmt.Errorf("gp: lengthscale[%d] must be positive, got %f", i, l)
		}
	}
	return RBF{Variance: variance, Lengthscales: append([]float64(nil), lengthscales...)}, nil
}

func (k RBF) Eval(x1, x2 []float64) float64 {
	if len(x1) != len(x2) || len(x1) != len(k.Lengthscales) {
		return math.NaN()
	}
	sum := 0.0
	for i := range x1 {
		d := (x1[i] - x2[i]) / k.Lengthscales[i]
		sum += d * d
	}
	return k.Variance * math.Exp(-0.5*sum)
}
