package lyapunov

// contained reports whether the sublevel set {i : v[i] <= c} lies inside the
// safe mask.
func contained(v []float64, safe []bool, c float64) bool {
	for i := range v {
		if v[i] <= c && !safe[i] {
			return false
		}
	}
	return true
}

// MaxLevelset finds the largest c such that {i : v[i] <= c} is a subset of
// the safe mask, by bisection over [0, max(v)]. Growing c only adds points,
// so containment is monotone in c and bisection converges within eps.
//
// Returns 0 when even the smallest sublevel set leaks outside the mask; that
// is a valid outcome (no certified expansion), not an error.
func MaxLevelset(v []float64, safe []bool, eps float64) float64 {
	if len(v) == 0 || len(v) != len(safe) {
		return 0
	}

	hi := 0.0
	for _, val := range v {
		if val > hi {
			hi = val
		}
	}

	if contained(v, safe, hi) {
		return hi
	}

	lo := 0.0
	if !contained(v, safe, lo) {
		return 0
	}

	for hi-lo > eps {
		mid := lo + (hi-lo)/2
		if contained(v, safe, mid) {
			lo = mid
		} else {
			hi = mid
		}
	}

	// When no value of V falls in (0, lo] the converged lo admits nothing
	// beyond the zero sublevel set; report the degenerate outcome as an
	// exact 0 rather than a float just below the first excluded level.
	for _, val := range v {
		if val > 0 && val <= lo {
			return lo
		}
	}
	return 0
}

// Sublevel materializes the boolean membership of {i : v[i] <= c}.
func Sublevel(v []float64, c float64) []bool {
	mask := make([]bool, len(v))
	for i := range v {
		mask[i] = v[i] <= c
	}
	return mask
}
