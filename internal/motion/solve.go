package motion

import (
	"math"
	"slices"
)

// Solve returns the real roots t, ascending, of
//
//	0.5*a*t^2 + v*t + (p - x) = 0
//
// With a = v = 0 there is no root unless p == x, in which case the single
// root is 0.
func Solve(p, v, a, x float64) []float64 {
	if a == 0 && v == 0 {
		if p != x {
			return nil
		}
		return []float64{0}
	}
	if a == 0 {
		return []float64{(x - p) / v}
	}
	disc := v*v - 2*a*(p-x)
	if disc < 0 {
		return nil
	}
	if disc == 0 {
		return []float64{-v / a}
	}
	sq := math.Sqrt(disc)
	d1 := (-v + sq) / a
	d2 := (-v - sq) / a
	return []float64{math.Min(d1, d2), math.Max(d1, d2)}
}

// HasSolution reports whether the motion ever reaches x.
func HasSolution(p, v, a, x float64) bool {
	if a == 0 && v == 0 {
		return p == x
	}
	if a == 0 {
		return true
	}
	return v*v-2*a*(p-x) >= 0
}

// PositiveSolutions returns the strictly positive roots, ascending.
func PositiveSolutions(p, v, a, x float64) []float64 {
	roots := Solve(p, v, a, x)
	return slices.DeleteFunc(roots, func(t float64) bool { return !(t > 0) })
}

// MinPositiveSolution returns the smallest strictly positive time delta at
// which vec reaches x.
func MinPositiveSolution(vec Vector, x float64) (float64, bool) {
	roots := PositiveSolutions(vec.Position, vec.Velocity, vec.Acceleration, x)
	if len(roots) == 0 {
		return 0, false
	}
	return roots[0], true
}

// TimeToBound returns the minimal positive time delta until vec reaches low
// or high, and which bound is reached. When both are reachable the smaller
// delta wins; ties go to high. Infinite bounds are unreachable.
func TimeToBound(vec Vector, low, high float64) (delta, bound float64, ok bool) {
	var dLow, dHigh float64
	var okLow, okHigh bool
	if !math.IsInf(low, 0) {
		dLow, okLow = MinPositiveSolution(vec, low)
	}
	if !math.IsInf(high, 0) {
		dHigh, okHigh = MinPositiveSolution(vec, high)
	}
	switch {
	case okLow && okHigh:
		if dLow < dHigh {
			return dLow, low, true
		}
		return dHigh, high, true
	case okLow:
		return dLow, low, true
	case okHigh:
		return dHigh, high, true
	default:
		return 0, 0, false
	}
}
