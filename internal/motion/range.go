package motion

import "math"

// Range restricts the positions a mover may take.
type Range struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// Unbounded is the range (-Inf, +Inf).
func Unbounded() Range {
	return Range{Low: math.Inf(-1), High: math.Inf(1)}
}

// RangeState classifies a vector snapshot against a range.
type RangeState int

const (
	Inside RangeState = iota
	OutsideLow
	OutsideHigh
)

func (s RangeState) String() string {
	switch s {
	case OutsideLow:
		return "outside-low"
	case OutsideHigh:
		return "outside-high"
	default:
		return "inside"
	}
}

// State reports whether vec is inside r. A vector sitting on a bound and
// moving out of the range counts as outside.
func (r Range) State(vec Vector) RangeState {
	p, v, a := vec.Position, vec.Velocity, vec.Acceleration
	switch {
	case p > r.High:
		return OutsideHigh
	case p < r.Low:
		return OutsideLow
	case p == r.High && (v > 0 || (v == 0 && a > 0)):
		return OutsideHigh
	case p == r.Low && (v < 0 || (v == 0 && a < 0)):
		return OutsideLow
	}
	return Inside
}

// Check returns vec unchanged when inside r. Otherwise the returned vector
// is stopped at the violated bound.
func (r Range) Check(vec Vector) Vector {
	switch r.State(vec) {
	case OutsideHigh:
		return Vector{Position: r.High, Timestamp: vec.Timestamp}
	case OutsideLow:
		return Vector{Position: r.Low, Timestamp: vec.Timestamp}
	default:
		return vec
	}
}

// Intersect returns the absolute time of the first range-bound crossing of
// vec and the bound reached. Infinite bounds are never reached.
func (r Range) Intersect(vec Vector) (ts, bound float64, ok bool) {
	delta, bound, ok := TimeToBound(vec, r.Low, r.High)
	if !ok {
		return 0, 0, false
	}
	return vec.Timestamp + delta, bound, true
}
