package interval

import (
	"errors"
	"fmt"
	"math"
)

// Error reports an invalid endpoint or interval.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return "invalid interval: " + e.Message
}

func newError(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// IsError reports whether err is (or wraps) an interval validation error.
func IsError(err error) bool {
	var ie *Error
	return errors.As(err, &ie)
}

// Interval is a bounded or unbounded range on the timeline.
//
// Use New (or one of the helpers) to obtain a normalized value. A singular
// interval (Low == High) is always closed, an infinite low bound is always
// included, and so is an infinite high bound.
type Interval struct {
	Low         float64
	High        float64
	LowInclude  bool
	HighInclude bool
}

// New validates and normalizes an interval.
func New(low, high float64, lowInclude, highInclude bool) (Interval, error) {
	if math.IsNaN(low) || math.IsNaN(high) {
		return Interval{}, newError("NaN bound")
	}
	if low > high {
		return Interval{}, newError("low > high (%s > %s)", formatValue(low), formatValue(high))
	}
	if low == high {
		if math.IsInf(low, 0) {
			return Interval{}, newError("singular interval at %s", formatValue(low))
		}
		lowInclude, highInclude = true, true
	}
	if math.IsInf(low, -1) {
		lowInclude = true
	}
	if math.IsInf(high, 1) {
		highInclude = true
	}
	return Interval{Low: low, High: high, LowInclude: lowInclude, HighInclude: highInclude}, nil
}

// MustNew is New that panics on error. Intended for literals in tests and
// for values already known to be valid.
func MustNew(low, high float64, lowInclude, highInclude bool) Interval {
	iv, err := New(low, high, lowInclude, highInclude)
	if err != nil {
		panic(err)
	}
	return iv
}

// HalfOpen returns [low, high).
func HalfOpen(low, high float64) (Interval, error) {
	return New(low, high, true, false)
}

// Closed returns [low, high].
func Closed(low, high float64) (Interval, error) {
	return New(low, high, true, true)
}

// Point returns the singular interval [v]. v must be finite.
func Point(v float64) Interval {
	return Interval{Low: v, High: v, LowInclude: true, HighInclude: true}
}

// Unbounded returns [-Inf, +Inf].
func Unbounded() Interval {
	return Interval{Low: math.Inf(-1), High: math.Inf(1), LowInclude: true, HighInclude: true}
}

// FromEndpoints builds an interval from a low and a high endpoint.
// The low endpoint must be a left bound (or singular), the high endpoint a
// right bound (or singular).
func FromEndpoints(low, high Endpoint) (Interval, error) {
	if low.Side.Right() {
		return Interval{}, newError("low endpoint %s must be a left bound", low)
	}
	if high.Side.Left() {
		return Interval{}, newError("high endpoint %s must be a right bound", high)
	}
	return New(low.Value, high.Value, low.Side.Closed(), high.Side.Closed())
}

// Validate reports whether iv is in normalized form. Values built through
// New always validate.
func (iv Interval) Validate() error {
	n, err := New(iv.Low, iv.High, iv.LowInclude, iv.HighInclude)
	if err != nil {
		return err
	}
	if n != iv {
		return newError("interval %s is not normalized", iv)
	}
	return nil
}

// Length is High - Low.
func (iv Interval) Length() float64 {
	return iv.High - iv.Low
}

// Singular reports whether the interval is a single point.
func (iv Interval) Singular() bool {
	return iv.Low == iv.High
}

// Finite reports whether both bounds are finite.
func (iv Interval) Finite() bool {
	return !math.IsInf(iv.Low, 0) && !math.IsInf(iv.High, 0)
}

// EndpointLow returns the low bound as an endpoint.
func (iv Interval) EndpointLow() Endpoint {
	if iv.Singular() {
		return At(iv.Low)
	}
	return LowEndpoint(iv.Low, iv.LowInclude)
}

// EndpointHigh returns the high bound as an endpoint.
func (iv Interval) EndpointHigh() Endpoint {
	if iv.Singular() {
		return At(iv.High)
	}
	return HighEndpoint(iv.High, iv.HighInclude)
}

// CoversEndpoint reports whether e lies within iv.
func (iv Interval) CoversEndpoint(e Endpoint) bool {
	return !e.Before(iv.EndpointLow()) && !e.After(iv.EndpointHigh())
}

// CoversPoint reports whether the value v lies within iv.
func (iv Interval) CoversPoint(v float64) bool {
	return iv.CoversEndpoint(At(v))
}

// Compare returns the relation of iv to other. Covered reads "iv is covered
// by other".
func (iv Interval) Compare(other Interval) Relation {
	c1 := Compare(iv.EndpointLow(), other.EndpointLow())
	c2 := Compare(iv.EndpointHigh(), other.EndpointHigh())
	switch key := c1*10 + c2; key {
	case 11:
		if other.EndpointHigh().Before(iv.EndpointLow()) {
			return OutsideRight
		}
		return OverlapRight
	case -1, 9, 10:
		return Covered
	case 1, -9, -10:
		return Covers
	case 0:
		return Equals
	default:
		if other.EndpointLow().After(iv.EndpointHigh()) {
			return OutsideLeft
		}
		return OverlapLeft
	}
}

// Equal reports whether iv and other describe the same range.
func (iv Interval) Equal(other Interval) bool {
	return iv.Compare(other) == Equals
}

// Match reports whether the relation of iv to other is in mask.
func (iv Interval) Match(other Interval, mask Mask) bool {
	return mask.Has(iv.Compare(other))
}

func (iv Interval) String() string {
	if iv.Singular() {
		return iv.EndpointLow().String()
	}
	return iv.EndpointLow().String() + "," + iv.EndpointHigh().String()
}

// CmpLow orders intervals by their low endpoint.
func CmpLow(a, b Interval) int {
	return Compare(a.EndpointLow(), b.EndpointLow())
}

// CmpHigh orders intervals by their high endpoint.
func CmpHigh(a, b Interval) int {
	return Compare(a.EndpointHigh(), b.EndpointHigh())
}
