package interval

import (
	"fmt"
	"math"
	"strconv"
)

// Side describes the bracket of an endpoint. The numeric value is the rank
// used to order endpoints with equal values.
type Side uint8

const (
	// RightOpen is a high bound that excludes its value: p)
	RightOpen Side = iota
	// LeftClosed is a low bound that includes its value: [p
	LeftClosed
	// Singular is the only endpoint of a single-point interval: [p]
	Singular
	// RightClosed is a high bound that includes its value: p]
	RightClosed
	// LeftOpen is a low bound that excludes its value: (p
	LeftOpen
)

// Right reports whether the side is a high bound.
func (s Side) Right() bool {
	return s == RightOpen || s == RightClosed
}

// Left reports whether the side is a low bound.
func (s Side) Left() bool {
	return s == LeftOpen || s == LeftClosed
}

// Closed reports whether the endpoint value itself is included.
func (s Side) Closed() bool {
	return s == LeftClosed || s == Singular || s == RightClosed
}

// Flip swaps left and right orientation, keeping open/closed.
// Singular stays singular.
func (s Side) Flip() Side {
	switch s {
	case RightOpen:
		return LeftOpen
	case LeftOpen:
		return RightOpen
	case RightClosed:
		return LeftClosed
	case LeftClosed:
		return RightClosed
	default:
		return s
	}
}

func (s Side) String() string {
	switch s {
	case RightOpen:
		return "right-open"
	case LeftClosed:
		return "left-closed"
	case Singular:
		return "singular"
	case RightClosed:
		return "right-closed"
	case LeftOpen:
		return "left-open"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// Endpoint is a bound value with a bracket side.
type Endpoint struct {
	Value float64
	Side  Side
}

// NewEndpoint validates value and side.
func NewEndpoint(value float64, side Side) (Endpoint, error) {
	e := Endpoint{Value: value, Side: side}
	if err := e.Validate(); err != nil {
		return Endpoint{}, err
	}
	return e, nil
}

// At returns the singular endpoint for value. Plain numbers compare as
// singular endpoints.
func At(value float64) Endpoint {
	return Endpoint{Value: value, Side: Singular}
}

// LowEndpoint returns the low bound for value.
func LowEndpoint(value float64, closed bool) Endpoint {
	if closed {
		return Endpoint{Value: value, Side: LeftClosed}
	}
	return Endpoint{Value: value, Side: LeftOpen}
}

// HighEndpoint returns the high bound for value.
func HighEndpoint(value float64, closed bool) Endpoint {
	if closed {
		return Endpoint{Value: value, Side: RightClosed}
	}
	return Endpoint{Value: value, Side: RightOpen}
}

// Validate checks value and infinity orientation.
func (e Endpoint) Validate() error {
	if math.IsNaN(e.Value) {
		return newError("endpoint value is NaN")
	}
	if e.Side > LeftOpen {
		return newError("unknown endpoint side %d", uint8(e.Side))
	}
	if math.IsInf(e.Value, 1) && e.Side != RightClosed && e.Side != Singular {
		return newError("+Inf endpoint must be right-closed or singular")
	}
	if math.IsInf(e.Value, -1) && e.Side != LeftClosed && e.Side != Singular {
		return newError("-Inf endpoint must be left-closed or singular")
	}
	return nil
}

// Compare returns -1 if a is ordered before b, 0 if equal, 1 if after.
func Compare(a, b Endpoint) int {
	switch {
	case a.Value < b.Value:
		return -1
	case a.Value > b.Value:
		return 1
	case a.Side < b.Side:
		return -1
	case a.Side > b.Side:
		return 1
	default:
		return 0
	}
}

// Before reports whether e is ordered strictly before other.
func (e Endpoint) Before(other Endpoint) bool {
	return Compare(e, other) < 0
}

// After reports whether e is ordered strictly after other.
func (e Endpoint) After(other Endpoint) bool {
	return Compare(e, other) > 0
}

// Equal reports whether e and other have the same value and side.
func (e Endpoint) Equal(other Endpoint) bool {
	return Compare(e, other) == 0
}

// Flip returns e with left/right orientation swapped.
func (e Endpoint) Flip() Endpoint {
	return Endpoint{Value: e.Value, Side: e.Side.Flip()}
}

// MinEndpoint returns the lesser of a and b.
func MinEndpoint(a, b Endpoint) Endpoint {
	if Compare(a, b) <= 0 {
		return a
	}
	return b
}

// MaxEndpoint returns the greater of a and b.
func MaxEndpoint(a, b Endpoint) Endpoint {
	if Compare(a, b) <= 0 {
		return b
	}
	return a
}

func (e Endpoint) String() string {
	v := formatValue(e.Value)
	switch e.Side {
	case RightOpen:
		return v + ")"
	case LeftClosed:
		return "[" + v
	case RightClosed:
		return v + "]"
	case LeftOpen:
		return "(" + v
	default:
		return "[" + v + "]"
	}
}

func formatValue(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
}
