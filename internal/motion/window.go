package motion

import (
	"errors"
	"math"
	"slices"

	"github.com/webtiming/timingsrc/internal/interval"
)

var (
	// ErrSingularWindow is returned when crossings are requested for a
	// zero-length time window.
	ErrSingularWindow = errors.New("motion: time window is singular")

	// ErrNotMoving is returned when crossings are requested for a vector
	// without velocity or acceleration.
	ErrNotMoving = errors.New("motion: vector is not moving")
)

// roundStep absorbs floating point error when selecting candidate endpoints.
const roundStep = 0.1

// ReachableInterval returns the smallest position interval covering every
// position vec takes during timeWindow, rounded outward to roundStep.
// A stationary vector or a singular window yields a single point.
func ReachableInterval(timeWindow interval.Interval, vec Vector) interval.Interval {
	if !vec.Moving() || timeWindow.Singular() {
		return interval.Point(vec.Position)
	}
	t0, t1 := timeWindow.Low, timeWindow.High
	v0 := vec.At(t0)
	p0, p1 := v0.Position, vec.At(t1).Position
	low, high := math.Min(p0, p1), math.Max(p0, p1)
	if a0 := v0.Acceleration; a0 != 0 {
		tVertex := t0 - v0.Velocity/a0
		if timeWindow.CoversPoint(tVertex) {
			pVertex := p0 - v0.Velocity*v0.Velocity/(2*a0)
			if a0 > 0 {
				low = pVertex
			} else {
				high = pVertex
			}
		}
	}
	low, high = roundDown(low), roundUp(high)
	if low == high {
		return interval.Point(low)
	}
	return interval.MustNew(low, high, true, true)
}

func roundDown(x float64) float64 {
	r := math.Floor(x/roundStep) * roundStep
	if r > x {
		r -= roundStep
	}
	return r
}

func roundUp(x float64) float64 {
	r := math.Ceil(x/roundStep) * roundStep
	if r < x {
		r += roundStep
	}
	return r
}

// TimeEndpoint converts a position endpoint crossed at ts into a time
// endpoint. Time always advances, so an endpoint crossed while moving
// backwards is crossed from the opposite orientation.
func TimeEndpoint(pos interval.Endpoint, ts float64, direction int) interval.Endpoint {
	side := pos.Side
	if direction < 0 {
		side = side.Flip()
	}
	return interval.Endpoint{Value: ts, Side: side}
}

// Crossing is one future pass of the motion over an endpoint.
type Crossing[T any] struct {
	Item         T
	Endpoint     interval.Endpoint
	TimeEndpoint interval.Endpoint
	Direction    int
}

// Time is the absolute time of the crossing.
func (c Crossing[T]) Time() float64 {
	return c.TimeEndpoint.Value
}

// EndpointCrossings computes when vec passes each item's endpoint.
//
// Endpoints outside posWindow, or never reached, are skipped. Every root
// becomes a crossing whose time endpoint must lie inside timeWindow. The
// result is sorted by time endpoint; equal time endpoints keep input order.
func EndpointCrossings[T any](
	timeWindow, posWindow interval.Interval,
	vec Vector,
	items []T,
	endpointOf func(T) interval.Endpoint,
) ([]Crossing[T], error) {
	if timeWindow.Singular() {
		return nil, ErrSingularWindow
	}
	if !vec.Moving() {
		return nil, ErrNotMoving
	}
	p0, v0, a0, t0 := vec.Position, vec.Velocity, vec.Acceleration, vec.Timestamp

	var out []Crossing[T]
	for _, item := range items {
		ep := endpointOf(item)
		if !posWindow.CoversEndpoint(ep) {
			continue
		}
		if !HasSolution(p0, v0, a0, ep.Value) {
			continue
		}
		for _, delta := range Solve(p0, v0, a0, ep.Value) {
			ts := t0 + delta
			dir := vec.DirectionAt(ts)
			tsEndpoint := TimeEndpoint(ep, ts, dir)
			if !timeWindow.CoversEndpoint(tsEndpoint) {
				continue
			}
			out = append(out, Crossing[T]{
				Item:         item,
				Endpoint:     ep,
				TimeEndpoint: tsEndpoint,
				Direction:    dir,
			})
		}
	}
	slices.SortStableFunc(out, func(a, b Crossing[T]) int {
		return interval.Compare(a.TimeEndpoint, b.TimeEndpoint)
	})
	return out, nil
}
