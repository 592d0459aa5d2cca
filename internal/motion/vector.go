// Package motion evaluates kinematic vectors and solves for the times at
// which a moving position crosses given points.
//
// Positions follow p(t) = p0 + v0*dt + 0.5*a0*dt^2 with dt = t - t0.
// Times are seconds as float64, matching the clock used by movers.
package motion

import "fmt"

// Vector is a kinematic state sampled at Timestamp.
type Vector struct {
	Position     float64 `json:"position" yaml:"position"`
	Velocity     float64 `json:"velocity" yaml:"velocity"`
	Acceleration float64 `json:"acceleration" yaml:"acceleration"`
	Timestamp    float64 `json:"timestamp" yaml:"timestamp"`
}

// At evaluates the vector at ts.
func (v Vector) At(ts float64) Vector {
	dt := ts - v.Timestamp
	return Vector{
		Position:     v.Position + v.Velocity*dt + 0.5*v.Acceleration*dt*dt,
		Velocity:     v.Velocity + v.Acceleration*dt,
		Acceleration: v.Acceleration,
		Timestamp:    ts,
	}
}

// Moving reports whether velocity or acceleration is non-zero.
func (v Vector) Moving() bool {
	return v.Velocity != 0 || v.Acceleration != 0
}

// Direction is the sign of velocity, or the sign of acceleration when
// velocity is zero: 1 forwards, -1 backwards, 0 no motion.
func (v Vector) Direction() int {
	if d := sign(v.Velocity); d != 0 {
		return d
	}
	return sign(v.Acceleration)
}

// DirectionAt is the direction of motion at ts.
func (v Vector) DirectionAt(ts float64) int {
	return v.At(ts).Direction()
}

func (v Vector) String() string {
	return fmt.Sprintf("(p=%g v=%g a=%g t=%g)", v.Position, v.Velocity, v.Acceleration, v.Timestamp)
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
