package timing

import (
	"log/slog"
	"sync"

	"github.com/webtiming/timingsrc/internal/motion"
	"github.com/webtiming/timingsrc/internal/notify"
)

// Object is an in-process mover. Updates take effect immediately at the
// clock's current time. When the motion reaches a range bound the object
// stops there.
//
// Methods must be called from the goroutine that runs the clock's timer
// callbacks.
type Object struct {
	clock  Clock
	rng    motion.Range
	logger *slog.Logger

	mu      sync.Mutex
	vector  motion.Vector
	timeout Timer
	subs    notify.List[Change]
}

// ObjectOption configures an Object.
type ObjectOption func(*Object)

// WithRange restricts the object's positions. The default is unbounded.
func WithRange(r motion.Range) ObjectOption {
	return func(o *Object) {
		o.rng = r
	}
}

// WithVector sets the initial vector. Its timestamp is replaced by the
// clock's current time.
func WithVector(v motion.Vector) ObjectOption {
	return func(o *Object) {
		o.vector = v
	}
}

// WithObjectLogger sets the logger.
func WithObjectLogger(l *slog.Logger) ObjectOption {
	return func(o *Object) {
		o.logger = l
	}
}

// NewObject creates a mover on clock, at rest at position 0 unless
// WithVector is given.
func NewObject(clock Clock, opts ...ObjectOption) *Object {
	o := &Object{
		clock:  clock,
		rng:    motion.Unbounded(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.vector.Timestamp = clock.Now()
	o.vector = o.rng.Check(o.vector)
	o.armRangeTimeout()
	return o
}

// Vector returns the vector in effect.
func (o *Object) Vector() motion.Vector {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.vector
}

// Range returns the position range.
func (o *Object) Range() motion.Range {
	return o.rng
}

// Clock returns the object's clock.
func (o *Object) Clock() Clock {
	return o.clock
}

// Query samples the vector now.
func (o *Object) Query() motion.Vector {
	return Query(o)
}

// Subscribe implements Mover.
func (o *Object) Subscribe(fn func(Change)) func() {
	h := o.subs.Add(fn)
	fn(Change{New: o.Vector()})
	return func() { o.subs.Remove(h) }
}

// UpdateArg lists the fields to change. Nil fields keep the value the
// current motion has at the time of the update.
type UpdateArg struct {
	Position     *float64
	Velocity     *float64
	Acceleration *float64
}

// Float is a helper for building UpdateArg literals.
func Float(v float64) *float64 {
	return &v
}

// Update changes the motion now and notifies subscribers.
func (o *Object) Update(arg UpdateArg) motion.Vector {
	now := o.clock.Now()
	o.mu.Lock()
	old := o.vector
	next := old.At(now)
	if arg.Position != nil {
		next.Position = *arg.Position
	}
	if arg.Velocity != nil {
		next.Velocity = *arg.Velocity
	}
	if arg.Acceleration != nil {
		next.Acceleration = *arg.Acceleration
	}
	o.mu.Unlock()
	return o.set(&old, next)
}

func (o *Object) set(old *motion.Vector, next motion.Vector) motion.Vector {
	checked := o.rng.Check(next)
	if checked != next {
		o.logger.Debug("timing object clamped to range",
			"position", next.Position, "range_low", o.rng.Low, "range_high", o.rng.High)
	}
	o.mu.Lock()
	o.vector = checked
	o.mu.Unlock()
	o.armRangeTimeout()
	o.subs.Publish(Change{Old: old, New: checked, Live: true})
	return checked
}

// armRangeTimeout replaces the pending range timeout, if any, with one for
// the next range bound the motion reaches.
func (o *Object) armRangeTimeout() {
	o.mu.Lock()
	if o.timeout != nil {
		o.timeout.Stop()
		o.timeout = nil
	}
	vec := o.vector
	o.mu.Unlock()
	if !vec.Moving() {
		return
	}
	ts, bound, ok := o.rng.Intersect(vec)
	if !ok {
		return
	}
	t := o.clock.AfterFunc(ts-o.clock.Now(), func() { o.onRangeTimeout(vec, ts, bound) })
	o.mu.Lock()
	o.timeout = t
	o.mu.Unlock()
}

func (o *Object) onRangeTimeout(armed motion.Vector, target, bound float64) {
	if now := o.clock.Now(); now < target {
		// early wake-up
		t := o.clock.AfterFunc(target-now, func() { o.onRangeTimeout(armed, target, bound) })
		o.mu.Lock()
		o.timeout = t
		o.mu.Unlock()
		return
	}
	o.mu.Lock()
	if o.vector != armed {
		o.mu.Unlock()
		return
	}
	o.timeout = nil
	old := o.vector
	o.mu.Unlock()
	o.set(&old, motion.Vector{Position: bound, Timestamp: target})
}
