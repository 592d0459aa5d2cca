// Package timing defines the mover capability consumed by schedules and
// sequencers, plus a minimal in-process mover.
//
// Times are seconds as float64 on the mover's clock. A Mover exposes its
// current vector, its range, its clock and a change subscription. How the
// vector is produced is the mover's business.
package timing

import (
	"sync"
	"time"

	"github.com/webtiming/timingsrc/internal/motion"
)

// Timer is a pending callback created by Clock.AfterFunc.
type Timer interface {
	// Stop cancels the callback. It reports whether the call stopped the
	// timer before it fired.
	Stop() bool
}

// Clock is a time source with a timer primitive.
//
// Timers may fire early but never late; consumers re-check Now against
// their target before acting.
type Clock interface {
	Now() float64
	AfterFunc(delay float64, f func()) Timer
}

// Change is a vector change notification.
type Change struct {
	// Old is the previous vector, nil on the initial notification.
	Old *motion.Vector
	// New is the vector in effect from New.Timestamp.
	New motion.Vector
	// Live is true for changes happening now, false for the initial
	// notification delivered on subscribe.
	Live bool
}

// Mover is the capability a sequencer needs from a moving position.
type Mover interface {
	Vector() motion.Vector
	Range() motion.Range
	Clock() Clock
	// Subscribe registers fn for vector changes and immediately delivers the
	// current vector with Old nil and Live false. The returned func
	// unsubscribes.
	Subscribe(fn func(Change)) (unsubscribe func())
}

// Query samples m at the current time of its clock.
func Query(m Mover) motion.Vector {
	return m.Vector().At(m.Clock().Now())
}

// SystemClock measures seconds elapsed since its creation.
//
// Timer callbacks run on their own goroutine unless a post function is
// given, in which case they are handed to post (typically loop.Post) so that
// they run on the owner's goroutine.
type SystemClock struct {
	origin time.Time
	post   func(func()) bool
}

// NewSystemClock returns a clock starting at 0 now. post may be nil.
func NewSystemClock(post func(func()) bool) *SystemClock {
	return &SystemClock{origin: time.Now(), post: post}
}

// Now returns seconds since the clock was created.
func (c *SystemClock) Now() float64 {
	return time.Since(c.origin).Seconds()
}

// AfterFunc runs f after delay seconds.
func (c *SystemClock) AfterFunc(delay float64, f func()) Timer {
	if delay < 0 {
		delay = 0
	}
	d := time.Duration(delay * float64(time.Second))
	st := &systemTimer{}
	st.t = time.AfterFunc(d, func() {
		if c.post == nil {
			st.fire(f)
			return
		}
		c.post(func() { st.fire(f) })
	})
	return st
}

// systemTimer guards against a callback that was already posted when Stop
// was called.
type systemTimer struct {
	mu      sync.Mutex
	t       *time.Timer
	stopped bool
}

func (st *systemTimer) fire(f func()) {
	st.mu.Lock()
	stopped := st.stopped
	st.stopped = true
	st.mu.Unlock()
	if !stopped {
		f()
	}
}

func (st *systemTimer) Stop() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.stopped {
		return false
	}
	st.stopped = true
	st.t.Stop()
	return true
}
