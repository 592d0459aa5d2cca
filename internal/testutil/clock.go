package testutil

import (
	"math"
	"sync"

	"github.com/webtiming/timingsrc/internal/timing"
)

// ManualClock is a timing.Clock that only moves when told to.
//
// Timers fire synchronously inside Advance and Set, in target order; timers
// with the same target fire in creation order. While a timer fires, Now
// reports its target time.
//
// Thread-safety: methods may be called from any goroutine, but timer
// callbacks run on the goroutine calling Advance.
type ManualClock struct {
	mu     sync.Mutex
	now    float64
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	c      *ManualClock
	at     float64
	seq    uint64
	f      func()
	active bool
}

var _ timing.Clock = (*ManualClock)(nil)

// NewManualClock creates a clock reading start.
func NewManualClock(start float64) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current time.
func (c *ManualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f at Now()+delay. Negative delays count as zero. The
// callback never runs inside AfterFunc itself.
func (c *ManualClock) AfterFunc(delay float64, f func()) timing.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if delay < 0 || math.IsNaN(delay) {
		delay = 0
	}
	c.seq++
	t := &manualTimer{c: c, at: c.now + delay, seq: c.seq, f: f, active: true}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if !t.active {
		return false
	}
	t.active = false
	t.c.prune()
	return true
}

// prune drops inactive timers. Caller holds mu.
func (c *ManualClock) prune() {
	kept := c.timers[:0]
	for _, t := range c.timers {
		if t.active {
			kept = append(kept, t)
		}
	}
	clear(c.timers[len(kept):])
	c.timers = kept
}

// next returns the earliest active timer due at or before limit. Caller
// holds mu.
func (c *ManualClock) next(limit float64) *manualTimer {
	var best *manualTimer
	for _, t := range c.timers {
		if !t.active || t.at > limit {
			continue
		}
		if best == nil || t.at < best.at || (t.at == best.at && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

// Advance moves the clock forward by d seconds, firing due timers,
// including timers created by callbacks during the advance.
func (c *ManualClock) Advance(d float64) {
	c.Set(c.Now() + d)
}

// Set moves the clock to target, firing due timers. Moving backwards only
// changes the reading.
func (c *ManualClock) Set(target float64) {
	for {
		c.mu.Lock()
		t := c.next(target)
		if t == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		t.active = false
		c.prune()
		if t.at > c.now {
			c.now = t.at
		}
		c.mu.Unlock()
		t.f()
	}
}

// FireEarly runs the earliest pending timer without moving the clock, as a
// timer that wakes up ahead of its target would. It reports whether a timer
// was pending.
func (c *ManualClock) FireEarly() bool {
	c.mu.Lock()
	t := c.next(math.Inf(1))
	if t == nil {
		c.mu.Unlock()
		return false
	}
	t.active = false
	c.prune()
	c.mu.Unlock()
	t.f()
	return true
}

// Pending returns the number of active timers.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// NextAt returns the target of the earliest active timer.
func (c *ManualClock) NextAt() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next(math.Inf(1))
	if t == nil {
		return 0, false
	}
	return t.at, true
}
