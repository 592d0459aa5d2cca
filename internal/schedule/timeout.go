package schedule

import "github.com/webtiming/timingsrc/internal/timing"

// Timeout manages at most one pending callback targeting an absolute time
// on a clock.
//
// Clock timers may fire early. An early callback re-arms for the remaining
// delay instead of running fn, so fn never observes now < target.
type Timeout struct {
	clock  timing.Clock
	fn     func(now float64)
	timer  timing.Timer
	target float64
	gen    uint64
}

// NewTimeout creates an unset timeout calling fn when due.
func NewTimeout(clock timing.Clock, fn func(now float64)) *Timeout {
	return &Timeout{clock: clock, fn: fn}
}

// IsSet reports whether a callback is pending.
func (t *Timeout) IsSet() bool {
	return t.timer != nil
}

// Target returns the pending target time.
func (t *Timeout) Target() (float64, bool) {
	if t.timer == nil {
		return 0, false
	}
	return t.target, true
}

// Set arms the timeout for target, replacing any pending one.
func (t *Timeout) Set(target float64) {
	t.Clear()
	t.target = target
	t.arm()
}

func (t *Timeout) arm() {
	gen := t.gen
	delay := t.target - t.clock.Now()
	if delay < 0 {
		delay = 0
	}
	t.timer = t.clock.AfterFunc(delay, func() { t.onTimer(gen) })
}

func (t *Timeout) onTimer(gen uint64) {
	if gen != t.gen || t.timer == nil {
		// cleared or replaced after the timer was created
		return
	}
	t.timer = nil
	now := t.clock.Now()
	if now < t.target {
		t.arm()
		return
	}
	t.fn(now)
}

// Clear cancels the pending callback. Clearing an unset timeout is a no-op.
func (t *Timeout) Clear() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
