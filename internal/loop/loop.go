// Package loop runs posted functions one at a time on a single goroutine.
//
// Datasets, schedules and sequencers are not safe for concurrent use. A
// program that drives them from timers, file watchers and signal handlers
// posts every call onto one Loop so that a single goroutine owns them.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrStopped is returned by Do after the loop has been stopped.
var ErrStopped = errors.New("loop: stopped")

// Loop is an unbounded FIFO of functions drained by Run.
//
// Post may be called from any goroutine. Functions run in posting order on
// the goroutine that called Run.
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{} // buffered, size 1
	logger *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for start and stop messages.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) {
		if l != nil {
			lp.logger = l
		}
	}
}

// New returns an empty loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		tasks:  make([]func(), 0, 64),
		signal: make(chan struct{}, 1),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post queues fn. It returns false if the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	l.tasks = append(l.tasks, fn)

	// Non-blocking; the buffer of 1 coalesces signals.
	select {
	case l.signal <- struct{}{}:
	default:
	}
	return true
}

// Do posts fn and waits until it has run or ctx is done.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) tryPop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.tasks) == 0 {
		return nil, false
	}
	fn := l.tasks[0]
	l.tasks[0] = nil
	if len(l.tasks) == 1 {
		l.tasks = l.tasks[:0]
	} else {
		l.tasks = l.tasks[1:]
	}
	return fn, true
}

// Run drains the queue until ctx is done or Stop is called. Functions
// already queued when Stop is called still run.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("loop starting")
	for {
		if fn, ok := l.tryPop(); ok {
			fn()
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopping", "reason", "context cancelled")
			l.Stop()
			return ctx.Err()
		case <-l.signal:
			// The signal channel is closed by Stop.
			if l.Len() == 0 && l.isClosed() {
				l.logger.Debug("loop stopping", "reason", "stopped")
				return nil
			}
		}
	}
}

// Stop rejects further posts and makes Run return once the queue is empty.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.signal)
}

func (l *Loop) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Len returns the number of queued functions.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}
