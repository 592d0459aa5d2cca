// Package notify provides per-instance subscriber lists.
//
// Every publisher owns its own List. Nothing is shared between instances.
package notify

import "sync"

// Handle identifies one subscription.
type Handle uint64

// List is an ordered set of handlers for values of type T.
//
// Handlers run synchronously on the publishing goroutine, in subscription
// order. Publish iterates a snapshot, so a handler may add or remove
// subscriptions (including its own) without affecting the current round.
type List[T any] struct {
	mu       sync.Mutex
	next     Handle
	handlers []entry[T]
}

type entry[T any] struct {
	h  Handle
	fn func(T)
}

// Add registers fn and returns its handle.
func (l *List[T]) Add(fn func(T)) Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	l.handlers = append(l.handlers, entry[T]{h: l.next, fn: fn})
	return l.next
}

// Remove unregisters h. Removing an unknown handle is a no-op.
func (l *List[T]) Remove(h Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.handlers {
		if e.h == h {
			l.handlers = append(l.handlers[:i:i], l.handlers[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscriptions.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.handlers)
}

// Publish delivers v to every handler subscribed before the call.
func (l *List[T]) Publish(v T) {
	l.mu.Lock()
	snapshot := l.handlers
	l.mu.Unlock()
	for _, e := range snapshot {
		e.fn(v)
	}
}
