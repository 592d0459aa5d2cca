package dataset

import "sync/atomic"

// SeqClock numbers batches with strictly increasing sequence numbers.
//
// Every Update, LookupDelete and Clear call takes the next number, and the
// cues it stores carry it in Info.Seq. Safe for concurrent use, although a
// Dataset only calls it from its own goroutine.
type SeqClock struct {
	seq atomic.Int64
}

// NewSeqClock creates a clock starting at 0.
func NewSeqClock() *SeqClock {
	return &SeqClock{}
}

// NewSeqClockAt creates a clock whose next number is start+1.
func NewSeqClockAt(start int64) *SeqClock {
	c := &SeqClock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *SeqClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last number handed out.
func (c *SeqClock) Current() int64 {
	return c.seq.Load()
}
