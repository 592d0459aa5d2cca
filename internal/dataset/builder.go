package dataset

import "github.com/webtiming/timingsrc/internal/interval"

// Builder accumulates cue mutations and submits them as one batch.
type Builder struct {
	ds   *Dataset
	opts []UpdateOption
	args []Arg
}

// NewBuilder returns a builder submitting to ds with opts.
func (ds *Dataset) NewBuilder(opts ...UpdateOption) *Builder {
	return &Builder{ds: ds, opts: opts}
}

// AddCue queues an insert or replace of key.
func (b *Builder) AddCue(key string, iv *interval.Interval, data any) *Builder {
	b.args = append(b.args, Put(key, iv, data))
	return b
}

// RemoveCue queues a delete of key.
func (b *Builder) RemoveCue(key string) *Builder {
	b.args = append(b.args, Remove(key))
	return b
}

// Add queues a raw argument.
func (b *Builder) Add(a Arg) *Builder {
	b.args = append(b.args, a)
	return b
}

// Len returns the number of queued arguments.
func (b *Builder) Len() int {
	return len(b.args)
}

// Reset drops queued arguments.
func (b *Builder) Reset() {
	b.args = nil
}

// Submit applies the queued arguments and resets the builder. On error the
// queue is kept so the caller can inspect or fix it.
func (b *Builder) Submit() (*Batch, error) {
	batch, err := b.ds.Update(b.args, b.opts...)
	if err != nil {
		return nil, err
	}
	b.args = nil
	return batch, nil
}
