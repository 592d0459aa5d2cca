// Package dataset stores keyed cues and indexes their intervals for fast
// lookup against a query interval.
//
// Cues are partitioned into buckets by interval length. Each bucket keeps a
// point map (point to cue keys) and a sorted point index. Update applies a
// whole batch of mutations, stages endpoint changes in the touched buckets
// and flushes every bucket once at the end, so observers only ever see the
// state after a complete batch.
//
// Observers come in two kinds:
//
//   - Subscribe delivers the event items of each batch, without no-ops.
//   - AddCallback delivers the raw Batch including no-op items and the
//     relevance interval. Sequencers use this channel.
//
// Event subscribers are notified before batch callbacks.
//
// A Dataset is not safe for concurrent use. Run all calls on one goroutine
// (see package loop).
package dataset

import (
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/webtiming/timingsrc/internal/interval"
	"github.com/webtiming/timingsrc/internal/notify"
)

// DefaultBucketThresholds are the maximum interval lengths of the buckets.
var DefaultBucketThresholds = []float64{0, 10, 100, 1000, 10000, 100000, math.Inf(1)}

// Metrics receives dataset measurements. *metrics.Collectors implements it.
type Metrics interface {
	ObserveBatch(items int)
	SetCues(n int)
}

// Dataset owns every cue record and the bucket indexes over them.
type Dataset struct {
	cues    map[string]*Cue
	buckets []*Bucket
	seq     *SeqClock
	now     func() time.Time
	logger  *slog.Logger
	metrics Metrics

	events    notify.List[[]EventItem]
	callbacks notify.List[*Batch]
}

// Option configures a Dataset.
type Option func(*Dataset)

// WithBucketThresholds replaces the bucket maximum lengths. Thresholds must
// be ascending; the last one should be +Inf so that every cue fits.
func WithBucketThresholds(thresholds ...float64) Option {
	return func(ds *Dataset) {
		ds.buckets = nil
		for _, t := range thresholds {
			ds.buckets = append(ds.buckets, NewBucket(t, ds.get))
		}
	}
}

// WithNow sets the wall clock used for cue info timestamps.
func WithNow(now func() time.Time) Option {
	return func(ds *Dataset) {
		ds.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ds *Dataset) {
		ds.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(ds *Dataset) {
		ds.metrics = m
	}
}

// WithSeqClock sets the batch sequence clock, e.g. to resume numbering.
func WithSeqClock(c *SeqClock) Option {
	return func(ds *Dataset) {
		ds.seq = c
	}
}

// New creates an empty dataset.
func New(opts ...Option) *Dataset {
	ds := &Dataset{
		cues:   map[string]*Cue{},
		seq:    NewSeqClock(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, t := range DefaultBucketThresholds {
		ds.buckets = append(ds.buckets, NewBucket(t, ds.get))
	}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

func (ds *Dataset) get(key string) *Cue {
	return ds.cues[key]
}

func (ds *Dataset) bucketFor(iv *interval.Interval) *Bucket {
	length := iv.Length()
	for _, b := range ds.buckets {
		if b.Accepts(length) {
			return b
		}
	}
	return ds.buckets[len(ds.buckets)-1]
}

// Get returns the cue stored under key.
func (ds *Dataset) Get(key string) (*Cue, bool) {
	c, ok := ds.cues[key]
	return c, ok
}

// Has reports whether key is stored.
func (ds *Dataset) Has(key string) bool {
	_, ok := ds.cues[key]
	return ok
}

// Len returns the number of cues.
func (ds *Dataset) Len() int {
	return len(ds.cues)
}

// Keys returns all keys, sorted.
func (ds *Dataset) Keys() []string {
	keys := make([]string, 0, len(ds.cues))
	for k := range ds.cues {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Values returns all cues ordered by key.
func (ds *Dataset) Values() []*Cue {
	keys := ds.Keys()
	out := make([]*Cue, len(keys))
	for i, k := range keys {
		out[i] = ds.cues[k]
	}
	return out
}

// Subscribe registers fn for the event items of every batch. Batches
// without a change are not delivered.
func (ds *Dataset) Subscribe(fn func([]EventItem)) notify.Handle {
	return ds.events.Add(fn)
}

// Unsubscribe removes an event subscription.
func (ds *Dataset) Unsubscribe(h notify.Handle) {
	ds.events.Remove(h)
}

// AddCallback registers fn for every non-empty batch, no-op items included.
func (ds *Dataset) AddCallback(fn func(*Batch)) notify.Handle {
	return ds.callbacks.Add(fn)
}

// RemoveCallback removes a batch callback.
func (ds *Dataset) RemoveCallback(h notify.Handle) {
	ds.callbacks.Remove(h)
}

// Lookup returns the cues whose interval relates to iv by a relation in
// mask, concatenated bucket by bucket.
func (ds *Dataset) Lookup(iv interval.Interval, mask interval.Mask) []*Cue {
	var out []*Cue
	for _, b := range ds.buckets {
		out = append(out, b.Lookup(iv, mask)...)
	}
	return out
}

// LookupEndpoints returns every cue endpoint inside iv.
func (ds *Dataset) LookupEndpoints(iv interval.Interval) []EndpointItem {
	var out []EndpointItem
	for _, b := range ds.buckets {
		out = append(out, b.LookupEndpoints(iv)...)
	}
	return out
}

// LookupDelete removes the cues matching iv and mask and reports them as
// deletions.
func (ds *Dataset) LookupDelete(iv interval.Interval, mask interval.Mask) *Batch {
	var removed []*Cue
	for _, b := range ds.buckets {
		removed = append(removed, b.LookupDelete(iv, mask)...)
	}
	for _, c := range removed {
		delete(ds.cues, c.Key)
	}
	return ds.publishRemoval(removed)
}

// Clear removes every cue and reports them as deletions.
func (ds *Dataset) Clear() *Batch {
	for _, b := range ds.buckets {
		b.Clear()
	}
	removed := ds.Values()
	ds.cues = map[string]*Cue{}
	return ds.publishRemoval(removed)
}

func (ds *Dataset) publishRemoval(removed []*Cue) *Batch {
	batch := newBatch(ds.seq.Next())
	for _, c := range removed {
		batch.set(BatchItem{
			EventItem: EventItem{Key: c.Key, Old: c},
			Delta:     ComputeDelta(c, nil, nil),
		})
	}
	batch.Relevance = relevance(batch.Items)
	ds.publish(batch)
	return batch
}

func (ds *Dataset) publish(batch *Batch) {
	events := batch.Events()
	if ds.metrics != nil {
		ds.metrics.ObserveBatch(batch.Len())
		ds.metrics.SetCues(len(ds.cues))
	}
	ds.logger.Debug("dataset batch",
		"seq", batch.Seq,
		"items", batch.Len(),
		"events", len(events),
		"cues", len(ds.cues))
	if len(events) > 0 {
		ds.events.Publish(events)
	}
	if batch.Len() > 0 {
		ds.callbacks.Publish(batch)
	}
}

// relevance spans the endpoints of every old and new interval in items.
func relevance(items []BatchItem) *interval.Interval {
	var low, high interval.Endpoint
	found := false
	for _, it := range items {
		for _, c := range []*Cue{it.New, it.Old} {
			if c == nil || c.Interval == nil {
				continue
			}
			lo, hi := c.Interval.EndpointLow(), c.Interval.EndpointHigh()
			if !found {
				low, high, found = lo, hi, true
				continue
			}
			low = interval.MinEndpoint(low, lo)
			high = interval.MaxEndpoint(high, hi)
		}
	}
	if !found {
		return nil
	}
	iv, err := interval.FromEndpoints(low, high)
	if err != nil {
		panic(NewConsistencyError("relevance interval: %v", err))
	}
	return &iv
}
