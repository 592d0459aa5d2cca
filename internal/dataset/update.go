package dataset

import (
	"slices"

	"github.com/webtiming/timingsrc/internal/interval"
)

type updateConfig struct {
	equals    EqualsFunc
	chaining  bool
	integrity bool
}

// UpdateOption configures a single Update call.
type UpdateOption func(*updateConfig)

// WithEquals sets the data comparison. The default is DeepEqual.
func WithEquals(fn EqualsFunc) UpdateOption {
	return func(c *updateConfig) {
		c.equals = fn
	}
}

// WithChaining controls how repeated keys in one batch are reported.
// With chaining (the default) the item for a key always has the pre-batch
// cue as Old and the last state as New. Without it each step replaces the
// item and Old is the previous step's cue.
func WithChaining(on bool) UpdateOption {
	return func(c *updateConfig) {
		c.chaining = on
	}
}

// WithIntegrityCheck runs Integrity after the batch and panics on failure.
// Diagnostic use only: the check visits every cue.
func WithIntegrityCheck() UpdateOption {
	return func(c *updateConfig) {
		c.integrity = true
	}
}

func validateArgs(args []Arg) error {
	for i, a := range args {
		if a.Key == "" {
			return NewArgumentError(i, "", "cue key is empty")
		}
		if a.HasInterval && a.Interval != nil {
			if err := a.Interval.Validate(); err != nil {
				return NewArgumentError(i, a.Key, "%v", err)
			}
		}
	}
	return nil
}

// Update applies args in order as one batch and returns it.
//
// All args are validated first. An invalid arg rejects the batch with an
// argument error and nothing is changed.
func (ds *Dataset) Update(args []Arg, opts ...UpdateOption) (*Batch, error) {
	cfg := updateConfig{equals: DeepEqual, chaining: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validateArgs(args); err != nil {
		return nil, err
	}

	u := &updater{
		ds:     ds,
		cfg:    cfg,
		batch:  newBatch(ds.seq.Next()),
		stages: map[*Bucket]*Stage{},
	}
	for _, a := range args {
		u.apply(a)
	}
	// flush in bucket order so that index updates are reproducible
	for _, b := range ds.buckets {
		if s, ok := u.stages[b]; ok {
			s.Flush()
		}
	}

	batch := u.batch
	batch.Relevance = relevance(batch.Items)
	ds.publish(batch)

	if cfg.integrity {
		if err := ds.Integrity(); err != nil {
			panic(err)
		}
	}
	return batch, nil
}

// AddCue inserts or replaces a single cue.
func (ds *Dataset) AddCue(key string, iv *interval.Interval, data any, opts ...UpdateOption) (*Batch, error) {
	return ds.Update([]Arg{Put(key, iv, data)}, opts...)
}

// RemoveCue deletes a single cue.
func (ds *Dataset) RemoveCue(key string, opts ...UpdateOption) (*Batch, error) {
	return ds.Update([]Arg{Remove(key)}, opts...)
}

type updater struct {
	ds     *Dataset
	cfg    updateConfig
	batch  *Batch
	stages map[*Bucket]*Stage
}

func (u *updater) stage(b *Bucket) *Stage {
	s, ok := u.stages[b]
	if !ok {
		s = b.Stage()
		u.stages[b] = s
	}
	return s
}

// target resolves a into the fields of the next cue state, or nil when the
// key ends up with neither interval nor data.
func target(current *Cue, a Arg) *Cue {
	next := &Cue{Key: a.Key}
	switch {
	case current == nil:
		if a.HasInterval {
			next.Interval = a.Interval
		}
		if a.HasData {
			next.Data = a.Data
		}
	case !a.HasInterval && !a.HasData:
		return nil
	case !a.HasData:
		next.Interval, next.Data = a.Interval, current.Data
	case !a.HasInterval:
		next.Interval, next.Data = current.Interval, a.Data
	default:
		next.Interval, next.Data = a.Interval, a.Data
	}
	if next.Interval == nil && next.Data == nil {
		return nil
	}
	if next.Interval != nil && (current == nil || next.Interval != current.Interval) {
		iv := *next.Interval
		next.Interval = &iv
	}
	return next
}

func (u *updater) apply(a Arg) {
	ds := u.ds
	current := ds.cues[a.Key]
	next := target(current, a)
	delta := ComputeDelta(current, next, u.cfg.equals)

	var stored *Cue
	switch {
	case delta.Noop():
		stored = current
	case current == nil:
		ts := ds.now()
		next.Info = Info{CreatedAt: ts, ChangedAt: ts, Seq: u.batch.Seq}
		stored = next
		ds.cues[a.Key] = stored
	case next == nil:
		delete(ds.cues, a.Key)
	default:
		next.Info = Info{
			CreatedAt: current.Info.CreatedAt,
			ChangedAt: ds.now(),
			Version:   current.Info.Version + 1,
			Seq:       u.batch.Seq,
		}
		stored = next
		ds.cues[a.Key] = stored
	}

	item := BatchItem{
		EventItem: EventItem{Key: a.Key, New: stored, Old: current},
		Delta:     delta,
	}
	if u.cfg.chaining {
		if prev, ok := u.batch.Get(a.Key); ok {
			item.Old = prev.Old
			item.Delta = ComputeDelta(item.Old, stored, u.cfg.equals)
		}
	}
	u.batch.set(item)

	if delta.Interval != Noop {
		u.move(a.Key, current, stored)
	}
}

func endpointPoints(c *Cue) []float64 {
	if c == nil || c.Interval == nil {
		return nil
	}
	if c.Interval.Singular() {
		return []float64{c.Interval.Low}
	}
	return []float64{c.Interval.Low, c.Interval.High}
}

// move updates bucket membership from old to next. Within one bucket only
// the points that changed are touched; across buckets every point moves.
func (u *updater) move(key string, old, next *Cue) {
	oldPts, newPts := endpointPoints(old), endpointPoints(next)
	var oldB, newB *Bucket
	if len(oldPts) > 0 {
		oldB = u.ds.bucketFor(old.Interval)
	}
	if len(newPts) > 0 {
		newB = u.ds.bucketFor(next.Interval)
	}
	if oldB != nil && oldB == newB {
		oldPts, newPts = pointDiff(oldPts, newPts), pointDiff(newPts, oldPts)
	}
	if oldB != nil && len(oldPts) > 0 {
		s := u.stage(oldB)
		for _, p := range oldPts {
			s.Del(p, key)
		}
	}
	if newB != nil && len(newPts) > 0 {
		s := u.stage(newB)
		for _, p := range newPts {
			s.Add(p, key)
		}
	}
}

// pointDiff returns the points of a not present in b.
func pointDiff(a, b []float64) []float64 {
	return slices.DeleteFunc(slices.Clone(a), func(p float64) bool {
		return slices.Contains(b, p)
	})
}
