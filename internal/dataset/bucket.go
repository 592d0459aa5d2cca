package dataset

import (
	"math"
	"slices"

	"github.com/webtiming/timingsrc/internal/interval"
	"github.com/webtiming/timingsrc/internal/pointindex"
)

// Bucket indexes the endpoints of cues whose interval length is at most
// MaxLength.
//
// The point map associates each point with the keys of cues having that
// point as an endpoint. The point index holds the sorted set of points.
// Changes go through a Stage, which buffers point map edits and applies them
// to the point index in a single update on Flush. Lookups are rejected while
// a stage is open.
type Bucket struct {
	maxLength float64
	points    map[float64][]string
	index     *pointindex.Index
	resolve   func(key string) *Cue
	stage     *Stage
}

// NewBucket creates a bucket resolving keys through resolve.
func NewBucket(maxLength float64, resolve func(key string) *Cue) *Bucket {
	return &Bucket{
		maxLength: maxLength,
		points:    map[float64][]string{},
		index:     pointindex.New(),
		resolve:   resolve,
	}
}

// MaxLength returns the longest interval this bucket accepts.
func (b *Bucket) MaxLength() float64 {
	return b.maxLength
}

// Accepts reports whether length fits this bucket.
func (b *Bucket) Accepts(length float64) bool {
	return length <= b.maxLength
}

// Len returns the number of indexed points.
func (b *Bucket) Len() int {
	return b.index.Len()
}

// Staged reports whether a stage is open.
func (b *Bucket) Staged() bool {
	return b.stage != nil
}

// Stage is an open set of endpoint edits on a bucket.
type Stage struct {
	b       *Bucket
	created map[float64]struct{}
	dirty   map[float64]struct{}
	done    bool
}

// Stage opens an edit transaction. Only one may be open at a time.
func (b *Bucket) Stage() *Stage {
	if b.stage != nil {
		panic(NewConsistencyError("bucket %g: stage already open", b.maxLength))
	}
	b.stage = &Stage{
		b:       b,
		created: map[float64]struct{}{},
		dirty:   map[float64]struct{}{},
	}
	return b.stage
}

func (s *Stage) check() {
	if s.done {
		panic(NewConsistencyError("bucket %g: stage already flushed", s.b.maxLength))
	}
}

// Add records that key has an endpoint at point.
func (s *Stage) Add(point float64, key string) {
	s.check()
	keys, ok := s.b.points[point]
	if !ok {
		s.created[point] = struct{}{}
	}
	s.b.points[point] = append(keys, key)
}

// Del removes one occurrence of key at point.
func (s *Stage) Del(point float64, key string) {
	s.check()
	keys, ok := s.b.points[point]
	if !ok {
		return
	}
	if i := slices.Index(keys, key); i >= 0 {
		keys = slices.Delete(keys, i, i+1)
		s.b.points[point] = keys
	}
	if len(keys) == 0 {
		s.dirty[point] = struct{}{}
	}
}

// Flush commits the stage: points created and still referenced are
// inserted into the point index, points left empty are removed from both
// the point map and the index. The stage is closed afterwards.
func (s *Stage) Flush() pointindex.Strategy {
	s.check()
	s.done = true
	b := s.b
	b.stage = nil

	var remove, insert []float64
	for p := range s.created {
		if len(b.points[p]) > 0 {
			insert = append(insert, p)
		} else {
			delete(b.points, p)
		}
	}
	for p := range s.dirty {
		keys, ok := b.points[p]
		if !ok {
			continue
		}
		if len(keys) == 0 {
			remove = append(remove, p)
			delete(b.points, p)
		}
	}
	// map iteration order is random; keep index updates reproducible
	slices.Sort(remove)
	slices.Sort(insert)
	return b.index.Update(remove, insert)
}

func (b *Bucket) checkReadable() {
	if b.stage != nil {
		panic(NewConsistencyError("bucket %g: lookup with open stage", b.maxLength))
	}
}

func (b *Bucket) cue(point float64, key string) *Cue {
	c := b.resolve(key)
	if c == nil || c.Interval == nil {
		panic(NewIndexCorruption(b.maxLength, point, key))
	}
	return c
}

// LookupEndpoints returns every cue endpoint inside iv, in point order.
// A cue appears twice when both its endpoints are inside.
func (b *Bucket) LookupEndpoints(iv interval.Interval) []EndpointItem {
	b.checkReadable()
	if len(b.points) == 0 {
		return nil
	}
	var out []EndpointItem
	for _, p := range b.index.Span(iv.Low, iv.High) {
		for _, key := range b.points[p] {
			c := b.cue(p, key)
			var ep interval.Endpoint
			switch p {
			case c.Interval.Low:
				ep = c.Interval.EndpointLow()
			case c.Interval.High:
				ep = c.Interval.EndpointHigh()
			default:
				panic(NewIndexCorruption(b.maxLength, p, key))
			}
			if iv.CoversEndpoint(ep) {
				out = append(out, EndpointItem{Endpoint: ep, Cue: c})
			}
		}
	}
	return out
}

// lookupCues returns the distinct cues with an endpoint in [lo, hi].
func (b *Bucket) lookupCues(lo, hi float64) []*Cue {
	if len(b.points) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	var out []*Cue
	for _, p := range b.index.Span(lo, hi) {
		for _, key := range b.points[p] {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, b.cue(p, key))
		}
	}
	return out
}

// Lookup returns the cues whose interval relates to iv by a relation in
// mask. Outside relations are ignored.
//
// Cues with an endpoint inside iv are found through the point index. Cues
// covering iv have both endpoints outside it; their low endpoint lies in
// [iv.High - MaxLength, iv.Low], which is searched separately. For an iv
// unbounded below that window is the -Inf point alone.
func (b *Bucket) Lookup(iv interval.Interval, mask interval.Mask) []*Cue {
	b.checkReadable()
	if len(b.points) == 0 {
		return nil
	}
	mask &= interval.MatchCovers

	if mask == interval.Equals.Mask() {
		var out []*Cue
		for _, key := range b.points[iv.Low] {
			if c := b.cue(iv.Low, key); c.Interval.Match(iv, mask) {
				out = append(out, c)
			}
		}
		return out
	}

	// the two phases test disjoint relations, so their results never overlap
	var out []*Cue
	if m := mask & interval.MatchOverlap; m != 0 {
		for _, c := range b.lookupCues(iv.Low, iv.High) {
			if c.Interval.Match(iv, m) {
				out = append(out, c)
			}
		}
	}
	if iv.Length() > b.maxLength {
		return out
	}
	if mask.Has(interval.Covers) {
		low, high := iv.High-b.maxLength, iv.Low
		if math.IsNaN(low) {
			low = math.Inf(-1)
		}
		for _, c := range b.lookupCues(math.Min(low, high), high) {
			if c.Interval.Match(iv, interval.Covers.Mask()) {
				out = append(out, c)
			}
		}
	}
	return out
}

// LookupDelete removes the cues matching iv and mask from the bucket and
// returns them. The caller owns removing them from the cue store.
func (b *Bucket) LookupDelete(iv interval.Interval, mask interval.Mask) []*Cue {
	cues := b.Lookup(iv, mask)
	var emptied []float64
	for _, c := range cues {
		pts := []float64{c.Interval.Low}
		if !c.Interval.Singular() {
			pts = append(pts, c.Interval.High)
		}
		for _, p := range pts {
			keys := b.points[p]
			if i := slices.Index(keys, c.Key); i >= 0 {
				keys = slices.Delete(keys, i, i+1)
			}
			if len(keys) == 0 {
				delete(b.points, p)
				emptied = append(emptied, p)
			} else {
				b.points[p] = keys
			}
		}
	}
	slices.Sort(emptied)
	b.index.RemoveInSlice(emptied)
	return cues
}

// Clear drops every point.
func (b *Bucket) Clear() {
	b.checkReadable()
	b.points = map[float64][]string{}
	b.index.Clear()
}

// Keys returns the distinct keys referenced by the bucket.
func (b *Bucket) Keys() map[string]struct{} {
	keys := map[string]struct{}{}
	for _, ks := range b.points {
		for _, k := range ks {
			keys[k] = struct{}{}
		}
	}
	return keys
}

// Integrity verifies that the point map and point index agree and that
// every referenced cue belongs here.
func (b *Bucket) Integrity() error {
	if b.stage != nil {
		return NewConsistencyError("bucket %g: stage open", b.maxLength)
	}
	if !b.index.Sorted() {
		return NewConsistencyError("bucket %g: point index not sorted and unique", b.maxLength)
	}
	if b.index.Len() != len(b.points) {
		return NewConsistencyError("bucket %g: %d indexed points, %d mapped points",
			b.maxLength, b.index.Len(), len(b.points))
	}
	for _, p := range b.index.Values() {
		keys, ok := b.points[p]
		if !ok {
			return NewConsistencyError("bucket %g: indexed point %g missing from point map", b.maxLength, p)
		}
		if len(keys) == 0 {
			return NewConsistencyError("bucket %g: empty point map entry at %g", b.maxLength, p)
		}
		for _, key := range keys {
			c := b.resolve(key)
			if c == nil || c.Interval == nil {
				return NewIndexCorruption(b.maxLength, p, key)
			}
			if c.Interval.Low != p && c.Interval.High != p {
				return NewIndexCorruption(b.maxLength, p, key)
			}
			if !b.Accepts(c.Interval.Length()) {
				return NewConsistencyError("bucket %g: cue %q length %g exceeds bucket",
					b.maxLength, key, c.Interval.Length())
			}
			for _, ep := range []float64{c.Interval.Low, c.Interval.High} {
				if !slices.Contains(b.points[ep], key) {
					return NewIndexCorruption(b.maxLength, ep, key)
				}
			}
		}
		if dup := firstDuplicate(keys); dup != "" {
			return NewConsistencyError("bucket %g: key %q listed twice at %g", b.maxLength, dup, p)
		}
	}
	return nil
}

func firstDuplicate(keys []string) string {
	if len(keys) < 2 {
		return ""
	}
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			return k
		}
		seen[k] = struct{}{}
	}
	return ""
}
