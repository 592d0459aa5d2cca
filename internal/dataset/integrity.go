package dataset

import "slices"

// Stats summarizes the index state.
type Stats struct {
	Cues            int
	WithInterval    int
	Points          int
	BucketCues      map[float64]int
	BucketPoints    map[float64]int
	LongestByBucket map[float64]float64
}

// Integrity verifies every bucket and checks that bucket membership matches
// the cue store exactly: each cue with an interval is referenced by the one
// bucket its length selects, and buckets reference no other keys.
//
// The cost is proportional to the number of cues. Intended for tests and
// diagnostics.
func (ds *Dataset) Integrity() error {
	inBuckets := map[string]float64{}
	for _, b := range ds.buckets {
		if err := b.Integrity(); err != nil {
			return err
		}
		for key := range b.Keys() {
			if other, dup := inBuckets[key]; dup {
				return NewConsistencyError("cue %q in buckets %g and %g", key, other, b.MaxLength())
			}
			inBuckets[key] = b.MaxLength()
		}
	}
	withInterval := 0
	for key, c := range ds.cues {
		if c.Key != key {
			return NewConsistencyError("cue stored under %q has key %q", key, c.Key)
		}
		if c.Interval == nil {
			if _, ok := inBuckets[key]; ok {
				return NewConsistencyError("cue %q without interval is indexed", key)
			}
			continue
		}
		withInterval++
		id, ok := inBuckets[key]
		if !ok {
			return NewConsistencyError("buckets missing cue %q", key)
		}
		if want := ds.bucketFor(c.Interval).MaxLength(); want != id {
			return NewConsistencyError("cue %q in bucket %g, belongs in %g", key, id, want)
		}
	}
	if len(inBuckets) != withInterval {
		var extra []string
		for key := range inBuckets {
			if c, ok := ds.cues[key]; !ok || c.Interval == nil {
				extra = append(extra, key)
			}
		}
		slices.Sort(extra)
		return NewConsistencyError("buckets hold unknown cues %v", extra)
	}
	return nil
}

// Stats reports cue and point counts per bucket.
func (ds *Dataset) Stats() Stats {
	st := Stats{
		Cues:            len(ds.cues),
		BucketCues:      map[float64]int{},
		BucketPoints:    map[float64]int{},
		LongestByBucket: map[float64]float64{},
	}
	for _, c := range ds.cues {
		if c.Interval == nil {
			continue
		}
		st.WithInterval++
		id := ds.bucketFor(c.Interval).MaxLength()
		st.BucketCues[id]++
		if l := c.Interval.Length(); l > st.LongestByBucket[id] {
			st.LongestByBucket[id] = l
		}
	}
	for _, b := range ds.buckets {
		st.BucketPoints[b.MaxLength()] = b.Len()
		st.Points += b.Len()
	}
	return st
}
