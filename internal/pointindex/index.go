// Package pointindex keeps a sorted, duplicate-free set of float64 points
// and answers interval lookups over it with binary search.
//
// Batched updates pick one of two strategies. Small batches are applied
// element by element (search, then shift). Large batches, or any batch
// against an empty index, mark removals, append insertions and re-sort
// once. Both leave the index sorted and unique.
//
// Index is not safe for concurrent use.
package pointindex

import (
	"math"
	"slices"

	"github.com/webtiming/timingsrc/internal/interval"
)

// SpliceThreshold is the largest batch applied with the splice strategy.
const SpliceThreshold = 100

// Strategy names the update approach chosen for a batch.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategySplice
	StrategySort
)

func (s Strategy) String() string {
	switch s {
	case StrategySplice:
		return "splice"
	case StrategySort:
		return "sort"
	default:
		return "none"
	}
}

// ChooseStrategy returns the strategy for a batch of batchLen elements
// against an index holding indexLen points.
func ChooseStrategy(indexLen, batchLen int) Strategy {
	switch {
	case batchLen == 0:
		return StrategyNone
	case indexLen == 0:
		return StrategySort
	case batchLen <= SpliceThreshold:
		return StrategySplice
	default:
		return StrategySort
	}
}

// Position is the outcome of a binary search. When Found is false, Index is
// where the value would be inserted.
type Position struct {
	Found bool
	Index int
}

// Index is a sorted set of unique points.
type Index struct {
	points []float64
}

// New returns an index holding the given points.
func New(points ...float64) *Index {
	ix := &Index{}
	ix.Update(nil, points)
	return ix
}

// Len returns the number of points.
func (ix *Index) Len() int {
	return len(ix.points)
}

// Values returns a copy of the points in ascending order.
func (ix *Index) Values() []float64 {
	return slices.Clone(ix.points)
}

// At returns the point at position i.
func (ix *Index) At(i int) float64 {
	return ix.points[i]
}

// Min returns the smallest point.
func (ix *Index) Min() (float64, bool) {
	if len(ix.points) == 0 {
		return 0, false
	}
	return ix.points[0], true
}

// Max returns the largest point.
func (ix *Index) Max() (float64, bool) {
	if len(ix.points) == 0 {
		return 0, false
	}
	return ix.points[len(ix.points)-1], true
}

// Search locates x.
func (ix *Index) Search(x float64) Position {
	lo, hi := 0, len(ix.points)-1
	for lo <= hi {
		mid := int(uint(lo+hi) >> 1)
		switch v := ix.points[mid]; {
		case v < x:
			lo = mid + 1
		case v > x:
			hi = mid - 1
		default:
			return Position{Found: true, Index: mid}
		}
	}
	return Position{Index: lo}
}

// Has reports whether x is in the index.
func (ix *Index) Has(x float64) bool {
	return ix.Search(x).Found
}

// IndexOf returns the position of x, or -1.
func (ix *Index) IndexOf(x float64) int {
	if p := ix.Search(x); p.Found {
		return p.Index
	}
	return -1
}

// Clear removes all points.
func (ix *Index) Clear() {
	ix.points = nil
}

// Update removes and inserts points in one operation and reports the
// strategy used. Removing an absent point and inserting a present one are
// both no-ops.
func (ix *Index) Update(remove, insert []float64) Strategy {
	s := ChooseStrategy(len(ix.points), len(remove)+len(insert))
	switch s {
	case StrategySplice:
		ix.updateSplice(remove, insert)
	case StrategySort:
		ix.updateSort(remove, insert)
	}
	return s
}

func (ix *Index) indexesOf(values []float64) []int {
	idx := make([]int, 0, len(values))
	for _, x := range values {
		if p := ix.Search(x); p.Found {
			idx = append(idx, p.Index)
		}
	}
	return idx
}

func (ix *Index) updateSplice(remove, insert []float64) {
	if len(ix.points) > 0 && len(remove) > 0 {
		idx := ix.indexesOf(remove)
		slices.Sort(idx)
		idx = slices.Compact(idx)
		for i := len(idx) - 1; i >= 0; i-- {
			ix.points = slices.Delete(ix.points, idx[i], idx[i]+1)
		}
	}
	for _, x := range insert {
		if p := ix.Search(x); !p.Found {
			ix.points = slices.Insert(ix.points, p.Index, x)
		}
	}
}

func (ix *Index) updateSort(remove, insert []float64) {
	if len(ix.points) > 0 && len(remove) > 0 {
		// removed slots become NaN, which sorts first
		for _, i := range ix.indexesOf(remove) {
			ix.points[i] = math.NaN()
		}
	}
	ix.points = append(ix.points, insert...)
	slices.Sort(ix.points)
	if len(remove) > 0 {
		n := 0
		for n < len(ix.points) && math.IsNaN(ix.points[n]) {
			n++
		}
		ix.points = ix.points[n:]
	}
	ix.points = slices.Compact(ix.points)
}

// ltIndex returns the index of the largest point < x, or -1.
func (ix *Index) ltIndex(x float64) int {
	p := ix.Search(x)
	return p.Index - 1
}

// leIndex returns the index of the largest point <= x, or -1.
func (ix *Index) leIndex(x float64) int {
	p := ix.Search(x)
	if p.Found {
		return p.Index
	}
	return p.Index - 1
}

// gtIndex returns the index of the smallest point > x, or -1.
func (ix *Index) gtIndex(x float64) int {
	p := ix.Search(x)
	i := p.Index
	if p.Found {
		i++
	}
	if i < len(ix.points) {
		return i
	}
	return -1
}

// geIndex returns the index of the smallest point >= x, or -1.
func (ix *Index) geIndex(x float64) int {
	p := ix.Search(x)
	if p.Index < len(ix.points) {
		return p.Index
	}
	return -1
}

// LookupIndexes returns the half-open index range [start, end) of points
// inside iv. An empty range has start == end.
func (ix *Index) LookupIndexes(iv interval.Interval) (start, end int) {
	if iv.Singular() {
		if p := ix.Search(iv.Low); p.Found {
			return p.Index, p.Index + 1
		}
		return 0, 0
	}
	if iv.LowInclude {
		start = ix.geIndex(iv.Low)
	} else {
		start = ix.gtIndex(iv.Low)
	}
	if start < 0 {
		return 0, 0
	}
	var last int
	if iv.HighInclude {
		last = ix.leIndex(iv.High)
	} else {
		last = ix.ltIndex(iv.High)
	}
	if last < start {
		return 0, 0
	}
	return start, last + 1
}

// Lookup returns the points inside iv, ascending.
func (ix *Index) Lookup(iv interval.Interval) []float64 {
	start, end := ix.LookupIndexes(iv)
	return slices.Clone(ix.points[start:end])
}

// SpanIndexes returns the index range [start, end) of points p with
// lo <= p <= hi. lo and hi may both be the same infinity.
func (ix *Index) SpanIndexes(lo, hi float64) (start, end int) {
	start = ix.geIndex(lo)
	if start < 0 {
		return 0, 0
	}
	last := ix.leIndex(hi)
	if last < start {
		return 0, 0
	}
	return start, last + 1
}

// Span returns the points in the closed span [lo, hi], ascending.
func (ix *Index) Span(lo, hi float64) []float64 {
	start, end := ix.SpanIndexes(lo, hi)
	return slices.Clone(ix.points[start:end])
}

// RemoveInSlice removes the given points, which must be sorted ascending.
// Only the part of the index between the first and last point is touched,
// so this is efficient for clustered removals.
func (ix *Index) RemoveInSlice(sorted []float64) {
	if len(sorted) == 0 {
		return
	}
	start, end := ix.SpanIndexes(sorted[0], sorted[len(sorted)-1])
	rd, wr, rm := start, start, 0
	for rd < end && rm < len(sorted) {
		switch v, x := ix.points[rd], sorted[rm]; {
		case v < x:
			ix.points[wr] = v
			wr++
			rd++
		case v == x:
			rd++
			rm++
		default:
			rm++
		}
	}
	ix.points = slices.Delete(ix.points, wr, rd)
}

// Sorted reports whether the points are strictly ascending.
func (ix *Index) Sorted() bool {
	for i := 1; i < len(ix.points); i++ {
		if !(ix.points[i-1] < ix.points[i]) {
			return false
		}
	}
	return true
}
