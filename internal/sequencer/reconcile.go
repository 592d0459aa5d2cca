package sequencer

import (
	"cmp"
	"slices"

	"github.com/webtiming/timingsrc/internal/dataset"
	"github.com/webtiming/timingsrc/internal/interval"
)

// Strategy selects how a dataset batch is reconciled with the active set.
type Strategy int

const (
	// FromEvents classifies every changed cue of the batch against the
	// active interval.
	FromEvents Strategy = iota
	// FromLookup looks up the active interval again and diffs the result
	// with the current active set.
	FromLookup
)

func (s Strategy) String() string {
	if s == FromLookup {
		return "lookup"
	}
	return "events"
}

// Policy picks a Strategy from the batch size and the active set size.
// Both strategies produce the same transitions.
type Policy func(batchLen, activeLen int) Strategy

const (
	batchThreshold  = 5000
	activeThreshold = 5000
)

// DefaultPolicy uses FromLookup for large batches unless the active set is
// large as well.
func DefaultPolicy(batchLen, activeLen int) Strategy {
	if batchLen > batchThreshold && activeLen < activeThreshold {
		return FromLookup
	}
	return FromEvents
}

// Always returns a policy that ignores sizes.
func Always(s Strategy) Policy {
	return func(int, int) Strategy { return s }
}

// transitions groups the items of one reconciliation.
type transitions struct {
	exit   []dataset.EventItem
	change []dataset.EventItem
	enter  []dataset.EventItem
}

func (s *Sequencer) fromEvents(batch *dataset.Batch, active interval.Interval) transitions {
	var tr transitions
	for _, item := range batch.Items {
		if item.Delta.Noop() {
			continue
		}
		_, isActive := s.active[item.Key]
		shouldBe := item.New != nil && item.New.Interval != nil &&
			item.New.Interval.Match(active, matchMask)
		switch {
		case isActive && !shouldBe:
			tr.exit = append(tr.exit, dataset.EventItem{Key: item.Key, Old: s.active[item.Key]})
		case !isActive && shouldBe:
			tr.enter = append(tr.enter, dataset.EventItem{Key: item.Key, New: item.New})
		case isActive && shouldBe:
			tr.change = append(tr.change, dataset.EventItem{Key: item.Key, New: item.New, Old: s.active[item.Key]})
		}
	}
	return tr
}

func (s *Sequencer) fromLookup(batch *dataset.Batch, active interval.Interval) transitions {
	next := s.lookupActive(active)
	var tr transitions
	for _, item := range batch.Items {
		if item.Delta.Noop() {
			continue
		}
		old, was := s.active[item.Key]
		if _, is := next[item.Key]; was && is {
			tr.change = append(tr.change, dataset.EventItem{Key: item.Key, New: item.New, Old: old})
		}
	}
	for key, c := range s.active {
		if _, ok := next[key]; !ok {
			tr.exit = append(tr.exit, dataset.EventItem{Key: key, Old: c})
		}
	}
	for key, c := range next {
		if _, ok := s.active[key]; !ok {
			tr.enter = append(tr.enter, dataset.EventItem{Key: key, New: c})
		}
	}
	return tr
}

// apply updates the active set and returns the items sorted for direction.
func (s *Sequencer) apply(tr transitions, direction int) []dataset.EventItem {
	for _, it := range tr.exit {
		delete(s.active, it.Key)
	}
	for _, it := range tr.change {
		s.active[it.Key] = it.New
	}
	for _, it := range tr.enter {
		s.active[it.Key] = it.New
	}
	items := make([]dataset.EventItem, 0, len(tr.exit)+len(tr.change)+len(tr.enter))
	items = append(items, tr.exit...)
	items = append(items, tr.change...)
	items = append(items, tr.enter...)
	sortItems(items, direction)
	return items
}

// diff replaces the active set with next and reports exits and enters.
func (s *Sequencer) diff(next map[string]*dataset.Cue) transitions {
	var tr transitions
	for key, c := range s.active {
		if _, ok := next[key]; !ok {
			tr.exit = append(tr.exit, dataset.EventItem{Key: key, Old: c})
		}
	}
	for key, c := range next {
		if _, ok := s.active[key]; !ok {
			tr.enter = append(tr.enter, dataset.EventItem{Key: key, New: c})
		}
	}
	return tr
}

func itemCue(it dataset.EventItem) *dataset.Cue {
	if it.New != nil {
		return it.New
	}
	return it.Old
}

// kindRank orders exit before change before enter when intervals tie.
func kindRank(it dataset.EventItem) int {
	switch {
	case it.New == nil:
		return 0
	case it.Old != nil:
		return 1
	default:
		return 2
	}
}

func compareCues(a, b *dataset.Cue, direction int) int {
	switch {
	case a.Interval == nil && b.Interval == nil:
		return 0
	case a.Interval == nil:
		return 1
	case b.Interval == nil:
		return -1
	}
	if direction >= 0 {
		return interval.CmpLow(*a.Interval, *b.Interval)
	}
	return -interval.CmpHigh(*a.Interval, *b.Interval)
}

// sortItems orders items by cue low endpoint when moving forwards (or not
// at all) and by descending high endpoint when moving backwards.
func sortItems(items []dataset.EventItem, direction int) {
	slices.SortFunc(items, func(a, b dataset.EventItem) int {
		if c := compareCues(itemCue(a), itemCue(b), direction); c != 0 {
			return c
		}
		if c := cmp.Compare(kindRank(a), kindRank(b)); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
}

// sortCues orders cues the way sortItems orders items.
func sortCues(cues []*dataset.Cue, direction int) {
	slices.SortFunc(cues, func(a, b *dataset.Cue) int {
		if c := compareCues(a, b, direction); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
}
