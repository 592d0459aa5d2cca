package sequencer

import "github.com/webtiming/timingsrc/internal/dataset"

// Has reports whether key is active.
func (s *Sequencer) Has(key string) bool {
	_, ok := s.active[key]
	return ok
}

// Get returns the active cue for key.
func (s *Sequencer) Get(key string) (*dataset.Cue, bool) {
	c, ok := s.active[key]
	return c, ok
}

// Len returns the number of active cues.
func (s *Sequencer) Len() int {
	return len(s.active)
}

// Values returns the active cues in movement order: by low endpoint when
// moving forwards or standing still, by descending high endpoint when
// moving backwards.
func (s *Sequencer) Values() []*dataset.Cue {
	cues := make([]*dataset.Cue, 0, len(s.active))
	for _, c := range s.active {
		cues = append(cues, c)
	}
	if len(cues) > 1 {
		sortCues(cues, s.Direction())
	}
	return cues
}

// Keys returns the active keys in the order of Values.
func (s *Sequencer) Keys() []string {
	cues := s.Values()
	keys := make([]string, len(cues))
	for i, c := range cues {
		keys[i] = c.Key
	}
	return keys
}

// initItems reports the active set as enter items.
func (s *Sequencer) initItems() []dataset.EventItem {
	cues := s.Values()
	items := make([]dataset.EventItem, len(cues))
	for i, c := range cues {
		items[i] = dataset.EventItem{Key: c.Key, New: c}
	}
	return items
}

// OnUpdate registers fn for every list of transitions. fn immediately
// receives the current active set as enter items, possibly empty.
func (s *Sequencer) OnUpdate(fn func([]dataset.EventItem)) (unsubscribe func()) {
	h := s.updates.Add(fn)
	fn(s.initItems())
	return func() { s.updates.Remove(h) }
}

// OnChange registers fn for every enter and change transition. fn
// immediately receives one enter item per active cue.
func (s *Sequencer) OnChange(fn func(dataset.EventItem)) (unsubscribe func()) {
	h := s.changes.Add(fn)
	for _, it := range s.initItems() {
		fn(it)
	}
	return func() { s.changes.Remove(h) }
}

// OnRemove registers fn for every exit transition.
func (s *Sequencer) OnRemove(fn func(dataset.EventItem)) (unsubscribe func()) {
	h := s.removes.Add(fn)
	return func() { s.removes.Remove(h) }
}
