// Package sequencer tracks the cues that are active for one or two movers
// and reports enter, change and exit transitions at the exact time they
// happen.
//
// A point-mode sequencer follows a single mover; a cue is active when its
// interval covers the position. An interval-mode sequencer follows two
// movers; a cue is active when its interval overlaps or covers the closed
// interval between them.
//
// The active set is kept current from three sources: dataset batches,
// discontinuous vector changes of a mover, and endpoint crossings fired by
// one schedule per mover. Crossing events are resolved through ActiveMap.
// In interval mode each schedule publishes its own due events, so crossings
// of the two movers at the same instant arrive as two notifications in
// timer order rather than one merged, precedence-ordered list.
//
// A Sequencer is not safe for concurrent use. Dataset updates, mover
// updates and the clock's timer callbacks must run on one goroutine.
package sequencer

import (
	"log/slog"
	"slices"

	"github.com/webtiming/timingsrc/internal/dataset"
	"github.com/webtiming/timingsrc/internal/interval"
	"github.com/webtiming/timingsrc/internal/motion"
	"github.com/webtiming/timingsrc/internal/notify"
	"github.com/webtiming/timingsrc/internal/schedule"
	"github.com/webtiming/timingsrc/internal/timing"
)

// matchMask is the relation a cue must have to the active interval.
const matchMask = interval.MatchCovers

// Mode selects how the active interval is derived from the movers.
type Mode int

const (
	ModePoint Mode = iota
	ModeInterval
)

func (m Mode) String() string {
	if m == ModeInterval {
		return "interval"
	}
	return "point"
}

// Dataset is the cue source a sequencer reads from.
type Dataset interface {
	Lookup(iv interval.Interval, mask interval.Mask) []*dataset.Cue
	LookupEndpoints(iv interval.Interval) []dataset.EndpointItem
	AddCallback(fn func(*dataset.Batch)) notify.Handle
	RemoveCallback(h notify.Handle)
}

// Metrics receives sequencer measurements. Kind is "enter", "change" or
// "exit".
type Metrics interface {
	CountTransition(kind string)
	ObserveLoad(events int)
}

// Sequencer maintains the active cue set.
type Sequencer struct {
	mode   Mode
	ds     Dataset
	movers []timing.Mover
	scheds []*schedule.Schedule
	ready  []bool

	active map[string]*dataset.Cue

	policy    Policy
	lookahead float64
	logger    *slog.Logger
	metrics   Metrics

	updates notify.List[[]dataset.EventItem]
	changes notify.List[dataset.EventItem]
	removes notify.List[dataset.EventItem]

	dsHandle notify.Handle
	unsubs   []func()
	closed   bool
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithPolicy sets the batch reconciliation policy.
func WithPolicy(p Policy) Option {
	return func(s *Sequencer) {
		s.policy = p
	}
}

// WithLookahead sets the schedule window length in seconds.
func WithLookahead(seconds float64) Option {
	return func(s *Sequencer) {
		s.lookahead = seconds
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) {
		s.logger = l
	}
}

// WithMetrics sets the metrics sink, shared with the schedules.
func WithMetrics(m Metrics) Option {
	return func(s *Sequencer) {
		s.metrics = m
	}
}

// NewPoint creates a point-mode sequencer for mover.
func NewPoint(ds Dataset, mover timing.Mover, opts ...Option) *Sequencer {
	return newSequencer(ModePoint, ds, []timing.Mover{mover}, opts)
}

// NewInterval creates an interval-mode sequencer for the interval between
// a and b. Both movers must share a clock.
func NewInterval(ds Dataset, a, b timing.Mover, opts ...Option) *Sequencer {
	return newSequencer(ModeInterval, ds, []timing.Mover{a, b}, opts)
}

func newSequencer(mode Mode, ds Dataset, movers []timing.Mover, opts []Option) *Sequencer {
	s := &Sequencer{
		mode:      mode,
		ds:        ds,
		movers:    movers,
		ready:     make([]bool, len(movers)),
		active:    map[string]*dataset.Cue{},
		policy:    DefaultPolicy,
		lookahead: schedule.DefaultLookahead,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dsHandle = ds.AddCallback(s.onBatch)
	for i, m := range movers {
		schedOpts := []schedule.Option{
			schedule.WithLookahead(s.lookahead),
			schedule.WithLogger(s.logger),
		}
		if s.metrics != nil {
			schedOpts = append(schedOpts, schedule.WithMetrics(s.metrics))
		}
		sched := schedule.New(ds, m, schedOpts...)
		sched.AddCallback(func(d schedule.Due) { s.onDue(i, d) })
		s.scheds = append(s.scheds, sched)
	}
	for i, m := range movers {
		s.unsubs = append(s.unsubs, m.Subscribe(func(c timing.Change) { s.onChange(i, c) }))
	}
	return s
}

// Close detaches the sequencer from its dataset and movers and stops the
// schedules. The active set is kept as it was.
func (s *Sequencer) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.ds.RemoveCallback(s.dsHandle)
	for _, unsub := range s.unsubs {
		unsub()
	}
	for _, sched := range s.scheds {
		sched.Clear()
	}
}

// Mode returns the sequencer mode.
func (s *Sequencer) Mode() Mode {
	return s.mode
}

// Schedules returns the schedules, one per mover.
func (s *Sequencer) Schedules() []*schedule.Schedule {
	return slices.Clone(s.scheds)
}

func (s *Sequencer) isReady() bool {
	for _, r := range s.ready {
		if !r {
			return false
		}
	}
	return true
}

func (s *Sequencer) now() float64 {
	return s.movers[0].Clock().Now()
}

// vectorsAt samples every mover at ts.
func (s *Sequencer) vectorsAt(ts float64) []motion.Vector {
	out := make([]motion.Vector, len(s.movers))
	for i, m := range s.movers {
		out[i] = m.Vector().At(ts)
	}
	return out
}

// activeInterval is the closed span of the positions in vecs.
func activeInterval(vecs []motion.Vector) interval.Interval {
	low, high := vecs[0].Position, vecs[0].Position
	for _, v := range vecs[1:] {
		low = min(low, v.Position)
		high = max(high, v.Position)
	}
	return interval.MustNew(low, high, true, true)
}

// movementDirection is the sign of the summed directions of vecs.
func movementDirection(vecs []motion.Vector) int {
	sum := 0
	for _, v := range vecs {
		sum += v.Direction()
	}
	switch {
	case sum > 0:
		return 1
	case sum < 0:
		return -1
	default:
		return 0
	}
}

// Direction returns the current movement direction.
func (s *Sequencer) Direction() int {
	return movementDirection(s.vectorsAt(s.now()))
}

// ActiveInterval returns the interval cues are matched against now. It
// reports false until every mover has delivered its vector.
func (s *Sequencer) ActiveInterval() (interval.Interval, bool) {
	if !s.isReady() {
		return interval.Interval{}, false
	}
	return activeInterval(s.vectorsAt(s.now())), true
}

func (s *Sequencer) lookupActive(iv interval.Interval) map[string]*dataset.Cue {
	cues := s.ds.Lookup(iv, matchMask)
	out := make(map[string]*dataset.Cue, len(cues))
	for _, c := range cues {
		out[c.Key] = c
	}
	return out
}

// onBatch reconciles the active set with a dataset batch and refreshes the
// schedules whose position window the batch touches.
func (s *Sequencer) onBatch(batch *dataset.Batch) {
	if !s.isReady() || batch.Relevance == nil {
		return
	}
	rel := *batch.Relevance
	vecs := s.vectorsAt(s.now())
	active := activeInterval(vecs)

	if !active.Match(rel, interval.MatchOutside) {
		strategy := s.policy(batch.Len(), len(s.active))
		var tr transitions
		if strategy == FromLookup {
			tr = s.fromLookup(batch, active)
		} else {
			tr = s.fromEvents(batch, active)
		}
		items := s.apply(tr, movementDirection(vecs))
		s.logger.Debug("sequencer batch",
			"seq", batch.Seq,
			"strategy", strategy.String(),
			"items", batch.Len(),
			"transitions", len(items))
		s.notify(items)
	}

	for i, sched := range s.scheds {
		pw, ok := sched.PosWindow()
		if ok && !pw.Match(rel, interval.MatchOutside) {
			sched.SetVector(vecs[i])
		}
	}
}

// onChange handles a vector change of mover idx. A jump or a stop
// recomputes the active set; the mover's schedule always restarts.
func (s *Sequencer) onChange(idx int, c timing.Change) {
	init := false
	if !s.ready[idx] {
		s.ready[idx] = true
		if !s.isReady() {
			return
		}
		init = true
	}
	mover := s.movers[idx]
	next := c.New
	if !c.Live {
		next = mover.Vector().At(mover.Clock().Now())
	}
	tr := motion.NewTransition(c.Old, next)

	vecs := s.vectorsAt(next.Timestamp)
	vecs[idx] = next

	if tr.Discontinuous() {
		items := s.apply(s.diff(s.lookupActive(activeInterval(vecs))), movementDirection(vecs))
		s.logger.Debug("sequencer discontinuity",
			"mover", idx,
			"transition", tr.String(),
			"transitions", len(items))
		s.notify(items)
	}

	s.scheds[idx].SetVector(next)
	if init {
		for i, sched := range s.scheds {
			if i != idx {
				sched.SetVector(vecs[i])
			}
		}
	}
}

// role classifies the crossing mover against the other mover at ts.
func (s *Sequencer) role(idx int, pos, ts float64) (Role, *motion.Vector) {
	if s.mode == ModePoint {
		return RoleSingular, nil
	}
	other := s.movers[1-idx].Vector().At(ts)
	switch {
	case pos < other.Position:
		return RoleLeft, &other
	case pos > other.Position:
		return RoleRight, &other
	default:
		return RoleSingular, &other
	}
}

// onDue applies the endpoint crossings fired by the schedule of mover idx.
func (s *Sequencer) onDue(idx int, due schedule.Due) {
	if !s.isReady() {
		return
	}
	var items []dataset.EventItem
	enter := func(c *dataset.Cue) {
		items = append(items, dataset.EventItem{Key: c.Key, New: c})
		s.active[c.Key] = c
	}
	exit := func(c *dataset.Cue) {
		// report the record the subscribers saw entering
		old := s.active[c.Key]
		if old == nil {
			old = c
		}
		items = append(items, dataset.EventItem{Key: c.Key, Old: old})
		delete(s.active, c.Key)
	}

	for _, e := range due.Events {
		c := e.Item.Cue
		_, has := s.active[c.Key]
		role, other := s.role(idx, e.Endpoint.Value, e.Time())
		action := ActiveMap(role, e.Direction, TypeOf(e.Endpoint.Side))

		if s.mode == ModePoint {
			switch action {
			case EnterExit:
				if has {
					exit(c)
				} else {
					items = append(items,
						dataset.EventItem{Key: c.Key, New: c},
						dataset.EventItem{Key: c.Key, Old: c})
				}
			case Enter:
				if !has {
					enter(c)
				}
			case Exit:
				if has {
					exit(c)
				}
			}
			continue
		}

		if action == EnterExit {
			// both movers sit on the singular cue
			switch {
			case !other.Moving():
				action = Enter
			case other.Direction() != e.Direction:
				action = Enter
			default:
				action = Exit
			}
		}
		if action == Stay {
			action = Enter
		}
		switch {
		case action == Enter && !has:
			enter(c)
		case action == Exit && has:
			exit(c)
		}
	}
	s.notify(items)
}

// notify publishes items: the whole list to update subscribers, then each
// item to change or remove subscribers.
func (s *Sequencer) notify(items []dataset.EventItem) {
	if len(items) == 0 {
		return
	}
	if s.metrics != nil {
		for _, it := range items {
			s.metrics.CountTransition(TransitionKind(it))
		}
	}
	s.updates.Publish(items)
	for _, it := range items {
		if it.New == nil {
			s.removes.Publish(it)
		} else {
			s.changes.Publish(it)
		}
	}
}

// TransitionKind names the transition an item describes: "enter", "exit"
// or "change".
func TransitionKind(it dataset.EventItem) string {
	switch {
	case it.New == nil:
		return "exit"
	case it.Old == nil:
		return "enter"
	default:
		return "change"
	}
}
