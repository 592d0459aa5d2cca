// Package schedule loads the cue endpoint crossings a mover reaches in a
// rolling lookahead window and fires them when due.
//
// A Schedule covers the time window [t0, t0+lookahead) and the position
// window reachable by the mover during that time. When the time window
// expires it rolls forward and reloads crossings from the dataset. At most
// one timer is pending per schedule: either for the next queued crossing or
// for the end of the window.
package schedule

import (
	"log/slog"
	"math"
	"slices"

	"github.com/webtiming/timingsrc/internal/dataset"
	"github.com/webtiming/timingsrc/internal/interval"
	"github.com/webtiming/timingsrc/internal/motion"
	"github.com/webtiming/timingsrc/internal/notify"
	"github.com/webtiming/timingsrc/internal/timing"
)

// DefaultLookahead is the length of the time window in seconds.
const DefaultLookahead = 5.0

// touchTolerance bounds the velocity and position error accepted when
// detecting a turning point exactly on an endpoint.
const touchTolerance = 1e-9

// Event is one endpoint crossing of the mover.
type Event = motion.Crossing[dataset.EndpointItem]

// Due is delivered to callbacks with the events that became due at Now,
// in time endpoint order.
type Due struct {
	Now      float64
	Events   []Event
	Schedule *Schedule
}

// Endpoints is the dataset capability a schedule reads from.
type Endpoints interface {
	LookupEndpoints(iv interval.Interval) []dataset.EndpointItem
}

// Metrics receives schedule measurements.
type Metrics interface {
	ObserveLoad(events int)
}

// Schedule is not safe for concurrent use; run it on the goroutine that
// runs the mover clock's timer callbacks.
type Schedule struct {
	ds        Endpoints
	mover     timing.Mover
	lookahead float64
	logger    *slog.Logger
	metrics   Metrics

	vector     *motion.Vector
	timeWindow *interval.Interval
	posWindow  *interval.Interval
	queue      []Event
	timeout    *Timeout
	gen        uint64

	callbacks notify.List[Due]
}

// Option configures a Schedule.
type Option func(*Schedule)

// WithLookahead sets the time window length in seconds.
func WithLookahead(seconds float64) Option {
	return func(s *Schedule) {
		if seconds > 0 {
			s.lookahead = seconds
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Schedule) {
		s.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Schedule) {
		s.metrics = m
	}
}

// New creates an idle schedule for mover. It starts working on the first
// SetVector.
func New(ds Endpoints, mover timing.Mover, opts ...Option) *Schedule {
	s := &Schedule{
		ds:        ds,
		mover:     mover,
		lookahead: DefaultLookahead,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.timeout = NewTimeout(mover.Clock(), s.run)
	return s
}

// AddCallback registers fn for due events.
func (s *Schedule) AddCallback(fn func(Due)) notify.Handle {
	return s.callbacks.Add(fn)
}

// RemoveCallback unregisters a callback.
func (s *Schedule) RemoveCallback(h notify.Handle) {
	s.callbacks.Remove(h)
}

// Mover returns the mover this schedule follows.
func (s *Schedule) Mover() timing.Mover {
	return s.mover
}

// Vector returns the vector in use.
func (s *Schedule) Vector() (motion.Vector, bool) {
	if s.vector == nil {
		return motion.Vector{}, false
	}
	return *s.vector, true
}

// TimeWindow returns the current time window.
func (s *Schedule) TimeWindow() (interval.Interval, bool) {
	if s.timeWindow == nil {
		return interval.Interval{}, false
	}
	return *s.timeWindow, true
}

// PosWindow returns the position window of the current time window.
func (s *Schedule) PosWindow() (interval.Interval, bool) {
	if s.posWindow == nil {
		return interval.Interval{}, false
	}
	return *s.posWindow, true
}

// Pending returns a copy of the queued events.
func (s *Schedule) Pending() []Event {
	return slices.Clone(s.queue)
}

// TimeoutTarget returns the time the pending timer targets.
func (s *Schedule) TimeoutTarget() (float64, bool) {
	return s.timeout.Target()
}

// SetVector replaces the motion. The window, queue and timer are dropped;
// a moving vector restarts the schedule at its timestamp.
func (s *Schedule) SetVector(vec motion.Vector) {
	s.reset()
	s.vector = &vec
	if vec.Moving() {
		s.run(vec.Timestamp)
	}
}

// Clear stops the schedule and forgets the vector.
func (s *Schedule) Clear() {
	s.reset()
	s.vector = nil
}

func (s *Schedule) reset() {
	s.gen++
	s.timeout.Clear()
	s.timeWindow = nil
	s.posWindow = nil
	s.queue = nil
}

// push queues the events inside the time window, keeping time endpoint order.
func (s *Schedule) push(events []Event) {
	for _, e := range events {
		if s.timeWindow.CoversEndpoint(e.TimeEndpoint) {
			s.queue = append(s.queue, e)
		}
	}
	slices.SortStableFunc(s.queue, func(a, b Event) int {
		return interval.Compare(a.TimeEndpoint, b.TimeEndpoint)
	})
}

// pop removes and returns the events due at now.
func (s *Schedule) pop(now float64) []Event {
	n := 0
	for n < len(s.queue) && s.queue[n].Time() <= now {
		n++
	}
	if n == 0 {
		return nil
	}
	due := slices.Clone(s.queue[:n])
	s.queue = slices.Delete(s.queue, 0, n)
	return due
}

func (s *Schedule) next() (float64, bool) {
	if len(s.queue) == 0 {
		return 0, false
	}
	return s.queue[0].Time(), true
}

// advance rolls the windows forward when undefined or expired. The queue
// refers to the old window and is dropped.
func (s *Schedule) advance(now float64) bool {
	var start float64
	switch {
	case s.timeWindow == nil:
		start = now
	case s.timeWindow.EndpointHigh().Before(interval.At(now)):
		start = s.timeWindow.High
	default:
		return false
	}
	tw := interval.MustNew(start, start+s.lookahead, true, false)
	pw := motion.ReachableInterval(tw, *s.vector)
	s.timeWindow, s.posWindow = &tw, &pw
	s.queue = nil
	return true
}

// load computes the crossings of items in the current windows and filters
// out crossings that will not happen or do not change anything:
//
//   - at or after the first range bound intersection, where the mover
//     stops;
//   - before minimum, which defaults to the window start;
//   - turning points exactly on a non-singular endpoint, where the motion
//     touches the endpoint without passing it.
func (s *Schedule) load(items []dataset.EndpointItem, minimum *interval.Endpoint) []Event {
	vec := *s.vector
	tw := *s.timeWindow
	crossings, err := motion.EndpointCrossings(tw, *s.posWindow, vec, items,
		func(it dataset.EndpointItem) interval.Endpoint { return it.Endpoint })
	if err != nil {
		s.logger.Debug("schedule load skipped", "error", err)
		return nil
	}

	rangeTs, _, hitsRange := s.mover.Range().Intersect(vec)
	low := tw.EndpointLow()
	if minimum == nil {
		minimum = &low
	}
	return slices.DeleteFunc(crossings, func(e Event) bool {
		ts := e.Time()
		if hitsRange && rangeTs <= ts {
			return true
		}
		if e.TimeEndpoint.Before(*minimum) {
			return true
		}
		if vec.Acceleration != 0 && ts > low.Value && e.Endpoint.Side != interval.Singular {
			v := vec.At(ts)
			if math.Abs(v.Velocity) <= touchTolerance &&
				math.Abs(v.Position-e.Endpoint.Value) <= touchTolerance {
				return true
			}
		}
		return false
	})
}

// run dispatches due events, rolls the window when needed and arms the
// timer for whatever comes first: the next queued event or the window end.
func (s *Schedule) run(now float64) {
	if s.vector == nil {
		return
	}
	gen := s.gen
	due := s.pop(now)
	if s.advance(now) {
		items := s.ds.LookupEndpoints(*s.posWindow)
		events := s.load(items, nil)
		s.push(events)
		if s.metrics != nil {
			s.metrics.ObserveLoad(len(events))
		}
		s.logger.Debug("schedule loaded",
			"window", s.timeWindow.String(),
			"positions", s.posWindow.String(),
			"endpoints", len(items),
			"events", len(events))
		due = append(due, s.pop(now)...)
	}
	if len(due) > 0 {
		s.callbacks.Publish(Due{Now: now, Events: due, Schedule: s})
		if gen != s.gen {
			// a callback replaced the vector and restarted the schedule
			return
		}
	}
	target := s.timeWindow.High
	if ts, ok := s.next(); ok && ts < target {
		target = ts
	}
	s.timeout.Set(target)
}
