// Package trace records sequencer transitions.
//
// A Recorder subscribes to a sequencer and turns every transition into a
// Record stamped with the clock time and a per-session sequence number.
// Records can be handed to a sink (the SQLite store, a writer) as they
// happen and rendered as canonical JSON for golden comparison.
package trace

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/webtiming/timingsrc/internal/dataset"
	"github.com/webtiming/timingsrc/internal/sequencer"
	"github.com/webtiming/timingsrc/internal/timing"
)

// Record is one transition of one cue.
type Record struct {
	Session string
	// Seq increases by one per record within a session, starting at 1.
	Seq  int64
	Time float64
	// Kind is "enter", "exit" or "change".
	Kind string
	Key  string
	// Interval is the textual interval of the cue, empty for cues without
	// one.
	Interval string
	Data     any
}

// String renders r as "kind key@time".
func (r Record) String() string {
	return fmt.Sprintf("%s %s@%g", r.Kind, r.Key, r.Time)
}

// Strings renders every record with String.
func Strings(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.String()
	}
	return out
}

// Source is what a Recorder subscribes to. *sequencer.Sequencer
// implements it.
type Source interface {
	OnUpdate(fn func([]dataset.EventItem)) (unsubscribe func())
}

// Sink receives records as they are produced.
type Sink func(Record) error

// IDGenerator produces session ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 session ids.
//
// Safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7. It panics if the system random
// source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Recorder collects the transitions of one source.
type Recorder struct {
	mu      sync.Mutex
	clock   timing.Clock
	session string
	ids     IDGenerator
	sink    Sink
	logger  *slog.Logger
	seq     int64
	records []Record
	err     error
	unsub   func()
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithSession fixes the session id.
func WithSession(id string) Option {
	return func(r *Recorder) { r.session = id }
}

// WithIDGenerator sets the generator used when no session id is given.
// The default is UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Recorder) { r.ids = g }
}

// WithSink forwards every record to s. The first sink error stops
// forwarding and is reported by Err.
func WithSink(s Sink) Option {
	return func(r *Recorder) { r.sink = s }
}

// WithLogger sets the logger used for sink failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRecorder subscribes to src. The active set at subscription time is
// recorded as enter records.
func NewRecorder(src Source, clock timing.Clock, opts ...Option) *Recorder {
	r := &Recorder{
		clock:  clock,
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.session == "" {
		r.session = r.ids.Generate()
	}
	r.unsub = src.OnUpdate(r.onUpdate)
	return r
}

func (r *Recorder) onUpdate(items []dataset.EventItem) {
	if len(items) == 0 {
		return
	}
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, it := range items {
		r.seq++
		rec := Record{
			Session: r.session,
			Seq:     r.seq,
			Time:    now,
			Kind:    sequencer.TransitionKind(it),
			Key:     it.Key,
		}
		if c := cueOf(it); c != nil {
			if c.Interval != nil {
				rec.Interval = c.Interval.String()
			}
			rec.Data = c.Data
		}
		r.records = append(r.records, rec)
		if r.sink != nil && r.err == nil {
			if err := r.sink(rec); err != nil {
				r.err = fmt.Errorf("trace sink: %w", err)
				r.logger.Error("trace sink failed", "session", r.session, "seq", rec.Seq, "error", err)
			}
		}
	}
}

func cueOf(it dataset.EventItem) *dataset.Cue {
	if it.New != nil {
		return it.New
	}
	return it.Old
}

// Session returns the session id.
func (r *Recorder) Session() string {
	return r.session
}

// Records returns a copy of the records collected so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Err returns the first sink error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close unsubscribes from the source. Records stay available.
func (r *Recorder) Close() {
	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
}
