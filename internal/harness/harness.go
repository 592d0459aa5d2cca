package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/webtiming/timingsrc/internal/cueset"
	"github.com/webtiming/timingsrc/internal/dataset"
	"github.com/webtiming/timingsrc/internal/motion"
	"github.com/webtiming/timingsrc/internal/schedule"
	"github.com/webtiming/timingsrc/internal/sequencer"
	"github.com/webtiming/timingsrc/internal/store"
	"github.com/webtiming/timingsrc/internal/testutil"
	"github.com/webtiming/timingsrc/internal/timing"
	"github.com/webtiming/timingsrc/internal/trace"
)

// epoch stamps cue info and the session start so stored runs compare
// equal.
var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness holds the state of one run.
type Harness struct {
	scenario *Scenario
	clock    *testutil.ManualClock
	ds       *dataset.Dataset
	movers   []*timing.Object
	seq      *sequencer.Sequencer
	recorder *trace.Recorder
	store    *store.Store
	logger   *slog.Logger
}

// Run executes scenario in a fresh dataset and in-memory store.
//
// An error means the scenario could not be run (bad cues, store failure).
// Failed expectations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		scenario: scenario,
		clock:    testutil.NewManualClock(0),
		store:    st,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	h.ds = dataset.New(dataset.WithNow(func() time.Time { return epoch }), dataset.WithLogger(h.logger))

	if err := h.loadCues(); err != nil {
		return nil, err
	}
	session := scenario.Session
	if session == "" {
		session = scenario.Name
	}
	if err := st.CreateSession(ctx, store.Session{
		ID:        session,
		Mode:      scenario.Mode,
		Source:    scenario.Name,
		StartedAt: epoch,
	}); err != nil {
		return nil, err
	}

	h.startSequencer()
	h.recorder = trace.NewRecorder(h.seq, h.clock,
		trace.WithSession(session),
		trace.WithSink(st.Sink(ctx)),
		trace.WithLogger(h.logger))

	result := NewResult()
	if err := h.runSteps(result); err != nil {
		return nil, err
	}
	h.clock.Set(scenario.Until)
	h.recorder.Close()
	h.seq.Close()

	if err := h.recorder.Err(); err != nil {
		return nil, err
	}
	if err := h.ds.Integrity(); err != nil {
		result.AddError(fmt.Sprintf("dataset integrity: %v", err))
	}

	records, err := st.ReadSession(ctx, session)
	if err != nil {
		return nil, err
	}
	result.Trace = records
	result.Active = sortedKeys(h.seq.Keys())

	if scenario.Expect != nil {
		compareTrace(scenario.Expect, records, result)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) loadCues() error {
	var args []dataset.Arg
	if h.scenario.CueFile != "" {
		path := h.scenario.CueFile
		if !filepath.IsAbs(path) && h.scenario.dir != "" {
			path = filepath.Join(h.scenario.dir, path)
		}
		fileArgs, err := cueset.Load(path)
		if err != nil {
			return err
		}
		args = append(args, fileArgs...)
	}
	inline, err := cueset.DecodeRecords(h.scenario.Cues, h.scenario.Name)
	if err != nil {
		return err
	}
	args = append(args, inline...)
	if _, err := h.ds.Update(args); err != nil {
		return fmt.Errorf("load cues: %w", err)
	}
	return nil
}

func (h *Harness) startSequencer() {
	for _, m := range h.scenario.Movers {
		opts := []timing.ObjectOption{
			timing.WithVector(motion.Vector{
				Position:     m.Position,
				Velocity:     m.Velocity,
				Acceleration: m.Acceleration,
			}),
			timing.WithObjectLogger(h.logger),
		}
		if m.Range != nil {
			opts = append(opts, timing.WithRange(*m.Range))
		}
		h.movers = append(h.movers, timing.NewObject(h.clock, opts...))
	}

	opts := []sequencer.Option{sequencer.WithLogger(h.logger)}
	if h.scenario.Lookahead > 0 {
		opts = append(opts, sequencer.WithLookahead(h.scenario.Lookahead))
	} else {
		opts = append(opts, sequencer.WithLookahead(schedule.DefaultLookahead))
	}
	switch h.scenario.Strategy {
	case "events":
		opts = append(opts, sequencer.WithPolicy(sequencer.Always(sequencer.FromEvents)))
	case "lookup":
		opts = append(opts, sequencer.WithPolicy(sequencer.Always(sequencer.FromLookup)))
	}

	if h.scenario.Mode == "interval" {
		h.seq = sequencer.NewInterval(h.ds, h.movers[0], h.movers[1], opts...)
	} else {
		h.seq = sequencer.NewPoint(h.ds, h.movers[0], opts...)
	}
}

func (h *Harness) runSteps(result *Result) error {
	for i, step := range h.scenario.Steps {
		h.clock.Set(step.At)

		if u := step.Update; u != nil {
			h.movers[u.Mover].Update(timing.UpdateArg{
				Position:     u.Position,
				Velocity:     u.Velocity,
				Acceleration: u.Acceleration,
			})
		}

		var args []dataset.Arg
		if len(step.Cues) > 0 {
			cues, err := cueset.DecodeRecords(step.Cues, fmt.Sprintf("%s step %d", h.scenario.Name, i))
			if err != nil {
				return err
			}
			args = append(args, cues...)
		}
		for _, key := range step.Remove {
			args = append(args, dataset.Remove(key))
		}
		if len(args) > 0 {
			if _, err := h.ds.Update(args); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		}

		if step.Active != nil {
			got := sortedKeys(h.seq.Keys())
			want := sortedKeys(step.Active)
			if !slices.Equal(got, want) {
				result.AddError(fmt.Sprintf("step %d at %g: active %v, want %v", i, step.At, got, want))
			}
		}
		h.logger.Debug("scenario step", "step", i, "at", step.At, "active", h.seq.Len())
	}
	return nil
}

func sortedKeys(keys []string) []string {
	out := slices.Clone(keys)
	if out == nil {
		out = []string{}
	}
	slices.Sort(out)
	return out
}

// compareTrace reports the first divergence between want and the trace.
func compareTrace(want []string, records []trace.Record, result *Result) {
	got := trace.Strings(records)
	for i := 0; i < len(want) || i < len(got); i++ {
		switch {
		case i >= len(got):
			result.AddError(fmt.Sprintf("trace[%d]: missing %q", i, want[i]))
			return
		case i >= len(want):
			result.AddError(fmt.Sprintf("trace[%d]: unexpected %q", i, got[i]))
			return
		case got[i] != want[i]:
			result.AddError(fmt.Sprintf("trace[%d]: got %q, want %q", i, got[i], want[i]))
			return
		}
	}
}
