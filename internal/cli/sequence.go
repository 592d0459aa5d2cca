package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/webtiming/timingsrc/internal/cueset"
	"github.com/webtiming/timingsrc/internal/dataset"
	"github.com/webtiming/timingsrc/internal/loop"
	"github.com/webtiming/timingsrc/internal/metrics"
	"github.com/webtiming/timingsrc/internal/motion"
	"github.com/webtiming/timingsrc/internal/schedule"
	"github.com/webtiming/timingsrc/internal/sequencer"
	"github.com/webtiming/timingsrc/internal/store"
	"github.com/webtiming/timingsrc/internal/timing"
	"github.com/webtiming/timingsrc/internal/trace"
	"github.com/webtiming/timingsrc/internal/watch"
)

// SequenceOptions holds flags for the sequence command.
type SequenceOptions struct {
	*RootOptions
	Position     float64
	Velocity     float64
	Acceleration float64
	ToPosition   float64
	Duration     time.Duration
	Lookahead    float64
	Strategy     string
	Database     string
	Session      string
	Watch        bool
	Debounce     time.Duration
	MetricsAddr  string

	// IDGenerator overrides the session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator trace.IDGenerator

	interval bool
}

// NewSequenceCommand creates the sequence command.
func NewSequenceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SequenceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sequence <cue-file>",
		Short: "Sequence a cue file against a moving timing object",
		Long: `Start a sequencer over the cues of a cue file and print every
transition as it happens.

The timing object starts at --position with --velocity and
--acceleration and runs on the wall clock. With --to-position a second
mover with the same motion is created and the sequencer follows the
interval between the two.

Transitions are written to the --db store when given, under the --session
id or a generated one. With --watch the cue file is reloaded when it
changes; cues that are gone from the file are removed.

Examples:
  timingsrc sequence cues.yaml --velocity 1
  timingsrc sequence cues.yaml --position 10 --to-position 15 --velocity 1 --duration 30s
  timingsrc sequence cues.yaml --velocity 1 --db ./runs.db --watch --metrics-addr :9090`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.interval = cmd.Flags().Changed("to-position")
			return runSequence(opts, args[0], cmd)
		},
	}

	cmd.Flags().Float64Var(&opts.Position, "position", 0, "initial position")
	cmd.Flags().Float64Var(&opts.Velocity, "velocity", 0, "initial velocity in units per second")
	cmd.Flags().Float64Var(&opts.Acceleration, "acceleration", 0, "initial acceleration")
	cmd.Flags().Float64Var(&opts.ToPosition, "to-position", 0, "initial position of a second mover (interval mode)")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	cmd.Flags().Float64Var(&opts.Lookahead, "lookahead", schedule.DefaultLookahead, "schedule window in seconds")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", "auto", "batch reconcile strategy (auto|events|lookup)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for recorded transitions")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (default: generated)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "reload the cue file when it changes")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultDebounce, "delay before reloading a changed cue file")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

// policyFor maps a --strategy value to a reconcile policy.
func policyFor(name string) (sequencer.Policy, error) {
	switch name {
	case "", "auto":
		return sequencer.DefaultPolicy, nil
	case "events":
		return sequencer.Always(sequencer.FromEvents), nil
	case "lookup":
		return sequencer.Always(sequencer.FromLookup), nil
	}
	return nil, fmt.Errorf("invalid strategy %q: must be auto, events or lookup", name)
}

// sequenceRun is the state owned by the loop goroutine.
type sequenceRun struct {
	movers   []*timing.Object
	seq      *sequencer.Sequencer
	recorder *trace.Recorder
}

func runSequence(opts *SequenceOptions, path string, cmd *cobra.Command) error {
	logger := opts.Logger(cmd.ErrOrStderr())
	out := cmd.OutOrStdout()

	policy, err := policyFor(opts.Strategy)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --strategy", err)
	}
	if opts.Lookahead <= 0 {
		return NewExitError(ExitCommandError, "--lookahead must be positive")
	}

	var reg *prometheus.Registry
	dsOpts := []dataset.Option{dataset.WithLogger(logger)}
	seqOpts := []sequencer.Option{
		sequencer.WithLogger(logger),
		sequencer.WithLookahead(opts.Lookahead),
		sequencer.WithPolicy(policy),
	}
	if opts.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		m := metrics.New(reg)
		dsOpts = append(dsOpts, dataset.WithMetrics(m))
		seqOpts = append(seqOpts, sequencer.WithMetrics(m))
	}

	ds, err := LoadCues(path, dsOpts...)
	if err != nil {
		return loadExitError(err)
	}
	logger.Info("cues loaded", "file", path, "cues", ds.Len())

	ids := opts.IDGenerator
	if ids == nil {
		ids = trace.UUIDv7Generator{}
	}
	session := opts.Session
	if session == "" {
		session = ids.Generate()
	}
	mode := sequencer.ModePoint
	if opts.interval {
		mode = sequencer.ModeInterval
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	sink := printSink(out, opts.Format)
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		if err := st.CreateSession(ctx, store.Session{
			ID:        session,
			Mode:      mode.String(),
			Source:    path,
			StartedAt: time.Now().UTC(),
		}); err != nil {
			return WrapExitError(ExitCommandError, "failed to create session", err)
		}
		sink = teeSink(st.Sink(context.WithoutCancel(ctx)), sink)
	}

	lp := loop.New(loop.WithLogger(logger))
	clock := timing.NewSystemClock(lp.Post)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return lp.Run(gctx) })

	if !opts.JSON() {
		fmt.Fprintf(out, "Sequencing %s (%s mode, session %s).\n", path, mode, session)
		fmt.Fprintln(out, "Press Ctrl-C to stop.")
	}

	var run *sequenceRun
	if err := lp.Do(gctx, func() {
		run = startSequenceRun(ds, clock, opts, seqOpts, session, sink, logger)
	}); err != nil {
		_ = g.Wait()
		return WrapExitError(ExitFailure, "sequencer did not start", err)
	}

	if opts.Watch {
		g.Go(func() error {
			return watch.File(gctx, path, opts.Debounce, func() {
				lp.Post(func() { reloadCues(ds, path, logger) })
			}, watch.WithLogger(logger))
		})
	}
	if reg != nil {
		serveMetrics(gctx, g, opts.MetricsAddr, reg, logger)
	}

	err = g.Wait()

	// The loop has stopped; nothing else touches the run.
	run.recorder.Close()
	run.seq.Close()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "sequencer error", err)
	}
	if err := run.recorder.Err(); err != nil {
		return WrapExitError(ExitFailure, "failed to record transitions", err)
	}

	n := len(run.recorder.Records())
	logger.Info("sequencer stopped", "session", session, "records", n, "active", run.seq.Len())
	if !opts.JSON() {
		fmt.Fprintf(out, "Stopped after %d transition(s).\n", n)
	}
	return nil
}

func startSequenceRun(ds *dataset.Dataset, clock timing.Clock, opts *SequenceOptions,
	seqOpts []sequencer.Option, session string, sink trace.Sink, logger *slog.Logger) *sequenceRun {
	newMover := func(pos float64) *timing.Object {
		return timing.NewObject(clock,
			timing.WithVector(motion.Vector{
				Position:     pos,
				Velocity:     opts.Velocity,
				Acceleration: opts.Acceleration,
			}),
			timing.WithObjectLogger(logger))
	}

	run := &sequenceRun{}
	run.movers = append(run.movers, newMover(opts.Position))
	if opts.interval {
		run.movers = append(run.movers, newMover(opts.ToPosition))
		run.seq = sequencer.NewInterval(ds, run.movers[0], run.movers[1], seqOpts...)
	} else {
		run.seq = sequencer.NewPoint(ds, run.movers[0], seqOpts...)
	}
	run.recorder = trace.NewRecorder(run.seq, clock,
		trace.WithSession(session),
		trace.WithSink(sink),
		trace.WithLogger(logger))
	return run
}

// reloadCues replaces the dataset contents with the cue file. A file that
// fails to load leaves the dataset unchanged.
func reloadCues(ds *dataset.Dataset, path string, logger *slog.Logger) {
	args, err := cueset.Load(path)
	if err != nil {
		logger.Warn("cue file reload failed", "file", path, "error", err)
		return
	}
	batch, err := cueset.Reconcile(ds, args)
	if err != nil {
		logger.Warn("cue file reload rejected", "file", path, "error", err)
		return
	}
	logger.Info("cue file reloaded", "file", path, "changes", batch.Len(), "cues", ds.Len())
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// printSink writes each record as a text line or a JSON line.
func printSink(w io.Writer, format string) trace.Sink {
	if format == "json" {
		return func(r trace.Record) error {
			b, err := trace.MarshalCanonical([]trace.Record{r})
			if err != nil {
				return err
			}
			// Strip the enclosing array.
			_, err = fmt.Fprintf(w, "%s\n", b[1:len(b)-1])
			return err
		}
	}
	return func(r trace.Record) error {
		return writeRecordLine(w, r)
	}
}

func writeRecordLine(w io.Writer, r trace.Record) error {
	iv := r.Interval
	if iv == "" {
		iv = "-"
	}
	_, err := fmt.Fprintf(w, "%10.3f  %-6s %s %s\n", r.Time, r.Kind, r.Key, iv)
	return err
}

func teeSink(sinks ...trace.Sink) trace.Sink {
	return func(r trace.Record) error {
		for _, s := range sinks {
			if err := s(r); err != nil {
				return err
			}
		}
		return nil
	}
}
