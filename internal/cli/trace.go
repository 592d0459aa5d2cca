package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/webtiming/timingsrc/internal/store"
	"github.com/webtiming/timingsrc/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	Kind      string // optional - filter to one transition kind
	Key       string // optional - filter to one cue key
	Canonical bool
}

// RecordView is the printed form of a trace record.
type RecordView struct {
	Seq      int64   `json:"seq"`
	Time     float64 `json:"time"`
	Kind     string  `json:"kind"`
	Key      string  `json:"key"`
	Interval string  `json:"interval,omitempty"`
	Data     any     `json:"data,omitempty"`
}

// SessionView is the printed form of a stored session.
type SessionView struct {
	ID        string `json:"id"`
	Mode      string `json:"mode"`
	Source    string `json:"source"`
	StartedAt string `json:"started_at"`
	Records   int    `json:"records"`
}

// TraceStats holds summary counts for a trace.
type TraceStats struct {
	Total  int `json:"total"`
	Enter  int `json:"enter"`
	Exit   int `json:"exit"`
	Change int `json:"change"`
}

// TraceResult holds the trace output for one session.
type TraceResult struct {
	Session SessionView  `json:"session"`
	Records []RecordView `json:"records"`
	Stats   TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [session]",
		Short: "Show recorded transitions",
		Long: `Show the transitions recorded by "timingsrc sequence --db".

Without a session id the stored sessions are listed. With one, its
records are printed in order, optionally filtered by kind or key.
--canonical prints the records as canonical JSON, byte-stable across
runs and suitable for golden files.

Examples:
  timingsrc trace --db ./runs.db
  timingsrc trace --db ./runs.db 0192b3c4-...
  timingsrc trace --db ./runs.db 0192b3c4-... --kind enter --key intro
  timingsrc trace --db ./runs.db 0192b3c4-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runSessions(opts, cmd)
			}
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one kind (enter|exit|change)")
	cmd.Flags().StringVar(&opts.Key, "key", "", "filter to one cue key")
	cmd.Flags().BoolVar(&opts.Canonical, "canonical", false, "print records as canonical JSON")

	return cmd
}

func openStore(path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runSessions(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.Sessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}
	views := make([]SessionView, len(sessions))
	for i, s := range sessions {
		views[i] = sessionView(s)
	}

	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if formatter.JSON() {
		return formatter.Success(views)
	}

	w := cmd.OutOrStdout()
	if len(views) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tMODE\tSOURCE\tSTARTED\tRECORDS")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", v.ID, v.Mode, v.Source, v.StartedAt, v.Records)
	}
	return tw.Flush()
}

func runTrace(opts *TraceOptions, id string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	switch opts.Kind {
	case "", "enter", "exit", "change":
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --kind %q: must be enter, exit or change", opts.Kind))
	}

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := st.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("session not found: %s", id), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("session not found: %s", id))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}
	records, err := st.ReadSession(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read records", err)
	}
	records = filterRecords(records, opts.Kind, opts.Key)

	if opts.Canonical {
		b, err := trace.MarshalCanonical(records)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to marshal records", err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
		return err
	}

	result := TraceResult{
		Session: sessionView(sess),
		Records: make([]RecordView, len(records)),
		Stats:   TraceStats{Total: len(records)},
	}
	for i, r := range records {
		result.Records[i] = recordView(r)
		switch r.Kind {
		case "enter":
			result.Stats.Enter++
		case "exit":
			result.Stats.Exit++
		case "change":
			result.Stats.Change++
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

func filterRecords(records []trace.Record, kind, key string) []trace.Record {
	if kind == "" && key == "" {
		return records
	}
	out := records[:0]
	for _, r := range records {
		if (kind == "" || r.Kind == kind) && (key == "" || r.Key == key) {
			out = append(out, r)
		}
	}
	return out
}

func sessionView(s store.Session) SessionView {
	return SessionView{
		ID:        s.ID,
		Mode:      s.Mode,
		Source:    s.Source,
		StartedAt: s.StartedAt.UTC().Format(time.RFC3339),
		Records:   s.Records,
	}
}

func recordView(r trace.Record) RecordView {
	return RecordView{
		Seq:      r.Seq,
		Time:     r.Time,
		Kind:     r.Kind,
		Key:      r.Key,
		Interval: r.Interval,
		Data:     r.Data,
	}
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	s := result.Session
	fmt.Fprintf(w, "Trace for Session: %s\n", s.ID)
	fmt.Fprintf(w, "Mode: %s  Source: %s  Started: %s\n", s.Mode, s.Source, s.StartedAt)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Records ===")
	if len(result.Records) == 0 {
		fmt.Fprintln(w, "  (no records)")
	}
	for _, r := range result.Records {
		iv := r.Interval
		if iv == "" {
			iv = "-"
		}
		fmt.Fprintf(w, "  [%d] %10.3f  %-6s %s %s\n", r.Seq, r.Time, r.Kind, r.Key, iv)
		if verbose && r.Data != nil {
			fmt.Fprintf(w, "       Data: %s\n", formatValue(r.Data))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total:   %d\n", result.Stats.Total)
	fmt.Fprintf(w, "  Enter:   %d\n", result.Stats.Enter)
	fmt.Fprintf(w, "  Exit:    %d\n", result.Stats.Exit)
	fmt.Fprintf(w, "  Change:  %d\n", result.Stats.Change)
	return nil
}

// formatValue formats cue data for display with sorted map keys.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%s", k, formatValue(val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}
