package cli

import (
	"cmp"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/webtiming/timingsrc/internal/dataset"
	"github.com/webtiming/timingsrc/internal/interval"
)

// LookupOptions holds flags for the lookup command.
type LookupOptions struct {
	*RootOptions
	Interval  string
	Mask      string
	Endpoints bool
}

// CueView is the printed form of a cue.
type CueView struct {
	Key      string `json:"key"`
	Interval string `json:"interval,omitempty"`
	Data     any    `json:"data,omitempty"`
}

// EndpointView is the printed form of a cue endpoint.
type EndpointView struct {
	Endpoint string `json:"endpoint"`
	Key      string `json:"key"`
}

// LookupResult holds the lookup command output.
type LookupResult struct {
	Interval  string         `json:"interval"`
	Mask      string         `json:"mask"`
	Cues      []CueView      `json:"cues,omitempty"`
	Endpoints []EndpointView `json:"endpoints,omitempty"`
}

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LookupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lookup <cue-file>",
		Short: "Find cues that match an interval",
		Long: `Load a cue file and list the cues whose interval matches the query
interval under the given mask.

The mask is a named mask (outside, inside, overlap, covers, all) or a list
of relations joined by "|" (outside-left, overlap-left, covered, equals,
covers, overlap-right, outside-right). Prefix a name with "=" to select a
single relation, as in "=covers".

Examples:
  timingsrc lookup cues.yaml --interval "[4,6]"
  timingsrc lookup cues.yaml --interval "[4,6)" --mask overlap
  timingsrc lookup cues.yaml --interval "[0,10]" --endpoints --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Interval, "interval", "i", "", "query interval, e.g. \"[4,6)\" (required)")
	_ = cmd.MarkFlagRequired("interval")
	cmd.Flags().StringVarP(&opts.Mask, "mask", "m", "covers", "match mask")
	cmd.Flags().BoolVar(&opts.Endpoints, "endpoints", false, "list cue endpoints inside the interval instead of cues")

	return cmd
}

func runLookup(opts *LookupOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	iv, err := interval.Parse(opts.Interval)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --interval", err)
	}
	mask, err := interval.ParseMask(opts.Mask)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --mask", err)
	}

	ds, err := LoadCues(path, dataset.WithLogger(opts.Logger(cmd.ErrOrStderr())))
	if err != nil {
		return loadExitError(err)
	}
	formatter.VerboseLog("Loaded %d cue(s) from %s", ds.Len(), path)

	result := LookupResult{Interval: iv.String(), Mask: mask.String()}
	if opts.Endpoints {
		result.Endpoints = endpointViews(ds.LookupEndpoints(iv))
	} else {
		result.Cues = cueViews(ds.Lookup(iv, mask))
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputLookupText(cmd, result, opts.Endpoints)
}

// cueViews orders cues by low endpoint, then key.
func cueViews(cues []*dataset.Cue) []CueView {
	slices.SortFunc(cues, func(a, b *dataset.Cue) int {
		if a.Interval != nil && b.Interval != nil {
			if c := interval.CmpLow(*a.Interval, *b.Interval); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.Key, b.Key)
	})
	views := make([]CueView, len(cues))
	for i, c := range cues {
		views[i] = cueView(c)
	}
	return views
}

func cueView(c *dataset.Cue) CueView {
	v := CueView{Key: c.Key, Data: c.Data}
	if c.Interval != nil {
		v.Interval = c.Interval.String()
	}
	return v
}

func endpointViews(items []dataset.EndpointItem) []EndpointView {
	views := make([]EndpointView, len(items))
	for i, it := range items {
		views[i] = EndpointView{
			Endpoint: it.Endpoint.String(),
			Key:      it.Cue.Key,
		}
	}
	return views
}

func outputLookupText(cmd *cobra.Command, result LookupResult, endpoints bool) error {
	w := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if endpoints {
		for _, e := range result.Endpoints {
			fmt.Fprintf(tw, "%s\t%s\n", e.Endpoint, e.Key)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(w, "%d endpoint(s) in %s\n", len(result.Endpoints), result.Interval)
		return nil
	}

	for _, c := range result.Cues {
		iv := c.Interval
		if iv == "" {
			iv = "-"
		}
		if c.Data != nil {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Key, iv, formatValue(c.Data))
		} else {
			fmt.Fprintf(tw, "%s\t%s\n", c.Key, iv)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d cue(s) match %s %s\n", len(result.Cues), result.Mask, result.Interval)
	return nil
}
