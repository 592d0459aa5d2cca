package cli

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/webtiming/timingsrc/internal/cueset"
	"github.com/webtiming/timingsrc/internal/dataset"
)

// ValidationError is one problem found in a cue file.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Index is the position of the offending cue, -1 for the whole file.
	Index int    `json:"index"`
	Key   string `json:"key,omitempty"`
}

// BucketStats describes one length bucket of the index.
type BucketStats struct {
	MaxLength string `json:"max_length"`
	Cues      int    `json:"cues"`
	Points    int    `json:"points"`
	Longest   string `json:"longest"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid        bool              `json:"valid"`
	File         string            `json:"file"`
	Cues         int               `json:"cues"`
	WithInterval int               `json:"with_interval"`
	Points       int               `json:"points"`
	Buckets      []BucketStats     `json:"buckets,omitempty"`
	Errors       []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <cue-file>",
		Short: "Check a cue file and report index statistics",
		Long: `Load a cue file into a dataset, verify the index and print statistics.

Reports malformed cues, duplicate keys and inverted intervals. With
--verbose the cue and endpoint counts of every length bucket are listed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	ds, err := LoadCues(path, dataset.WithLogger(opts.Logger(cmd.ErrOrStderr())))
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) && le.Code == ErrCodeNotFound {
			return outputValidateError(formatter, le.Code, le.Message)
		}
		return outputValidationErrors(formatter, path, []ValidationError{toValidationError(err)})
	}

	if err := ds.Integrity(); err != nil {
		return outputValidationErrors(formatter, path, []ValidationError{{
			Code:    ErrCodeIntegrity,
			Message: err.Error(),
			Index:   -1,
		}})
	}

	result := validationResult(path, ds.Stats())
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ %s: %d cue(s), %d with interval, %d endpoint(s)\n",
		path, result.Cues, result.WithInterval, result.Points)
	if opts.Verbose {
		for _, b := range result.Buckets {
			fmt.Fprintf(w, "  bucket <=%s: %d cue(s), %d endpoint(s), longest %s\n",
				b.MaxLength, b.Cues, b.Points, b.Longest)
		}
	}
	return nil
}

func toValidationError(err error) ValidationError {
	var ce *cueset.Error
	if errors.As(err, &ce) {
		return ValidationError{Code: ErrCodeCueFile, Message: ce.Message, Index: ce.Index, Key: ce.Key}
	}
	var de *dataset.Error
	if errors.As(err, &de) {
		return ValidationError{Code: ErrCodeCueFile, Message: de.Error(), Index: -1, Key: de.Key}
	}
	return ValidationError{Code: ErrCodeGeneric, Message: err.Error(), Index: -1}
}

func validationResult(path string, st dataset.Stats) ValidationResult {
	result := ValidationResult{
		Valid:        true,
		File:         path,
		Cues:         st.Cues,
		WithInterval: st.WithInterval,
		Points:       st.Points,
	}
	var lengths []float64
	for l := range st.BucketPoints {
		lengths = append(lengths, l)
	}
	slices.Sort(lengths)
	for _, l := range lengths {
		result.Buckets = append(result.Buckets, BucketStats{
			MaxLength: formatLength(l),
			Cues:      st.BucketCues[l],
			Points:    st.BucketPoints[l],
			Longest:   formatLength(st.LongestByBucket[l]),
		})
	}
	return result
}

func formatLength(l float64) string {
	if math.IsInf(l, 1) {
		return "inf"
	}
	return strconv.FormatFloat(l, 'g', -1, 64)
}

func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

func outputValidationErrors(formatter *OutputFormatter, path string, errs []ValidationError) error {
	if formatter.JSON() {
		_ = formatter.Error(errs[0].Code, fmt.Sprintf("validation failed with %d error(s)", len(errs)),
			ValidationResult{Valid: false, File: path, Errors: errs})
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✗ %s\n", path)
	for _, e := range errs {
		switch {
		case e.Index >= 0 && e.Key != "":
			fmt.Fprintf(w, "  [%s] cue %d (key=%s): %s\n", e.Code, e.Index, e.Key, e.Message)
		case e.Index >= 0:
			fmt.Fprintf(w, "  [%s] cue %d: %s\n", e.Code, e.Index, e.Message)
		default:
			fmt.Fprintf(w, "  [%s] %s\n", e.Code, e.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
