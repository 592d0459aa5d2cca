package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/webtiming/timingsrc/internal/cueset"
	"github.com/webtiming/timingsrc/internal/dataset"
)

// LoadError represents an error that occurred while loading a cue file.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// exitCode maps a load error to the command exit code: a file that cannot
// be read is a command error, a file with bad contents a failure.
func (e *LoadError) exitCode() int {
	if e.Code == ErrCodeNotFound {
		return ExitCommandError
	}
	return ExitFailure
}

// LoadCues reads the cue file at path and returns a dataset holding its
// cues.
func LoadCues(path string, opts ...dataset.Option) (*dataset.Dataset, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("cue file not found: %s", path), Err: err}
	case err != nil:
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing cue file: %v", err), Err: err}
	case info.IsDir():
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a file: %s", path)}
	}

	args, err := cueset.Load(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeCueFile, Message: err.Error(), Err: err}
	}
	ds := dataset.New(opts...)
	if _, err := ds.Update(args); err != nil {
		return nil, &LoadError{Code: ErrCodeCueFile, Message: err.Error(), Err: err}
	}
	return ds, nil
}

// loadExitError converts a LoadCues error into an ExitError.
func loadExitError(err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return WrapExitError(le.exitCode(), "failed to load cues", err)
	}
	return WrapExitError(ExitCommandError, "failed to load cues", err)
}
