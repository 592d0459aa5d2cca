package dataset

import (
	"errors"
	"fmt"
)

// Error represents a rejected argument or a broken internal invariant.
//
// Argument errors are returned by Update and reject the whole batch.
// Consistency and index corruption errors are returned by Integrity; when
// detected on a lookup path they are raised with panic, since the index can
// no longer be trusted.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Key identifies the affected cue, if any.
	Key string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes dataset errors.
type ErrorCode string

const (
	// ErrCodeArgument indicates an invalid cue argument.
	ErrCodeArgument ErrorCode = "ARGUMENT"

	// ErrCodeConsistency indicates a failed integrity invariant.
	ErrCodeConsistency ErrorCode = "CONSISTENCY"

	// ErrCodeIndexCorruption indicates a point map entry that disagrees with
	// the cue it references.
	ErrCodeIndexCorruption ErrorCode = "INDEX_CORRUPTION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s (key=%q)", e.Code, e.Message, e.Key)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code ErrorCode) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsArgumentError reports whether err is an argument error.
func IsArgumentError(err error) bool {
	return hasCode(err, ErrCodeArgument)
}

// IsConsistencyError reports whether err is a consistency error.
func IsConsistencyError(err error) bool {
	return hasCode(err, ErrCodeConsistency)
}

// IsIndexCorruption reports whether err is an index corruption error.
func IsIndexCorruption(err error) bool {
	return hasCode(err, ErrCodeIndexCorruption)
}

// NewArgumentError creates an Error for an invalid cue argument at position
// index of the batch.
func NewArgumentError(index int, key, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeArgument,
		Message: fmt.Sprintf(format, args...),
		Key:     key,
		Details: map[string]string{
			"index": fmt.Sprintf("%d", index),
		},
	}
}

// NewConsistencyError creates an Error for a failed invariant.
func NewConsistencyError(format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeConsistency,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewIndexCorruption creates an Error for a point that does not match the
// endpoints of the cue stored under it.
func NewIndexCorruption(bucket float64, point float64, key string) *Error {
	return &Error{
		Code:    ErrCodeIndexCorruption,
		Message: fmt.Sprintf("point %g does not match cue endpoints", point),
		Key:     key,
		Details: map[string]string{
			"bucket": fmt.Sprintf("%g", bucket),
			"point":  fmt.Sprintf("%g", point),
		},
	}
}
