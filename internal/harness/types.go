package harness

import (
	"github.com/webtiming/timingsrc/internal/trace"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when no expectation or assertion failed.
	Pass bool `json:"pass"`

	// Trace holds the recorded transitions in seq order.
	Trace []trace.Record `json:"trace"`

	// Active is the set of active keys at the end of the run, sorted.
	Active []string `json:"active"`

	// Errors describes every failed check.
	Errors []string `json:"errors,omitempty"`
}

// NewResult returns a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []trace.Record{},
		Active: []string{},
		Errors: []string{},
	}
}

// AddError records a failed check.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
