package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/webtiming/timingsrc/internal/trace"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []trace.Record
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, r := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", r.Seq, r)
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var msgs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalActive:
			err = assertFinalActive(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return msgs
}

func matches(r trace.Record, kind, key string) bool {
	return (kind == "" || r.Kind == kind) && (key == "" || r.Key == key)
}

func describeSelector(kind, key string) string {
	switch {
	case kind == "" && key == "":
		return "any record"
	case kind == "":
		return "records of " + key
	case key == "":
		return kind + " records"
	default:
		return kind + " " + key
	}
}

func assertTraceContains(records []trace.Record, a Assertion) error {
	for _, r := range records {
		if matches(r, a.Kind, a.Key) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeSelector(a.Kind, a.Key),
		Actual:   "not found in trace",
		Trace:    records,
	}
}

// assertTraceOrder checks that the listed records appear in order.
// Intervening records are allowed. Each entry is "kind key" or
// "kind key@time".
func assertTraceOrder(records []trace.Record, a Assertion) error {
	pos := 0
	for _, want := range a.Records {
		found := false
		for pos < len(records) {
			r := records[pos]
			pos++
			if orderMatch(r, want) {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("records in order: %v", a.Records),
				Actual:   fmt.Sprintf("%q not found after earlier entries", want),
				Trace:    records,
			}
		}
	}
	return nil
}

func orderMatch(r trace.Record, want string) bool {
	if strings.Contains(want, "@") {
		return r.String() == want
	}
	return r.Kind+" "+r.Key == want
}

func assertTraceCount(records []trace.Record, a Assertion) error {
	count := 0
	for _, r := range records {
		if matches(r, a.Kind, a.Key) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s", a.Count, describeSelector(a.Kind, a.Key)),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    records,
		}
	}
	return nil
}

func assertFinalActive(result *Result, a Assertion) error {
	want := sortedKeys(a.Keys)
	if !slices.Equal(result.Active, want) {
		return &AssertionError{
			Type:     AssertFinalActive,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", result.Active),
			Trace:    result.Trace,
		}
	}
	return nil
}
