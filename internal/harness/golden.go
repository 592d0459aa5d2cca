package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/webtiming/timingsrc/internal/trace"
)

// RunWithGolden runs scenario, fails t on any expectation error and
// compares the canonical trace with testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()
	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the canonical trace of result with the golden file
// for name.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()
	out, err := GoldenBytes(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, out)
	return nil
}

// GoldenBytes renders the trace of result as it is stored in golden files:
// canonical JSON followed by a newline.
func GoldenBytes(result *Result) ([]byte, error) {
	out, err := trace.MarshalCanonical(result.Trace)
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
