package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/webtiming/timingsrc/internal/motion"
)

// Scenario describes one sequencing run and its expected outcome.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Mode is "point" (one mover) or "interval" (two movers).
	Mode string `yaml:"mode"`

	// Session is the session id of the recorded trace. Defaults to Name.
	Session string `yaml:"session,omitempty"`

	// Lookahead overrides the schedule lookahead in seconds.
	Lookahead float64 `yaml:"lookahead,omitempty"`

	// Strategy forces a batch reconcile strategy: "events" or "lookup".
	Strategy string `yaml:"strategy,omitempty"`

	// CueFile is loaded before Cues. Relative paths resolve against the
	// scenario file.
	CueFile string `yaml:"cue_file,omitempty"`

	// Cues are inline cue records in cue file syntax.
	Cues []any `yaml:"cues,omitempty"`

	Movers []MoverSpec `yaml:"movers"`

	// Steps run in order; their times must not decrease.
	Steps []Step `yaml:"steps,omitempty"`

	// Until is the time the clock is advanced to after the last step.
	Until float64 `yaml:"until"`

	// Expect is the complete expected trace as "kind key@time" strings.
	// Nil skips the comparison.
	Expect []string `yaml:"expect,omitempty"`

	Assertions []Assertion `yaml:"assertions,omitempty"`

	// dir is the directory of the scenario file.
	dir string
}

// MoverSpec is the initial vector of one mover.
type MoverSpec struct {
	Position     float64       `yaml:"position"`
	Velocity     float64       `yaml:"velocity"`
	Acceleration float64       `yaml:"acceleration"`
	Range        *motion.Range `yaml:"range,omitempty"`
}

// Step is a set of actions applied at time At, in field order: mover
// update, cue batch, removals, then the active check.
type Step struct {
	At     float64      `yaml:"at"`
	Update *MoverUpdate `yaml:"update,omitempty"`
	Cues   []any        `yaml:"cues,omitempty"`
	Remove []string     `yaml:"remove,omitempty"`
	// Active lists the expected active keys after the step. An empty list
	// expects no active cue; nil skips the check.
	Active []string `yaml:"active,omitempty"`
}

// MoverUpdate changes a mover's vector. Nil fields keep their current
// value.
type MoverUpdate struct {
	Mover        int      `yaml:"mover"`
	Position     *float64 `yaml:"position,omitempty"`
	Velocity     *float64 `yaml:"velocity,omitempty"`
	Acceleration *float64 `yaml:"acceleration,omitempty"`
}

// Assertion checks the final trace or active set.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kind and Key select records (trace_contains, trace_count). Empty
	// matches any.
	Kind string `yaml:"kind,omitempty"`
	Key  string `yaml:"key,omitempty"`

	// Count is the expected number of matches (trace_count).
	Count int `yaml:"count,omitempty"`

	// Records are "kind key" or "kind key@time" strings (trace_order).
	Records []string `yaml:"records,omitempty"`

	// Keys are the expected final active keys (final_active).
	Keys []string `yaml:"keys,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalActive   = "final_active"
)

// LoadScenario reads a scenario file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// ParseScenario decodes and validates a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// LoadDir loads every .yaml and .yml scenario in dir, sorted by file
// name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch s.Mode {
	case "point":
		if len(s.Movers) != 1 {
			return fmt.Errorf("point mode needs 1 mover, got %d", len(s.Movers))
		}
	case "interval":
		if len(s.Movers) != 2 {
			return fmt.Errorf("interval mode needs 2 movers, got %d", len(s.Movers))
		}
	default:
		return fmt.Errorf("mode must be point or interval, got %q", s.Mode)
	}
	switch s.Strategy {
	case "", "events", "lookup":
	default:
		return fmt.Errorf("strategy must be events or lookup, got %q", s.Strategy)
	}
	if s.Lookahead < 0 {
		return fmt.Errorf("lookahead must not be negative")
	}

	last := 0.0
	for i, st := range s.Steps {
		if st.At < last {
			return fmt.Errorf("step %d: time %g is before %g", i, st.At, last)
		}
		last = st.At
		if st.Update != nil && (st.Update.Mover < 0 || st.Update.Mover >= len(s.Movers)) {
			return fmt.Errorf("step %d: no mover %d", i, st.Update.Mover)
		}
	}
	if s.Until < last {
		return fmt.Errorf("until %g is before the last step at %g", s.Until, last)
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertTraceContains, AssertTraceCount, AssertFinalActive:
		case AssertTraceOrder:
			if len(a.Records) < 2 {
				return fmt.Errorf("assertion %d: trace_order needs at least 2 records", i)
			}
		default:
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
	}
	return nil
}
