// Package harness runs sequencing scenarios against a manual clock.
//
// A scenario sets up cues and movers, applies timed steps and compares the
// resulting transition trace with an expected list and with assertions.
// Time only moves when the harness sets the clock, so every run of a
// scenario produces the same trace.
//
// # Scenario Format
//
//	name: chapters
//	description: "Point sequencer crossing two chapters"
//	mode: point                 # point | interval
//	session: chapters-1         # optional fixed session id
//	strategy: lookup            # optional: events | lookup
//	cue_file: cues.yaml         # optional, relative to the scenario
//	cues:
//	  - key: a
//	    interval: [1, 3]
//	movers:
//	  - position: 0
//	    velocity: 1
//	    range: {low: 0, high: 10}
//	steps:
//	  - at: 2
//	    active: [a]
//	  - at: 2.5
//	    update: {mover: 0, velocity: 0}
//	  - at: 3
//	    cues:
//	      - key: b
//	        interval: [2, 4]
//	    remove: [a]
//	until: 10
//	expect:
//	  - enter a@1
//	  - exit a@3
//	assertions:
//	  - type: trace_count
//	    kind: enter
//	    count: 1
//
// # Assertion Types
//
//   - trace_contains: a record with the given kind and key exists
//   - trace_order: the listed records appear in order, not necessarily
//     adjacent
//   - trace_count: the number of records matching kind and/or key
//   - final_active: the active keys after the run
//
// Records are written to an in-memory store and read back, so the trace
// seen by assertions is the stored one.
package harness
