// Package store persists sequencing sessions in SQLite.
//
// A session is one run of a sequencer over a cue file. Its transitions are
// stored as an append-only list of records keyed by (session, seq). Reads
// always order by seq so that a stored session replays in the order it was
// recorded.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//
// Cue data is stored as canonical JSON (see trace.MarshalValue).
package store
