package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/webtiming/timingsrc/internal/trace"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Session describes one recorded sequencing run.
type Session struct {
	ID string
	// Mode is the sequencer mode, "point" or "interval".
	Mode string
	// Source names the cue file the run was driven by.
	Source    string
	StartedAt time.Time
	// Records is the number of stored records. It is filled by reads only.
	Records int
}

// CreateSession inserts a session. Creating an existing id is a no-op.
func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return fmt.Errorf("create session: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, mode, source, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sess.ID, sess.Mode, sess.Source, sess.StartedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// WriteRecord appends r to its session. Writing the same (session, seq)
// twice keeps the first record.
func (s *Store) WriteRecord(ctx context.Context, r trace.Record) error {
	var data sql.NullString
	if r.Data != nil {
		b, err := trace.MarshalValue(r.Data)
		if err != nil {
			return fmt.Errorf("write record %d: data: %w", r.Seq, err)
		}
		data = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (session_id, seq, time, kind, cue_key, interval, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, r.Session, r.Seq, r.Time, r.Kind, r.Key, r.Interval, data)
	if err != nil {
		return fmt.Errorf("write record %d: %w", r.Seq, err)
	}
	return nil
}

// Sink returns a trace sink that writes every record with ctx.
func (s *Store) Sink(ctx context.Context) trace.Sink {
	return func(r trace.Record) error {
		return s.WriteRecord(ctx, r)
	}
}
