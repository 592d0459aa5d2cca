package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/webtiming/timingsrc/internal/trace"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("store: session not found")

// GetSession returns the session with id.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.mode, s.source, s.started_at, COUNT(r.seq)
		FROM sessions s
		LEFT JOIN records r ON r.session_id = s.id
		WHERE s.id = ?
		GROUP BY s.id
	`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("get session %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session %q: %w", id, err)
	}
	return sess, nil
}

// Sessions returns all sessions, oldest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.mode, s.source, s.started_at, COUNT(r.seq)
		FROM sessions s
		LEFT JOIN records r ON r.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at ASC, s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadSession returns the records of session id ordered by seq. It returns
// an empty slice for a session without records.
func (s *Store) ReadSession(ctx context.Context, id string) ([]trace.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, time, kind, cue_key, interval, data
		FROM records
		WHERE session_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []trace.Record{}
	for rows.Next() {
		var (
			r    trace.Record
			data sql.NullString
		)
		if err := rows.Scan(&r.Session, &r.Seq, &r.Time, &r.Kind, &r.Key, &r.Interval, &data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if data.Valid {
			if err := json.Unmarshal([]byte(data.String), &r.Data); err != nil {
				return nil, fmt.Errorf("record %d: data: %w", r.Seq, err)
			}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		sess    Session
		started string
	)
	if err := row.Scan(&sess.ID, &sess.Mode, &sess.Source, &started, &sess.Records); err != nil {
		return Session{}, err
	}
	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return Session{}, fmt.Errorf("session %q: started_at: %w", sess.ID, err)
	}
	sess.StartedAt = t
	return sess, nil
}
