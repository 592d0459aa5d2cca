package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webtiming/timingsrc/internal/trace"
)

func createTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func testSession(id string, started time.Time) Session {
	return Session{ID: id, Mode: "point", Source: "cues.yaml", StartedAt: started}
}

func TestOpen_Pragmas(t *testing.T) {
	s, _ := createTestStore(t)

	tests := []struct {
		name string
		want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.pragma(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_Reopen(t *testing.T) {
	s, path := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, testSession("s1", time.Unix(10, 0))))
	require.NoError(t, s.Close())

	again, err := Open(path)
	require.NoError(t, err)
	defer again.Close()
	sessions, err := again.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
}

func TestOpen_MigratesVersionOne(t *testing.T) {
	s, path := createTestStore(t)
	_, err := s.db.Exec(`DROP INDEX idx_records_key; PRAGMA user_version = 1`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	again, err := Open(path)
	require.NoError(t, err)
	defer again.Close()

	var n int
	require.NoError(t, again.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_records_key'`).Scan(&n))
	assert.Equal(t, 1, n)
	v, err := again.pragma("user_version")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestStore_WriteAndReadSession(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, testSession("s1", time.Unix(10, 0))))

	records := []trace.Record{
		{Session: "s1", Seq: 2, Time: 1, Kind: "exit", Key: "a", Interval: "[0,1]"},
		{Session: "s1", Seq: 1, Time: 0, Kind: "enter", Key: "a", Interval: "[0,1]",
			Data: map[string]any{"title": "intro", "n": 3}},
		{Session: "s1", Seq: 3, Time: 2.5, Kind: "enter", Key: "b"},
	}
	for _, r := range records {
		require.NoError(t, s.WriteRecord(ctx, r))
	}

	got, err := s.ReadSession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"enter a@0", "exit a@1", "enter b@2.5"}, trace.Strings(got))
	assert.Equal(t, map[string]any{"title": "intro", "n": float64(3)}, got[0].Data)
	assert.Nil(t, got[1].Data)
	assert.Equal(t, "", got[2].Interval)
}

func TestStore_WriteRecordIsIdempotent(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, testSession("s1", time.Unix(10, 0))))

	r := trace.Record{Session: "s1", Seq: 1, Kind: "enter", Key: "a"}
	require.NoError(t, s.WriteRecord(ctx, r))
	r.Key = "other"
	require.NoError(t, s.WriteRecord(ctx, r))

	got, err := s.ReadSession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Key)
}

func TestStore_WriteRecordRejects(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	err := s.WriteRecord(ctx, trace.Record{Session: "missing", Seq: 1, Kind: "enter", Key: "a"})
	assert.Error(t, err, "foreign key")

	require.NoError(t, s.CreateSession(ctx, testSession("s1", time.Unix(10, 0))))
	err = s.WriteRecord(ctx, trace.Record{Session: "s1", Seq: 1, Kind: "bogus", Key: "a"})
	assert.Error(t, err, "kind check")

	err = s.WriteRecord(ctx, trace.Record{Session: "s1", Seq: 2, Kind: "enter", Key: "a", Data: struct{}{}})
	assert.Error(t, err, "unsupported data")

	assert.Error(t, s.CreateSession(ctx, Session{}))
}

func TestStore_Sessions(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	empty, err := s.Sessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, s.CreateSession(ctx, testSession("b", time.Unix(20, 0))))
	require.NoError(t, s.CreateSession(ctx, testSession("a", time.Unix(30, 0))))
	require.NoError(t, s.CreateSession(ctx, testSession("c", time.Unix(20, 0))))
	require.NoError(t, s.WriteRecord(ctx, trace.Record{Session: "a", Seq: 1, Kind: "enter", Key: "x"}))

	sessions, err := s.Sessions(ctx)
	require.NoError(t, err)
	ids := make([]string, len(sessions))
	for i, sess := range sessions {
		ids[i] = sess.ID
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids)
	assert.Equal(t, 1, sessions[2].Records)
	assert.True(t, sessions[0].StartedAt.Equal(time.Unix(20, 0)))
}

func TestStore_GetSession(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	_, err := s.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.CreateSession(ctx, testSession("s1", time.Unix(10, 0))))
	sess, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "point", sess.Mode)
	assert.Equal(t, "cues.yaml", sess.Source)
	assert.Zero(t, sess.Records)
}

func TestStore_SinkWritesRecorderOutput(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, testSession("s1", time.Unix(10, 0))))

	sink := s.Sink(ctx)
	require.NoError(t, sink(trace.Record{Session: "s1", Seq: 1, Kind: "enter", Key: "a"}))

	got, err := s.ReadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"enter a@0"}, trace.Strings(got))
}

func TestStore_CloseTwice(t *testing.T) {
	s, _ := createTestStore(t)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestStore_SessionsOrderBySubsecondStart(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	base := time.Unix(20, 0)
	require.NoError(t, s.CreateSession(ctx, testSession("later", base.Add(500*time.Millisecond))))
	require.NoError(t, s.CreateSession(ctx, testSession("sooner", base)))

	sessions, err := s.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "sooner", sessions[0].ID)
	assert.True(t, sessions[1].StartedAt.Equal(base.Add(500*time.Millisecond)))
}
