package trace

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webtiming/timingsrc/internal/dataset"
	"github.com/webtiming/timingsrc/internal/interval"
	"github.com/webtiming/timingsrc/internal/motion"
	"github.com/webtiming/timingsrc/internal/sequencer"
	"github.com/webtiming/timingsrc/internal/testutil"
	"github.com/webtiming/timingsrc/internal/timing"
)

type fixture struct {
	clock *testutil.ManualClock
	ds    *dataset.Dataset
	seq   *sequencer.Sequencer
}

func newFixture(t *testing.T, vec motion.Vector) *fixture {
	t.Helper()
	clock := testutil.NewManualClock(0)
	ds := dataset.New()
	_, err := ds.Update([]dataset.Arg{
		dataset.Put("a", ptr(interval.MustNew(0, 2, true, true)), map[string]any{"title": "intro"}),
		dataset.PutInterval("b", interval.MustNew(3, 4, true, false)),
	})
	require.NoError(t, err)
	obj := timing.NewObject(clock, timing.WithVector(vec))
	return &fixture{clock: clock, ds: ds, seq: sequencer.NewPoint(ds, obj)}
}

func ptr[T any](v T) *T { return &v }

func TestRecorder_RecordsTransitions(t *testing.T) {
	f := newFixture(t, motion.Vector{Position: 1, Velocity: 1})
	rec := NewRecorder(f.seq, f.clock, WithSession("s1"))

	f.clock.Advance(5)

	records := rec.Records()
	assert.Equal(t, []string{"enter a@0", "exit a@1", "enter b@2", "exit b@3"}, Strings(records))
	for i, r := range records {
		assert.Equal(t, "s1", r.Session)
		assert.Equal(t, int64(i+1), r.Seq)
	}
	assert.Equal(t, "[0,2]", records[0].Interval)
	assert.Equal(t, map[string]any{"title": "intro"}, records[0].Data)
	assert.Equal(t, "[3,4)", records[2].Interval)
}

func TestRecorder_Sink(t *testing.T) {
	f := newFixture(t, motion.Vector{Position: 1, Velocity: 1})
	var got []Record
	rec := NewRecorder(f.seq, f.clock, WithSession("s1"), WithSink(func(r Record) error {
		got = append(got, r)
		return nil
	}))
	f.clock.Advance(5)
	assert.Equal(t, rec.Records(), got)
	assert.NoError(t, rec.Err())
}

func TestRecorder_SinkErrorStopsForwarding(t *testing.T) {
	f := newFixture(t, motion.Vector{Position: 1, Velocity: 1})
	calls := 0
	boom := errors.New("disk full")
	rec := NewRecorder(f.seq, f.clock, WithSession("s1"), WithSink(func(Record) error {
		calls++
		return boom
	}))
	f.clock.Advance(5)

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, rec.Err(), boom)
	assert.Len(t, rec.Records(), 4)
}

func TestRecorder_SessionIDs(t *testing.T) {
	f := newFixture(t, motion.Vector{})
	rec := NewRecorder(f.seq, f.clock, WithIDGenerator(testutil.NewFixedIDGenerator("")))
	assert.Equal(t, "session-1", rec.Session())

	rec = NewRecorder(f.seq, f.clock)
	id, err := uuid.Parse(rec.Session())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestRecorder_Close(t *testing.T) {
	f := newFixture(t, motion.Vector{Position: 1, Velocity: 1})
	rec := NewRecorder(f.seq, f.clock, WithSession("s1"))
	rec.Close()
	rec.Close()
	f.clock.Advance(5)
	assert.Equal(t, []string{"enter a@0"}, Strings(rec.Records()))
}

func TestMarshalCanonical(t *testing.T) {
	records := []Record{
		{Session: "s", Seq: 1, Time: 1.5, Kind: "enter", Key: "a", Interval: "[0,2]",
			Data: map[string]any{"z": 1, "a": []any{true, nil, "x<y"}}},
		{Session: "s", Seq: 2, Time: 3, Kind: "exit", Key: "café"},
	}
	out, err := MarshalCanonical(records)
	require.NoError(t, err)
	assert.Equal(t,
		`[{"data":{"a":[true,null,"x<y"],"z":1},"interval":"[0,2]","key":"a","kind":"enter","seq":1,"session":"s","time":1.5},`+
			`{"key":"café","kind":"exit","seq":2,"session":"s","time":3}]`,
		string(out))

	again, err := MarshalCanonical(records)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestMarshalCanonical_Escapes(t *testing.T) {
	out, err := MarshalCanonical([]Record{{Kind: "enter", Key: "a\"b\\c\n\x01 "}})
	require.NoError(t, err)
	assert.Equal(t, `[{"key":"a\"b\\c\n\u0001`+" "+`","kind":"enter","seq":0,"session":"","time":0}]`, string(out))
}

func TestMarshalCanonical_Errors(t *testing.T) {
	_, err := MarshalCanonical([]Record{{Data: struct{}{}}})
	assert.Error(t, err)

	_, err = MarshalCanonical([]Record{{Data: map[string]any{"x": 1.0 / zero()}}})
	assert.Error(t, err)
}

func zero() float64 { return 0 }

func TestMarshalCanonical_Empty(t *testing.T) {
	out, err := MarshalCanonical(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}
