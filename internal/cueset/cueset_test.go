package cueset

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webtiming/timingsrc/internal/dataset"
	"github.com/webtiming/timingsrc/internal/interval"
)

func ivPtr(low, high float64, lowInclude, highInclude bool) *interval.Interval {
	iv := interval.MustNew(low, high, lowInclude, highInclude)
	return &iv
}

func wantArgs() []dataset.Arg {
	return []dataset.Arg{
		dataset.Put("intro", ivPtr(0, 10, true, false), nil),
		dataset.Put("chapter", ivPtr(10, 20, true, true), nil),
		dataset.Put("marker", ivPtr(15, 15, true, true), nil),
		dataset.Put("credits", ivPtr(20, math.Inf(1), true, true), map[string]any{"title": "Credits"}),
		dataset.Put("note", nil, "free floating"),
	}
}

func TestLoad_Formats(t *testing.T) {
	for _, name := range []string{"cues.yaml", "cues.json", "cues.cue"} {
		t.Run(name, func(t *testing.T) {
			args, err := Load(filepath.Join("testdata", name))
			require.NoError(t, err)
			assert.Equal(t, wantArgs(), args)
		})
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"a.yaml", FormatYAML},
		{"a.YML", FormatYAML},
		{"a.json", FormatJSON},
		{"dir/a.cue", FormatCUE},
	}
	for _, tt := range tests {
		got, err := FormatOf(tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.path)
	}
	_, err := FormatOf("a.txt")
	assert.Error(t, err)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "cues.txt"))
	assert.Error(t, err)

	_, err = Load(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(filepath.Join("testdata", "bad.cue"))
	require.Error(t, err)
	assert.True(t, IsError(err))
	assert.Contains(t, err.Error(), "colour")
}

func TestDecode_TopLevelList(t *testing.T) {
	args, err := Decode([]byte("- key: a\n  interval: [1, 2]\n"), FormatYAML, "inline")
	require.NoError(t, err)
	assert.Equal(t, []dataset.Arg{dataset.Put("a", ivPtr(1, 2, true, false), nil)}, args)
}

func TestDecode_Empty(t *testing.T) {
	for _, body := range []string{"", "cues:\n", "[]"} {
		args, err := Decode([]byte(body), FormatYAML, "inline")
		require.NoError(t, err, body)
		assert.Empty(t, args, body)
	}
}

func TestDecode_NormalizesKeys(t *testing.T) {
	// "e" followed by a combining acute accent.
	args, err := Decode([]byte("- key: \"cafe\\u0301\"\n"), FormatYAML, "inline")
	require.NoError(t, err)
	require.Len(t, args, 1)
	assert.Equal(t, "caf\u00e9", args[0].Key)
}

func TestDecode_RecordErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing key", "- interval: [1, 2]\n", "key is required"},
		{"empty key", "- key: \"\"\n", "key is required"},
		{"key not string", "- key: [1]\n", "key must be a string"},
		{"unknown field", "- key: a\n  colour: red\n", `unknown field "colour"`},
		{"not a mapping", "- 3\n", "not a mapping"},
		{"reversed bounds", "- key: a\n  interval: [5, 1]\n", "high bound is below low bound"},
		{"nan bound", "- key: a\n  interval: [.nan, 1]\n", "high bound is below low bound"},
		{"bad list length", "- key: a\n  interval: [1, 2, true]\n", "2 or 4 elements"},
		{"bad flags", "- key: a\n  interval: [1, 2, yes, 1]\n", "booleans"},
		{"bad bound", "- key: a\n  interval: [x, 2]\n", "bad low bound"},
		{"bad string", "- key: a\n  interval: \"[1,x]\"\n", "bad bound"},
		{"bad type", "- key: a\n  interval: {low: 1}\n", "unsupported interval"},
		{"infinite point", "- key: a\n  interval: [inf, inf]\n", "singular interval"},
		{"duplicate", "- key: a\n- key: b\n- key: a\n", "duplicate key, first defined by cue 0"},
		{"cues not list", "cues: 3\n", `"cues" is not a list`},
		{"no cues field", "other: []\n", `missing "cues" list`},
		{"scalar document", "3\n", "expected a list"},
		{"malformed yaml", "- key: [\n", "inline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body), FormatYAML, "inline")
			require.Error(t, err)
			assert.True(t, IsError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Path: "f.yaml", Index: 2, Key: "a", Message: "bad"}
	assert.Equal(t, `f.yaml: cue 2 (key="a"): bad`, err.Error())
	err = &Error{Path: "f.yaml", Index: -1, Message: "bad"}
	assert.Equal(t, "f.yaml: bad", err.Error())
}

func TestDecode_CUEConstraints(t *testing.T) {
	_, err := Decode([]byte(`cues: [{key: ""}]`), FormatCUE, "inline.cue")
	assert.Error(t, err)

	_, err = Decode([]byte(`cues: [{key: "a", interval: true}]`), FormatCUE, "inline.cue")
	assert.Error(t, err)

	args, err := Decode([]byte(`other: 1`), FormatCUE, "inline.cue")
	require.NoError(t, err)
	assert.Empty(t, args)

	_, err = Decode([]byte(`cues: [`), FormatCUE, "inline.cue")
	assert.Error(t, err)
}

func TestReconcile(t *testing.T) {
	ds := dataset.New()
	_, err := ds.Update([]dataset.Arg{
		dataset.PutInterval("keep", interval.MustNew(0, 1, true, false)),
		dataset.PutInterval("drop", interval.MustNew(2, 3, true, false)),
	})
	require.NoError(t, err)

	batch, err := Reconcile(ds, []dataset.Arg{
		dataset.Put("keep", ivPtr(0, 2, true, false), nil),
		dataset.Put("new", ivPtr(5, 6, true, false), nil),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Len())
	assert.Equal(t, []string{"keep", "new"}, ds.Keys())

	keep, ok := ds.Get("keep")
	require.True(t, ok)
	assert.Equal(t, interval.MustNew(0, 2, true, false), *keep.Interval)
}

func TestReconcile_FromFile(t *testing.T) {
	ds := dataset.New()
	args, err := Load(filepath.Join("testdata", "cues.yaml"))
	require.NoError(t, err)
	_, err = Reconcile(ds, args)
	require.NoError(t, err)
	assert.Equal(t, 5, ds.Len())
	assert.NoError(t, ds.Integrity())

	got := ds.Lookup(interval.MustNew(14, 16, true, true), interval.MatchCovers)
	keys := make([]string, len(got))
	for i, c := range got {
		keys[i] = c.Key
	}
	assert.ElementsMatch(t, []string{"chapter", "marker"}, keys)
}
