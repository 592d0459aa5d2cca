package cli

import (
	"bufio"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webtiming/timingsrc/internal/sequencer"
	"github.com/webtiming/timingsrc/internal/testutil"
)

func TestSequenceCommand_Point(t *testing.T) {
	out, err := execute(t, "sequence", "testdata/cues.yaml",
		"--position", "15", "--duration", "50ms", "--session", "s1")
	require.NoError(t, err)

	assert.Contains(t, out, "Sequencing testdata/cues.yaml (point mode, session s1).")
	assert.Contains(t, out, "enter  chapter [10,20]\n")
	assert.Contains(t, out, "enter  marker [15]\n")
	assert.NotContains(t, out, "intro")
	assert.True(t, strings.HasSuffix(out, "Stopped after 2 transition(s).\n"), out)
}

func TestSequenceCommand_Interval(t *testing.T) {
	out, err := execute(t, "sequence", "testdata/cues.yaml",
		"--position", "5", "--to-position", "12", "--duration", "50ms", "--session", "s2")
	require.NoError(t, err)

	assert.Contains(t, out, "(interval mode, session s2)")
	assert.Contains(t, out, "enter  intro [0,10)\n")
	assert.Contains(t, out, "enter  chapter [10,20]\n")
	assert.Contains(t, out, "Stopped after 2 transition(s).")
}

func TestSequenceCommand_JSONLines(t *testing.T) {
	out, err := execute(t, "sequence", "testdata/cues.yaml",
		"--position", "25", "--duration", "50ms", "--session", "s3", "--format", "json")
	require.NoError(t, err)

	var records []map[string]any
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec), sc.Text())
		records = append(records, rec)
	}
	require.Len(t, records, 1)
	assert.Equal(t, "credits", records[0]["key"])
	assert.Equal(t, "enter", records[0]["kind"])
	assert.Equal(t, "s3", records[0]["session"])
	assert.Equal(t, map[string]any{"title": "Credits"}, records[0]["data"])
}

func TestSequenceCommand_WritesStore(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	_, err := execute(t, "sequence", "testdata/cues.yaml",
		"--position", "15", "--duration", "50ms", "--db", db, "--session", "stored")
	require.NoError(t, err)

	out, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "SESSION")
	assert.Contains(t, out, "stored")
	assert.Contains(t, out, "testdata/cues.yaml")

	out, err = execute(t, "trace", "--db", db, "stored", "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "point", resp.Data.Session.Mode)
	assert.Equal(t, 2, resp.Data.Session.Records)
	assert.Equal(t, TraceStats{Total: 2, Enter: 2}, resp.Data.Stats)
	require.Len(t, resp.Data.Records, 2)
	assert.Equal(t, "chapter", resp.Data.Records[0].Key)
	assert.Equal(t, "marker", resp.Data.Records[1].Key)
}

func TestSequenceCommand_GeneratedSession(t *testing.T) {
	opts := &SequenceOptions{
		RootOptions: &RootOptions{Format: "text"},
		Lookahead:   1,
		Duration:    20e6,
		IDGenerator: testutil.NewFixedIDGenerator("generated-1"),
	}
	cmd := NewSequenceCommand(opts.RootOptions)
	out := &strings.Builder{}
	cmd.SetOut(out)
	require.NoError(t, runSequence(opts, "testdata/cues.yaml", cmd))
	assert.Contains(t, out.String(), "session generated-1")
}

func TestSequenceCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"strategy", []string{"--strategy", "guess"}, ExitCommandError, "invalid --strategy"},
		{"lookahead", []string{"--lookahead", "0"}, ExitCommandError, "--lookahead must be positive"},
		{"database", []string{"--db", "/nonexistent/dir/runs.db"}, ExitCommandError, "failed to open database"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"sequence", "testdata/cues.yaml", "--duration", "10ms"}, tt.args...)
			_, err := execute(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, tt.code, GetExitCode(err))
		})
	}

	_, err := execute(t, "sequence", "testdata/nope.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPolicyFor(t *testing.T) {
	p, err := policyFor("lookup")
	require.NoError(t, err)
	assert.Equal(t, sequencer.FromLookup, p(0, 0))

	p, err = policyFor("events")
	require.NoError(t, err)
	assert.Equal(t, sequencer.FromEvents, p(1e6, 0))

	p, err = policyFor("auto")
	require.NoError(t, err)
	assert.Equal(t, sequencer.FromLookup, p(10000, 0))
	assert.Equal(t, sequencer.FromEvents, p(10, 0))

	_, err = policyFor("other")
	require.Error(t, err)
}
