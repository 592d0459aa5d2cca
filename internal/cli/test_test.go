package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	scenarioFixtures = "../harness/testdata/scenarios"
	goldenFixtures   = "../harness/testdata/golden"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const failingScenario = `name: failing
mode: point
cues:
  - key: a
    interval: [0, 10]
movers:
  - position: 5
until: 1
expect:
  - enter b@0
`

func TestTestCommand_Pass(t *testing.T) {
	out, err := execute(t, "test", scenarioFixtures, "--golden", goldenFixtures)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ interval_window\n")
	assert.Contains(t, out, "✓ point_batches\n")
	assert.Contains(t, out, "✓ point_chapters\n")
	assert.Contains(t, out, "Test Summary: 3 passed, 0 failed, 3 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(t, "test", scenarioFixtures, "--golden", goldenFixtures, "--filter", "point_*", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "point_batches", resp.Data.Scenarios[0].Name)
	assert.Equal(t, "point_chapters", resp.Data.Scenarios[1].Name)
}

func TestTestCommand_InvalidFilter(t *testing.T) {
	_, err := execute(t, "test", scenarioFixtures, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestTestCommand_Update(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "golden")
	_, err := execute(t, "test", scenarioFixtures, "--golden", dir, "--update")
	require.NoError(t, err)

	for _, name := range []string{"interval_window", "point_batches", "point_chapters"} {
		got, err := os.ReadFile(filepath.Join(dir, name+".golden"))
		require.NoError(t, err)
		want, err := os.ReadFile(filepath.Join(goldenFixtures, name+".golden"))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), name)
	}

	// A second run without --update compares against what was written.
	out, err := execute(t, "test", scenarioFixtures, "--golden", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "3 passed, 0 failed")
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "scenarios")
	data, err := os.ReadFile(filepath.Join(scenarioFixtures, "point_chapters.yaml"))
	require.NoError(t, err)
	// The scenario's cue file is resolved relative to the scenario.
	cues, err := os.ReadFile("../harness/testdata/cues/chapters.yaml")
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, "point_chapters.yaml"), string(data))
	writeFile(t, filepath.Join(root, "cues", "chapters.yaml"), string(cues))
	writeFile(t, filepath.Join(dir, "golden", "point_chapters.golden"), "[]\n")

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ point_chapters\n")
	assert.Contains(t, out, "trace does not match golden file (run with --update to regenerate)")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommand_Failing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "failing.yaml"), failingScenario)

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ failing\n")
	assert.Contains(t, out, `trace[0]: got "enter a@0", want "enter b@0"`)
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommand_FailingJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "failing.yaml"), failingScenario)

	out, err := execute(t, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeFailed, resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.False(t, resp.Data.Scenarios[0].Pass)
}

func TestTestCommand_BadScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.yaml"), "name: [\n")

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml\n")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommand_Empty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a scenario")

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)

	out, err = execute(t, "test", dir, "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 0, resp.Data.Total)
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}
