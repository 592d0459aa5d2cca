package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatch(t *testing.T, path string, debounce time.Duration) (*atomic.Int32, chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	fired := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- File(ctx, path, debounce, func() {
			calls.Add(1)
			fired <- struct{}{}
		})
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("File did not return after cancel")
		}
	})
	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	return &calls, fired
}

func waitFired(t *testing.T, fired chan struct{}) {
	t.Helper()
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange not called")
	}
}

func TestFile_DebouncesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cues.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	calls, fired := startWatch(t, path, 100*time.Millisecond)

	for i := range 5 {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o644))
		time.Sleep(10 * time.Millisecond)
	}
	waitFired(t, fired)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFile_SeesReplaceByRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cues.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	_, fired := startWatch(t, path, 20*time.Millisecond)

	tmp := filepath.Join(dir, ".cues.yaml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("b"), 0o644))
	require.NoError(t, os.Rename(tmp, path))
	waitFired(t, fired)
}

func TestFile_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cues.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	calls, _ := startWatch(t, path, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("b"), 0o644))
	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestFile_MissingDirectory(t *testing.T) {
	err := File(context.Background(), filepath.Join(t.TempDir(), "nope", "cues.yaml"), 0, func() {})
	assert.Error(t, err)
}

func TestRelevant(t *testing.T) {
	assert.True(t, relevant(fsnotify.Write))
	assert.True(t, relevant(fsnotify.Create))
	assert.True(t, relevant(fsnotify.Write|fsnotify.Chmod))
	assert.False(t, relevant(fsnotify.Remove))
	assert.False(t, relevant(fsnotify.Chmod))
	assert.False(t, relevant(fsnotify.Rename))
}
