// Package watch reports changes to a single file.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when File is given zero.
const DefaultDebounce = 100 * time.Millisecond

// Option configures File.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger sets the logger for watcher errors.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// File calls onChange after path is written, created or replaced and no
// further event arrived for debounce. It watches the parent directory so
// that editors replacing the file by rename are seen. File blocks until
// ctx is done and then returns nil.
//
// onChange runs on the watcher goroutine; callers that own state elsewhere
// post from it (for example with loop.Post).
func File(ctx context.Context, path string, debounce time.Duration, onChange func(), opts ...Option) error {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !relevant(ev.Op) {
				continue
			}
			cfg.logger.Debug("cue file event", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			cfg.logger.Warn("file watcher error", "path", abs, "error", err)
		case <-timer.C:
			onChange()
		}
	}
}

// relevant reports whether op may have changed the file content. Removes
// are ignored: a replace by rename is followed by a create.
func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create)
}
