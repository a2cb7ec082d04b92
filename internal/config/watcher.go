package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Change is a configuration update accepted by a [Watcher].
type Change struct {
	Old, New *Config
	Diff     ConfigDiff
}

// Watcher reloads a config file when it changes on disk. It polls the file's
// size and modification time; a changed file is parsed and validated again
// and compared with the current config using [Diff]. Invalid files and edits
// that change no setting are ignored, and the previous config stays current.
type Watcher struct {
	path     string
	interval time.Duration

	mu      sync.Mutex
	current *Config
	stamp   fileStamp
}

type fileStamp struct {
	size  int64
	mtime time.Time
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the config at path. Polling starts with [Watcher.Run].
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: 5 * time.Second}
	for _, opt := range opts {
		opt(w)
	}
	stamp, err := statFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current, w.stamp = cfg, stamp
	return w, nil
}

// Current returns the most recently accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls the file until ctx is done and calls onChange for every
// accepted change, from the polling goroutine.
func (w *Watcher) Run(ctx context.Context, onChange func(Change)) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		ch, ok, err := w.Check()
		if err != nil {
			slog.Warn("config reload skipped", "path", w.path, "err", err)
			continue
		}
		if ok {
			slog.Info("config reloaded", "path", w.path, "restart_required", ch.Diff.RestartRequired)
			onChange(ch)
		}
	}
}

// Check looks at the file once. It reports ok when a new config was
// accepted; err is set when the file changed but cannot be used.
func (w *Watcher) Check() (ch Change, ok bool, err error) {
	stamp, err := statFile(w.path)
	if err != nil {
		return Change{}, false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if stamp.same(w.stamp) {
		return Change{}, false, nil
	}
	// An invalid file is reported once, not on every poll.
	w.stamp = stamp

	cfg, err := Load(w.path)
	if err != nil {
		return Change{}, false, err
	}
	d := Diff(w.current, cfg)
	if d.IsZero() {
		return Change{}, false, nil
	}
	ch = Change{Old: w.current, New: cfg, Diff: d}
	w.current = cfg
	return ch, true, nil
}

func (s fileStamp) same(o fileStamp) bool {
	return s.size == o.size && s.mtime.Equal(o.mtime)
}

func statFile(path string) (fileStamp, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, err
	}
	return fileStamp{size: fi.Size(), mtime: fi.ModTime()}, nil
}
