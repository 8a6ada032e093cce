package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is the polling period of a [Watcher].
const DefaultWatchInterval = 5 * time.Second

// snapshot is one successfully loaded version of the watched file.
type snapshot struct {
	cfg   *Config
	sum   [sha256.Size]byte
	mtime time.Time
}

// Watcher keeps the landmark map and log level of a running service in sync
// with its config file. It polls the file and calls onChange when an edit
// validates and changes the effective config. Edits that fail validation
// and edits with no effect (comments, formatting, values masked by
// environment overrides) do not reach onChange.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu   sync.Mutex
	last snapshot

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Default: [DefaultWatchInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path and starts polling it in the background. onChange
// may be nil.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.last = snap

	go w.poll()
	return w, nil
}

// Current returns the most recent valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last.cfg
}

// Stop ends polling. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) poll() {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-t.C:
			if w.modified() {
				_, _ = w.Reload()
			}
		}
	}
}

// modified reports whether the file's mtime differs from the last loaded
// snapshot. Stat errors are logged and count as unmodified.
func (w *Watcher) modified() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return !info.ModTime().Equal(w.last.mtime)
}

// Reload reads the file now, regardless of its mtime, and applies it like a
// polled change. It returns the diff that was applied; an empty diff means
// onChange was not called. An invalid file leaves the current config in
// place and is returned as an error.
func (w *Watcher) Reload() (ConfigDiff, error) {
	snap, err := w.load()
	if err != nil {
		slog.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		return ConfigDiff{}, err
	}

	w.mu.Lock()
	prev := w.last
	if snap.sum == prev.sum {
		w.last.mtime = snap.mtime
		w.mu.Unlock()
		return ConfigDiff{}, nil
	}
	d := Diff(prev.cfg, snap.cfg)
	w.last = snap
	w.mu.Unlock()

	if d.Empty() {
		slog.Debug("config watcher: file changed without effect", "path", w.path)
		return d, nil
	}
	slog.Info("config watcher: configuration reloaded",
		"path", w.path,
		"log_level_changed", d.LogLevelChanged,
		"landmarks_added", d.AddedLandmarks,
		"landmarks_removed", d.RemovedLandmarks,
		"landmarks_changed", d.ChangedLandmarks,
		"restart_required", d.RestartRequired,
	)
	if w.onChange != nil {
		w.onChange(prev.cfg, snap.cfg)
	}
	return d, nil
}

func (w *Watcher) load() (snapshot, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return snapshot{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return snapshot{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{cfg: cfg, sum: sha256.Sum256(data), mtime: info.ModTime()}, nil
}
