package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/inkvision/internal/config"
)

const watcherYAML = `
server:
  log_level: info
landmarks:
  "Colosseum": "https://cdn.example.com/colosseum.mp4"
`

const watcherUpdatedYAML = `
server:
  log_level: debug
landmarks:
  "Colosseum": "https://cdn.example.com/colosseum.mp4"
  "Big Ben": "local:bigben.mp4"
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
	// Force a distinct mtime so coarse filesystem timestamps cannot hide the
	// change.
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %q: %v", path, err)
	}
}

func newWatchedFile(t *testing.T) (string, time.Time) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inkvision.yaml")
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeFile(t, path, watcherYAML, base)
	return path, base
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	path, _ := newWatchedFile(t)

	w, err := config.NewWatcher(path, nil, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if cfg := w.Current(); cfg == nil || cfg.Server.LogLevel != config.LogInfo {
		t.Fatalf("Current() = %+v", cfg)
	}
}

func TestWatcher_InitialLoadInvalid(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, watcherInvalidYAML, time.Now())
	if _, err := config.NewWatcher(path, nil); err == nil {
		t.Fatal("expected error for invalid initial config")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	path, base := newWatchedFile(t)

	type change struct{ old, new *config.Config }
	changes := make(chan change, 4)
	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		changes <- change{old, new}
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeFile(t, path, watcherUpdatedYAML, base.Add(time.Minute))

	select {
	case c := <-changes:
		if c.old.Server.LogLevel != config.LogInfo || c.new.Server.LogLevel != config.LogDebug {
			t.Errorf("log levels = %q -> %q", c.old.Server.LogLevel, c.new.Server.LogLevel)
		}
		if _, ok := c.new.Landmarks["Big Ben"]; !ok {
			t.Error("new config lacks Big Ben")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onChange not called")
	}
	if w.Current().Server.LogLevel != config.LogDebug {
		t.Error("Current() not updated")
	}
}

func TestWatcher_IgnoresInvalidAndTouch(t *testing.T) {
	t.Parallel()
	path, base := newWatchedFile(t)

	changes := make(chan struct{}, 4)
	w, err := config.NewWatcher(path, func(_, _ *config.Config) {
		changes <- struct{}{}
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// Same content, new mtime.
	writeFile(t, path, watcherYAML, base.Add(time.Minute))
	// Invalid content.
	writeFile(t, path, watcherInvalidYAML, base.Add(2*time.Minute))

	select {
	case <-changes:
		t.Fatal("onChange called for a touch or an invalid edit")
	case <-time.After(200 * time.Millisecond):
	}
	if w.Current().Server.LogLevel != config.LogInfo {
		t.Errorf("Current() log level = %q, want previous config kept", w.Current().Server.LogLevel)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	path, _ := newWatchedFile(t)
	w, err := config.NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()
	w.Stop()
}

func TestWatcher_CommentOnlyEditIsNotAChange(t *testing.T) {
	t.Parallel()
	path, base := newWatchedFile(t)

	changes := make(chan struct{}, 4)
	w, err := config.NewWatcher(path, func(_, _ *config.Config) {
		changes <- struct{}{}
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeFile(t, path, "# edited by hand\n"+watcherYAML, base.Add(time.Minute))

	select {
	case <-changes:
		t.Fatal("onChange called for a comment-only edit")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_Reload(t *testing.T) {
	t.Parallel()
	path, base := newWatchedFile(t)

	var calls int
	// A long interval keeps the poller out of the way.
	w, err := config.NewWatcher(path, func(_, _ *config.Config) { calls++ }, config.WithInterval(time.Hour))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	d, err := w.Reload()
	if err != nil || !d.Empty() || calls != 0 {
		t.Fatalf("Reload of unchanged file = %+v, %v (calls %d)", d, err, calls)
	}

	writeFile(t, path, watcherUpdatedYAML, base.Add(time.Minute))
	d, err = w.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !slices.Equal(d.AddedLandmarks, []string{"Big Ben"}) || !d.LogLevelChanged {
		t.Errorf("diff = %+v, want Big Ben added and log level changed", d)
	}
	if calls != 1 {
		t.Errorf("onChange calls = %d, want 1", calls)
	}

	writeFile(t, path, watcherInvalidYAML, base.Add(2*time.Minute))
	if _, err := w.Reload(); err == nil {
		t.Error("Reload of invalid file: expected error")
	}
	if _, ok := w.Current().Landmarks["Big Ben"]; !ok {
		t.Error("invalid reload replaced the current config")
	}
}
