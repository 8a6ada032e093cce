// Package playback implements the playback controller that sits between the
// debounce machine and a video [sink.Sink].
//
// The controller resolves labels through the current catalog, keeps track of
// the single active playback handle, and tells its owner which end-of-playback
// notifications belong to the video it is still showing.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/inkvision/internal/catalog"
	"github.com/MrWong99/inkvision/internal/detect"
	"github.com/MrWong99/inkvision/internal/observe"
	sink "github.com/MrWong99/inkvision/pkg/playback"
)

// Option configures a [Controller].
type Option func(*Controller)

// WithMetrics records playback events in m. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller starts and stops videos on a sink. It is safe for concurrent
// use, but the detection loop is expected to be its only writer.
type Controller struct {
	sink    sink.Sink
	cat     atomic.Pointer[catalog.Catalog]
	metrics *observe.Metrics

	mu     sync.Mutex
	handle sink.Handle
	label  string
}

// NewController returns a Controller driving s with videos from cat.
func NewController(s sink.Sink, cat *catalog.Catalog, opts ...Option) *Controller {
	c := &Controller{sink: s}
	c.cat.Store(cat)
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Catalog returns the catalog used for the next Start.
func (c *Controller) Catalog() *catalog.Catalog { return c.cat.Load() }

// SetCatalog swaps the catalog. The playing video, if any, is not affected.
func (c *Controller) SetCatalog(cat *catalog.Catalog) { c.cat.Store(cat) }

// Start resolves label and starts its video, stopping any video that is
// still playing. On error nothing is playing.
func (c *Controller) Start(ctx context.Context, label string) error {
	if err := c.Stop(); err != nil {
		slog.Warn("playback: stop before start failed", "err", err)
	}

	res, err := c.Catalog().Resolve(label)
	if err != nil {
		c.metrics.RecordPlayback(ctx, observe.PlaybackFailed)
		return fmt.Errorf("playback: start %q: %w", label, err)
	}
	h, err := c.sink.Start(ctx, res)
	if err != nil {
		c.metrics.RecordPlayback(ctx, observe.PlaybackFailed)
		return fmt.Errorf("playback: start %q: %w", label, err)
	}

	c.mu.Lock()
	c.handle, c.label = h, label
	c.mu.Unlock()
	c.metrics.RecordPlayback(ctx, observe.PlaybackStarted)
	slog.Info("playback started", "label", label, "handle", uint64(h), "local", res.Local())
	return nil
}

// Stop halts the current video. It is idempotent.
func (c *Controller) Stop() error {
	c.mu.Lock()
	h, label := c.handle, c.label
	c.handle, c.label = 0, ""
	c.mu.Unlock()
	if h == 0 {
		return nil
	}

	c.metrics.RecordPlayback(context.Background(), observe.PlaybackStopped)
	slog.Info("playback stopped", "label", label, "handle", uint64(h))
	if err := c.sink.Stop(h); err != nil {
		return fmt.Errorf("playback: stop %q: %w", label, err)
	}
	return nil
}

// Apply carries out a debounce action. Start failures are returned so the
// caller can reset its state; stop failures are logged since the handle is
// released either way.
func (c *Controller) Apply(ctx context.Context, a detect.Action) error {
	switch a.Kind {
	case detect.ActionStart:
		return c.Start(ctx, a.Label)
	case detect.ActionSwitch, detect.ActionStop:
		if err := c.Stop(); err != nil {
			slog.Warn("playback: stop failed", "action", a.String(), "err", err)
		}
	}
	return nil
}

// Finished is the sink's end-of-playback channel. Receivers must pass each
// handle to [Controller.Complete].
func (c *Controller) Finished() <-chan sink.Handle { return c.sink.Finished() }

// Complete reports whether h is the playing video and, if so, releases it.
// Handles of videos that were already stopped or replaced return false.
func (c *Controller) Complete(h sink.Handle) bool {
	c.mu.Lock()
	if h == 0 || h != c.handle {
		c.mu.Unlock()
		return false
	}
	label := c.label
	c.handle, c.label = 0, ""
	c.mu.Unlock()

	c.metrics.RecordPlayback(context.Background(), observe.PlaybackFinished)
	slog.Info("playback finished", "label", label, "handle", uint64(h))
	return true
}

// Current returns the playing label and its handle. ok is false when
// nothing is playing.
func (c *Controller) Current() (label string, h sink.Handle, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.label, c.handle, c.handle != 0
}
