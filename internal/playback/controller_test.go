package playback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/inkvision/internal/catalog"
	"github.com/MrWong99/inkvision/internal/detect"
	"github.com/MrWong99/inkvision/internal/observe"
	sink "github.com/MrWong99/inkvision/pkg/playback"
	"github.com/MrWong99/inkvision/pkg/playback/mock"
)

func newController(t *testing.T, entries map[string]string, dir string) (*Controller, *mock.Sink) {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	s := &mock.Sink{}
	return NewController(s, catalog.New(entries, dir), WithMetrics(m)), s
}

func TestController_StartStop(t *testing.T) {
	t.Parallel()
	c, s := newController(t, catalog.Defaults(), "")
	ctx := context.Background()

	if err := c.Start(ctx, "Eiffel Tower"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	label, h, ok := c.Current()
	if !ok || label != "Eiffel Tower" || h != s.LastHandle() {
		t.Fatalf("Current() = %q, %d, %v", label, h, ok)
	}
	if got := s.Started[0].URL; got != catalog.Defaults()["Eiffel Tower"] {
		t.Errorf("started URL = %q", got)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if got := s.StoppedHandles(); !slices.Equal(got, []sink.Handle{h}) {
		t.Errorf("stopped = %v, want [%d]", got, h)
	}
	if _, _, ok := c.Current(); ok {
		t.Error("still playing after Stop")
	}
}

func TestController_StartReplacesPlayingVideo(t *testing.T) {
	t.Parallel()
	c, s := newController(t, catalog.Defaults(), "")
	ctx := context.Background()

	_ = c.Start(ctx, "Colosseum")
	first := s.LastHandle()
	if err := c.Start(ctx, "Taj Mahal"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.StoppedHandles(); !slices.Equal(got, []sink.Handle{first}) {
		t.Errorf("stopped = %v, want [%d]", got, first)
	}
}

func TestController_StartFailures(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c, s := newController(t, map[string]string{
		"Big Ben": "local:bigben.mp4",
	}, dir)
	ctx := context.Background()

	if err := c.Start(ctx, "Big Ben"); !errors.Is(err, catalog.ErrResourceResolution) {
		t.Fatalf("Start(missing file) err = %v, want ErrResourceResolution", err)
	}
	if s.StartCallCount != 0 {
		t.Error("sink started despite resolution failure")
	}

	if err := c.Start(ctx, "Nowhere"); !errors.Is(err, catalog.ErrUnmappedLabel) {
		t.Fatalf("Start(unmapped) err = %v, want ErrUnmappedLabel", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "bigben.mp4"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	s.StartErr = sink.ErrNoClient
	if err := c.Start(ctx, "Big Ben"); !errors.Is(err, sink.ErrNoClient) {
		t.Fatalf("Start(sink error) err = %v, want ErrNoClient", err)
	}
	if _, _, ok := c.Current(); ok {
		t.Error("playing after failed start")
	}

	s.StartErr = nil
	if err := c.Start(ctx, "Big Ben"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.Started[0].Local() {
		t.Errorf("resource = %+v, want local", s.Started[0])
	}
}

func TestController_Complete(t *testing.T) {
	t.Parallel()
	c, s := newController(t, catalog.Defaults(), "")
	ctx := context.Background()

	_ = c.Start(ctx, "Colosseum")
	old := s.LastHandle()
	_ = c.Start(ctx, "Taj Mahal")
	cur := s.LastHandle()

	if c.Complete(old) {
		t.Error("Complete(replaced handle) = true")
	}
	if c.Complete(0) {
		t.Error("Complete(0) = true")
	}
	if !c.Complete(cur) {
		t.Error("Complete(current handle) = false")
	}
	if c.Complete(cur) {
		t.Error("second Complete(current handle) = true")
	}
	if _, _, ok := c.Current(); ok {
		t.Error("still playing after Complete")
	}
}

func TestController_Apply(t *testing.T) {
	t.Parallel()
	c, s := newController(t, catalog.Defaults(), "")
	ctx := context.Background()

	if err := c.Apply(ctx, detect.Action{}); err != nil || s.StartCallCount != 0 {
		t.Fatalf("Apply(None) = %v, starts %d", err, s.StartCallCount)
	}
	if err := c.Apply(ctx, detect.Action{Kind: detect.ActionStart, Label: "Colosseum"}); err != nil {
		t.Fatalf("Apply(Start): %v", err)
	}
	if err := c.Apply(ctx, detect.Action{Kind: detect.ActionSwitch, Label: "Taj Mahal", Prev: "Colosseum"}); err != nil {
		t.Fatalf("Apply(Switch): %v", err)
	}
	if got := s.StartedLabels(); !slices.Equal(got, []string{"Colosseum"}) {
		t.Errorf("started = %v, switch must not start a video", got)
	}
	if len(s.StoppedHandles()) != 1 {
		t.Errorf("stopped = %v, want one", s.StoppedHandles())
	}

	s.StopErr = errors.New("boom")
	_ = c.Apply(ctx, detect.Action{Kind: detect.ActionStart, Label: "Colosseum"})
	if err := c.Apply(ctx, detect.Action{Kind: detect.ActionStop, Prev: "Colosseum"}); err != nil {
		t.Errorf("Apply(Stop) with sink error = %v, want nil", err)
	}
	if _, _, ok := c.Current(); ok {
		t.Error("handle kept after failed stop")
	}
}

func TestController_SetCatalog(t *testing.T) {
	t.Parallel()
	c, s := newController(t, catalog.Defaults(), "")

	c.SetCatalog(catalog.New(map[string]string{"Big Ben": "https://cdn.example.com/bigben.mp4"}, ""))
	if c.Catalog().Has("Colosseum") {
		t.Error("old catalog still in use")
	}
	if err := c.Start(context.Background(), "Big Ben"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.Started[0].URL != "https://cdn.example.com/bigben.mp4" {
		t.Errorf("started %+v", s.Started[0])
	}
}
