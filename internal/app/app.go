// Package app wires the InkVision subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the detection loop and the status server, and
// Shutdown tears everything down in order.
//
// For testing, inject test doubles via [Providers] and the functional options
// (WithTickSource, WithMetrics, etc.).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/inkvision/internal/config"
	"github.com/MrWong99/inkvision/internal/health"
	"github.com/MrWong99/inkvision/internal/observe"
	"github.com/MrWong99/inkvision/internal/playback"
	"github.com/MrWong99/inkvision/internal/resilience"
	"github.com/MrWong99/inkvision/internal/session"
	"github.com/MrWong99/inkvision/pkg/frames"
	sink "github.com/MrWong99/inkvision/pkg/playback"
	"github.com/MrWong99/inkvision/pkg/provider/classifier"
)

const (
	readHeaderTimeout = 5 * time.Second
	serverStopTimeout = 5 * time.Second
)

// NamedClassifier is a classifier backend together with its registry name.
type NamedClassifier struct {
	Name     string
	Provider classifier.Provider
}

// Providers holds one interface value per provider slot. A nil Classifier
// runs the session in model-unavailable mode. Populated by main.go via the
// config registry.
type Providers struct {
	Classifier          classifier.Provider
	ClassifierFallbacks []NamedClassifier
	Frames              frames.Provider
	Playback            sink.Sink
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	classifier classifier.Provider
	controller *playback.Controller
	session    *session.Session
	health     *health.Handler
	server     *http.Server

	metrics        *observe.Metrics
	metricsHandler http.Handler
	levelVar       *slog.LevelVar
	ticks          session.TickSource
	observer       func(session.Report)

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics records all instruments in m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h on /metrics instead of the default Prometheus
// registry handler.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLevelVar lets [App.ApplyConfig] change the log level at runtime.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.levelVar = lv }
}

// WithTickSource replaces the session's interval ticker.
func WithTickSource(ts session.TickSource) Option {
	return func(a *App) { a.ticks = ts }
}

// WithObserver receives every session report.
func WithObserver(fn func(session.Report)) Option {
	return func(a *App) { a.observer = fn }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go. A status server is created when
// cfg.Server.ListenAddr is set; it is only started by [App.Run].
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Playback == nil {
		return nil, errors.New("app: no playback sink configured")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.metricsHandler == nil {
		a.metricsHandler = promhttp.Handler()
	}

	a.classifier = a.buildClassifier()
	if a.classifier != nil && providers.Frames == nil {
		return nil, errors.New("app: a classifier requires a frame provider")
	}

	a.controller = playback.NewController(providers.Playback, cfg.Catalog(), playback.WithMetrics(a.metrics))

	sessOpts := []session.Option{
		session.WithMetrics(a.metrics),
		session.WithProviderName(cfg.Providers.Classifier.Name),
	}
	if a.ticks != nil {
		sessOpts = append(sessOpts, session.WithTickSource(a.ticks))
	}
	if a.observer != nil {
		sessOpts = append(sessOpts, session.WithObserver(a.observer))
	}
	a.session = session.New(sessionConfig(cfg.Detection), a.classifier, providers.Frames, a.controller, sessOpts...)

	a.health = health.New(
		health.Classifier(a.classifier),
		health.Running("session", a.session.Running),
	)

	if cfg.Server.ListenAddr != "" {
		a.server = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           a.Handler(),
			ReadHeaderTimeout: readHeaderTimeout,
		}
	}

	slog.Info("app initialised",
		"session_id", a.session.ID(),
		"landmarks", a.controller.Catalog().Len(),
		"classifier", cfg.Providers.Classifier.Name,
		"fallbacks", len(providers.ClassifierFallbacks),
		"listen_addr", cfg.Server.ListenAddr,
	)
	return a, nil
}

// buildClassifier wraps the primary classifier in a failover group when
// fallbacks are configured.
func (a *App) buildClassifier() classifier.Provider {
	primary := a.providers.Classifier
	if primary == nil {
		return nil
	}
	if len(a.providers.ClassifierFallbacks) == 0 {
		return primary
	}
	fb := resilience.NewClassifierFallback(primary, a.cfg.Providers.Classifier.Name, resilience.FallbackConfig{})
	for _, nc := range a.providers.ClassifierFallbacks {
		fb.AddFallback(nc.Name, nc.Provider)
	}
	return fb
}

func sessionConfig(d config.DetectionConfig) session.Config {
	d = d.WithDefaults()
	return session.Config{
		Interval:        d.Interval,
		ClassifyTimeout: d.ClassifyTimeout,
		Confirmations:   d.Confirmations,
		MaxMisses:       d.MaxMisses,
		Thresholds:      d.Thresholds(),
	}
}

// Session returns the detection session.
func (a *App) Session() *session.Session { return a.session }

// Controller returns the playback controller.
func (a *App) Controller() *playback.Controller { return a.controller }

// Run executes the detection loop and, when configured, the status server.
// It blocks until ctx is cancelled, the session is closed, or the server
// fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		if err := a.session.Run(gctx); err != nil {
			return fmt.Errorf("app: session: %w", err)
		}
		return nil
	})

	if a.server != nil {
		g.Go(func() error {
			slog.Info("status server listening", "addr", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), serverStopTimeout)
			defer scancel()
			return a.server.Shutdown(sctx)
		})
	}

	return g.Wait()
}

// Shutdown stops the detection session and the status server. It respects
// the context deadline for the server drain.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")

		if err := a.session.Close(); err != nil {
			slog.Warn("session close error", "err", err)
		}
		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				shutdownErr = fmt.Errorf("app: shutdown status server: %w", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ApplyConfig applies the hot-reloadable parts of a config change: the log
// level and the landmark map. Everything else is logged as requiring a
// restart. Suitable as a [config.Watcher] callback.
func (a *App) ApplyConfig(old, new *config.Config) config.ConfigDiff {
	d := config.Diff(old, new)
	if d.Empty() {
		return d
	}

	if d.LogLevelChanged && a.levelVar != nil {
		a.levelVar.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.LandmarksChanged {
		a.controller.SetCatalog(new.Catalog())
		slog.Info("landmark map reloaded",
			"added", d.AddedLandmarks,
			"removed", d.RemovedLandmarks,
			"changed", d.ChangedLandmarks,
			"assets_dir", new.AssetsDir,
		)
	}
	for _, section := range d.RestartRequired {
		slog.Warn("config change requires a restart", "section", section)
	}
	return d
}
