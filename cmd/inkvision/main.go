// Command inkvision is the main entry point for the InkVision landmark
// detection service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/inkvision/internal/app"
	"github.com/MrWong99/inkvision/internal/config"
	"github.com/MrWong99/inkvision/internal/observe"
	"github.com/MrWong99/inkvision/pkg/frames"
	"github.com/MrWong99/inkvision/pkg/frames/dirsource"
	"github.com/MrWong99/inkvision/pkg/frames/httpsnap"
	"github.com/MrWong99/inkvision/pkg/playback"
	"github.com/MrWong99/inkvision/pkg/playback/execsink"
	"github.com/MrWong99/inkvision/pkg/playback/overlay"
	"github.com/MrWong99/inkvision/pkg/provider/classifier"
	"github.com/MrWong99/inkvision/pkg/provider/classifier/httpinfer"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	watch := flag.Bool("watch", true, "reload log level and landmarks when the config file changes")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "inkvision: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "inkvision: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	levelVar := new(slog.LevelVar)
	levelVar.Set(cfg.Server.LogLevel.Level())
	slog.SetDefault(newLogger(levelVar))

	slog.Info("inkvision starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"landmarks", len(cfg.Landmarks),
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	application, err := app.New(cfg, providers, app.WithLevelVar(levelVar))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	if *watch {
		w, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			application.ApplyConfig(old, new)
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer w.Stop()
			go reloadOnHangup(ctx, w)
		}
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// reloadOnHangup reloads the config file on SIGHUP without waiting for the
// next poll.
func reloadOnHangup(ctx context.Context, w *config.Watcher) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if _, err := w.Reload(); err != nil {
				slog.Warn("reload on SIGHUP failed", "err", err)
			}
		}
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Classifier ────────────────────────────────────────────────────────────

	reg.RegisterClassifier("http", func(entry config.ProviderEntry) (classifier.Provider, error) {
		var opts []httpinfer.Option
		if entry.Model != "" {
			opts = append(opts, httpinfer.WithModel(entry.Model))
		}
		if k := entry.OptionInt("top_k", 0); k > 0 {
			opts = append(opts, httpinfer.WithTopK(k))
		}
		return httpinfer.New(entry.BaseURL, opts...)
	})

	// ── Frames ────────────────────────────────────────────────────────────────

	reg.RegisterFrames("httpsnap", func(entry config.ProviderEntry) (frames.Provider, error) {
		timeout, err := entry.OptionDuration("timeout", 0)
		if err != nil {
			return nil, err
		}
		var opts []httpsnap.Option
		if timeout > 0 {
			opts = append(opts, httpsnap.WithTimeout(timeout))
		}
		if n := entry.OptionInt("max_bytes", 0); n > 0 {
			opts = append(opts, httpsnap.WithMaxBytes(int64(n)))
		}
		return httpsnap.New(entry.BaseURL, opts...)
	})

	reg.RegisterFrames("dir", func(entry config.ProviderEntry) (frames.Provider, error) {
		return dirsource.New(entry.OptionString("dir", entry.BaseURL))
	})

	// ── Playback ──────────────────────────────────────────────────────────────

	reg.RegisterPlayback("overlay", func(entry config.ProviderEntry) (playback.Sink, error) {
		opts := []overlay.Option{
			overlay.WithAssetBase(entry.OptionString("asset_base", "")),
			overlay.WithOriginPatterns(entry.OptionStrings("origin_patterns")...),
		}
		timeout, err := entry.OptionDuration("write_timeout", 0)
		if err != nil {
			return nil, err
		}
		opts = append(opts, overlay.WithWriteTimeout(timeout))
		return overlay.New(opts...), nil
	})

	reg.RegisterPlayback("exec", func(entry config.ProviderEntry) (playback.Sink, error) {
		return execsink.New(entry.OptionStrings("command")...)
	})

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.Classifier.Name; name != "" {
		p, err := reg.CreateClassifier(cfg.Providers.Classifier)
		if err != nil {
			return nil, fmt.Errorf("create classifier provider %q: %w", name, err)
		}
		ps.Classifier = p
		slog.Info("provider created", "kind", "classifier", "name", name, "base_url", cfg.Providers.Classifier.BaseURL)
	}

	for i, entry := range cfg.Providers.ClassifierFallbacks {
		p, err := reg.CreateClassifier(entry)
		if err != nil {
			return nil, fmt.Errorf("create classifier fallback %d %q: %w", i, entry.Name, err)
		}
		name := fmt.Sprintf("%s#%d", entry.Name, i+1)
		ps.ClassifierFallbacks = append(ps.ClassifierFallbacks, app.NamedClassifier{Name: name, Provider: p})
		slog.Info("provider created", "kind", "classifier_fallback", "name", name, "base_url", entry.BaseURL)
	}

	if name := cfg.Providers.Frames.Name; name != "" {
		p, err := reg.CreateFrames(cfg.Providers.Frames)
		if err != nil {
			return nil, fmt.Errorf("create frames provider %q: %w", name, err)
		}
		ps.Frames = p
		slog.Info("provider created", "kind", "frames", "name", name)
	}

	p, err := reg.CreatePlayback(cfg.Providers.Playback)
	if err != nil {
		return nil, fmt.Errorf("create playback sink %q: %w", cfg.Providers.Playback.Name, err)
	}
	ps.Playback = p
	slog.Info("provider created", "kind", "playback", "name", cfg.Providers.Playback.Name)

	return ps, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
