// Package config provides the configuration schema, loader, validation and
// provider registry for InkVision.
package config

import (
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/MrWong99/inkvision/internal/catalog"
	"github.com/MrWong99/inkvision/internal/detect"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to an slog level. Unknown and empty levels map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default values applied by [ApplyDefaults].
const (
	DefaultAssetsDir = "assets"
	DefaultPlayback  = "overlay"
)

// Config is the root configuration. Load it with [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Detection DetectionConfig   `yaml:"detection"`
	Providers ProvidersConfig   `yaml:"providers"`
	AssetsDir string            `yaml:"assets_dir"`
	Landmarks map[string]string `yaml:"landmarks"`
}

// ServerConfig configures the status server and logging.
type ServerConfig struct {
	// ListenAddr is the status server address, e.g. ":8090". Empty disables
	// the server.
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`
}

// DetectionConfig holds the tick loop and debounce parameters.
type DetectionConfig struct {
	// Interval is the tick period. Default: 800ms.
	Interval time.Duration `yaml:"interval"`

	// ClassifyTimeout bounds a single classification. Default: 5s.
	ClassifyTimeout time.Duration `yaml:"classify_timeout"`

	// Confirmations is the number of consecutive hits that start a video.
	Confirmations int `yaml:"confirmations"`

	// MaxMisses is the number of consecutive misses that stop a video.
	MaxMisses int `yaml:"max_misses"`

	StartThreshold float64 `yaml:"start_threshold"`
	KeepThreshold  float64 `yaml:"keep_threshold"`
	StartGap       float64 `yaml:"start_gap"`
	KeepGap        float64 `yaml:"keep_gap"`
}

// WithDefaults returns d with zero fields replaced by the standard values.
// Gaps are only defaulted together with their threshold, so an explicit zero
// gap can be configured.
func (d DetectionConfig) WithDefaults() DetectionConfig {
	if d.Interval == 0 {
		d.Interval = 800 * time.Millisecond
	}
	if d.ClassifyTimeout == 0 {
		d.ClassifyTimeout = 5 * time.Second
	}
	if d.Confirmations == 0 {
		d.Confirmations = detect.DefaultConfirmations
	}
	if d.MaxMisses == 0 {
		d.MaxMisses = detect.DefaultMaxMisses
	}
	if d.StartThreshold == 0 {
		d.StartThreshold = detect.DefaultStartThreshold
		if d.StartGap == 0 {
			d.StartGap = detect.DefaultStartGap
		}
	}
	if d.KeepThreshold == 0 {
		d.KeepThreshold = detect.DefaultKeepThreshold
		if d.KeepGap == 0 {
			d.KeepGap = detect.DefaultKeepGap
		}
	}
	return d
}

// Thresholds returns the filter parameters.
func (d DetectionConfig) Thresholds() detect.Thresholds {
	return detect.Thresholds{
		Start:    d.StartThreshold,
		Keep:     d.KeepThreshold,
		StartGap: d.StartGap,
		KeepGap:  d.KeepGap,
	}
}

// ProvidersConfig selects the implementation of each external collaborator.
// Names are looked up in a [Registry].
type ProvidersConfig struct {
	Classifier ProviderEntry `yaml:"classifier"`

	// ClassifierFallbacks are tried in order when the primary classifier
	// fails or its circuit breaker is open.
	ClassifierFallbacks []ProviderEntry `yaml:"classifier_fallbacks"`

	Frames   ProviderEntry `yaml:"frames"`
	Playback ProviderEntry `yaml:"playback"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
type ProviderEntry struct {
	// Name selects the registered implementation, e.g. "http" or "overlay".
	Name string `yaml:"name"`

	// BaseURL is the endpoint of network providers.
	BaseURL string `yaml:"base_url"`

	// Model selects the model served by a classifier backend.
	Model string `yaml:"model"`

	// Options holds provider-specific settings.
	Options map[string]any `yaml:"options"`
}

// OptionString returns Options[key] as a string, or def.
func (e ProviderEntry) OptionString(key, def string) string {
	if s, ok := e.Options[key].(string); ok && s != "" {
		return s
	}
	return def
}

// OptionInt returns Options[key] as an int, or def.
func (e ProviderEntry) OptionInt(key string, def int) int {
	switch v := e.Options[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// OptionDuration returns Options[key] parsed as a duration, or def.
func (e ProviderEntry) OptionDuration(key string, def time.Duration) (time.Duration, error) {
	s, ok := e.Options[key].(string)
	if !ok || s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: option %q: %w", key, err)
	}
	return d, nil
}

// OptionStrings returns Options[key] as a string list, or nil.
func (e ProviderEntry) OptionStrings(key string) []string {
	raw, ok := e.Options[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ApplyDefaults fills unset fields. An empty landmark map is replaced by the
// built-in landmarks.
func ApplyDefaults(cfg *Config) {
	cfg.Detection = cfg.Detection.WithDefaults()
	if cfg.AssetsDir == "" {
		cfg.AssetsDir = DefaultAssetsDir
	}
	if len(cfg.Landmarks) == 0 {
		cfg.Landmarks = catalog.Defaults()
	}
	if cfg.Providers.Playback.Name == "" {
		cfg.Providers.Playback.Name = DefaultPlayback
	}
}

// Catalog builds the label→video catalog described by cfg.
func (c *Config) Catalog() *catalog.Catalog {
	return catalog.New(maps.Clone(c.Landmarks), c.AssetsDir)
}
