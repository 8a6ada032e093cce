package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/inkvision/internal/catalog"
)

// ValidProviderNames lists the built-in provider names per kind. [Validate]
// warns about names outside this list.
var ValidProviderNames = map[string][]string{
	"classifier": {"http"},
	"frames":     {"httpsnap", "dir"},
	"playback":   {"overlay", "exec"},
}

// Load reads, completes and validates the YAML file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r, applies environment overrides and
// defaults, and validates the result. An empty document yields the default
// configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg after defaults have been applied and returns every
// problem found, joined.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	d := cfg.Detection
	if d.Interval <= 0 {
		errs = append(errs, fmt.Errorf("detection.interval %v must be positive", d.Interval))
	}
	if d.ClassifyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("detection.classify_timeout %v must be positive", d.ClassifyTimeout))
	}
	if d.Confirmations < 1 {
		errs = append(errs, fmt.Errorf("detection.confirmations %d must be at least 1", d.Confirmations))
	}
	if d.MaxMisses < 1 {
		errs = append(errs, fmt.Errorf("detection.max_misses %d must be at least 1", d.MaxMisses))
	}
	for _, th := range []struct {
		name string
		v    float64
	}{{"start_threshold", d.StartThreshold}, {"keep_threshold", d.KeepThreshold}} {
		if th.v <= 0 || th.v > 1 {
			errs = append(errs, fmt.Errorf("detection.%s %.2f is out of range (0, 1]", th.name, th.v))
		}
	}
	if d.KeepThreshold > d.StartThreshold {
		errs = append(errs, fmt.Errorf("detection.keep_threshold %.2f must not exceed start_threshold %.2f", d.KeepThreshold, d.StartThreshold))
	}
	for _, g := range []struct {
		name string
		v    float64
	}{{"start_gap", d.StartGap}, {"keep_gap", d.KeepGap}} {
		if g.v < 0 || g.v >= 1 {
			errs = append(errs, fmt.Errorf("detection.%s %.2f is out of range [0, 1)", g.name, g.v))
		}
	}
	if d.Interval > 0 && d.ClassifyTimeout > 0 && d.ClassifyTimeout < d.Interval {
		slog.Warn("detection.classify_timeout is shorter than the tick interval", "classify_timeout", d.ClassifyTimeout, "interval", d.Interval)
	}

	p := cfg.Providers
	validateProviderName("classifier", p.Classifier.Name)
	for _, fb := range p.ClassifierFallbacks {
		validateProviderName("classifier", fb.Name)
	}
	validateProviderName("frames", p.Frames.Name)
	validateProviderName("playback", p.Playback.Name)
	if p.Classifier.Name == "" {
		if len(p.ClassifierFallbacks) > 0 {
			errs = append(errs, errors.New("providers.classifier_fallbacks requires providers.classifier"))
		}
		slog.Warn("providers.classifier is not configured; landmarks will not be detected")
	} else if p.Frames.Name == "" {
		errs = append(errs, errors.New("providers.frames is required when a classifier is configured"))
	}
	for i, fb := range p.ClassifierFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.classifier_fallbacks[%d].name is required", i))
		}
	}

	for _, label := range slices.Sorted(maps.Keys(cfg.Landmarks)) {
		if label == "" {
			errs = append(errs, errors.New("landmarks: empty label"))
			continue
		}
		if err := catalog.ValidateLocator(cfg.Landmarks[label]); err != nil {
			errs = append(errs, fmt.Errorf("landmarks[%q]: %w", label, err))
		}
	}

	return errors.Join(errs...)
}

func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known := ValidProviderNames[kind]
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
