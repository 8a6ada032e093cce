package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvOverrides are environment variables that take precedence over the
// YAML file.
type EnvOverrides struct {
	LogLevel      string `env:"INKVISION_LOG_LEVEL"`
	ListenAddr    string `env:"INKVISION_LISTEN_ADDR"`
	AssetsDir     string `env:"INKVISION_ASSETS_DIR"`
	ClassifierURL string `env:"INKVISION_CLASSIFIER_URL"`
}

// ParseEnv loads target from the process environment.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

// ApplyEnv overlays the process environment onto cfg.
func ApplyEnv(cfg *Config) error {
	var o EnvOverrides
	if err := ParseEnv(&o); err != nil {
		return err
	}
	o.apply(cfg)
	return nil
}

func (o EnvOverrides) apply(cfg *Config) {
	if o.LogLevel != "" {
		cfg.Server.LogLevel = LogLevel(o.LogLevel)
	}
	if o.ListenAddr != "" {
		cfg.Server.ListenAddr = o.ListenAddr
	}
	if o.AssetsDir != "" {
		cfg.AssetsDir = o.AssetsDir
	}
	if o.ClassifierURL != "" {
		cfg.Providers.Classifier.BaseURL = o.ClassifierURL
	}
}
