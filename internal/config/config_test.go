package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/inkvision/internal/catalog"
	"github.com/MrWong99/inkvision/internal/config"
	"github.com/MrWong99/inkvision/internal/detect"
)

const fullYAML = `
server:
  listen_addr: ":8090"
  log_level: debug
detection:
  interval: 1s
  classify_timeout: 3s
  confirmations: 4
  max_misses: 3
  start_threshold: 0.9
  keep_threshold: 0.7
  start_gap: 0.1
  keep_gap: 0.02
providers:
  classifier:
    name: http
    base_url: "http://localhost:9000"
    model: landmarks
    options:
      top_k: 3
  classifier_fallbacks:
    - name: http
      base_url: "http://backup:9000"
  frames:
    name: httpsnap
    base_url: "http://camera/snapshot.jpg"
  playback:
    name: exec
assets_dir: /srv/videos
landmarks:
  "Eiffel Tower": "https://cdn.pixabay.com/video/2024/12/25/248701_tiny.mp4"
  "Big Ben": "local:bigben.mp4"
`

func TestLoadFromReader_Full(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(fullYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8090" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	want := config.DetectionConfig{
		Interval:        time.Second,
		ClassifyTimeout: 3 * time.Second,
		Confirmations:   4,
		MaxMisses:       3,
		StartThreshold:  0.9,
		KeepThreshold:   0.7,
		StartGap:        0.1,
		KeepGap:         0.02,
	}
	if cfg.Detection != want {
		t.Errorf("detection = %+v, want %+v", cfg.Detection, want)
	}
	if got := cfg.Providers.Classifier.OptionInt("top_k", 5); got != 3 {
		t.Errorf("top_k = %d, want 3", got)
	}
	if len(cfg.Providers.ClassifierFallbacks) != 1 || cfg.Providers.ClassifierFallbacks[0].BaseURL != "http://backup:9000" {
		t.Errorf("fallbacks = %+v", cfg.Providers.ClassifierFallbacks)
	}
	if cfg.Providers.Playback.Name != "exec" {
		t.Errorf("playback = %q", cfg.Providers.Playback.Name)
	}

	cat := cfg.Catalog()
	if cat.Len() != 2 || !cat.Has("Big Ben") || cat.AssetsDir() != "/srv/videos" {
		t.Errorf("catalog = %v in %q", cat.Labels(), cat.AssetsDir())
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader(empty): %v", err)
	}

	d := cfg.Detection
	if d.Interval != 800*time.Millisecond || d.ClassifyTimeout != 5*time.Second {
		t.Errorf("timing defaults = %v, %v", d.Interval, d.ClassifyTimeout)
	}
	if d.Confirmations != 3 || d.MaxMisses != 2 {
		t.Errorf("debounce defaults = %d, %d", d.Confirmations, d.MaxMisses)
	}
	if d.Thresholds() != detect.DefaultThresholds() {
		t.Errorf("thresholds = %+v", d.Thresholds())
	}
	if cfg.AssetsDir != config.DefaultAssetsDir || cfg.Providers.Playback.Name != config.DefaultPlayback {
		t.Errorf("assets_dir = %q, playback = %q", cfg.AssetsDir, cfg.Providers.Playback.Name)
	}
	if len(cfg.Landmarks) != len(catalog.Defaults()) {
		t.Errorf("landmarks = %d, want the built-in set", len(cfg.Landmarks))
	}
}

func TestWithDefaults_ExplicitZeroGap(t *testing.T) {
	t.Parallel()
	d := config.DetectionConfig{StartThreshold: 0.9, StartGap: 0}.WithDefaults()
	if d.StartGap != 0 {
		t.Errorf("start_gap = %v, explicit zero must survive when the threshold is set", d.StartGap)
	}
	if d.KeepGap != detect.DefaultKeepGap {
		t.Errorf("keep_gap = %v, want default", d.KeepGap)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("detection:\n  confirmation: 3\n"))
	if err == nil || !strings.Contains(err.Error(), "confirmation") {
		t.Fatalf("err = %v, want unknown field error", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{
			"bad log level",
			"server:\n  log_level: loud\n",
			[]string{"server.log_level"},
		},
		{
			"thresholds",
			"detection:\n  start_threshold: 0.7\n  keep_threshold: 0.8\n  start_gap: 1.5\n",
			[]string{"keep_threshold 0.80 must not exceed", "start_gap"},
		},
		{
			"threshold out of range",
			"detection:\n  start_threshold: 1.2\n",
			[]string{"start_threshold 1.20 is out of range"},
		},
		{
			"negative counts",
			"detection:\n  confirmations: -1\n  max_misses: -2\n  interval: -1s\n",
			[]string{"confirmations", "max_misses", "interval"},
		},
		{
			"classifier without frames",
			"providers:\n  classifier:\n    name: http\n",
			[]string{"providers.frames is required"},
		},
		{
			"fallbacks without primary",
			"providers:\n  classifier_fallbacks:\n    - name: http\n",
			[]string{"classifier_fallbacks requires providers.classifier"},
		},
		{
			"bad locators",
			"landmarks:\n  A: \"local:\"\n  B: \"ftp://x/y.mp4\"\n  C: \"local:../up.mp4\"\n",
			[]string{`landmarks["A"]`, `landmarks["B"]`, `landmarks["C"]`},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			for _, w := range tc.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error %q does not mention %q", err, w)
				}
			}
		})
	}
}

func TestValidate_LocatorErrorIsResolutionFailure(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("landmarks:\n  A: \"not a url\"\n"))
	if !errors.Is(err, catalog.ErrResourceResolution) {
		t.Errorf("err = %v, want ErrResourceResolution", err)
	}
}

func TestLogLevel(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q invalid", l)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error("trace valid")
	}
	if config.LogLevel("").Level().String() != "INFO" || config.LogWarn.Level().String() != "WARN" {
		t.Error("Level mapping wrong")
	}
}

func TestProviderEntryOptions(t *testing.T) {
	t.Parallel()
	e := config.ProviderEntry{Options: map[string]any{
		"dir":     "/frames",
		"timeout": "2s",
		"bad":     "soon",
		"command": []any{"mpv", "--fs"},
		"float":   4.0,
	}}
	if e.OptionString("dir", "") != "/frames" || e.OptionString("missing", "x") != "x" {
		t.Error("OptionString")
	}
	if d, err := e.OptionDuration("timeout", 0); err != nil || d != 2*time.Second {
		t.Errorf("OptionDuration = %v, %v", d, err)
	}
	if _, err := e.OptionDuration("bad", 0); err == nil {
		t.Error("OptionDuration(bad) = nil error")
	}
	if got := e.OptionStrings("command"); len(got) != 2 || got[0] != "mpv" {
		t.Errorf("OptionStrings = %v", got)
	}
	if e.OptionInt("float", 0) != 4 {
		t.Error("OptionInt(float)")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("INKVISION_LOG_LEVEL", "warn")
	t.Setenv("INKVISION_LISTEN_ADDR", ":9999")
	t.Setenv("INKVISION_ASSETS_DIR", "/opt/assets")
	t.Setenv("INKVISION_CLASSIFIER_URL", "http://gpu:9000")

	cfg, err := config.LoadFromReader(strings.NewReader(fullYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.LogLevel != config.LogWarn || cfg.Server.ListenAddr != ":9999" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.AssetsDir != "/opt/assets" {
		t.Errorf("assets_dir = %q", cfg.AssetsDir)
	}
	if cfg.Providers.Classifier.BaseURL != "http://gpu:9000" {
		t.Errorf("classifier base_url = %q", cfg.Providers.Classifier.BaseURL)
	}
}

func TestApplyEnv_InvalidValueFailsValidation(t *testing.T) {
	t.Setenv("INKVISION_LOG_LEVEL", "chatty")
	if _, err := config.LoadFromReader(strings.NewReader("")); err == nil {
		t.Fatal("expected validation error for env log level")
	}
}
