package config

import (
	"maps"
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Log level and
// landmarks are applied at runtime; anything listed in RestartRequired only
// takes effect after a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	LandmarksChanged bool
	AddedLandmarks   []string
	RemovedLandmarks []string
	ChangedLandmarks []string

	// RestartRequired names the top-level sections that changed but cannot
	// be hot-reloaded.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.LandmarksChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	for _, label := range slices.Sorted(maps.Keys(new.Landmarks)) {
		prev, ok := old.Landmarks[label]
		switch {
		case !ok:
			d.AddedLandmarks = append(d.AddedLandmarks, label)
		case prev != new.Landmarks[label]:
			d.ChangedLandmarks = append(d.ChangedLandmarks, label)
		}
	}
	for _, label := range slices.Sorted(maps.Keys(old.Landmarks)) {
		if _, ok := new.Landmarks[label]; !ok {
			d.RemovedLandmarks = append(d.RemovedLandmarks, label)
		}
	}
	d.LandmarksChanged = len(d.AddedLandmarks)+len(d.RemovedLandmarks)+len(d.ChangedLandmarks) > 0 ||
		old.AssetsDir != new.AssetsDir

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Detection != new.Detection {
		d.RestartRequired = append(d.RestartRequired, "detection")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	return d
}
