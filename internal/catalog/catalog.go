// Package catalog maps landmark labels to the video shown for them and
// resolves video locators into playable resources.
//
// A locator is either an absolute http(s) URL or the literal prefix "local:"
// followed by a file name that is looked up in the assets directory.
package catalog

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/inkvision/internal/detect"
	"github.com/MrWong99/inkvision/pkg/playback"
)

// LocalPrefix marks a locator as a bundled file.
const LocalPrefix = "local:"

// suggestThreshold is the minimum Jaro-Winkler score for [Catalog.Suggest].
const suggestThreshold = 0.80

var (
	// ErrUnmappedLabel is returned when a label has no video.
	ErrUnmappedLabel = errors.New("catalog: no video mapped for label")

	// ErrResourceResolution is returned when a locator is malformed or its
	// bundled file does not exist.
	ErrResourceResolution = errors.New("catalog: cannot resolve video resource")
)

// Defaults returns the landmark videos shipped with the application.
func Defaults() map[string]string {
	return map[string]string{
		"Taj Mahal":             "https://cdn.pixabay.com/video/2019/05/13/23592-337668424_medium.mp4",
		"Colosseum":             "https://cdn.pixabay.com/video/2024/03/16/204384-924209301_medium.mp4",
		"Eiffel Tower":          "https://cdn.pixabay.com/video/2024/12/25/248701_tiny.mp4",
		"Statue of Liberty":     "https://cdn.pixabay.com/video/2015/11/25/1366-147055432_medium.mp4",
		"Golden Gate Bridge":    "https://cdn.pixabay.com/video/2018/09/24/18392-291585315_small.mp4",
		"Leaning Tower Of Pisa": "https://cdn.pixabay.com/video/2022/04/19/114507-701051365_tiny.mp4",
	}
}

// Catalog is an immutable label→locator map. It is safe for concurrent use.
type Catalog struct {
	entries   map[string]string
	assetsDir string
}

var _ detect.LabelSet = (*Catalog)(nil)

// New builds a Catalog from entries. Bundled files are resolved against
// assetsDir. The map is copied.
func New(entries map[string]string, assetsDir string) *Catalog {
	return &Catalog{entries: maps.Clone(entries), assetsDir: assetsDir}
}

// Has reports whether label has a video. It implements detect.LabelSet.
func (c *Catalog) Has(label string) bool {
	_, ok := c.entries[label]
	return ok
}

// Len returns the number of mapped labels.
func (c *Catalog) Len() int { return len(c.entries) }

// Labels returns the mapped labels in sorted order.
func (c *Catalog) Labels() []string {
	return slices.Sorted(maps.Keys(c.entries))
}

// Entries returns a copy of the label→locator map.
func (c *Catalog) Entries() map[string]string { return maps.Clone(c.entries) }

// AssetsDir returns the directory bundled files are resolved against.
func (c *Catalog) AssetsDir() string { return c.assetsDir }

// Resolve turns the locator mapped to label into a playable resource. For
// bundled files the file must exist in the assets directory at call time.
func (c *Catalog) Resolve(label string) (playback.Resource, error) {
	loc, ok := c.entries[label]
	if !ok {
		return playback.Resource{}, fmt.Errorf("%w: %q", ErrUnmappedLabel, label)
	}
	if err := ValidateLocator(loc); err != nil {
		return playback.Resource{}, err
	}

	if name, ok := strings.CutPrefix(loc, LocalPrefix); ok {
		path, err := filepath.Abs(filepath.Join(c.assetsDir, name))
		if err != nil {
			return playback.Resource{}, fmt.Errorf("%w: %q: %v", ErrResourceResolution, loc, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return playback.Resource{}, fmt.Errorf("%w: local video file not found: %q", ErrResourceResolution, name)
		}
		if info.IsDir() {
			return playback.Resource{}, fmt.Errorf("%w: %q is a directory", ErrResourceResolution, name)
		}
		return playback.Resource{Label: label, Path: path, Name: name}, nil
	}
	return playback.Resource{Label: label, URL: loc}, nil
}

// ValidateLocator checks the syntax of loc without touching the filesystem.
func ValidateLocator(loc string) error {
	if name, ok := strings.CutPrefix(loc, LocalPrefix); ok {
		if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return fmt.Errorf("%w: invalid local file name %q", ErrResourceResolution, name)
		}
		return nil
	}
	u, err := url.Parse(loc)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: invalid URL %q", ErrResourceResolution, loc)
	}
	return nil
}

// Suggest returns the mapped label most similar to label, for diagnosing
// classifier/catalog naming mismatches. ok is false when nothing scores above
// the suggestion threshold.
func (c *Catalog) Suggest(label string) (best string, score float64, ok bool) {
	needle := strings.ToLower(label)
	for _, known := range c.Labels() {
		s := matchr.JaroWinkler(needle, strings.ToLower(known), false)
		if s > score {
			best, score = known, s
		}
	}
	if score < suggestThreshold {
		return "", score, false
	}
	return best, score, true
}
