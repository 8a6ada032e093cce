// Package playback defines the Sink interface for video output backends.
//
// A Sink renders one video at a time on top of the camera view (full-bleed,
// aspect-fill) and reports natural end-of-playback on a single channel. The
// detection core only ever asks a sink to start a resolved [Resource] or to
// stop a [Handle] it received from Start; it never inspects the video itself.
package playback

import (
	"context"
	"errors"
)

// Gravity is how a video is fitted to the view. Only aspect-fill is used.
const Gravity = "aspect-fill"

// ErrNoClient is returned by sinks that render on a remote device when no
// device is connected.
var ErrNoClient = errors.New("playback: no overlay client connected")

// Handle identifies one started playback. The zero Handle is never returned
// by a successful Start.
type Handle uint64

// Resource is a video locator that has already been validated.
type Resource struct {
	// Label is the landmark the video belongs to.
	Label string

	// URL is set for remote videos (absolute http or https URL).
	URL string

	// Path is the absolute filesystem path for bundled videos.
	Path string

	// Name is the bundled file name relative to the assets directory.
	Name string
}

// Local reports whether the resource is a bundled file.
func (r Resource) Local() bool { return r.Path != "" }

// Sink starts and stops video playback.
type Sink interface {
	// Start begins playing res and returns its handle. An error means nothing
	// is playing as a result of this call.
	Start(ctx context.Context, res Resource) (Handle, error)

	// Stop halts the playback identified by h and releases its rendering
	// layer. Stopping an unknown, finished, or zero handle is a no-op.
	Stop(h Handle) error

	// Finished delivers the handle of every playback that reached its end on
	// its own. Handles passed to Stop are not delivered. The channel has a
	// single consumer.
	Finished() <-chan Handle
}
