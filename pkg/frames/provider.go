// Package frames defines the Provider interface for camera snapshot sources.
//
// Snapshot is called synchronously from the session control goroutine once
// per tick, so implementations should return quickly: a cached frame, a
// local read, or a bounded network fetch.
package frames

import (
	"context"

	"github.com/MrWong99/inkvision/pkg/types"
)

// Provider yields the current camera view as an encoded image.
type Provider interface {
	// Snapshot returns the most recent frame. An error means no frame is
	// available for this tick; the caller treats it like a failed inference.
	Snapshot(ctx context.Context) (types.Frame, error)
}
