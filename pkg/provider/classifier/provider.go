// Package classifier defines the Provider interface for landmark classification
// backends.
//
// A classifier receives a single camera snapshot and returns zero or more
// (label, confidence) candidates. Classification is potentially slow (model
// inference, network round-trips) so callers dispatch it off the control
// goroutine and must pass a context carrying a deadline.
//
// Implementations must be safe for concurrent use, although the session loop
// never has more than one Classify call in flight.
package classifier

import (
	"context"
	"errors"

	"github.com/MrWong99/inkvision/pkg/types"
)

// ErrModelUnavailable is returned (possibly wrapped) when the backend cannot
// classify at all because its model failed to load or is not served.
var ErrModelUnavailable = errors.New("classifier: model unavailable")

// Provider classifies camera frames against a fixed set of landmark labels.
type Provider interface {
	// Classify returns the candidates for frame in any order. An empty slice
	// with a nil error means nothing was recognised. Errors are per-call;
	// the next call may succeed.
	Classify(ctx context.Context, frame types.Frame) ([]types.Candidate, error)
}

// Pinger is implemented by providers that can report whether their model is
// loaded without classifying a frame. Ping returns nil when the model is
// ready and an error wrapping [ErrModelUnavailable] otherwise.
type Pinger interface {
	Ping(ctx context.Context) error
}
