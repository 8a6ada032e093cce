// Package types defines the value types shared between InkVision providers and
// the detection core.
//
// They are deliberately small: each package owns its own domain types, but the
// data that crosses a provider boundary (frames in, candidates out) lives here
// so that providers and the core never import each other.
package types

import "time"

// Frame is a single snapshot of the camera view handed to a classifier.
type Frame struct {
	// Data holds the encoded image bytes (typically JPEG or PNG).
	Data []byte

	// ContentType is the MIME type of Data (e.g., "image/jpeg"). Providers that
	// cannot determine it leave it empty.
	ContentType string

	// Seq is a monotonically increasing snapshot counter assigned by the frame
	// provider. Zero means the provider does not number its frames.
	Seq uint64

	// CapturedAt is when the snapshot was taken.
	CapturedAt time.Time
}

// Candidate is one (label, confidence) pair produced by a classifier for a
// single frame. Candidates are produced fresh every tick and never persisted.
type Candidate struct {
	// Label is the classifier's identifier for the recognised landmark
	// (e.g., "Eiffel Tower").
	Label string `json:"label"`

	// Confidence is the classifier score in [0, 1].
	Confidence float64 `json:"confidence"`
}
