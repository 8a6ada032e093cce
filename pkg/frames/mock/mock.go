// Package mock provides a test double for the frames.Provider interface.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/inkvision/pkg/frames"
	"github.com/MrWong99/inkvision/pkg/types"
)

// Provider is a mock implementation of frames.Provider. Every Snapshot call
// returns Frame with a fresh sequence number, or SnapshotErr if set.
type Provider struct {
	mu sync.Mutex

	// Frame is the template returned by Snapshot. Seq and CapturedAt are
	// filled in per call.
	Frame types.Frame

	// SnapshotErr, if non-nil, is returned by every Snapshot call.
	SnapshotErr error

	// SnapshotCallCount is the number of times Snapshot was called.
	SnapshotCallCount int
}

// Snapshot records the call and returns Frame or SnapshotErr.
func (p *Provider) Snapshot(_ context.Context) (types.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SnapshotCallCount++
	if p.SnapshotErr != nil {
		return types.Frame{}, p.SnapshotErr
	}
	f := p.Frame
	if f.Data == nil {
		f.Data = []byte{0}
	}
	f.Seq = uint64(p.SnapshotCallCount)
	f.CapturedAt = time.Now()
	return f, nil
}

// CallCount returns SnapshotCallCount. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.SnapshotCallCount
}

// SetErr replaces SnapshotErr. Thread-safe.
func (p *Provider) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SnapshotErr = err
}

// Ensure Provider implements frames.Provider at compile time.
var _ frames.Provider = (*Provider)(nil)
