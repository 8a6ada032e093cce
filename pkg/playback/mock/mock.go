// Package mock provides a test double for the playback.Sink interface.
//
// Start allocates increasing handles and records the resource. Tests simulate
// a video reaching its end with Finish, which delivers the handle on the
// Finished channel.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/inkvision/pkg/playback"
)

// Sink is a mock implementation of playback.Sink.
type Sink struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by every Start call.
	StartErr error

	// StopErr, if non-nil, is returned by every Stop call.
	StopErr error

	// Started records every resource passed to a successful Start.
	Started []playback.Resource

	// StartCallCount counts all Start calls, including failed ones.
	StartCallCount int

	// Stopped records every handle passed to Stop, in order.
	Stopped []playback.Handle

	last     playback.Handle
	finished chan playback.Handle
}

func (s *Sink) init() {
	if s.finished == nil {
		s.finished = make(chan playback.Handle, 16)
	}
}

// Start records res and returns a new handle, or StartErr.
func (s *Sink) Start(_ context.Context, res playback.Resource) (playback.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	s.StartCallCount++
	if s.StartErr != nil {
		return 0, s.StartErr
	}
	s.last++
	s.Started = append(s.Started, res)
	return s.last, nil
}

// Stop records h and returns StopErr.
func (s *Sink) Stop(h playback.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stopped = append(s.Stopped, h)
	return s.StopErr
}

// Finished implements playback.Sink.
func (s *Sink) Finished() <-chan playback.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	return s.finished
}

// Finish simulates the natural end of playback h.
func (s *Sink) Finish(h playback.Handle) {
	s.mu.Lock()
	s.init()
	ch := s.finished
	s.mu.Unlock()
	ch <- h
}

// LastHandle returns the most recently started handle. Thread-safe.
func (s *Sink) LastHandle() playback.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// StartedLabels returns the labels of all started resources. Thread-safe.
func (s *Sink) StartedLabels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Started))
	for i, r := range s.Started {
		out[i] = r.Label
	}
	return out
}

// StoppedHandles returns a copy of Stopped. Thread-safe.
func (s *Sink) StoppedHandles() []playback.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]playback.Handle, len(s.Stopped))
	copy(out, s.Stopped)
	return out
}

// Ensure Sink implements playback.Sink at compile time.
var _ playback.Sink = (*Sink)(nil)
