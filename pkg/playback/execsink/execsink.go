// Package execsink provides a playback.Sink that plays videos by launching an
// external player process (for example mpv or ffplay) per video.
//
// The process exiting on its own is reported as natural end-of-playback;
// processes killed through Stop are not reported.
package execsink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/MrWong99/inkvision/pkg/playback"
)

var _ playback.Sink = (*Sink)(nil)

// DefaultCommand plays full-screen, aspect-fill, without a window border.
var DefaultCommand = []string{"mpv", "--fs", "--panscan=1.0", "--no-border", "--really-quiet"}

// Sink launches one player process per playback. It is safe for concurrent
// use.
type Sink struct {
	command  []string
	finished chan playback.Handle

	mu      sync.Mutex
	next    playback.Handle
	running map[playback.Handle]*exec.Cmd
}

// New creates a Sink that runs command with the video location appended as
// the last argument. An empty command selects [DefaultCommand].
func New(command ...string) (*Sink, error) {
	if len(command) == 0 {
		command = DefaultCommand
	}
	if _, err := exec.LookPath(command[0]); err != nil {
		return nil, fmt.Errorf("execsink: player %q: %w", command[0], err)
	}
	return &Sink{
		command:  command,
		finished: make(chan playback.Handle, 16),
		running:  make(map[playback.Handle]*exec.Cmd),
	}, nil
}

// Start launches the player for res.
func (s *Sink) Start(_ context.Context, res playback.Resource) (playback.Handle, error) {
	loc := res.URL
	if res.Local() {
		loc = res.Path
	}
	if loc == "" {
		return 0, errors.New("execsink: resource has no location")
	}

	args := append(append([]string{}, s.command[1:]...), loc)
	cmd := exec.Command(s.command[0], args...)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("execsink: start player: %w", err)
	}

	s.mu.Lock()
	s.next++
	h := s.next
	s.running[h] = cmd
	s.mu.Unlock()

	go s.wait(h, cmd)
	return h, nil
}

// wait reaps the process and reports natural exits.
func (s *Sink) wait(h playback.Handle, cmd *exec.Cmd) {
	err := cmd.Wait()

	s.mu.Lock()
	_, natural := s.running[h]
	delete(s.running, h)
	s.mu.Unlock()

	if !natural {
		return
	}
	if err != nil {
		slog.Warn("execsink: player exited with error", "handle", h, "err", err)
	}
	select {
	case s.finished <- h:
	default:
		slog.Warn("execsink: finished channel full, dropping event", "handle", h)
	}
}

// Stop kills the player process of h, if it is still running.
func (s *Sink) Stop(h playback.Handle) error {
	s.mu.Lock()
	cmd, ok := s.running[h]
	delete(s.running, h)
	s.mu.Unlock()

	if !ok || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("execsink: kill player: %w", err)
	}
	return nil
}

// Finished implements playback.Sink.
func (s *Sink) Finished() <-chan playback.Handle { return s.finished }
