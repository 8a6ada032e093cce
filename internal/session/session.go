// Package session runs the detection control loop.
//
// A [Session] owns the debounce machine for its whole lifetime. All state
// mutation happens on the goroutine executing [Session.Run]: each tick takes a
// frame snapshot and dispatches classification to a worker goroutine, and the
// worker's result is handed back over a channel before it is filtered and
// advanced. At most one classification is in flight; ticks that arrive while
// one is outstanding are dropped. Results that arrive after teardown are
// discarded by a generation check.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/inkvision/internal/detect"
	"github.com/MrWong99/inkvision/internal/observe"
	"github.com/MrWong99/inkvision/internal/playback"
	"github.com/MrWong99/inkvision/pkg/frames"
	sink "github.com/MrWong99/inkvision/pkg/playback"
	"github.com/MrWong99/inkvision/pkg/provider/classifier"
	"github.com/MrWong99/inkvision/pkg/types"
)

// Default loop parameters.
const (
	DefaultInterval        = 800 * time.Millisecond
	DefaultClassifyTimeout = 5 * time.Second

	pingTimeout = 5 * time.Second
)

// ErrAlreadyRunning is returned by Run when the session was started before.
var ErrAlreadyRunning = errors.New("session: already running")

// Config holds the detection parameters of a session. Zero values are
// replaced by the package defaults.
type Config struct {
	Interval        time.Duration
	ClassifyTimeout time.Duration
	Confirmations   int
	MaxMisses       int
	Thresholds      detect.Thresholds
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.ClassifyTimeout <= 0 {
		c.ClassifyTimeout = DefaultClassifyTimeout
	}
	if c.Thresholds == (detect.Thresholds{}) {
		c.Thresholds = detect.DefaultThresholds()
	}
	return c
}

// Option configures a [Session].
type Option func(*Session)

// WithID sets the session ID. Defaults to a random UUID.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithTickSource replaces the interval ticker.
func WithTickSource(ts TickSource) Option {
	return func(s *Session) { s.ticks = ts }
}

// WithMetrics records loop metrics in m. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithObserver registers fn to receive every [Report]. fn runs on the
// control goroutine and must not block.
func WithObserver(fn func(Report)) Option {
	return func(s *Session) { s.observer = fn }
}

// WithProviderName sets the provider label used in classify metrics.
func WithProviderName(name string) Option {
	return func(s *Session) { s.providerName = name }
}

type inference struct {
	gen        uint64
	cycle      uint64
	candidates []types.Candidate
	err        error
	took       time.Duration
}

// Session is one detection session. Create it with [New], drive it with
// [Session.Run] and end it with [Session.Close] or by cancelling Run's
// context.
type Session struct {
	id           string
	cfg          Config
	classifier   classifier.Provider
	frames       frames.Provider
	ctrl         *playback.Controller
	ticks        TickSource
	metrics      *observe.Metrics
	observer     func(Report)
	providerName string

	// Owned by the control goroutine.
	machine          *detect.Machine
	cycle            uint64
	modelUnavailable bool

	inFlight atomic.Bool
	gen      atomic.Uint64
	dropped  atomic.Uint64
	running  atomic.Bool
	last     atomic.Pointer[Report]

	results  chan inference
	stop     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	done     chan struct{}
}

// New creates a session. A nil classifier puts the session in
// model-unavailable mode, in which every tick counts as a miss.
func New(cfg Config, clf classifier.Provider, fp frames.Provider, ctrl *playback.Controller, opts ...Option) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		cfg:          cfg,
		classifier:   clf,
		frames:       fp,
		ctrl:         ctrl,
		providerName: "classifier",
		machine:      detect.NewMachine(cfg.Confirmations, cfg.MaxMisses),
		results:      make(chan inference, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.gen.Store(1)
	return s
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Running reports whether the control loop is active.
func (s *Session) Running() bool { return s.running.Load() }

// DroppedTicks returns the number of ticks dropped by the in-flight guard.
func (s *Session) DroppedTicks() uint64 { return s.dropped.Load() }

// LastReport returns the most recent report. ok is false before the first
// cycle completes.
func (s *Session) LastReport() (r Report, ok bool) {
	p := s.last.Load()
	if p == nil {
		return Report{}, false
	}
	return *p, true
}

// Run executes the control loop until ctx is cancelled or Close is called.
// On exit the tick source is stopped, playback is stopped and in-flight
// inference is invalidated. Run returns nil on a normal shutdown.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(s.done)

	ctx, cancel := context.WithCancel(observe.WithSessionID(ctx, s.id))
	defer cancel()

	if s.ticks == nil {
		s.ticks = NewTicker(s.cfg.Interval)
	}
	s.running.Store(true)
	s.metrics.ActiveSessions.Add(ctx, 1)
	slog.Info("detection session started",
		"session_id", s.id,
		"interval", s.cfg.Interval,
		"confirmations", s.machine.Confirmations(),
		"max_misses", s.machine.MaxMisses(),
	)
	s.probeModel(ctx)

	defer s.teardown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stop:
			return nil
		case <-s.ticks.C():
			s.onTick(ctx)
		case inf := <-s.results:
			s.onResult(ctx, inf)
		case h := <-s.ctrl.Finished():
			s.onFinished(h)
		}
	}
}

// Close ends the session and waits for the control loop to finish its
// teardown. It is safe to call more than once and before Run.
func (s *Session) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.started.Load() {
		<-s.done
	}
	return nil
}

// teardown runs on the control goroutine before Run returns.
func (s *Session) teardown() {
	s.ticks.Stop()
	s.gen.Add(1)
	if err := s.ctrl.Stop(); err != nil {
		slog.Warn("session: stop playback on teardown", "session_id", s.id, "err", err)
	}
	s.machine.Reset()
	s.running.Store(false)
	s.metrics.ActiveSessions.Add(context.Background(), -1)
	slog.Info("detection session stopped", "session_id", s.id, "dropped_ticks", s.dropped.Load())
}

// probeModel switches to model-unavailable mode when there is no classifier
// or it reports that its model cannot be loaded. Other ping failures leave
// inference enabled; they surface as per-tick inference failures.
func (s *Session) probeModel(ctx context.Context) {
	if s.classifier == nil {
		s.modelUnavailable = true
		slog.Warn("no classifier configured, landmarks will not be detected", "session_id", s.id)
		return
	}
	err := s.ping(ctx, pingTimeout)
	switch {
	case errors.Is(err, classifier.ErrModelUnavailable):
		s.modelUnavailable = true
		slog.Warn("classifier model unavailable, retrying every tick", "session_id", s.id, "err", err)
	case err != nil:
		slog.Warn("classifier ping failed", "session_id", s.id, "err", err)
	}
}

// recoverModel re-pings an unavailable classifier and leaves
// model-unavailable mode once the model answers. The ping is bounded by the
// tick interval so the control loop keeps its cadence.
func (s *Session) recoverModel(ctx context.Context) bool {
	if s.classifier == nil {
		return false
	}
	err := s.ping(ctx, min(pingTimeout, s.cfg.Interval))
	if errors.Is(err, classifier.ErrModelUnavailable) {
		return false
	}
	s.modelUnavailable = false
	slog.Info("classifier model available, detection enabled", "session_id", s.id, "ping_err", err)
	return true
}

// ping returns nil for classifiers without a health check.
func (s *Session) ping(ctx context.Context, timeout time.Duration) error {
	p, ok := s.classifier.(classifier.Pinger)
	if !ok {
		return nil
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Ping(pctx)
}

func (s *Session) onTick(ctx context.Context) {
	if s.modelUnavailable && !s.recoverModel(ctx) {
		s.metrics.RecordTick(ctx, observe.TickDispatched)
		s.cycle++
		s.decide(ctx, s.cycle, nil, classifier.ErrModelUnavailable)
		return
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		n := s.dropped.Add(1)
		s.metrics.RecordTick(ctx, observe.TickDropped)
		slog.Debug("tick dropped, classification in flight", "session_id", s.id, "dropped_ticks", n)
		return
	}
	s.metrics.RecordTick(ctx, observe.TickDispatched)
	s.cycle++

	frame, err := s.frames.Snapshot(ctx)
	if err != nil {
		s.inFlight.Store(false)
		s.decide(ctx, s.cycle, nil, fmt.Errorf("session: snapshot: %w", err))
		return
	}
	go s.classify(ctx, s.gen.Load(), s.cycle, frame)
}

// classify runs on a worker goroutine. Exactly one value is sent on the
// results channel per call; the channel has room for it.
func (s *Session) classify(ctx context.Context, gen, cycle uint64, frame types.Frame) {
	ctx, span := observe.StartSpan(ctx, "classify")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ClassifyTimeout)
	defer cancel()

	start := time.Now()
	cands, err := s.classifier.Classify(ctx, frame)
	took := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
	}
	s.metrics.RecordClassify(ctx, s.providerName, status, took)
	s.results <- inference{gen: gen, cycle: cycle, candidates: cands, err: err, took: took}
}

func (s *Session) onResult(ctx context.Context, inf inference) {
	s.inFlight.Store(false)
	if inf.gen != s.gen.Load() {
		observe.Logger(ctx).Debug("discarding stale classification", "cycle", inf.cycle)
		return
	}
	if inf.err != nil {
		inf.err = fmt.Errorf("session: classify: %w", inf.err)
	}
	s.decide(ctx, inf.cycle, inf.candidates, inf.err)
}

// decide filters one cycle's candidates, advances the machine and applies
// the resulting action. An inference error counts as a None result.
func (s *Session) decide(ctx context.Context, cycle uint64, cands []types.Candidate, inferErr error) {
	ctx, span := observe.StartSpan(ctx, "detect.cycle")
	defer span.End()
	log := observe.Logger(ctx).With("cycle", cycle)

	rep := Report{Cycle: cycle, Trigger: TriggerTick}
	res := detect.None()
	if inferErr != nil {
		rep.Outcome = "failed"
		rep.Error = inferErr.Error()
		if !s.modelUnavailable {
			log.Warn("inference failed", "err", inferErr)
		}
	} else {
		cat := s.ctrl.Catalog()
		r, reject, top := detect.Explain(cands, s.machine.Playing(), cat, s.cfg.Thresholds)
		res = r
		rep.Outcome = reject.String()
		if top.Label != "" {
			rep.Top = &top
		}
		if reject == detect.RejectUnmapped {
			if hint, score, ok := cat.Suggest(top.Label); ok {
				log.Debug("unmapped label", "label", top.Label, "closest", hint, "score", score)
			} else {
				log.Debug("unmapped label", "label", top.Label)
			}
		}
	}
	s.metrics.RecordFilterOutcome(ctx, rep.Outcome)
	rep.Result = res.String()

	action := s.machine.Advance(res)
	if action.Kind != detect.ActionNone {
		s.metrics.RecordAction(ctx, action.Kind.String())
		log.Info("detection action", "action", action.String())
	}
	if err := s.ctrl.Apply(ctx, action); err != nil {
		// Nothing is playing; behave as if the video had been stopped.
		log.Warn("playback failed", "label", action.Label, "err", err)
		s.machine.Reset()
		rep.Error = err.Error()
	}
	rep.Action = action
	s.publish(rep)
}

// onFinished handles a natural end of playback. Handles of videos that were
// already stopped or replaced are ignored.
func (s *Session) onFinished(h sink.Handle) {
	if !s.ctrl.Complete(h) {
		slog.Debug("ignoring end of stale playback", "session_id", s.id, "handle", uint64(h))
		return
	}
	s.machine.Complete()
	s.publish(Report{Cycle: s.cycle, Trigger: TriggerFinished})
}

// publish completes rep with the current state and delivers it.
func (s *Session) publish(rep Report) {
	rep.SessionID = s.id
	rep.At = time.Now()
	rep.ActionName = rep.Action.String()
	rep.State = s.machine.State()
	rep.Phase = rep.State.Phase().String()
	rep.DroppedTicks = s.dropped.Load()
	rep.ModelUnavailable = s.modelUnavailable
	s.last.Store(&rep)
	if s.observer != nil {
		s.observer(rep)
	}
}
