package session

import "time"

// TickSource drives detection cycles. C delivers one value per cycle; Stop
// guarantees that no further values are delivered.
type TickSource interface {
	C() <-chan time.Time
	Stop()
}

// Ticker is a [TickSource] backed by [time.Ticker]. A slow receiver loses
// ticks rather than accumulating them.
type Ticker struct {
	t *time.Ticker
}

// NewTicker returns a Ticker firing every d.
func NewTicker(d time.Duration) *Ticker {
	return &Ticker{t: time.NewTicker(d)}
}

// C implements TickSource.
func (t *Ticker) C() <-chan time.Time { return t.t.C }

// Stop implements TickSource.
func (t *Ticker) Stop() { t.t.Stop() }

// ManualTicker is a [TickSource] fired explicitly with Tick. It is used by
// tests and by callers that drive detection from an external trigger.
type ManualTicker struct {
	c    chan time.Time
	stop chan struct{}
}

// NewManualTicker returns an unfired ManualTicker.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{c: make(chan time.Time), stop: make(chan struct{})}
}

// C implements TickSource.
func (m *ManualTicker) C() <-chan time.Time { return m.c }

// Stop implements TickSource. It must be called at most once.
func (m *ManualTicker) Stop() { close(m.stop) }

// Tick blocks until the receiver has taken the tick. It returns false when
// the ticker was stopped first.
func (m *ManualTicker) Tick() bool {
	select {
	case m.c <- time.Now():
		return true
	case <-m.stop:
		return false
	}
}
