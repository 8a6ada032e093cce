// Package overlay provides a playback.Sink that renders on a remote AR overlay
// client connected over WebSocket.
//
// The device running the camera view opens a WebSocket to the handler
// returned by the Sink (mounted at /overlay by the app). The sink then sends
// JSON commands and receives playback events:
//
//	server → client  {"type":"play","id":7,"label":"Colosseum","url":"https://…","gravity":"aspect-fill"}
//	server → client  {"type":"stop","id":7}
//	client → server  {"type":"ended","id":7}
//	client → server  {"type":"error","id":7,"error":"…"}
//
// Only one client is served at a time; a new connection replaces the old one.
// When the client that is showing a video disconnects, that playback is
// reported as finished.
package overlay

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/inkvision/pkg/playback"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultAssetBase    = "/assets/"
)

var (
	_ playback.Sink = (*Sink)(nil)
	_ http.Handler  = (*Sink)(nil)
)

// message is the wire form of every command and event.
type message struct {
	Type    string `json:"type"`
	ID      uint64 `json:"id,omitempty"`
	Label   string `json:"label,omitempty"`
	URL     string `json:"url,omitempty"`
	Gravity string `json:"gravity,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Option is a functional option for configuring a Sink.
type Option func(*Sink)

// WithAssetBase sets the URL prefix under which bundled videos are served to
// the client. Defaults to "/assets/".
func WithAssetBase(base string) Option {
	return func(s *Sink) {
		if base != "" {
			if !strings.HasSuffix(base, "/") {
				base += "/"
			}
			s.assetBase = base
		}
	}
}

// WithWriteTimeout bounds each command write. Defaults to 5s.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithOriginPatterns allows cross-origin clients matching the given host
// patterns (see websocket.AcceptOptions.OriginPatterns).
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Sink) {
		s.originPatterns = append(s.originPatterns, patterns...)
	}
}

// Sink is a playback.Sink backed by a single WebSocket client. It is safe for
// concurrent use.
type Sink struct {
	assetBase      string
	writeTimeout   time.Duration
	originPatterns []string
	finished       chan playback.Handle

	mu     sync.Mutex
	conn   *websocket.Conn
	connID uint64
	active playback.Handle
	next   playback.Handle
}

// New creates a Sink with no client connected.
func New(opts ...Option) *Sink {
	s := &Sink{
		assetBase:    defaultAssetBase,
		writeTimeout: defaultWriteTimeout,
		finished:     make(chan playback.Handle, 16),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Connected reports whether an overlay client is attached.
func (s *Sink) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// ServeHTTP upgrades the request to a WebSocket and serves it until the client
// disconnects or is replaced.
func (s *Sink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		slog.Warn("overlay: websocket accept failed", "err", err)
		return
	}

	s.mu.Lock()
	old := s.conn
	orphan := s.active
	s.active = 0
	s.connID++
	id := s.connID
	s.conn = c
	s.mu.Unlock()

	if old != nil {
		old.Close(websocket.StatusPolicyViolation, "replaced by a newer client")
	}
	if orphan != 0 {
		s.deliver(orphan)
	}
	slog.Info("overlay: client connected", "remote", r.RemoteAddr)

	s.readLoop(r.Context(), c)

	s.mu.Lock()
	if s.connID != id {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	orphan = s.active
	s.active = 0
	s.mu.Unlock()

	c.CloseNow()
	if orphan != 0 {
		s.deliver(orphan)
	}
	slog.Info("overlay: client disconnected", "remote", r.RemoteAddr)
}

// readLoop consumes client events until the connection fails.
func (s *Sink) readLoop(ctx context.Context, c *websocket.Conn) {
	for {
		var m message
		if err := wsjson.Read(ctx, c, &m); err != nil {
			return
		}
		switch m.Type {
		case "ended", "error":
			if m.Type == "error" {
				slog.Warn("overlay: client reported playback error", "id", m.ID, "error", m.Error)
			}
			h := playback.Handle(m.ID)
			s.mu.Lock()
			match := h != 0 && h == s.active
			if match {
				s.active = 0
			}
			s.mu.Unlock()
			if match {
				s.deliver(h)
			}
		default:
			slog.Debug("overlay: ignoring client message", "type", m.Type)
		}
	}
}

// deliver hands h to the Finished consumer without blocking.
func (s *Sink) deliver(h playback.Handle) {
	select {
	case s.finished <- h:
	default:
		slog.Warn("overlay: finished channel full, dropping event", "handle", h)
	}
}

// Start sends a play command for res to the connected client.
func (s *Sink) Start(ctx context.Context, res playback.Resource) (playback.Handle, error) {
	s.mu.Lock()
	c := s.conn
	if c == nil {
		s.mu.Unlock()
		return 0, playback.ErrNoClient
	}
	s.next++
	h := s.next
	s.active = h
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	err := wsjson.Write(ctx, c, message{
		Type:    "play",
		ID:      uint64(h),
		Label:   res.Label,
		URL:     s.clientURL(res),
		Gravity: playback.Gravity,
	})
	if err != nil {
		s.mu.Lock()
		if s.active == h {
			s.active = 0
		}
		s.mu.Unlock()
		return 0, err
	}
	return h, nil
}

// Stop sends a stop command for h if it is the active playback.
func (s *Sink) Stop(h playback.Handle) error {
	s.mu.Lock()
	if h == 0 || h != s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = 0
	c := s.conn
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, message{Type: "stop", ID: uint64(h)})
}

// Finished implements playback.Sink.
func (s *Sink) Finished() <-chan playback.Handle { return s.finished }

// clientURL returns the URL the client should load for res.
func (s *Sink) clientURL(res playback.Resource) string {
	if res.Local() {
		return s.assetBase + url.PathEscape(res.Name)
	}
	return res.URL
}
