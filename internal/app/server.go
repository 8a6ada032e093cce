package app

import (
	"encoding/json"
	"net/http"

	"github.com/MrWong99/inkvision/internal/observe"
	"github.com/MrWong99/inkvision/internal/resilience"
	"github.com/MrWong99/inkvision/internal/session"
)

// Status is the body of GET /status.
type Status struct {
	SessionID    string `json:"session_id"`
	Running      bool   `json:"running"`
	DroppedTicks uint64 `json:"dropped_ticks"`

	// Playing is the label of the current video, empty when idle.
	Playing string `json:"playing,omitempty"`

	// Breakers holds the circuit state of each classifier backend when
	// failover is configured.
	Breakers map[string]string `json:"breakers,omitempty"`

	LastReport *session.Report `json:"last_report,omitempty"`
}

// Handler returns the status server's routes wrapped in the observe
// middleware. The overlay WebSocket endpoint is mounted when the playback
// sink serves HTTP.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.health.Register(mux)
	mux.Handle("GET /metrics", a.metricsHandler)
	mux.HandleFunc("GET /status", a.handleStatus)
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.Dir(a.cfg.AssetsDir))))
	if h, ok := a.providers.Playback.(http.Handler); ok {
		mux.Handle("GET /overlay", h)
	}
	return observe.Middleware(a.metrics)(mux)
}

// Status snapshots the running state.
func (a *App) Status() Status {
	st := Status{
		SessionID:    a.session.ID(),
		Running:      a.session.Running(),
		DroppedTicks: a.session.DroppedTicks(),
	}
	if label, _, ok := a.controller.Current(); ok {
		st.Playing = label
	}
	if fb, ok := a.classifier.(*resilience.ClassifierFallback); ok {
		st.Breakers = make(map[string]string)
		for name, state := range fb.Breakers() {
			st.Breakers[name] = state.String()
		}
	}
	if rep, ok := a.session.LastReport(); ok {
		st.LastReport = &rep
	}
	return st
}

func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(a.Status()); err != nil {
		observe.Logger(r.Context()).Warn("status: encode response", "err", err)
	}
}
