package session

import (
	"time"

	"github.com/MrWong99/inkvision/internal/detect"
	"github.com/MrWong99/inkvision/pkg/types"
)

// Report triggers.
const (
	TriggerTick     = "tick"
	TriggerFinished = "finished"
)

// Report describes one mutation of the detection state. It is delivered to
// the observer and kept as the session's last report.
type Report struct {
	SessionID string    `json:"session_id"`
	Cycle     uint64    `json:"cycle"`
	Trigger   string    `json:"trigger"`
	At        time.Time `json:"at"`

	// Result is the filtered result of the cycle, "None" when nothing was
	// accepted.
	Result string `json:"result,omitempty"`

	// Outcome is the filter outcome: accepted, below_threshold, unmapped,
	// ambiguous or failed.
	Outcome string `json:"outcome,omitempty"`

	// Top is the strongest surviving candidate, if any.
	Top *types.Candidate `json:"top,omitempty"`

	Action     detect.Action `json:"-"`
	ActionName string        `json:"action"`

	State detect.State `json:"state"`
	Phase string       `json:"phase"`

	DroppedTicks     uint64 `json:"dropped_ticks"`
	ModelUnavailable bool   `json:"model_unavailable,omitempty"`

	// Error is the inference or playback failure of this cycle.
	Error string `json:"error,omitempty"`
}
