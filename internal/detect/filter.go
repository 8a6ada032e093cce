package detect

import (
	"cmp"
	"slices"

	"github.com/MrWong99/inkvision/pkg/types"
)

// Default filter parameters. The lower bar while playing keeps an already
// visible video alive through classifier noise; the higher bar guards the
// start of a new one.
const (
	DefaultStartThreshold = 0.85
	DefaultKeepThreshold  = 0.75
	DefaultStartGap       = 0.05
	DefaultKeepGap        = 0.03
)

// Result is the outcome of filtering one tick. The zero value means no label
// was accepted.
type Result struct {
	Label string
	OK    bool
}

// Some returns a Result carrying label.
func Some(label string) Result { return Result{Label: label, OK: true} }

// None returns the empty Result.
func None() Result { return Result{} }

// String implements fmt.Stringer.
func (r Result) String() string {
	if !r.OK {
		return "None"
	}
	return "Some(" + r.Label + ")"
}

// Thresholds configures [Filter]. Use [DefaultThresholds] for the standard
// values.
type Thresholds struct {
	// Start is the minimum confidence for a candidate when nothing is playing.
	Start float64

	// Keep is the minimum confidence for a candidate while a video is playing.
	Keep float64

	// StartGap is the margin the top candidate must exceed over the runner-up
	// when nothing is playing.
	StartGap float64

	// KeepGap is the margin required while a video is playing.
	KeepGap float64
}

// DefaultThresholds returns the standard filter thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Start:    DefaultStartThreshold,
		Keep:     DefaultKeepThreshold,
		StartGap: DefaultStartGap,
		KeepGap:  DefaultKeepGap,
	}
}

// LabelSet reports whether a label has a video mapped to it.
type LabelSet interface {
	Has(label string) bool
}

// Labels is a [LabelSet] backed by a map.
type Labels map[string]struct{}

// NewLabels builds a Labels set from the given labels.
func NewLabels(labels ...string) Labels {
	s := make(Labels, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

// Has implements [LabelSet].
func (s Labels) Has(label string) bool {
	_, ok := s[label]
	return ok
}

// Filter reduces the candidates of a single tick to at most one accepted
// label. It never modifies candidates and keeps no state, so identical inputs
// always yield identical results.
//
// Candidates are ranked by confidence (ties keep their input order), those
// below the threshold for the current playing state are discarded, and the top
// survivor is accepted only if it has a mapped video and beats the runner-up
// by more than the required gap.
func Filter(candidates []types.Candidate, playing bool, known LabelSet, th Thresholds) Result {
	r, _, _ := Explain(candidates, playing, known, th)
	return r
}

// Reject classifies why [Filter] returned None.
type Reject int

const (
	// Accepted means the filter produced a label.
	Accepted Reject = iota
	// RejectEmpty means no candidate reached the threshold.
	RejectEmpty
	// RejectUnmapped means the top candidate has no video.
	RejectUnmapped
	// RejectAmbiguous means the runner-up was too close to the top candidate.
	RejectAmbiguous
)

// String returns the metric label for r.
func (r Reject) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectEmpty:
		return "below_threshold"
	case RejectUnmapped:
		return "unmapped"
	case RejectAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Explain is [Filter] with diagnostics: it also reports the rejection reason
// and the top surviving candidate, if any.
func Explain(candidates []types.Candidate, playing bool, known LabelSet, th Thresholds) (Result, Reject, types.Candidate) {
	threshold, gap := th.Start, th.StartGap
	if playing {
		threshold, gap = th.Keep, th.KeepGap
	}

	survivors := make([]types.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Confidence >= threshold {
			survivors = append(survivors, c)
		}
	}
	if len(survivors) == 0 {
		return None(), RejectEmpty, types.Candidate{}
	}
	slices.SortStableFunc(survivors, func(a, b types.Candidate) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})

	top := survivors[0]
	if known == nil || !known.Has(top.Label) {
		return None(), RejectUnmapped, top
	}
	if len(survivors) > 1 && top.Confidence-survivors[1].Confidence <= gap {
		return None(), RejectAmbiguous, top
	}
	return Some(top.Label), Accepted, top
}
