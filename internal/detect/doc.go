// Package detect turns a noisy per-frame classification signal into a stable
// decision about which landmark video, if any, should be playing.
//
// It has two stages. [Filter] is a pure function that reduces the candidate
// list of a single tick to at most one accepted label, applying asymmetric
// confidence thresholds and an ambiguity gap. [Machine] is the debounce state
// machine that consumes one filtered result per tick and emits an [Action]
// (start, switch, stop, or nothing) based on consecutive-confirmation and
// consecutive-miss counters.
//
// Neither type performs I/O or synchronisation. A Machine must be owned by a
// single goroutine; the session control loop is that owner.
package detect
