package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/inkvision/pkg/provider/classifier"
	"github.com/MrWong99/inkvision/pkg/types"
)

// ClassifierFallback is a [classifier.Provider] that fails over across
// several classifier backends.
type ClassifierFallback struct {
	group *FallbackGroup[classifier.Provider]
}

var (
	_ classifier.Provider = (*ClassifierFallback)(nil)
	_ classifier.Pinger   = (*ClassifierFallback)(nil)
)

// NewClassifierFallback returns a ClassifierFallback preferring primary.
func NewClassifierFallback(primary classifier.Provider, primaryName string, cfg FallbackConfig) *ClassifierFallback {
	return &ClassifierFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers a backend tried after the ones already added.
func (f *ClassifierFallback) AddFallback(name string, p classifier.Provider) {
	f.group.AddFallback(name, p)
}

// Breakers returns the breaker state of each backend.
func (f *ClassifierFallback) Breakers() map[string]State { return f.group.States() }

// Classify returns the candidates of the first backend that answers. A
// cancelled ctx ends the failover immediately.
func (f *ClassifierFallback) Classify(ctx context.Context, frame types.Frame) ([]types.Candidate, error) {
	cands, _, err := executeUntil(f.group, func(p classifier.Provider) ([]types.Candidate, error) {
		return p.Classify(ctx, frame)
	}, func(error) bool { return ctx.Err() != nil })
	return cands, err
}

// Ping succeeds when any backend is usable. Backends that do not implement
// [classifier.Pinger] count as usable. If every backend reports
// [classifier.ErrModelUnavailable] the result wraps it.
func (f *ClassifierFallback) Ping(ctx context.Context) error {
	var errs []error
	unavailable := 0
	for _, e := range f.group.entries {
		p, ok := e.value.(classifier.Pinger)
		if !ok {
			return nil
		}
		err := p.Ping(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, classifier.ErrModelUnavailable) {
			unavailable++
		}
		errs = append(errs, err)
	}
	err := errors.Join(errs...)
	if unavailable == len(f.group.entries) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, err)
}
