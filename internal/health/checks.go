package health

import (
	"context"
	"errors"

	"github.com/MrWong99/inkvision/pkg/provider/classifier"
)

// ErrNotRunning is reported by [Running] checkers whose component is down.
var ErrNotRunning = errors.New("health: not running")

// Classifier checks that the classifier backend answers its ping. Backends
// without a ping always pass.
func Classifier(p classifier.Provider) Checker {
	return Checker{
		Name: "classifier",
		Check: func(ctx context.Context) error {
			if p == nil {
				return classifier.ErrModelUnavailable
			}
			if pinger, ok := p.(classifier.Pinger); ok {
				return pinger.Ping(ctx)
			}
			return nil
		},
	}
}

// Running checks a liveness flag such as the detection loop's.
func Running(name string, running func() bool) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if !running() {
				return ErrNotRunning
			}
			return nil
		},
	}
}
