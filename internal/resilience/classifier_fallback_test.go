package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/inkvision/pkg/provider/classifier"
	"github.com/MrWong99/inkvision/pkg/provider/classifier/mock"
	"github.com/MrWong99/inkvision/pkg/types"
)

func TestClassifierFallback_Classify(t *testing.T) {
	t.Parallel()
	primary := &mock.Provider{Responses: []mock.Response{{Err: errors.New("connection refused")}}}
	secondary := &mock.Provider{Responses: []mock.Response{{
		Candidates: []types.Candidate{{Label: "Colosseum", Confidence: 0.9}},
	}}}
	f := NewClassifierFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	cands, err := f.Classify(context.Background(), types.Frame{})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(cands) != 1 || cands[0].Label != "Colosseum" {
		t.Errorf("candidates = %v", cands)
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.CallCount(), secondary.CallCount())
	}
}

func TestClassifierFallback_CancelledContextStopsFailover(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	primary := &mock.Provider{Block: block}
	secondary := &mock.Provider{}
	f := NewClassifierFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Classify(ctx, types.Frame{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if secondary.CallCount() != 0 {
		t.Error("secondary called after cancellation")
	}
	if f.Breakers()["primary"] != StateClosed {
		t.Error("cancellation tripped the primary breaker")
	}
}

func TestClassifierFallback_Ping(t *testing.T) {
	t.Parallel()
	unavailable := func() *mock.Provider { return &mock.Provider{PingErr: classifier.ErrModelUnavailable} }

	tests := []struct {
		name            string
		providers       []*mock.Provider
		wantErr         bool
		wantUnavailable bool
	}{
		{"one healthy", []*mock.Provider{unavailable(), {}}, false, false},
		{"all unavailable", []*mock.Provider{unavailable(), unavailable()}, true, true},
		{"mixed failures", []*mock.Provider{unavailable(), {PingErr: errors.New("timeout")}}, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := NewClassifierFallback(tc.providers[0], "p0", FallbackConfig{})
			for _, p := range tc.providers[1:] {
				f.AddFallback("p1", p)
			}
			err := f.Ping(context.Background())
			if (err != nil) != tc.wantErr {
				t.Fatalf("Ping() = %v, wantErr %v", err, tc.wantErr)
			}
			if got := errors.Is(err, classifier.ErrModelUnavailable); got != tc.wantUnavailable {
				t.Errorf("errors.Is(ErrModelUnavailable) = %v, want %v", got, tc.wantUnavailable)
			}
		})
	}
}
