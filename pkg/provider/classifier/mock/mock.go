// Package mock provides a test double for the classifier.Provider interface.
//
// Responses are served in order from Responses; once exhausted, the last entry
// is repeated. Set Block to a channel to hold every Classify call until the
// channel is closed or receives a value, which lets tests keep an inference
// "in flight".
//
// Example:
//
//	p := &mock.Provider{Responses: []mock.Response{
//	    {Candidates: []types.Candidate{{Label: "Colosseum", Confidence: 0.93}}},
//	}}
//	cands, _ := p.Classify(ctx, frame)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/inkvision/pkg/provider/classifier"
	"github.com/MrWong99/inkvision/pkg/types"
)

// Response is a scripted Classify result.
type Response struct {
	Candidates []types.Candidate
	Err        error
}

// ClassifyCall records a single invocation of Provider.Classify.
type ClassifyCall struct {
	// Frame is the frame passed to Classify.
	Frame types.Frame
}

// Provider is a mock implementation of classifier.Provider and
// classifier.Pinger.
type Provider struct {
	mu sync.Mutex

	// Responses are returned by successive Classify calls.
	Responses []Response

	// Block, if non-nil, is received from before Classify returns. Closing
	// it releases all pending and future calls.
	Block chan struct{}

	// PingErr is returned by Ping.
	PingErr error

	// ClassifyCalls records every call to Classify in order.
	ClassifyCalls []ClassifyCall

	// PingCallCount is the number of times Ping was called.
	PingCallCount int

	next int
}

// Classify records the call and returns the next scripted response. It
// honours ctx cancellation while blocked.
func (p *Provider) Classify(ctx context.Context, frame types.Frame) ([]types.Candidate, error) {
	p.mu.Lock()
	p.ClassifyCalls = append(p.ClassifyCalls, ClassifyCall{Frame: frame})
	var resp Response
	if n := len(p.Responses); n > 0 {
		i := p.next
		if i >= n {
			i = n - 1
		} else {
			p.next++
		}
		resp = p.Responses[i]
	}
	block := p.Block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return resp.Candidates, resp.Err
}

// Ping records the call and returns PingErr.
func (p *Provider) Ping(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PingCallCount++
	return p.PingErr
}

// SetPingErr replaces the error returned by Ping. Thread-safe.
func (p *Provider) SetPingErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PingErr = err
}

// PingCount returns the number of Ping calls so far. Thread-safe.
func (p *Provider) PingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PingCallCount
}

// CallCount returns the number of Classify calls so far. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ClassifyCalls)
}

// SetResponses replaces the scripted responses and rewinds to the first one.
// Thread-safe.
func (p *Provider) SetResponses(rs ...Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Responses = rs
	p.next = 0
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ClassifyCalls = nil
	p.PingCallCount = 0
	p.next = 0
}

// Ensure Provider implements the classifier interfaces at compile time.
var (
	_ classifier.Provider = (*Provider)(nil)
	_ classifier.Pinger   = (*Provider)(nil)
)
