// Package httpinfer provides a classifier.Provider backed by an HTTP inference
// server.
//
// The server is expected to expose two endpoints:
//
//	POST /classify   body: raw image bytes, Content-Type: image/*
//	                 query: model=<name>&top_k=<n> (both optional)
//	                 200 → {"predictions":[{"label":"Colosseum","confidence":0.93}, ...]}
//	                 503 → model not loaded
//	GET  /healthz    200 when the model is loaded, 503 otherwise
//
// Usage:
//
//	p, err := httpinfer.New("http://localhost:9000",
//	    httpinfer.WithModel("landmarks-v2"),
//	    httpinfer.WithTopK(5),
//	)
//	cands, err := p.Classify(ctx, frame)
package httpinfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/inkvision/pkg/provider/classifier"
	"github.com/MrWong99/inkvision/pkg/types"
)

const (
	defaultTopK    = 5
	defaultTimeout = 10 * time.Second

	// maxResponseBytes caps how much of a response body is decoded.
	maxResponseBytes = 1 << 20
)

// Compile-time assertions.
var (
	_ classifier.Provider = (*Provider)(nil)
	_ classifier.Pinger   = (*Provider)(nil)
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel selects a model on servers that host several. When empty the
// server's default model is used.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithTopK sets how many candidates the server should return. Defaults to 5.
// Values below 1 are ignored.
func WithTopK(k int) Option {
	return func(p *Provider) {
		if k > 0 {
			p.topK = k
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// Provider implements classifier.Provider against an HTTP inference server.
// It is safe for concurrent use.
type Provider struct {
	baseURL    string
	model      string
	topK       int
	httpClient *http.Client
}

// New creates a Provider for the inference server at baseURL
// (e.g., "http://localhost:9000"). baseURL must be an absolute http(s) URL.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("httpinfer: baseURL must not be empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("httpinfer: invalid baseURL %q", baseURL)
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		topK:       defaultTopK,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// prediction is the wire form of one candidate.
type prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// classifyResponse is the body of a successful POST /classify.
type classifyResponse struct {
	Predictions []prediction `json:"predictions"`
}

// Classify uploads frame to the server and returns its predictions. Labels
// are passed through verbatim; confidences outside [0, 1] are clamped and
// predictions with an empty label or a NaN confidence are dropped.
func (p *Provider) Classify(ctx context.Context, frame types.Frame) ([]types.Candidate, error) {
	if len(frame.Data) == 0 {
		return nil, errors.New("httpinfer: empty frame")
	}

	q := url.Values{}
	if p.model != "" {
		q.Set("model", p.model)
	}
	q.Set("top_k", strconv.Itoa(p.topK))
	endpoint := p.baseURL + "/classify?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(frame.Data))
	if err != nil {
		return nil, fmt.Errorf("httpinfer: create request: %w", err)
	}
	ct := frame.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpinfer: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("httpinfer: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, fmt.Errorf("httpinfer: %w: %s", classifier.ErrModelUnavailable, strings.TrimSpace(string(body)))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("httpinfer: server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var cr classifyResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("httpinfer: decode response: %w", err)
	}

	out := make([]types.Candidate, 0, len(cr.Predictions))
	for _, pr := range cr.Predictions {
		if pr.Label == "" || math.IsNaN(pr.Confidence) {
			continue
		}
		out = append(out, types.Candidate{
			Label:      pr.Label,
			Confidence: min(max(pr.Confidence, 0), 1),
		})
	}
	return out, nil
}

// Ping checks GET /healthz. Only a 503 answer, the server's "model not
// loaded" reply, is reported as [classifier.ErrModelUnavailable]; transport
// failures and other statuses are ordinary errors.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("httpinfer: create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpinfer: ping: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusServiceUnavailable:
		return fmt.Errorf("httpinfer: %w: healthz returned %d", classifier.ErrModelUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("httpinfer: healthz returned %d", resp.StatusCode)
	}
}
