// Package httpsnap provides a frames.Provider that fetches a still image from
// an HTTP snapshot endpoint, as exposed by most IP cameras and by mobile
// camera bridge apps.
package httpsnap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/MrWong99/inkvision/pkg/frames"
	"github.com/MrWong99/inkvision/pkg/types"
)

const (
	defaultTimeout = 2 * time.Second

	// defaultMaxBytes caps the size of a single snapshot.
	defaultMaxBytes = 16 << 20
)

var _ frames.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout bounds each snapshot request. Defaults to 2s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMaxBytes caps the accepted snapshot size. Defaults to 16 MiB.
func WithMaxBytes(n int64) Option {
	return func(p *Provider) {
		if n > 0 {
			p.maxBytes = n
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

// Provider fetches snapshots with GET requests against a fixed URL.
type Provider struct {
	url        string
	timeout    time.Duration
	maxBytes   int64
	httpClient *http.Client
	seq        atomic.Uint64
}

// New creates a Provider for the snapshot endpoint at snapshotURL.
func New(snapshotURL string, opts ...Option) (*Provider, error) {
	u, err := url.Parse(snapshotURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("httpsnap: invalid snapshot URL %q", snapshotURL)
	}
	p := &Provider{
		url:        snapshotURL,
		timeout:    defaultTimeout,
		maxBytes:   defaultMaxBytes,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Snapshot fetches one image. The response Content-Type is carried over to
// the frame.
func (p *Provider) Snapshot(ctx context.Context) (types.Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return types.Frame{}, fmt.Errorf("httpsnap: create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return types.Frame{}, fmt.Errorf("httpsnap: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Frame{}, fmt.Errorf("httpsnap: server returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return types.Frame{}, fmt.Errorf("httpsnap: read body: %w", err)
	}
	if int64(len(data)) > p.maxBytes {
		return types.Frame{}, fmt.Errorf("httpsnap: snapshot exceeds %d bytes", p.maxBytes)
	}
	if len(data) == 0 {
		return types.Frame{}, errors.New("httpsnap: empty snapshot")
	}
	return types.Frame{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		Seq:         p.seq.Add(1),
		CapturedAt:  time.Now(),
	}, nil
}
