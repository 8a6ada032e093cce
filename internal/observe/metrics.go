// Package observe provides application-wide observability primitives for
// InkVision: OpenTelemetry metrics, tracing, trace-aware logging and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus via [InitProvider], so they can be scraped from /metrics. A
// package-level default [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all InkVision metrics.
const meterName = "github.com/MrWong99/inkvision"

// Tick outcomes for [Metrics.RecordTick].
const (
	TickDispatched = "dispatched"
	TickDropped    = "dropped"
)

// Playback events for [Metrics.RecordPlayback].
const (
	PlaybackStarted  = "started"
	PlaybackStopped  = "stopped"
	PlaybackFinished = "finished"
	PlaybackFailed   = "failed"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// Ticks counts detection timer ticks. Attribute "outcome" is
	// [TickDispatched] or [TickDropped].
	Ticks metric.Int64Counter

	// ClassifyDuration tracks classifier latency per request.
	ClassifyDuration metric.Float64Histogram

	// ClassifyRequests counts classifier calls. Attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ClassifyRequests metric.Int64Counter

	// FilterOutcomes counts per-cycle filter decisions. Attribute "outcome"
	// is one of accepted, below_threshold, unmapped, ambiguous, failed.
	FilterOutcomes metric.Int64Counter

	// Actions counts debounce actions other than none. Attribute "action".
	Actions metric.Int64Counter

	// PlaybackEvents counts playback lifecycle events. Attribute "event".
	PlaybackEvents metric.Int64Counter

	// ActivePlayback is 1 while a video is playing, 0 otherwise.
	ActivePlayback metric.Int64UpDownCounter

	// ActiveSessions tracks running detection sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks status server request time. Attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds sized for image
// classification round trips.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 0.8, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Ticks, err = m.Int64Counter("inkvision.detection.ticks",
		metric.WithDescription("Detection timer ticks by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ClassifyDuration, err = m.Float64Histogram("inkvision.classify.duration",
		metric.WithDescription("Latency of image classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ClassifyRequests, err = m.Int64Counter("inkvision.classify.requests",
		metric.WithDescription("Classifier requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.FilterOutcomes, err = m.Int64Counter("inkvision.detection.filter_outcomes",
		metric.WithDescription("Per-cycle recognition filter outcomes."),
	); err != nil {
		return nil, err
	}
	if met.Actions, err = m.Int64Counter("inkvision.detection.actions",
		metric.WithDescription("Playback actions emitted by the debounce machine."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackEvents, err = m.Int64Counter("inkvision.playback.events",
		metric.WithDescription("Playback lifecycle events."),
	); err != nil {
		return nil, err
	}
	if met.ActivePlayback, err = m.Int64UpDownCounter("inkvision.playback.active",
		metric.WithDescription("Number of videos currently playing."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("inkvision.active_sessions",
		metric.WithDescription("Number of running detection sessions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("inkvision.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTick counts one detection tick.
func (m *Metrics) RecordTick(ctx context.Context, outcome string) {
	m.Ticks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordClassify records one classifier request and its latency.
func (m *Metrics) RecordClassify(ctx context.Context, provider, status string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	)
	m.ClassifyRequests.Add(ctx, 1, attrs)
	m.ClassifyDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordFilterOutcome counts one filter decision.
func (m *Metrics) RecordFilterOutcome(ctx context.Context, outcome string) {
	m.FilterOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordAction counts one debounce action.
func (m *Metrics) RecordAction(ctx context.Context, action string) {
	m.Actions.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

// RecordPlayback counts a playback event and keeps [Metrics.ActivePlayback]
// in step: started adds one, stopped and finished subtract one.
func (m *Metrics) RecordPlayback(ctx context.Context, event string) {
	m.PlaybackEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
	switch event {
	case PlaybackStarted:
		m.ActivePlayback.Add(ctx, 1)
	case PlaybackStopped, PlaybackFinished:
		m.ActivePlayback.Add(ctx, -1)
	}
}
