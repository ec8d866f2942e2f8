// Package observe provides application-wide observability primitives for the
// Beat facilitator: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Beat metrics.
const meterName = "github.com/OccupiedPorcupine/beat-your-meet-sub000"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// LMDuration tracks language model call latency. Use with attributes:
	//   attribute.String("stage", "fast"|"conversational"), attribute.String("status", ...)
	LMDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency per utterance.
	TTSDuration metric.Float64Histogram

	// TickDuration tracks how long one facilitation check takes, including
	// any transition or warning it dispatches.
	TickDuration metric.Float64Histogram

	// --- Counters ---

	// GateDecisions counts speech gate verdicts. Use with attributes:
	//   attribute.String("trigger", ...), attribute.String("action", ...)
	GateDecisions metric.Int64Counter

	// RouterIntents counts classified utterance intents. Use with attribute:
	//   attribute.String("intent", ...)
	RouterIntents metric.Int64Counter

	// Interventions counts utterances the facilitator actually delivered,
	// by trigger.
	Interventions metric.Int64Counter

	// DocumentsAssembled counts meeting documents produced at wrap-up. Use
	// with attributes:
	//   attribute.String("type", ...), attribute.String("status", ...)
	DocumentsAssembled metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live meeting sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LMDuration, err = m.Float64Histogram("beat.lm.duration",
		metric.WithDescription("Latency of language model calls by stage and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("beat.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis per utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TickDuration, err = m.Float64Histogram("beat.monitor.tick.duration",
		metric.WithDescription("Duration of one facilitation check."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.GateDecisions, err = m.Int64Counter("beat.gate.decisions",
		metric.WithDescription("Total speech gate verdicts by trigger and action."),
	); err != nil {
		return nil, err
	}
	if met.RouterIntents, err = m.Int64Counter("beat.router.intents",
		metric.WithDescription("Total classified utterance intents."),
	); err != nil {
		return nil, err
	}
	if met.Interventions, err = m.Int64Counter("beat.interventions",
		metric.WithDescription("Total delivered facilitator utterances by trigger."),
	); err != nil {
		return nil, err
	}
	if met.DocumentsAssembled, err = m.Int64Counter("beat.documents.assembled",
		metric.WithDescription("Total meeting documents produced by type and status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("beat.active_sessions",
		metric.WithDescription("Number of live meeting sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("beat.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordGateDecision records one speech gate verdict.
func (m *Metrics) RecordGateDecision(ctx context.Context, trigger, action string) {
	m.GateDecisions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("trigger", trigger),
			attribute.String("action", action),
		),
	)
}

// RecordIntent records one classified utterance intent.
func (m *Metrics) RecordIntent(ctx context.Context, intent string) {
	m.RouterIntents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("intent", intent)),
	)
}

// RecordIntervention records one delivered facilitator utterance.
func (m *Metrics) RecordIntervention(ctx context.Context, trigger string) {
	m.Interventions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("trigger", trigger)),
	)
}

// RecordDocument records one assembled meeting document.
func (m *Metrics) RecordDocument(ctx context.Context, docType, status string) {
	m.DocumentsAssembled.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("type", docType),
			attribute.String("status", status),
		),
	)
}
