// Package observe provides application-wide observability primitives for
// phonoscope: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// bridges them to a Prometheus registry served on /metrics. A package-level default
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

// meterName is the instrumentation scope name used for all phonoscope metrics.
const meterName = "github.com/MrWong99/phonoscope"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// AssessmentDuration tracks the align → classify → aggregate pipeline.
	AssessmentDuration metric.Float64Histogram

	// G2PDuration tracks text-to-phoneme conversion latency.
	G2PDuration metric.Float64Histogram

	// STTDuration tracks speech-to-phoneme transcription latency.
	STTDuration metric.Float64Histogram

	// ToolExecutionDuration tracks MCP tool execution latency.
	ToolExecutionDuration metric.Float64Histogram

	// --- Size histograms ---

	// AlignmentCells tracks the DP grid size of each alignment. Use with
	// attribute:
	//   attribute.String("mode", ...)
	AlignmentCells metric.Int64Histogram

	// ErrorRate tracks the phoneme error rate of each assessment.
	ErrorRate metric.Float64Histogram

	// --- Counters ---

	// Assessments counts assessments. Use with attribute:
	//   attribute.String("status", ...)
	Assessments metric.Int64Counter

	// Mistakes counts classified mistakes. Use with attribute:
	//   attribute.String("kind", ...)
	Mistakes metric.Int64Counter

	// ProviderRequests counts provider calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ToolCalls counts MCP tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveJobs tracks batch items currently being assessed.
	ActiveJobs metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The
// alignment itself finishes in microseconds; transcription takes seconds.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30,
}

// cellBuckets covers grids from a single word up to the default cell limit.
var cellBuckets = []float64{
	16, 64, 256, 1024, 4096, 16384, 65536, 1 << 20, 1 << 24, 1 << 26,
}

// rateBuckets covers phoneme error rates. Rates above 1 happen when the
// hypothesis is much longer than the reference.
var rateBuckets = []float64{
	0, 0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1, 2,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Latency histograms.
	if met.AssessmentDuration, err = m.Float64Histogram("phonoscope.assessment.duration",
		metric.WithDescription("Latency of the alignment and classification pipeline."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.G2PDuration, err = m.Float64Histogram("phonoscope.g2p.duration",
		metric.WithDescription("Latency of text-to-phoneme conversion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("phonoscope.stt.duration",
		metric.WithDescription("Latency of speech-to-phoneme transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = m.Float64Histogram("phonoscope.tool_execution.duration",
		metric.WithDescription("Latency of MCP tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Size histograms.
	if met.AlignmentCells, err = m.Int64Histogram("phonoscope.alignment.cells",
		metric.WithDescription("DP grid cells evaluated per alignment, by memory mode."),
		metric.WithUnit("{cell}"),
		metric.WithExplicitBucketBoundaries(cellBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ErrorRate, err = m.Float64Histogram("phonoscope.assessment.error_rate",
		metric.WithDescription("Phoneme error rate per assessment."),
		metric.WithExplicitBucketBoundaries(rateBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Assessments, err = m.Int64Counter("phonoscope.assessments",
		metric.WithDescription("Total assessments by status."),
	); err != nil {
		return nil, err
	}
	if met.Mistakes, err = m.Int64Counter("phonoscope.mistakes",
		metric.WithDescription("Total classified mistakes by kind."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("phonoscope.provider.requests",
		metric.WithDescription("Total provider requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("phonoscope.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("phonoscope.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveJobs, err = m.Int64UpDownCounter("phonoscope.batch.active_jobs",
		metric.WithDescription("Number of batch items currently being assessed."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("phonoscope.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
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

// RecordAssessment records one finished assessment: its status, duration,
// grid size and, on success, its error rate.
func (m *Metrics) RecordAssessment(ctx context.Context, status string, seconds float64, cells int, mode string, errorRate float64) {
	m.Assessments.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.AssessmentDuration.Record(ctx, seconds)
	if status != "ok" {
		return
	}
	m.AlignmentCells.Record(ctx, int64(cells), metric.WithAttributes(attribute.String("mode", mode)))
	m.ErrorRate.Record(ctx, errorRate)
}

// RecordMistakes adds n mistakes of the given kind.
func (m *Metrics) RecordMistakes(ctx context.Context, kind string, n int) {
	if n == 0 {
		return
	}
	m.Mistakes.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderLatency records the duration of a successful provider call
// in the histogram for its kind ("g2p" or "stt").
func (m *Metrics) RecordProviderLatency(ctx context.Context, provider, kind string, seconds float64) {
	h := m.G2PDuration
	if kind == "stt" {
		h = m.STTDuration
	}
	h.Record(ctx, seconds, metric.WithAttributes(Attr("provider", provider)))
}

// RecordToolLatency records how long an MCP tool took.
func (m *Metrics) RecordToolLatency(ctx context.Context, tool string, seconds float64) {
	m.ToolExecutionDuration.Record(ctx, seconds, metric.WithAttributes(Attr("tool", tool)))
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
