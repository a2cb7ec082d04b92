package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"phonoscope.assessment.duration", m.AssessmentDuration},
		{"phonoscope.g2p.duration", m.G2PDuration},
		{"phonoscope.stt.duration", m.STTDuration},
		{"phonoscope.tool_execution.duration", m.ToolExecutionDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestRecordAssessment(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAssessment(ctx, "ok", 0.002, 30, "full", 0.2)
	m.RecordAssessment(ctx, "ok", 0.001, 42, "full", 0)
	m.RecordAssessment(ctx, "invalid_input", 0.0001, 0, "", 0)

	rm := collect(t, reader)

	cells := findMetric(rm, "phonoscope.alignment.cells")
	if cells == nil {
		t.Fatal("alignment cells metric not found")
	}
	hist, ok := cells.Data.(metricdata.Histogram[int64])
	if !ok {
		t.Fatal("alignment cells metric is not an int64 histogram")
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 2 {
		t.Errorf("alignment cells data points = %+v, want one series with 2 samples", hist.DataPoints)
	}
	if hist.DataPoints[0].Sum != 72 {
		t.Errorf("alignment cells sum = %d, want 72", hist.DataPoints[0].Sum)
	}

	rate := findMetric(rm, "phonoscope.assessment.error_rate")
	if rate == nil {
		t.Fatal("error rate metric not found")
	}
	if rh := rate.Data.(metricdata.Histogram[float64]); rh.DataPoints[0].Count != 2 {
		t.Errorf("error rate samples = %d, want 2 (failed assessments are not recorded)", rh.DataPoints[0].Count)
	}

	total := findMetric(rm, "phonoscope.assessments")
	if total == nil {
		t.Fatal("assessments metric not found")
	}
	sum, ok := total.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("assessments metric is not a sum")
	}
	byStatus := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value("status")
		byStatus[v.AsString()] = dp.Value
	}
	if byStatus["ok"] != 2 || byStatus["invalid_input"] != 1 {
		t.Errorf("assessments by status = %v, want ok=2 invalid_input=1", byStatus)
	}
}

func TestRecordMistakes(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordMistakes(ctx, "deletion", 2)
	m.RecordMistakes(ctx, "deletion", 1)
	m.RecordMistakes(ctx, "insertion", 0)

	rm := collect(t, reader)
	met := findMetric(rm, "phonoscope.mistakes")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) != 1 {
		t.Fatalf("data points = %d, want 1 (zero counts are skipped)", len(sum.DataPoints))
	}
	if sum.DataPoints[0].Value != 3 {
		t.Errorf("counter value = %d, want 3", sum.DataPoints[0].Value)
	}
}

func TestCounterIncrement(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "espeak", "g2p", "ok")
	m.RecordProviderRequest(ctx, "espeak", "g2p", "ok")
	m.RecordProviderRequest(ctx, "espeak", "g2p", "error")

	rm := collect(t, reader)
	met := findMetric(rm, "phonoscope.provider.requests")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}

	// Find the data point with status=ok.
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "status" && kv.Value.AsString() == "ok" {
				if dp.Value != 2 {
					t.Errorf("counter value = %d, want 2", dp.Value)
				}
				return
			}
		}
	}
	t.Error("data point with status=ok not found")
}

func TestToolCallsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordToolCall(ctx, "assess_phonemes", "ok")
	m.RecordToolCall(ctx, "assess_phonemes", "error")

	rm := collect(t, reader)
	met := findMetric(rm, "phonoscope.tool.calls")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}

	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "status" && kv.Value.AsString() == "ok" {
				if dp.Value != 1 {
					t.Errorf("counter value = %d, want 1", dp.Value)
				}
				return
			}
		}
	}
	t.Error("data point with status=ok not found")
}

func TestProviderErrorsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderError(ctx, "whisper", "stt")

	rm := collect(t, reader)
	met := findMetric(rm, "phonoscope.provider.errors")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if sum.DataPoints[0].Value != 1 {
		t.Errorf("counter value = %d, want 1", sum.DataPoints[0].Value)
	}
}

func TestRecordLatencies(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderLatency(ctx, "espeak", "g2p", 0.02)
	m.RecordProviderLatency(ctx, "whisper", "stt", 1.5)
	m.RecordProviderLatency(ctx, "whisper", "stt", 2.5)
	m.RecordToolLatency(ctx, "align_phonemes", 0.001)

	rm := collect(t, reader)
	tests := []struct {
		name  string
		count uint64
	}{
		{"phonoscope.g2p.duration", 1},
		{"phonoscope.stt.duration", 2},
		{"phonoscope.tool_execution.duration", 1},
	}
	for _, tt := range tests {
		met := findMetric(rm, tt.name)
		if met == nil {
			t.Fatalf("%s not found", tt.name)
		}
		hist, ok := met.Data.(metricdata.Histogram[float64])
		if !ok || len(hist.DataPoints) != 1 {
			t.Fatalf("%s: unexpected data %T", tt.name, met.Data)
		}
		if got := hist.DataPoints[0].Count; got != tt.count {
			t.Errorf("%s count = %d, want %d", tt.name, got, tt.count)
		}
	}
}

func TestActiveJobsGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	// UpDownCounters are additive.
	m.ActiveJobs.Add(ctx, 4)
	m.ActiveJobs.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "phonoscope.batch.active_jobs")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if got := sum.DataPoints[0].Value; got != 3 {
		t.Errorf("gauge value = %d, want 3", got)
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.HTTPRequestDuration.Record(ctx, 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("path", "/healthz"),
		),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "phonoscope.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
