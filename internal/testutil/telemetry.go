package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ashita-ai/elven/internal/telemetry"
)

// TelemetryHarness is a Telemetry wired to in-memory span and metric readers.
type TelemetryHarness struct {
	*telemetry.Telemetry
	Spans  *tracetest.SpanRecorder
	Reader *sdkmetric.ManualReader
}

// NewTelemetry builds a harness whose recorder is drained on test cleanup.
// queueSize <= 0 uses the default capacity.
func NewTelemetry(t testing.TB, queueSize int) *TelemetryHarness {
	t.Helper()

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	tel := telemetry.New(tp, mp, TestLogger(), queueSize)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(ctx)
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
	})
	return &TelemetryHarness{Telemetry: tel, Spans: spans, Reader: reader}
}

// Sync waits for every emitted sample to reach its instrument.
func (h *TelemetryHarness) Sync(t testing.TB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Flush(ctx))
}

// Collect flushes the recorder and reads all metrics.
func (h *TelemetryHarness) Collect(t testing.TB) metricdata.ResourceMetrics {
	t.Helper()
	h.Sync(t)
	var rm metricdata.ResourceMetrics
	require.NoError(t, h.Reader.Collect(context.Background(), &rm))
	return rm
}

// FindMetric returns the collected metric named name.
func (h *TelemetryHarness) FindMetric(t testing.TB, name string) (metricdata.Metrics, bool) {
	t.Helper()
	rm := h.Collect(t)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// SumPoints returns the data points of a float64 sum metric.
func (h *TelemetryHarness) SumPoints(t testing.TB, name string) []metricdata.DataPoint[float64] {
	t.Helper()
	m, ok := h.FindMetric(t, name)
	if !ok {
		return nil
	}
	sum, ok := m.Data.(metricdata.Sum[float64])
	require.Truef(t, ok, "metric %s is %T, not a float64 sum", name, m.Data)
	return sum.DataPoints
}

// HistogramPoints returns the data points of a float64 histogram metric.
func (h *TelemetryHarness) HistogramPoints(t testing.TB, name string) []metricdata.HistogramDataPoint[float64] {
	t.Helper()
	m, ok := h.FindMetric(t, name)
	if !ok {
		return nil
	}
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.Truef(t, ok, "metric %s is %T, not a float64 histogram", name, m.Data)
	return hist.DataPoints
}

// EndedSpan returns the first ended span named name.
func (h *TelemetryHarness) EndedSpan(t testing.TB, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range h.Spans.Ended() {
		if s.Name() == name {
			return s
		}
	}
	require.Failf(t, "span not found", "no ended span named %q", name)
	return nil
}
