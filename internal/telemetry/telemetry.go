// Package telemetry is the in-process instrumentation layer: it owns the
// OpenTelemetry providers, the instrument registry and the asynchronous
// metric recorder, and provides span and operation helpers built on them.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const scopeName = "github.com/ashita-ai/elven"

// DefaultMetricInterval is the fixed metric export period.
const DefaultMetricInterval = 60 * time.Second

// Options configures Init.
type Options struct {
	Enabled         bool
	TracesEndpoint  string // full URL, e.g. http://collector:4318/v1/traces
	MetricsEndpoint string // full URL, e.g. http://collector:4318/v1/metrics
	ServiceName     string
	ServiceVersion  string
	Environment     string
	MetricInterval  time.Duration
	QueueSize       int
}

// Telemetry is the process-wide instrumentation context. Construct one at
// startup and pass it to every component that records spans or metrics.
type Telemetry struct {
	tracer   trace.Tracer
	meter    metric.Meter
	registry *Registry
	recorder *Recorder
	logger   *slog.Logger

	levelsMu sync.Mutex
	levels   map[string]float64

	shutdowns []func(context.Context) error
}

// Init builds the OTLP/HTTP exporters and providers, installs them globally
// and returns the instrumentation context. When opts.Enabled is false no-op
// providers are used and nothing is exported.
func Init(ctx context.Context, opts Options, logger *slog.Logger) (*Telemetry, error) {
	if !opts.Enabled {
		return New(tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider(), logger, opts.QueueSize), nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(opts.ServiceName),
			semconv.ServiceVersionKey.String(opts.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(opts.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	traceExp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(opts.TracesEndpoint))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}

	// Spans are queued for export when they end.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp,
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	metricExp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(opts.MetricsEndpoint))
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}

	interval := opts.MetricInterval
	if interval <= 0 {
		interval = DefaultMetricInterval
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExp,
				sdkmetric.WithInterval(interval),
			),
		),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	t := New(tp, mp, logger, opts.QueueSize)
	t.shutdowns = append(t.shutdowns, tp.Shutdown, mp.Shutdown)

	logger.Info("telemetry: exporters configured",
		"traces_endpoint", opts.TracesEndpoint,
		"metrics_endpoint", opts.MetricsEndpoint,
		"service", opts.ServiceName,
		"environment", opts.Environment,
		"metric_interval", interval.String(),
	)
	return t, nil
}

// New builds an instrumentation context over explicit providers and starts
// its recorder. Provider lifecycle stays with the caller.
func New(tp trace.TracerProvider, mp metric.MeterProvider, logger *slog.Logger, queueSize int) *Telemetry {
	meter := mp.Meter(scopeName)
	registry := NewRegistry(meter, logger)
	registerCatalog(registry)

	recorder := NewRecorder(registry, logger, queueSize)
	recorder.Start(meter)

	return &Telemetry{
		tracer:   tp.Tracer(scopeName),
		meter:    meter,
		registry: registry,
		recorder: recorder,
		logger:   logger,
		levels:   make(map[string]float64),
	}
}

func (t *Telemetry) Tracer() trace.Tracer { return t.tracer }
func (t *Telemetry) Meter() metric.Meter { return t.meter }
func (t *Telemetry) Registry() *Registry { return t.registry }
func (t *Telemetry) Recorder() *Recorder { return t.recorder }
func (t *Telemetry) Logger() *slog.Logger { return t.logger }

// Flush waits until every metric sample emitted so far has been applied.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.recorder.Flush(ctx)
}

// SetLevel moves an up/down instrument to value by emitting the difference
// from the last level set through this method. The level only advances once
// the delta is queued, so a dropped sample is retried by the next call.
func (t *Telemetry) SetLevel(ctx context.Context, name string, value float64) {
	t.levelsMu.Lock()
	defer t.levelsMu.Unlock()
	delta := value - t.levels[name]
	if delta == 0 {
		return
	}
	if err := t.recorder.Emit(ctx, MetricSample{Name: name, Value: delta}); err != nil {
		return
	}
	t.levels[name] = value
}

// Shutdown drains pending samples, then flushes and stops the providers.
// Returns the first error encountered.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	t.recorder.Drain(ctx)

	var firstErr error
	for _, fn := range t.shutdowns {
		if err := fn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *Telemetry) emit(ctx context.Context, name string, value float64, labels Labels) {
	// A dropped sample is already counted by the recorder.
	_ = t.recorder.Emit(ctx, MetricSample{Name: name, Value: value, Labels: labels})
}
