package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultQueueSize is the recorder capacity used when none is configured.
const DefaultQueueSize = 4096

var (
	// ErrQueueFull is returned by Emit when the sample was dropped.
	ErrQueueFull = errors.New("telemetry: recorder queue full")
	// ErrRecorderClosed is returned once Drain has been called.
	ErrRecorderClosed = errors.New("telemetry: recorder closed")
)

// MetricSample is one value destined for a registry instrument.
type MetricSample struct {
	Name   string
	Value  float64
	Labels Labels
	Time   time.Time
}

type queued struct {
	sample MetricSample
	span   trace.SpanContext
	ack    chan struct{} // non-nil for flush barriers
}

// Recorder applies metric samples on a single background worker so that the
// request path only pays for a channel send. Samples are applied in the order
// they were emitted.
type Recorder struct {
	registry *Registry
	logger   *slog.Logger

	queue   chan queued
	dropped atomic.Int64
	applied atomic.Int64
	closed  atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewRecorder creates a recorder with the given capacity. Call Start before
// emitting and Drain during shutdown.
func NewRecorder(registry *Registry, logger *slog.Logger, size int) *Recorder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Recorder{
		registry: registry,
		logger:   logger,
		queue:    make(chan queued, size),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the worker and registers queue health gauges on meter.
func (r *Recorder) Start(meter metric.Meter) {
	r.startOnce.Do(func() {
		r.registerMetrics(meter)
		go r.loop()
	})
}

// Emit enqueues sample without blocking. When the queue is full the sample
// is dropped and counted.
func (r *Recorder) Emit(ctx context.Context, sample MetricSample) error {
	if r.closed.Load() {
		return ErrRecorderClosed
	}
	if sample.Time.IsZero() {
		sample.Time = time.Now()
	}
	item := queued{sample: sample, span: trace.SpanContextFromContext(ctx)}
	select {
	case r.queue <- item:
		return nil
	default:
		// Log on powers of two so a saturated queue cannot flood the log.
		if n := r.dropped.Add(1); n&(n-1) == 0 {
			r.logger.Warn("telemetry: recorder queue full, dropping samples",
				"metric", sample.Name, "dropped_total", n)
		}
		return ErrQueueFull
	}
}

// Flush blocks until every sample emitted before the call has been applied.
func (r *Recorder) Flush(ctx context.Context) error {
	if r.closed.Load() {
		return ErrRecorderClosed
	}
	ack := make(chan struct{})
	select {
	case r.queue <- queued{ack: ack}:
	case <-r.done:
		return ErrRecorderClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain stops accepting samples, applies the backlog and waits for the worker
// to exit or ctx to expire.
func (r *Recorder) Drain(ctx context.Context) {
	// A recorder that was never started still owes its backlog.
	r.startOnce.Do(func() { go r.loop() })
	r.stopOnce.Do(func() {
		r.closed.Store(true)
		close(r.stop)
	})
	select {
	case <-r.done:
	case <-ctx.Done():
		r.logger.Warn("telemetry: drain timed out, samples may be lost", "pending", len(r.queue))
	}
}

// Len returns the number of queued samples.
func (r *Recorder) Len() int { return len(r.queue) }

// Dropped returns the total number of samples dropped for lack of capacity.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Applied returns the total number of samples handed to instruments.
func (r *Recorder) Applied() int64 { return r.applied.Load() }

func (r *Recorder) loop() {
	defer close(r.done)
	for {
		select {
		case item := <-r.queue:
			r.apply(item)
		case <-r.stop:
			for {
				select {
				case item := <-r.queue:
					r.apply(item)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) apply(item queued) {
	if item.ack != nil {
		close(item.ack)
		return
	}
	inst, ok := r.registry.Lookup(item.sample.Name)
	if !ok {
		r.logger.Warn("telemetry: sample for unregistered instrument dropped", "metric", item.sample.Name)
		return
	}
	ctx := context.Background()
	if item.span.IsValid() {
		ctx = trace.ContextWithSpanContext(ctx, item.span)
	}
	if err := inst.Record(ctx, item.sample.Value, item.sample.Labels); err != nil {
		r.logger.Warn("telemetry: sample rejected", "metric", item.sample.Name, "error", err)
		return
	}
	r.applied.Add(1)
}

func (r *Recorder) registerMetrics(meter metric.Meter) {
	_, _ = meter.Int64ObservableGauge("telemetry.queue.depth",
		metric.WithDescription("Current number of metric samples waiting to be applied"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(r.Len()))
			return nil
		}),
	)

	_, _ = meter.Int64ObservableGauge("telemetry.queue.dropped_total",
		metric.WithDescription("Total metric samples dropped due to queue capacity"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(r.Dropped())
			return nil
		}),
	)
}
