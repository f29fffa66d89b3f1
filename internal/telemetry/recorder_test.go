package telemetry_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/ashita-ai/elven/internal/telemetry"
	"github.com/ashita-ai/elven/internal/testutil"
)

func TestRecorderDropsWhenFull(t *testing.T) {
	t.Parallel()
	reg, _ := newRegistry(t)
	reg.GetOrCreate(telemetry.KindCounter, "c_total", "", "")

	// Not started, so nothing drains the queue.
	rec := telemetry.NewRecorder(reg, testutil.TestLogger(), 2)
	ctx := context.Background()

	require.NoError(t, rec.Emit(ctx, telemetry.MetricSample{Name: "c_total", Value: 1}))
	require.NoError(t, rec.Emit(ctx, telemetry.MetricSample{Name: "c_total", Value: 1}))

	start := time.Now()
	err := rec.Emit(ctx, telemetry.MetricSample{Name: "c_total", Value: 1})
	assert.ErrorIs(t, err, telemetry.ErrQueueFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "Emit must not block")

	assert.Equal(t, 2, rec.Len())
	assert.Equal(t, int64(1), rec.Dropped())
}

func TestRecorderAppliesInOrder(t *testing.T) {
	t.Parallel()
	reg, _ := newRegistry(t)
	level := reg.GetOrCreate(telemetry.KindUpDownCounter, "level", "", "")

	rec := telemetry.NewRecorder(reg, testutil.TestLogger(), 16)
	rec.Start(noop.NewMeterProvider().Meter("test"))
	t.Cleanup(func() { rec.Drain(context.Background()) })

	ctx := context.Background()
	for _, v := range []float64{5, -2, 7, -10} {
		require.NoError(t, rec.Emit(ctx, telemetry.MetricSample{Name: "level", Value: v}))
	}
	require.NoError(t, rec.Flush(ctx))

	assert.InDelta(t, 0.0, level.Sum(), 1e-9)
	assert.Equal(t, uint64(4), level.Count())
	assert.Equal(t, int64(4), rec.Applied())
}

func TestRecorderSkipsInvalidSamples(t *testing.T) {
	t.Parallel()
	reg, _ := newRegistry(t)
	c := reg.GetOrCreate(telemetry.KindCounter, "c_total", "", "")

	rec := telemetry.NewRecorder(reg, testutil.TestLogger(), 16)
	rec.Start(noop.NewMeterProvider().Meter("test"))
	t.Cleanup(func() { rec.Drain(context.Background()) })

	ctx := context.Background()
	require.NoError(t, rec.Emit(ctx, telemetry.MetricSample{Name: "c_total", Value: 3}))
	require.NoError(t, rec.Emit(ctx, telemetry.MetricSample{Name: "c_total", Value: -1}))
	require.NoError(t, rec.Emit(ctx, telemetry.MetricSample{Name: "missing_total", Value: 1}))
	require.NoError(t, rec.Flush(ctx))

	assert.InDelta(t, 3.0, c.Sum(), 1e-9)
	assert.Equal(t, int64(1), rec.Applied())
}

func TestRecorderDrainAppliesBacklog(t *testing.T) {
	t.Parallel()
	reg, _ := newRegistry(t)
	c := reg.GetOrCreate(telemetry.KindCounter, "c_total", "", "")

	rec := telemetry.NewRecorder(reg, testutil.TestLogger(), 128)
	ctx := context.Background()
	for range 100 {
		require.NoError(t, rec.Emit(ctx, telemetry.MetricSample{Name: "c_total", Value: 1}))
	}

	// Start after the backlog is queued, then drain immediately.
	rec.Start(noop.NewMeterProvider().Meter("test"))
	drainCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rec.Drain(drainCtx)

	assert.InDelta(t, 100.0, c.Sum(), 1e-9)
	assert.ErrorIs(t, rec.Emit(ctx, telemetry.MetricSample{Name: "c_total", Value: 1}), telemetry.ErrRecorderClosed)
	assert.ErrorIs(t, rec.Flush(ctx), telemetry.ErrRecorderClosed)
}

func TestRecorderFlushHonorsContext(t *testing.T) {
	t.Parallel()
	reg, _ := newRegistry(t)

	// Not started: the barrier is queued but never acknowledged.
	rec := telemetry.NewRecorder(reg, testutil.TestLogger(), 4)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, rec.Flush(ctx), context.DeadlineExceeded)
}

func TestRecorderQueueGauges(t *testing.T) {
	t.Parallel()
	h := testutil.NewTelemetry(t, 1)
	ctx := context.Background()

	// Saturate a size-1 queue from many emits; some will be dropped depending
	// on worker speed, but every emit is either applied or dropped.
	const n = 200
	for i := range n {
		h.Count(ctx, telemetry.ProductsCreated, 1, telemetry.Labels{"i": strconv.Itoa(i % 3)})
	}
	h.Sync(t)

	inst, ok := h.Registry().Lookup("products_created_total")
	require.True(t, ok)
	assert.Equal(t, int64(n), int64(inst.Sum())+h.Recorder().Dropped())

	m, ok := h.FindMetric(t, "telemetry.queue.dropped_total")
	require.True(t, ok)
	assert.Equal(t, "telemetry.queue.dropped_total", m.Name)
	_, ok = h.FindMetric(t, "telemetry.queue.depth")
	assert.True(t, ok)
}
