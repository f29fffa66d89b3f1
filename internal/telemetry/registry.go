package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Kind is the instrument variant held by the registry.
type Kind int

const (
	KindCounter Kind = iota
	KindHistogram
	KindUpDownCounter
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindHistogram:
		return "histogram"
	case KindUpDownCounter:
		return "updown_counter"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrInvalidValue is returned when a sample would break an instrument's
// contract: a negative counter increment, a negative histogram sample, or NaN.
var ErrInvalidValue = errors.New("telemetry: invalid sample value")

// Labels is a metric label set. Order is irrelevant.
type Labels map[string]string

func (l Labels) attributes() []attribute.KeyValue {
	if len(l) == 0 {
		return nil
	}
	kvs := make([]attribute.KeyValue, 0, len(l))
	for k, v := range l {
		kvs = append(kvs, attribute.String(k, v))
	}
	return kvs
}

// Instrument is a named metric recorder. The local totals mirror what was
// handed to the OTEL instrument so callers can read values back without a
// collector.
type Instrument struct {
	name        string
	description string
	unit        string
	kind        Kind

	counter   metric.Float64Counter
	histogram metric.Float64Histogram
	upDown    metric.Float64UpDownCounter

	sumBits atomic.Uint64
	count   atomic.Uint64
}

func (i *Instrument) Name() string { return i.name }
func (i *Instrument) Description() string { return i.description }
func (i *Instrument) Unit() string { return i.unit }
func (i *Instrument) Kind() Kind { return i.kind }

// Sum returns the running total of accepted values. For a counter this is its
// current value and never decreases.
func (i *Instrument) Sum() float64 { return math.Float64frombits(i.sumBits.Load()) }

// Count returns the number of accepted samples.
func (i *Instrument) Count() uint64 { return i.count.Load() }

// Record applies value according to the instrument kind.
func (i *Instrument) Record(ctx context.Context, value float64, labels Labels) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s got %v", ErrInvalidValue, i.name, value)
	}
	opt := metric.WithAttributes(labels.attributes()...)
	switch i.kind {
	case KindCounter:
		if value < 0 {
			return fmt.Errorf("%w: counter %s cannot decrease by %v", ErrInvalidValue, i.name, value)
		}
		i.counter.Add(ctx, value, opt)
	case KindHistogram:
		if value < 0 {
			return fmt.Errorf("%w: histogram %s got negative sample %v", ErrInvalidValue, i.name, value)
		}
		i.histogram.Record(ctx, value, opt)
	case KindUpDownCounter:
		i.upDown.Add(ctx, value, opt)
	}
	i.addSum(value)
	i.count.Add(1)
	return nil
}

func (i *Instrument) addSum(v float64) {
	for {
		old := i.sumBits.Load()
		next := math.Float64bits(math.Float64frombits(old) + v)
		if i.sumBits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Registry is a lazily populated table of instruments keyed by name.
//
// The name is the only identity: a second GetOrCreate for an existing name
// returns the first instrument even if kind, description or unit differ.
type Registry struct {
	meter       metric.Meter
	logger      *slog.Logger
	instruments sync.Map // name -> *Instrument
	fallback    metric.Meter
}

// NewRegistry creates a registry that builds instruments from meter.
func NewRegistry(meter metric.Meter, logger *slog.Logger) *Registry {
	return &Registry{
		meter:    meter,
		logger:   logger,
		fallback: noop.NewMeterProvider().Meter("elven/noop"),
	}
}

// GetOrCreate returns the instrument registered under name, creating it on
// first use. Safe for concurrent use.
func (r *Registry) GetOrCreate(kind Kind, name, description, unit string) *Instrument {
	if v, ok := r.instruments.Load(name); ok {
		inst := v.(*Instrument)
		if inst.kind != kind {
			r.logger.Debug("telemetry: instrument kind mismatch, returning existing",
				"name", name, "existing", inst.kind.String(), "requested", kind.String())
		}
		return inst
	}

	inst := r.build(kind, name, description, unit)
	actual, _ := r.instruments.LoadOrStore(name, inst)
	return actual.(*Instrument)
}

// Lookup returns the instrument registered under name, if any.
func (r *Registry) Lookup(name string) (*Instrument, bool) {
	v, ok := r.instruments.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Instrument), true
}

// Names returns the registered instrument names in sorted order.
func (r *Registry) Names() []string {
	var names []string
	r.instruments.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	sort.Strings(names)
	return names
}

func (r *Registry) build(kind Kind, name, description, unit string) *Instrument {
	inst := &Instrument{name: name, description: description, unit: unit, kind: kind}

	var opts []metric.Float64CounterOption
	var hOpts []metric.Float64HistogramOption
	var uOpts []metric.Float64UpDownCounterOption
	if description != "" {
		opts = append(opts, metric.WithDescription(description))
		hOpts = append(hOpts, metric.WithDescription(description))
		uOpts = append(uOpts, metric.WithDescription(description))
	}
	if unit != "" {
		opts = append(opts, metric.WithUnit(unit))
		hOpts = append(hOpts, metric.WithUnit(unit))
		uOpts = append(uOpts, metric.WithUnit(unit))
	}

	var err error
	switch kind {
	case KindHistogram:
		inst.histogram, err = r.meter.Float64Histogram(name, hOpts...)
		if err != nil || inst.histogram == nil {
			inst.histogram, _ = r.fallback.Float64Histogram(name)
		}
	case KindUpDownCounter:
		inst.upDown, err = r.meter.Float64UpDownCounter(name, uOpts...)
		if err != nil || inst.upDown == nil {
			inst.upDown, _ = r.fallback.Float64UpDownCounter(name)
		}
	default:
		inst.kind = KindCounter
		inst.counter, err = r.meter.Float64Counter(name, opts...)
		if err != nil || inst.counter == nil {
			inst.counter, _ = r.fallback.Float64Counter(name)
		}
	}
	if err != nil {
		r.logger.Warn("telemetry: instrument creation degraded to no-op", "name", name, "error", err)
	}
	return inst
}
