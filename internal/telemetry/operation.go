package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Operation describes one instrumented business operation.
type Operation struct {
	Name       string // span name and "operation" attribute, e.g. "create_order"
	Repository string // "repository" attribute
	Query      string // "operation" label on the query duration histogram, e.g. "find_by_id"
	Entity     string // "entity" label, e.g. "orders"
	Attributes []attribute.KeyValue
}

type domainCount struct {
	metric DomainMetric
	value  float64
	labels Labels
}

// Scope is handed to an instrumented body. Attributes go straight to the
// span; domain counts are held back and emitted only if the body succeeds.
type Scope struct {
	span    trace.Span
	pending []domainCount
}

// SetAttributes attaches attrs to the operation span.
func (s *Scope) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// Count schedules a domain metric increment of 1.
func (s *Scope) Count(m DomainMetric, labels Labels) {
	s.pending = append(s.pending, domainCount{metric: m, value: 1, labels: labels})
}

// Span returns the operation span.
func (s *Scope) Span() trace.Span { return s.span }

// Observe runs body as op: a span via WithSpan, a query duration sample
// labeled {operation, entity} on every non-panicking path, and the body's
// scheduled domain counts on success.
func Observe[T any](ctx context.Context, t *Telemetry, op Operation, body func(context.Context, *Scope) (T, error)) (T, error) {
	attrs := make([]attribute.KeyValue, 0, len(op.Attributes)+2)
	attrs = append(attrs, attribute.String("operation", op.Name))
	if op.Repository != "" {
		attrs = append(attrs, attribute.String("repository", op.Repository))
	}
	attrs = append(attrs, op.Attributes...)

	return WithSpan(ctx, t.tracer, op.Name, attrs, func(ctx context.Context, span trace.Span) (T, error) {
		scope := &Scope{span: span}

		start := time.Now()
		result, err := body(ctx, scope)
		t.Count(ctx, DatabaseQueryDuration, time.Since(start).Seconds(), Labels{
			"operation": op.Query,
			"entity":    op.Entity,
		})

		if err != nil {
			return result, err
		}
		for _, c := range scope.pending {
			t.Count(ctx, c.metric, c.value, c.labels)
		}
		return result, nil
	})
}
