package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WithSpan runs body inside a new span named name. The span carries attrs
// from the start, is marked ok when body returns a nil error and error
// otherwise, and is ended exactly once on every path. A panic in body marks
// the span error, ends it, and is re-raised unchanged. Errors are returned
// as is.
func WithSpan[T any](ctx context.Context, tracer trace.Tracer, name string, attrs []attribute.KeyValue, body func(context.Context, trace.Span) (T, error)) (result T, err error) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))

	defer func() {
		if p := recover(); p != nil {
			perr := fmt.Errorf("panic: %v", p)
			span.RecordError(perr)
			span.SetStatus(codes.Error, perr.Error())
			span.End()
			panic(p)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	return body(ctx, span)
}

// CaptureError marks the span in ctx as failed with err. A nil err or a
// context without a recording span is ignored.
func CaptureError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.Bool("error", true),
		attribute.String("error.message", err.Error()),
		attribute.String("error.type", errorType(err)),
	)
	span.RecordError(err, trace.WithStackTrace(true))
	span.SetStatus(codes.Error, err.Error())
}

func errorType(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}
