package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxPayloadBytes caps how much of a response body is copied onto
// the request span.
const DefaultMaxPayloadBytes = 64 << 10

// PayloadEncoder turns a captured response body into the span attribute value.
type PayloadEncoder func(body []byte, contentType string) (string, error)

// JSONPayload keeps JSON bodies as is and wraps anything else as
// {"content": "<body>"}.
func JSONPayload(body []byte, _ string) (string, error) {
	if len(body) == 0 {
		return "", nil
	}
	if json.Valid(body) {
		return string(body), nil
	}
	b, err := json.Marshal(struct {
		Content string `json:"content"`
	}{Content: string(body)})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type interceptorConfig struct {
	encoder    PayloadEncoder
	maxPayload int
	spanAttrs  func(*http.Request) []attribute.KeyValue
}

// InterceptorOption configures Interceptor.
type InterceptorOption func(*interceptorConfig)

// WithPayloadEncoder replaces JSONPayload.
func WithPayloadEncoder(enc PayloadEncoder) InterceptorOption {
	return func(c *interceptorConfig) { c.encoder = enc }
}

// WithMaxPayloadBytes sets the capture cap. Zero disables payload capture.
func WithMaxPayloadBytes(n int) InterceptorOption {
	return func(c *interceptorConfig) { c.maxPayload = n }
}

// WithRequestAttributes adds per-request attributes to the server span.
func WithRequestAttributes(fn func(*http.Request) []attribute.KeyValue) InterceptorOption {
	return func(c *interceptorConfig) { c.spanAttrs = fn }
}

// Interceptor returns middleware that opens a server span per request,
// counts the request before dispatch, and after the handler returns copies
// the response payload, size and status onto the span and records duration
// and error metrics. None of that work can change what the client receives:
// writes pass through untouched and capture failures are only logged.
func (t *Telemetry) Interceptor(opts ...InterceptorOption) func(http.Handler) http.Handler {
	cfg := interceptorConfig{
		encoder:    JSONPayload,
		maxPayload: DefaultMaxPayloadBytes,
	}
	for _, o := range opts {
		o(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			path := r.URL.Path
			attrs := []attribute.KeyValue{
				attribute.String("http.method", r.Method),
				attribute.String("http.url", path),
			}
			if cfg.spanAttrs != nil {
				attrs = append(attrs, cfg.spanAttrs(r)...)
			}
			ctx, span := t.tracer.Start(ctx, r.Method+" "+path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			t.emit(ctx, MetricHTTPRequests, 1, Labels{"method": r.Method, "path": path})

			start := time.Now()
			cw := &captureWriter{ResponseWriter: w, limit: cfg.maxPayload}

			defer func() {
				if p := recover(); p != nil {
					if !cw.wroteHeader {
						cw.status = http.StatusInternalServerError
					}
					t.finishRequest(ctx, span, &cfg, r.Method, path, cw, time.Since(start))
					panic(p)
				}
			}()

			next.ServeHTTP(cw, r.WithContext(ctx))
			t.finishRequest(ctx, span, &cfg, r.Method, path, cw, time.Since(start))
		})
	}
}

func (t *Telemetry) finishRequest(ctx context.Context, span trace.Span, cfg *interceptorConfig, method, path string, cw *captureWriter, elapsed time.Duration) {
	defer func() {
		if p := recover(); p != nil {
			t.logger.Error("telemetry: request instrumentation failed", "panic", fmt.Sprint(p), "path", path)
		}
	}()

	if err := capturePayload(span, cfg, cw); err != nil {
		t.logger.Error("telemetry: capture response payload", "error", err, "method", method, "path", path)
	}

	status := cw.Status()
	span.SetAttributes(
		attribute.Int("http.status_code", status),
		attribute.Int64("http.response.size_bytes", cw.size),
	)
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}

	labels := Labels{
		"method":      method,
		"path":        path,
		"status_code": strconv.Itoa(status),
	}
	t.emit(ctx, MetricAPIRequestDuration, elapsed.Seconds(), labels)
	if status >= http.StatusBadRequest {
		t.emit(ctx, MetricHTTPErrors, 1, labels)
	}
}

func capturePayload(span trace.Span, cfg *interceptorConfig, cw *captureWriter) (err error) {
	if cfg.maxPayload <= 0 || cw.body.Len() == 0 {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("telemetry: payload encoder panicked: %v", p)
		}
	}()

	payload, err := cfg.encoder(cw.body.Bytes(), cw.Header().Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("telemetry: encode payload: %w", err)
	}
	span.SetAttributes(attribute.String("http.response.payload", payload))
	if cw.truncated {
		span.SetAttributes(attribute.Bool("http.response.payload_truncated", true))
	}
	return nil
}

// captureWriter forwards every write and keeps a bounded copy of the body.
type captureWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	size        int64
	limit       int
	body        bytes.Buffer
	truncated   bool
}

func (w *captureWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.status = http.StatusOK
		w.wroteHeader = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.size += int64(n)
	if room := w.limit - w.body.Len(); room > 0 {
		if n > room {
			w.body.Write(b[:room])
			w.truncated = true
		} else {
			w.body.Write(b[:n])
		}
	} else if n > 0 && w.limit > 0 {
		w.truncated = true
	}
	return n, err
}

// Status is the status code sent, or 200 when the handler wrote nothing.
func (w *captureWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *captureWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *captureWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
