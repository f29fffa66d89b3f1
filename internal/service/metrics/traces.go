package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TraceQueryLimit is the number of traces requested from the backend.
const TraceQueryLimit = 20

// TraceClient proxies trace listings from a Jaeger query service.
type TraceClient struct {
	baseURL    string
	service    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTraceClient creates a client for the Jaeger query API at baseURL that
// lists traces of service. Requests rely on the default transport timeouts
// and are themselves traced.
func NewTraceClient(baseURL, service string, logger *slog.Logger) *TraceClient {
	return &TraceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		service: service,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

type jaegerResponse struct {
	Data json.RawMessage `json:"data"`
}

var emptyTraces = json.RawMessage(`[]`)

// Traces returns the backend's data array verbatim, or an empty array when
// the backend is unreachable or answers with anything but a JSON array.
func (c *TraceClient) Traces(ctx context.Context) json.RawMessage {
	data, err := c.fetch(ctx)
	if err != nil {
		c.logger.Error("metrics: fetch traces", "error", err)
		return emptyTraces
	}
	return data
}

func (c *TraceClient) fetch(ctx context.Context) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("service", c.service)
	q.Set("limit", strconv.Itoa(TraceQueryLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/traces?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("jaeger: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jaeger: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("jaeger: status %d: %s", resp.StatusCode, string(body))
	}

	var result jaegerResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("jaeger: decode response: %w", err)
	}
	data := strings.TrimSpace(string(result.Data))
	if !strings.HasPrefix(data, "[") {
		return nil, fmt.Errorf("jaeger: data is not an array")
	}
	return result.Data, nil
}
