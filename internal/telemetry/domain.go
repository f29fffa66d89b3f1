package telemetry

import (
	"context"
	"strings"
)

// Process-level instrument names.
const (
	MetricHTTPRequests        = "http_requests_total"
	MetricHTTPErrors          = "http_errors_total"
	MetricAPIRequestDuration  = "api_request_duration_seconds"
	MetricActiveDBConnections = "active_database_connections"
	MetricMemoryUsage         = "memory_usage_bytes"
)

// DomainMetric is the closed set of business metrics operations may emit.
type DomainMetric int

const (
	DomainUnknown DomainMetric = iota
	ProductsCreated
	ProductsUpdated
	ProductsDeleted
	OrdersCreated
	OrdersUpdated
	OrdersStatusChanged
	DatabaseQueryDuration
)

type instrumentDef struct {
	key         string
	name        string
	description string
	unit        string
	kind        Kind
}

var domainDefs = [...]instrumentDef{
	DomainUnknown:         {key: "unknown"},
	ProductsCreated:       {"products_created", "products_created_total", "Total number of products created", "", KindCounter},
	ProductsUpdated:       {"products_updated", "products_updated_total", "Total number of products updated", "", KindCounter},
	ProductsDeleted:       {"products_deleted", "products_deleted_total", "Total number of products deleted", "", KindCounter},
	OrdersCreated:         {"orders_created", "orders_created_total", "Total number of orders created", "", KindCounter},
	OrdersUpdated:         {"orders_updated", "orders_updated_total", "Total number of orders updated", "", KindCounter},
	OrdersStatusChanged:   {"orders_status_changed", "orders_status_changed_total", "Total number of order status changes", "", KindCounter},
	DatabaseQueryDuration: {"database_query_duration", "database_query_duration_seconds", "Duration of database queries in seconds", "s", KindHistogram},
}

var processDefs = []instrumentDef{
	{name: MetricHTTPRequests, description: "Total number of HTTP requests", kind: KindCounter},
	{name: MetricHTTPErrors, description: "Total number of HTTP errors", kind: KindCounter},
	{name: MetricAPIRequestDuration, description: "Duration of API requests in seconds", unit: "s", kind: KindHistogram},
	{name: MetricActiveDBConnections, description: "Number of active database connections", kind: KindUpDownCounter},
	{name: MetricMemoryUsage, description: "Memory usage in bytes", unit: "By", kind: KindUpDownCounter},
}

// DomainMetrics lists every known domain metric.
func DomainMetrics() []DomainMetric {
	return []DomainMetric{
		ProductsCreated, ProductsUpdated, ProductsDeleted,
		OrdersCreated, OrdersUpdated, OrdersStatusChanged,
		DatabaseQueryDuration,
	}
}

func (m DomainMetric) valid() bool {
	return m > DomainUnknown && int(m) < len(domainDefs)
}

func (m DomainMetric) String() string {
	if !m.valid() {
		return domainDefs[DomainUnknown].key
	}
	return domainDefs[m].key
}

// InstrumentName is the exported metric name, e.g. "orders_created_total".
func (m DomainMetric) InstrumentName() string {
	if !m.valid() {
		return ""
	}
	return domainDefs[m].name
}

// ParseDomainMetric maps a metric name to its kind. Both the short form
// ("orders_created") and the instrument name ("orders_created_total") are
// accepted. Anything else yields DomainUnknown.
func ParseDomainMetric(s string) DomainMetric {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, m := range DomainMetrics() {
		d := domainDefs[m]
		if s == d.key || s == d.name {
			return m
		}
	}
	return DomainUnknown
}

func registerCatalog(r *Registry) {
	for _, d := range processDefs {
		r.GetOrCreate(d.kind, d.name, d.description, d.unit)
	}
	for _, m := range DomainMetrics() {
		d := domainDefs[m]
		r.GetOrCreate(d.kind, d.name, d.description, d.unit)
	}
}

// Count emits a domain metric sample.
func (t *Telemetry) Count(ctx context.Context, m DomainMetric, value float64, labels Labels) {
	if !m.valid() {
		t.logger.Warn("telemetry: unknown domain metric dropped", "metric", int(m))
		return
	}
	t.emit(ctx, domainDefs[m].name, value, labels)
}

// CaptureBusinessMetric records a domain metric identified by name. Unknown
// names are logged and dropped.
func (t *Telemetry) CaptureBusinessMetric(ctx context.Context, name string, value float64, labels Labels) {
	m := ParseDomainMetric(name)
	if m == DomainUnknown {
		t.logger.Warn("telemetry: unknown business metric", "metric", name)
		return
	}
	t.Count(ctx, m, value, labels)
}
