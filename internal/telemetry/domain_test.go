package telemetry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashita-ai/elven/internal/telemetry"
)

func TestParseDomainMetric(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want telemetry.DomainMetric
	}{
		{"products_created", telemetry.ProductsCreated},
		{"products_updated_total", telemetry.ProductsUpdated},
		{"PRODUCTS_DELETED", telemetry.ProductsDeleted},
		{" orders_created ", telemetry.OrdersCreated},
		{"orders_updated", telemetry.OrdersUpdated},
		{"orders_status_changed_total", telemetry.OrdersStatusChanged},
		{"database_query_duration_seconds", telemetry.DatabaseQueryDuration},
		{"", telemetry.DomainUnknown},
		{"orders", telemetry.DomainUnknown},
		{"unknown", telemetry.DomainUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, telemetry.ParseDomainMetric(tt.in), "input %q", tt.in)
	}
}

func TestDomainMetricNames(t *testing.T) {
	t.Parallel()

	for _, m := range telemetry.DomainMetrics() {
		assert.NotEqual(t, "unknown", m.String())
		assert.NotEmpty(t, m.InstrumentName())
		assert.Equal(t, m, telemetry.ParseDomainMetric(m.String()))
		assert.Equal(t, m, telemetry.ParseDomainMetric(m.InstrumentName()))
	}
	assert.Equal(t, "unknown", telemetry.DomainMetric(99).String())
	assert.Empty(t, telemetry.DomainUnknown.InstrumentName())
}
