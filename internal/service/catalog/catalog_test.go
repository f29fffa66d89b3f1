package catalog_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ashita-ai/elven/internal/model"
	"github.com/ashita-ai/elven/internal/service/catalog"
	"github.com/ashita-ai/elven/internal/storage"
	"github.com/ashita-ai/elven/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

// memStore is an in-memory ProductStore and OrderStore. err, when set, is
// returned by every call.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]model.Product
	orders   map[int64]model.Order
	err      error
}

func newMemStore() *memStore {
	return &memStore{products: map[int64]model.Product{}, orders: map[int64]model.Order{}}
}

func (m *memStore) ListProducts(context.Context) ([]model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) GetProduct(_ context.Context, id int64) (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.Product{}, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return model.Product{}, fmt.Errorf("storage: product %d: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (m *memStore) CreateProduct(_ context.Context, in model.ProductInput) (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.Product{}, m.err
	}
	m.nextID++
	now := time.Now()
	p := model.Product{ID: m.nextID, Name: *in.Name, Price: *in.Price, Category: *in.Category, CreatedAt: now, UpdatedAt: now}
	m.products[p.ID] = p
	return p, nil
}

func (m *memStore) UpdateProduct(_ context.Context, id int64, in model.ProductInput) (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.Product{}, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return model.Product{}, storage.ErrNotFound
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	p.UpdatedAt = time.Now()
	m.products[id] = p
	return p, nil
}

func (m *memStore) DeleteProduct(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.products[id]
	delete(m.products, id)
	return ok, nil
}

func (m *memStore) ListOrders(context.Context) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *memStore) GetOrder(_ context.Context, id int64) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.Order{}, m.err
	}
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, storage.ErrNotFound
	}
	return o, nil
}

func (m *memStore) CreateOrder(_ context.Context, in model.OrderInput) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.Order{}, m.err
	}
	m.nextID++
	status := model.OrderPending
	if in.Status != nil {
		status = *in.Status
	}
	now := time.Now()
	o := model.Order{
		ID: m.nextID, CustomerName: *in.CustomerName, CustomerEmail: *in.CustomerEmail,
		TotalAmount: *in.TotalAmount, Status: status, CreatedAt: now, UpdatedAt: now,
	}
	m.orders[o.ID] = o
	return o, nil
}

func (m *memStore) UpdateOrder(_ context.Context, id int64, in model.OrderInput) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.Order{}, m.err
	}
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, storage.ErrNotFound
	}
	if in.CustomerName != nil {
		o.CustomerName = *in.CustomerName
	}
	if in.TotalAmount != nil {
		o.TotalAmount = *in.TotalAmount
	}
	o.UpdatedAt = time.Now()
	m.orders[id] = o
	return o, nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, id int64, status model.OrderStatus, tracking *string) (model.OrderStatus, model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", model.Order{}, m.err
	}
	o, ok := m.orders[id]
	if !ok {
		return "", model.Order{}, storage.ErrNotFound
	}
	prev := o.Status
	o.Status = status
	if tracking != nil {
		o.TrackingNumber = tracking
	}
	m.orders[id] = o
	return prev, o, nil
}

func (m *memStore) DeleteOrder(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.orders[id]
	delete(m.orders, id)
	return ok, nil
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}
	return m
}

func label(t *testing.T, set attribute.Set, key string) string {
	t.Helper()
	v, ok := set.Value(attribute.Key(key))
	require.Truef(t, ok, "label %q missing", key)
	return v.AsString()
}

func TestProductsCreateCountsAndAttributes(t *testing.T) {
	t.Parallel()
	h := testutil.NewTelemetry(t, 0)
	products := catalog.NewProducts(newMemStore(), h.Telemetry)

	p, err := products.Create(context.Background(), model.ProductInput{
		Name: ptr("Dune"), Price: ptr(49.9), Category: ptr("Sci-Fi"),
	})
	require.NoError(t, err)

	span := h.EndedSpan(t, "create_product")
	attrs := attrMap(span.Attributes())
	assert.Equal(t, "ProductRepository", attrs["repository"].AsString())
	assert.Equal(t, "Dune", attrs["product.name"].AsString())
	assert.InDelta(t, 49.9, attrs["product.price"].AsFloat64(), 1e-9)
	assert.Equal(t, p.ID, attrs["product.id"].AsInt64())
	assert.NotEmpty(t, attrs["product.created_at"].AsString())
	assert.Equal(t, codes.Ok, span.Status().Code)

	created := h.SumPoints(t, "products_created_total")
	require.Len(t, created, 1)
	assert.Equal(t, "Dune", label(t, created[0].Attributes, "product_name"))
	assert.Equal(t, "Sci-Fi", label(t, created[0].Attributes, "category"))

	durations := h.HistogramPoints(t, "database_query_duration_seconds")
	require.Len(t, durations, 1)
	assert.Equal(t, "create", label(t, durations[0].Attributes, "operation"))
	assert.Equal(t, "products", label(t, durations[0].Attributes, "entity"))
}

func TestProductsCreateRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	h := testutil.NewTelemetry(t, 0)
	products := catalog.NewProducts(newMemStore(), h.Telemetry)

	_, err := products.Create(context.Background(), model.ProductInput{Name: ptr("x")})
	require.ErrorIs(t, err, model.ErrValidation)
	assert.Empty(t, h.Spans.Started(), "validation happens before the operation starts")
}

func TestProductsGetNotFoundIsNotAnError(t *testing.T) {
	t.Parallel()
	h := testutil.NewTelemetry(t, 0)
	products := catalog.NewProducts(newMemStore(), h.Telemetry)

	_, found, err := products.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, found)

	span := h.EndedSpan(t, "get_product_by_id")
	attrs := attrMap(span.Attributes())
	assert.False(t, attrs["product.found"].AsBool())
	assert.Equal(t, int64(7), attrs["product.id"].AsInt64())
	assert.Equal(t, codes.Ok, span.Status().Code)
}

func TestProductsUpdateAndDelete(t *testing.T) {
	t.Parallel()
	h := testutil.NewTelemetry(t, 0)
	store := newMemStore()
	products := catalog.NewProducts(store, h.Telemetry)
	ctx := context.Background()

	p, err := products.Create(ctx, model.ProductInput{Name: ptr("A"), Price: ptr(1.0), Category: ptr("c")})
	require.NoError(t, err)

	_, found, err := products.Update(ctx, p.ID, model.ProductInput{Stock: ptr(3)})
	require.NoError(t, err)
	assert.True(t, found)

	_, found, err = products.Update(ctx, 999, model.ProductInput{Stock: ptr(3)})
	require.NoError(t, err)
	assert.False(t, found)

	deleted, err := products.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = products.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	updated := h.SumPoints(t, "products_updated_total")
	require.Len(t, updated, 1)
	assert.InDelta(t, 1.0, updated[0].Value, 1e-9, "a missing product is not counted")

	removed := h.SumPoints(t, "products_deleted_total")
	require.Len(t, removed, 1)
	assert.InDelta(t, 1.0, removed[0].Value, 1e-9)
	assert.Equal(t, fmt.Sprint(p.ID), label(t, removed[0].Attributes, "product_id"))
}

func TestProductsStoreFailurePropagates(t *testing.T) {
	t.Parallel()
	h := testutil.NewTelemetry(t, 0)
	store := newMemStore()
	store.err = errors.New("connection reset")
	products := catalog.NewProducts(store, h.Telemetry)

	_, err := products.List(context.Background())
	require.ErrorIs(t, err, store.err)

	span := h.EndedSpan(t, "get_all_products")
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "connection reset", span.Status().Description)
	require.Len(t, h.HistogramPoints(t, "database_query_duration_seconds"), 1)
}

func TestOrdersCreateAndStatusChange(t *testing.T) {
	t.Parallel()
	h := testutil.NewTelemetry(t, 0)
	orders := catalog.NewOrders(newMemStore(), h.Telemetry)
	ctx := context.Background()

	o, err := orders.Create(ctx, model.OrderInput{
		CustomerName: ptr("Ana"), CustomerEmail: ptr("ana@example.com"), TotalAmount: ptr(120.5),
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, o.Status)

	created := h.SumPoints(t, "orders_created_total")
	require.Len(t, created, 1)
	assert.Equal(t, "Ana", label(t, created[0].Attributes, "customer_name"))
	assert.Equal(t, "pending", label(t, created[0].Attributes, "status"))
	assert.Equal(t, "120.5", label(t, created[0].Attributes, "total_amount"))

	updated, found, err := orders.UpdateStatus(ctx, o.ID, model.OrderShipped, ptr("BR1"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.OrderShipped, updated.Status)

	changes := h.SumPoints(t, "orders_status_changed_total")
	require.Len(t, changes, 1)
	assert.Equal(t, "pending", label(t, changes[0].Attributes, "old_status"))
	assert.Equal(t, "shipped", label(t, changes[0].Attributes, "new_status"))
	assert.Equal(t, fmt.Sprint(o.ID), label(t, changes[0].Attributes, "order_id"))

	span := h.EndedSpan(t, "update_order_status")
	attrs := attrMap(span.Attributes())
	assert.Equal(t, "shipped", attrs["order.new_status"].AsString())
	assert.Equal(t, "pending", attrs["order.old_status"].AsString())
}

func TestOrdersUpdateStatusRejectsUnknownStatus(t *testing.T) {
	t.Parallel()
	h := testutil.NewTelemetry(t, 0)
	orders := catalog.NewOrders(newMemStore(), h.Telemetry)

	_, _, err := orders.UpdateStatus(context.Background(), 1, model.OrderStatus("lost"), nil)
	require.ErrorIs(t, err, model.ErrValidation)
	assert.Empty(t, h.Spans.Started())
}

func TestOrdersMissingRows(t *testing.T) {
	t.Parallel()
	h := testutil.NewTelemetry(t, 0)
	orders := catalog.NewOrders(newMemStore(), h.Telemetry)
	ctx := context.Background()

	_, found, err := orders.Get(ctx, 5)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = orders.UpdateStatus(ctx, 5, model.OrderDelivered, nil)
	require.NoError(t, err)
	assert.False(t, found)

	deleted, err := orders.Delete(ctx, 5)
	require.NoError(t, err)
	assert.False(t, deleted)

	assert.Empty(t, h.SumPoints(t, "orders_status_changed_total"))
	for _, s := range h.Spans.Ended() {
		assert.Equal(t, codes.Ok, s.Status().Code, s.Name())
	}
}

func TestOperationsEndEverySpan(t *testing.T) {
	t.Parallel()
	h := testutil.NewTelemetry(t, 0)
	store := newMemStore()
	products := catalog.NewProducts(store, h.Telemetry)
	orders := catalog.NewOrders(store, h.Telemetry)
	ctx := context.Background()

	_, _ = products.List(ctx)
	_, _, _ = products.Get(ctx, 1)
	_, _ = orders.List(ctx)
	store.err = errors.New("down")
	_, _ = products.Delete(ctx, 1)
	_, _, _ = orders.Update(ctx, 1, model.OrderInput{})

	assert.Len(t, h.Spans.Started(), 5)
	assert.Len(t, h.Spans.Ended(), 5)
}
