// Package admin provides the back-office order workflows: paginated listing,
// search and status changes.
package admin

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ashita-ai/elven/internal/model"
	"github.com/ashita-ai/elven/internal/service/catalog"
	"github.com/ashita-ai/elven/internal/telemetry"
)

// Page size bounds for ListOrders.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Store is the persistence surface for admin queries.
type Store interface {
	ListOrdersPage(ctx context.Context, f model.OrderFilter) ([]model.Order, int, error)
	SearchOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error)
}

// Service implements the admin use cases. Status changes go through the
// order use cases so they are counted like any other status change.
type Service struct {
	store  Store
	orders *catalog.Orders
	tel    *telemetry.Telemetry
}

// New creates the admin service.
func New(store Store, orders *catalog.Orders, tel *telemetry.Telemetry) *Service {
	return &Service{store: store, orders: orders, tel: tel}
}

// ListOrders returns one page of orders, optionally restricted to status.
// page is 1-based; out-of-range page and limit values are clamped.
func (s *Service) ListOrders(ctx context.Context, page, limit int, status *model.OrderStatus) (model.OrderPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)

	attrs := []attribute.KeyValue{attribute.Int("page", page), attribute.Int("limit", limit)}
	if status != nil {
		attrs = append(attrs, attribute.String("order.status", string(*status)))
	}
	op := telemetry.Operation{
		Name: "admin_list_orders", Repository: "AdminRepository",
		Query: "find_page", Entity: "orders", Attributes: attrs,
	}
	return telemetry.Observe(ctx, s.tel, op, func(ctx context.Context, sc *telemetry.Scope) (model.OrderPage, error) {
		orders, total, err := s.store.ListOrdersPage(ctx, model.OrderFilter{
			Status: status,
			Limit:  limit,
			Offset: (page - 1) * limit,
		})
		if err != nil {
			return model.OrderPage{}, err
		}
		sc.SetAttributes(attribute.Int("orders.count", len(orders)), attribute.Int("orders.total", total))
		return model.OrderPage{Orders: orders, Pagination: model.NewPagination(page, limit, total)}, nil
	})
}

// SearchOrders returns all orders matching f. Limit and Offset are ignored.
func (s *Service) SearchOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return nil, fmt.Errorf("%w: endDate is before startDate", model.ErrValidation)
	}
	attrs := []attribute.KeyValue{attribute.String("search.query", f.Query)}
	if f.Status != nil {
		attrs = append(attrs, attribute.String("order.status", string(*f.Status)))
	}
	if f.StartDate != nil {
		attrs = append(attrs, attribute.String("search.start_date", f.StartDate.Format(time.RFC3339)))
	}
	if f.EndDate != nil {
		attrs = append(attrs, attribute.String("search.end_date", f.EndDate.Format(time.RFC3339)))
	}
	op := telemetry.Operation{
		Name: "admin_search_orders", Repository: "AdminRepository",
		Query: "search", Entity: "orders", Attributes: attrs,
	}
	return telemetry.Observe(ctx, s.tel, op, func(ctx context.Context, sc *telemetry.Scope) ([]model.Order, error) {
		orders, err := s.store.SearchOrders(ctx, model.OrderFilter{
			Query: f.Query, Status: f.Status, StartDate: f.StartDate, EndDate: f.EndDate,
		})
		if err != nil {
			return nil, err
		}
		sc.SetAttributes(attribute.Int("orders.count", len(orders)))
		return orders, nil
	})
}

// GetOrder returns a single order. found is false when it does not exist.
func (s *Service) GetOrder(ctx context.Context, id int64) (model.Order, bool, error) {
	return s.orders.Get(ctx, id)
}

// UpdateOrderStatus changes an order's status. found is false when the
// order does not exist.
func (s *Service) UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus, tracking *string) (model.Order, bool, error) {
	return s.orders.UpdateStatus(ctx, id, status, tracking)
}
