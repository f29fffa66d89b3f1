package catalog

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ashita-ai/elven/internal/model"
	"github.com/ashita-ai/elven/internal/telemetry"
)

const (
	orderRepository = "OrderRepository"
	orderEntity     = "orders"
)

// Orders implements the order use cases.
type Orders struct {
	store OrderStore
	tel   *telemetry.Telemetry
}

// NewOrders creates the order use cases.
func NewOrders(store OrderStore, tel *telemetry.Telemetry) *Orders {
	return &Orders{store: store, tel: tel}
}

func orderOp(name, query string, attrs ...attribute.KeyValue) telemetry.Operation {
	return telemetry.Operation{
		Name:       name,
		Repository: orderRepository,
		Query:      query,
		Entity:     orderEntity,
		Attributes: attrs,
	}
}

func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// orderLabels are the business labels shared by created and updated counts.
func orderLabels(o model.Order) telemetry.Labels {
	return telemetry.Labels{
		"customer_name": o.CustomerName,
		"status":        string(o.Status),
		"total_amount":  amount(o.TotalAmount),
	}
}

// List returns all orders.
func (o *Orders) List(ctx context.Context) ([]model.Order, error) {
	return telemetry.Observe(ctx, o.tel, orderOp("get_all_orders", "find_all"),
		func(ctx context.Context, s *telemetry.Scope) ([]model.Order, error) {
			orders, err := o.store.ListOrders(ctx)
			if err != nil {
				return nil, err
			}
			s.SetAttributes(attribute.Int("orders.count", len(orders)))
			return orders, nil
		})
}

// Get returns the order with id. found is false when it does not exist.
func (o *Orders) Get(ctx context.Context, id int64) (order model.Order, found bool, err error) {
	res, err := telemetry.Observe(ctx, o.tel, orderOp("get_order_by_id", "find_by_id", attribute.Int64("order.id", id)),
		func(ctx context.Context, s *telemetry.Scope) (lookup[model.Order], error) {
			order, err := o.store.GetOrder(ctx, id)
			if notFound(err) {
				s.SetAttributes(attribute.Bool("order.found", false))
				return lookup[model.Order]{}, nil
			}
			if err != nil {
				return lookup[model.Order]{}, err
			}
			s.SetAttributes(
				attribute.Bool("order.found", true),
				attribute.String("order.customer_name", order.CustomerName),
				attribute.String("order.status", string(order.Status)),
				attribute.Float64("order.total_amount", order.TotalAmount),
			)
			return lookup[model.Order]{value: order, found: true}, nil
		})
	return res.value, res.found, err
}

// Create validates and stores a new order.
func (o *Orders) Create(ctx context.Context, in model.OrderInput) (model.Order, error) {
	if err := in.ValidateForCreate(); err != nil {
		return model.Order{}, err
	}
	status := model.OrderPending
	if in.Status != nil {
		status = *in.Status
	}
	op := orderOp("create_order", "create",
		attribute.String("order.customer_name", *in.CustomerName),
		attribute.String("order.customer_email", *in.CustomerEmail),
		attribute.Float64("order.total_amount", *in.TotalAmount),
		attribute.String("order.status", string(status)),
	)
	return telemetry.Observe(ctx, o.tel, op,
		func(ctx context.Context, s *telemetry.Scope) (model.Order, error) {
			order, err := o.store.CreateOrder(ctx, in)
			if err != nil {
				return model.Order{}, err
			}
			s.Count(telemetry.OrdersCreated, orderLabels(order))
			s.SetAttributes(
				attribute.Int64("order.id", order.ID),
				attribute.String("order.created_at", order.CreatedAt.Format(time.RFC3339Nano)),
			)
			return order, nil
		})
}

// Update applies the set fields of in. found is false when the order does
// not exist.
func (o *Orders) Update(ctx context.Context, id int64, in model.OrderInput) (order model.Order, found bool, err error) {
	if err := in.Validate(); err != nil {
		return model.Order{}, false, err
	}
	name := "unknown"
	if in.CustomerName != nil {
		name = *in.CustomerName
	}
	op := orderOp("update_order", "update",
		attribute.Int64("order.id", id),
		attribute.String("order.customer_name", name),
	)
	res, err := telemetry.Observe(ctx, o.tel, op,
		func(ctx context.Context, s *telemetry.Scope) (lookup[model.Order], error) {
			order, err := o.store.UpdateOrder(ctx, id, in)
			if notFound(err) {
				return lookup[model.Order]{}, nil
			}
			if err != nil {
				return lookup[model.Order]{}, err
			}
			s.Count(telemetry.OrdersUpdated, orderLabels(order))
			s.SetAttributes(attribute.String("order.updated_at", order.UpdatedAt.Format(time.RFC3339Nano)))
			return lookup[model.Order]{value: order, found: true}, nil
		})
	return res.value, res.found, err
}

// UpdateStatus moves an order to status, optionally setting its tracking
// number. The status change counter carries the status the order had
// before the update. found is false when the order does not exist.
func (o *Orders) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus, tracking *string) (order model.Order, found bool, err error) {
	if !status.Valid() {
		_, err := model.ParseOrderStatus(string(status))
		return model.Order{}, false, err
	}
	if tracking != nil {
		if err := (model.OrderInput{TrackingNumber: tracking}).Validate(); err != nil {
			return model.Order{}, false, err
		}
	}
	op := orderOp("update_order_status", "update_status",
		attribute.Int64("order.id", id),
		attribute.String("order.new_status", string(status)),
	)
	res, err := telemetry.Observe(ctx, o.tel, op,
		func(ctx context.Context, s *telemetry.Scope) (lookup[model.Order], error) {
			previous, order, err := o.store.UpdateOrderStatus(ctx, id, status, tracking)
			if notFound(err) {
				return lookup[model.Order]{}, nil
			}
			if err != nil {
				return lookup[model.Order]{}, err
			}
			s.Count(telemetry.OrdersStatusChanged, telemetry.Labels{
				"order_id":      strconv.FormatInt(id, 10),
				"old_status":    string(previous),
				"new_status":    string(status),
				"customer_name": order.CustomerName,
			})
			s.SetAttributes(
				attribute.String("order.old_status", string(previous)),
				attribute.String("order.updated_at", order.UpdatedAt.Format(time.RFC3339Nano)),
			)
			return lookup[model.Order]{value: order, found: true}, nil
		})
	return res.value, res.found, err
}

// Delete removes an order and reports whether it existed.
func (o *Orders) Delete(ctx context.Context, id int64) (bool, error) {
	return telemetry.Observe(ctx, o.tel, orderOp("delete_order", "delete", attribute.Int64("order.id", id)),
		func(ctx context.Context, s *telemetry.Scope) (bool, error) {
			deleted, err := o.store.DeleteOrder(ctx, id)
			if err != nil {
				return false, err
			}
			s.SetAttributes(attribute.Bool("order.deleted", deleted))
			return deleted, nil
		})
}
