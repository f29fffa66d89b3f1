// Package catalog holds the product and order use cases. Every operation
// runs inside telemetry.Observe, which gives it a span, a query duration
// sample and, on success, the domain counters for what it changed.
package catalog

import (
	"context"
	"errors"

	"github.com/ashita-ai/elven/internal/model"
	"github.com/ashita-ai/elven/internal/storage"
)

// ProductStore is the persistence surface the product use cases need.
// *storage.DB satisfies it.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id int64) (model.Product, error)
	CreateProduct(ctx context.Context, in model.ProductInput) (model.Product, error)
	UpdateProduct(ctx context.Context, id int64, in model.ProductInput) (model.Product, error)
	DeleteProduct(ctx context.Context, id int64) (bool, error)
}

// OrderStore is the persistence surface the order use cases need.
// *storage.DB satisfies it.
type OrderStore interface {
	ListOrders(ctx context.Context) ([]model.Order, error)
	GetOrder(ctx context.Context, id int64) (model.Order, error)
	CreateOrder(ctx context.Context, in model.OrderInput) (model.Order, error)
	UpdateOrder(ctx context.Context, id int64, in model.OrderInput) (model.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus, tracking *string) (model.OrderStatus, model.Order, error)
	DeleteOrder(ctx context.Context, id int64) (bool, error)
}

var (
	_ ProductStore = (*storage.DB)(nil)
	_ OrderStore   = (*storage.DB)(nil)
)

// lookup carries a single-row result through Observe. A missing row is a
// successful operation with found == false, not an error.
type lookup[T any] struct {
	value T
	found bool
}

func notFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
