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
	productRepository = "ProductRepository"
	productEntity     = "products"
)

// Products implements the product use cases.
type Products struct {
	store ProductStore
	tel   *telemetry.Telemetry
}

// NewProducts creates the product use cases.
func NewProducts(store ProductStore, tel *telemetry.Telemetry) *Products {
	return &Products{store: store, tel: tel}
}

func productOp(name, query string, attrs ...attribute.KeyValue) telemetry.Operation {
	return telemetry.Operation{
		Name:       name,
		Repository: productRepository,
		Query:      query,
		Entity:     productEntity,
		Attributes: attrs,
	}
}

// List returns all products.
func (p *Products) List(ctx context.Context) ([]model.Product, error) {
	return telemetry.Observe(ctx, p.tel, productOp("get_all_products", "find_all"),
		func(ctx context.Context, s *telemetry.Scope) ([]model.Product, error) {
			products, err := p.store.ListProducts(ctx)
			if err != nil {
				return nil, err
			}
			s.SetAttributes(attribute.Int("products.count", len(products)))
			return products, nil
		})
}

// Get returns the product with id. found is false when it does not exist.
func (p *Products) Get(ctx context.Context, id int64) (product model.Product, found bool, err error) {
	res, err := telemetry.Observe(ctx, p.tel, productOp("get_product_by_id", "find_by_id", attribute.Int64("product.id", id)),
		func(ctx context.Context, s *telemetry.Scope) (lookup[model.Product], error) {
			product, err := p.store.GetProduct(ctx, id)
			if notFound(err) {
				s.SetAttributes(attribute.Bool("product.found", false))
				return lookup[model.Product]{}, nil
			}
			if err != nil {
				return lookup[model.Product]{}, err
			}
			s.SetAttributes(
				attribute.Bool("product.found", true),
				attribute.String("product.name", product.Name),
			)
			return lookup[model.Product]{value: product, found: true}, nil
		})
	return res.value, res.found, err
}

// Create validates and stores a new product.
func (p *Products) Create(ctx context.Context, in model.ProductInput) (model.Product, error) {
	if err := in.ValidateForCreate(); err != nil {
		return model.Product{}, err
	}
	op := productOp("create_product", "create",
		attribute.String("product.name", *in.Name),
		attribute.Float64("product.price", *in.Price),
	)
	return telemetry.Observe(ctx, p.tel, op,
		func(ctx context.Context, s *telemetry.Scope) (model.Product, error) {
			product, err := p.store.CreateProduct(ctx, in)
			if err != nil {
				return model.Product{}, err
			}
			s.Count(telemetry.ProductsCreated, telemetry.Labels{
				"product_name": product.Name,
				"category":     product.Category,
			})
			s.SetAttributes(
				attribute.Int64("product.id", product.ID),
				attribute.String("product.created_at", product.CreatedAt.Format(time.RFC3339Nano)),
			)
			return product, nil
		})
}

// Update applies the set fields of in. found is false when the product does
// not exist.
func (p *Products) Update(ctx context.Context, id int64, in model.ProductInput) (product model.Product, found bool, err error) {
	if err := in.Validate(); err != nil {
		return model.Product{}, false, err
	}
	name := "unknown"
	if in.Name != nil {
		name = *in.Name
	}
	op := productOp("update_product", "update",
		attribute.Int64("product.id", id),
		attribute.String("product.name", name),
	)
	res, err := telemetry.Observe(ctx, p.tel, op,
		func(ctx context.Context, s *telemetry.Scope) (lookup[model.Product], error) {
			product, err := p.store.UpdateProduct(ctx, id, in)
			if notFound(err) {
				return lookup[model.Product]{}, nil
			}
			if err != nil {
				return lookup[model.Product]{}, err
			}
			s.Count(telemetry.ProductsUpdated, telemetry.Labels{
				"product_name": product.Name,
				"category":     product.Category,
			})
			s.SetAttributes(attribute.String("product.updated_at", product.UpdatedAt.Format(time.RFC3339Nano)))
			return lookup[model.Product]{value: product, found: true}, nil
		})
	return res.value, res.found, err
}

// Delete removes a product and reports whether it existed.
func (p *Products) Delete(ctx context.Context, id int64) (bool, error) {
	return telemetry.Observe(ctx, p.tel, productOp("delete_product", "delete", attribute.Int64("product.id", id)),
		func(ctx context.Context, s *telemetry.Scope) (bool, error) {
			deleted, err := p.store.DeleteProduct(ctx, id)
			if err != nil {
				return false, err
			}
			if deleted {
				s.Count(telemetry.ProductsDeleted, telemetry.Labels{"product_id": strconv.FormatInt(id, 10)})
			}
			s.SetAttributes(attribute.Bool("product.deleted", deleted))
			return deleted, nil
		})
}
