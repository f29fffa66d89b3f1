package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/elven/internal/model"
)

const productColumns = `id, name, description, price::float8, stock, image, category, author, isbn,
	pages, language, publisher, publication_year, created_at, updated_at`

func scanProduct(row pgx.Row) (model.Product, error) {
	var p model.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Image, &p.Category,
		&p.Author, &p.ISBN, &p.Pages, &p.Language, &p.Publisher, &p.PublicationYear,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// ListProducts returns every product, newest first.
func (db *DB) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.Product, error) {
		return scanProduct(r)
	})
	if err != nil {
		return nil, fmt.Errorf("storage: scan products: %w", err)
	}
	return products, nil
}

// GetProduct returns the product with id, or ErrNotFound.
func (db *DB) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	p, err := scanProduct(db.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Product{}, fmt.Errorf("storage: product %d: %w", id, ErrNotFound)
		}
		return model.Product{}, fmt.Errorf("storage: get product: %w", err)
	}
	return p, nil
}

// CreateProduct inserts a product. in must have passed ValidateForCreate.
func (db *DB) CreateProduct(ctx context.Context, in model.ProductInput) (model.Product, error) {
	stock := 0
	if in.Stock != nil {
		stock = *in.Stock
	}
	description := ""
	if in.Description != nil {
		description = *in.Description
	}

	p, err := scanProduct(db.pool.QueryRow(ctx,
		`INSERT INTO products (name, description, price, stock, image, category, author, isbn,
		                       pages, language, publisher, publication_year)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING `+productColumns,
		in.Name, description, in.Price, stock, in.Image, in.Category, in.Author, in.ISBN,
		in.Pages, in.Language, in.Publisher, in.PublicationYear,
	))
	if err != nil {
		return model.Product{}, fmt.Errorf("storage: create product: %w", err)
	}
	return p, nil
}

// UpdateProduct applies the non-nil fields of in, or returns ErrNotFound.
func (db *DB) UpdateProduct(ctx context.Context, id int64, in model.ProductInput) (model.Product, error) {
	p, err := scanProduct(db.pool.QueryRow(ctx,
		`UPDATE products SET
			name             = COALESCE($2, name),
			description      = COALESCE($3, description),
			price            = COALESCE($4, price),
			stock            = COALESCE($5, stock),
			image            = COALESCE($6, image),
			category         = COALESCE($7, category),
			author           = COALESCE($8, author),
			isbn             = COALESCE($9, isbn),
			pages            = COALESCE($10, pages),
			language         = COALESCE($11, language),
			publisher        = COALESCE($12, publisher),
			publication_year = COALESCE($13, publication_year),
			updated_at       = now()
		 WHERE id = $1
		 RETURNING `+productColumns,
		id, in.Name, in.Description, in.Price, in.Stock, in.Image, in.Category, in.Author,
		in.ISBN, in.Pages, in.Language, in.Publisher, in.PublicationYear,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Product{}, fmt.Errorf("storage: product %d: %w", id, ErrNotFound)
		}
		return model.Product{}, fmt.Errorf("storage: update product: %w", err)
	}
	return p, nil
}

// DeleteProduct removes a product. It reports whether a row was deleted.
func (db *DB) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("storage: delete product: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
