package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/elven/internal/model"
)

const orderColumns = `id, customer_name, customer_email, items, total_amount::float8, status,
	shipping_address, tracking_number, created_at, updated_at`

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	var items []byte
	err := row.Scan(
		&o.ID, &o.CustomerName, &o.CustomerEmail, &items, &o.TotalAmount, &o.Status,
		&o.ShippingAddress, &o.TrackingNumber, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Items = json.RawMessage(items)
	return o, err
}

func collectOrders(rows pgx.Rows) ([]model.Order, error) {
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.Order, error) {
		return scanOrder(r)
	})
}

// ListOrders returns every order, newest first.
func (db *DB) ListOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list orders: %w", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, fmt.Errorf("storage: scan orders: %w", err)
	}
	return orders, nil
}

// GetOrder returns the order with id, or ErrNotFound.
func (db *DB) GetOrder(ctx context.Context, id int64) (model.Order, error) {
	o, err := scanOrder(db.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Order{}, fmt.Errorf("storage: order %d: %w", id, ErrNotFound)
		}
		return model.Order{}, fmt.Errorf("storage: get order: %w", err)
	}
	return o, nil
}

// CreateOrder inserts an order. in must have passed ValidateForCreate.
func (db *DB) CreateOrder(ctx context.Context, in model.OrderInput) (model.Order, error) {
	items := in.Items
	if len(items) == 0 {
		items = json.RawMessage(`[]`)
	}
	status := model.OrderPending
	if in.Status != nil {
		status = *in.Status
	}

	o, err := scanOrder(db.pool.QueryRow(ctx,
		`INSERT INTO orders (customer_name, customer_email, items, total_amount, status,
		                     shipping_address, tracking_number)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+orderColumns,
		in.CustomerName, in.CustomerEmail, items, in.TotalAmount, status,
		in.ShippingAddress, in.TrackingNumber,
	))
	if err != nil {
		return model.Order{}, fmt.Errorf("storage: create order: %w", err)
	}
	return o, nil
}

// UpdateOrder applies the non-nil fields of in, or returns ErrNotFound.
func (db *DB) UpdateOrder(ctx context.Context, id int64, in model.OrderInput) (model.Order, error) {
	var items any
	if len(in.Items) > 0 {
		items = in.Items
	}
	o, err := scanOrder(db.pool.QueryRow(ctx,
		`UPDATE orders SET
			customer_name    = COALESCE($2, customer_name),
			customer_email   = COALESCE($3, customer_email),
			items            = COALESCE($4::jsonb, items),
			total_amount     = COALESCE($5, total_amount),
			status           = COALESCE($6, status),
			shipping_address = COALESCE($7, shipping_address),
			tracking_number  = COALESCE($8, tracking_number),
			updated_at       = now()
		 WHERE id = $1
		 RETURNING `+orderColumns,
		id, in.CustomerName, in.CustomerEmail, items, in.TotalAmount, in.Status,
		in.ShippingAddress, in.TrackingNumber,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Order{}, fmt.Errorf("storage: order %d: %w", id, ErrNotFound)
		}
		return model.Order{}, fmt.Errorf("storage: update order: %w", err)
	}
	return o, nil
}

// UpdateOrderStatus sets the status (and optionally the tracking number) of
// an order and returns the status it had before, read under the same row
// lock. Returns ErrNotFound if the order does not exist.
func (db *DB) UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus, tracking *string) (model.OrderStatus, model.Order, error) {
	var previous model.OrderStatus
	var updated model.Order

	err := WithRetry(ctx, defaultRetries, defaultBaseDelay, func() error {
		return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
			if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&previous); err != nil {
				return err
			}
			var err error
			updated, err = scanOrder(tx.QueryRow(ctx,
				`UPDATE orders SET status = $2, tracking_number = COALESCE($3, tracking_number), updated_at = now()
				 WHERE id = $1
				 RETURNING `+orderColumns,
				id, status, tracking,
			))
			return err
		})
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", model.Order{}, fmt.Errorf("storage: order %d: %w", id, ErrNotFound)
		}
		return "", model.Order{}, fmt.Errorf("storage: update order status: %w", err)
	}
	return previous, updated, nil
}

// DeleteOrder removes an order. It reports whether a row was deleted.
func (db *DB) DeleteOrder(ctx context.Context, id int64) (bool, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("storage: delete order: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
