package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashita-ai/elven/internal/model"
)

// orderWhere builds the WHERE clause shared by admin listings and searches.
// Placeholders start at $1; the returned args line up with them.
func orderWhere(f model.OrderFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		add("(customer_name ILIKE $%[1]d OR customer_email ILIKE $%[1]d OR id::text ILIKE $%[1]d)", "%"+q+"%")
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.StartDate != nil {
		add("created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("created_at <= $%d", *f.EndDate)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListOrdersPage returns one page of orders, newest first, and the total
// number of orders matching the filter. Only Status, Limit and Offset are
// consulted.
func (db *DB) ListOrdersPage(ctx context.Context, f model.OrderFilter) ([]model.Order, int, error) {
	where, args := orderWhere(model.OrderFilter{Status: f.Status})

	var total int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*)::int FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count orders: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := max(f.Offset, 0)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list orders page: %w", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: scan orders page: %w", err)
	}
	return orders, total, nil
}

// SearchOrders returns all orders matching the filter, newest first. The
// query text is matched case-insensitively against customer name, email
// and order id.
func (db *DB) SearchOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	where, args := orderWhere(f)
	rows, err := db.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders`+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: search orders: %w", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, fmt.Errorf("storage: scan search results: %w", err)
	}
	return orders, nil
}
