package storage

import (
	"context"
	"fmt"
	"time"
)

// LowStockThreshold is the stock level at or below which a product is
// reported as low stock.
const LowStockThreshold = 10

// ProductStats summarizes the product catalog.
type ProductStats struct {
	TotalProducts int     `json:"total_products"`
	InStock       int     `json:"in_stock"`
	OutOfStock    int     `json:"out_of_stock"`
	AvgPrice      float64 `json:"avg_price"`
	TotalStock    int     `json:"total_stock"`
}

// OrderStats summarizes orders by status and value.
type OrderStats struct {
	TotalOrders      int     `json:"total_orders"`
	PendingOrders    int     `json:"pending_orders"`
	ProcessingOrders int     `json:"processing_orders"`
	ShippedOrders    int     `json:"shipped_orders"`
	DeliveredOrders  int     `json:"delivered_orders"`
	CancelledOrders  int     `json:"cancelled_orders"`
	AvgOrderValue    float64 `json:"avg_order_value"`
	TotalRevenue     float64 `json:"total_revenue"`
}

// DailyTotals holds the counters shown at the top of the dashboard. "Today"
// starts at midnight in the database session's time zone.
type DailyTotals struct {
	OrdersToday       int     `json:"orders_today"`
	RevenueToday      float64 `json:"revenue_today"`
	TotalCustomers    int     `json:"total_customers"`
	NewCustomersToday int     `json:"new_customers_today"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type LowStockProduct struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

type RecentOrder struct {
	ID           int64     `json:"id"`
	CustomerName string    `json:"customerName"`
	Total        float64   `json:"total"`
	Status       string    `json:"status"`
	Date         time.Time `json:"date"`
}

// TopCustomer aggregates spend per customer email.
type TopCustomer struct {
	CustomerID   string  `json:"customerId"`
	CustomerName string  `json:"customerName"`
	TotalSpent   float64 `json:"totalSpent"`
	OrderCount   int     `json:"orderCount"`
}

type TableSize struct {
	Table     string `json:"table_name"`
	Rows      int64  `json:"table_rows"`
	SizeBytes int64  `json:"size_bytes"`
}

type IndexUsage struct {
	Table     string `json:"table_name"`
	Index     string `json:"index_name"`
	Scans     int64  `json:"scans"`
	SizeBytes int64  `json:"size_bytes"`
}

type SlowQuery struct {
	Query   string  `json:"query"`
	Calls   int64   `json:"calls"`
	MeanMs  float64 `json:"mean_time_ms"`
	TotalMs float64 `json:"total_time_ms"`
}

// ActiveConnections counts non-idle backends connected to the current
// database.
func (db *DB) ActiveConnections(ctx context.Context) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx, `
		SELECT COUNT(*)::int FROM pg_stat_activity
		WHERE datname = current_database() AND state = 'active'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: active connections: %w", err)
	}
	return n, nil
}

// DatabaseSize returns the on-disk size of the current database in bytes.
func (db *DB) DatabaseSize(ctx context.Context) (int64, error) {
	var n int64
	if err := db.pool.QueryRow(ctx, `SELECT pg_database_size(current_database())`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: database size: %w", err)
	}
	return n, nil
}

// TableSizes lists user tables by total relation size, largest first.
func (db *DB) TableSizes(ctx context.Context, limit int) ([]TableSize, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT relname, n_live_tup, pg_total_relation_size(relid)
		FROM pg_stat_user_tables
		ORDER BY pg_total_relation_size(relid) DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: table sizes: %w", err)
	}
	defer rows.Close()

	sizes := []TableSize{}
	for rows.Next() {
		var t TableSize
		if err := rows.Scan(&t.Table, &t.Rows, &t.SizeBytes); err != nil {
			return nil, fmt.Errorf("storage: scan table size: %w", err)
		}
		sizes = append(sizes, t)
	}
	return sizes, rows.Err()
}

// IndexUsage lists user indexes by scan count, most used first.
func (db *DB) IndexUsage(ctx context.Context, limit int) ([]IndexUsage, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT relname, indexrelname, idx_scan, pg_relation_size(indexrelid)
		FROM pg_stat_user_indexes
		ORDER BY idx_scan DESC, indexrelname
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: index usage: %w", err)
	}
	defer rows.Close()

	usage := []IndexUsage{}
	for rows.Next() {
		var u IndexUsage
		if err := rows.Scan(&u.Table, &u.Index, &u.Scans, &u.SizeBytes); err != nil {
			return nil, fmt.Errorf("storage: scan index usage: %w", err)
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}

// SlowQueries returns statements whose mean execution time exceeds
// threshold. It requires the pg_stat_statements extension; when the
// extension is not installed it returns an empty list and no error.
func (db *DB) SlowQueries(ctx context.Context, threshold time.Duration, limit int) ([]SlowQuery, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT query, calls, mean_exec_time, total_exec_time
		FROM pg_stat_statements
		WHERE mean_exec_time > $1
		ORDER BY mean_exec_time DESC
		LIMIT $2`, float64(threshold)/float64(time.Millisecond), limit)
	if err != nil {
		if isUndefinedObject(err) {
			return []SlowQuery{}, nil
		}
		return nil, fmt.Errorf("storage: slow queries: %w", err)
	}
	defer rows.Close()

	slow := []SlowQuery{}
	for rows.Next() {
		var q SlowQuery
		if err := rows.Scan(&q.Query, &q.Calls, &q.MeanMs, &q.TotalMs); err != nil {
			return nil, fmt.Errorf("storage: scan slow query: %w", err)
		}
		slow = append(slow, q)
	}
	if err := rows.Err(); err != nil {
		if isUndefinedObject(err) {
			return []SlowQuery{}, nil
		}
		return nil, fmt.Errorf("storage: slow queries: %w", err)
	}
	return slow, nil
}

// ProductStats computes catalog totals in a single pass.
func (db *DB) ProductStats(ctx context.Context) (ProductStats, error) {
	var s ProductStats
	err := db.pool.QueryRow(ctx, `
		SELECT
		    COUNT(*)::int,
		    COUNT(*) FILTER (WHERE stock > 0)::int,
		    COUNT(*) FILTER (WHERE stock = 0)::int,
		    COALESCE(AVG(price), 0)::float8,
		    COALESCE(SUM(stock), 0)::int
		FROM products`).Scan(
		&s.TotalProducts, &s.InStock, &s.OutOfStock, &s.AvgPrice, &s.TotalStock,
	)
	if err != nil {
		return ProductStats{}, fmt.Errorf("storage: product stats: %w", err)
	}
	return s, nil
}

// OrderStats computes order totals and per-status counts in a single pass.
func (db *DB) OrderStats(ctx context.Context) (OrderStats, error) {
	var s OrderStats
	err := db.pool.QueryRow(ctx, `
		SELECT
		    COUNT(*)::int,
		    COUNT(*) FILTER (WHERE status = 'pending')::int,
		    COUNT(*) FILTER (WHERE status = 'processing')::int,
		    COUNT(*) FILTER (WHERE status = 'shipped')::int,
		    COUNT(*) FILTER (WHERE status = 'delivered')::int,
		    COUNT(*) FILTER (WHERE status = 'cancelled')::int,
		    COALESCE(AVG(total_amount), 0)::float8,
		    COALESCE(SUM(total_amount), 0)::float8
		FROM orders`).Scan(
		&s.TotalOrders, &s.PendingOrders, &s.ProcessingOrders, &s.ShippedOrders,
		&s.DeliveredOrders, &s.CancelledOrders, &s.AvgOrderValue, &s.TotalRevenue,
	)
	if err != nil {
		return OrderStats{}, fmt.Errorf("storage: order stats: %w", err)
	}
	return s, nil
}

// DailyTotals computes today's order and customer counters.
func (db *DB) DailyTotals(ctx context.Context) (DailyTotals, error) {
	var d DailyTotals
	err := db.pool.QueryRow(ctx, `
		SELECT
		    COUNT(*) FILTER (WHERE created_at >= date_trunc('day', now()))::int,
		    COALESCE(SUM(total_amount) FILTER (WHERE created_at >= date_trunc('day', now())), 0)::float8,
		    COUNT(DISTINCT customer_email)::int,
		    COUNT(DISTINCT customer_email) FILTER (WHERE created_at >= date_trunc('day', now()))::int
		FROM orders`).Scan(
		&d.OrdersToday, &d.RevenueToday, &d.TotalCustomers, &d.NewCustomersToday,
	)
	if err != nil {
		return DailyTotals{}, fmt.Errorf("storage: daily totals: %w", err)
	}
	return d, nil
}

// ProductsByCategory counts products per category.
func (db *DB) ProductsByCategory(ctx context.Context) ([]CategoryCount, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT category, COUNT(*)::int FROM products
		GROUP BY category ORDER BY COUNT(*) DESC, category`)
	if err != nil {
		return nil, fmt.Errorf("storage: products by category: %w", err)
	}
	defer rows.Close()

	counts := []CategoryCount{}
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("storage: scan category count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// OrdersByStatus counts orders per status.
func (db *DB) OrdersByStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT status, COUNT(*)::int FROM orders
		GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("storage: orders by status: %w", err)
	}
	defer rows.Close()

	counts := []StatusCount{}
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("storage: scan status count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// LowStockProducts lists products at or below LowStockThreshold, lowest
// stock first.
func (db *DB) LowStockProducts(ctx context.Context) ([]LowStockProduct, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, name, stock FROM products
		WHERE stock <= $1 ORDER BY stock ASC, id`, LowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("storage: low stock products: %w", err)
	}
	defer rows.Close()

	products := []LowStockProduct{}
	for rows.Next() {
		var p LowStockProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.Stock); err != nil {
			return nil, fmt.Errorf("storage: scan low stock product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// RecentOrders returns the most recent orders in summary form.
func (db *DB) RecentOrders(ctx context.Context, limit int) ([]RecentOrder, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, customer_name, total_amount::float8, status, created_at
		FROM orders ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: recent orders: %w", err)
	}
	defer rows.Close()

	orders := []RecentOrder{}
	for rows.Next() {
		var o RecentOrder
		if err := rows.Scan(&o.ID, &o.CustomerName, &o.Total, &o.Status, &o.Date); err != nil {
			return nil, fmt.Errorf("storage: scan recent order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// TopCustomers ranks customers by total spend.
func (db *DB) TopCustomers(ctx context.Context, limit int) ([]TopCustomer, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT customer_email, customer_name, SUM(total_amount)::float8, COUNT(*)::int
		FROM orders
		GROUP BY customer_email, customer_name
		ORDER BY SUM(total_amount) DESC, customer_email
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: top customers: %w", err)
	}
	defer rows.Close()

	customers := []TopCustomer{}
	for rows.Next() {
		var c TopCustomer
		if err := rows.Scan(&c.CustomerID, &c.CustomerName, &c.TotalSpent, &c.OrderCount); err != nil {
			return nil, fmt.Errorf("storage: scan top customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}
