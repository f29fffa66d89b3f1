// Package metrics builds the operator views: a point-in-time snapshot of
// system, database, business and performance figures, the alerts derived
// from it, and a proxy to the trace query backend.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/elven/internal/storage"
)

// ErrSnapshotUnavailable is returned alongside a fully defaulted snapshot
// when every section failed.
var ErrSnapshotUnavailable = errors.New("metrics: snapshot unavailable")

// Row limits for the list-valued sections.
const (
	tableStatsLimit   = 10
	indexUsageLimit   = 10
	slowQueryLimit    = 10
	recentOrdersLimit = 10
	topCustomersLimit = 10

	slowQueryThreshold = time.Second
)

// Store is the persistence surface the aggregator reads. *storage.DB
// satisfies it.
type Store interface {
	ActiveConnections(ctx context.Context) (int, error)
	DatabaseSize(ctx context.Context) (int64, error)
	TableSizes(ctx context.Context, limit int) ([]storage.TableSize, error)
	IndexUsage(ctx context.Context, limit int) ([]storage.IndexUsage, error)
	SlowQueries(ctx context.Context, threshold time.Duration, limit int) ([]storage.SlowQuery, error)
	PoolStats() storage.PoolStats

	ProductStats(ctx context.Context) (storage.ProductStats, error)
	OrderStats(ctx context.Context) (storage.OrderStats, error)
	DailyTotals(ctx context.Context) (storage.DailyTotals, error)
	ProductsByCategory(ctx context.Context) ([]storage.CategoryCount, error)
	OrdersByStatus(ctx context.Context) ([]storage.StatusCount, error)
	LowStockProducts(ctx context.Context) ([]storage.LowStockProduct, error)
	RecentOrders(ctx context.Context, limit int) ([]storage.RecentOrder, error)
	TopCustomers(ctx context.Context, limit int) ([]storage.TopCustomer, error)
}

var _ Store = (*storage.DB)(nil)

// DatabaseStats is the persistence health section.
type DatabaseStats struct {
	ActiveConnections int                 `json:"activeConnections"`
	SizeBytes         int64               `json:"sizeBytes"`
	TableSizes        []storage.TableSize `json:"tableSizes"`
	Pool              storage.PoolStats   `json:"pool"`
	ConnectionStatus  string              `json:"connectionStatus"` // connected or error
}

// BusinessStats is the business counts section.
type BusinessStats struct {
	Products           storage.ProductStats      `json:"products"`
	Orders             storage.OrderStats        `json:"orders"`
	Daily              storage.DailyTotals       `json:"daily"`
	ProductsByCategory []storage.CategoryCount   `json:"productsByCategory"`
	OrdersByStatus     []storage.StatusCount     `json:"ordersByStatus"`
	LowStockProducts   []storage.LowStockProduct `json:"lowStockProducts"`
	RecentOrders       []storage.RecentOrder     `json:"recentOrders"`
	TopCustomers       []storage.TopCustomer     `json:"topCustomers"`
}

// PerformanceStats is the query performance section. Table sizes live in
// DatabaseStats only.
type PerformanceStats struct {
	SlowQueries []storage.SlowQuery  `json:"slowQueries"`
	IndexUsage  []storage.IndexUsage `json:"indexUsage"`
}

// Snapshot is a point-in-time view across all sections. A section whose
// source failed holds its default value.
type Snapshot struct {
	System      SystemStats      `json:"system"`
	Database    DatabaseStats    `json:"database"`
	Business    BusinessStats    `json:"business"`
	Performance PerformanceStats `json:"performance"`
	Timestamp   time.Time        `json:"timestamp"`
}

// DefaultDatabaseStats is the database section when its source fails.
func DefaultDatabaseStats() DatabaseStats {
	return DatabaseStats{TableSizes: []storage.TableSize{}, ConnectionStatus: "error"}
}

// DefaultBusinessStats is the business section when its source fails.
func DefaultBusinessStats() BusinessStats {
	return BusinessStats{
		ProductsByCategory: []storage.CategoryCount{},
		OrdersByStatus:     []storage.StatusCount{},
		LowStockProducts:   []storage.LowStockProduct{},
		RecentOrders:       []storage.RecentOrder{},
		TopCustomers:       []storage.TopCustomer{},
	}
}

// DefaultPerformanceStats is the performance section when its source fails.
func DefaultPerformanceStats() PerformanceStats {
	return PerformanceStats{
		SlowQueries: []storage.SlowQuery{},
		IndexUsage:  []storage.IndexUsage{},
	}
}

// Aggregator collects snapshots. It is safe for concurrent use.
type Aggregator struct {
	system  SystemSource
	store   Store
	timeout time.Duration
	logger  *slog.Logger
}

// NewAggregator creates an Aggregator. timeout bounds a whole snapshot;
// zero means no bound beyond the caller's context.
func NewAggregator(system SystemSource, store Store, timeout time.Duration, logger *slog.Logger) *Aggregator {
	return &Aggregator{system: system, store: store, timeout: timeout, logger: logger}
}

// Snapshot fetches every section concurrently. The returned snapshot is
// always complete; a failed section is logged and defaulted. The error is
// ErrSnapshotUnavailable only when all sections failed.
func (a *Aggregator) Snapshot(ctx context.Context) (Snapshot, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	snap := Snapshot{
		Database:    DefaultDatabaseStats(),
		Business:    DefaultBusinessStats(),
		Performance: DefaultPerformanceStats(),
	}

	var failed atomic.Int32
	section := func(name string, fetch func(context.Context) error) func() error {
		return func() error {
			if err := fetch(ctx); err != nil {
				failed.Add(1)
				a.logger.Warn("metrics: snapshot section failed", "section", name, "error", err)
			}
			return nil
		}
	}

	// Sections never return errors to the group, so one failure cannot
	// cancel the others. Each closure writes only its own field.
	var g errgroup.Group
	g.Go(section("system", func(ctx context.Context) error {
		s, err := a.system.System(ctx)
		if err == nil {
			snap.System = s
		}
		return err
	}))
	g.Go(section("database", func(ctx context.Context) error {
		d, err := a.database(ctx)
		if err == nil {
			snap.Database = d
		}
		return err
	}))
	g.Go(section("business", func(ctx context.Context) error {
		b, err := a.business(ctx)
		if err == nil {
			snap.Business = b
		}
		return err
	}))
	g.Go(section("performance", func(ctx context.Context) error {
		p, err := a.performance(ctx)
		if err == nil {
			snap.Performance = p
		}
		return err
	}))
	_ = g.Wait()

	snap.Timestamp = time.Now().UTC()
	if failed.Load() == 4 {
		return snap, ErrSnapshotUnavailable
	}
	return snap, nil
}

func (a *Aggregator) database(ctx context.Context) (DatabaseStats, error) {
	active, err := a.store.ActiveConnections(ctx)
	if err != nil {
		return DatabaseStats{}, err
	}
	size, err := a.store.DatabaseSize(ctx)
	if err != nil {
		return DatabaseStats{}, err
	}
	tables, err := a.store.TableSizes(ctx, tableStatsLimit)
	if err != nil {
		return DatabaseStats{}, err
	}
	return DatabaseStats{
		ActiveConnections: active,
		SizeBytes:         size,
		TableSizes:        tables,
		Pool:              a.store.PoolStats(),
		ConnectionStatus:  "connected",
	}, nil
}

// business runs its queries concurrently; the first error fails the whole
// section.
func (a *Aggregator) business(ctx context.Context) (BusinessStats, error) {
	var b BusinessStats
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		b.Products, err = a.store.ProductStats(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		b.Orders, err = a.store.OrderStats(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		b.Daily, err = a.store.DailyTotals(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		b.ProductsByCategory, err = a.store.ProductsByCategory(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		b.OrdersByStatus, err = a.store.OrdersByStatus(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		b.LowStockProducts, err = a.store.LowStockProducts(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		b.RecentOrders, err = a.store.RecentOrders(ctx, recentOrdersLimit)
		return err
	})
	g.Go(func() error {
		var err error
		b.TopCustomers, err = a.store.TopCustomers(ctx, topCustomersLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return BusinessStats{}, err
	}
	return b, nil
}

func (a *Aggregator) performance(ctx context.Context) (PerformanceStats, error) {
	var p PerformanceStats
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p.SlowQueries, err = a.store.SlowQueries(ctx, slowQueryThreshold, slowQueryLimit)
		return err
	})
	g.Go(func() error {
		var err error
		p.IndexUsage, err = a.store.IndexUsage(ctx, indexUsageLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return PerformanceStats{}, err
	}
	return p, nil
}
