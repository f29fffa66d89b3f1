package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashita-ai/elven/internal/model"
	"github.com/ashita-ai/elven/internal/ratelimit"
	"github.com/ashita-ai/elven/internal/service/metrics"
	"github.com/ashita-ai/elven/internal/telemetry"
)

// ProductService is the product use case surface. *catalog.Products
// satisfies it.
type ProductService interface {
	List(ctx context.Context) ([]model.Product, error)
	Get(ctx context.Context, id int64) (model.Product, bool, error)
	Create(ctx context.Context, in model.ProductInput) (model.Product, error)
	Update(ctx context.Context, id int64, in model.ProductInput) (model.Product, bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// OrderService is the order use case surface. *catalog.Orders satisfies it.
type OrderService interface {
	List(ctx context.Context) ([]model.Order, error)
	Get(ctx context.Context, id int64) (model.Order, bool, error)
	Create(ctx context.Context, in model.OrderInput) (model.Order, error)
	Update(ctx context.Context, id int64, in model.OrderInput) (model.Order, bool, error)
	UpdateStatus(ctx context.Context, id int64, status model.OrderStatus, tracking *string) (model.Order, bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// AdminService is the back-office order surface. *admin.Service satisfies it.
type AdminService interface {
	ListOrders(ctx context.Context, page, limit int, status *model.OrderStatus) (model.OrderPage, error)
	SearchOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error)
	GetOrder(ctx context.Context, id int64) (model.Order, bool, error)
	UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus, tracking *string) (model.Order, bool, error)
}

// SnapshotSource is satisfied by *metrics.Aggregator.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (metrics.Snapshot, error)
}

// AlertSource is satisfied by *metrics.Evaluator.
type AlertSource interface {
	Evaluate(ctx context.Context) ([]metrics.Alert, error)
	Dashboard(ctx context.Context) (metrics.Dashboard, error)
}

// TraceSource is satisfied by *metrics.TraceClient.
type TraceSource interface {
	Traces(ctx context.Context) json.RawMessage
}

// Pinger reports database reachability. *storage.DB satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the elven HTTP API server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Config holds the dependencies and settings for New. Limiter may be nil
// to disable rate limiting.
type Config struct {
	Telemetry *telemetry.Telemetry
	Products  ProductService
	Orders    OrderService
	Admin     AdminService
	Snapshots SnapshotSource
	Alerts    AlertSource
	Traces    TraceSource
	System    metrics.SystemSource
	DB        Pinger
	Limiter   ratelimit.Limiter
	Logger    *slog.Logger

	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxRequestBodyBytes int64
	CORSAllowedOrigins  []string
	Version             string
	Environment         string
}

// New creates a server with every route and the middleware chain wired.
func New(cfg Config) *Server {
	h := newHandlers(cfg)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/health/metrics", h.handleHealthMetrics)

	mux.HandleFunc("GET /api/products", h.handleListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.handleGetProduct)
	mux.HandleFunc("POST /api/products", h.handleCreateProduct)
	mux.HandleFunc("PUT /api/products/{id}", h.handleUpdateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", h.handleDeleteProduct)

	mux.HandleFunc("GET /api/orders", h.handleListOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.handleGetOrder)
	mux.HandleFunc("POST /api/orders", h.handleCreateOrder)
	mux.HandleFunc("PUT /api/orders/{id}", h.handleUpdateOrder)
	mux.HandleFunc("PATCH /api/orders/{id}/status", h.handleUpdateOrderStatus)
	mux.HandleFunc("DELETE /api/orders/{id}", h.handleDeleteOrder)

	// The literal search segment outranks {id} in the mux.
	mux.HandleFunc("GET /api/admin/orders", h.handleAdminListOrders)
	mux.HandleFunc("GET /api/admin/orders/search", h.handleAdminSearchOrders)
	mux.HandleFunc("GET /api/admin/orders/{id}", h.handleAdminGetOrder)
	mux.HandleFunc("PUT /api/admin/orders/{id}/status", h.handleAdminUpdateOrderStatus)

	mux.HandleFunc("GET /api/metrics/dashboard", h.handleDashboard)
	mux.HandleFunc("GET /api/metrics/system", h.handleSystemMetrics)
	mux.HandleFunc("GET /api/metrics/database", h.handleDatabaseMetrics)
	mux.HandleFunc("GET /api/metrics/business", h.handleBusinessMetrics)
	mux.HandleFunc("GET /api/metrics/performance", h.handlePerformanceMetrics)
	mux.HandleFunc("GET /api/metrics/traces", h.handleTraces)
	mux.HandleFunc("GET /api/metrics/alerts", h.handleAlerts)

	// Middleware chain (outermost executes first):
	// request ID → CORS → security headers → rate limit → telemetry →
	// logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = cfg.Telemetry.Interceptor(
		telemetry.WithRequestAttributes(requestAttributes),
	)(handler)
	handler = ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, writeRateLimited, cfg.Logger)(handler)
	handler = securityHeadersMiddleware(handler)
	handler = corsMiddleware(cfg.CORSAllowedOrigins, cfg.Logger, handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
