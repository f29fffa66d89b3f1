package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashita-ai/elven/internal/model"
	"github.com/ashita-ai/elven/internal/service/metrics"
	"github.com/ashita-ai/elven/internal/telemetry"
)

const healthPingTimeout = 2 * time.Second

type handlers struct {
	tel       *telemetry.Telemetry
	products  ProductService
	orders    OrderService
	admin     AdminService
	snapshots SnapshotSource
	alerts    AlertSource
	traces    TraceSource
	system    metrics.SystemSource
	db        Pinger
	logger    *slog.Logger

	maxBodyBytes int64
	version      string
	environment  string
	startedAt    time.Time
}

func newHandlers(cfg Config) *handlers {
	maxBody := cfg.MaxRequestBodyBytes
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	return &handlers{
		tel:          cfg.Telemetry,
		products:     cfg.Products,
		orders:       cfg.Orders,
		admin:        cfg.Admin,
		snapshots:    cfg.Snapshots,
		alerts:       cfg.Alerts,
		traces:       cfg.Traces,
		system:       cfg.System,
		db:           cfg.DB,
		logger:       cfg.Logger,
		maxBodyBytes: maxBody,
		version:      cfg.Version,
		environment:  cfg.Environment,
		startedAt:    time.Now(),
	}
}

type databaseHealth struct {
	Connected bool   `json:"connected"`
	Type      string `json:"type"`
}

type healthStatus struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Uptime      float64        `json:"uptime"`
	Environment string         `json:"environment"`
	Database    databaseHealth `json:"database"`
	Version     string         `json:"version"`
}

// handleHealth handles GET /api/health.
func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	status := healthStatus{
		Status:      "healthy",
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.startedAt).Seconds(),
		Environment: h.environment,
		Database:    databaseHealth{Connected: true, Type: "postgres"},
		Version:     h.version,
	}

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", "error", err)
		status.Status = "unhealthy"
		status.Database.Connected = false
		writeEnvelope(w, http.StatusServiceUnavailable, model.APIResponse{
			Success:   false,
			Data:      status,
			Message:   "Service unavailable",
			Timestamp: status.Timestamp,
		})
		return
	}

	writeEnvelope(w, http.StatusOK, model.APIResponse{
		Success:   true,
		Data:      status,
		Message:   "Service is running",
		Timestamp: status.Timestamp,
	})
}

type healthMetrics struct {
	System           metrics.SystemStats `json:"system"`
	Environment      string              `json:"environment"`
	MetricsAvailable []string            `json:"metrics_available"`
}

// handleHealthMetrics handles GET /api/health/metrics. It reports the
// process figures and the instruments this process exports.
func (h *handlers) handleHealthMetrics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.system.System(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "health metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, healthMetrics{
		System:           stats,
		Environment:      h.environment,
		MetricsAvailable: h.tel.Registry().Names(),
	})
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", model.ErrValidation, raw)
	}
	return id, nil
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// queryTime accepts RFC 3339 timestamps or plain dates (YYYY-MM-DD, read
// as midnight UTC).
func queryTime(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: invalid %s: expected RFC3339 or YYYY-MM-DD", model.ErrValidation, key)
}

func queryStatus(r *http.Request) (*model.OrderStatus, error) {
	v := r.URL.Query().Get("status")
	if v == "" {
		return nil, nil
	}
	st, err := model.ParseOrderStatus(v)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func notFound(w http.ResponseWriter, r *http.Request, entity string, id int64) {
	writeError(w, r, http.StatusNotFound, entity+" not found", fmt.Sprintf("%s with id %d was not found", entity, id))
}

func countOf[T any](items []T) *int {
	n := len(items)
	return &n
}
