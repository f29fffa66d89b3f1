package server

import (
	"net/http"

	"github.com/ashita-ai/elven/internal/service/metrics"
)

// snapshot fetches one snapshot, answering 500 itself when no section
// could be read.
func (h *handlers) snapshot(w http.ResponseWriter, r *http.Request) (metrics.Snapshot, bool) {
	snap, err := h.snapshots.Snapshot(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "metrics snapshot", err)
		return metrics.Snapshot{}, false
	}
	return snap, true
}

// handleSystemMetrics serves the whole snapshot.
func (h *handlers) handleSystemMetrics(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, snap)
	}
}

func (h *handlers) handleDatabaseMetrics(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, snap.Database)
	}
}

func (h *handlers) handleBusinessMetrics(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, snap.Business)
	}
}

func (h *handlers) handlePerformanceMetrics(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, snap.Performance)
	}
}

// handleDashboard serves a snapshot with the alerts computed from it.
func (h *handlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.alerts.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "metrics dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handlers) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.Evaluate(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "metrics alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// handleTraces proxies the trace backend. It never fails; an unreachable
// backend yields an empty list.
func (h *handlers) handleTraces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.traces.Traces(r.Context()))
}
