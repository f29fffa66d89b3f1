package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/ashita-ai/elven/internal/model"
	"github.com/ashita-ai/elven/internal/service/admin"
)

// handleAdminListOrders handles GET /api/admin/orders?page=&limit=&status=.
func (h *handlers) handleAdminListOrders(w http.ResponseWriter, r *http.Request) {
	status, err := queryStatus(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "admin list orders", err)
		return
	}
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", admin.DefaultPageSize)

	result, err := h.admin.ListOrders(r.Context(), page, limit, status)
	if err != nil {
		writeServiceError(w, r, h.logger, "admin list orders", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAdminSearchOrders handles
// GET /api/admin/orders/search?q=&status=&startDate=&endDate=.
func (h *handlers) handleAdminSearchOrders(w http.ResponseWriter, r *http.Request) {
	f := model.OrderFilter{Query: strings.TrimSpace(r.URL.Query().Get("q"))}

	var err error
	if f.Status, err = queryStatus(r); err != nil {
		writeServiceError(w, r, h.logger, "admin search orders", err)
		return
	}
	if f.StartDate, err = queryTime(r, "startDate"); err != nil {
		writeServiceError(w, r, h.logger, "admin search orders", err)
		return
	}
	if f.EndDate, err = queryTime(r, "endDate"); err != nil {
		writeServiceError(w, r, h.logger, "admin search orders", err)
		return
	}

	orders, err := h.admin.SearchOrders(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, h.logger, "admin search orders", err)
		return
	}
	writeEnvelope(w, http.StatusOK, model.APIResponse{
		Success:   true,
		Data:      orders,
		Count:     countOf(orders),
		Timestamp: time.Now().UTC(),
	})
}

func (h *handlers) handleAdminGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "admin get order", err)
		return
	}
	order, found, err := h.admin.GetOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "admin get order", err)
		return
	}
	if !found {
		notFound(w, r, "Order", id)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *handlers) handleAdminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, status, tracking, err := h.decodeStatusUpdate(w, r)
	if err != nil {
		writeServiceError(w, r, h.logger, "admin update order status", err)
		return
	}
	order, found, err := h.admin.UpdateOrderStatus(r.Context(), id, status, tracking)
	if err != nil {
		writeServiceError(w, r, h.logger, "admin update order status", err)
		return
	}
	if !found {
		notFound(w, r, "Order", id)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
