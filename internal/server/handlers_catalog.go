package server

import (
	"net/http"
	"time"

	"github.com/ashita-ai/elven/internal/model"
)

func (h *handlers) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list products", err)
		return
	}
	writeEnvelope(w, http.StatusOK, model.APIResponse{
		Success:   true,
		Data:      products,
		Count:     countOf(products),
		Timestamp: time.Now().UTC(),
	})
}

func (h *handlers) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "get product", err)
		return
	}
	product, found, err := h.products.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get product", err)
		return
	}
	if !found {
		notFound(w, r, "Product", id)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *handlers) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in model.ProductInput
	if err := decodeJSON(w, r, h.maxBodyBytes, &in); err != nil {
		writeServiceError(w, r, h.logger, "create product", err)
		return
	}
	product, err := h.products.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, "create product", err)
		return
	}
	writeEnvelope(w, http.StatusCreated, model.APIResponse{
		Success:   true,
		Data:      product,
		Message:   "Product created",
		Timestamp: time.Now().UTC(),
	})
}

func (h *handlers) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "update product", err)
		return
	}
	var in model.ProductInput
	if err := decodeJSON(w, r, h.maxBodyBytes, &in); err != nil {
		writeServiceError(w, r, h.logger, "update product", err)
		return
	}
	product, found, err := h.products.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, h.logger, "update product", err)
		return
	}
	if !found {
		notFound(w, r, "Product", id)
		return
	}
	writeEnvelope(w, http.StatusOK, model.APIResponse{
		Success:   true,
		Data:      product,
		Message:   "Product updated",
		Timestamp: time.Now().UTC(),
	})
}

func (h *handlers) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "delete product", err)
		return
	}
	deleted, err := h.products.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "delete product", err)
		return
	}
	if !deleted {
		notFound(w, r, "Product", id)
		return
	}
	writeEnvelope(w, http.StatusOK, model.APIResponse{
		Success:   true,
		Message:   "Product deleted",
		Timestamp: time.Now().UTC(),
	})
}

func (h *handlers) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list orders", err)
		return
	}
	writeEnvelope(w, http.StatusOK, model.APIResponse{
		Success:   true,
		Data:      orders,
		Count:     countOf(orders),
		Timestamp: time.Now().UTC(),
	})
}

func (h *handlers) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "get order", err)
		return
	}
	order, found, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get order", err)
		return
	}
	if !found {
		notFound(w, r, "Order", id)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *handlers) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var in model.OrderInput
	if err := decodeJSON(w, r, h.maxBodyBytes, &in); err != nil {
		writeServiceError(w, r, h.logger, "create order", err)
		return
	}
	order, err := h.orders.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, "create order", err)
		return
	}
	writeEnvelope(w, http.StatusCreated, model.APIResponse{
		Success:   true,
		Data:      order,
		Message:   "Order created",
		Timestamp: time.Now().UTC(),
	})
}

func (h *handlers) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "update order", err)
		return
	}
	var in model.OrderInput
	if err := decodeJSON(w, r, h.maxBodyBytes, &in); err != nil {
		writeServiceError(w, r, h.logger, "update order", err)
		return
	}
	order, found, err := h.orders.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, h.logger, "update order", err)
		return
	}
	if !found {
		notFound(w, r, "Order", id)
		return
	}
	writeEnvelope(w, http.StatusOK, model.APIResponse{
		Success:   true,
		Data:      order,
		Message:   "Order updated",
		Timestamp: time.Now().UTC(),
	})
}

// decodeStatusUpdate reads an UpdateStatusRequest and validates its status.
func (h *handlers) decodeStatusUpdate(w http.ResponseWriter, r *http.Request) (int64, model.OrderStatus, *string, error) {
	id, err := pathID(r)
	if err != nil {
		return 0, "", nil, err
	}
	var req model.UpdateStatusRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		return 0, "", nil, err
	}
	status, err := model.ParseOrderStatus(req.Status)
	if err != nil {
		return 0, "", nil, err
	}
	return id, status, req.TrackingNumber, nil
}

func (h *handlers) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, status, tracking, err := h.decodeStatusUpdate(w, r)
	if err != nil {
		writeServiceError(w, r, h.logger, "update order status", err)
		return
	}
	order, found, err := h.orders.UpdateStatus(r.Context(), id, status, tracking)
	if err != nil {
		writeServiceError(w, r, h.logger, "update order status", err)
		return
	}
	if !found {
		notFound(w, r, "Order", id)
		return
	}
	writeEnvelope(w, http.StatusOK, model.APIResponse{
		Success:   true,
		Data:      order,
		Message:   "Order status updated",
		Timestamp: time.Now().UTC(),
	})
}

func (h *handlers) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "delete order", err)
		return
	}
	deleted, err := h.orders.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "delete order", err)
		return
	}
	if !deleted {
		notFound(w, r, "Order", id)
		return
	}
	writeEnvelope(w, http.StatusOK, model.APIResponse{
		Success:   true,
		Message:   "Order deleted",
		Timestamp: time.Now().UTC(),
	})
}
