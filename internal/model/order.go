package model

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseOrderStatus normalizes and validates a status string.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: invalid order status %q", ErrValidation, s)
	}
	return st, nil
}

// Order is a customer purchase. Items is stored verbatim as JSON.
type Order struct {
	ID              int64           `json:"id"`
	CustomerName    string          `json:"customerName"`
	CustomerEmail   string          `json:"customerEmail"`
	Items           json.RawMessage `json:"items"`
	TotalAmount     float64         `json:"totalAmount"`
	Status          OrderStatus     `json:"status"`
	ShippingAddress *string         `json:"shippingAddress,omitempty"`
	TrackingNumber  *string         `json:"trackingNumber,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// OrderInput is the writable subset of Order. Nil fields are left unchanged
// on update.
type OrderInput struct {
	CustomerName    *string         `json:"customerName"`
	CustomerEmail   *string         `json:"customerEmail"`
	Items           json.RawMessage `json:"items"`
	TotalAmount     *float64        `json:"totalAmount"`
	Status          *OrderStatus    `json:"status"`
	ShippingAddress *string         `json:"shippingAddress"`
	TrackingNumber  *string         `json:"trackingNumber"`
}

// ValidateForCreate checks that required fields are present and sane.
func (in OrderInput) ValidateForCreate() error {
	if in.CustomerName == nil || strings.TrimSpace(*in.CustomerName) == "" {
		return fmt.Errorf("%w: customerName is required", ErrValidation)
	}
	if in.CustomerEmail == nil || strings.TrimSpace(*in.CustomerEmail) == "" {
		return fmt.Errorf("%w: customerEmail is required", ErrValidation)
	}
	if in.TotalAmount == nil {
		return fmt.Errorf("%w: totalAmount is required", ErrValidation)
	}
	return in.Validate()
}

// Validate checks the fields that are set.
func (in OrderInput) Validate() error {
	if in.CustomerName != nil && len(*in.CustomerName) > MaxNameLen {
		return fmt.Errorf("%w: customerName exceeds %d characters", ErrValidation, MaxNameLen)
	}
	if in.CustomerEmail != nil {
		if _, err := mail.ParseAddress(*in.CustomerEmail); err != nil {
			return fmt.Errorf("%w: customerEmail is not a valid address", ErrValidation)
		}
	}
	if in.TotalAmount != nil && *in.TotalAmount < 0 {
		return fmt.Errorf("%w: totalAmount must not be negative", ErrValidation)
	}
	if in.Status != nil && !in.Status.Valid() {
		return fmt.Errorf("%w: invalid order status %q", ErrValidation, *in.Status)
	}
	if len(in.Items) > 0 && !json.Valid(in.Items) {
		return fmt.Errorf("%w: items must be valid JSON", ErrValidation)
	}
	if in.TrackingNumber != nil && len(*in.TrackingNumber) > 20 {
		return fmt.Errorf("%w: trackingNumber exceeds 20 characters", ErrValidation)
	}
	return nil
}

// OrderFilter narrows admin order listings and searches.
type OrderFilter struct {
	Query     string // matched against customer name, email and id
	Status    *OrderStatus
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// Pagination describes a page of results.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes page metadata.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}
