package model

import "time"

// APIResponse is the success envelope for every JSON endpoint.
type APIResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data"`
	Message   string    `json:"message,omitempty"`
	Count     *int      `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// APIError is the failure envelope.
type APIError struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPage is an admin listing page.
type OrderPage struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// UpdateStatusRequest is the body of order status updates.
type UpdateStatusRequest struct {
	Status         string  `json:"status"`
	TrackingNumber *string `json:"trackingNumber,omitempty"`
}
