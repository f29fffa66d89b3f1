package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus(" Shipped ")
	require.NoError(t, err)
	assert.Equal(t, OrderShipped, st)

	_, err = ParseOrderStatus("lost")
	require.ErrorIs(t, err, ErrValidation)
}

func TestProductInputValidateForCreate(t *testing.T) {
	tests := []struct {
		name    string
		in      ProductInput
		wantErr bool
	}{
		{"valid", ProductInput{Name: ptr("Dune"), Price: ptr(39.9), Category: ptr("sci-fi")}, false},
		{"missing name", ProductInput{Price: ptr(1.0), Category: ptr("x")}, true},
		{"blank name", ProductInput{Name: ptr("  "), Price: ptr(1.0), Category: ptr("x")}, true},
		{"missing price", ProductInput{Name: ptr("a"), Category: ptr("x")}, true},
		{"negative stock", ProductInput{Name: ptr("a"), Price: ptr(1.0), Category: ptr("x"), Stock: ptr(-1)}, true},
		{"long isbn", ProductInput{Name: ptr("a"), Price: ptr(1.0), Category: ptr("x"), ISBN: ptr("978-0-00-000000-0-000")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.ValidateForCreate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrderInputValidate(t *testing.T) {
	bad := OrderStatus("lost")
	tests := []struct {
		name    string
		in      OrderInput
		wantErr bool
	}{
		{"valid", OrderInput{CustomerName: ptr("Ana"), CustomerEmail: ptr("ana@example.com"), TotalAmount: ptr(10.0), Items: json.RawMessage(`[{"productId":1,"quantity":2}]`)}, false},
		{"bad email", OrderInput{CustomerName: ptr("Ana"), CustomerEmail: ptr("not-an-email"), TotalAmount: ptr(10.0)}, true},
		{"missing total", OrderInput{CustomerName: ptr("Ana"), CustomerEmail: ptr("ana@example.com")}, true},
		{"bad status", OrderInput{CustomerName: ptr("Ana"), CustomerEmail: ptr("ana@example.com"), TotalAmount: ptr(1.0), Status: &bad}, true},
		{"bad items", OrderInput{CustomerName: ptr("Ana"), CustomerEmail: ptr("ana@example.com"), TotalAmount: ptr(1.0), Items: json.RawMessage(`[{`)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.ValidateForCreate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewPagination(t *testing.T) {
	assert.Equal(t, Pagination{Page: 1, Limit: 10, Total: 0, TotalPages: 0}, NewPagination(1, 10, 0))
	assert.Equal(t, Pagination{Page: 2, Limit: 10, Total: 21, TotalPages: 3}, NewPagination(2, 10, 21))
	assert.Equal(t, 0, NewPagination(1, 0, 5).TotalPages)
}
