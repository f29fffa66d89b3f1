package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/elven/internal/model"
)

func TestOrderWhere_Empty(t *testing.T) {
	where, args := orderWhere(model.OrderFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestOrderWhere_QueryReusesPlaceholder(t *testing.T) {
	where, args := orderWhere(model.OrderFilter{Query: "  ana "})
	assert.Equal(t, " WHERE (customer_name ILIKE $1 OR customer_email ILIKE $1 OR id::text ILIKE $1)", where)
	require.Len(t, args, 1)
	assert.Equal(t, "%ana%", args[0])
}

func TestOrderWhere_AllFilters(t *testing.T) {
	status := model.OrderShipped
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	where, args := orderWhere(model.OrderFilter{
		Query: "x", Status: &status, StartDate: &start, EndDate: &end,
	})
	assert.Contains(t, where, "status = $2")
	assert.Contains(t, where, "created_at >= $3")
	assert.Contains(t, where, "created_at <= $4")
	assert.Equal(t, []any{"%x%", "shipped", start, end}, args)
}

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&pgconn.PgError{Code: "40001"}, true},
		{&pgconn.PgError{Code: "40P01"}, true},
		{fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40001"}), true},
		{&pgconn.PgError{Code: "23505"}, false},
		{errors.New("plain"), false},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetriable(tt.err), "%v", tt.err)
	}
}

func TestIsUndefinedObject(t *testing.T) {
	assert.True(t, isUndefinedObject(&pgconn.PgError{Code: "42P01"}))
	assert.True(t, isUndefinedObject(&pgconn.PgError{Code: "55000"}))
	assert.False(t, isUndefinedObject(&pgconn.PgError{Code: "42601"}))
	assert.False(t, isUndefinedObject(errors.New("x")))
}

func TestWithRetry_RetriesSerializationFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_StopsOnOtherErrors(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := WithRetry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_GivesUp(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 2, time.Millisecond, func() error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	require.Error(t, err)
	assert.Equal(t, "40P01", pgCode(err))
	assert.Equal(t, 3, calls)
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithRetry(ctx, 3, time.Second, func() error {
		return &pgconn.PgError{Code: "40001"}
	})
	assert.ErrorIs(t, err, context.Canceled)
}
