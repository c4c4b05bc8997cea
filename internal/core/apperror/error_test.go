package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternal(cause)

	assert.ErrorIs(t, err, cause)

	var appErr *AppError
	require.True(t, errors.As(fmt.Errorf("run engine: %w", err), &appErr))
	assert.Equal(t, CodeInternal, appErr.Code)
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient stock", NewInsufficientStock("p1", 10, 3), http.StatusUnprocessableEntity},
		{"duplicate batch", NewDuplicateBatch("p1", "B-001"), http.StatusConflict},
		{"not reversible", NewNotReversible("e1", "batch inactive"), http.StatusUnprocessableEntity},
		{"invalid window", NewInvalidWindow(0), http.StatusBadRequest},
		{"not found", NewNotFound("batch", "b1"), http.StatusNotFound},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.err))
		})
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("consume: %w", NewInsufficientStock("p1", 7, 5))

	assert.True(t, IsCode(err, CodeInsufficientStock))
	assert.False(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(errors.New("boom"), CodeInsufficientStock))
}

func TestWithDetail(t *testing.T) {
	err := NewValidation("quantity must be positive").
		WithDetail("field", "quantity").
		WithDetail("value", -1)

	assert.Equal(t, "quantity", err.Details["field"])
	assert.Equal(t, -1, err.Details["value"])
}
