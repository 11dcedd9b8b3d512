package errors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Error(t *testing.T) {
	err := New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	assert.Equal(t, "Invalid request format", err.Error())
}

func TestAPIError_Render(t *testing.T) {
	tests := []struct {
		name       string
		apiError   *APIError
		wantStatus int
	}{
		{"bad request", ErrInvalidRequest, http.StatusBadRequest},
		{"not found", ErrResourceNotFound, http.StatusNotFound},
		{"payload too large", ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{"internal", ErrInternalServer, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil)

			require.NoError(t, render.Render(w, r, tt.apiError))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.apiError.ErrorCode)
		})
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err        *APIError
		wantStatus int
		wantCode   string
	}{
		{ErrInvalidRequest, http.StatusBadRequest, "INVALID_REQUEST"},
		{ErrMissingParameter, http.StatusBadRequest, "MISSING_PARAMETER"},
		{ErrResourceNotFound, http.StatusNotFound, "NOT_FOUND"},
		{ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
		{ErrRateLimitExceeded, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{ErrInternalServer, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, tt.err.ErrorCode)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestNewWithDetails(t *testing.T) {
	details := map[string]string{"field": "granularity"}
	got := NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "bad field", details)

	assert.Equal(t, http.StatusBadRequest, got.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", got.ErrorCode)
	assert.Equal(t, details, got.Details)
}

func TestInvalidRequestWithError(t *testing.T) {
	got := InvalidRequestWithError(assert.AnError)

	assert.Equal(t, http.StatusBadRequest, got.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", got.ErrorCode)
	assert.Equal(t, assert.AnError.Error(), got.Details)
}

func TestErrValidation(t *testing.T) {
	tests := []struct {
		field   string
		message string
	}{
		{"granularity", "must be one of day week month quarter year"},
		{"file", "is required"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got := ErrValidation(tt.field, tt.message)

			assert.Equal(t, http.StatusBadRequest, got.StatusCode)
			assert.Equal(t, "VALIDATION_FAILED", got.ErrorCode)
			detail, ok := got.Details.(ValidationError)
			require.True(t, ok)
			assert.Equal(t, tt.field, detail.Field)
			assert.Equal(t, tt.message, detail.Message)
		})
	}
}

func TestNotFoundError(t *testing.T) {
	got := NotFoundError("analysis")

	assert.Equal(t, http.StatusNotFound, got.StatusCode)
	assert.Equal(t, "NOT_FOUND", got.ErrorCode)
	assert.Equal(t, "analysis not found", got.Message)
	assert.Equal(t, "analysis", got.Details)
}
