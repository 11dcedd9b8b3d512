package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler_HandleError(t *testing.T) {
	handler := NewErrorHandler(slog.Default())

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantExt    map[string]interface{}
	}{
		{
			name:       "file not found",
			err:        NewFileNotFoundError("sales.csv", nil),
			wantStatus: http.StatusNotFound,
			wantType:   TypeFileNotFound,
			wantExt:    map[string]interface{}{"stage": "load", "file": "sales.csv"},
		},
		{
			name:       "unsupported format",
			err:        NewFileFormatError("sales.parquet", "unsupported extension", nil),
			wantStatus: http.StatusUnsupportedMediaType,
			wantType:   TypeFileFormat,
		},
		{
			name:       "data quality",
			err:        fmt.Errorf("run: %w", NewDataQualityError("empty.csv", "dataset is empty after cleaning")),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeDataQuality,
			wantExt:    map[string]interface{}{"error_code": "DATA_QUALITY"},
		},
		{
			name:       "schema",
			err:        NewSchemaError(StageAggregate, "total_amount", "required column is missing"),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeSchema,
			wantExt:    map[string]interface{}{"column": "total_amount"},
		},
		{
			name:       "api error",
			err:        ErrValidation("granularity", "must be one of day week month quarter year"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", nil)
			rec := httptest.NewRecorder()

			handler.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/v1/analyses", body["instance"])
			for k, v := range tt.wantExt {
				assert.Equal(t, v, body[k], "extension %s", k)
			}
		})
	}
}

func TestProblemDetails_MarshalJSON_StandardFieldsWin(t *testing.T) {
	pd := NewProblemDetails(http.StatusBadRequest, TypeValidation, "Validation Failed", "bad", "/x").
		WithExtension("status", 999).
		WithExtension("trace_id", "abc")

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, float64(http.StatusBadRequest), body["status"])
	assert.Equal(t, "abc", body["trace_id"])
}

func TestErrorHandler_NotFound(t *testing.T) {
	handler := NewErrorHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()

	handler.NotFound(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), TypeNotFound)
}
