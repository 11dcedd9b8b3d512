package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "salescli/internal/errors"
	api "salescli/pkg/contracts/api/v1"
)

func TestValidateStruct(t *testing.T) {
	v := NewValidator(discardLogger())

	tests := []struct {
		name       string
		req        api.AnalysisRequest
		wantFields []string
	}{
		{
			name: "empty request is valid",
			req:  api.AnalysisRequest{},
		},
		{
			name: "full request",
			req: api.AnalysisRequest{
				Policy:      "fill_median",
				Granularity: "week",
				Charts:      []string{"trend", "category"},
				Exports:     []string{"csv"},
				ChartFormat: "svg",
			},
		},
		{
			name:       "bad granularity",
			req:        api.AnalysisRequest{Granularity: "hourly"},
			wantFields: []string{"granularity"},
		},
		{
			name:       "bad policy and empty chart name",
			req:        api.AnalysisRequest{Policy: "guess", Charts: []string{""}},
			wantFields: []string{"policy", "charts[0]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.req)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var apiErr *apperrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)
			details, ok := apiErr.Details.([]apperrors.ValidationError)
			require.True(t, ok)
			fields := make([]string, len(details))
			for i, d := range details {
				fields[i] = d.Field
				assert.NotEmpty(t, d.Message)
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestValidateVarFilename(t *testing.T) {
	v := NewValidator(discardLogger())

	for _, name := range []string{"sales_trend.png", "metrics.json", "cleaned_data.csv"} {
		assert.NoError(t, v.ValidateVar("name", name, "filename"), name)
	}
	for _, name := range []string{"", "..", "../etc/passwd", `a\b`, "dir/file"} {
		err := v.ValidateVar("name", name, "filename")
		var apiErr *apperrors.APIError
		require.ErrorAs(t, err, &apiErr, name)
		detail := apiErr.Details.(apperrors.ValidationError)
		assert.Equal(t, "name", detail.Field)
	}
}

func TestContentTypeValidator(t *testing.T) {
	h := ContentTypeValidator(apperrors.NewErrorHandler(discardLogger()), "multipart/form-data")(okHandler)

	tests := []struct {
		name        string
		method      string
		contentType string
		wantStatus  int
	}{
		{"multipart accepted", http.MethodPost, "multipart/form-data; boundary=x", http.StatusOK},
		{"json rejected", http.MethodPost, "application/json", http.StatusUnsupportedMediaType},
		{"missing rejected", http.MethodPost, "", http.StatusUnsupportedMediaType},
		{"get skipped", http.MethodGet, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/analyses", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 20, false},
		{"page_size=5", 5, false},
		{"page_size=abc", 0, true},
		{"page_size=500", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses?"+tt.query, nil)
			got, err := QueryInt(req, "page_size", 1, 100, 20)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
