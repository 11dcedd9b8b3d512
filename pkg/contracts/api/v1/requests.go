// Package api contains the HTTP API contracts of the sales report service.
// Version v1 represents the current stable API version.
package api

import (
	"salescli/pkg/contracts/domain"
)

// PaginationRequest represents common pagination parameters
type PaginationRequest struct {
	Page     int `json:"page" query:"page" validate:"min=1"`
	PageSize int `json:"page_size" query:"page_size" validate:"min=1,max=100"`
}

// AnalysisRequest holds the optional form fields sent with an uploaded
// sales file. Empty fields fall back to the server configuration.
type AnalysisRequest struct {
	Policy      string   `json:"policy" form:"policy" validate:"omitempty,oneof=drop fill_zero fill_forward fill_median fill_mode"`
	Granularity string   `json:"granularity" form:"granularity" validate:"omitempty,oneof=day week month quarter year"`
	FillGaps    bool     `json:"fill_gaps" form:"fill_gaps"`
	Sheet       string   `json:"sheet" form:"sheet"`
	Charts      []string `json:"charts" form:"charts" validate:"max=10,dive,required,max=32"`
	Exports     []string `json:"exports" form:"exports" validate:"max=10,dive,required,max=32"`
	ChartFormat string   `json:"chart_format" form:"chart_format" validate:"omitempty,max=8"`
}

// AnalysisListRequest filters the run listing
type AnalysisListRequest struct {
	PaginationRequest
	Status string `json:"status" query:"status" validate:"omitempty,oneof=pending running completed partial failed"`
}

// AnalysisResponse wraps a run for the HTTP API
type AnalysisResponse struct {
	Run   *domain.Run `json:"run"`
	Links Links       `json:"links"`
}

// AnalysisListResponse is one page of runs
type AnalysisListResponse struct {
	Runs     []*domain.Run `json:"runs"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// Links lists related resources of a run
type Links struct {
	Self      string            `json:"self"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
}
