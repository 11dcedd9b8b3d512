package http

import (
	"context"

	"salescli/internal/services"
	api "salescli/pkg/contracts/api/v1"
	"salescli/pkg/contracts/domain"
)

// AnalysisServiceInterface defines the interface for the analysis service
type AnalysisServiceInterface interface {
	Analyze(ctx context.Context, upload services.Upload, req api.AnalysisRequest) (*domain.Run, error)
	Get(ctx context.Context, id string) (*domain.Run, error)
	List(ctx context.Context, req api.AnalysisListRequest) ([]*domain.Run, int, error)
	ArtifactPath(ctx context.Context, runID, name string) (string, error)
}
