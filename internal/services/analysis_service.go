package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"salescli/internal/config"
	apperrors "salescli/internal/errors"
	"salescli/internal/operations"
	api "salescli/pkg/contracts/api/v1"
	"salescli/pkg/contracts/domain"
)

// PipelineRunner runs and looks up pipeline runs
type PipelineRunner interface {
	Run(ctx context.Context, req operations.RunRequest) (*domain.Run, error)
	GetRun(id string) (*domain.Run, error)
	ListRuns(filter operations.RunFilter) ([]*domain.Run, int, error)
}

// Upload is an input file received over HTTP
type Upload struct {
	Filename string
	Content  io.Reader
}

// AnalysisService turns uploads into pipeline runs
type AnalysisService struct {
	runner PipelineRunner
	base   *config.Config
	paths  *config.Paths
	logger *slog.Logger
	newID  func() string
}

// NewAnalysisService creates the service. base is never modified; every
// run works on a clone of it.
func NewAnalysisService(runner PipelineRunner, base *config.Config, paths *config.Paths, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		runner: runner,
		base:   base,
		paths:  paths,
		logger: logger.With(slog.String("service", "analysis")),
		newID:  func() string { return uuid.New().String() },
	}
}

// Analyze stores the upload and runs the pipeline on it. The run is
// detached from ctx cancellation so a client disconnect does not leave a
// half-written run behind. The returned run is non-nil whenever the
// pipeline started, even if err is not nil.
func (s *AnalysisService) Analyze(ctx context.Context, upload Upload, req api.AnalysisRequest) (*domain.Run, error) {
	name := filepath.Base(upload.Filename)
	if upload.Content == nil || name == "." || name == string(filepath.Separator) {
		return nil, apperrors.NewAppValidationError("an input file is required")
	}

	runID := s.newID()
	logger := s.logger.With(slog.String("run_id", runID), slog.String("filename", name))

	cfg, err := s.runConfig(runID, req)
	if err != nil {
		return nil, err
	}

	input, size, err := s.saveUpload(runID, name, upload.Content)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to store upload", slog.String("error", err.Error()))
		return nil, err
	}
	logger.InfoContext(ctx, "Upload stored",
		slog.String("path", input),
		slog.Int64("bytes", size),
		slog.String("policy", cfg.Cleaning.MissingPolicy),
		slog.String("granularity", cfg.Aggregation.Granularity))

	return s.runner.Run(context.WithoutCancel(ctx), operations.RunRequest{
		ID:     runID,
		Input:  input,
		Config: cfg,
	})
}

// runConfig applies the request overrides to a clone of the base config
func (s *AnalysisService) runConfig(runID string, req api.AnalysisRequest) (*config.Config, error) {
	cfg := s.base.Clone()

	if req.Policy != "" {
		cfg.Cleaning.MissingPolicy = req.Policy
	}
	if req.Granularity != "" {
		cfg.Aggregation.Granularity = req.Granularity
	}
	if req.FillGaps {
		cfg.Aggregation.FillGaps = true
	}
	if req.Sheet != "" {
		cfg.Input.Sheet = req.Sheet
	}
	if len(req.Charts) > 0 {
		cfg.Report.Charts = req.Charts
	}
	if len(req.Exports) > 0 {
		cfg.Report.Exports = req.Exports
	}
	if req.ChartFormat != "" {
		cfg.Report.ChartFormat = req.ChartFormat
	}

	// Uploads arrive in any supported format, detected from the extension
	cfg.Input.Format = "auto"
	cfg.Input.Path = ""
	cfg.Report.OutputDir = s.paths.RunDir(runID)

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewConfigError("invalid analysis options", err)
	}
	return cfg, nil
}

func (s *AnalysisService) saveUpload(runID, name string, content io.Reader) (string, int64, error) {
	if err := os.MkdirAll(s.paths.UploadsDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := s.paths.UploadPath(runID, name)
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload file: %w", err)
	}

	size, err := io.Copy(f, content)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write upload file: %w", err)
	}
	return path, size, nil
}

// Get returns a stored run
func (s *AnalysisService) Get(ctx context.Context, id string) (*domain.Run, error) {
	return s.runner.GetRun(id)
}

// List returns one page of runs and the total number of matches
func (s *AnalysisService) List(ctx context.Context, req api.AnalysisListRequest) ([]*domain.Run, int, error) {
	page, pageSize := req.Page, req.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	return s.runner.ListRuns(operations.RunFilter{
		Status: domain.RunStatus(req.Status),
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	})
}

// ArtifactPath resolves an artifact of a run to its file on disk
func (s *AnalysisService) ArtifactPath(ctx context.Context, runID, name string) (string, error) {
	run, err := s.runner.GetRun(runID)
	if err != nil {
		return "", err
	}
	if run.Report == nil {
		return "", apperrors.NewNotFoundError("artifact " + name)
	}

	for _, artifact := range run.Report.Artifacts {
		if artifact.Name != name {
			continue
		}
		// Artifacts never leave the run directory
		if !strings.HasPrefix(filepath.Clean(artifact.Path), filepath.Clean(run.OutputDir)+string(filepath.Separator)) {
			return "", apperrors.NewNotFoundError("artifact " + name)
		}
		if !config.FileExists(artifact.Path) {
			return "", apperrors.NewNotFoundError("artifact file " + name)
		}
		return artifact.Path, nil
	}
	return "", apperrors.NewNotFoundError("artifact " + name)
}
