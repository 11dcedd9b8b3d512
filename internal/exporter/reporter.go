package exporter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"salescli/internal/config"
	apperrors "salescli/internal/errors"
	"salescli/pkg/contracts/domain"
)

// Export formats the reporter can write
const (
	ExportCSV     = "csv"
	ExportXLSX    = "xlsx"
	ExportJSON    = "json"
	ExportSQLite  = "sqlite"
	ExportDataset = "dataset"
)

// Artifact file names, fixed so repeated runs replace earlier output
var (
	chartFileNames = map[string]string{
		ChartTrend:        "sales_trend",
		ChartCategory:     "category_sales",
		ChartDistribution: "order_distribution",
		ChartGrowth:       "growth_rate",
	}
	exportFileNames = map[string]string{
		ExportCSV:     "sales_summary.csv",
		ExportXLSX:    "sales_report.xlsx",
		ExportJSON:    "metrics.json",
		ExportSQLite:  "metrics.db",
		ExportDataset: "cleaned_data.csv",
	}
)

// ReportInput is everything the reporter reads. Metrics is required;
// Clean and Dataset enrich the exports when present.
type ReportInput struct {
	Metrics *domain.MetricSet
	Clean   *domain.CleanReport
	Dataset *domain.Dataset
}

// ReporterOptions configures artifact generation
type ReporterOptions struct {
	OutputDir     string
	TopCategories int
	SampleRows    int
}

// Reporter renders charts and exports from a MetricSet
type Reporter struct {
	opts   ReporterOptions
	csv    *CSVWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewReporter creates a reporter writing into opts.OutputDir
func NewReporter(opts ReporterOptions, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopCategories <= 0 {
		opts.TopCategories = 10
	}
	logger = logger.With(slog.String("component", "reporter"))
	return &Reporter{
		opts:   opts,
		csv:    NewCSVWriter(logger),
		logger: logger,
		now:    time.Now,
	}
}

// ReporterOptionsFromConfig maps the report section of the configuration
func ReporterOptionsFromConfig(cfg config.ReportConfig) ReporterOptions {
	return ReporterOptions{
		OutputDir:     cfg.OutputDir,
		TopCategories: cfg.TopCategories,
		SampleRows:    cfg.SampleRows,
	}
}

// RequestsFromConfig turns the configured chart and export lists into
// artifact requests, charts first.
func RequestsFromConfig(cfg config.ReportConfig) []domain.ArtifactRequest {
	format := cfg.ChartFormat
	if format == "" {
		format = ImagePNG
	}
	requests := make([]domain.ArtifactRequest, 0, len(cfg.Charts)+len(cfg.Exports))
	for _, c := range cfg.Charts {
		requests = append(requests, domain.ArtifactRequest{Kind: domain.ArtifactKindChart, Type: c, Format: format})
	}
	for _, e := range cfg.Exports {
		requests = append(requests, domain.ArtifactRequest{Kind: domain.ArtifactKindExport, Type: e})
	}
	return requests
}

// Generate produces every requested artifact. A failing artifact is
// recorded as an ArtifactError and does not stop its siblings.
func (r *Reporter) Generate(ctx context.Context, in ReportInput, requests []domain.ArtifactRequest) domain.ReportResult {
	result := domain.ReportResult{
		Artifacts: make([]domain.Artifact, 0, len(requests)),
	}

	fail := func(req domain.ArtifactRequest, err error) {
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) || appErr.Type != apperrors.ErrTypeArtifact {
			appErr = apperrors.NewArtifactError(req.Name(), "generation failed", err)
		}
		r.logger.WarnContext(ctx, "Artifact failed",
			slog.String("artifact", req.Name()),
			slog.String("error", appErr.Error()))
		result.Failures = append(result.Failures, domain.ArtifactFailure{
			Request: req,
			Err:     appErr,
			Message: appErr.Error(),
		})
	}

	if in.Metrics == nil {
		for _, req := range requests {
			fail(req, apperrors.NewArtifactError(req.Name(), "no metrics to report", nil))
		}
		return result
	}

	if err := os.MkdirAll(r.opts.OutputDir, 0755); err != nil {
		for _, req := range requests {
			fail(req, apperrors.NewArtifactError(req.Name(), "cannot create output directory", err).
				WithContext("file", r.opts.OutputDir))
		}
		return result
	}

	r.logger.InfoContext(ctx, "Generating report",
		slog.String("output_dir", r.opts.OutputDir),
		slog.Int("requested", len(requests)))

	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			fail(req, err)
			continue
		}
		artifact, err := r.generateOne(ctx, in, req)
		if err != nil {
			fail(req, err)
			continue
		}
		r.logger.InfoContext(ctx, "Artifact written",
			slog.String("artifact", artifact.Name),
			slog.String("path", artifact.Path),
			slog.Int64("bytes", artifact.Bytes))
		result.Artifacts = append(result.Artifacts, artifact)
	}

	r.logger.InfoContext(ctx, "Report generated",
		slog.Int("artifacts", len(result.Artifacts)),
		slog.Int("failures", len(result.Failures)))
	return result
}

func (r *Reporter) generateOne(ctx context.Context, in ReportInput, req domain.ArtifactRequest) (domain.Artifact, error) {
	var (
		name   string
		format string
		write  func(path string) error
	)

	switch req.Kind {
	case domain.ArtifactKindChart:
		render, ok := chartRenderers[req.Type]
		if !ok {
			return domain.Artifact{}, apperrors.NewArtifactError(req.Name(), "unsupported chart type", nil).
				WithContext("type", req.Type)
		}
		format = req.Format
		if format == "" {
			format = ImagePNG
		}
		if _, err := rendererFor(format); err != nil {
			return domain.Artifact{}, apperrors.NewArtifactError(req.Name(), "unsupported chart format", err).
				WithContext("format", format)
		}
		name = chartFileNames[req.Type] + "." + format
		opts := ChartOptions{Format: format, TopCategories: r.opts.TopCategories}
		write = func(path string) error {
			return writeChart(path, in.Metrics, render, opts)
		}

	case domain.ArtifactKindExport:
		fileName, ok := exportFileNames[req.Type]
		if !ok {
			return domain.Artifact{}, apperrors.NewArtifactError(req.Name(), "unsupported export format", nil).
				WithContext("type", req.Type)
		}
		name, format = fileName, req.Type
		write = r.exportWriter(ctx, in, req.Type)
		if write == nil {
			return domain.Artifact{}, apperrors.NewArtifactError(req.Name(), "no cleaned dataset available", nil)
		}

	default:
		return domain.Artifact{}, apperrors.NewArtifactError(req.Name(), "unknown artifact kind", nil)
	}

	path := filepath.Join(r.opts.OutputDir, name)
	size, err := r.writeAtomic(path, write)
	if err != nil {
		return domain.Artifact{}, apperrors.NewArtifactError(req.Name(), "write failed", err).
			WithContext("file", path)
	}

	return domain.Artifact{
		Name:      name,
		Kind:      req.Kind,
		Type:      req.Type,
		Format:    format,
		Path:      path,
		Bytes:     size,
		CreatedAt: r.now().UTC(),
	}, nil
}

func (r *Reporter) exportWriter(ctx context.Context, in ReportInput, exportType string) func(string) error {
	switch exportType {
	case ExportCSV:
		return func(path string) error {
			return r.csv.WriteCSV(path, WriteOptions{
				Headers:   SummaryHeaders,
				Records:   SummaryRows(in.Metrics, in.Clean),
				BOMPrefix: true,
			})
		}
	case ExportXLSX:
		return func(path string) error {
			return WriteWorkbook(path, in, WorkbookOptions{
				TopCategories: r.opts.TopCategories,
				SampleRows:    r.opts.SampleRows,
			})
		}
	case ExportJSON:
		return func(path string) error {
			return WriteJSON(path, NewMetricsDocument(in, r.now()))
		}
	case ExportSQLite:
		return func(path string) error {
			return WriteSQLite(ctx, path, in.Metrics)
		}
	case ExportDataset:
		if in.Dataset == nil {
			return nil
		}
		return func(path string) error {
			return writeDatasetCSV(ctx, r.csv, path, in.Dataset)
		}
	}
	return nil
}

// writeAtomic writes to a temporary sibling and renames it over path so a
// failed write never leaves a truncated artifact behind. The temporary name
// keeps the extension because excelize refuses unknown ones.
func (r *Reporter) writeAtomic(path string, write func(string) error) (int64, error) {
	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	_ = os.Remove(tmp)

	if err := write(tmp); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}

	info, err := os.Stat(tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return info.Size(), nil
}

func writeChart(path string, m *domain.MetricSet, render ChartRenderer, opts ChartOptions) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	buf := bufio.NewWriter(file)
	if err := render(buf, m, opts); err != nil {
		file.Close()
		return err
	}
	if err := buf.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
