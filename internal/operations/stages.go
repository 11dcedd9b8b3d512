package operations

import (
	"context"
	"log/slog"

	"salescli/internal/config"
	"salescli/internal/dataprocessing"
	apperrors "salescli/internal/errors"
	"salescli/internal/exporter"
	"salescli/pkg/contracts/domain"
)

// LoadStage reads the input file into a raw dataset
type LoadStage struct {
	BaseStage
	loader *dataprocessing.Loader
}

// NewLoadStage creates the load stage
func NewLoadStage(loader *dataprocessing.Loader) *LoadStage {
	return &LoadStage{BaseStage: NewBaseStage(StageIDLoad, "Load"), loader: loader}
}

// Execute implements Stage
func (s *LoadStage) Execute(ctx context.Context, state *RunState) error {
	ds, err := s.loader.Load(ctx, state.Input)
	if err != nil {
		return err
	}
	state.SetLoaded(ds)

	step := state.GetStage(s.ID())
	step.SetMetadata("rows", ds.Len())
	step.SetMetadata("columns", len(ds.Columns))
	return nil
}

// CleanStage applies types, missing-value policies and deduplication
type CleanStage struct {
	BaseStage
	cleaner *dataprocessing.Cleaner
}

// NewCleanStage creates the clean stage
func NewCleanStage(cleaner *dataprocessing.Cleaner) *CleanStage {
	return &CleanStage{BaseStage: NewBaseStage(StageIDClean, "Clean"), cleaner: cleaner}
}

// Execute implements Stage
func (s *CleanStage) Execute(ctx context.Context, state *RunState) error {
	cleaned, report, err := s.cleaner.Clean(ctx, state.Dataset)
	// the report is stored even when cleaning fails
	state.SetCleaned(cleaned, report)
	if err != nil {
		return err
	}

	step := state.GetStage(s.ID())
	step.SetMetadata("rows", report.OutputRows)
	step.SetMetadata("duplicates_removed", report.DuplicatesRemoved)
	step.SetMetadata("rows_dropped", report.RowsDropped())
	return nil
}

// AggregateStage computes the metric set
type AggregateStage struct {
	BaseStage
	aggregator *dataprocessing.Aggregator
}

// NewAggregateStage creates the aggregate stage
func NewAggregateStage(aggregator *dataprocessing.Aggregator) *AggregateStage {
	return &AggregateStage{BaseStage: NewBaseStage(StageIDAggregate, "Aggregate"), aggregator: aggregator}
}

// Execute implements Stage
func (s *AggregateStage) Execute(ctx context.Context, state *RunState) error {
	metrics, err := s.aggregator.Aggregate(ctx, state.Cleaned)
	if err != nil {
		return err
	}
	state.SetMetrics(metrics)

	step := state.GetStage(s.ID())
	step.SetMetadata("periods", len(metrics.Periods))
	step.SetMetadata("categories", len(metrics.Categories))
	step.SetMetadata("total_sales", metrics.Summary.TotalSales)
	return nil
}

// ReportStage writes the requested artifacts. Artifact failures are
// recorded in the result and never fail the stage.
type ReportStage struct {
	BaseStage
	reporter *exporter.Reporter
	requests []domain.ArtifactRequest
}

// NewReportStage creates the report stage
func NewReportStage(reporter *exporter.Reporter, requests []domain.ArtifactRequest) *ReportStage {
	return &ReportStage{BaseStage: NewBaseStage(StageIDReport, "Report"), reporter: reporter, requests: requests}
}

// Execute implements Stage
func (s *ReportStage) Execute(ctx context.Context, state *RunState) error {
	if state.Metrics == nil {
		return apperrors.NewAppError(apperrors.ErrTypeArtifact, apperrors.StageReport, "no metrics to report", nil)
	}
	result := s.reporter.Generate(ctx, exporter.ReportInput{
		Metrics: state.Metrics,
		Clean:   state.Clean,
		Dataset: state.Cleaned,
	}, s.requests)
	state.SetReport(result)

	step := state.GetStage(s.ID())
	step.SetMetadata("artifacts", len(result.Artifacts))
	step.SetMetadata("failures", len(result.Failures))
	return nil
}

// NewPipeline builds the four stages from the configuration. Each run
// gets its own stages so per-request overrides never leak between runs.
func NewPipeline(cfg *config.Config, logger *slog.Logger) []Stage {
	loader := dataprocessing.NewLoader(cfg.Input, cfg.Cleaning.NullTokens, logger)
	cleaner := dataprocessing.NewCleaner(dataprocessing.CleanerOptionsFromConfig(cfg), logger)
	aggregator := dataprocessing.NewAggregator(dataprocessing.AggregatorOptionsFromConfig(cfg), logger)
	reporter := exporter.NewReporter(exporter.ReporterOptionsFromConfig(cfg.Report), logger)

	return []Stage{
		NewLoadStage(loader),
		NewCleanStage(cleaner),
		NewAggregateStage(aggregator),
		NewReportStage(reporter, exporter.RequestsFromConfig(cfg.Report)),
	}
}
