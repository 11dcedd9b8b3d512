// Package exporter turns a computed MetricSet into report artifacts.
//
// The Reporter accepts a list of artifact requests and produces each one
// independently:
//
// Charts: trend (line), category (top N bars), distribution (histogram)
// and growth (bars around zero), rendered as PNG or SVG with go-chart.
//
// Exports: csv (long-format summary), xlsx (workbook with native Excel
// charts), json (metrics document), sqlite (summary, periods, categories
// and distribution tables) and dataset (the cleaned rows as CSV).
//
// A request that cannot be satisfied is reported as an ArtifactError in
// the result; the remaining requests still run.
//
// Example usage:
//
//	reporter := exporter.NewReporter(exporter.ReporterOptionsFromConfig(cfg.Report), logger)
//	result := reporter.Generate(ctx, exporter.ReportInput{
//		Metrics: metrics,
//		Clean:   &cleanReport,
//		Dataset: cleaned,
//	}, exporter.RequestsFromConfig(cfg.Report))
//	for _, f := range result.Failures {
//		logger.Warn("artifact failed", slog.String("error", f.Message))
//	}
package exporter
