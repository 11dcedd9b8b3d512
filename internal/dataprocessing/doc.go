// Package dataprocessing turns a raw sales file into business metrics.
// It holds the first three stages of the pipeline:
//
// 1. Loader: reads CSV, TSV, delimited text or XLSX into a string-typed Dataset
// 2. Cleaner: coerces number and date columns, applies the missing-value policy and drops duplicates
// 3. Aggregator: computes totals, averages, per-period trend, growth and the order value histogram
//
// # Usage
//
//	loader := dataprocessing.NewLoader(cfg.Input, cfg.Cleaning.NullTokens, logger)
//	raw, err := loader.Load(ctx, "sales.csv")
//	if err != nil {
//	    return err
//	}
//
//	cleaner := dataprocessing.NewCleaner(dataprocessing.CleanerOptionsFromConfig(cfg), logger)
//	clean, report, err := cleaner.Clean(ctx, raw)
//	if err != nil {
//	    return err
//	}
//
//	aggregator := dataprocessing.NewAggregator(dataprocessing.AggregatorOptionsFromConfig(cfg), logger)
//	metrics, err := aggregator.Aggregate(ctx, clean)
//
// Errors are *errors.AppError values typed FILE_NOT_FOUND, FILE_FORMAT,
// DATA_QUALITY or SCHEMA and carry the failing stage plus the offending
// file or column.
package dataprocessing
