// Package config loads the configuration shared by the sales-report CLI and
// the sales-web server.
//
// # Configuration Sources
//
// Values are resolved in this order, later sources winning:
//
//	1. Default()
//	2. A YAML file (-config flag, or sales.yaml / configs/sales.yaml)
//	3. SALES_* environment variables
//
// # Environment Variables
//
// Variables are namespaced by section:
//
//	SALES_CLEANING_MISSING_POLICY=fill_median
//	SALES_AGGREGATION_GRANULARITY=week
//	SALES_REPORT_CHARTS=trend,category
//	SALES_SERVER_PORT=8080
//	SALES_LOGGING_LEVEL=debug
//
// # Path Management
//
// GetPaths resolves the run and upload directories below the report output
// directory. The server writes each run's artifacts to Paths.RunDir(runID).
//
//	paths, err := config.GetPaths(cfg)
//	if err != nil {
//	    return err
//	}
//	if err := paths.EnsureDirectories(); err != nil {
//	    return err
//	}
//
// Config values are validated with go-playground/validator struct tags.
// Unknown chart types and export formats pass validation and surface later
// as artifact failures.
package config
