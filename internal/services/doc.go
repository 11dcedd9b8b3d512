// Package services implements the business logic behind the HTTP handlers of
// sales-web. Handlers parse and validate requests; services turn them into
// pipeline runs and look up stored results.
//
// # Services
//
//	AnalysisService  stores an uploaded file, derives the per-run
//	                 configuration and runs the pipeline synchronously
//	HealthService    health, readiness, liveness and version reports
//
// # Per-run configuration
//
// Every analysis starts from a clone of the server configuration. Form
// overrides (policy, granularity, charts, exports, ...) only touch the
// clone, and artifacts are written below the run's own directory:
//
//	<output_dir>/runs/<run_id>/
//
// Uploaded inputs are kept under <output_dir>/uploads so a run can be
// reproduced from the same bytes.
//
// # Errors
//
// Services return *errors.AppError values; the transport layer maps their
// type to an RFC 7807 problem.
package services
