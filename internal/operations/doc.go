// Package operations runs the sales pipeline: Load, Clean, Aggregate and
// Report, strictly in that order on a single goroutine.
//
// Core Components:
//
// Manager: executes the stages of one run, wraps each stage in a tracing
// span with its own timeout, records business metrics and stores the
// resulting domain.Run.
//
// Stage: one unit of work. Stages exchange their outputs through the
// RunState; a failing stage aborts the run and the remaining stages are
// marked skipped. The report stage never fails the run: individual
// artifact failures turn the run status into "partial".
//
// StatusBroadcaster: keeps a snapshot per run and pushes the complete
// snapshot to the WebSocket hub after every change.
//
// Example usage:
//
//	manager := operations.NewManager(operations.NewMemoryRunStore(), nil, nil, logger)
//	run, err := manager.Run(ctx, operations.RunRequest{
//		Input:  "sales.csv",
//		Config: cfg,
//	})
package operations
