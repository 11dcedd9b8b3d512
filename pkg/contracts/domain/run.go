package domain

import "time"

// RunStatus is the lifecycle state of one pipeline run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// StageResult records one stage of a run
type StageResult struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Run is the externally visible result of a pipeline execution
type Run struct {
	ID          string        `json:"id"`
	Input       string        `json:"input"`
	OutputDir   string        `json:"output_dir"`
	Status      RunStatus     `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Stages      []StageResult `json:"stages"`
	Clean       *CleanReport  `json:"clean,omitempty"`
	Metrics     *MetricSet    `json:"metrics,omitempty"`
	Report      *ReportResult `json:"report,omitempty"`
	Error       string        `json:"error,omitempty"`
}
