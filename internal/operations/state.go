package operations

import (
	"sync"
	"time"

	"salescli/internal/config"
	"salescli/pkg/contracts/domain"
)

// RunState represents the complete state of one pipeline run. Stages
// hand their outputs to the next stage through it.
type RunState struct {
	mu sync.RWMutex

	ID        string
	Input     string
	OutputDir string
	Config    *config.Config
	Status    domain.RunStatus
	StartTime time.Time
	EndTime   *time.Time
	Error     error

	order []string
	steps map[string]*StepState

	Dataset *domain.Dataset
	Cleaned *domain.Dataset
	Clean   *domain.CleanReport
	Metrics *domain.MetricSet
	Report  *domain.ReportResult
}

// NewRunState creates a pending run state
func NewRunState(id, input string, cfg *config.Config) *RunState {
	return &RunState{
		ID:        id,
		Input:     input,
		OutputDir: cfg.Report.OutputDir,
		Config:    cfg,
		Status:    domain.RunStatusPending,
		StartTime: time.Now(),
		steps:     make(map[string]*StepState),
	}
}

// Start marks the run as running
func (r *RunState) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = domain.RunStatusRunning
	r.StartTime = time.Now()
}

// Complete marks the run as completed, or partial when any artifact failed
func (r *RunState) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = domain.RunStatusCompleted
	if r.Report != nil && r.Report.Partial() {
		r.Status = domain.RunStatusPartial
	}
}

// Fail marks the run as failed
func (r *RunState) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = domain.RunStatusFailed
	r.Error = err
}

// AddStage registers a stage state, preserving registration order
func (r *RunState) AddStage(state *StepState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.steps[state.ID]; !exists {
		r.order = append(r.order, state.ID)
	}
	r.steps[state.ID] = state
}

// GetStage returns the state of a specific stage
func (r *RunState) GetStage(stageID string) *StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.steps[stageID]
}

// Stages returns the stage states in execution order
func (r *RunState) Stages() []*StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stages := make([]*StepState, len(r.order))
	for i, id := range r.order {
		stages[i] = r.steps[id]
	}
	return stages
}

// Duration returns the duration of the run
func (r *RunState) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	return time.Since(r.StartTime)
}

// ToRun converts the state into the result returned to callers
func (r *RunState) ToRun() *domain.Run {
	stages := r.Stages()

	r.mu.RLock()
	defer r.mu.RUnlock()

	run := &domain.Run{
		ID:          r.ID,
		Input:       r.Input,
		OutputDir:   r.OutputDir,
		Status:      r.Status,
		StartedAt:   r.StartTime,
		CompletedAt: r.EndTime,
		Stages:      make([]domain.StageResult, len(stages)),
		Clean:       r.Clean,
		Metrics:     r.Metrics,
		Report:      r.Report,
	}
	for i, s := range stages {
		run.Stages[i] = s.Result()
	}
	if r.Error != nil {
		run.Error = r.Error.Error()
	}
	return run
}

// SetLoaded stores the raw dataset produced by the load stage
func (r *RunState) SetLoaded(ds *domain.Dataset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Dataset = ds
}

// SetCleaned stores the cleaned dataset and its report
func (r *RunState) SetCleaned(ds *domain.Dataset, report domain.CleanReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Cleaned = ds
	r.Clean = &report
}

// SetMetrics stores the aggregated metric set
func (r *RunState) SetMetrics(m *domain.MetricSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Metrics = m
}

// SetReport stores the reporter result
func (r *RunState) SetReport(result domain.ReportResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Report = &result
}
