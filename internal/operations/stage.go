package operations

import (
	"context"
	"sync"
	"time"

	"salescli/pkg/contracts/domain"
)

// Stage IDs of the sales pipeline, in execution order
const (
	StageIDLoad      = "load"
	StageIDClean     = "clean"
	StageIDAggregate = "aggregate"
	StageIDReport    = "report"
)

// Stage represents a single step of a pipeline run
type Stage interface {
	// ID returns the unique identifier for this stage
	ID() string

	// Name returns the human-readable name for this stage
	Name() string

	// Execute runs the stage, reading its inputs from and writing its
	// outputs to the run state
	Execute(ctx context.Context, state *RunState) error
}

// StepStatus represents the current status of a stage
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepState represents the runtime state of a stage
type StepState struct {
	mu        sync.RWMutex
	ID        string
	Name      string
	Status    StepStatus
	StartTime *time.Time
	EndTime   *time.Time
	Progress  float64
	Message   string
	Error     error
	Metadata  map[string]interface{}
}

// NewStepState creates a new stage state with default values
func NewStepState(id, name string) *StepState {
	return &StepState{
		ID:       id,
		Name:     name,
		Status:   StepStatusPending,
		Metadata: make(map[string]interface{}),
	}
}

// Start marks the stage as active and sets the start time
func (s *StepState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StepStatusActive
	s.Progress = 0
}

// Complete marks the stage as completed and sets the end time
func (s *StepState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusCompleted
	s.Progress = 100
}

// Fail marks the stage as failed with the given error
func (s *StepState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusFailed
	s.Error = err
}

// Skip marks the stage as skipped with the given reason
func (s *StepState) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Status = StepStatusSkipped
	s.Message = reason
}

// SetMetadata records a value shown alongside the stage in snapshots
func (s *StepState) SetMetadata(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Metadata[key] = value
}

// Result converts the state into the externally visible stage result
func (s *StepState) Result() domain.StageResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := domain.StageResult{
		ID:     s.ID,
		Name:   s.Name,
		Status: string(s.Status),
	}
	if s.StartTime != nil && s.EndTime != nil {
		result.Duration = s.EndTime.Sub(*s.StartTime)
	}
	if s.Error != nil {
		result.Error = s.Error.Error()
	}
	return result
}

// metadataCopy returns a copy safe to hand to the broadcaster
func (s *StepState) metadataCopy() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metadata := make(map[string]interface{}, len(s.Metadata))
	for k, v := range s.Metadata {
		metadata[k] = v
	}
	return metadata
}

// Duration returns the duration of the stage execution
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

// BaseStage provides the identity part of Stage implementations
type BaseStage struct {
	id   string
	name string
}

// NewBaseStage creates a new base stage
func NewBaseStage(id, name string) BaseStage {
	return BaseStage{id: id, name: name}
}

// ID returns the stage ID
func (b *BaseStage) ID() string {
	return b.id
}

// Name returns the stage name
func (b *BaseStage) Name() string {
	return b.name
}
