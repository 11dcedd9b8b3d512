package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"salescli/internal/config"
	apperrors "salescli/internal/errors"
	"salescli/internal/infrastructure"
	"salescli/pkg/contracts/domain"
)

// StageFactory builds the stages of one run from its configuration
type StageFactory func(cfg *config.Config, logger *slog.Logger) []Stage

// RunRequest describes one pipeline run
type RunRequest struct {
	// ID is generated when empty
	ID     string
	Input  string
	Config *config.Config
}

// Manager runs the pipeline stages strictly in order. A run never
// re-enters an earlier stage, and the first failing stage aborts it.
type Manager struct {
	config      *Config
	store       RunStore
	broadcaster *StatusBroadcaster
	tracer      *RunTracer
	logger      *slog.Logger
	newStages   StageFactory
}

// NewManager creates a pipeline manager. store and broadcaster are
// optional; tracer defaults to the global tracer with no-op metrics.
func NewManager(store RunStore, broadcaster *StatusBroadcaster, tracer *RunTracer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer, _ = NewRunTracer(nil)
	}
	return &Manager{
		config:      NewConfig(),
		store:       store,
		broadcaster: broadcaster,
		tracer:      tracer,
		logger:      logger.With(slog.String("component", "pipeline")),
		newStages:   NewPipeline,
	}
}

// SetConfig updates the execution configuration
func (m *Manager) SetConfig(cfg *Config) {
	if cfg != nil {
		m.config = cfg
	}
}

// SetStageFactory replaces the default four-stage pipeline
func (m *Manager) SetStageFactory(factory StageFactory) {
	if factory != nil {
		m.newStages = factory
	}
}

// Broadcaster returns the status broadcaster, or nil
func (m *Manager) Broadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// Run executes one pipeline run synchronously. The returned run is never
// nil once the request is valid, even when err is not.
func (m *Manager) Run(ctx context.Context, req RunRequest) (*domain.Run, error) {
	if req.Config == nil {
		return nil, apperrors.NewConfigError("run request has no configuration", nil)
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	ctx = infrastructure.EnsureTraceID(ctx)
	logger := m.logger.With(
		slog.String("run_id", req.ID),
		slog.String("input", req.Input))

	stages := m.newStages(req.Config, logger)
	state := NewRunState(req.ID, req.Input, req.Config)
	for _, stage := range stages {
		state.AddStage(NewStepState(stage.ID(), stage.Name()))
	}
	m.save(ctx, logger, state)
	if m.broadcaster != nil {
		m.broadcaster.CreateRun(req.ID, req.Input, stages)
	}

	ctx, span := m.tracer.TraceRun(ctx, req.ID, req.Input)
	state.Start()
	if m.broadcaster != nil {
		m.broadcaster.StartRun(req.ID)
	}
	logger.InfoContext(ctx, "Run started", slog.Int("stage_count", len(stages)))

	err := m.executeSequential(ctx, logger, state, stages)

	m.tracer.RecordRows(ctx, state)
	m.tracer.RecordReport(ctx, state.Report)
	if err != nil {
		state.Fail(err)
	} else {
		state.Complete()
	}
	m.tracer.RecordRunCompletion(ctx, span, state.Status, state.Duration(), err)
	if m.broadcaster != nil {
		m.broadcaster.FinishRun(req.ID, state.Status, err)
	}

	run := state.ToRun()
	m.save(ctx, logger, state)

	if err != nil {
		logger.ErrorContext(ctx, "Run failed",
			slog.String("error_type", string(apperrors.TypeOf(err))),
			slog.String("error", err.Error()),
			slog.Duration("duration", state.Duration()))
	} else {
		logger.InfoContext(ctx, "Run finished",
			slog.String("status", string(run.Status)),
			slog.Duration("duration", state.Duration()))
	}
	return run, err
}

// executeSequential runs stages one by one. Stages after a failure are
// marked skipped.
func (m *Manager) executeSequential(ctx context.Context, logger *slog.Logger, state *RunState, stages []Stage) error {
	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			m.skipRemaining(state, stages[i:])
			return fmt.Errorf("run cancelled before stage %s: %w", stage.ID(), err)
		}

		if err := m.executeStage(ctx, logger, state, stage); err != nil {
			m.skipRemaining(state, stages[i+1:])
			return err
		}
	}
	return nil
}

func (m *Manager) executeStage(ctx context.Context, logger *slog.Logger, state *RunState, stage Stage) error {
	step := state.GetStage(stage.ID())
	step.Start()
	if m.broadcaster != nil {
		m.broadcaster.StartStage(state.ID, stage.ID())
	}
	logger.InfoContext(ctx, "Stage started", slog.String("stage", stage.ID()))

	timeout := m.config.GetStageTimeout(stage.ID())
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	stageCtx, span := m.tracer.TraceStage(stageCtx, state.ID, stage.ID())

	start := time.Now()
	err := stage.Execute(stageCtx, state)
	duration := time.Since(start)

	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("stage %s timed out after %s: %w", stage.ID(), timeout, err)
	}
	m.tracer.RecordStageCompletion(stageCtx, span, stage.ID(), duration, err)

	if err != nil {
		step.Fail(err)
		if m.broadcaster != nil {
			m.broadcaster.FailStage(state.ID, stage.ID(), err)
		}
		logger.ErrorContext(ctx, "Stage failed",
			slog.String("stage", stage.ID()),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return err
	}

	step.Complete()
	metadata := step.metadataCopy()
	if m.broadcaster != nil {
		m.broadcaster.CompleteStage(state.ID, stage.ID(), metadata)
	}

	attrs := []any{slog.String("stage", stage.ID()), slog.Duration("duration", duration)}
	for k, v := range metadata {
		attrs = append(attrs, slog.Any(k, v))
	}
	logger.InfoContext(ctx, "Stage completed", attrs...)
	return nil
}

func (m *Manager) skipRemaining(state *RunState, stages []Stage) {
	for _, stage := range stages {
		state.GetStage(stage.ID()).Skip("previous stage failed")
		if m.broadcaster != nil {
			m.broadcaster.SkipStage(state.ID, stage.ID())
		}
	}
}

func (m *Manager) save(ctx context.Context, logger *slog.Logger, state *RunState) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(state.ToRun()); err != nil {
		logger.WarnContext(ctx, "Failed to store run", slog.String("error", err.Error()))
	}
}

// GetRun returns a stored run
func (m *Manager) GetRun(id string) (*domain.Run, error) {
	if m.store == nil {
		return nil, apperrors.NewNotFoundError("run " + id)
	}
	return m.store.Get(id)
}

// ListRuns returns stored runs matching filter and the total match count
func (m *Manager) ListRuns(filter RunFilter) ([]*domain.Run, int, error) {
	if m.store == nil {
		return nil, 0, nil
	}
	return m.store.List(filter)
}
