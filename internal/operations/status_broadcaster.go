package operations

import (
	"log/slog"
	"sync"
	"time"

	"salescli/pkg/contracts/domain"
	"salescli/pkg/contracts/events"
)

// StatusBroadcaster is the single authority for run progress. It keeps one
// snapshot per run and broadcasts the complete snapshot after every change.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	runs    map[string]*events.RunSnapshot
	hub     WebSocketHub
	logger  *slog.Logger
	updates chan updateRequest
	stop    chan struct{}
	once    sync.Once
}

type updateRequest struct {
	runID      string
	updateFunc func(*events.RunSnapshot)
	done       chan struct{}
}

// NewStatusBroadcaster creates a new status broadcaster. hub may be nil,
// in which case snapshots are only kept in memory.
func NewStatusBroadcaster(hub WebSocketHub, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	sb := &StatusBroadcaster{
		runs:    make(map[string]*events.RunSnapshot),
		hub:     hub,
		logger:  logger.With(slog.String("component", "status_broadcaster")),
		updates: make(chan updateRequest, 100),
		stop:    make(chan struct{}),
	}

	go sb.processUpdates()

	return sb
}

// processUpdates handles all updates sequentially
func (sb *StatusBroadcaster) processUpdates() {
	for {
		select {
		case <-sb.stop:
			return
		case req := <-sb.updates:
			sb.handleUpdate(req)
		}
	}
}

func (sb *StatusBroadcaster) handleUpdate(req updateRequest) {
	defer close(req.done)

	sb.mu.Lock()
	snapshot, exists := sb.runs[req.runID]
	if !exists {
		now := time.Now()
		snapshot = &events.RunSnapshot{
			RunID:     req.runID,
			Status:    string(domain.RunStatusPending),
			StartedAt: now,
			Stages:    []events.StageSnapshot{},
		}
		sb.runs[req.runID] = snapshot
	}

	req.updateFunc(snapshot)
	snapshot.UpdatedAt = time.Now()

	if len(snapshot.Stages) > 0 {
		total := 0
		for _, stage := range snapshot.Stages {
			total += stage.Progress
		}
		snapshot.Progress = total / len(snapshot.Stages)
	}

	if isTerminal(snapshot.Status) && snapshot.CompletedAt == nil {
		now := time.Now()
		snapshot.CompletedAt = &now
	}

	copied := copySnapshot(snapshot)
	sb.mu.Unlock()

	sb.broadcast(copied)
}

func isTerminal(status string) bool {
	switch domain.RunStatus(status) {
	case domain.RunStatusCompleted, domain.RunStatusPartial, domain.RunStatusFailed:
		return true
	}
	return false
}

func copySnapshot(s *events.RunSnapshot) *events.RunSnapshot {
	c := *s
	c.Stages = make([]events.StageSnapshot, len(s.Stages))
	copy(c.Stages, s.Stages)
	return &c
}

func (sb *StatusBroadcaster) broadcast(snapshot *events.RunSnapshot) {
	if sb.hub == nil {
		return
	}

	sb.logger.Debug("broadcasting run snapshot",
		slog.String("run_id", snapshot.RunID),
		slog.String("status", snapshot.Status),
		slog.Int("progress", snapshot.Progress),
		slog.String("current_stage", snapshot.CurrentStage))

	sb.hub.BroadcastUpdate(string(events.MessageTypeRunSnapshot), snapshot.RunID, snapshot.Status, snapshot)
}

// UpdateStatus applies updateFunc to the run snapshot and waits until the
// resulting snapshot has been broadcast.
func (sb *StatusBroadcaster) UpdateStatus(runID string, updateFunc func(*events.RunSnapshot)) {
	req := updateRequest{
		runID:      runID,
		updateFunc: updateFunc,
		done:       make(chan struct{}),
	}

	select {
	case sb.updates <- req:
		select {
		case <-req.done:
		case <-sb.stop:
		}
	case <-sb.stop:
	}
}

// CreateRun initializes a run snapshot with its stages
func (sb *StatusBroadcaster) CreateRun(runID, input string, stages []Stage) {
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		snapshot.Input = input
		snapshot.Status = string(domain.RunStatusPending)
		snapshot.Stages = make([]events.StageSnapshot, len(stages))
		for i, stage := range stages {
			snapshot.Stages[i] = events.StageSnapshot{
				ID:     stage.ID(),
				Name:   stage.Name(),
				Status: string(StepStatusPending),
			}
		}
	})
}

// StartRun marks a run as running
func (sb *StatusBroadcaster) StartRun(runID string) {
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		snapshot.Status = string(domain.RunStatusRunning)
	})
}

// StartStage marks a stage as running
func (sb *StatusBroadcaster) StartStage(runID, stageID string) {
	sb.updateStage(runID, stageID, func(snapshot *events.RunSnapshot, stage *events.StageSnapshot) {
		stage.Status = string(StepStatusActive)
		snapshot.CurrentStage = stage.Name
	})
}

// CompleteStage marks a stage as completed and attaches its metadata
func (sb *StatusBroadcaster) CompleteStage(runID, stageID string, metadata map[string]interface{}) {
	sb.updateStage(runID, stageID, func(_ *events.RunSnapshot, stage *events.StageSnapshot) {
		stage.Status = string(StepStatusCompleted)
		stage.Progress = 100
		stage.Metadata = metadata
	})
}

// FailStage marks a stage as failed
func (sb *StatusBroadcaster) FailStage(runID, stageID string, err error) {
	sb.updateStage(runID, stageID, func(_ *events.RunSnapshot, stage *events.StageSnapshot) {
		stage.Status = string(StepStatusFailed)
		stage.Error = err.Error()
	})
}

// SkipStage marks a stage as skipped
func (sb *StatusBroadcaster) SkipStage(runID, stageID string) {
	sb.updateStage(runID, stageID, func(_ *events.RunSnapshot, stage *events.StageSnapshot) {
		stage.Status = string(StepStatusSkipped)
	})
}

func (sb *StatusBroadcaster) updateStage(runID, stageID string, fn func(*events.RunSnapshot, *events.StageSnapshot)) {
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		for i := range snapshot.Stages {
			if snapshot.Stages[i].ID == stageID {
				fn(snapshot, &snapshot.Stages[i])
				return
			}
		}
		sb.logger.Warn("stage not found in run snapshot",
			slog.String("run_id", runID),
			slog.String("stage_id", stageID))
	})
}

// FinishRun records the terminal status of a run
func (sb *StatusBroadcaster) FinishRun(runID string, status domain.RunStatus, err error) {
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		snapshot.Status = string(status)
		snapshot.CurrentStage = ""
		if err != nil {
			snapshot.Error = err.Error()
		}
	})
}

// GetSnapshot returns a copy of the current snapshot for a run
func (sb *StatusBroadcaster) GetSnapshot(runID string) (*events.RunSnapshot, bool) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshot, exists := sb.runs[runID]
	if !exists {
		return nil, false
	}
	return copySnapshot(snapshot), true
}

// CleanupOldRuns removes finished runs older than maxAge
func (sb *StatusBroadcaster) CleanupOldRuns(maxAge time.Duration) int {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, snapshot := range sb.runs {
		if isTerminal(snapshot.Status) && snapshot.CompletedAt != nil && now.Sub(*snapshot.CompletedAt) > maxAge {
			delete(sb.runs, id)
			removed++
		}
	}
	return removed
}

// Stop shuts down the update loop. Later updates are dropped.
func (sb *StatusBroadcaster) Stop() {
	sb.once.Do(func() { close(sb.stop) })
}
