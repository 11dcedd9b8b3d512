package operations

import (
	"salescli/pkg/contracts/domain"
)

// WebSocketHub interface for sending WebSocket messages
type WebSocketHub interface {
	BroadcastUpdate(eventType, runID, status string, data interface{})
}

// RunFilter selects runs from a RunStore
type RunFilter struct {
	Status domain.RunStatus
	Offset int
	Limit  int
}

// RunStore keeps the results of finished and in-flight runs
type RunStore interface {
	Save(run *domain.Run) error
	Get(id string) (*domain.Run, error)
	List(filter RunFilter) ([]*domain.Run, int, error)
}
