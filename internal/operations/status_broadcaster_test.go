package operations

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salescli/pkg/contracts/domain"
	"salescli/pkg/contracts/events"
)

func testStages() []Stage {
	return []Stage{
		newFuncStage(StageIDLoad, nil),
		newFuncStage(StageIDClean, nil),
	}
}

func TestStatusBroadcaster_Lifecycle(t *testing.T) {
	hub := newMockHub()
	sb := NewStatusBroadcaster(hub, discardLogger())
	defer sb.Stop()

	sb.CreateRun("r1", "sales.csv", testStages())
	sb.StartRun("r1")
	sb.StartStage("r1", StageIDLoad)

	snapshot, ok := sb.GetSnapshot("r1")
	require.True(t, ok)
	assert.Equal(t, "running", snapshot.Status)
	assert.Equal(t, "sales.csv", snapshot.Input)
	assert.Equal(t, StageIDLoad, snapshot.CurrentStage)
	assert.Equal(t, 0, snapshot.Progress)

	sb.CompleteStage("r1", StageIDLoad, map[string]interface{}{"rows": 3})
	snapshot, _ = sb.GetSnapshot("r1")
	assert.Equal(t, 50, snapshot.Progress)
	assert.Equal(t, 3, snapshot.Stages[0].Metadata["rows"])

	sb.FailStage("r1", StageIDClean, errors.New("no rows"))
	sb.FinishRun("r1", domain.RunStatusFailed, errors.New("no rows"))

	snapshot, _ = sb.GetSnapshot("r1")
	assert.Equal(t, "failed", snapshot.Status)
	assert.Equal(t, "no rows", snapshot.Error)
	assert.Equal(t, "failed", snapshot.Stages[1].Status)
	assert.Empty(t, snapshot.CurrentStage)
	assert.NotNil(t, snapshot.CompletedAt)

	hub.AssertNumberOfCalls(t, "BroadcastUpdate", 6)
}

func TestStatusBroadcaster_SnapshotIsCopy(t *testing.T) {
	sb := NewStatusBroadcaster(nil, discardLogger())
	defer sb.Stop()

	sb.CreateRun("r1", "in.csv", testStages())
	snapshot, ok := sb.GetSnapshot("r1")
	require.True(t, ok)
	snapshot.Stages[0].Status = "tampered"

	again, _ := sb.GetSnapshot("r1")
	assert.Equal(t, string(StepStatusPending), again.Stages[0].Status)

	_, ok = sb.GetSnapshot("unknown")
	assert.False(t, ok)
}

func TestStatusBroadcaster_StopDropsUpdates(t *testing.T) {
	sb := NewStatusBroadcaster(nil, discardLogger())
	sb.Stop()
	sb.Stop()

	done := make(chan struct{})
	go func() {
		sb.StartRun("r1")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("update blocked after Stop")
	}
}

func TestStatusBroadcaster_CleanupOldRuns(t *testing.T) {
	sb := NewStatusBroadcaster(nil, discardLogger())
	defer sb.Stop()

	sb.CreateRun("done", "a.csv", testStages())
	sb.FinishRun("done", domain.RunStatusCompleted, nil)
	sb.CreateRun("active", "b.csv", testStages())
	sb.StartRun("active")

	sb.UpdateStatus("done", func(s *events.RunSnapshot) {
		old := time.Now().Add(-2 * time.Hour)
		s.CompletedAt = &old
	})

	assert.Equal(t, 1, sb.CleanupOldRuns(time.Hour))
	_, ok := sb.GetSnapshot("done")
	assert.False(t, ok)
	_, ok = sb.GetSnapshot("active")
	assert.True(t, ok)
}
