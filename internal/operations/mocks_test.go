package operations

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"salescli/internal/config"
	"salescli/pkg/contracts/events"
)

// MockHub records broadcasts
type MockHub struct {
	mock.Mock
	mu        sync.Mutex
	snapshots []*events.RunSnapshot
}

func newMockHub() *MockHub {
	hub := &MockHub{}
	hub.On("BroadcastUpdate", string(events.MessageTypeRunSnapshot), mock.Anything, mock.Anything, mock.Anything).Return()
	return hub
}

func (m *MockHub) BroadcastUpdate(eventType, runID, status string, data interface{}) {
	m.Called(eventType, runID, status, data)
	if snapshot, ok := data.(*events.RunSnapshot); ok {
		m.mu.Lock()
		m.snapshots = append(m.snapshots, snapshot)
		m.mu.Unlock()
	}
}

func (m *MockHub) last() *events.RunSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snapshots) == 0 {
		return nil
	}
	return m.snapshots[len(m.snapshots)-1]
}

// funcStage is a Stage backed by a function
type funcStage struct {
	BaseStage
	fn func(ctx context.Context, state *RunState) error
}

func newFuncStage(id string, fn func(ctx context.Context, state *RunState) error) *funcStage {
	return &funcStage{BaseStage: NewBaseStage(id, id), fn: fn}
}

func (s *funcStage) Execute(ctx context.Context, state *RunState) error {
	return s.fn(ctx, state)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Report.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.Report.Charts = []string{"trend"}
	cfg.Report.Exports = []string{"csv"}
	return cfg
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const duplicateSales = `order_id,order_date,category,product_id,customer_id,quantity,total_amount
1,2024-01-15,Books,P1,C1,1,10
1,2024-01-15,Books,P1,C1,1,10
2,2024-02-10,Games,P2,C2,2,20
`
