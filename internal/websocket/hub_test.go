package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"salescli/pkg/contracts/events"
)

type decodedMessage struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	TraceID   string                 `json:"trace_id"`
	Data      map[string]interface{} `json:"data"`
}

func decode(t *testing.T, raw []byte) decodedMessage {
	t.Helper()
	var msg decodedMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func receive(t *testing.T, c *Client) decodedMessage {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		return decode(t, raw)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return decodedMessage{}
	}
}

func startedHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(discardLogger(), nil)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func TestHubStartStop(t *testing.T) {
	hub := NewHub(discardLogger(), nil)

	hub.Start()
	hub.Start()
	assert.True(t, hub.running)

	hub.Stop()
	hub.Stop()
	assert.False(t, hub.running)
}

func TestHubRegisterSendsConnectMessage(t *testing.T) {
	hub := startedHub(t)
	client := NewClient(hub, NewMockConnection(), "trace-1", discardLogger())

	hub.Register(client)

	msg := receive(t, client)
	assert.Equal(t, string(events.MessageTypeConnect), msg.Type)
	assert.Equal(t, "trace-1", msg.TraceID)
	assert.Equal(t, "connected", msg.Data["status"])
	assert.Equal(t, client.ID(), msg.Data["client_id"])
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHubBroadcastUpdateReachesEveryClient(t *testing.T) {
	hub := startedHub(t)
	clients := []*Client{
		NewClient(hub, NewMockConnection(), "", discardLogger()),
		NewClient(hub, NewMockConnection(), "", discardLogger()),
	}
	for _, c := range clients {
		hub.Register(c)
		receive(t, c)
	}

	snapshot := &events.RunSnapshot{RunID: "run-1", Status: "running", Progress: 25}
	hub.BroadcastUpdate(string(events.MessageTypeRunSnapshot), "run-1", "running", snapshot)

	for _, c := range clients {
		msg := receive(t, c)
		assert.Equal(t, "run:snapshot", msg.Type)
		assert.Equal(t, "run-1", msg.ID)
		assert.Equal(t, "run-1", msg.Data["run_id"])
		assert.Equal(t, float64(25), msg.Data["progress"])
		assert.False(t, msg.Timestamp.IsZero())
	}

	require.Eventually(t, func() bool {
		return hub.Stats().MessagesSent == 2
	}, time.Second, 5*time.Millisecond)
}

func TestHubBroadcastError(t *testing.T) {
	hub := startedHub(t)
	client := NewClient(hub, NewMockConnection(), "", discardLogger())
	hub.Register(client)
	receive(t, client)

	hub.BroadcastError("run-9", "stage load failed")

	msg := receive(t, client)
	assert.Equal(t, string(events.MessageTypeError), msg.Type)
	assert.Equal(t, "run-9", msg.ID)
	assert.Equal(t, "stage load failed", msg.Data["message"])
}

func TestHubDisconnectsSlowClient(t *testing.T) {
	hub := startedHub(t)
	client := NewClient(hub, NewMockConnection(), "", discardLogger())
	for i := 0; i < sendBufferSize; i++ {
		client.send <- []byte("{}")
	}
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastUpdate("run:snapshot", "run-1", "running", nil)

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	for range client.send {
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := startedHub(t)
	client := NewClient(hub, NewMockConnection(), "", discardLogger())
	hub.Register(client)
	receive(t, client)

	hub.Unregister(client)
	hub.Unregister(client)

	_, ok := <-client.send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubStopClosesClients(t *testing.T) {
	hub := NewHub(discardLogger(), nil)
	hub.Start()
	client := NewClient(hub, NewMockConnection(), "", discardLogger())
	hub.Register(client)
	receive(t, client)

	hub.Stop()

	_, ok := <-client.send
	assert.False(t, ok)

	late := NewClient(hub, NewMockConnection(), "", discardLogger())
	hub.Register(late)
	_, ok = <-late.send
	assert.False(t, ok, "registering after stop closes the client")

	hub.BroadcastUpdate("run:snapshot", "run-1", "running", nil)
	hub.Unregister(late)
}

func TestHubBroadcastDoesNotBlockWhenIdle(t *testing.T) {
	hub := NewHub(discardLogger(), nil)

	for i := 0; i < broadcastQueueSize+5; i++ {
		hub.BroadcastUpdate("run:snapshot", "run-1", "running", i)
	}

	stats := hub.Stats()
	assert.Equal(t, broadcastQueueSize, stats.QueueDepth)
	assert.Equal(t, int64(5), stats.MessagesDropped)
}

func TestHubRecordsMetrics(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	metrics, err := NewHubMetrics(provider.Meter("test"))
	require.NoError(t, err)

	hub := NewHub(discardLogger(), metrics)
	hub.Start()
	defer hub.Stop()

	client := NewClient(hub, NewMockConnection(), "", discardLogger())
	hub.Register(client)
	receive(t, client)
	hub.BroadcastUpdate("run:snapshot", "run-1", "running", nil)
	receive(t, client)

	require.Eventually(t, func() bool {
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(context.Background(), &rm); err != nil {
			return false
		}
		return sumOf(rm, "websocket_connections_total") == 1 &&
			sumOf(rm, "websocket_messages_sent_total") == 1
	}, time.Second, 10*time.Millisecond)
}

func sumOf(rm metricdata.ResourceMetrics, name string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestNewHubMetricsNilMeter(t *testing.T) {
	metrics, err := NewHubMetrics(nil)
	require.NoError(t, err)
	assert.NotNil(t, metrics)
}

func TestClientWritePump(t *testing.T) {
	hub := NewHub(discardLogger(), nil)
	conn := NewMockConnection()
	client := NewClient(hub, conn, "", discardLogger())

	done := make(chan struct{})
	go func() {
		client.WritePump()
		close(done)
	}()

	client.send <- []byte(`{"type":"run:snapshot"}`)
	close(client.send)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write pump did not stop")
	}

	written := conn.Written()
	require.Len(t, written, 2)
	assert.Equal(t, websocket.TextMessage, written[0].Type)
	assert.JSONEq(t, `{"type":"run:snapshot"}`, string(written[0].Data))
	assert.Equal(t, websocket.CloseMessage, written[1].Type)
}

func TestClientWritePumpStopsOnWriteError(t *testing.T) {
	hub := NewHub(discardLogger(), nil)
	conn := NewMockConnection()
	conn.WriteErr = errConnClosed
	client := NewClient(hub, conn, "", discardLogger())

	done := make(chan struct{})
	go func() {
		client.WritePump()
		close(done)
	}()
	client.send <- []byte("{}")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write pump did not stop")
	}
	assert.True(t, conn.isClosed())
}

func TestClientReadPumpUnregistersOnClose(t *testing.T) {
	hub := startedHub(t)
	conn := NewMockConnection()
	client := NewClient(hub, conn, "", discardLogger())
	hub.Register(client)
	receive(t, client)

	done := make(chan struct{})
	go func() {
		client.ReadPump()
		close(done)
	}()

	conn.Push(websocket.TextMessage, []byte(`{"type":"heartbeat"}`))
	conn.Push(websocket.TextMessage, []byte("hello"))
	conn.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read pump did not stop")
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(maxMessageSize), conn.ReadLimit)
}
