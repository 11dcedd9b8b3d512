package websocket

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "salescli.websocket"

// HubMetrics records connection and broadcast instruments for the hub
type HubMetrics struct {
	connectionsTotal   metric.Int64Counter
	connectionsActive  metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram
	messagesSent       metric.Int64Counter
	messageBytes       metric.Int64Counter
	droppedClients     metric.Int64Counter
}

// NewHubMetrics creates the hub instruments on meter. A nil meter yields
// no-op instruments.
func NewHubMetrics(meter metric.Meter) (*HubMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(meterName)
	}

	var (
		m   HubMetrics
		err error
	)
	if m.connectionsTotal, err = meter.Int64Counter("websocket_connections_total",
		metric.WithDescription("Total number of WebSocket connections")); err != nil {
		return nil, err
	}
	if m.connectionsActive, err = meter.Int64UpDownCounter("websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections")); err != nil {
		return nil, err
	}
	if m.connectionDuration, err = meter.Float64Histogram("websocket_connection_duration_seconds",
		metric.WithDescription("WebSocket connection lifetime"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.messagesSent, err = meter.Int64Counter("websocket_messages_sent_total",
		metric.WithDescription("Messages queued to clients by type")); err != nil {
		return nil, err
	}
	if m.messageBytes, err = meter.Int64Counter("websocket_message_bytes_total",
		metric.WithDescription("Bytes queued to clients"), metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if m.droppedClients, err = meter.Int64Counter("websocket_dropped_clients_total",
		metric.WithDescription("Clients disconnected because their send buffer was full")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *HubMetrics) recordConnect(ctx context.Context) {
	if m == nil {
		return
	}
	m.connectionsTotal.Add(ctx, 1)
	m.connectionsActive.Add(ctx, 1)
}

func (m *HubMetrics) recordDisconnect(ctx context.Context, lifetime time.Duration, reason string) {
	if m == nil {
		return
	}
	m.connectionsActive.Add(ctx, -1)
	m.connectionDuration.Record(ctx, lifetime.Seconds(),
		metric.WithAttributes(attribute.String("reason", reason)))
	if reason == "slow_consumer" {
		m.droppedClients.Add(ctx, 1)
	}
}

func (m *HubMetrics) recordBroadcast(ctx context.Context, messageType string, recipients, size int) {
	if m == nil || recipients == 0 {
		return
	}
	attrs := metric.WithAttributes(attribute.String("type", messageType))
	m.messagesSent.Add(ctx, int64(recipients), attrs)
	m.messageBytes.Add(ctx, int64(recipients*size), attrs)
}
