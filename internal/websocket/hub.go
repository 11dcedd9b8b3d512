package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"salescli/internal/infrastructure"
	"salescli/pkg/contracts/events"
)

const broadcastQueueSize = 256

// Hub maintains the set of active clients and fans run updates out to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	logger  *slog.Logger
	metrics *HubMetrics

	totalConnections int64
	messagesSent     int64
	messagesDropped  int64
}

type outbound struct {
	msgType string
	traceID string
	payload []byte
}

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *HubMetrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, broadcastQueueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
	}
}

// Start runs the hub loop in the background. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
}

// Run is the hub's main loop; it owns the clients map writes
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client, "closed")

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func clientContext(c *Client) context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.totalConnections++
	count := len(h.clients)
	h.mu.Unlock()

	ctx := clientContext(client)
	h.metrics.recordConnect(ctx)
	h.logger.InfoContext(ctx, "Client registered",
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr),
		slog.Int("total_clients", count))

	payload, err := encodeMessage(events.MessageTypeConnect, "", client.traceID, map[string]interface{}{
		"status":    "connected",
		"client_id": client.id,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to encode connect message", slog.String("error", err.Error()))
		return
	}
	select {
	case client.send <- payload:
	default:
		h.logger.WarnContext(ctx, "Client buffer full, connect message dropped",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) removeClient(client *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := clientContext(client)
	lifetime := time.Since(client.connectedAt)
	h.metrics.recordDisconnect(ctx, lifetime, reason)
	h.logger.InfoContext(ctx, "Client unregistered",
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", lifetime),
		slog.Int("total_clients", count))
}

func (h *Hub) fanOut(msg outbound) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range clients {
		select {
		case client.send <- msg.payload:
			delivered++
		default:
			h.logger.WarnContext(clientContext(client), "Client send buffer full, disconnecting",
				slog.String("client_id", client.id))
			h.removeClient(client, "slow_consumer")
		}
	}

	h.mu.Lock()
	h.messagesSent += int64(delivered)
	h.mu.Unlock()

	ctx := context.Background()
	if msg.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, msg.traceID)
	}
	h.metrics.recordBroadcast(ctx, msg.msgType, delivered, len(msg.payload))
	h.logger.DebugContext(ctx, "Broadcast delivered",
		slog.String("type", msg.msgType),
		slog.Int("clients", len(clients)),
		slog.Int("delivered", delivered),
		slog.Int("payload_size", len(msg.payload)))
}

func encodeMessage(msgType events.MessageType, id, traceID string, data interface{}) ([]byte, error) {
	return json.Marshal(events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        id,
			Type:      msgType,
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	})
}

// BroadcastUpdate queues a message for every connected client. runID is
// carried as the message ID. The call never blocks; when the queue is
// full the message is dropped and logged.
func (h *Hub) BroadcastUpdate(eventType, runID, status string, data interface{}) {
	h.BroadcastUpdateWithTrace(eventType, runID, status, data, "")
}

// BroadcastUpdateWithTrace is BroadcastUpdate with a trace ID attached
func (h *Hub) BroadcastUpdateWithTrace(eventType, runID, status string, data interface{}, traceID string) {
	ctx := context.Background()
	if traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, traceID)
	}

	payload, err := encodeMessage(events.MessageType(eventType), runID, traceID, data)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling message",
			slog.String("type", eventType),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- outbound{msgType: eventType, traceID: traceID, payload: payload}:
	case <-h.quit:
	default:
		h.mu.Lock()
		h.messagesDropped++
		h.mu.Unlock()
		h.logger.WarnContext(ctx, "Broadcast queue full, message dropped",
			slog.String("type", eventType),
			slog.String("run_id", runID),
			slog.String("status", status))
	}
}

// BroadcastError sends an error event to every client
func (h *Hub) BroadcastError(runID, message string) {
	h.BroadcastUpdate(string(events.MessageTypeError), runID, "error", map[string]string{
		"message": message,
	})
}

// Register adds a client. After Stop the client is closed immediately.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		close(client.send)
	}
}

// Unregister removes a client; safe to call after Stop
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Stop closes every client and waits for the hub loop to exit
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubStats is a point-in-time view of hub counters
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
	QueueDepth       int   `json:"queue_depth"`
}

// Stats returns current hub counters
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{
		ActiveClients:    len(h.clients),
		TotalConnections: h.totalConnections,
		MessagesSent:     h.messagesSent,
		MessagesDropped:  h.messagesDropped,
		QueueDepth:       len(h.broadcast),
	}
}
