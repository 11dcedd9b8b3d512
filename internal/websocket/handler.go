package websocket

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"salescli/internal/infrastructure"
)

// Handler upgrades requests to websocket connections and attaches them to
// the hub. An empty allowedOrigins list accepts any origin.
func Handler(hub *Hub, allowedOrigins []string, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.handler"))

	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 || allowed["*"] {
				return true
			}
			return allowed[origin]
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		traceID := infrastructure.GetTraceID(r.Context())
		if traceID == "" {
			traceID = infrastructure.GenerateTraceID()
		}
		ctx := infrastructure.WithTraceID(r.Context(), traceID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error response
			logger.WarnContext(ctx, "WebSocket upgrade failed",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("origin", r.Header.Get("Origin")),
				slog.String("error", err.Error()))
			return
		}

		client := NewClient(hub, NewConnectionWrapper(conn), traceID, logger)
		hub.Register(client)

		logger.InfoContext(ctx, "WebSocket client connected",
			slog.String("client_id", client.ID()),
			slog.String("remote_addr", r.RemoteAddr))

		go client.WritePump()
		go client.ReadPump()
	}
}
