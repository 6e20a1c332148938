package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/kairosvoice/kairos-agent/pkg/events"
	"github.com/kairosvoice/kairos-agent/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The session token already scopes access to the room.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RoomEvents upgrades to a websocket and forwards the room's UI side
// channel to the client. Each NATS message on the room's subject goes out
// as one text frame, payload unchanged. The caller's token must grant this
// room (admin tokens may watch any room).
func (h *Handlers) RoomEvents(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if room == "" {
		writeError(w, http.StatusBadRequest, "Missing room")
		return
	}

	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Session required")
		return
	}
	if claims.Role != "admin" && claims.Room != room {
		writeError(w, http.StatusForbidden, "Token does not grant this room")
		return
	}

	if h.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "Event stream unavailable")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		logger.WarnContext(r.Context(), "Websocket upgrade failed", "room", room, "error", err)
		return
	}

	ctx := r.Context()
	frames := make(chan []byte, 64)

	sub, err := h.bus.Subscribe(events.UIState(room), func(msg *events.Message) {
		select {
		case frames <- msg.Data:
		default:
			// Slow client; drop the frame rather than block the bus.
		}
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to subscribe to room events", "room", room, "error", err)
		conn.Close()
		return
	}

	logger.InfoContext(ctx, "Room events stream opened", "room", room, "identity", claims.Identity)

	done := make(chan struct{})

	// Reader exists only to surface the client closing the socket.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		if err := sub.Unsubscribe(); err != nil {
			logger.WarnContext(ctx, "Failed to unsubscribe room events", "room", room, "error", err)
		}
		conn.Close()
		logger.InfoContext(ctx, "Room events stream closed", "room", room)
	}()

	for {
		select {
		case frame := <-frames:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
