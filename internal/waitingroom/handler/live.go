package handler

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ziel-Global/community-healers-sub001/internal/countdown"
	"github.com/Ziel-Global/community-healers-sub001/internal/platform/middleware"
)

const (
	pingInterval    = 30 * time.Second
	pingPongTimeout = 10 * time.Second
	writeTimeout    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleLive streams countdown snapshots over a websocket until the exam is
// ready, the waiting room closes, or the client goes away.
func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	snapshots, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to subscribe to waiting room", err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(ctx, "websocket upgrade failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		return
	}
	defer conn.Close()

	conn.SetPingHandler(func(message string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(message), time.Now().Add(pingPongTimeout))
		if err == websocket.ErrCloseSent {
			return nil
		} else if e, ok := err.(net.Error); ok && e.Timeout() {
			return nil
		}
		return err
	})

	// The client sends nothing meaningful; reading surfaces close frames.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingPongTimeout)); err != nil {
				return
			}
		case snap, ok := <-snapshots:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream finished"),
					time.Now().Add(writeTimeout))
				return
			}
			if err := h.writeSnapshot(conn, snap); err != nil {
				h.logger.DebugContext(ctx, "live stream write failed",
					"session_id", sessionID,
					"error", err.Error(),
				)
				return
			}
		}
	}
}

func (h *Handler) writeSnapshot(conn *websocket.Conn, snap countdown.Snapshot) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(snap)
}
