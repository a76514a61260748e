package httptransport

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// checkOrigin accepts non-browser clients (no Origin) and the allowed origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(h.origins, origin)
}

// Realtime godoc
// @Summary Record change stream
// @Description Websocket. Each message is a JSON RecordEvent for a record the caller may read.
// @Tags realtime
// @Param token query string false "session token (browsers cannot set headers on websocket requests)"
// @Success 101
// @Router /realtime [get]
func (h *Handler) Realtime(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := h.events.Subscribe(ctx)
	if err != nil {
		h.log.Warn("realtime subscribe failed", reqField(r), zap.Error(err))
		writeErr(w, http.StatusServiceUnavailable, "realtime unavailable")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied
		h.log.Debug("websocket upgrade failed", reqField(r), zap.Error(err))
		return
	}
	defer conn.Close()

	h.metrics.RealtimeConnections.Inc()
	defer h.metrics.RealtimeConnections.Dec()

	var viewer string
	if u := UserFrom(r.Context()); u != nil {
		viewer = u.ID
	}
	log := h.log.With(reqField(r), zap.String("viewer", viewer))
	log.Debug("realtime connected")

	// reader: handles pongs and notices the client going away
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			log.Debug("realtime disconnected")
			return

		case ev, ok := <-events:
			if !ok {
				log.Warn("event stream closed")
				return
			}
			if ev.Record == nil || !ev.Record.VisibleTo(viewer) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug("realtime write failed", zap.Error(err))
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
