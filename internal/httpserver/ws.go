package httpserver

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cryptofolio/internal/metrics"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsReadLimit  = 512
)

// handleWebsocket streams the caller's change events as JSON messages. When
// the broker drops a lagging stream the socket is closed with a policy
// violation and the client is expected to reload and reconnect.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := s.broker.Subscribe(user.ID)
	defer cancel()

	metrics.WebsocketSubscribers.Inc()
	defer metrics.WebsocketSubscribers.Dec()
	s.logger.Debug("Websocket feed opened", zap.String("user_id", user.ID))

	// The client never sends data; reading only services control frames and
	// notices the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(wsReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			s.logger.Debug("Websocket feed closed by client", zap.String("user_id", user.ID))
			return
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "feed lagged")
				_ = conn.WriteMessage(websocket.CloseMessage, msg)
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("Websocket write failed", zap.String("user_id", user.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
