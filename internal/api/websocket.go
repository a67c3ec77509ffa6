package api

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Quill binds to localhost in typical deployments; origin
		// checks belong to whatever reverse proxy fronts it.
		return true
	},
}

// handleEvents streams bus events to a WebSocket client as JSON, one
// event per text frame. The subscription is dropped when the client
// disconnects or the write fails.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream disabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	ch := s.bus.Subscribe(64)
	s.logger.Debug("event stream client connected", "remote", r.RemoteAddr)

	// Read loop: we ignore client frames, but reading is what surfaces
	// the close handshake.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		s.bus.Unsubscribe(ch)
		conn.Close()
		s.logger.Debug("event stream client disconnected", "remote", r.RemoteAddr)
	}()

	for {
		select {
		case <-done:
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}
