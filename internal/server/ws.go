package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The front end may be served from another origin during development.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebsocket attaches the connection as a session observer and pumps
// lifecycle events to it until either side goes away. The coordinator
// replays the most recent event on attach, so a page that reconnects after
// a completed run immediately learns about the results.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "error", err)
		return
	}

	observer := s.coordinator.Attach()
	defer func() {
		s.coordinator.Detach(observer)
		_ = conn.Close()
	}()

	// Drain client frames so pings are answered and closure is noticed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-observer.Events():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(event); err != nil {
				slog.Warn("Websocket send failed, dropping observer", "error", err)
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
