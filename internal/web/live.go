package web

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/status"
)

const liveWriteWait = 5 * time.Second

// handleLive upgrades to a websocket and pushes the compact status JSON
// once immediately and then every interval until the client goes away.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: live upgrade: %v", err)
		return
	}
	defer conn.Close()

	// Reads only detect the close; clients never send anything useful.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, status.FormatCompact(s.tracker.Snapshot())); err != nil {
			return
		}
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
