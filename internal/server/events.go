package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muimaps/muitiles/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is consumed by local tooling; no origin policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	snapshotInterval = 500 * time.Millisecond
	writeWait        = 10 * time.Second
)

// StreamJobEvents streams progress snapshots over a websocket until the
// job reaches a terminal state, then sends the final snapshot and closes.
func (s *Server) StreamJobEvents(w http.ResponseWriter, r *http.Request, id string) {
	j, ok := s.job(w, id)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Drain control frames so close messages from the client are seen.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(snap pipeline.Snapshot) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(toProgress(snap)) == nil
	}

	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !send(j.runner.Progress()) {
				return
			}
		case <-j.done:
			send(j.runner.Progress())
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-clientGone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
