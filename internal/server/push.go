package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/coinfeed/internal/broadcast"
)

// Subscribers only receive; anything they send is read and discarded.
const maxInboundMessage = 4096

// handlePush upgrades to a websocket and streams every snapshot the
// broadcaster hands this subscriber, starting with the current one.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()

	sub, err := s.hub.Subscribe()
	if err != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second),
		)
		return
	}
	defer s.hub.Unsubscribe(sub.ID())

	s.logger.Debug("push subscriber connected", "subscriber", sub.ID(), "remote", r.RemoteAddr)

	done := make(chan struct{})
	go s.readLoop(conn, done)
	s.writeLoop(conn, sub, done)

	s.logger.Debug("push subscriber disconnected", "subscriber", sub.ID())
}

// readLoop keeps the read deadline moving on pongs and closes done when the
// client goes away.
func (s *Server) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	wait := 2 * s.cfg.PingInterval
	conn.SetReadLimit(maxInboundMessage)
	conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop is the only writer on conn.
func (s *Server) writeLoop(conn *websocket.Conn, sub *broadcast.Subscription, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case snap, ok := <-sub.Updates():
			if !ok {
				conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(time.Second),
				)
				return
			}

			payload, err := snap.PushPayload()
			if err != nil {
				s.logger.Error("failed to encode push payload", "err", err)
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.metrics.PushFailed()
				s.logger.Debug("push write failed", "subscriber", sub.ID(), "err", err)
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("failed to send ping", "subscriber", sub.ID(), "err", err)
				return
			}
		}
	}
}
