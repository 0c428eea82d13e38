// Package ws streams change feed subscriptions to websocket clients.
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Vasu1712/chatcore/internal/feed"
	"github.com/Vasu1712/chatcore/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Streamer upgrades requests and pumps one subscription per connection.
type Streamer struct {
	upgrader websocket.Upgrader
}

// NewStreamer accepts upgrades from allowedOrigin ("*" for any) and from
// clients that send no Origin header.
func NewStreamer(allowedOrigin string) *Streamer {
	return &Streamer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
	}
}

// Serve upgrades the connection and writes every event of sub as a JSON
// text frame. It returns once the client leaves or the subscription ends;
// cancel is called either way.
func (s *Streamer) Serve(w http.ResponseWriter, r *http.Request, sub *feed.Subscription, cancel context.CancelFunc) {
	defer cancel()
	log := logger.FromContext(r.Context()).With("key", sub.Key())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	log.Debug("websocket stream opened")

	go readPump(conn, cancel)
	writePump(conn, sub)

	log.Debug("websocket stream closed", "reason", sub.Err())
}

// readPump discards client frames and keeps the read deadline fresh on
// pongs. Any read error means the client is gone.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, sub *feed.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer sub.Close()

	for {
		select {
		case ev, ok := <-sub.Events():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, closeFrame(sub.Err()))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func closeFrame(err error) []byte {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	case errors.Is(err, feed.ErrSlowConsumer):
		return websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "fell behind, resubscribe with the last seq")
	default:
		return websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "feed unavailable")
	}
}
