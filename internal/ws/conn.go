package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// PumpConfig holds the keepalive and size limits of one connection.
type PumpConfig struct {
	WriteWait     time.Duration
	PongWait      time.Duration
	PingPeriod    time.Duration
	MaxFrameBytes int64
}

// NewUpgrader returns the websocket upgrader used for chat connections.
// allowOrigin "*" accepts any origin.
func NewUpgrader(allowOrigin string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowOrigin == "*" || origin == "" || origin == allowOrigin
		},
	}
}

// Run serves one upgraded connection until the peer goes away, then closes
// the session so presence is released on every kind of disconnect.
func Run(ctx context.Context, conn *websocket.Conn, s *Session, cfg PumpConfig, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(conn, s.Client(), cfg)
		conn.Close()
	}()

	readPump(ctx, conn, s, cfg, log)
	s.Close()
	<-done
	conn.Close()
}

func readPump(ctx context.Context, conn *websocket.Conn, s *Session, cfg PumpConfig, log *zap.Logger) {
	if cfg.MaxFrameBytes > 0 {
		conn.SetReadLimit(cfg.MaxFrameBytes)
	}
	conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Info("connection dropped", zap.String("conn", s.Client().ID), zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		_ = s.HandleRaw(ctx, raw)
	}
}

// writePump copies frames from the client queue to the connection.
func writePump(conn *websocket.Conn, c *Client, cfg PumpConfig) {
	ticker := time.NewTicker(cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Outbound():
			conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
