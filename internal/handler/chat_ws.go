package handler

import (
	"foodmed/config"
	"foodmed/internal/middleware"
	"foodmed/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ChatWS upgrades GET /ws and serves the connection until it closes. It runs
// behind middleware.Authenticate; an authenticated caller may only act as
// itself.
type ChatWS struct {
	hub      *ws.Hub
	store    ws.MessageStore
	cfg      config.ChatConfig
	upgrader *websocket.Upgrader
	log      *zap.Logger
}

func NewChatWS(hub *ws.Hub, store ws.MessageStore, cfg config.ChatConfig, allowOrigin string, log *zap.Logger) *ChatWS {
	return &ChatWS{
		hub:      hub,
		store:    store,
		cfg:      cfg,
		upgrader: ws.NewUpgrader(allowOrigin),
		log:      log,
	}
}

func (h *ChatWS) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	client := ws.NewClient(uuid.NewString(), h.cfg.SendBuffer)
	log := h.log.With(zap.String("conn", client.ID))
	s := ws.NewSession(client, h.hub, h.store, ws.SessionOptions{
		MaxTextLen: h.cfg.MaxTextLen,
		AuthUser:   middleware.GetUserID(c),
	}, log)
	log.Debug("connection opened", zap.String("remote", c.ClientIP()))

	ws.Run(c.Request.Context(), conn, s, ws.PumpConfig{
		WriteWait:     h.cfg.WriteWait,
		PongWait:      h.cfg.PongWait,
		PingPeriod:    h.cfg.PingPeriod(),
		MaxFrameBytes: h.cfg.MaxFrameBytes,
	}, log)
	log.Debug("connection closed")
}
