package router

import (
	"context"

	"foodmed/config"
	"foodmed/internal/handler"
	"foodmed/internal/middleware"
	"foodmed/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Store is the message backend the chat routes need.
type Store interface {
	ws.MessageStore
	handler.MessageQuerier
}

// Deps are the backends chosen at startup. LastSeen and Publisher may be nil.
type Deps struct {
	Store     Store
	LastSeen  handler.LastSeenReader
	Publisher ws.Publisher
}

// Setup builds the presence registry, the hub and the HTTP routes. The rate
// limiter stops when ctx is done.
func Setup(ctx context.Context, cfg *config.Config, deps Deps, log *zap.Logger) (*gin.Engine, *ws.Hub) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(cfg.Server.CORSOrigin))

	limiter := middleware.NewInMemoryRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	go func() {
		<-ctx.Done()
		limiter.Stop()
	}()

	hub := ws.NewHub(ws.NewRegistry(), deps.Publisher, log.Named("hub"))

	chatHandler := handler.NewChatHandler(deps.Store, deps.LastSeen, hub, cfg.Chat.HistoryLimit, log.Named("http"))
	chatWS := handler.NewChatWS(hub, deps.Store, cfg.Chat, cfg.Server.CORSOrigin, log.Named("ws"))

	authMw := middleware.Authenticate(&cfg.JWT)
	rateMw := middleware.RateLimit(limiter)

	r.GET("/", chatHandler.Health)

	api := r.Group("/api/v1")
	api.Use(authMw, rateMw)
	{
		api.GET("/messages", chatHandler.GetMessages)
		api.GET("/online", chatHandler.GetOnline)
		api.GET("/presence/:user_id", chatHandler.GetPresence)
	}

	r.GET("/ws", authMw, rateMw, chatWS.Serve)

	return r, hub
}
