package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"foodmed/internal/domain"
	"foodmed/internal/models"
	"foodmed/internal/repository"
	"foodmed/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MessageQuerier reads stored conversations.
type MessageQuerier interface {
	Query(ctx context.Context, q repository.HistoryQuery) ([]models.Message, error)
}

// LastSeenReader looks up the durable presence row of a user.
type LastSeenReader interface {
	GetByUserID(ctx context.Context, userID string) (*models.UserPresence, error)
}

type ChatHandler struct {
	store        MessageQuerier
	lastSeen     LastSeenReader
	hub          *ws.Hub
	historyLimit int
	log          *zap.Logger
}

// NewChatHandler builds the HTTP side of the relay. lastSeen may be nil when
// the backend keeps no presence table.
func NewChatHandler(store MessageQuerier, lastSeen LastSeenReader, hub *ws.Hub, historyLimit int, log *zap.Logger) *ChatHandler {
	return &ChatHandler{store: store, lastSeen: lastSeen, hub: hub, historyLimit: historyLimit, log: log}
}

// Health answers the load balancer probe.
func (h *ChatHandler) Health(c *gin.Context) {
	c.String(http.StatusOK, "chat server is live")
}

// GetMessages returns a conversation in either direction, oldest first.
// Without user_a and user_b it lists every stored message.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.historyLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	if h.historyLimit > 0 && limit > h.historyLimit {
		limit = h.historyLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}
	q := repository.HistoryQuery{
		UserA:  c.Query("user_a"),
		UserB:  c.Query("user_b"),
		Limit:  limit,
		Offset: offset,
	}
	list, err := h.store.Query(c.Request.Context(), q)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_a and user_b must be given together"})
			return
		}
		h.log.Error("history query failed", zap.String("user_a", q.UserA), zap.String("user_b", q.UserB), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if list == nil {
		list = []models.Message{}
	}
	c.JSON(http.StatusOK, list)
}

// GetOnline returns the current online set.
func (h *ChatHandler) GetOnline(c *gin.Context) {
	users := h.hub.Registry().OnlineUsers()
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// GetPresence reports whether a user is online here and, when recorded, when
// they were last seen.
func (h *ChatHandler) GetPresence(c *gin.Context) {
	userID := c.Param("user_id")
	resp := gin.H{"user_id": userID, "online": h.hub.Registry().IsOnline(userID)}
	if h.lastSeen != nil {
		p, err := h.lastSeen.GetByUserID(c.Request.Context(), userID)
		if err != nil {
			h.log.Warn("last seen lookup failed", zap.String("user", userID), zap.Error(err))
		} else if p != nil {
			resp["last_seen_at"] = p.LastSeenAt
		}
	}
	c.JSON(http.StatusOK, resp)
}
