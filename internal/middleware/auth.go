package middleware

import (
	"net/http"
	"strings"

	"foodmed/config"
	"foodmed/internal/auth"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID = "user_id"
	ctxClaims = "claims"
)

// BearerToken returns the access token from the Authorization header, or from
// the token query parameter for browser websocket clients that cannot set
// headers.
func BearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("token")
}

// Authenticate validates the access token when one is presented and sets the
// caller's identity in the context. With cfg.Required a missing token is
// rejected too.
func Authenticate(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			if cfg.Required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing access token"})
				return
			}
			c.Next()
			return
		}
		if cfg.AccessSecret == "" {
			c.Next()
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(ctxUserID, claims.Identity())
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// GetUserID returns the authenticated user id, or "" for anonymous requests.
func GetUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
