package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bonaken/board/config"
	"github.com/bonaken/board/utils"
)

const (
	// SessionCookieName is the cookie holding the signed session token.
	SessionCookieName = "board_session"
	// ContextAgentKey marks requests authenticated with the agent API key.
	ContextAgentKey = "is_agent"
)

// AuthRequired gates the API behind a session cookie or the agent's X-Api-Key
// header. Deployments without a configured board password run open.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		cfg := config.Get()
		if cfg.BoardPassword == "" {
			ctx.Next()
			return
		}

		if key := ctx.GetHeader("X-Api-Key"); key != "" && cfg.AgentAPIKey != "" {
			if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.AgentAPIKey)) == 1 {
				ctx.Set(ContextAgentKey, true)
				ctx.Next()
				return
			}
			utils.Error(ctx, http.StatusUnauthorized, "invalid api key")
			ctx.Abort()
			return
		}

		token, err := ctx.Cookie(SessionCookieName)
		if err != nil || token == "" {
			utils.Error(ctx, http.StatusUnauthorized, "not logged in")
			ctx.Abort()
			return
		}
		claims, err := utils.ParseSessionToken(token)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, "session expired")
			ctx.Abort()
			return
		}
		if utils.IsSessionRevoked(claims.ID) {
			utils.Error(ctx, http.StatusUnauthorized, "session expired")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// IsAuthenticated reports whether the request carries a valid session cookie,
// without aborting. Used by the auth-check endpoint.
func IsAuthenticated(ctx *gin.Context) bool {
	cfg := config.Get()
	if cfg.BoardPassword == "" {
		return true
	}
	token, err := ctx.Cookie(SessionCookieName)
	if err != nil || token == "" {
		return false
	}
	claims, err := utils.ParseSessionToken(token)
	if err != nil {
		return false
	}
	return !utils.IsSessionRevoked(claims.ID)
}
