package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bonaken/board/config"
	"github.com/bonaken/board/middleware"
	"github.com/bonaken/board/utils"
)

const sessionDuration = 30 * 24 * time.Hour

// AuthController implements the shared-password session login. The whole team
// shares one board password; identity is free-form author names on posts and
// comments, not accounts.
type AuthController struct{}

// NewAuthController creates a new AuthController instance.
func NewAuthController() *AuthController {
	return &AuthController{}
}

// Login checks the board password and sets the session cookie.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid request payload")
		return
	}

	cfg := config.Get()
	if cfg.BoardPassword != "" && !utils.CheckBoardPassword(cfg.BoardPassword, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, "incorrect password")
		return
	}

	token, err := utils.GenerateSessionToken(sessionDuration)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to create session")
		return
	}

	ctx.SetCookie(middleware.SessionCookieName, token, int(sessionDuration.Seconds()), "/", "", false, true)
	ctx.JSON(http.StatusOK, gin.H{"ok": true})
}

// Logout clears the session cookie and revokes the session server side, so a
// copied cookie stops working too.
func (a *AuthController) Logout(ctx *gin.Context) {
	if token, err := ctx.Cookie(middleware.SessionCookieName); err == nil && token != "" {
		if claims, err := utils.ParseSessionToken(token); err == nil && claims.ExpiresAt != nil {
			utils.RevokeSession(claims.ID, claims.ExpiresAt.Time)
		}
	}
	ctx.SetCookie(middleware.SessionCookieName, "", -1, "/", "", false, true)
	ctx.JSON(http.StatusOK, gin.H{"ok": true})
}

// AuthCheck reports whether the caller holds a valid session. Always 200 so
// the client can branch without treating the probe as an error.
func (a *AuthController) AuthCheck(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"authenticated": middleware.IsAuthenticated(ctx)})
}
