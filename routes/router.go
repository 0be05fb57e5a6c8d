package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bonaken/board/config"
	"github.com/bonaken/board/controllers"
	"github.com/bonaken/board/middleware"
	"github.com/bonaken/board/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rolling file so request noise stays out of
	// the application log.
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Api-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// Credentialed requests may not use the wildcard; the session cookie
		// only works same-origin in this mode.
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Uploaded screenshots, behind the same gate as the API.
	uploads := r.Group("/uploads", middleware.AuthRequired())
	uploads.StaticFS("/", gin.Dir(cfg.UploadsDir, false))

	notifier := utils.NewFritsNotifier(db, cfg.FritsWebhookURL)

	authController := controllers.NewAuthController()
	postController := controllers.NewPostController(db, cfg.UploadsDir, notifier)
	commentController := controllers.NewCommentController(db, notifier)
	statusController := controllers.NewStatusController(db)
	statsController := controllers.NewStatsController(db)

	api := r.Group("/api")
	api.POST("/login", middleware.RateLimitMiddleware(), authController.Login)
	api.POST("/logout", authController.Logout)
	api.GET("/auth", authController.AuthCheck)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired())
	protected.GET("/posts", postController.ListPosts)
	protected.GET("/posts/:id", postController.GetPost)
	protected.POST("/posts", postController.CreatePost)
	protected.PATCH("/posts/:id", postController.UpdatePost)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.PATCH("/posts/:id/status", statusController.UpdateStatus)
	protected.PATCH("/posts/:id/notify-status", statusController.NotifyStatus)
	protected.POST("/posts/:id/comments", commentController.CreateComment)
	protected.POST("/posts/:id/frits-update", commentController.CreateFritsUpdate)
	protected.GET("/updates-since", statsController.UpdatesSince)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, "route not found")
	})

	return r
}
