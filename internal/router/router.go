package router

import (
	"net/http"
	"time"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/config"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/handler"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/middleware"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/response"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated profile routes
		auth.POST("/logout", middleware.RequireJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireJWT(authService), handlers.Auth.GetProfile)
	}

	// ─── 2. Attempt Group (JWT + Single Device) ────────────────────────
	examAPI := router.Group("/api/v1/exams")
	examAPI.Use(
		middleware.Brotli(),
		middleware.RequireJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		examAPI.GET("/:exam_id/paper", handlers.Attempt.GetPaper)
		examAPI.POST("/:exam_id/attempt", handlers.Attempt.Join)
		examAPI.POST("/:exam_id/attempt/confirm", handlers.Attempt.Confirm)
		examAPI.POST("/:exam_id/attempt/cancel", handlers.Attempt.CancelAttempt)
		examAPI.GET("/:exam_id/attempt/state", handlers.Attempt.GetState)
		examAPI.GET("/:exam_id/attempt/result", handlers.Attempt.GetResult)
	}

	// ─── 3. Attempt History (JWT + Single Device) ──────────────────────
	attemptAPI := router.Group("/api/v1/attempts")
	attemptAPI.Use(
		middleware.RequireJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		attemptAPI.GET("", handlers.Attempt.ListAttempts)
	}

	// ─── 4. WebSocket Group (WS Auth via query token) ──────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/exams/:exam_id/session", handlers.WS.SessionStream)
	}

	return router
}
