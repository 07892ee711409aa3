package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prepdeck/mockexam-backend/internal/config"
	"github.com/prepdeck/mockexam-backend/internal/handler"
	"github.com/prepdeck/mockexam-backend/internal/middleware"
	"github.com/prepdeck/mockexam-backend/internal/response"
	"github.com/prepdeck/mockexam-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam    *handler.ExamHandler
	Session *handler.SessionHandler
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokenService *service.TokenService,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for session creation (30 new sessions per minute per IP).
	startLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Exam Catalog (Public) ──────────────────────────────────────
	examAPI := router.Group("/api/v1/exams")
	{
		examAPI.GET("", middleware.CacheControl(60), handlers.Exam.ListExams)
		examAPI.GET("/:exam_id", middleware.CacheControl(60), handlers.Exam.GetExam)
		examAPI.POST("/:exam_id/sessions", startLimiter.Middleware(), handlers.Session.StartSession)
	}

	// ─── 2. Session Group (Session Token) ──────────────────────────────
	sessionAPI := router.Group("/api/v1/session")
	sessionAPI.Use(middleware.RequireSessionToken(tokenService))
	{
		sessionAPI.GET("/state", handlers.Session.GetState)
		sessionAPI.POST("/submit", handlers.Session.Submit)
		sessionAPI.POST("/reset", handlers.Session.Reset)
	}

	// ─── 3. WebSocket Group (Session Token via ?token=) ────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireSessionToken(tokenService))
	{
		ws.GET("/session/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Attempts (Public Read Surface) ─────────────────────────────
	attemptAPI := router.Group("/api/v1/attempts")
	{
		attemptAPI.GET("", handlers.Attempt.ListAttempts)
		attemptAPI.GET("/:attempt_id/review", handlers.Attempt.GetReview)
	}

	return router
}
