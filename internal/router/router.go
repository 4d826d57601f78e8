package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/classcard/internal/config"
	"github.com/stemsi/classcard/internal/handler"
	"github.com/stemsi/classcard/internal/middleware"
	"github.com/stemsi/classcard/internal/response"
	"github.com/stemsi/classcard/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Card  *handler.CardHandler
	Class *handler.ClassHandler
	WS    *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background work started by middlewares.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request IDs first so the request logger can see them.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Card Pages (HTML) ──────────────────────────────────────────
	cards := router.Group("/classes")
	cards.Use(middleware.CacheControl(30))
	{
		cards.GET("/cards", handlers.Card.CardsPage)
		cards.GET("/:id/card", handlers.Card.Card)
	}

	// ─── 2. Public API ─────────────────────────────────────────────────
	previewLimiter := middleware.NewRateLimiter(ctx, 60, time.Minute)

	publicAPI := router.Group("/api/v1")
	{
		publicAPI.POST("/cards/preview", previewLimiter.Middleware(), handlers.Card.Preview)
		publicAPI.GET("/classes/summaries", handlers.Card.ListSummaries)
		publicAPI.GET("/classes/:id/summary", handlers.Card.GetSummary)
	}

	// ─── 3. Live Cards (WebSocket) ─────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/classes/:id/card", handlers.WS.CardStream)
	}

	// ─── 4. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.GET("/classes", handlers.Class.ListClasses)
		adminAPI.POST("/classes", handlers.Class.CreateClass)
		adminAPI.PUT("/classes/:id", handlers.Class.UpdateClass)
		adminAPI.DELETE("/classes/:id", handlers.Class.DeleteClass)

		adminAPI.GET("/classes/:id/students", handlers.Class.ListStudents)
		adminAPI.POST("/classes/:id/students", handlers.Class.EnrollStudent)
		adminAPI.DELETE("/students/:id", handlers.Class.RemoveStudent)
	}

	return router
}
