package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"docchat/internal/api/chat"
	"docchat/internal/api/docs"
	"docchat/internal/api/middleware"
	"docchat/internal/api/session"
	"docchat/internal/config"
	"docchat/internal/observability"
	"docchat/internal/repository"
	"docchat/internal/service"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(
	cfg *config.Config,
	chatService *service.ChatService,
	ingestService *service.IngestService,
	sessionService *service.SessionService,
	files *repository.FileStore,
	metrics *observability.Metrics,
	logger *zap.Logger,
	rcfg RouterConfig,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS middleware
	r.Use(middleware.CORS(rcfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Group("/api")

	// Chat streaming
	chatHandler := chat.NewHandler(chatService, metrics, logger)
	chatHandler.RegisterRoutes(apiGroup)

	// Upload and file retrieval
	docsHandler := docs.NewHandler(cfg, ingestService, files, logger)
	docsHandler.RegisterRoutes(apiGroup)

	// Session metadata (requires API key when one is configured)
	sessionHandler := session.NewHandler(sessionService, logger)
	sessionGroup := r.Group("/api")
	sessionGroup.Use(middleware.Auth(rcfg.APIKey))
	sessionHandler.RegisterRoutes(sessionGroup)

	return r
}
