package handlers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/resale-lister/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AllowAllOrigins bool
	AllowOrigins    []string
	// AnalyzePerMinute is the per-client analyze budget; zero disables limiting.
	AnalyzePerMinute int
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *ItemHandler, cfg RouterConfig, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.Gin(log))

	corsCfg := cors.DefaultConfig()
	if cfg.AllowAllOrigins || len(cfg.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowOrigins
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsCfg))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/health", HealthCheck)

		// Item Routes
		api.POST("/items", h.CreateItem)
		api.GET("/items", h.ListItems)
		api.GET("/items/:id", h.GetItem)
		api.PATCH("/items/:id", h.UpdateItem)
		api.DELETE("/items/:id", h.DeleteItem)

		analyze := []gin.HandlerFunc{h.Analyze}
		if cfg.AnalyzePerMinute > 0 {
			analyze = append([]gin.HandlerFunc{NewRateLimiter(cfg.AnalyzePerMinute).Middleware()}, analyze...)
		}
		api.POST("/items/:id/analyze", analyze...)

		// Marketplace payloads for the browser extension
		api.GET("/items/:id/platforms", h.Platforms)
		api.GET("/items/:id/platforms/:platform", h.PlatformPayload)

		api.POST("/pricing/ladder", Ladder)
	}
	return r
}
