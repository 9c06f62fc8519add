package handlers

import (
	"net/http"

	"casecite-backend/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig wires the HTTP surface
type RouterConfig struct {
	Search       *SearchHandler
	Clients      APIClientStore
	AuthEnabled  bool
	Limiter      *ratelimit.Limiter
	DefaultLimit int
	Logger       *zap.Logger
}

// NewRouter builds the gin engine
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	if cfg.AuthEnabled && cfg.Clients != nil {
		api.Use(APIKeyAuth(cfg.Clients, logger))
	}
	if cfg.Limiter.Enabled() {
		api.Use(RateLimit(cfg.Limiter, cfg.DefaultLimit))
	}
	{
		api.POST("/search", cfg.Search.Search)
		api.GET("/traces/:id", cfg.Search.GetTrace)
	}
	return r
}
