package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pricepeek/pricepeek/api/handler"
	"github.com/pricepeek/pricepeek/api/middleware"
	"github.com/pricepeek/pricepeek/cache"
	"github.com/pricepeek/pricepeek/config"
	"github.com/pricepeek/pricepeek/render"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics stay outside auth so monitoring probes always work.
func NewRouter(p *handler.Peeker, eng *render.Engine, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")

	// Health stays open so probes work without a key.
	v1.GET("/health", handler.Health(eng, cc, startTime))

	// Everything else goes through auth and rate limiting.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Peek
	protected.GET("/peek", handler.Peek(p))
	protected.POST("/peek", handler.Peek(p))

	// Batch
	protected.POST("/peek/batch", handler.PostBatch(p))
	protected.GET("/peek/batch/:id", handler.GetBatch())

	// Image proxy
	protected.GET("/image", handler.Image())

	return r
}
