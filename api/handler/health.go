package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pricepeek/pricepeek/cache"
	"github.com/pricepeek/pricepeek/models"
	"github.com/pricepeek/pricepeek/render"
)

// Health returns the handler for GET /api/v1/health.
//
// Reports render-pool utilisation and degrades status when more than
// 80% of the tabs are busy. eng is nil when rendering is disabled.
func Health(eng *render.Engine, cc *cache.Cache, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var browser models.BrowserStats
		if eng != nil {
			browser = eng.Stats()
		}

		status := "healthy"
		if browser.Running && browser.MaxPages > 0 &&
			browser.ActivePages > int(float64(browser.MaxPages)*0.8) {
			status = "degraded"
		}

		var cacheInfo models.CacheInfo
		if cc != nil {
			cacheInfo = cc.Stats()
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Browser: browser,
			Cache:   cacheInfo,
			Version: "0.1.0",
		})
	}
}
