package api

import (
	"github.com/apms-ops/apms-backend-go/internal/api/handlers"
	"github.com/apms-ops/apms-backend-go/internal/api/middleware"
	"github.com/apms-ops/apms-backend-go/internal/config"
	"github.com/apms-ops/apms-backend-go/internal/core/analytics"
	"github.com/apms-ops/apms-backend-go/internal/core/refs"
	"github.com/apms-ops/apms-backend-go/internal/core/views"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewRouter creates and configures the main HTTP router.
func NewRouter(cfg *config.Config, analyticsSvc *analytics.Service, viewsSvc *views.Service, refsSvc *refs.Service, logger *logrus.Logger) *gin.Engine {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.ErrorHandlingMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Security.AllowedOrigins))

	rateLimiter := middleware.NewRateLimiter(cfg.Security.RateLimit, cfg.Security.RateBurst)
	router.Use(rateLimiter.RateLimitMiddleware())

	h := handlers.NewHandlers(cfg, analyticsSvc, viewsSvc, refsSvc, logger)

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		analyticsGroup := v1.Group("/analytics")
		{
			analyticsGroup.POST("/query", h.Query)
			analyticsGroup.POST("/pivot", h.Pivot)

			timerlogs := analyticsGroup.Group("/timerlogs")
			{
				timerlogs.GET("/pareto/stop-reasons", h.StopReasonPareto)
				timerlogs.GET("/heatmap/daily-counts", h.DailyCounts)
				timerlogs.GET("/histogram", h.Histogram)
			}
		}

		v1.GET("/downtime/reasons", h.DowntimeReasons)
		v1.GET("/production/summary", h.ProductionSummary)
		v1.GET("/utilization/daily", h.UtilizationDaily)
		v1.GET("/refs/basic", h.RefsBasic)
	}

	router.NoRoute(h.NotFound)

	return router
}
