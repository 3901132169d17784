package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/gridview-ops/gridview-alert-go/internal/api/handlers"
	"github.com/gridview-ops/gridview-alert-go/internal/api/middleware"
	"github.com/gridview-ops/gridview-alert-go/internal/config"
	"github.com/gridview-ops/gridview-alert-go/internal/core/alerting"
	"github.com/gridview-ops/gridview-alert-go/internal/core/cache"
)

// NewRouter creates and configures the main HTTP router
func NewRouter(cfg *config.Config, logger *logrus.Logger, evaluator *alerting.Evaluator, distinct *cache.DistinctCache, registry *prometheus.Registry) *gin.Engine {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	router.Use(middleware.ErrorHandlingMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORSMiddleware())

	h := handlers.NewHandlers(cfg, logger, evaluator, distinct)

	router.GET("/health", h.Health)
	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	{
		alerts := api.Group("/alerts")
		{
			alerts.POST("/evaluate", h.EvaluateAlert)
			alerts.POST("/preview", h.PreviewTemplate)
		}

		schedules := api.Group("/schedules")
		{
			schedules.POST("/decode", h.DecodeSchedule)
			schedules.POST("/encode", h.EncodeSchedule)
		}

		windows := api.Group("/windows")
		{
			windows.POST("/resolve", h.ResolveWindow)
		}

		values := api.Group("/values")
		{
			values.GET("/distinct", h.DistinctValues)
		}
	}

	return router
}
