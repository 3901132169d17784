package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gridview-ops/gridview-alert-go/internal/config"
	"github.com/gridview-ops/gridview-alert-go/internal/core/alerting"
	"github.com/gridview-ops/gridview-alert-go/internal/core/cache"
	"github.com/gridview-ops/gridview-alert-go/pkg/utils"
)

// Handlers holds the HTTP handler dependencies
type Handlers struct {
	cfg       *config.Config
	logger    *logrus.Logger
	evaluator *alerting.Evaluator
	parser    *alerting.SpecParser
	distinct  *cache.DistinctCache
	startedAt time.Time
}

// NewHandlers creates the handler set
func NewHandlers(cfg *config.Config, logger *logrus.Logger, evaluator *alerting.Evaluator, distinct *cache.DistinctCache) *Handlers {
	return &Handlers{
		cfg:       cfg,
		logger:    logger,
		evaluator: evaluator,
		parser:    alerting.NewSpecParser(),
		distinct:  distinct,
		startedAt: time.Now(),
	}
}

// Health reports service liveness
func (h *Handlers) Health(c *gin.Context) {
	utils.SendSuccess(c, gin.H{
		"status": "healthy",
		"uptime": time.Since(h.startedAt).String(),
	})
}
