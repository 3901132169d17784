package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gridview-ops/gridview-alert-go/internal/core/alerting"
	"github.com/gridview-ops/gridview-alert-go/internal/query"
	"github.com/gridview-ops/gridview-alert-go/pkg/utils"
)

// EvaluateAlert runs a full trigger evaluation from a JSON alert definition
func (h *Handlers) EvaluateAlert(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "failed to read request body")
		return
	}

	spec, err := h.parser.ParseFromJSON(body)
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.EvaluationTimeout())
	defer cancel()

	evaluation, err := h.evaluator.Evaluate(ctx, *spec)
	if err != nil {
		if errors.Is(err, alerting.ErrSuperseded) {
			utils.SendError(c, http.StatusConflict, "evaluation superseded by newer inputs")
			return
		}
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	utils.SendSuccess(c, evaluation)
}

type previewRequest struct {
	Template     string                  `json:"template"`
	Placeholders map[string]string       `json:"placeholders,omitempty"`
	Spec         *alerting.ThresholdSpec `json:"spec,omitempty"`
	Result       *alerting.MatchResult   `json:"result,omitempty"`
}

// PreviewTemplate renders a notification template without evaluating
func (h *Handlers) PreviewTemplate(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	var spec alerting.ThresholdSpec
	if req.Spec != nil {
		spec = *req.Spec
	}
	var result alerting.MatchResult
	if req.Result != nil {
		result = *req.Result
	}

	tokens := alerting.BuildContext(spec, result, nil)
	tokens = alerting.MergePlaceholders(tokens, req.Placeholders)

	utils.SendSuccess(c, gin.H{
		"body": alerting.Render(req.Template, tokens),
	})
}

type decodeScheduleRequest struct {
	Cron string `json:"cron"`
}

// DecodeSchedule converts a cron expression into its structured form
func (h *Handlers) DecodeSchedule(c *gin.Context) {
	var req decodeScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	utils.SendSuccess(c, alerting.DecodeCron(req.Cron))
}

// EncodeSchedule converts a structured schedule into its canonical cron form
func (h *Handlers) EncodeSchedule(c *gin.Context) {
	var spec alerting.ScheduleSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	cron := alerting.EncodeCron(spec)
	next, err := spec.NextRuns(time.Now(), 3)
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	utils.SendSuccess(c, gin.H{
		"cron":      cron,
		"next_runs": next,
	})
}

// ResolveWindow converts a symbolic X pick into filter bounds
func (h *Handlers) ResolveWindow(c *gin.Context) {
	var in alerting.WindowInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	filters := alerting.ResolveWindow(in, time.Now())
	utils.SendSuccess(c, gin.H{
		"filters":      filters,
		"pre_filtered": alerting.PreFiltered(in.Pick),
	})
}

// DistinctValues enumerates a dimension's values through the cache
func (h *Handlers) DistinctValues(c *gin.Context) {
	req := query.DistinctRequest{
		Datasource: c.Query("datasource"),
		Source:     c.Query("source"),
		Field:      c.Query("field"),
	}
	if req.Source == "" || req.Field == "" {
		utils.SendError(c, http.StatusBadRequest, "source and field are required")
		return
	}
	if limit := c.Query("limit"); limit != "" {
		if v, err := strconv.Atoi(limit); err == nil && v > 0 {
			req.Limit = v
		}
	}

	result, err := h.distinct.Distinct(c.Request.Context(), req)
	if err != nil {
		// Upstream failure surfaces as an empty list, not a hard failure
		h.logger.WithError(err).Warn("Distinct value lookup failed")
		utils.SendSuccessWithMeta(c, query.DistinctResult{Values: []string{}}, gin.H{"degraded": true})
		return
	}

	utils.SendSuccess(c, result)
}
