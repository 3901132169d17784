package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridview-ops/gridview-alert-go/internal/config"
	"github.com/gridview-ops/gridview-alert-go/internal/core/alerting"
	"github.com/gridview-ops/gridview-alert-go/internal/core/cache"
	"github.com/gridview-ops/gridview-alert-go/internal/query"
)

type stubQueryService struct {
	aggregate func(req query.AggregateRequest) (*query.AggregateResult, error)
	distinct  func(req query.DistinctRequest) (*query.DistinctResult, error)
}

func (s *stubQueryService) Aggregate(ctx context.Context, req query.AggregateRequest) (*query.AggregateResult, error) {
	if s.aggregate == nil {
		return &query.AggregateResult{}, nil
	}
	return s.aggregate(req)
}

func (s *stubQueryService) Distinct(ctx context.Context, req query.DistinctRequest) (*query.DistinctResult, error) {
	if s.distinct == nil {
		return &query.DistinctResult{}, nil
	}
	return s.distinct(req)
}

func newTestRouter(service query.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{}
	evaluator := alerting.NewEvaluator(service, nil, logger)
	distinct := cache.NewDistinctCache(service, 0, nil, logger)
	h := NewHandlers(cfg, logger, evaluator, distinct)

	r := gin.New()
	r.GET("/health", h.Health)
	r.POST("/alerts/evaluate", h.EvaluateAlert)
	r.POST("/alerts/preview", h.PreviewTemplate)
	r.POST("/schedules/decode", h.DecodeSchedule)
	r.POST("/schedules/encode", h.EncodeSchedule)
	r.POST("/windows/resolve", h.ResolveWindow)
	r.GET("/values/distinct", h.DistinctValues)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(&stubQueryService{})

	w, envelope := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, envelope["success"])
}

func TestEvaluateAlertEndpoint(t *testing.T) {
	service := &stubQueryService{
		aggregate: func(req query.AggregateRequest) (*query.AggregateResult, error) {
			return &query.AggregateResult{Rows: [][]interface{}{{"EMEA", 150.0}}}, nil
		},
	}
	r := newTestRouter(service)

	w, envelope := doJSON(t, r, http.MethodPost, "/alerts/evaluate", map[string]interface{}{
		"logic": "and",
		"threshold": map[string]interface{}{
			"enabled":       true,
			"source":        "orders",
			"aggregator":    "sum",
			"measure":       "amount",
			"operator":      ">",
			"threshold":     "100",
			"legend_fields": []string{"region"},
		},
		"template": "{{category}} hit {{value}}",
	})
	require.Equal(t, http.StatusOK, w.Code)

	data := envelope["data"].(map[string]interface{})
	outcome := data["outcome"].(map[string]interface{})
	assert.Equal(t, true, outcome["fired"])
	assert.Equal(t, "EMEA hit 150", data["body"])
}

func TestEvaluateAlertBadDefinition(t *testing.T) {
	r := newTestRouter(&stubQueryService{})

	w, envelope := doJSON(t, r, http.MethodPost, "/alerts/evaluate", map[string]interface{}{
		"logic": "xor",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, envelope["success"])
}

func TestPreviewTemplateEndpoint(t *testing.T) {
	r := newTestRouter(&stubQueryService{})

	w, envelope := doJSON(t, r, http.MethodPost, "/alerts/preview", map[string]interface{}{
		"template":     "{{greeting}}",
		"placeholders": map[string]string{"greeting": "count is {{match_count}}"},
		"result":       map[string]interface{}{"match_count": 4},
	})
	require.Equal(t, http.StatusOK, w.Code)

	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "count is 4", data["body"])
}

func TestDecodeScheduleEndpoint(t *testing.T) {
	r := newTestRouter(&stubQueryService{})

	w, envelope := doJSON(t, r, http.MethodPost, "/schedules/decode", map[string]string{
		"cron": "30 8 * * 1,3,5",
	})
	require.Equal(t, http.StatusOK, w.Code)

	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "weekly", data["mode"])
	assert.Equal(t, "08:30", data["time"])
}

func TestEncodeScheduleEndpoint(t *testing.T) {
	r := newTestRouter(&stubQueryService{})

	w, envelope := doJSON(t, r, http.MethodPost, "/schedules/encode", map[string]interface{}{
		"mode":         "weekly",
		"time":         "08:30",
		"days_of_week": []int{1, 3, 5},
	})
	require.Equal(t, http.StatusOK, w.Code)

	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "30 8 * * 1,3,5", data["cron"])
	assert.Len(t, data["next_runs"], 3)
}

func TestResolveWindowEndpoint(t *testing.T) {
	r := newTestRouter(&stubQueryService{})

	w, envelope := doJSON(t, r, http.MethodPost, "/windows/resolve", map[string]string{
		"pick":  "custom",
		"field": "region",
		"value": "EMEA",
	})
	require.Equal(t, http.StatusOK, w.Code)

	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, false, data["pre_filtered"])
	filters := data["filters"].([]interface{})
	require.Len(t, filters, 1)
	assert.Equal(t, "eq", filters[0].(map[string]interface{})["op"])
}

func TestDistinctValuesEndpoint(t *testing.T) {
	service := &stubQueryService{
		distinct: func(req query.DistinctRequest) (*query.DistinctResult, error) {
			return &query.DistinctResult{Values: []string{"APAC", "EMEA"}, Total: 2}, nil
		},
	}
	r := newTestRouter(service)

	w, envelope := doJSON(t, r, http.MethodGet, "/values/distinct?source=orders&field=region", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"APAC", "EMEA"}, data["values"])
}

func TestDistinctValuesMissingParams(t *testing.T) {
	r := newTestRouter(&stubQueryService{})

	w, _ := doJSON(t, r, http.MethodGet, "/values/distinct?source=orders", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDistinctValuesDegradesOnUpstreamFailure(t *testing.T) {
	service := &stubQueryService{
		distinct: func(req query.DistinctRequest) (*query.DistinctResult, error) {
			return nil, errors.New("unavailable")
		},
	}
	r := newTestRouter(service)

	w, envelope := doJSON(t, r, http.MethodGet, "/values/distinct?source=orders&field=region", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, true, envelope["success"])
	meta := envelope["meta"].(map[string]interface{})
	assert.Equal(t, true, meta["degraded"])
}
