package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/gridview-ops/gridview-alert-go/pkg/errors"
)

// Client is an HTTP implementation of Service against the aggregation
// service's JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a query service client
func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Aggregate runs one aggregation query
func (c *Client) Aggregate(ctx context.Context, req AggregateRequest) (*AggregateResult, error) {
	var result AggregateResult
	if err := c.post(ctx, "/api/v1/query/aggregate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Distinct runs one distinct-values query
func (c *Client) Distinct(ctx context.Context, req DistinctRequest) (*DistinctResult, error) {
	var result DistinctResult
	if err := c.post(ctx, "/api/v1/query/distinct", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("query service request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"path":    path,
		"status":  resp.StatusCode,
		"latency": time.Since(start),
	}).Debug("Query service call completed")

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperrors.WithDetails(apperrors.ErrQueryUpstream,
			fmt.Sprintf("%s returned %d: %s", path, resp.StatusCode, string(data)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode query service response: %w", err)
	}

	return nil
}
