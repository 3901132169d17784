package query

import (
	"context"
	"fmt"
	"strings"
)

// FilterOp is a comparison operator applied by the query service
type FilterOp string

const (
	FilterOpGte FilterOp = "gte"
	FilterOpLt  FilterOp = "lt"
	FilterOpEq  FilterOp = "eq"
)

// Filter is a single typed predicate. Filters are combined conjunctively
// by the query service.
type Filter struct {
	Field string   `json:"field"`
	Op    FilterOp `json:"op"`
	Value string   `json:"value"`
}

func (f Filter) String() string {
	switch f.Op {
	case FilterOpGte:
		return fmt.Sprintf("%s >= %s", f.Field, f.Value)
	case FilterOpLt:
		return fmt.Sprintf("%s < %s", f.Field, f.Value)
	default:
		return fmt.Sprintf("%s = %s", f.Field, f.Value)
	}
}

// Summarize renders a filter list as a human-readable one-liner
func Summarize(filters []Filter) string {
	if len(filters) == 0 {
		return ""
	}
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, ", ")
}

// AggregateRequest describes one aggregation call. GroupBy dimensions are
// ordered; the result row layout follows that order.
type AggregateRequest struct {
	Datasource string   `json:"datasource,omitempty"`
	Source     string   `json:"source"`
	GroupBy    []string `json:"group_by,omitempty"`
	Aggregator string   `json:"aggregator"`
	Measure    string   `json:"measure,omitempty"`
	Filters    []Filter `json:"filters,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// AggregateResult rows are positional: grouping dimension values in GroupBy
// order, then the aggregate value as the last column.
type AggregateResult struct {
	Rows  [][]interface{} `json:"rows"`
	Total int             `json:"total"`
}

// DistinctRequest describes one distinct-values call
type DistinctRequest struct {
	Datasource string   `json:"datasource,omitempty"`
	Source     string   `json:"source"`
	Field      string   `json:"field"`
	Filters    []Filter `json:"filters,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// DistinctResult holds a deduplicated, sorted value list
type DistinctResult struct {
	Values []string `json:"values"`
	Total  int      `json:"total"`
}

// Service is the engine's boundary to the external aggregation layer
type Service interface {
	Aggregate(ctx context.Context, req AggregateRequest) (*AggregateResult, error)
	Distinct(ctx context.Context, req DistinctRequest) (*DistinctResult, error)
}
