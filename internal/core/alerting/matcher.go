package alerting

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	// CategorySeparator joins legend dimension values into a category label
	CategorySeparator = " • "

	// CategoryAll is the category label when no legend dimension is configured
	CategoryAll = "All"

	maxRollupChildren = 8
)

// ThresholdSpec configures one threshold condition against an aggregation
type ThresholdSpec struct {
	Datasource   string   `json:"datasource,omitempty" yaml:"datasource,omitempty"`
	Source       string   `json:"source" yaml:"source"`
	Aggregator   string   `json:"aggregator" yaml:"aggregator"`
	Measure      string   `json:"measure,omitempty" yaml:"measure,omitempty"`
	Operator     string   `json:"operator" yaml:"operator"`
	Threshold    string   `json:"threshold" yaml:"threshold"` // raw value, may be a comma list
	XField       string   `json:"x_field,omitempty" yaml:"x_field,omitempty"`
	XPick        XPick    `json:"x_pick,omitempty" yaml:"x_pick,omitempty"`
	XValue       string   `json:"x_value,omitempty" yaml:"x_value,omitempty"`
	XFrom        string   `json:"x_from,omitempty" yaml:"x_from,omitempty"`
	XTo          string   `json:"x_to,omitempty" yaml:"x_to,omitempty"`
	IncludeX     bool     `json:"include_x,omitempty" yaml:"include_x,omitempty"`
	LegendFields []string `json:"legend_fields,omitempty" yaml:"legend_fields,omitempty"`
}

// Validate checks the structural invariants of the spec
func (s *ThresholdSpec) Validate() error {
	if s.Source == "" {
		return fmt.Errorf("source is required")
	}
	if s.Aggregator == "" {
		return fmt.Errorf("aggregator is required")
	}
	if s.Aggregator != "count" && s.Measure == "" {
		return fmt.Errorf("measure is required for aggregator %q", s.Aggregator)
	}
	if len(ParseThreshold(s.Threshold)) == 0 {
		return fmt.Errorf("threshold %q has no numeric value", s.Threshold)
	}
	if NormalizeOperator(s.Operator) == OpBetween && len(ParseThreshold(s.Threshold)) < 2 {
		return fmt.Errorf("between operator requires two threshold values")
	}
	if s.IncludeX && s.XField == "" {
		return fmt.Errorf("x_field is required when the x dimension is included")
	}
	return nil
}

// CategoryMatch is one category that passed the threshold condition
type CategoryMatch struct {
	Category string      `json:"category"`
	Value    float64     `json:"value"`
	X        interface{} `json:"x,omitempty"`
}

// MatchResult summarizes one matcher pass over aggregated rows
type MatchResult struct {
	Matches    []CategoryMatch `json:"matches"`
	Total      int             `json:"total"`
	MatchCount int             `json:"match_count"`

	// UsedFallback marks results obtained through a coarser regrouping
	UsedFallback bool `json:"used_fallback,omitempty"`

	// LowConfidence marks best-effort results after an upstream failure
	LowConfidence bool `json:"low_confidence,omitempty"`
}

// MatchCategories partitions aggregated rows into categories and evaluates
// the threshold per row. The row layout is positional: legend dimension
// values in LegendFields order, then the X column when IncludeX is set,
// then the numeric aggregate value last. Rows that do not fit the layout
// are skipped, never fatal.
func MatchCategories(rows [][]interface{}, spec ThresholdSpec) MatchResult {
	result := MatchResult{Matches: []CategoryMatch{}}

	op := NormalizeOperator(spec.Operator)
	parts := ParseThreshold(spec.Threshold)

	legendCount := len(spec.LegendFields)
	wantCols := legendCount + 1
	if spec.IncludeX {
		wantCols++
	}

	for _, row := range rows {
		if len(row) < wantCols {
			continue
		}

		category := CategoryAll
		if legendCount > 0 {
			category = categoryLabel(row[:legendCount])
			// A configured legend dimension with no value is ambiguous;
			// the row is excluded from matching, not coerced to All
			if category == "" {
				continue
			}
		}

		var x interface{}
		if spec.IncludeX {
			x = row[legendCount]
		}

		// Pre-filtered picks were already applied by the aggregation
		// query; filtering those again here would double-filter. Only the
		// custom equality pick is matched client-side.
		if spec.IncludeX && spec.XPick == XPickCustom && spec.XValue != "" {
			if fmt.Sprint(x) != spec.XValue {
				continue
			}
		}

		value, ok := toFloat(row[len(row)-1])
		if !ok {
			continue
		}

		result.Total++
		if EvaluateOperator(op, value, parts) {
			result.MatchCount++
			result.Matches = append(result.Matches, CategoryMatch{
				Category: category,
				Value:    value,
				X:        x,
			})
		}
	}

	return result
}

// RollupChild is one second-level entry of a two-dimension rollup
type RollupChild struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// RollupParent groups matching children under the first legend dimension
type RollupParent struct {
	Name     string        `json:"name"`
	Value    float64       `json:"value"`
	Children []RollupChild `json:"children"`
}

// RollupTwoLevel post-processes matches from a two-legend-dimension query
// into a parent/child tree. Parent sums are the sum of their matching child
// values; parents are sorted descending and each keeps at most its eight
// highest-value children.
func RollupTwoLevel(matches []CategoryMatch) []RollupParent {
	childSums := make(map[string]map[string]float64)
	for _, m := range matches {
		parent, child, found := strings.Cut(m.Category, CategorySeparator)
		if !found {
			child = ""
		}
		if childSums[parent] == nil {
			childSums[parent] = make(map[string]float64)
		}
		childSums[parent][child] += m.Value
	}

	parents := make([]RollupParent, 0, len(childSums))
	for name, children := range childSums {
		parent := RollupParent{Name: name}
		for childName, value := range children {
			parent.Value += value
			parent.Children = append(parent.Children, RollupChild{Name: childName, Value: value})
		}
		sort.Slice(parent.Children, func(i, j int) bool {
			if parent.Children[i].Value != parent.Children[j].Value {
				return parent.Children[i].Value > parent.Children[j].Value
			}
			return parent.Children[i].Name < parent.Children[j].Name
		})
		if len(parent.Children) > maxRollupChildren {
			parent.Children = parent.Children[:maxRollupChildren]
		}
		parents = append(parents, parent)
	}

	sort.Slice(parents, func(i, j int) bool {
		if parents[i].Value != parents[j].Value {
			return parents[i].Value > parents[j].Value
		}
		return parents[i].Name < parents[j].Name
	})

	return parents
}

func categoryLabel(dims []interface{}) string {
	parts := make([]string, 0, len(dims))
	for _, d := range dims {
		s := strings.TrimSpace(fmt.Sprint(d))
		if d == nil || s == "" || s == "<nil>" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, CategorySeparator)
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
