package alerting

import (
	"encoding/json"
	"regexp"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/gridview-ops/gridview-alert-go/internal/query"
)

var (
	tokenPattern    = regexp.MustCompile(`\{\{(\w+)\}\}`)
	placeholderName = regexp.MustCompile(`^\w+$`)
)

// maxRenderPasses bounds iterative substitution so a token whose value
// contains further placeholders resolves, but runaway expansion cannot loop
const maxRenderPasses = 3

// TemplateContext maps token names to their rendered values
type TemplateContext map[string]string

// Render substitutes {{token}} placeholders from the context. Substitution
// repeats until a fixed point or the pass bound is reached; unknown tokens
// resolve to the empty string, never to a literal {{token}}.
func Render(template string, ctx TemplateContext) string {
	out := template
	for i := 0; i < maxRenderPasses; i++ {
		next := tokenPattern.ReplaceAllStringFunc(out, func(match string) string {
			name := match[2 : len(match)-2]
			return ctx[name]
		})
		if next == out {
			break
		}
		out = next
	}
	return out
}

// MergePlaceholders merges user-defined placeholders into the context.
// Names that fail the identifier rule are dropped; values may themselves
// reference built-in tokens, which multi-pass rendering resolves.
func MergePlaceholders(ctx TemplateContext, custom map[string]string) TemplateContext {
	for name, value := range custom {
		if !placeholderName.MatchString(name) {
			continue
		}
		ctx[name] = value
	}
	return ctx
}

// BuildContext assembles the built-in token set from an evaluation outcome
func BuildContext(spec ThresholdSpec, result MatchResult, filters []query.Filter) TemplateContext {
	op := NormalizeOperator(spec.Operator)
	parts := ParseThreshold(spec.Threshold)

	ctx := TemplateContext{
		"operator":    op.Symbol(),
		"aggregator":  spec.Aggregator,
		"measure":     spec.Measure,
		"x_field":     spec.XField,
		"x_value":     spec.XValue,
		"x_pick":      string(spec.XPick),
		"match_count": strconv.Itoa(result.MatchCount),
		"total_count": strconv.Itoa(result.Total),
	}

	if len(spec.LegendFields) > 0 {
		ctx["legend_field"] = spec.LegendFields[0]
	} else {
		ctx["legend_field"] = ""
	}

	var value float64
	category := ""
	if len(result.Matches) > 0 {
		value = result.Matches[0].Value
		category = result.Matches[0].Category
	}
	ctx["value"] = formatNumber(value)
	ctx["value_formatted"] = formatNumberLocale(value)
	ctx["legend_value"] = category
	ctx["category"] = category

	if len(parts) > 0 {
		ctx["threshold"] = formatNumber(parts[0])
	} else {
		ctx["threshold"] = spec.Threshold
	}
	lo, hi := betweenBounds(parts)
	ctx["threshold_low"] = formatNumber(lo)
	ctx["threshold_high"] = formatNumber(hi)

	ctx["filter_summary"] = query.Summarize(filters)
	if data, err := json.Marshal(filters); err == nil {
		ctx["filters_json"] = string(data)
	} else {
		ctx["filters_json"] = "[]"
	}

	return ctx
}

func betweenBounds(parts []float64) (lo, hi float64) {
	if len(parts) == 0 {
		return 0, 0
	}
	lo, hi = parts[0], parts[0]
	if len(parts) > 1 {
		if parts[1] < lo {
			lo = parts[1]
		}
		if parts[1] > hi {
			hi = parts[1]
		}
	}
	return lo, hi
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatNumberLocale(v float64) string {
	p := message.NewPrinter(language.English)
	return p.Sprint(number.Decimal(v))
}
