package alerting

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gridview-ops/gridview-alert-go/internal/metrics"
	"github.com/gridview-ops/gridview-alert-go/internal/query"
)

// ErrSuperseded is returned when a newer evaluation for the same inputs
// started before this one completed; its result must be discarded.
var ErrSuperseded = errors.New("evaluation superseded by newer inputs")

// Evaluation is the full outcome of one trigger evaluation
type Evaluation struct {
	ID      string         `json:"id"`
	Outcome TriggerOutcome `json:"outcome"`
	Result  MatchResult    `json:"result"`
	Rollup  []RollupParent `json:"rollup,omitempty"`
	Filters []query.Filter `json:"filters,omitempty"`
	Body    string         `json:"body,omitempty"`
	Elapsed time.Duration  `json:"elapsed"`
}

type inflightEval struct {
	cancel     context.CancelFunc
	generation uint64
}

// Evaluator runs compound trigger evaluations against the query service.
// It holds no evaluation state beyond in-flight bookkeeping: each call
// consumes a fresh snapshot of its inputs and produces a fresh output.
type Evaluator struct {
	service query.Service
	metrics *metrics.Metrics
	logger  *logrus.Logger
	now     func() time.Time

	mu       sync.Mutex
	inflight map[string]*inflightEval
	nextGen  uint64
}

// NewEvaluator creates an evaluator bound to a query service
func NewEvaluator(service query.Service, m *metrics.Metrics, logger *logrus.Logger) *Evaluator {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Evaluator{
		service:  service,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		inflight: make(map[string]*inflightEval),
	}
}

// Evaluate runs one full trigger evaluation. Starting a new evaluation for
// the same parameter key cancels the in-flight one; a superseded call
// returns ErrSuperseded instead of a stale result.
func (e *Evaluator) Evaluate(ctx context.Context, spec TriggerSpec) (*Evaluation, error) {
	start := e.now()

	if err := spec.Validate(); err != nil {
		return nil, err
	}

	key := paramsKey(spec)
	evalCtx, generation := e.begin(ctx, key)
	defer e.finish(key, generation)

	eval := &Evaluation{ID: uuid.NewString()}

	thresholdOK := false
	if spec.Threshold.Enabled {
		eval.Filters = ResolveWindow(WindowInput{
			Pick:  spec.Threshold.Spec.XPick,
			Field: spec.Threshold.Spec.XField,
			From:  spec.Threshold.Spec.XFrom,
			To:    spec.Threshold.Spec.XTo,
			Value: spec.Threshold.Spec.XValue,
		}, start)

		result, err := e.evaluateThreshold(evalCtx, spec.Threshold.Spec, eval.Filters)
		if err != nil {
			if errors.Is(err, ErrSuperseded) {
				e.metrics.StaleDiscards.Inc()
			}
			return nil, err
		}
		eval.Result = result
		thresholdOK = result.MatchCount > 0

		if len(spec.Threshold.Spec.LegendFields) == 2 {
			eval.Rollup = RollupTwoLevel(result.Matches)
		}
	}

	if e.superseded(key, generation) {
		e.metrics.StaleDiscards.Inc()
		return nil, ErrSuperseded
	}

	timeOK := spec.Time.SatisfiedAt(start)
	eval.Outcome = ComposeTrigger(spec.Logic, spec.Time.Enabled, timeOK, spec.Threshold.Enabled, thresholdOK)

	if spec.Template != "" {
		tokens := BuildContext(spec.Threshold.Spec, eval.Result, eval.Filters)
		tokens = MergePlaceholders(tokens, spec.Placeholders)
		eval.Body = Render(spec.Template, tokens)
		e.metrics.TemplateRenders.Inc()
	}

	eval.Elapsed = e.now().Sub(start)
	e.metrics.EvaluationDuration.Observe(eval.Elapsed.Seconds())
	e.metrics.EvaluationsTotal.WithLabelValues(outcomeLabel(eval.Outcome)).Inc()

	e.logger.WithFields(logrus.Fields{
		"evaluation_id": eval.ID,
		"fired":         eval.Outcome.Fired,
		"inert":         eval.Outcome.Inert,
		"matches":       eval.Result.MatchCount,
		"total":         eval.Result.Total,
		"fallback":      eval.Result.UsedFallback,
		"elapsed":       eval.Elapsed,
	}).Debug("Trigger evaluation completed")

	return eval, nil
}

// evaluateThreshold issues the aggregate query and matches categories,
// retrying with strictly coarser groupings when a grouping the data does
// not support returns nothing.
func (e *Evaluator) evaluateThreshold(ctx context.Context, spec ThresholdSpec, filters []query.Filter) (MatchResult, error) {
	groupings := regroupingPlan(spec)

	var rows [][]interface{}
	usedFallback := false

	for i, groupBy := range groupings {
		res, err := e.service.Aggregate(ctx, query.AggregateRequest{
			Datasource: spec.Datasource,
			Source:     spec.Source,
			GroupBy:    groupBy,
			Aggregator: spec.Aggregator,
			Measure:    spec.Measure,
			Filters:    filters,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return MatchResult{}, ErrSuperseded
			}
			// Upstream failure degrades to an empty, low-confidence result
			e.logger.WithError(err).Warn("Aggregate query failed, returning empty result")
			return MatchResult{Matches: []CategoryMatch{}, LowConfidence: true, UsedFallback: usedFallback}, nil
		}

		if len(res.Rows) > 0 {
			matchSpec := spec
			if i > 0 {
				// Fallback groupings dropped the X dimension
				matchSpec.IncludeX = false
				if len(groupBy) == 0 {
					matchSpec.LegendFields = nil
				}
			}
			result := MatchCategories(res.Rows, matchSpec)
			result.UsedFallback = usedFallback
			return result, nil
		}

		if i < len(groupings)-1 {
			usedFallback = true
			e.metrics.FallbackRegroupings.Inc()
			e.logger.WithFields(logrus.Fields{
				"source":   spec.Source,
				"group_by": groupBy,
			}).Debug("Empty aggregate, retrying with coarser grouping")
		}
	}

	result := MatchCategories(rows, spec)
	result.UsedFallback = usedFallback
	return result, nil
}

// regroupingPlan returns the grouping attempts in order, each strictly
// coarser than the one before. Fallback can only recover from an overly
// specific grouping, never hide true matches.
func regroupingPlan(spec ThresholdSpec) [][]string {
	full := append([]string(nil), spec.LegendFields...)
	if spec.IncludeX && spec.XField != "" {
		full = append(full, spec.XField)
	}

	plan := [][]string{full}
	if spec.IncludeX && spec.XField != "" && len(spec.LegendFields) > 0 {
		plan = append(plan, append([]string(nil), spec.LegendFields...))
	}
	if len(spec.LegendFields) == 0 && len(full) > 0 {
		plan = append(plan, nil)
	}
	return plan
}

// begin registers an in-flight evaluation for key, canceling any older one
func (e *Evaluator) begin(ctx context.Context, key string) (context.Context, uint64) {
	evalCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	if prev, ok := e.inflight[key]; ok {
		prev.cancel()
	}
	e.nextGen++
	e.inflight[key] = &inflightEval{cancel: cancel, generation: e.nextGen}
	return evalCtx, e.nextGen
}

func (e *Evaluator) superseded(key string, generation uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	current, ok := e.inflight[key]
	return ok && current.generation != generation
}

func (e *Evaluator) finish(key string, generation uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if current, ok := e.inflight[key]; ok && current.generation == generation {
		current.cancel()
		delete(e.inflight, key)
	}
}

// paramsKey derives the cancellation key from the evaluation inputs
func paramsKey(spec TriggerSpec) string {
	data, err := json.Marshal(spec)
	if err != nil {
		return fmt.Sprintf("%s/%s", spec.ID, spec.Name)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func outcomeLabel(outcome TriggerOutcome) string {
	switch {
	case outcome.Inert:
		return "inert"
	case outcome.Fired:
		return "fired"
	default:
		return "not_fired"
	}
}
