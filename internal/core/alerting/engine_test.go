package alerting

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridview-ops/gridview-alert-go/internal/query"
)

type fakeQueryService struct {
	mu       sync.Mutex
	requests []query.AggregateRequest
	respond  func(ctx context.Context, req query.AggregateRequest) (*query.AggregateResult, error)
}

func (f *fakeQueryService) Aggregate(ctx context.Context, req query.AggregateRequest) (*query.AggregateResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.respond
	f.mu.Unlock()
	return fn(ctx, req)
}

func (f *fakeQueryService) Distinct(ctx context.Context, req query.DistinctRequest) (*query.DistinctResult, error) {
	return &query.DistinctResult{}, nil
}

func (f *fakeQueryService) recorded() []query.AggregateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]query.AggregateRequest(nil), f.requests...)
}

func newTestEvaluator(service query.Service) *Evaluator {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewEvaluator(service, nil, logger)
}

func testTriggerSpec() TriggerSpec {
	return TriggerSpec{
		Name:  "revenue watch",
		Logic: LogicAnd,
		Threshold: ThresholdConditionSpec{
			Enabled: true,
			Spec: ThresholdSpec{
				Source:       "orders",
				Aggregator:   "sum",
				Measure:      "amount",
				Operator:     ">",
				Threshold:    "100",
				LegendFields: []string{"region"},
			},
		},
		Template: "{{category}} at {{value}}",
	}
}

func TestEvaluateFires(t *testing.T) {
	fake := &fakeQueryService{
		respond: func(ctx context.Context, req query.AggregateRequest) (*query.AggregateResult, error) {
			return &query.AggregateResult{Rows: [][]interface{}{
				{"EMEA", 150.0},
				{"APAC", 50.0},
			}}, nil
		},
	}
	ev := newTestEvaluator(fake)

	eval, err := ev.Evaluate(context.Background(), testTriggerSpec())
	require.NoError(t, err)

	assert.True(t, eval.Outcome.Fired)
	assert.Equal(t, 1, eval.Result.MatchCount)
	assert.Equal(t, 2, eval.Result.Total)
	assert.Equal(t, "EMEA at 150", eval.Body)
	assert.NotEmpty(t, eval.ID)

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"region"}, reqs[0].GroupBy)
}

func TestEvaluateNotFired(t *testing.T) {
	fake := &fakeQueryService{
		respond: func(ctx context.Context, req query.AggregateRequest) (*query.AggregateResult, error) {
			return &query.AggregateResult{Rows: [][]interface{}{{"EMEA", 50.0}}}, nil
		},
	}
	ev := newTestEvaluator(fake)

	eval, err := ev.Evaluate(context.Background(), testTriggerSpec())
	require.NoError(t, err)

	assert.False(t, eval.Outcome.Fired)
	assert.Equal(t, 0, eval.Result.MatchCount)
	assert.Equal(t, 1, eval.Result.Total)
}

func TestEvaluateFallbackRegrouping(t *testing.T) {
	fake := &fakeQueryService{
		respond: func(ctx context.Context, req query.AggregateRequest) (*query.AggregateResult, error) {
			// The finest grouping has no data; the coarser one does
			if len(req.GroupBy) == 2 {
				return &query.AggregateResult{}, nil
			}
			return &query.AggregateResult{Rows: [][]interface{}{{"EMEA", 150.0}}}, nil
		},
	}
	ev := newTestEvaluator(fake)

	spec := testTriggerSpec()
	spec.Threshold.Spec.XField = "day"
	spec.Threshold.Spec.XPick = XPickToday
	spec.Threshold.Spec.IncludeX = true

	eval, err := ev.Evaluate(context.Background(), spec)
	require.NoError(t, err)

	assert.True(t, eval.Outcome.Fired)
	assert.True(t, eval.Result.UsedFallback)
	assert.Equal(t, 1, eval.Result.MatchCount)

	reqs := fake.recorded()
	require.Len(t, reqs, 2)
	assert.Equal(t, []string{"region", "day"}, reqs[0].GroupBy)
	assert.Equal(t, []string{"region"}, reqs[1].GroupBy)

	// The resolved window filter travels with every attempt
	require.NotEmpty(t, reqs[0].Filters)
	assert.Equal(t, reqs[0].Filters, reqs[1].Filters)
	assert.Equal(t, "day", reqs[0].Filters[0].Field)
}

func TestEvaluateUpstreamFailureDegrades(t *testing.T) {
	fake := &fakeQueryService{
		respond: func(ctx context.Context, req query.AggregateRequest) (*query.AggregateResult, error) {
			return nil, errors.New("query service unavailable")
		},
	}
	ev := newTestEvaluator(fake)

	eval, err := ev.Evaluate(context.Background(), testTriggerSpec())
	require.NoError(t, err, "upstream failures never surface as evaluation errors")

	assert.False(t, eval.Outcome.Fired)
	assert.True(t, eval.Result.LowConfidence)
	assert.Empty(t, eval.Result.Matches)
}

func TestEvaluateSuperseded(t *testing.T) {
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})

	fake := &fakeQueryService{
		respond: func(ctx context.Context, req query.AggregateRequest) (*query.AggregateResult, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				close(started)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-release:
				}
			}
			return &query.AggregateResult{Rows: [][]interface{}{{"EMEA", 150.0}}}, nil
		},
	}
	ev := newTestEvaluator(fake)
	spec := testTriggerSpec()

	firstErr := make(chan error, 1)
	go func() {
		_, err := ev.Evaluate(context.Background(), spec)
		firstErr <- err
	}()

	<-started
	eval, err := ev.Evaluate(context.Background(), spec)
	require.NoError(t, err)
	assert.True(t, eval.Outcome.Fired)

	assert.ErrorIs(t, <-firstErr, ErrSuperseded)
	close(release)
}

func TestEvaluateRollup(t *testing.T) {
	fake := &fakeQueryService{
		respond: func(ctx context.Context, req query.AggregateRequest) (*query.AggregateResult, error) {
			return &query.AggregateResult{Rows: [][]interface{}{
				{"A", "x", 10.0},
				{"A", "y", 5.0},
				{"B", "z", 3.0},
			}}, nil
		},
	}
	ev := newTestEvaluator(fake)

	spec := testTriggerSpec()
	spec.Threshold.Spec.Threshold = "1"
	spec.Threshold.Spec.LegendFields = []string{"region", "product"}

	eval, err := ev.Evaluate(context.Background(), spec)
	require.NoError(t, err)

	require.Len(t, eval.Rollup, 2)
	assert.Equal(t, "A", eval.Rollup[0].Name)
	assert.Equal(t, 15.0, eval.Rollup[0].Value)
	assert.Equal(t, "B", eval.Rollup[1].Name)
}

func TestEvaluateInertTrigger(t *testing.T) {
	fake := &fakeQueryService{}
	ev := newTestEvaluator(fake)

	eval, err := ev.Evaluate(context.Background(), TriggerSpec{Logic: LogicAnd})
	require.NoError(t, err)

	assert.True(t, eval.Outcome.Inert)
	assert.False(t, eval.Outcome.Fired)
	assert.Empty(t, fake.recorded(), "no query without an enabled threshold condition")
}

func TestEvaluateTimeCondition(t *testing.T) {
	fake := &fakeQueryService{}
	ev := newTestEvaluator(fake)
	// 2024-03-15 is a Friday
	ev.now = func() time.Time { return time.Date(2024, 3, 15, 9, 0, 10, 0, time.Local) }

	spec := TriggerSpec{
		Logic: LogicAnd,
		Time: TimeConditionSpec{
			Enabled: true,
			Schedule: ScheduleSpec{
				Mode:       ScheduleWeekly,
				Time:       "09:00",
				DaysOfWeek: []int{5},
			},
		},
	}

	eval, err := ev.Evaluate(context.Background(), spec)
	require.NoError(t, err)
	assert.True(t, eval.Outcome.Fired)
	assert.True(t, eval.Outcome.TimeSatisfied)

	ev.now = func() time.Time { return time.Date(2024, 3, 15, 10, 30, 0, 0, time.Local) }
	eval, err = ev.Evaluate(context.Background(), spec)
	require.NoError(t, err)
	assert.False(t, eval.Outcome.Fired)
}

func TestEvaluateInvalidSpec(t *testing.T) {
	ev := newTestEvaluator(&fakeQueryService{})

	spec := testTriggerSpec()
	spec.Threshold.Spec.Threshold = "not numeric"

	_, err := ev.Evaluate(context.Background(), spec)
	assert.Error(t, err)
}
