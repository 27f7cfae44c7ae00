package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fyrsmithlabs/dispatchd/internal/telemetry"
)

type captureRecorder struct {
	stages   []StageObservation
	requests []RequestObservation
}

func (c *captureRecorder) ObserveStage(_ context.Context, obs StageObservation) {
	c.stages = append(c.stages, obs)
}

func (c *captureRecorder) ObserveRequest(_ context.Context, obs RequestObservation) {
	c.requests = append(c.requests, obs)
}

func TestProcessor_Recorder(t *testing.T) {
	a, b := &captureRecorder{}, &captureRecorder{}
	p, err := NewProcessor(newTestStages(t), WithRecorder(MultiRecorder(a, nil, b)))
	require.NoError(t, err)

	_, err = p.Process(context.Background(), Request{
		"auth": {Service: "simple_auth", Args: Args{"username": "alex"}},
		"main": {Service: "nope"},
	})
	require.NoError(t, err)

	for _, rec := range []*captureRecorder{a, b} {
		require.Len(t, rec.stages, 2)
		assert.Equal(t, "simple_auth", rec.stages[0].Service)
		assert.Equal(t, OutcomeOK, rec.stages[0].Outcome)
		assert.Equal(t, "<unknown>", rec.stages[1].Service)
		assert.Equal(t, OutcomeDomainError, rec.stages[1].Outcome)
		assert.Equal(t, KindUnknownService, rec.stages[1].Kind)

		require.Len(t, rec.requests, 1)
		assert.Equal(t, OutcomeDomainError, rec.requests[0].Outcome)
		assert.Equal(t, KindUnknownService, rec.requests[0].Kind)
		assert.Equal(t, 2, rec.requests[0].Stages)
	}
}

func TestProcessor_RecorderDefaultService(t *testing.T) {
	rec := &captureRecorder{}
	p, err := NewProcessor(newTestStages(t), WithRecorder(rec), WithCatchAll(true))
	require.NoError(t, err)

	_, err = p.Process(context.Background(), Request{"main": {Service: "boom"}})
	require.NoError(t, err)

	require.Len(t, rec.stages, 2)
	assert.Equal(t, "<default>", rec.stages[0].Service)
	assert.Equal(t, OutcomeInternalError, rec.stages[1].Outcome)
	assert.Empty(t, rec.stages[1].Kind)
	assert.Equal(t, KindGenericInternalError, rec.requests[0].Kind)
}

func TestMetrics_OTel(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	ctx := context.Background()

	m := NewMetricsWithMeter(tt.Meter(instrumentationName), nil)
	p, err := NewProcessor(newTestStages(t), WithRecorder(m), WithCatchAll(true))
	require.NoError(t, err)

	reqs := []Request{
		{"auth": {Service: "simple_auth", Args: Args{"username": "alex"}}, "main": {Service: "whoami"}},
		{"auth": {Service: "hater"}},
		{"main": {Service: "panic"}},
	}
	for _, req := range reqs {
		_, err := p.Process(ctx, req)
		require.NoError(t, err)
	}

	rm, err := tt.Collect(ctx)
	require.NoError(t, err)

	invocations, ok := telemetry.FindMetric(rm, "dispatchd.stage.invocations_total")
	require.True(t, ok)
	assert.Equal(t, int64(5), telemetry.SumInt64(invocations))
	assert.Equal(t, int64(2), telemetry.SumInt64(invocations, attribute.String("registry", "main")))

	duration, ok := telemetry.FindMetric(rm, "dispatchd.stage.duration_seconds")
	require.True(t, ok)
	assert.Equal(t, uint64(5), telemetry.HistogramCount(duration))

	errs, ok := telemetry.FindMetric(rm, "dispatchd.stage.errors_total")
	require.True(t, ok)
	assert.Equal(t, int64(1), telemetry.SumInt64(errs,
		attribute.String("outcome", string(OutcomeDomainError)),
		attribute.String("kind", "AuthError")))
	assert.Equal(t, int64(1), telemetry.SumInt64(errs,
		attribute.String("outcome", string(OutcomeInternalError)),
		attribute.String("service", "panic")))

	requests, ok := telemetry.FindMetric(rm, "dispatchd.request.total")
	require.True(t, ok)
	assert.Equal(t, int64(1), telemetry.SumInt64(requests, attribute.String("outcome", string(OutcomeOK))))
	assert.Equal(t, int64(1), telemetry.SumInt64(requests, attribute.String("outcome", string(OutcomeDomainError))))
	assert.Equal(t, int64(1), telemetry.SumInt64(requests, attribute.String("outcome", string(OutcomeInternalError))))
}

func TestProcessor_Spans(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	p, err := NewProcessor(newTestStages(t), WithTracer(tt.Tracer(instrumentationName)))
	require.NoError(t, err)

	_, err = p.Process(context.Background(), Request{"auth": {Service: "hater"}})
	require.NoError(t, err)

	tt.AssertSpanExists(t, "dispatch.request")
	tt.AssertSpanAttribute(t, "dispatch.request", "dispatch.stages", int64(2))
	tt.AssertSpanAttribute(t, "dispatch.request", "dispatch.outcome", string(OutcomeDomainError))
	tt.AssertSpanAttribute(t, "dispatch.stage", "dispatch.registry", "auth")
	tt.AssertSpanAttribute(t, "dispatch.stage", "dispatch.service", "hater")
	tt.AssertSpanAttribute(t, "dispatch.stage", "dispatch.error_kind", "AuthError")

	stages := tt.SpansByName("dispatch.stage")
	require.Len(t, stages, 1, "main never ran")
	req := tt.SpanByName("dispatch.request")
	assert.Equal(t, req.SpanContext().SpanID(), stages[0].Parent().SpanID())
}

func TestProcessor_SpanStatusOnInternalError(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	p, err := NewProcessor(newTestStages(t), WithTracer(tt.Tracer(instrumentationName)))
	require.NoError(t, err)

	_, err = p.Process(context.Background(), Request{"main": {Service: "boom"}})
	require.Error(t, err)

	for _, span := range tt.SpansByName("dispatch.stage") {
		if v, _ := telemetry.SpanAttribute(span, "dispatch.registry"); v == "main" {
			assert.Equal(t, codes.Error, span.Status().Code)
			assert.NotEmpty(t, span.Events(), "error recorded as span event")
		}
	}
	assert.Equal(t, codes.Error, tt.SpanByName("dispatch.request").Status().Code)
}
