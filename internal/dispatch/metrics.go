package dispatch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Outcome classifies how a stage or request ended.
type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeDomainError   Outcome = "domain_error"
	OutcomeInternalError Outcome = "internal_error"
)

// StageObservation describes one registry invocation.
type StageObservation struct {
	Registry string
	Service  string
	Outcome  Outcome
	// Kind is the domain error kind, empty unless Outcome is OutcomeDomainError.
	Kind     string
	Duration time.Duration
}

// RequestObservation describes one processed request.
type RequestObservation struct {
	Outcome Outcome
	// Kind is the response error, including GenericInternalError.
	Kind     string
	Stages   int
	Duration time.Duration
}

// Recorder receives processor observations.
type Recorder interface {
	ObserveStage(ctx context.Context, obs StageObservation)
	ObserveRequest(ctx context.Context, obs RequestObservation)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStage(context.Context, StageObservation)     {}
func (nopRecorder) ObserveRequest(context.Context, RequestObservation) {}

type multiRecorder []Recorder

// MultiRecorder fans observations out to every non-nil recorder.
func MultiRecorder(recorders ...Recorder) Recorder {
	out := make(multiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multiRecorder) ObserveStage(ctx context.Context, obs StageObservation) {
	for _, r := range m {
		r.ObserveStage(ctx, obs)
	}
}

func (m multiRecorder) ObserveRequest(ctx context.Context, obs RequestObservation) {
	for _, r := range m {
		r.ObserveRequest(ctx, obs)
	}
}

// Metrics records processor observations as OpenTelemetry instruments.
type Metrics struct {
	meter       metric.Meter
	logger      *zap.Logger
	invocations metric.Int64Counter
	duration    metric.Float64Histogram
	errors      metric.Int64Counter
	requests    metric.Int64Counter
}

// NewMetrics creates Metrics on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	return NewMetricsWithMeter(otel.Meter(instrumentationName), logger)
}

// NewMetricsWithMeter creates Metrics on the given meter.
func NewMetricsWithMeter(meter metric.Meter, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  meter,
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.invocations, err = m.meter.Int64Counter(
		"dispatchd.stage.invocations_total",
		metric.WithDescription("Total number of registry stage invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		m.logger.Warn("failed to create invocations counter", zap.Error(err))
	}

	m.duration, err = m.meter.Float64Histogram(
		"dispatchd.stage.duration_seconds",
		metric.WithDescription("Duration of registry stage invocations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"dispatchd.stage.errors_total",
		metric.WithDescription("Total number of failed stage invocations by outcome and error kind"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}

	m.requests, err = m.meter.Int64Counter(
		"dispatchd.request.total",
		metric.WithDescription("Total number of processed requests by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create requests counter", zap.Error(err))
	}
}

// ObserveStage implements Recorder.
func (m *Metrics) ObserveStage(ctx context.Context, obs StageObservation) {
	attrs := []attribute.KeyValue{
		attribute.String("registry", obs.Registry),
		attribute.String("service", obs.Service),
	}

	if m.invocations != nil {
		m.invocations.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if m.duration != nil {
		m.duration.Record(ctx, obs.Duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if obs.Outcome != OutcomeOK && m.errors != nil {
		errAttrs := append(attrs,
			attribute.String("outcome", string(obs.Outcome)),
			attribute.String("kind", obs.Kind),
		)
		m.errors.Add(ctx, 1, metric.WithAttributes(errAttrs...))
	}
}

// ObserveRequest implements Recorder.
func (m *Metrics) ObserveRequest(ctx context.Context, obs RequestObservation) {
	if m.requests != nil {
		m.requests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", string(obs.Outcome)),
		))
	}
}
