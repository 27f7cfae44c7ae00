package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dispatchd/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/dispatchd/internal/dispatch"

// Stage pairs a registry with the name its result is stored under.
type Stage struct {
	Name     string
	Registry *Registry
}

// Processor runs requests through an ordered list of registries.
type Processor struct {
	stages   []Stage
	index    map[string]struct{}
	catchAll bool
	logger   *logging.Logger
	tracer   trace.Tracer
	recorder Recorder
}

// Option configures a Processor.
type Option func(*Processor)

// WithCatchAll converts non-domain errors into GenericInternalError
// responses instead of returning them.
func WithCatchAll(enabled bool) Option {
	return func(p *Processor) { p.catchAll = enabled }
}

// WithLogger sets the processor logger. Defaults to a no-op logger.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTracer sets the tracer used for request and stage spans. Defaults to
// the global tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Processor) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// WithRecorder sets the stage and request observer.
func WithRecorder(r Recorder) Option {
	return func(p *Processor) {
		if r != nil {
			p.recorder = r
		}
	}
}

// NewProcessor validates the stage list and builds a Processor. Stage names
// become context keys, so they must be unique and non-empty.
func NewProcessor(stages []Stage, opts ...Option) (*Processor, error) {
	if len(stages) == 0 {
		return nil, ErrNoRegistries
	}

	p := &Processor{
		stages:   make([]Stage, len(stages)),
		index:    make(map[string]struct{}, len(stages)),
		logger:   logging.FromContext(context.Background()),
		tracer:   otel.Tracer(instrumentationName),
		recorder: nopRecorder{},
	}
	copy(p.stages, stages)

	for i, s := range stages {
		if s.Name == "" {
			return nil, fmt.Errorf("stage %d: registry name cannot be empty", i)
		}
		if s.Registry == nil {
			return nil, fmt.Errorf("stage %q: registry cannot be nil", s.Name)
		}
		if _, dup := p.index[s.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRegistry, s.Name)
		}
		p.index[s.Name] = struct{}{}
	}

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ProcessRequest builds a one-off Processor and processes req.
func ProcessRequest(ctx context.Context, stages []Stage, req Request, catchAll bool) (Response, error) {
	p, err := NewProcessor(stages, WithCatchAll(catchAll))
	if err != nil {
		return Response{}, err
	}
	return p.Process(ctx, req)
}

// Stages returns the configured stages in processing order.
func (p *Processor) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// Process runs req through every stage in order.
//
// A domain error from any stage ends processing and is returned as an
// {error, details} Response with a nil error. Any other failure is returned
// as a *StageError, or as a GenericInternalError response when catch-all is
// enabled. On success the Response carries the last stage's result.
func (p *Processor) Process(ctx context.Context, req Request) (Response, error) {
	if len(p.stages) == 0 {
		return Response{}, ErrNoRegistries
	}
	if logging.RequestIDFromContext(ctx) == "" {
		ctx = logging.WithRequestID(ctx, uuid.NewString())
	}

	ctx, span := p.tracer.Start(ctx, "dispatch.request",
		trace.WithAttributes(attribute.Int("dispatch.stages", len(p.stages))))
	defer span.End()

	start := time.Now()
	p.logIgnored(ctx, req)

	dc := newContext(len(p.stages))
	var last any
	for _, stage := range p.stages {
		sr := req[stage.Name]
		result, err := p.runStage(ctx, dc, stage, sr)
		if err != nil {
			resp, fatal := p.fail(ctx, stage, sr, err)
			outcome := outcomeOf(err)
			span.SetAttributes(attribute.String("dispatch.outcome", string(outcome)))
			if outcome == OutcomeInternalError {
				span.SetStatus(codes.Error, "internal error")
			}
			p.recorder.ObserveRequest(ctx, RequestObservation{
				Outcome:  outcome,
				Kind:     resp.Error,
				Stages:   dc.Len() + 1,
				Duration: time.Since(start),
			})
			return resp, fatal
		}
		dc.set(stage.Name, result)
		last = result
	}

	span.SetAttributes(attribute.String("dispatch.outcome", string(OutcomeOK)))
	p.recorder.ObserveRequest(ctx, RequestObservation{
		Outcome:  OutcomeOK,
		Stages:   dc.Len(),
		Duration: time.Since(start),
	})
	p.logger.Debug(ctx, "request processed",
		zap.Strings("stages", dc.Keys()),
		zap.Duration("duration", time.Since(start)))
	return Response{Result: last}, nil
}

// runStage invokes one registry inside its own span.
func (p *Processor) runStage(ctx context.Context, dc *Context, stage Stage, sr ServiceRequest) (any, error) {
	ctx = logging.WithStage(ctx, stage.Name, displayName(sr.Service))
	ctx, span := p.tracer.Start(ctx, "dispatch.stage", trace.WithAttributes(
		attribute.String("dispatch.registry", stage.Name),
		attribute.String("dispatch.service", displayName(sr.Service)),
	))
	defer span.End()

	p.logger.Trace(ctx, "invoking service", zap.Strings("args", argNames(sr.Args)))

	start := time.Now()
	result, err := invoke(ctx, dc, stage.Registry, sr)
	elapsed := time.Since(start)

	outcome := outcomeOf(err)
	obs := StageObservation{
		Registry: stage.Name,
		Service:  serviceLabel(sr.Service, err),
		Outcome:  outcome,
		Duration: elapsed,
	}
	span.SetAttributes(attribute.String("dispatch.outcome", string(outcome)))

	switch outcome {
	case OutcomeDomainError:
		de, _ := asDomainError(err)
		obs.Kind = de.Kind()
		span.SetAttributes(attribute.String("dispatch.error_kind", de.Kind()))
	case OutcomeInternalError:
		span.RecordError(err)
		span.SetStatus(codes.Error, "service failed")
	}
	p.recorder.ObserveStage(ctx, obs)
	return result, err
}

// fail turns a stage error into the request outcome.
func (p *Processor) fail(ctx context.Context, stage Stage, sr ServiceRequest, err error) (Response, error) {
	ctx = logging.WithStage(ctx, stage.Name, displayName(sr.Service))

	if outcomeOf(err) == OutcomeDomainError {
		de, _ := asDomainError(err)
		details := de.Details()
		if details == nil {
			details = map[string]any{}
		}
		p.logger.Info(ctx, "request short-circuited", zap.String("kind", de.Kind()))
		return Response{Error: de.Kind(), Details: details}, nil
	}

	stageErr := &StageError{Registry: stage.Name, Service: sr.Service, Err: err}
	if !p.catchAll {
		p.logger.Debug(ctx, "request failed", zap.Error(stageErr))
		return Response{}, stageErr
	}

	fields := []zap.Field{zap.Error(err)}
	var pe *PanicError
	if errors.As(err, &pe) {
		fields = append(fields, zap.ByteString("stack", pe.Stack))
	}
	p.logger.Error(ctx, "service failed, returning generic internal error", fields...)
	return Response{Error: KindGenericInternalError}, nil
}

// logIgnored notes request entries that address no configured registry.
func (p *Processor) logIgnored(ctx context.Context, req Request) {
	var ignored []string
	for name := range req {
		if _, ok := p.index[name]; !ok {
			ignored = append(ignored, name)
		}
	}
	if len(ignored) > 0 {
		sort.Strings(ignored)
		p.logger.Debug(ctx, "request addresses unknown registries", zap.Strings("registries", ignored))
	}
}

// invoke calls the registry and converts a panic into a *PanicError.
func invoke(ctx context.Context, dc *Context, reg *Registry, sr ServiceRequest) (result any, err error) {
	defer func() {
		if v := recover(); v != nil {
			result = nil
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	result, err = reg.Process(ctx, dc, sr.Service, sr.Args)
	if err != nil && isNilValue(err) {
		return nil, fmt.Errorf("service returned a nil %T as its error", err)
	}
	return result, err
}

// outcomeOf classifies err. Panics are internal even when the panic value
// is itself a domain error, as are domain errors without a kind.
func outcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		return OutcomeInternalError
	}
	if _, ok := asDomainError(err); ok {
		return OutcomeDomainError
	}
	return OutcomeInternalError
}

// serviceLabel bounds label cardinality: names that failed to resolve come
// from the caller and are not recorded verbatim.
func serviceLabel(service string, err error) string {
	if IsKind(err, KindUnknownService) {
		return "<unknown>"
	}
	return displayName(service)
}

func argNames(args Args) []string {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
