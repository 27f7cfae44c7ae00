// Package promstats exports dispatch observations as Prometheus metrics.
//
// dispatchd runs as a short-lived process, so instead of serving /metrics
// the collectors live on a private registry that is written out in the
// node_exporter textfile format after each run.
package promstats

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fyrsmithlabs/dispatchd/internal/dispatch"
)

const namespace = "dispatchd"

// Stats implements dispatch.Recorder on a private Prometheus registry.
type Stats struct {
	registry *prometheus.Registry

	// StageInvocations counts registry invocations.
	// Labels: registry, service, outcome
	StageInvocations *prometheus.CounterVec

	// StageDuration tracks invocation latency.
	// Labels: registry
	StageDuration *prometheus.HistogramVec

	// Requests counts processed requests.
	// Labels: outcome, error
	Requests *prometheus.CounterVec

	// RequestStages tracks how many stages ran before a request finished.
	RequestStages prometheus.Histogram
}

// New registers the dispatch collectors on a fresh registry.
func New() *Stats {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Stats{
		registry: reg,
		StageInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stage",
				Name:      "invocations_total",
				Help:      "Total number of registry invocations by outcome",
			},
			[]string{"registry", "service", "outcome"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "stage",
				Name:      "duration_seconds",
				Help:      "Duration of registry invocations in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"registry"},
		),
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "request",
				Name:      "total",
				Help:      "Total number of processed requests by outcome and response error",
			},
			[]string{"outcome", "error"},
		),
		RequestStages: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "request",
				Name:      "stages",
				Help:      "Number of stages invoked per request",
				Buckets:   prometheus.LinearBuckets(1, 1, 8),
			},
		),
	}
}

// Registry returns the registry holding the dispatch collectors.
func (s *Stats) Registry() *prometheus.Registry {
	return s.registry
}

// ObserveStage implements dispatch.Recorder.
func (s *Stats) ObserveStage(_ context.Context, obs dispatch.StageObservation) {
	s.StageInvocations.WithLabelValues(obs.Registry, obs.Service, string(obs.Outcome)).Inc()
	s.StageDuration.WithLabelValues(obs.Registry).Observe(obs.Duration.Seconds())
}

// ObserveRequest implements dispatch.Recorder.
func (s *Stats) ObserveRequest(_ context.Context, obs dispatch.RequestObservation) {
	kind := obs.Kind
	if kind == "" {
		kind = "none"
	}
	s.Requests.WithLabelValues(string(obs.Outcome), kind).Inc()
	s.RequestStages.Observe(float64(obs.Stages))
}

// WriteTextfile writes the current metrics to path. The file is replaced
// atomically so a collector never reads a partial exposition.
func (s *Stats) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
