// Package telemetry wires OpenTelemetry tracing and metrics for dispatchd.
//
// When enabled, spans and metrics are exported over OTLP (gRPC or
// HTTP/protobuf) and installed as the global providers, so the dispatch
// processor's default tracer and the Metrics recorder pick them up without
// further wiring. When disabled, New returns an instance whose Tracer and
// Meter fall back to the global no-op providers.
//
// Telemetry never fails a run: exporter setup errors mark the instance
// degraded and are logged.
//
//	tel, err := telemetry.New(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Tests use TestTelemetry, which records spans in memory and collects
// metrics through a ManualReader:
//
//	tt := telemetry.NewTestTelemetry()
//	p, _ := dispatch.NewProcessor(stages, dispatch.WithTracer(tt.Tracer("test")))
//	...
//	tt.AssertSpanExists(t, "dispatch.request")
package telemetry
