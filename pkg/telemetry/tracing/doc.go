// Package tracing exports OpenTelemetry spans for pipeline runs.
//
// Each advance of a run is a "run.advance" span and each stage execution a
// "stage.<name>" child span carrying the run id. Spans go to an OTLP gRPC
// collector; with tracing disabled a noop tracer is used and nothing is
// exported.
//
//	tr, err := tracing.New(ctx, &cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tr.Shutdown(context.Background())
//	deps.Tracer = tr.Tracer()
package tracing
