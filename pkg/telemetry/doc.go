// Package telemetry provides the observability instrumentation for
// topiary: structured logging with zerolog, Prometheus metrics for the
// provisioning counters, and optional OpenTelemetry tracing around a
// reconciliation run.
//
// Initialize at startup and carry the handle through the context:
//
//	tel, err := telemetry.New(telemetry.DefaultConfig())
//	if err != nil {
//	    ...
//	}
//	defer tel.Shutdown(context.Background())
//	ctx = tel.WithContext(ctx)
package telemetry
