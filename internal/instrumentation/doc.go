// Package instrumentation wires OpenTelemetry metrics and tracing.
//
// The provider owns the exporter lifecycle. Metrics default to a Prometheus
// reader exposed on the metrics listener; tracing is off unless an exporter
// is configured. The Metrics recorder is safe to call before initialization:
// every method no-ops when its instrument is nil, so disabled instrumentation
// costs nothing at call sites.
package instrumentation
