// Package otel provides OpenTelemetry metric exporter bindings for
// registry counters.
//
// [NewOTelExporter] registers an Int64ObservableCounter per registry
// metric. A single callback reads one metrics snapshot on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate registry state.
package otel
