// Package otel exports goGate counters and the authenticate latency histogram
// through an OpenTelemetry meter.
//
// [NewOTelExporter] registers one observable instrument per metric family,
// with outcome labels carried as attributes, plus bucket and count gauges for
// the latency histogram. A single callback walks the store snapshot on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate store state.
package otel
