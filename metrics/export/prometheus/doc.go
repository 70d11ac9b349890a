// Package prometheus renders goGate metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] takes a [goGate.Store] and exposes an [http.Handler].
// Families come from internaldefs.Walk, so outcomes share one name and
// differ by label, e.g. gogate_hydrate_total{outcome="restored"}. The single
// histogram is gogate_authenticate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate store state.
package prometheus
