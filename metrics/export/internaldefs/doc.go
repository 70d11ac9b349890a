// Package internaldefs describes the exported goGate metric families and walks
// a store snapshot into them, so the Prometheus and OTel exporters expose the
// same series with the same labels.
//
// Store counters are grouped by what they count: login and signup by
// operation and result, hydrate by outcome, route checks by decision. The
// session_active gauge and the audit drop counter are read from the store
// directly.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
