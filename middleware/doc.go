// Package middleware adapts route decisions from goGate.Store to net/http.
//
// # Guards
//
//   - [Guard] redirects (302) unauthenticated visitors to the entry view and
//     records the requested location in the "from" query parameter.
//   - [RequireAuthenticated] answers 401 for API routes.
//
// Both attach the store to the request context of allowed requests.
// [PendingDestination] reads the remembered location back on the entry view.
//
// # What this package must NOT do
//
//   - Decide authentication itself; it only reads Store.IsAuthenticated.
//   - Touch session storage.
package middleware
