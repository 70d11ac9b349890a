// Package goGate keeps a single client session and gates restricted locations
// behind an entry view.
//
// A [Store] holds the current [Session] (an [Identity] plus a token). It is
// built once through [New] and [Builder.Build], restored with [Store.Hydrate],
// and changed only by [Store.Login], [Store.Signup], and [Store.Logout]. Every
// change is written to durable storage (memory, a YAML file, or Redis; see
// package session) before it becomes visible, so a restarted process
// observes the last completed change.
//
// Authentication is simulated: any credentials are accepted after a fixed
// delay. The [Authenticator] and [TokenIssuer] interfaces are the seams where a
// real backend would be substituted.
//
// # Route guarding
//
// [Store.CheckRoute] applies package route: an unauthenticated visitor asking
// for a restricted location is sent to the entry view with that location
// remembered as the pending destination, and [Store.ResolveDestination] sends
// them back after a successful login. Package middleware adapts both to
// net/http.
//
// # Concurrency
//
// All Store methods are safe for concurrent use. Readers never observe a
// half-updated session: identity and token change together.
//
// # What this package must NOT do
//
//   - Verify, store, or log passwords.
//   - Leave exactly one of the two persisted entries behind after a change.
//   - Abort a started login or signup because its context was cancelled.
package goGate
