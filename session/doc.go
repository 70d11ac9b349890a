// Package session provides the persisted half of a goGate session: the [Identity]
// and [Session] model, the identity codec, and the durable key-value backends the
// two session entries are written to.
//
// # Storage layout
//
// A session is persisted as two parallel string entries: the opaque token and the
// encoded identity. [Persistence] owns both keys and keeps them paired. A reader that
// finds only one of them treats the session as absent.
//
// # Backends
//
//   - [MemoryKV]: process-local map.
//   - [RedisKV]: Redis, pair writes in a MULTI/EXEC transaction.
//   - [FileKV]: a YAML document on disk.
//
// # What this package must NOT do
//
//   - Import goGate, jwt, route, or middleware (no upward imports).
//   - Decide whether a caller is authenticated; that belongs to goGate.Store.
//   - Store password material of any kind.
package session
