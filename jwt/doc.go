// Package jwt issues and verifies signed session tokens (HS256 or Ed25519).
//
// A goGate session token is opaque to the session store; this package is one
// way of minting it. Tokens carry the identity fields as claims and a random
// jti, and by default no exp claim.
package jwt
