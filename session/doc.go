// Package session provides the durable session model, a compact binary
// codec, and a Redis-backed store whose rotation and revocation paths are
// atomic per session key.
//
// The store is the single source of truth for whether a refresh credential
// is currently usable. Expiry is enforced lazily: Redis TTLs bound record
// lifetime and every read re-checks the embedded deadline, so no background
// sweep is required.
package session
