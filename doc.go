// Package sessionkit keeps authenticated sessions alive across a fleet of
// concurrent clients. It pairs a server-side session registry (Redis-backed
// records of issued refresh credentials with atomic rotation, lazy expiry,
// and idempotent revocation) with a client-side refresh coordinator in
// package coordinator, which renews credentials at most once per failure
// burst and transparently replays the requests that failed while renewal
// was in flight.
//
// Construct a Registry through [New]:
//
//	registry, err := sessionkit.New().
//		WithConfig(sessionkit.DefaultConfig()).
//		WithRedis(rdb).
//		Build()
//
// Registry methods are safe for concurrent use after Build.
package sessionkit
