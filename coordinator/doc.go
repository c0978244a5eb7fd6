// Package coordinator transparently renews an authenticated session across
// concurrent HTTP requests.
//
// A [Coordinator] wraps a transport. When a request comes back
// unauthorized, the first caller to notice becomes the leader of a renewal
// attempt; every other request failing in the same window parks until that
// single attempt settles. On success each parked request is replayed once
// with the refreshed credential. On failure all of them resolve with the
// same [ErrSessionExpired]-wrapped outcome and the host is told to
// redirect to sign-in exactly once.
//
// Authorization failures on the login and renewal endpoints themselves
// never trigger renewal; transport errors and non-401 responses pass through
// untouched.
package coordinator
