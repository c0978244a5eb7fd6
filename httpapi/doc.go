// Package httpapi serves the session registry over HTTP.
//
// The unauthenticated surface carries login, renewal, and logout. The
// refresh credential travels in an HttpOnly cookie scoped to the auth
// path, so browser scripts never see it; renewal rotates the cookie on
// every success. The administrative surface (session inspection and
// revocation) sits behind middleware.GuardStrict, which checks session
// liveness against the store on every request.
package httpapi
