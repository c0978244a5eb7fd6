package sessionkit

import "github.com/airvend/sessionkit/session"

// Metadata captures client attributes at session issuance. Informational
// only; never consulted by authorization decisions.
type Metadata struct {
	IP        string
	UserAgent string
}

// CreateResult is returned by [Registry.CreateSession].
type CreateResult struct {
	Session *session.Session
	// AccessToken is the short-lived credential for protected calls.
	AccessToken string
	// RefreshCredential is the opaque secret handed to the client for
	// later renewal. It is never stored in the clear.
	RefreshCredential string
}

// RenewResult is returned by [Registry.Renew] on success.
type RenewResult struct {
	Session *session.Session
	// AccessToken is freshly issued against the renewed session.
	AccessToken string
	// RefreshCredential replaces the presented credential, which is
	// invalid from this point on.
	RefreshCredential string
}
