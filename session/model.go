package session

import "time"

// Session is the durable record of one issued refresh-credential lineage.
//
// ID and JTI are globally unique. Revoked is monotonic: once set it never
// reverts. A session at or past ExpiresAt is invalid on every validation
// path regardless of Revoked. CredentialHash holds the SHA-256 of the
// current refresh secret; the raw secret is never stored.
type Session struct {
	ID     string
	UserID string

	// JTI identifies the current credential instance. It is rotated
	// together with CredentialHash on every successful renewal.
	JTI            string
	CredentialHash [32]byte
	Revoked        bool

	// Issuance metadata, informational only. Never consulted by
	// authorization decisions.
	IssuedIP        string
	IssuedUserAgent string

	CreatedAt int64
	UpdatedAt int64
	ExpiresAt int64
}

// Live reports whether the session is usable at the given instant.
func (s *Session) Live(now time.Time) bool {
	return s != nil && !s.Revoked && now.Unix() < s.ExpiresAt
}

// Expired reports whether the session is past its absolute deadline.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || now.Unix() >= s.ExpiresAt
}
