package sessionkit

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated signals a missing, invalid, or expired access
	// credential on a protected call. Recoverable via renewal.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSessionNotFound is returned when no session matches the presented
	// identifier or refresh credential.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when the matched session is past its
	// absolute deadline. Expiry takes precedence over every other check.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionRevoked is returned when the matched session has been
	// revoked. Revocation is permanent.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrCredentialRotated is returned when the presented refresh
	// credential has already been superseded by a rotation. A replayed
	// renewal (client retry or stolen credential) lands here; the session
	// lineage is torn down as a precaution.
	ErrCredentialRotated = errors.New("refresh credential already rotated")
	// ErrTokenInvalid is returned when an access token fails verification.
	// It matches ErrUnauthenticated under errors.Is.
	ErrTokenInvalid = fmt.Errorf("%w: invalid access token", ErrUnauthenticated)
	// ErrRegistryUnavailable wraps backend transport failures.
	ErrRegistryUnavailable = errors.New("session registry unavailable")
	// ErrRegistryNotReady is returned when a Registry method is called
	// before Build completed.
	ErrRegistryNotReady = errors.New("registry not initialized")
)

// IsRenewalDenied reports whether err is one of the terminal renewal
// rejections. None of them is recoverable by retrying the same credential.
func IsRenewalDenied(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrSessionRevoked) ||
		errors.Is(err, ErrCredentialRotated)
}

// Wire codes for renewal denials. The renewal endpoint returns these so a
// failed renewal is distinguishable from a generic authorization failure.
const (
	CodeSessionNotFound   = "session_not_found"
	CodeSessionExpired    = "session_expired"
	CodeSessionRevoked    = "session_revoked"
	CodeCredentialRotated = "credential_rotated"
)

// DenialCode maps a renewal rejection to its wire code.
func DenialCode(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrCredentialRotated):
		return CodeCredentialRotated, true
	case errors.Is(err, ErrSessionRevoked):
		return CodeSessionRevoked, true
	case errors.Is(err, ErrSessionExpired):
		return CodeSessionExpired, true
	case errors.Is(err, ErrSessionNotFound):
		return CodeSessionNotFound, true
	default:
		return "", false
	}
}

// DenialFromCode is the inverse of [DenialCode].
func DenialFromCode(code string) (error, bool) {
	switch code {
	case CodeSessionNotFound:
		return ErrSessionNotFound, true
	case CodeSessionExpired:
		return ErrSessionExpired, true
	case CodeSessionRevoked:
		return ErrSessionRevoked, true
	case CodeCredentialRotated:
		return ErrCredentialRotated, true
	default:
		return nil, false
	}
}
