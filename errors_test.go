package sessionkit

import (
	"errors"
	"fmt"
	"testing"
)

func TestDenialCodeRoundTrip(t *testing.T) {
	denials := []error{
		ErrSessionNotFound,
		ErrSessionExpired,
		ErrSessionRevoked,
		ErrCredentialRotated,
	}

	for _, denial := range denials {
		code, ok := DenialCode(denial)
		if !ok {
			t.Fatalf("expected code for %v", denial)
		}
		back, ok := DenialFromCode(code)
		if !ok || !errors.Is(back, denial) {
			t.Fatalf("code %q did not round trip to %v", code, denial)
		}
	}
}

func TestDenialCodeWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("renewal endpoint: %w", ErrCredentialRotated)
	code, ok := DenialCode(wrapped)
	if !ok || code != CodeCredentialRotated {
		t.Fatalf("expected %q for wrapped error, got %q ok=%v", CodeCredentialRotated, code, ok)
	}
}

func TestDenialCodeNonDenial(t *testing.T) {
	if _, ok := DenialCode(ErrRegistryUnavailable); ok {
		t.Fatal("backend failures must not map to a denial code")
	}
	if _, ok := DenialFromCode("nonsense"); ok {
		t.Fatal("unknown codes must not map to an error")
	}
}

func TestTokenInvalidIsUnauthenticated(t *testing.T) {
	if !errors.Is(ErrTokenInvalid, ErrUnauthenticated) {
		t.Fatal("invalid tokens must classify as unauthenticated")
	}
	if errors.Is(ErrSessionRevoked, ErrUnauthenticated) {
		t.Fatal("renewal denials are not access-token failures")
	}
}

func TestIsRenewalDenied(t *testing.T) {
	if !IsRenewalDenied(ErrSessionExpired) {
		t.Fatal("expired must classify as denied")
	}
	if IsRenewalDenied(ErrRegistryUnavailable) {
		t.Fatal("unavailability must not classify as denied")
	}
	if IsRenewalDenied(nil) {
		t.Fatal("nil is not a denial")
	}
}
