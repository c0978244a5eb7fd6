package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}
	mgr, err := NewManager(Config{
		AccessTTL:     ttl,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "sessionkit-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return mgr
}

func TestCreateAndParseAccess(t *testing.T) {
	mgr := newTestManager(t, 5*time.Minute)

	token, err := mgr.CreateAccess("u1", "s1", "j1")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	claims, err := mgr.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.UID != "u1" || claims.SID != "s1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID != "j1" {
		t.Fatalf("expected jti j1, got %q", claims.ID)
	}
	if claims.Issuer != "sessionkit-test" {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
}

func TestParseAccessExpired(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}

	// Sign an already-expired token directly; CreateAccess refuses to.
	claims := AccessClaims{
		UID: "u1",
		SID: "s1",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "j1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			Issuer:    "sessionkit-test",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(priv)
	if err != nil {
		t.Fatalf("signing failed: %v", err)
	}

	mgr, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "sessionkit-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	if _, err := mgr.ParseAccess(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseAccessWrongKey(t *testing.T) {
	issuerMgr := newTestManager(t, 5*time.Minute)
	verifierMgr := newTestManager(t, 5*time.Minute)

	token, err := issuerMgr.CreateAccess("u1", "s1", "j1")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	if _, err := verifierMgr.ParseAccess(token); err == nil {
		t.Fatal("expected token signed by a foreign key to be rejected")
	}
}

func TestParseAccessRejectsForeignAlgorithm(t *testing.T) {
	mgr := newTestManager(t, 5*time.Minute)

	hsToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		UID: "u1",
		SID: "s1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "sessionkit-test",
		},
	}).SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("signing failed: %v", err)
	}

	if _, err := mgr.ParseAccess(hsToken); err == nil {
		t.Fatal("expected HS256 token to be rejected by ed25519 verifier")
	}
}

func TestParseAccessRejectsMissingIdentity(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}
	mgr, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(priv)
	if err != nil {
		t.Fatalf("signing failed: %v", err)
	}

	if _, err := mgr.ParseAccess(token); err == nil {
		t.Fatal("expected token without uid/sid to be rejected")
	}
}

func TestNewManagerValidation(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}

	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero ttl", Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub}},
		{"missing public key", Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv}},
		{"hs256 without key", Config{AccessTTL: time.Minute, SigningMethod: MethodHS256}},
		{"unknown method", Config{AccessTTL: time.Minute, SigningMethod: "rs256", PrivateKey: priv, PublicKey: pub}},
		{"excessive leeway", Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub, Leeway: time.Hour}},
	}
	for _, tc := range cases {
		if _, err := NewManager(tc.cfg); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestHS256RoundTrip(t *testing.T) {
	mgr, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := mgr.CreateAccess("u1", "s1", "j1")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	claims, err := mgr.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.UID != "u1" || claims.SID != "s1" || claims.ID != "j1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}
