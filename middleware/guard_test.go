package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	sessionkit "github.com/airvend/sessionkit"
)

func newTestRegistry(t *testing.T) *sessionkit.Registry {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	cfg := sessionkit.DefaultConfig()
	cfg.Session.Lifetime = time.Hour
	cfg.JWT.AccessTTL = time.Minute

	registry, err := sessionkit.New().
		WithConfig(cfg).
		WithRedis(client).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(registry.Close)
	return registry
}

func claimsEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Fatal("expected claims in request context")
		}
		_, _ = w.Write([]byte(claims.UID))
	})
}

func TestGuardRejectsMissingToken(t *testing.T) {
	registry := newTestRegistry(t)
	handler := Guard(registry)(claimsEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatal("expected WWW-Authenticate challenge")
	}
}

func TestGuardRejectsGarbageToken(t *testing.T) {
	registry := newTestRegistry(t)
	handler := Guard(registry)(claimsEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGuardAcceptsValidToken(t *testing.T) {
	registry := newTestRegistry(t)
	handler := Guard(registry)(claimsEcho(t))

	created, err := registry.CreateSession(context.Background(), "u1", sessionkit.Metadata{})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+created.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "u1" {
		t.Fatalf("expected claims uid u1, got %q", rec.Body.String())
	}
}

func TestGuardStrictSeesRevocation(t *testing.T) {
	registry := newTestRegistry(t)
	lax := Guard(registry)(claimsEcho(t))
	strict := GuardStrict(registry)(claimsEcho(t))

	created, err := registry.CreateSession(context.Background(), "u1", sessionkit.Metadata{})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := registry.Revoke(context.Background(), created.Session.ID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+created.AccessToken)

	rec := httptest.NewRecorder()
	lax.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("stateless guard: expected 200 before access expiry, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	strict.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("strict guard: expected 401 after revocation, got %d", rec.Code)
	}
}
