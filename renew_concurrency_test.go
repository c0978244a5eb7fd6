package sessionkit

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// Any number of concurrent renewals presenting the same credential must
// produce exactly one rotation. Losers observe either the reuse rejection
// or, once the burned session is gone, not-found.
func TestRenewConcurrencySingleWinner(t *testing.T) {
	_, registry := newTestRegistry(t, registryTestConfig())

	created, err := registry.CreateSession(context.Background(), "u1", Metadata{})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := registry.Renew(context.Background(), created.RefreshCredential)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	fail := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, ErrCredentialRotated) || errors.Is(err, ErrSessionNotFound) {
			fail++
			continue
		}
		t.Fatalf("unexpected renew error: %v", err)
	}

	if success != 1 {
		t.Fatalf("expected exactly one renew success, got %d", success)
	}
	if fail != n-1 {
		t.Fatalf("expected %d renew failures, got %d", n-1, fail)
	}
}
