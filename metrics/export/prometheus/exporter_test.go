package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sessionkit "github.com/airvend/sessionkit"
)

type fakeSource struct {
	snapshot sessionkit.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() sessionkit.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func TestHandlerRendersCounters(t *testing.T) {
	h := Handler(fakeSource{
		snapshot: sessionkit.MetricsSnapshot{
			Counters: map[sessionkit.MetricID]uint64{
				sessionkit.MetricRenewSuccess:       7,
				sessionkit.MetricRenewReuseDetected: 1,
			},
		},
		dropped: 2,
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	out := string(body)
	if !strings.Contains(out, "sessionkit_renew_success_total 7") {
		t.Fatalf("expected renew success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "sessionkit_renew_reuse_detected_total 1") {
		t.Fatalf("expected reuse counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "sessionkit_audit_dropped_total 2") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	h := Handler(fakeSource{
		snapshot: sessionkit.MetricsSnapshot{
			Counters: map[sessionkit.MetricID]uint64{sessionkit.MetricSessionCreated: 1},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
}

func TestCollectorCoversEveryCounter(t *testing.T) {
	counters := make(map[sessionkit.MetricID]uint64, sessionkit.MetricIDCount)
	for id := 0; id < sessionkit.MetricIDCount; id++ {
		counters[sessionkit.MetricID(id)] = uint64(id + 1)
	}

	h := Handler(fakeSource{snapshot: sessionkit.MetricsSnapshot{Counters: counters}})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := rec.Body.String()
	if got := strings.Count(out, "sessionkit_"); got < sessionkit.MetricIDCount {
		t.Fatalf("expected at least %d sessionkit series, found %d:\n%s", sessionkit.MetricIDCount, got, out)
	}
}
