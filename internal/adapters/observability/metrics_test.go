package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"resort_hub/internal/adapters/observability"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record samples so the vectors are exported
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)
	observability.ObserveMediaDelete("cloudinary", "image", "ok")
	observability.ObserveOrphan("queued")

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, name := range []string{"resort_http_requests_total", "resort_media_deletes_total", "resort_orphan_events_total"} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %s in output", name)
		}
	}
}

func TestNewLoggerLevel(t *testing.T) {
	l := observability.NewLogger("prod", "api", "warn")
	if l.GetLevel().String() != "warn" {
		t.Fatalf("level = %s", l.GetLevel())
	}
	if observability.NewLogger("prod", "api", "bogus").GetLevel().String() != "info" {
		t.Fatalf("expected info fallback")
	}
}
