package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"review_hub/internal/adapters/observability"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record samples so the vectors are exported
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)
	observability.ObserveSync("google", "ok")
	observability.ObserveExternal("google", "reviews.list", 200, 30*time.Millisecond)
	observability.ObserveRefresh("yelp", "ok")
	observability.ObserveGeneration("draft", "ok")
	observability.ObserveIngested("google")

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, name := range []string{
		"reviewhub_http_requests_total",
		"reviewhub_sync_runs_total",
		"reviewhub_external_requests_total",
		"reviewhub_token_refreshes_total",
		"reviewhub_generations_total",
		"reviewhub_reviews_ingested_total",
	} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %s in output", name)
		}
	}
}
