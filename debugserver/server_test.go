package debugserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sbarnard/connpool/pool"
)

func testSetup(t *testing.T) http.Handler {
	t.Helper()
	p, err := pool.NewSpecific([]string{"http://127.0.0.1:8080"}, nil, pool.Options{
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewSpecific: %v", err)
	}
	log := zerolog.New(io.Discard).With().Timestamp().Logger()
	return New(p, log)
}

func TestHealthEndpoints(t *testing.T) {
	r := testSetup(t)

	for _, path := range []string{"/healthz", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rw := httptest.NewRecorder()
		r.ServeHTTP(rw, req)
		if rw.Result().StatusCode != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, rw.Result().StatusCode)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := testSetup(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", rw.Result().StatusCode)
	}
	body := rw.Body.String()
	if !strings.Contains(body, "pool_total_idle_count") {
		t.Fatalf("body missing pool_total_idle_count: %s", body)
	}
	if !strings.Contains(body, "pool_target_request_count") {
		t.Fatalf("body missing pool_target_request_count: %s", body)
	}
	for _, name := range []string{
		"pool_dial_success_count",
		"pool_dial_failure_count",
		"pool_dead_discard_count",
		"pool_dirty_discard_count",
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("body missing %s: %s", name, body)
		}
	}
}
