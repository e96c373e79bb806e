package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func serve(t *testing.T, p Probes, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	p.Handler(slog.New(slog.DiscardHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return rec, body
}

func TestHealthzReportsLastRun(t *testing.T) {
	p := Probes{
		Service: "bronzeload",
		LastRun: func() any { return map[string]string{"run_id": "run-1", "state": "failed"} },
	}
	rec, body := serve(t, p, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	last, ok := body["last_run"].(map[string]any)
	if !ok || last["run_id"] != "run-1" || last["state"] != "failed" {
		t.Fatalf("last_run=%v", body["last_run"])
	}
}

func TestHealthzBeforeFirstRun(t *testing.T) {
	_, body := serve(t, Probes{Service: "bronzeload"}, "/healthz")
	if body["status"] != "ok" || body["last_run"] != nil {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestReadyzFailsWhenACheckFails(t *testing.T) {
	p := Probes{
		Service: "bronzeload",
		Checks: []ReadinessCheck{
			{Name: "minio", Check: func(context.Context) error { return nil }},
			{Name: "warehouse", Check: func(context.Context) error { return errors.New("down") }},
		},
	}
	rec, body := serve(t, p, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", rec.Code)
	}
	checks, _ := body["checks"].([]any)
	if body["status"] != "not_ready" || len(checks) != 2 {
		t.Fatalf("unexpected body: %v", body)
	}
	if second := checks[1].(map[string]any); second["status"] != "fail" || second["error"] != "down" {
		t.Fatalf("warehouse check=%v", second)
	}
}

func TestReadyzAppliesCheckTimeout(t *testing.T) {
	p := Probes{
		Service:      "bronzeload",
		CheckTimeout: 10 * time.Millisecond,
		Checks: []ReadinessCheck{{Name: "warehouse", Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}}},
	}
	rec, _ := serve(t, p, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", rec.Code)
	}
}

func TestHandlerRecoversPanic(t *testing.T) {
	p := Probes{Service: "bronzeload", LastRun: func() any { panic("boom") }}
	rec := httptest.NewRecorder()
	p.Handler(slog.New(slog.DiscardHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want 500", rec.Code)
	}
}

func TestServeRequiresAddr(t *testing.T) {
	if err := Serve(context.Background(), slog.New(slog.DiscardHandler), Config{}, http.NewServeMux()); err == nil {
		t.Fatalf("Serve() expected error without addr")
	}
}
