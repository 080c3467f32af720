package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, _ := io.ReadAll(rec.Result().Body)
	return rec.Code, string(body)
}

func TestHandlerServesOwnRegistry(t *testing.T) {
	reg := NewRegistry()
	m := NewSettlement(reg)
	m.WagersSettled.WithLabelValues("agree").Inc()

	code, body := get(t, Handler(reg, func(context.Context) error { return nil }), "/metrics")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	for _, want := range []string{
		`settlement_wagers_settled_total{result="agree"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestHandlerHealth(t *testing.T) {
	healthy := Handler(NewRegistry(), func(context.Context) error { return nil })
	if code, body := get(t, healthy, "/healthz"); code != http.StatusOK || body != "ok" {
		t.Fatalf("healthy = %d %q", code, body)
	}

	down := Handler(NewRegistry(), func(context.Context) error { return errors.New("redis: connection refused") })
	code, body := get(t, down, "/healthz")
	if code != http.StatusServiceUnavailable || !strings.Contains(body, "connection refused") {
		t.Fatalf("unhealthy = %d %q", code, body)
	}
}
