package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func TestCorrelationIDMiddleware_GeneratesID(t *testing.T) {
	var gotCtx string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCtx, _ = r.Context().Value("correlation_id").(string)
	})
	handler := CorrelationIDMiddleware(zap.NewNop())(next)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if gotCtx == "" {
		t.Error("correlation_id not set in request context")
	}
	if hdr := w.Header().Get("X-Correlation-ID"); hdr != gotCtx {
		t.Errorf("header = %q, context = %q, want equal", hdr, gotCtx)
	}
}

func TestCorrelationIDMiddleware_PropagatesIncomingID(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := CorrelationIDMiddleware(zap.NewNop())(next)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Correlation-ID", "upstream-id")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if hdr := w.Header().Get("X-Correlation-ID"); hdr != "upstream-id" {
		t.Errorf("header = %q, want upstream-id", hdr)
	}
}

func TestGetRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/health", "/health"},
		{"/dashboard/stations", "/dashboard/{page}"},
		{"/assets/intro.jpg", "/assets/{name}"},
		{"/api/stations/top", "/api/stations/top"},
		{"/map", "/map"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", tt.path, nil)
		if got := getRoute(req); got != tt.want {
			t.Errorf("getRoute(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestStatusCodeString(t *testing.T) {
	if got := statusCodeString(204); got != "2xx" {
		t.Errorf("statusCodeString(204) = %q, want 2xx", got)
	}
	if got := statusCodeString(503); got != "5xx" {
		t.Errorf("statusCodeString(503) = %q, want 5xx", got)
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	handler := RateLimitMiddleware(nil)(next)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/summary", nil))
	if !called {
		t.Error("handler not called with nil limiter")
	}
}

func TestRateLimitMiddleware_Denies(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(1), 1)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := RateLimitMiddleware(limiter)(next)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/summary", nil))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/summary", nil))

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
}

func TestTimeoutMiddleware_SetsDeadline(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); !ok {
			t.Error("request context has no deadline")
		}
	})
	handler := TimeoutMiddleware(time.Second)(next)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/summary", nil))
}
