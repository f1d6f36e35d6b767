package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func limited(rl *RateLimiter) http.Handler {
	return rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestRateLimiter_PerUser(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	h := limited(rl)

	send := func(userID string) int {
		req := httptest.NewRequest(http.MethodPost, "/designs/d/export", nil)
		req = req.WithContext(WithUserID(req.Context(), userID))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("user-1"); code != http.StatusNoContent {
			t.Fatalf("Request %d status = %d, want 204", i, code)
		}
	}
	if code := send("user-1"); code != http.StatusTooManyRequests {
		t.Errorf("Over-limit status = %d, want 429", code)
	}
	if code := send("user-2"); code != http.StatusNoContent {
		t.Errorf("Other user status = %d, want 204", code)
	}
}

func TestRateLimiter_Headers(t *testing.T) {
	h := limited(NewRateLimiter(0.001, 1))

	req := httptest.NewRequest(http.MethodGet, "/size-presets", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("X-RateLimit-Limit") != "1" || rr.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("Headers = %v", rr.Header())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("Status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
}

func TestCallerKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.9:1234"
	if got := callerKey(req); got != "ip:192.168.1.9" {
		t.Errorf("callerKey() = %q", got)
	}
	req = req.WithContext(WithUserID(req.Context(), "user-7"))
	if got := callerKey(req); got != "user:user-7" {
		t.Errorf("callerKey() = %q", got)
	}
}
