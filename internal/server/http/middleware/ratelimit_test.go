package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianly1003/wahub/internal/security"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(WithRate(0.001), WithBurst(2))
	defer rl.Close()

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("expected the burst to be allowed")
	}
	if rl.Allow("a") {
		t.Error("expected third request to be limited")
	}
	if !rl.Allow("b") {
		t.Error("expected a different key to have its own bucket")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter()
	defer rl.Close()

	rl.Allow("stale")
	rl.cleanup(time.Now().Add(time.Minute))

	rl.mu.Lock()
	n := len(rl.buckets)
	rl.mu.Unlock()
	if n != 0 {
		t.Errorf("expected stale bucket to be removed, have %d", n)
	}

	// Close is idempotent.
	rl.Close()
}

func TestIPKeyExtractor(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.168.1.1:12345", "192.168.1.1"},
		{"[::1]:8080", "::1"},
		{"garbage", "garbage"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		req.Header.Set("X-Forwarded-For", "10.0.0.1")
		if got := IPKeyExtractor(req); got != tt.want {
			t.Errorf("IPKeyExtractor(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}

func TestClientIPKeyExtractor(t *testing.T) {
	trusted, err := security.ParseTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatal(err)
	}
	keyFn := ClientIPKeyExtractor(trusted)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := keyFn(req); got != "203.0.113.9" {
		t.Errorf("trusted proxy key = %q, want forwarded client", got)
	}

	req.RemoteAddr = "198.51.100.4:5555"
	if got := keyFn(req); got != "198.51.100.4" {
		t.Errorf("untrusted peer key = %q, want the peer", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(WithRate(0.001), WithBurst(1))
	defer rl.Close()

	h := RateLimitMiddleware(rl, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/notify", nil)
	req.RemoteAddr = "10.1.1.1:999"

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Limit") != "1" {
		t.Errorf("unexpected limit header %q", w.Header().Get("X-RateLimit-Limit"))
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}
