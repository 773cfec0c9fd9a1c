package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRealIPMiddleware(t *testing.T) {
	tests := []struct {
		name string
		xff  string
		want string
	}{
		{"single ip", "203.0.113.7", "203.0.113.7"},
		{"proxy chain", "203.0.113.7, 10.0.0.1", "203.0.113.7"},
		{"no header", "", "192.0.2.1:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := RealIPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("expected RemoteAddr %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRequestSizeMiddleware(t *testing.T) {
	handler := RequestSizeMiddleware(testConfig())(okHandler())

	t.Run("declared body too large", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader(strings.Repeat("x", 2048)))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("expected 413, got %d", rr.Code)
		}
	})

	t.Run("exactly max size", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader(strings.Repeat("x", 1024)))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("headers too large", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Big", strings.Repeat("h", 5000))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusRequestHeaderFieldsTooLarge {
			t.Errorf("expected 431, got %d", rr.Code)
		}
	})
}

func TestGetTokenCost(t *testing.T) {
	tests := []struct {
		path          string
		contentLength int64
		want          int64
	}{
		{"/health", 0, 0},
		{"/metrics", 0, 0},
		{"/v1/runs/last", 0, 5},
		{"/convert", 0, 20},
		{"/convert", 1, 30},
		{"/convert", 1 << 20, 30},
		{"/convert", 3<<20 + 1, 60},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, tt.path, nil)
		req.ContentLength = tt.contentLength
		if got := getTokenCost(req); got != tt.want {
			t.Errorf("getTokenCost(%s, %d) = %d, want %d", tt.path, tt.contentLength, got, tt.want)
		}
	}
}

func TestRateLimiterRejectsWhenExhausted(t *testing.T) {
	rl := NewRateLimiter(0.001, 40)
	defer rl.Stop()
	handler := rl.Middleware(okHandler())

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/convert", nil)
		req.RemoteAddr = "198.51.100.4:5555"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", code)
	}
	if code := send(); code != http.StatusOK {
		t.Fatalf("second request: expected 200, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("third request: expected 429, got %d", code)
	}
}

func TestRateLimiterSharesBucketAcrossPorts(t *testing.T) {
	rl := NewRateLimiter(0.001, 40)
	defer rl.Stop()
	handler := rl.Middleware(okHandler())

	allowed := 0
	for port := 5000; port < 5010; port++ {
		req := httptest.NewRequest(http.MethodPost, "/convert", nil)
		req.RemoteAddr = "198.51.100.4:" + strconv.Itoa(port)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code == http.StatusOK {
			allowed++
		}
	}

	if allowed != 2 {
		t.Errorf("expected 2 requests allowed across ports, got %d", allowed)
	}

	// Another host still has its own bucket
	req := httptest.NewRequest(http.MethodPost, "/convert", nil)
	req.RemoteAddr = "198.51.100.5:5000"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected other host to pass, got %d", rr.Code)
	}
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"198.51.100.4:5000", "198.51.100.4"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"203.0.113.7", "203.0.113.7"},
		{"2001:db8::1", "2001:db8::1"},
	}

	for _, tt := range tests {
		if got := clientKey(tt.addr); got != tt.want {
			t.Errorf("clientKey(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(DefaultRate, DefaultCapacity)
	defer rl.Stop()

	rl.getBucket("10.0.0.1:1")
	busy := rl.getBucket("10.0.0.2:1")
	busy.TakeAvailable(500)

	rl.cleanup()

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if _, ok := rl.clients["10.0.0.1:1"]; ok {
		t.Error("expected idle client to be removed")
	}
	if _, ok := rl.clients["10.0.0.2:1"]; !ok {
		t.Error("expected busy client to be kept")
	}
}
