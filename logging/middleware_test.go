package logging

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func newCapturingHandler(t *testing.T, next http.Handler) (http.Handler, *strings.Builder) {
	t.Helper()
	var out strings.Builder
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	return LoggingMiddleware(logger)(next), &out
}

func TestLoggingMiddlewareSkipsProbes(t *testing.T) {
	handler, out := newCapturingHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			out.Reset()
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

			if rr.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d", rr.Code)
			}
			if out.Len() != 0 {
				t.Errorf("expected no logs for %s, got: %s", path, out.String())
			}
		})
	}
}

func TestLoggingMiddlewareLogsConversion(t *testing.T) {
	handler, out := newCapturingHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Rows-Emitted", "3")
		w.Header().Set("X-Rows-Skipped", "1")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("* #1 \"a\"\n"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/convert?code=code", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-42"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	logs := out.String()
	for _, want := range []string{
		"request_id=req-42",
		"method=POST",
		"path=/convert",
		"query=code=code",
		"status_code=200",
		"rows_emitted=3",
		"rows_skipped=1",
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("expected log to contain %q, got: %s", want, logs)
		}
	}
}

func TestLoggingMiddlewareServerErrorsAtErrorLevel(t *testing.T) {
	handler, out := newCapturingHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/convert", nil))

	if !strings.Contains(out.String(), "level=ERROR") {
		t.Errorf("expected ERROR level, got: %s", out.String())
	}
}
