package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWriteTextfile(t *testing.T) {
	RowsTotal.WithLabelValues("emitted").Add(3)

	path := filepath.Join(t.TempDir(), "fshconv.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(body), `fshconv_rows_total{outcome="emitted"}`) {
		t.Errorf("textfile does not contain rows counter:\n%s", body)
	}
}

func TestWriteTextfileBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "fshconv.prom")
	if err := WriteTextfile(path); err == nil {
		t.Error("Expected error for unwritable path")
	}
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	router := chi.NewRouter()
	router.Use(Metrics)
	router.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(HTTPRequestTotals.WithLabelValues("GET", "/items/{id}", "418"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	after := testutil.ToFloat64(HTTPRequestTotals.WithLabelValues("GET", "/items/{id}", "418"))
	if after-before != 1 {
		t.Errorf("Expected counter to increase by 1, got %v", after-before)
	}
}
