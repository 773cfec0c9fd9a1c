package health

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/giygas/fsh-designations/data"
	"github.com/giygas/fsh-designations/interfaces"
)

type mockScheduler struct {
	next time.Time
}

func (m *mockScheduler) Start() error       { return nil }
func (m *mockScheduler) Stop()              {}
func (m *mockScheduler) NextRun() time.Time { return m.next }

func TestHealthCheckWithoutScheduler(t *testing.T) {
	store := data.NewRunStore()
	store.SetServerStartTime(time.Now().Add(-90 * time.Second))

	status, details, code := NewHealthChecker(store, nil).HealthCheck()

	if status != "healthy" || code != http.StatusOK {
		t.Errorf("expected healthy/200, got %s/%d", status, code)
	}
	if uptime, _ := details["uptime_seconds"].(float64); uptime < 90 {
		t.Errorf("expected uptime >= 90s, got %v", details["uptime_seconds"])
	}
	if details["scheduled"] != false {
		t.Errorf("expected scheduled=false, got %v", details["scheduled"])
	}
}

func TestHealthCheckStatuses(t *testing.T) {
	failure := errors.New("source unreadable")

	tests := []struct {
		name       string
		setup      func(rs *data.RunStore)
		wantStatus string
		wantCode   int
	}{
		{
			name:       "initial run pending",
			setup:      func(rs *data.RunStore) { rs.BeginUpdate() },
			wantStatus: "degraded",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name:       "initial run failed",
			setup:      func(rs *data.RunStore) { rs.RecordFailure(failure) },
			wantStatus: "unhealthy",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name: "fresh success",
			setup: func(rs *data.RunStore) {
				rs.RecordSuccess(interfaces.ConversionSummary{RowsEmitted: 10, FinishedAt: time.Now()})
			},
			wantStatus: "healthy",
			wantCode:   http.StatusOK,
		},
		{
			name: "success then failure",
			setup: func(rs *data.RunStore) {
				rs.RecordSuccess(interfaces.ConversionSummary{FinishedAt: time.Now()})
				rs.RecordFailure(failure)
			},
			wantStatus: "degraded",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name: "older than a day",
			setup: func(rs *data.RunStore) {
				rs.RecordSuccess(interfaces.ConversionSummary{FinishedAt: time.Now().Add(-30 * time.Hour)})
			},
			wantStatus: "degraded",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name: "older than two days",
			setup: func(rs *data.RunStore) {
				rs.RecordSuccess(interfaces.ConversionSummary{FinishedAt: time.Now().Add(-72 * time.Hour)})
			},
			wantStatus: "unhealthy",
			wantCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := data.NewRunStore()
			store.SetServerStartTime(time.Now())
			tt.setup(store)

			status, _, code := NewHealthChecker(store, &mockScheduler{}).HealthCheck()
			if status != tt.wantStatus || code != tt.wantCode {
				t.Errorf("got %s/%d, want %s/%d", status, code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestHealthCheckDetails(t *testing.T) {
	store := data.NewRunStore()
	store.SetServerStartTime(time.Now())
	store.RecordSuccess(interfaces.ConversionSummary{
		Output:      "out/drugs.fsh",
		RowsEmitted: 40,
		RowsSkipped: 2,
		FinishedAt:  time.Now().Add(-3 * time.Hour),
	})
	next := time.Now().Add(time.Hour).Truncate(time.Second)

	_, details, _ := NewHealthChecker(store, &mockScheduler{next: next}).HealthCheck()

	if details["rows_emitted"] != 40 || details["rows_skipped"] != 2 {
		t.Errorf("unexpected row counts: %v", details)
	}
	if details["output"] != "out/drugs.fsh" {
		t.Errorf("unexpected output: %v", details["output"])
	}
	if details["next_run"] != next.Format(time.RFC3339) {
		t.Errorf("expected next_run %s, got %v", next.Format(time.RFC3339), details["next_run"])
	}
	if age, _ := details["data_age_hours"].(float64); age != 3 {
		t.Errorf("expected data_age_hours 3, got %v", details["data_age_hours"])
	}
	if _, ok := details["last_error"]; ok {
		t.Error("expected no last_error after a success")
	}
}
