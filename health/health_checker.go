// Package health reports service health from the state of scheduled conversions.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/giygas/fsh-designations/interfaces"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore interfaces.DataStore
	scheduler interfaces.Scheduler // nil when no conversion is scheduled
}

// NewHealthChecker creates a health checker. scheduler may be nil, in which
// case only uptime is reported and the service is always healthy.
func NewHealthChecker(dataStore interfaces.DataStore, scheduler interfaces.Scheduler) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		dataStore: dataStore,
		scheduler: scheduler,
	}
}

// HealthCheck returns the status, details and HTTP code for /health
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	data = map[string]any{
		"uptime_seconds": math.Round(time.Since(h.dataStore.GetServerStartTime()).Seconds()),
		"scheduled":      h.scheduler != nil,
	}

	if h.scheduler == nil {
		return "healthy", data, http.StatusOK
	}

	summary, hasSummary := h.dataStore.GetLastSummary()
	lastErr := h.dataStore.GetLastError()
	isUpdating := h.dataStore.IsUpdating()

	data["is_updating"] = isUpdating
	if next := h.scheduler.NextRun(); !next.IsZero() {
		data["next_run"] = next.Format(time.RFC3339)
	}
	if lastErr != nil {
		data["last_error"] = lastErr.Error()
	}

	var age time.Duration
	if hasSummary {
		age = time.Since(summary.FinishedAt)
		data["last_success"] = summary.FinishedAt.Format(time.RFC3339)
		data["data_age_hours"] = math.Round(age.Hours()*10) / 10
		data["rows_emitted"] = summary.RowsEmitted
		data["rows_skipped"] = summary.RowsSkipped
		data["output"] = summary.Output
	}

	switch {
	case !hasSummary && lastErr != nil:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case !hasSummary:
		// initial conversion still running
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case age > 48*time.Hour:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case age > 24*time.Hour || lastErr != nil:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return status, data, httpStatus
}
