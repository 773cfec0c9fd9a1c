// Package handlers provides the HTTP handlers of the conversion service:
// on-demand conversion, the last scheduled run, and health.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/giygas/fsh-designations/interfaces"
	"github.com/giygas/fsh-designations/logging"
)

// HTTPHandler serves the service endpoints
type HTTPHandler struct {
	dataStore     interfaces.DataStore
	healthChecker interfaces.HealthChecker
	defaults      ConvertDefaults
}

// ConvertDefaults are applied to /convert requests that leave them unset
type ConvertDefaults struct {
	ExtraPrefix string
	Encoding    string
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(dataStore interfaces.DataStore, healthChecker interfaces.HealthChecker, defaults ConvertDefaults) *HTTPHandler {
	return &HTTPHandler{
		dataStore:     dataStore,
		healthChecker: healthChecker,
		defaults:      defaults,
	}
}

// RespondWithJSON writes payload as JSON with the given status code
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error body
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	})
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status string         `json:"status"`
	Uptime string         `json:"uptime"`
	Data   map[string]any `json:"data"`
	System map[string]any `json:"system"`
}

// HealthCheck returns server health information
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, data, httpStatus := h.healthChecker.HealthCheck()

	RespondWithJSON(w, httpStatus, HealthResponse{
		Status: status,
		Uptime: formatUptimeHuman(time.Since(h.dataStore.GetServerStartTime())),
		Data:   data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	})
}

// LastRunResponse describes the last scheduled conversion
type LastRunResponse struct {
	Input        string         `json:"input"`
	Output       string         `json:"output"`
	Languages    []string       `json:"languages"`
	RowsRead     int            `json:"rows_read"`
	RowsEmitted  int            `json:"rows_emitted"`
	RowsSkipped  int            `json:"rows_skipped"`
	Designations int            `json:"designations"`
	DurationMs   int64          `json:"duration_ms"`
	FinishedAt   string         `json:"finished_at"`
	Quality      map[string]any `json:"quality,omitempty"`
	LastError    string         `json:"last_error,omitempty"`
}

// LastRun returns the summary of the last successful scheduled conversion
func (h *HTTPHandler) LastRun(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.dataStore.GetLastSummary()
	if !ok {
		msg := "No conversion has completed yet"
		if err := h.dataStore.GetLastError(); err != nil {
			msg = fmt.Sprintf("No conversion has completed yet: %v", err)
		}
		RespondWithError(w, http.StatusNotFound, msg)
		return
	}

	resp := LastRunResponse{
		Input:        summary.Input,
		Output:       summary.Output,
		Languages:    summary.Plan.Tags(),
		RowsRead:     summary.RowsRead,
		RowsEmitted:  summary.RowsEmitted,
		RowsSkipped:  summary.RowsSkipped,
		Designations: summary.Designations,
		DurationMs:   summary.Duration.Milliseconds(),
		FinishedAt:   summary.FinishedAt.Format(time.RFC3339),
	}
	if q := summary.Quality; q.HasIssues() {
		resp.Quality = map[string]any{
			"duplicate_codes":              q.DuplicateCodes,
			"duplicate_code_rows":          q.DuplicateCodeRows,
			"duplicate_tags":               q.DuplicateTags,
			"rejected_tag_columns":         q.RejectedTagColumns,
			"rows_without_designations":    q.RowsWithoutDesignations,
			"rows_without_designations_of": q.RowsWithoutDesignationsCode,
		}
	}
	if err := h.dataStore.GetLastError(); err != nil {
		resp.LastError = err.Error()
	}

	RespondWithJSON(w, http.StatusOK, resp)
}
