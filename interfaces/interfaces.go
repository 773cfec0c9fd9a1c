// Package interfaces defines core abstractions shared by the converter,
// scheduler, data store and HTTP layers.
package interfaces

import (
	"context"
	"time"

	"github.com/giygas/fsh-designations/fsh"
)

// DataQualityReport summarises non-fatal issues found while converting.
type DataQualityReport struct {
	DuplicateCodes              []string // each repeated code listed once, in first-repeat order
	DuplicateCodeRows           int      // rows whose code was already emitted
	DuplicateTags               []string // extra-language tags fed by more than one column
	RejectedTagColumns          []string // prefixed columns left out because their tag is unusable
	RowsWithoutDesignations     int
	RowsWithoutDesignationsCode []string // first 10 codes only
}

// HasIssues reports whether anything in the report deserves a warning.
func (r *DataQualityReport) HasIssues() bool {
	return r != nil && (r.DuplicateCodeRows > 0 || len(r.DuplicateTags) > 0 ||
		len(r.RejectedTagColumns) > 0 || r.RowsWithoutDesignations > 0)
}

// ConversionSummary describes one finished conversion.
type ConversionSummary struct {
	Input        string
	Output       string
	Plan         fsh.FieldPlan
	RowsRead     int
	RowsEmitted  int
	RowsSkipped  int
	Designations int
	Duration     time.Duration
	FinishedAt   time.Time
	Quality      *DataQualityReport
}

// ConversionJob runs one scheduled conversion.
type ConversionJob interface {
	Run(ctx context.Context) (ConversionSummary, error)
}

// DataStore keeps the state of scheduled conversions. Implementations must be
// safe for concurrent use.
type DataStore interface {
	GetLastSummary() (ConversionSummary, bool)
	GetLastError() error
	GetLastRun() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	RecordSuccess(summary ConversionSummary)
	RecordFailure(err error)
	BeginUpdate() bool
	EndUpdate()
}

// Scheduler defines the lifecycle of periodic conversions.
type Scheduler interface {
	Start() error
	Stop()
	NextRun() time.Time
}

// HealthChecker reports service health.
type HealthChecker interface {
	HealthCheck() (status string, details map[string]any, httpStatus int)
}
