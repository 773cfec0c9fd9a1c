// Package data keeps the state of scheduled conversions: the last summary,
// the last failure, and whether a run is in progress. Readers never block
// writers; every field is swapped atomically.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/fsh-designations/interfaces"
	"github.com/giygas/fsh-designations/logging"
)

// Compile-time check to ensure RunStore implements DataStore
var _ interfaces.DataStore = (*RunStore)(nil)

// errorBox lets a nil error be stored in an atomic.Value
type errorBox struct {
	err error
}

// RunStore holds the outcome of scheduled conversions
type RunStore struct {
	lastSummary     atomic.Pointer[interfaces.ConversionSummary]
	lastError       atomic.Value // errorBox
	lastRun         atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewRunStore creates an empty RunStore
func NewRunStore() *RunStore {
	rs := &RunStore{}
	rs.lastError.Store(errorBox{})
	rs.lastRun.Store(time.Time{})
	rs.serverStartTime.Store(time.Time{})
	return rs
}

// GetLastSummary returns the summary of the last successful conversion
func (rs *RunStore) GetLastSummary() (interfaces.ConversionSummary, bool) {
	s := rs.lastSummary.Load()
	if s == nil {
		return interfaces.ConversionSummary{}, false
	}
	return *s, true
}

// GetLastError returns the error of the last run, nil if it succeeded
func (rs *RunStore) GetLastError() error {
	if box, ok := rs.lastError.Load().(errorBox); ok {
		return box.err
	}
	return nil
}

// GetLastRun returns when the last run finished, successful or not
func (rs *RunStore) GetLastRun() time.Time {
	if t, ok := rs.lastRun.Load().(time.Time); ok {
		return t
	}

	logging.Warn("Could not get the last run value")
	return time.Time{}
}

// IsUpdating returns true while a conversion is running
func (rs *RunStore) IsUpdating() bool {
	return rs.updating.Load()
}

// SetServerStartTime sets the server start time
func (rs *RunStore) SetServerStartTime(startTime time.Time) {
	rs.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (rs *RunStore) GetServerStartTime() time.Time {
	if t, ok := rs.serverStartTime.Load().(time.Time); ok {
		return t
	}
	return time.Time{}
}

// RecordSuccess stores summary and clears the last error
func (rs *RunStore) RecordSuccess(summary interfaces.ConversionSummary) {
	finished := summary.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	rs.lastSummary.Store(&summary)
	rs.lastError.Store(errorBox{})
	rs.lastRun.Store(finished)
}

// RecordFailure stores err; the last successful summary is kept
func (rs *RunStore) RecordFailure(err error) {
	rs.lastError.Store(errorBox{err: err})
	rs.lastRun.Store(time.Now())
}

// BeginUpdate marks a run as started. It returns false if one is already
// running.
func (rs *RunStore) BeginUpdate() bool {
	return rs.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the current run as finished
func (rs *RunStore) EndUpdate() {
	rs.updating.Store(false)
}
