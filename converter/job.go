package converter

import (
	"context"

	"github.com/giygas/fsh-designations/interfaces"
)

// Compile-time check to ensure Job implements ConversionJob interface
var _ interfaces.ConversionJob = (*Job)(nil)

// Job is a file conversion run repeatedly by the scheduler.
type Job struct {
	opts Options
}

// NewJob creates a Job converting with opts in scheduled mode
func NewJob(opts Options) *Job {
	opts.Mode = ModeScheduled
	return &Job{opts: opts}
}

// Run implements the ConversionJob interface
func (j *Job) Run(ctx context.Context) (Summary, error) {
	return ConvertFile(ctx, j.opts)
}
