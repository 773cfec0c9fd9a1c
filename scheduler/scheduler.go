// Package scheduler reruns a configured conversion on a daily or cron
// schedule and records each outcome in the data store.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/giygas/fsh-designations/fsh"
	"github.com/giygas/fsh-designations/interfaces"
	"github.com/giygas/fsh-designations/logging"
	"github.com/go-co-op/gocron"
)

// DefaultSchedule converts twice a day.
const DefaultSchedule = "06:00;18:00"

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler runs a ConversionJob periodically
type Scheduler struct {
	dataStore interfaces.DataStore
	job       interfaces.ConversionJob
	schedule  string
	scheduler *gocron.Scheduler

	staleAfter    time.Duration
	checkInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler for job. schedule is either daily times
// ("HH:MM;HH:MM") or a five-field cron expression; empty means DefaultSchedule.
func NewScheduler(dataStore interfaces.DataStore, job interfaces.ConversionJob, schedule string) *Scheduler {
	if strings.TrimSpace(schedule) == "" {
		schedule = DefaultSchedule
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		dataStore:     dataStore,
		job:           job,
		schedule:      strings.TrimSpace(schedule),
		scheduler:     gocron.NewScheduler(time.Local),
		staleAfter:    25 * time.Hour,
		checkInterval: time.Hour,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// isDailyTimes reports whether schedule is a list of HH:MM times
func isDailyTimes(schedule string) bool {
	return !strings.ContainsAny(schedule, " *") && strings.Contains(schedule, ":")
}

// Start runs the job once, then schedules it. Only a mapping that can never
// succeed fails Start; an unreadable source is recorded and retried on schedule.
func (s *Scheduler) Start() error {
	if err := s.runJob(); err != nil {
		var cfgErr *fsh.ConfigurationError
		var colErr *fsh.UnknownColumnError
		if errors.As(err, &cfgErr) || errors.As(err, &colErr) {
			return fmt.Errorf("initial conversion failed: %w", err)
		}
		logging.Error("Initial conversion failed, will retry on schedule", "error", err)
	}

	s.scheduler.SingletonModeAll()

	var err error
	if isDailyTimes(s.schedule) {
		_, err = s.scheduler.Every(1).Days().At(s.schedule).Do(s.scheduledRun)
	} else {
		_, err = s.scheduler.Cron(s.schedule).Do(s.scheduledRun)
	}
	if err != nil {
		logging.Error("Failed to schedule conversions", "schedule", s.schedule, "error", err)
		return fmt.Errorf("failed to schedule conversions %q: %w", s.schedule, err)
	}

	s.scheduler.StartAsync()
	logging.Info("Conversion scheduler started", "schedule", s.schedule, "next_run", s.NextRun())

	s.startHealthMonitoring()

	return nil
}

// Stop cancels a running conversion and stops the scheduler
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}

// NextRun returns when the job runs next, zero before Start
func (s *Scheduler) NextRun() time.Time {
	_, next := s.scheduler.NextRun()
	return next
}

func (s *Scheduler) scheduledRun() {
	if err := s.runJob(); err != nil {
		logging.Error("Scheduled conversion failed", "error", err)
	}
}

// runJob runs the job unless another run is in progress
func (s *Scheduler) runJob() error {
	if !s.dataStore.BeginUpdate() {
		logging.Info("Conversion already in progress, skipping...")
		return nil
	}
	defer s.dataStore.EndUpdate()

	logging.Info("Starting scheduled conversion", "at", time.Now().Format(time.RFC3339))

	summary, err := s.job.Run(s.ctx)
	if err != nil {
		s.dataStore.RecordFailure(err)
		return err
	}

	s.dataStore.RecordSuccess(summary)
	return nil
}

// startHealthMonitoring warns when no conversion has succeeded for staleAfter
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(s.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				summary, ok := s.dataStore.GetLastSummary()
				if !ok || time.Since(summary.FinishedAt) > s.staleAfter {
					logging.Warn("No successful conversion recently", "stale_after", s.staleAfter.String())
				}
			}
		}
	}()
}
