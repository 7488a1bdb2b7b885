// Package scheduler owns the recurring reminder trigger and its lifecycle:
// initialize, start, stop, manual trigger and health reporting. It guarantees
// at most one batch run in flight at any instant.
package scheduler

import (
	"context"
	"sync"
	"time"

	"appointment-notifier/internal/common/clock"
	"appointment-notifier/internal/common/errors"
	"appointment-notifier/internal/common/logger"
	"appointment-notifier/internal/common/metrics"
	"appointment-notifier/internal/models"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// BatchProcessor is the reminder batch entry point the supervisor drives.
type BatchProcessor interface {
	RunOnce(ctx context.Context, targetDate time.Time) (*models.ReminderRunStats, error)
}

// RunRecorder receives a best-effort audit record per run. Failures inside the
// recorder never affect the run outcome.
type RunRecorder interface {
	RecordRun(ctx context.Context, runID, reason string, stats *models.ReminderRunStats, runErr error)
}

// Config holds the trigger settings.
type Config struct {
	Cron     string
	Timezone string
}

// Supervisor is owned by the composition root and passed by handle to anything
// needing control or status. Never a package-level singleton.
type Supervisor struct {
	config    *Config
	processor BatchProcessor
	clock     clock.Clock
	recorder  RunRecorder
	logger    logger.Logger

	// runMu is the single mutually-exclusive run lock (§ concurrency model):
	// held for the whole of a batch run, TryLock-rejected for overlaps.
	runMu sync.Mutex

	// mu guards all state below.
	mu             sync.Mutex
	cron           *cron.Cron
	schedule       cron.Schedule
	initialized    bool
	running        bool
	lastRunAt      *time.Time
	nextRunAt      *time.Time
	totalRuns      int
	successfulRuns int
	failedRuns     int
	lastRunStats   *models.ReminderRunStats
}

func NewSupervisor(cfg *Config, processor BatchProcessor, clk clock.Clock, recorder RunRecorder, log logger.Logger) *Supervisor {
	return &Supervisor{
		config:    cfg,
		processor: processor,
		clock:     clk,
		recorder:  recorder,
		logger:    log.WithFields(map[string]interface{}{"component": "scheduler-supervisor"}),
	}
}

// Initialize validates the trigger expression and builds the recurring trigger
// in the stopped state. An invalid expression is fatal: the process must not
// start with a trigger it cannot arm.
func (s *Supervisor) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		s.logger.Warn("initialize called twice, ignoring", nil)
		return nil
	}

	loc, err := time.LoadLocation(s.config.Timezone)
	if err != nil {
		return errors.NewInvalidScheduleError(s.config.Timezone, err)
	}

	schedule, err := cron.ParseStandard(s.config.Cron)
	if err != nil {
		return errors.NewInvalidScheduleError(s.config.Cron, err)
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(s.config.Cron, s.scheduledRun); err != nil {
		return errors.NewInvalidScheduleError(s.config.Cron, err)
	}

	s.cron = c
	s.schedule = schedule
	s.initialized = true

	s.logger.Info("scheduler initialized", map[string]interface{}{
		"cron":     s.config.Cron,
		"timezone": s.config.Timezone,
	})
	return nil
}

// Start arms the trigger. A no-op if already running.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.NewSchedulerNotInitializedError("start")
	}
	if s.running {
		s.logger.Info("scheduler already running, start is a no-op", nil)
		return nil
	}

	s.cron.Start()
	s.running = true
	next := s.schedule.Next(s.clock.Now())
	s.nextRunAt = &next

	s.logger.Info("scheduler started", map[string]interface{}{
		"nextRunAt": next.Format(time.RFC3339),
	})
	return nil
}

// Stop disarms the trigger. A no-op if already stopped. A batch run already in
// progress is not cancelled.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.NewSchedulerNotInitializedError("stop")
	}
	if !s.running {
		s.logger.Info("scheduler already stopped, stop is a no-op", nil)
		return nil
	}

	s.cron.Stop()
	s.running = false
	s.nextRunAt = nil

	s.logger.Info("scheduler stopped", nil)
	return nil
}

// Restart disarms and rearms the trigger.
func (s *Supervisor) Restart() error {
	if err := s.Stop(); err != nil {
		return err
	}
	return s.Start()
}

// TriggerManually invokes the batch outside the schedule, for operator
// catch-up. Subject to the same no-overlap guarantee as the scheduled path.
func (s *Supervisor) TriggerManually(ctx context.Context, reason string) (*models.ReminderRunStats, error) {
	s.mu.Lock()
	initialized := s.initialized
	s.mu.Unlock()

	if !initialized {
		return nil, errors.NewSchedulerNotInitializedError("trigger_manually")
	}

	runID := uuid.New().String()
	s.logger.Info("manual trigger received", map[string]interface{}{
		"runId":  runID,
		"reason": reason,
	})
	return s.executeRun(ctx, runID, reason)
}

// scheduledRun is the cron callback. An overlapping firing is skipped, and no
// batch failure ever escapes: the supervisor converts it into a failed-run count.
func (s *Supervisor) scheduledRun() {
	runID := uuid.New().String()
	if _, err := s.executeRun(context.Background(), runID, "scheduled"); err != nil {
		if errors.IsCode(err, errors.ErrCodeRunInProgress) {
			s.logger.Warn("scheduled firing skipped, run already in progress", map[string]interface{}{
				"runId": runID,
			})
			return
		}
		s.logger.Error("scheduled run failed", map[string]interface{}{
			"runId": runID,
			"error": err.Error(),
		})
	}
}

// executeRun is the single entry point both trigger paths funnel into.
func (s *Supervisor) executeRun(ctx context.Context, runID, reason string) (*models.ReminderRunStats, error) {
	if !s.runMu.TryLock() {
		return nil, errors.NewRunInProgressError(reason)
	}
	defer s.runMu.Unlock()

	targetDate := s.clock.Tomorrow()

	s.mu.Lock()
	now := s.clock.Now()
	s.lastRunAt = &now
	s.totalRuns++
	if s.running && s.schedule != nil {
		next := s.schedule.Next(now)
		s.nextRunAt = &next
	}
	s.mu.Unlock()

	stats, err := s.processor.RunOnce(ctx, targetDate)

	s.mu.Lock()
	if err != nil {
		s.failedRuns++
	} else {
		s.successfulRuns++
		s.lastRunStats = stats
	}
	s.mu.Unlock()

	if err != nil {
		metrics.ReminderRuns.WithLabelValues("failed").Inc()
		s.logger.Error("batch run failed", map[string]interface{}{
			"runId":  runID,
			"reason": reason,
			"error":  err.Error(),
		})
	} else {
		metrics.ReminderRuns.WithLabelValues("success").Inc()
	}

	if s.recorder != nil {
		s.recorder.RecordRun(ctx, runID, reason, stats, err)
	}

	return stats, err
}

// GetStatus returns a snapshot copy of the supervisor state. Safe to call
// before Initialize and never blocks on the run lock.
func (s *Supervisor) GetStatus() models.SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := models.SchedulerState{
		IsInitialized:  s.initialized,
		IsRunning:      s.running,
		TotalRuns:      s.totalRuns,
		SuccessfulRuns: s.successfulRuns,
		FailedRuns:     s.failedRuns,
	}
	if s.lastRunAt != nil {
		t := *s.lastRunAt
		state.LastRunAt = &t
	}
	if s.nextRunAt != nil {
		t := *s.nextRunAt
		state.NextRunAt = &t
	}
	if s.lastRunStats != nil {
		stats := *s.lastRunStats
		state.LastRunStats = &stats
	}
	return state
}

// GetDebugInfo exposes the trigger configuration alongside the state snapshot.
func (s *Supervisor) GetDebugInfo() map[string]interface{} {
	state := s.GetStatus()
	return map[string]interface{}{
		"cron":     s.config.Cron,
		"timezone": s.config.Timezone,
		"state":    state,
	}
}

// HealthCheck reports unhealthy when uninitialized, stopped, or when at least
// half of all runs have failed. Zero runs is healthy.
func (s *Supervisor) HealthCheck() models.HealthStatus {
	state := s.GetStatus()

	details := map[string]interface{}{
		"isInitialized":  state.IsInitialized,
		"isRunning":      state.IsRunning,
		"totalRuns":      state.TotalRuns,
		"successfulRuns": state.SuccessfulRuns,
		"failedRuns":     state.FailedRuns,
	}

	errorRate := 0
	if state.TotalRuns > 0 {
		errorRate = state.FailedRuns * 100 / state.TotalRuns
	}
	details["errorRate"] = errorRate

	status := "healthy"
	switch {
	case !state.IsInitialized:
		status = "unhealthy"
		details["cause"] = "not initialized"
	case !state.IsRunning:
		status = "unhealthy"
		details["cause"] = "stopped"
	case state.TotalRuns > 0 && state.FailedRuns*2 >= state.TotalRuns:
		status = "unhealthy"
		details["cause"] = "error rate too high"
	}

	return models.HealthStatus{Status: status, Details: details}
}
