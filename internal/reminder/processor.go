// Package reminder drives the day-before reminder batch: it walks tomorrow's
// appointments, skips the ones already reminded and dispatches to the citizen
// and the assigned officer.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"appointment-notifier/internal/appointments"
	"appointment-notifier/internal/common/clock"
	"appointment-notifier/internal/common/errors"
	"appointment-notifier/internal/common/logger"
	"appointment-notifier/internal/common/metrics"
	"appointment-notifier/internal/common/observability"
	"appointment-notifier/internal/dispatcher"
	"appointment-notifier/internal/ledger"
	"appointment-notifier/internal/models"
)

// Fallbacks for appointments with incomplete data. An incomplete appointment
// is still reminded, never dropped.
const (
	placeholderTimeslot = "Date/Time TBD"
	placeholderService  = "Unknown Service"
)

// NotificationDispatcher is the dispatch contract the processor drives.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, req *dispatcher.DispatchRequest) *dispatcher.DispatchResult
}

// Config holds the processor's tunables.
type Config struct {
	MaxConcurrentDispatches int
}

type Processor struct {
	config     *Config
	store      appointments.Store
	ledger     ledger.Ledger
	dispatcher NotificationDispatcher
	clock      clock.Clock
	obs        *observability.Observability
	logger     logger.Logger
}

func NewProcessor(cfg *Config, store appointments.Store, l ledger.Ledger, d NotificationDispatcher, clk clock.Clock, obs *observability.Observability, log logger.Logger) *Processor {
	if cfg.MaxConcurrentDispatches <= 0 {
		cfg.MaxConcurrentDispatches = 1
	}
	return &Processor{
		config:     cfg,
		store:      store,
		ledger:     l,
		dispatcher: d,
		clock:      clk,
		obs:        obs,
		logger:     log.WithFields(map[string]interface{}{"component": "reminder-processor"}),
	}
}

// runCounters aggregates per-appointment outcomes. Workers only touch the
// atomic fields; the final stats struct is built after the pool drains.
type runCounters struct {
	citizenSent atomic.Int64
	officerSent atomic.Int64
	duplicates  atomic.Int64
	failures    atomic.Int64
}

// RunOnce processes every appointment on the target date. Per-appointment
// failures are absorbed into the statistics; the only hard failure is a fetch
// that prevents the run from starting at all.
func (p *Processor) RunOnce(ctx context.Context, targetDate time.Time) (*models.ReminderRunStats, error) {
	started := p.clock.Now()
	dateStr := targetDate.Format("2006-01-02")

	p.logger.Info("reminder batch run starting", map[string]interface{}{
		"targetDate": dateStr,
	})

	appts, err := p.store.FindForReminder(ctx, targetDate)
	if err != nil {
		return nil, errors.NewAppointmentFetchFailedError(dateStr, err)
	}

	var counters runCounters
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.config.MaxConcurrentDispatches)

	for _, appt := range appts {
		wg.Add(1)
		sem <- struct{}{}
		go func(a *models.AppointmentSnapshot) {
			defer wg.Done()
			defer func() { <-sem }()
			p.processAppointment(ctx, a, &counters)
		}(appt)
	}
	wg.Wait()

	elapsed := p.clock.Now().Sub(started)
	stats := &models.ReminderRunStats{
		TotalAppointments:    len(appts),
		CitizenRemindersSent: int(counters.citizenSent.Load()),
		OfficerRemindersSent: int(counters.officerSent.Load()),
		DuplicatesSkipped:    int(counters.duplicates.Load()),
		Failures:             int(counters.failures.Load()),
		ProcessingTimeMs:     elapsed.Milliseconds(),
	}

	metrics.ReminderRunDuration.Observe(elapsed.Seconds())
	if p.obs != nil {
		p.obs.RecordRunDuration(ctx, elapsed, "completed")
	}

	p.logger.Info("reminder batch run finished", map[string]interface{}{
		"targetDate":           dateStr,
		"totalAppointments":    stats.TotalAppointments,
		"citizenRemindersSent": stats.CitizenRemindersSent,
		"officerRemindersSent": stats.OfficerRemindersSent,
		"duplicatesSkipped":    stats.DuplicatesSkipped,
		"failures":             stats.Failures,
		"processingTimeMs":     stats.ProcessingTimeMs,
	})

	return stats, nil
}

// processAppointment handles one appointment in isolation. Nothing it does can
// abort the batch.
func (p *Processor) processAppointment(ctx context.Context, appt *models.AppointmentSnapshot, counters *runCounters) {
	alreadySent, err := p.ledger.HasReminderAlreadySent(ctx, appt.ID)
	if err != nil {
		// Fail-open: a broken dedup check must not silence the reminder.
		p.logger.Warn("dedup check failed, dispatching anyway", map[string]interface{}{
			"appointmentId": appt.ID,
			"error":         err.Error(),
		})
	}
	if alreadySent {
		counters.duplicates.Add(1)
		metrics.ReminderDuplicatesSkipped.Inc()
		p.logger.Debug("reminder already on record, skipping", map[string]interface{}{
			"appointmentId": appt.ID,
		})
		return
	}

	citizenResult := p.dispatcher.Dispatch(ctx, p.buildCitizenRequest(appt))
	p.recordDispatch(ctx, citizenResult)
	if citizenResult.Sent {
		counters.citizenSent.Add(1)
	} else {
		counters.failures.Add(1)
		p.logger.Warn("citizen reminder dispatch failed", map[string]interface{}{
			"appointmentId": appt.ID,
			"reason":        citizenResult.Reason,
		})
	}

	if !appt.HasOfficer() {
		return
	}

	officerResult := p.dispatcher.Dispatch(ctx, p.buildOfficerRequest(appt))
	p.recordDispatch(ctx, officerResult)
	if officerResult.Sent {
		counters.officerSent.Add(1)
	} else {
		counters.failures.Add(1)
		p.logger.Warn("officer reminder dispatch failed", map[string]interface{}{
			"appointmentId": appt.ID,
			"officerId":     appt.OfficerID,
			"reason":        officerResult.Reason,
		})
	}
}

func (p *Processor) recordDispatch(ctx context.Context, result *dispatcher.DispatchResult) {
	if p.obs == nil {
		return
	}
	outcome := "sent"
	if !result.Sent {
		outcome = result.Reason
	}
	p.obs.RecordDispatch(ctx, outcome)
}

func (p *Processor) buildCitizenRequest(appt *models.AppointmentSnapshot) *dispatcher.DispatchRequest {
	service := serviceLine(appt)
	timeslot := timeslotLine(appt)

	body := fmt.Sprintf(
		"Dear %s,\n\nThis is a reminder for your appointment tomorrow.\n\nBooking Reference: %s\nService: %s\nDepartment: %s\nWhen: %s\n\nPlease arrive 15 minutes early and bring your booking reference.",
		appt.UserName, appt.BookingReference, service, departmentLine(appt), timeslot,
	)

	return &dispatcher.DispatchRequest{
		UserID:         appt.UserID,
		AppointmentID:  appt.ID,
		Kind:           models.KindAppointmentReminder,
		Channel:        models.ChannelEmail,
		RecipientEmail: appt.UserEmail,
		Subject:        fmt.Sprintf("Appointment Reminder - %s", appt.BookingReference),
		TextBody:       body,
	}
}

// buildOfficerRequest includes the citizen's contact details so the officer
// can prepare for or reschedule the visit.
func (p *Processor) buildOfficerRequest(appt *models.AppointmentSnapshot) *dispatcher.DispatchRequest {
	service := serviceLine(appt)
	timeslot := timeslotLine(appt)

	body := fmt.Sprintf(
		"Dear %s,\n\nYou have an appointment scheduled tomorrow.\n\nBooking Reference: %s\nService: %s\nDepartment: %s\nWhen: %s\n\nCitizen: %s (%s)",
		appt.OfficerName, appt.BookingReference, service, departmentLine(appt), timeslot,
		appt.UserName, appt.UserEmail,
	)

	return &dispatcher.DispatchRequest{
		UserID:         appt.OfficerID,
		AppointmentID:  appt.ID,
		Kind:           models.KindAppointmentReminder,
		Channel:        models.ChannelEmail,
		RecipientEmail: appt.OfficerEmail,
		Subject:        fmt.Sprintf("Officer Schedule Reminder - %s", appt.BookingReference),
		TextBody:       body,
	}
}

// GetStatistics is the dry-run view of a batch: how many appointments are
// scheduled, already reminded and still pending. targetDate nil means
// tomorrow in the operational timezone.
func (p *Processor) GetStatistics(ctx context.Context, targetDate *time.Time) (*models.ReminderStatistics, error) {
	date := p.clock.Tomorrow()
	if targetDate != nil {
		date = *targetDate
	}
	dateStr := date.Format("2006-01-02")

	appts, err := p.store.FindForReminder(ctx, date)
	if err != nil {
		return nil, errors.NewAppointmentFetchFailedError(dateStr, err)
	}

	alreadyReminded := 0
	for _, appt := range appts {
		sent, err := p.ledger.HasReminderAlreadySent(ctx, appt.ID)
		if err != nil {
			continue
		}
		if sent {
			alreadyReminded++
		}
	}

	return &models.ReminderStatistics{
		TargetDate:      dateStr,
		Scheduled:       len(appts),
		AlreadyReminded: alreadyReminded,
		Pending:         len(appts) - alreadyReminded,
	}, nil
}

func timeslotLine(appt *models.AppointmentSnapshot) string {
	if appt.Date.IsZero() || appt.StartTime == "" {
		return placeholderTimeslot
	}
	if appt.EndTime == "" {
		return fmt.Sprintf("%s at %s", appt.Date.Format("2 January 2006"), appt.StartTime)
	}
	return fmt.Sprintf("%s from %s to %s", appt.Date.Format("2 January 2006"), appt.StartTime, appt.EndTime)
}

func serviceLine(appt *models.AppointmentSnapshot) string {
	if appt.ServiceName == "" {
		return placeholderService
	}
	return appt.ServiceName
}

func departmentLine(appt *models.AppointmentSnapshot) string {
	if appt.DepartmentName == "" {
		return "General"
	}
	return appt.DepartmentName
}
