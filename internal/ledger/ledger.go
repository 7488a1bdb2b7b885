// Package ledger is the durable store of notification attempts. Every dispatch
// writes exactly one record here before the transport is touched.
package ledger

import (
	"context"
	"time"

	"appointment-notifier/internal/models"
)

// Ledger is the storage contract the dispatcher and batch processor depend on.
type Ledger interface {
	// Create persists a draft with status queued and returns the stored record.
	Create(ctx context.Context, draft *models.NotificationRecordDraft) (*models.NotificationRecord, error)

	// UpdateStatus transitions a record to sent or failed. Returns
	// RECORD_NOT_FOUND if the id is unknown.
	UpdateStatus(ctx context.Context, id string, status models.NotificationStatus, sentAt *time.Time, errorDetail string) (*models.NotificationRecord, error)

	// CountForUser returns the total notifications on record for a user. Used
	// as the rate-limit denominator; callers treat a failure as fail-open.
	CountForUser(ctx context.Context, userID string) (int, error)

	// HasReminderAlreadySent reports whether any appointment_reminder record
	// exists for the appointment, regardless of queued/sent/failed status, so
	// a reminder already in flight is not duplicated.
	HasReminderAlreadySent(ctx context.Context, appointmentID string) (bool, error)
}
