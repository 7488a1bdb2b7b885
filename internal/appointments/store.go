// Package appointments reads appointment snapshots from the portal's store.
// The pipeline only ever reads; booking rules live in the CRUD layer.
package appointments

import (
	"context"
	"time"

	"appointment-notifier/internal/models"
)

// Store is the appointment collaborator the batch processor depends on.
type Store interface {
	// FindForReminder returns every appointment whose timeslot date equals the
	// target date, with citizen and officer contact details joined in.
	FindForReminder(ctx context.Context, date time.Time) ([]*models.AppointmentSnapshot, error)
}
