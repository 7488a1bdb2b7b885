// internal/ledger/postgres.go
package ledger

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"appointment-notifier/internal/common/clock"
	"appointment-notifier/internal/common/errors"
	"appointment-notifier/internal/common/logger"
	"appointment-notifier/internal/models"

	"github.com/google/uuid"
)

// PostgresLedger stores notification records in the portal's notifications table.
type PostgresLedger struct {
	db     *sql.DB
	clock  clock.Clock
	logger logger.Logger
}

func NewPostgresLedger(db *sql.DB, clk clock.Clock, log logger.Logger) *PostgresLedger {
	return &PostgresLedger{
		db:     db,
		clock:  clk,
		logger: log.WithFields(map[string]interface{}{"component": "notification-ledger"}),
	}
}

func (l *PostgresLedger) Create(ctx context.Context, draft *models.NotificationRecordDraft) (*models.NotificationRecord, error) {
	record := &models.NotificationRecord{
		ID:            uuid.New().String(),
		UserID:        draft.UserID,
		AppointmentID: draft.AppointmentID,
		Kind:          draft.Kind,
		Channel:       draft.Channel,
		Message:       draft.Message,
		Status:        models.StatusQueued,
		CreatedAt:     l.clock.Now().UTC(),
	}

	query := `INSERT INTO notifications (id, user_id, appointment_id, kind, channel, message, status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := l.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		nullableString(record.AppointmentID),
		string(record.Kind),
		string(record.Channel),
		record.Message,
		string(record.Status),
		record.CreatedAt,
	)
	if err != nil {
		return nil, errors.NewStorageError("create", err)
	}

	l.logger.Debug("notification record created", map[string]interface{}{
		"notificationId": record.ID,
		"userId":         record.UserID,
		"kind":           string(record.Kind),
	})

	return record, nil
}

func (l *PostgresLedger) UpdateStatus(ctx context.Context, id string, status models.NotificationStatus, sentAt *time.Time, errorDetail string) (*models.NotificationRecord, error) {
	query := `UPDATE notifications
	          SET status = $2, sent_at = $3, error_detail = $4
	          WHERE id = $1
	          RETURNING user_id, appointment_id, kind, channel, message, created_at`

	var (
		userID        string
		appointmentID sql.NullString
		kind          string
		channel       string
		message       string
		createdAt     time.Time
	)

	err := l.db.QueryRowContext(ctx, query, id, string(status), sentAt, nullableString(errorDetail)).
		Scan(&userID, &appointmentID, &kind, &channel, &message, &createdAt)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewRecordNotFoundError(id)
		}
		return nil, errors.NewStorageError("update_status", err)
	}

	return &models.NotificationRecord{
		ID:            id,
		UserID:        userID,
		AppointmentID: appointmentID.String,
		Kind:          models.NotificationKind(kind),
		Channel:       models.NotificationChannel(channel),
		Message:       message,
		Status:        status,
		SentAt:        sentAt,
		ErrorDetail:   errorDetail,
		CreatedAt:     createdAt,
	}, nil
}

func (l *PostgresLedger) CountForUser(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1`

	if err := l.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, errors.NewStorageError("count_for_user", err)
	}
	return count, nil
}

func (l *PostgresLedger) HasReminderAlreadySent(ctx context.Context, appointmentID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(
	            SELECT 1 FROM notifications
	            WHERE appointment_id = $1
	              AND kind = $2
	              AND status IN ('queued', 'sent', 'failed'))`

	err := l.db.QueryRowContext(ctx, query, appointmentID, string(models.KindAppointmentReminder)).Scan(&exists)
	if err != nil {
		return false, errors.NewStorageError("has_reminder_already_sent", err)
	}
	return exists, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
