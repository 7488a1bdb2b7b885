// internal/ledger/postgres_test.go
package ledger

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"appointment-notifier/internal/common/clock"
	"appointment-notifier/internal/common/errors"
	"appointment-notifier/internal/common/logger"
	"appointment-notifier/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*PostgresLedger, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	l := NewPostgresLedger(db, clock.Fixed(testNow), logger.NewTestLogger(t))
	return l, mock, db
}

func TestPostgresLedger_Create(t *testing.T) {
	l, mock, db := newTestLedger(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO notifications`).
		WithArgs(sqlmock.AnyArg(), "user-001", "appt-001",
			string(models.KindAppointmentReminder), string(models.ChannelEmail),
			"reminder body", string(models.StatusQueued), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	record, err := l.Create(context.Background(), &models.NotificationRecordDraft{
		UserID:        "user-001",
		AppointmentID: "appt-001",
		Kind:          models.KindAppointmentReminder,
		Channel:       models.ChannelEmail,
		Message:       "reminder body",
	})

	assert.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, models.StatusQueued, record.Status)
	assert.Equal(t, testNow, record.CreatedAt)
	assert.Nil(t, record.SentAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_Create_NullAppointmentID(t *testing.T) {
	l, mock, db := newTestLedger(t)
	defer db.Close()

	// Non-appointment-scoped notifications store NULL, not an empty string.
	mock.ExpectExec(`INSERT INTO notifications`).
		WithArgs(sqlmock.AnyArg(), "user-001", nil,
			string(models.KindGeneric), string(models.ChannelEmail),
			"hello", string(models.StatusQueued), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := l.Create(context.Background(), &models.NotificationRecordDraft{
		UserID:  "user-001",
		Kind:    models.KindGeneric,
		Channel: models.ChannelEmail,
		Message: "hello",
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_Create_StorageError(t *testing.T) {
	l, mock, db := newTestLedger(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnError(sql.ErrConnDone)

	record, err := l.Create(context.Background(), &models.NotificationRecordDraft{
		UserID:  "user-001",
		Kind:    models.KindGeneric,
		Channel: models.ChannelEmail,
	})

	assert.Nil(t, record)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorageError))
}

func TestPostgresLedger_UpdateStatus_Sent(t *testing.T) {
	l, mock, db := newTestLedger(t)
	defer db.Close()

	sentAt := testNow
	mock.ExpectQuery(`UPDATE notifications`).
		WithArgs("notif-001", string(models.StatusSent), &sentAt, nil).
		WillReturnRows(sqlmock.NewRows(
			[]string{"user_id", "appointment_id", "kind", "channel", "message", "created_at"}).
			AddRow("user-001", "appt-001", "appointment_reminder", "email", "body", testNow))

	record, err := l.UpdateStatus(context.Background(), "notif-001", models.StatusSent, &sentAt, "")

	assert.NoError(t, err)
	assert.Equal(t, models.StatusSent, record.Status)
	assert.Equal(t, &sentAt, record.SentAt)
	assert.Equal(t, "appt-001", record.AppointmentID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_UpdateStatus_NotFound(t *testing.T) {
	l, mock, db := newTestLedger(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE notifications`).
		WillReturnError(sql.ErrNoRows)

	record, err := l.UpdateStatus(context.Background(), "unknown", models.StatusFailed, nil, "boom")

	assert.Nil(t, record)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRecordNotFound))
}

func TestPostgresLedger_CountForUser(t *testing.T) {
	l, mock, db := newTestLedger(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE user_id = \$1`).
		WithArgs("user-001").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := l.CountForUser(context.Background(), "user-001")

	assert.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_CountForUser_Error(t *testing.T) {
	l, mock, db := newTestLedger(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications`).
		WillReturnError(sql.ErrConnDone)

	_, err := l.CountForUser(context.Background(), "user-001")

	assert.True(t, errors.IsCode(err, errors.ErrCodeStorageError))
}

func TestPostgresLedger_HasReminderAlreadySent(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
	}{
		{name: "reminder on record", exists: true},
		{name: "no reminder yet", exists: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, mock, db := newTestLedger(t)
			defer db.Close()

			mock.ExpectQuery(`SELECT EXISTS`).
				WithArgs("appt-001", string(models.KindAppointmentReminder)).
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			sent, err := l.HasReminderAlreadySent(context.Background(), "appt-001")

			assert.NoError(t, err)
			assert.Equal(t, tt.exists, sent)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
