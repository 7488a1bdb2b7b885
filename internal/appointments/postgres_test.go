// internal/appointments/postgres_test.go
package appointments

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"appointment-notifier/internal/common/errors"
	"appointment-notifier/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

var apptColumns = []string{
	"id", "booking_reference",
	"user_id", "user_name", "user_email",
	"officer_id", "officer_name", "officer_email",
	"service_name", "department_name",
	"appointment_date", "start_time", "end_time",
}

func TestFindForReminder(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	targetDate := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(apptColumns).
		AddRow("appt-001", "REF-001",
			"user-001", "Nimal Perera", "nimal@example.lk",
			"officer-001", "Kumari Silva", "kumari@gov.lk",
			"Passport Renewal", "Immigration",
			targetDate, "09:00", "09:30").
		AddRow("appt-002", "REF-002",
			"user-002", "Saman Fernando", "saman@example.lk",
			nil, nil, nil,
			nil, nil,
			targetDate, nil, nil)

	mock.ExpectQuery(`SELECT a.id, a.booking_reference`).
		WithArgs("2025-03-15").
		WillReturnRows(rows)

	store := NewPostgresStore(db, logger.NewTestLogger(t))
	appts, err := store.FindForReminder(context.Background(), targetDate)

	assert.NoError(t, err)
	assert.Len(t, appts, 2)

	first := appts[0]
	assert.Equal(t, "appt-001", first.ID)
	assert.Equal(t, "Kumari Silva", first.OfficerName)
	assert.True(t, first.HasOfficer())

	// NULL officer, service and timeslot columns come back as empty strings.
	second := appts[1]
	assert.Equal(t, "appt-002", second.ID)
	assert.False(t, second.HasOfficer())
	assert.Empty(t, second.ServiceName)
	assert.Empty(t, second.StartTime)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindForReminder_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT a.id, a.booking_reference`).
		WillReturnRows(sqlmock.NewRows(apptColumns))

	store := NewPostgresStore(db, logger.NewTestLogger(t))
	appts, err := store.FindForReminder(context.Background(), time.Now())

	assert.NoError(t, err)
	assert.Empty(t, appts)
}

func TestFindForReminder_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT a.id, a.booking_reference`).
		WillReturnError(sql.ErrConnDone)

	store := NewPostgresStore(db, logger.NewTestLogger(t))
	appts, err := store.FindForReminder(context.Background(), time.Now())

	assert.Nil(t, appts)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorageError))
}
