// internal/appointments/postgres.go
package appointments

import (
	"context"
	"database/sql"
	"time"

	"appointment-notifier/internal/common/errors"
	"appointment-notifier/internal/common/logger"
	"appointment-notifier/internal/models"
)

// PostgresStore reads appointments from the portal database.
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "appointment-store"}),
	}
}

func (s *PostgresStore) FindForReminder(ctx context.Context, date time.Time) ([]*models.AppointmentSnapshot, error) {
	query := `SELECT a.id, a.booking_reference,
	                 a.user_id, u.full_name, u.email,
	                 a.officer_id, o.full_name, o.email,
	                 s.name, d.name,
	                 a.appointment_date, a.start_time, a.end_time
	          FROM appointments a
	          JOIN users u ON u.id = a.user_id
	          LEFT JOIN officers o ON o.id = a.officer_id
	          LEFT JOIN services s ON s.id = a.service_id
	          LEFT JOIN departments d ON d.id = s.department_id
	          WHERE a.appointment_date = $1
	            AND a.status = 'confirmed'
	          ORDER BY a.start_time`

	rows, err := s.db.QueryContext(ctx, query, date.Format("2006-01-02"))
	if err != nil {
		return nil, errors.NewStorageError("find_for_reminder", err)
	}
	defer rows.Close()

	var result []*models.AppointmentSnapshot
	for rows.Next() {
		var (
			appt         models.AppointmentSnapshot
			officerID    sql.NullString
			officerName  sql.NullString
			officerEmail sql.NullString
			serviceName  sql.NullString
			deptName     sql.NullString
			startTime    sql.NullString
			endTime      sql.NullString
		)

		if err := rows.Scan(
			&appt.ID, &appt.BookingReference,
			&appt.UserID, &appt.UserName, &appt.UserEmail,
			&officerID, &officerName, &officerEmail,
			&serviceName, &deptName,
			&appt.Date, &startTime, &endTime,
		); err != nil {
			return nil, errors.NewStorageError("find_for_reminder_scan", err)
		}

		appt.OfficerID = officerID.String
		appt.OfficerName = officerName.String
		appt.OfficerEmail = officerEmail.String
		appt.ServiceName = serviceName.String
		appt.DepartmentName = deptName.String
		appt.StartTime = startTime.String
		appt.EndTime = endTime.String

		result = append(result, &appt)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("find_for_reminder_rows", err)
	}

	s.logger.Debug("appointments fetched for reminder", map[string]interface{}{
		"targetDate": date.Format("2006-01-02"),
		"count":      len(result),
	})

	return result, nil
}
