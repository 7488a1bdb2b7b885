// internal/dispatcher/confirmation_test.go
package dispatcher

import (
	"context"
	"strings"
	"testing"
	"time"

	"appointment-notifier/internal/models"

	"github.com/stretchr/testify/assert"
)

func confirmedAppointment() *models.AppointmentSnapshot {
	return &models.AppointmentSnapshot{
		ID:               "appt-001",
		BookingReference: "REF-2025-001",
		UserID:           "user-001",
		UserName:         "Nimal Perera",
		UserEmail:        "nimal@example.lk",
		ServiceName:      "Passport Renewal",
		DepartmentName:   "Immigration",
		Date:             time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		StartTime:        "09:00",
		EndTime:          "09:30",
	}
}

func TestDispatchConfirmation_EmbedsScannableImage(t *testing.T) {
	l := &mockLedger{}
	tr := &mockTransport{}
	d := newTestDispatcher(t, l, tr)

	result := d.DispatchConfirmation(context.Background(), confirmedAppointment())

	assert.True(t, result.Sent)
	assert.Len(t, tr.sent, 1)

	msg := tr.sent[0]
	assert.Equal(t, "Appointment Confirmed - REF-2025-001", msg.Subject)
	assert.Contains(t, msg.TextBody, "REF-2025-001")
	assert.Contains(t, msg.TextBody, "Passport Renewal")
	assert.Contains(t, msg.HTMLBody, "data:image/png;base64,")
}

func TestDispatchConfirmation_DegradesWithoutImage(t *testing.T) {
	l := &mockLedger{}
	tr := &mockTransport{}
	d := newTestDispatcher(t, l, tr)

	appt := confirmedAppointment()
	appt.BookingReference = ""

	result := d.DispatchConfirmation(context.Background(), appt)

	// The payload fails validation, so the image is dropped but the
	// confirmation still goes out.
	assert.True(t, result.Sent)
	assert.Len(t, tr.sent, 1)
	assert.NotContains(t, tr.sent[0].HTMLBody, "data:image/png")
	assert.True(t, strings.HasSuffix(tr.sent[0].HTMLBody, "</body></html>"))
}

func TestConfirmationImage_ValidPayload(t *testing.T) {
	d := newTestDispatcher(t, &mockLedger{}, &mockTransport{})

	img, err := d.confirmationImage(&ConfirmationPayload{
		BookingReference: "REF-001",
		AppointmentID:    "appt-001",
		UserID:           "user-001",
		Date:             "2025-03-15",
		StartTime:        "09:00",
	})

	assert.NoError(t, err)
	assert.NotEmpty(t, img)
}

func TestConfirmationImage_MissingRequiredFields(t *testing.T) {
	d := newTestDispatcher(t, &mockLedger{}, &mockTransport{})

	tests := []struct {
		name    string
		payload *ConfirmationPayload
	}{
		{
			name:    "empty booking reference",
			payload: &ConfirmationPayload{AppointmentID: "appt-001", UserID: "user-001"},
		},
		{
			name:    "empty appointment id",
			payload: &ConfirmationPayload{BookingReference: "REF-001", UserID: "user-001"},
		},
		{
			name:    "empty user id",
			payload: &ConfirmationPayload{BookingReference: "REF-001", AppointmentID: "appt-001"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := d.confirmationImage(tt.payload)
			assert.Error(t, err)
			assert.Empty(t, img)
		})
	}
}
