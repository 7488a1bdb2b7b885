// internal/dispatcher/confirmation.go
package dispatcher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"appointment-notifier/internal/models"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/xeipuuv/gojsonschema"
)

// ConfirmationPayload is the machine-readable content rendered into the
// scannable code on a booking confirmation.
type ConfirmationPayload struct {
	BookingReference string `json:"bookingReference"`
	AppointmentID    string `json:"appointmentId"`
	UserID           string `json:"userId"`
	ServiceName      string `json:"serviceName"`
	DepartmentName   string `json:"departmentName"`
	Date             string `json:"date"`
	StartTime        string `json:"startTime"`
}

const confirmationPayloadSchema = `{
	"type": "object",
	"required": ["bookingReference", "appointmentId", "userId"],
	"properties": {
		"bookingReference": {"type": "string", "minLength": 1},
		"appointmentId":    {"type": "string", "minLength": 1},
		"userId":           {"type": "string", "minLength": 1},
		"serviceName":      {"type": "string"},
		"departmentName":   {"type": "string"},
		"date":             {"type": "string"},
		"startTime":        {"type": "string"}
	},
	"additionalProperties": false
}`

var confirmationSchemaLoader = gojsonschema.NewStringLoader(confirmationPayloadSchema)

// DispatchConfirmation sends a booking confirmation email with the payload
// embedded as a scannable image. A validation or rendering failure degrades to
// a body without the image; confirmation delivery is never blocked by it.
func (d *Dispatcher) DispatchConfirmation(ctx context.Context, appt *models.AppointmentSnapshot) *DispatchResult {
	payload := &ConfirmationPayload{
		BookingReference: appt.BookingReference,
		AppointmentID:    appt.ID,
		UserID:           appt.UserID,
		ServiceName:      appt.ServiceName,
		DepartmentName:   appt.DepartmentName,
		Date:             appt.Date.Format("2006-01-02"),
		StartTime:        appt.StartTime,
	}

	textBody := fmt.Sprintf(
		"Dear %s,\n\nYour appointment has been confirmed.\n\nBooking Reference: %s\nService: %s\nDepartment: %s\nDate: %s\nTime: %s - %s\n\nPlease bring this confirmation with you.",
		appt.UserName, appt.BookingReference, appt.ServiceName, appt.DepartmentName,
		payload.Date, appt.StartTime, appt.EndTime,
	)

	htmlBody := d.renderConfirmationHTML(payload, textBody)

	return d.Dispatch(ctx, &DispatchRequest{
		UserID:         appt.UserID,
		AppointmentID:  appt.ID,
		Kind:           models.KindAppointmentConfirmation,
		Channel:        models.ChannelEmail,
		RecipientEmail: appt.UserEmail,
		Subject:        fmt.Sprintf("Appointment Confirmed - %s", appt.BookingReference),
		TextBody:       textBody,
		HTMLBody:       htmlBody,
	})
}

func (d *Dispatcher) renderConfirmationHTML(payload *ConfirmationPayload, textBody string) string {
	base := "<html><body><pre>" + textBody + "</pre>"

	img, err := d.confirmationImage(payload)
	if err != nil {
		d.logger.Warn("confirmation image rendering failed, sending without image", map[string]interface{}{
			"appointmentId": payload.AppointmentID,
			"error":         err.Error(),
		})
		return base + "</body></html>"
	}

	return base + `<p><img src="data:image/png;base64,` + img + `" alt="appointment confirmation code"/></p></body></html>`
}

// confirmationImage validates the payload against the schema and encodes it as
// a base64 PNG QR code.
func (d *Dispatcher) confirmationImage(payload *ConfirmationPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	result, err := gojsonschema.Validate(confirmationSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return "", fmt.Errorf("validate payload: %w", err)
	}
	if !result.Valid() {
		return "", fmt.Errorf("invalid confirmation payload: %v", result.Errors())
	}

	png, err := qrcode.Encode(string(raw), qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
