// internal/models/notification.go
package models

import "time"

// NotificationKind classifies what a notification is about.
type NotificationKind string

const (
	KindGeneric                 NotificationKind = "generic"
	KindAppointmentReminder     NotificationKind = "appointment_reminder"
	KindAppointmentConfirmation NotificationKind = "appointment_confirmation"
	KindAppointmentCancellation NotificationKind = "appointment_cancellation"
	KindDocumentStatus          NotificationKind = "document_status"
)

// NotificationChannel is the delivery medium. Only email is dispatched by the
// reminder pipeline today; sms and in_app are modeled for the surrounding portal.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
	ChannelInApp NotificationChannel = "in_app"
)

// NotificationStatus is the ledger lifecycle state. A record is created queued
// and moves to exactly one terminal state after the transport attempt.
type NotificationStatus string

const (
	StatusQueued NotificationStatus = "queued"
	StatusSent   NotificationStatus = "sent"
	StatusFailed NotificationStatus = "failed"
)

// NotificationRecord is a persisted notification attempt.
type NotificationRecord struct {
	ID            string              `json:"id"`
	UserID        string              `json:"userId"`
	AppointmentID string              `json:"appointmentId,omitempty"`
	Kind          NotificationKind    `json:"kind"`
	Channel       NotificationChannel `json:"channel"`
	Message       string              `json:"message"`
	Status        NotificationStatus  `json:"status"`
	SentAt        *time.Time          `json:"sentAt,omitempty"`
	ErrorDetail   string              `json:"errorDetail,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// NotificationRecordDraft is the ledger create input. The ledger assigns the
// id and forces status to queued.
type NotificationRecordDraft struct {
	UserID        string
	AppointmentID string
	Kind          NotificationKind
	Channel       NotificationChannel
	Message       string
}
