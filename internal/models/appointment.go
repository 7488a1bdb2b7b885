// internal/models/appointment.go
package models

import "time"

// AppointmentSnapshot is the read-only view of an appointment consumed from
// the portal's appointment store. The pipeline never writes appointments.
type AppointmentSnapshot struct {
	ID               string    `json:"id"`
	BookingReference string    `json:"bookingReference"`
	UserID           string    `json:"userId"`
	UserName         string    `json:"userName"`
	UserEmail        string    `json:"userEmail"`
	OfficerID        string    `json:"officerId,omitempty"`
	OfficerName      string    `json:"officerName,omitempty"`
	OfficerEmail     string    `json:"officerEmail,omitempty"`
	ServiceName      string    `json:"serviceName"`
	DepartmentName   string    `json:"departmentName"`
	Date             time.Time `json:"date"`
	StartTime        string    `json:"startTime"`
	EndTime          string    `json:"endTime"`
}

// HasOfficer reports whether an officer is assigned to the appointment.
func (a *AppointmentSnapshot) HasOfficer() bool {
	return a.OfficerID != "" && a.OfficerEmail != ""
}
