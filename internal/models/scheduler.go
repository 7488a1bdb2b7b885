// internal/models/scheduler.go
package models

import "time"

// ReminderRunStats is the outcome of a single batch run.
//
// CitizenRemindersSent + OfficerRemindersSent + Failures + DuplicatesSkipped
// never exceeds 2 * TotalAppointments: at most one citizen and one officer
// attempt per appointment.
type ReminderRunStats struct {
	TotalAppointments    int   `json:"totalAppointments"`
	CitizenRemindersSent int   `json:"citizenRemindersSent"`
	OfficerRemindersSent int   `json:"officerRemindersSent"`
	DuplicatesSkipped    int   `json:"duplicatesSkipped"`
	Failures             int   `json:"failures"`
	ProcessingTimeMs     int64 `json:"processingTimeMs"`
}

// ReminderStatistics is the dry-run view returned by GetStatistics.
type ReminderStatistics struct {
	TargetDate      string `json:"targetDate"`
	Scheduled       int    `json:"scheduled"`
	AlreadyReminded int    `json:"alreadyReminded"`
	Pending         int    `json:"pending"`
}

// SchedulerState is a snapshot of the supervisor's lifecycle counters.
// GetStatus returns a copy; callers never see live supervisor state.
type SchedulerState struct {
	IsInitialized  bool              `json:"isInitialized"`
	IsRunning      bool              `json:"isRunning"`
	LastRunAt      *time.Time        `json:"lastRunAt,omitempty"`
	NextRunAt      *time.Time        `json:"nextRunAt,omitempty"`
	TotalRuns      int               `json:"totalRuns"`
	SuccessfulRuns int               `json:"successfulRuns"`
	FailedRuns     int               `json:"failedRuns"`
	LastRunStats   *ReminderRunStats `json:"lastRunStats,omitempty"`
}

// HealthStatus is the operator-facing health check result.
type HealthStatus struct {
	Status  string                 `json:"status"` // "healthy" or "unhealthy"
	Details map[string]interface{} `json:"details"`
}
