package models

import "time"

// LogStatus is the severity of a process log entry.
type LogStatus string

const (
	LogStatusInfo    LogStatus = "info"
	LogStatusWarning LogStatus = "warning"
	LogStatusError   LogStatus = "error"
)

// ProcessLogEntry is one decision point recorded during a run.
type ProcessLogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Action     string         `json:"action"`
	Details    string         `json:"details"`
	Status     LogStatus      `json:"status"`
	Data       map[string]any `json:"data,omitempty"`
	DurationMs int64          `json:"durationMs"`
}
