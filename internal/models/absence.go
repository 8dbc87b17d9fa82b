package models

import "time"

// Absentee is the persisted absence record for a date.
type Absentee struct {
	Name               string    `db:"name" json:"name"`
	PhoneNumber        string    `db:"phone_number" json:"phoneNumber"`
	Timestamp          time.Time `db:"recorded_at" json:"timestamp"`
	AssignedSubstitute bool      `db:"assigned_substitute" json:"assignedSubstitute"`
}
