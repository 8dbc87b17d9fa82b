package models

// Weekdays lists the canonical lowercase day names accepted in schedule records.
var Weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// ScheduleEntry is one normalized timetable record.
type ScheduleEntry struct {
	Day         string `db:"day" json:"day"`
	Period      int    `db:"period" json:"period"`
	ClassName   string `db:"class_name" json:"className"`
	TeacherName string `db:"teacher_name" json:"teacherName"`
}

// SlotRef identifies a period taught to a class on an implied day.
type SlotRef struct {
	Period    int    `json:"period"`
	ClassName string `json:"className"`
}

// Slot is a (day, period, className) unit of coverage.
type Slot struct {
	Day       string `json:"day"`
	Period    int    `json:"period"`
	ClassName string `json:"className"`
}

// OverrideEntry corrects the computed schedule for one teacher on one day.
type OverrideEntry struct {
	TeacherName string    `json:"teacherName"`
	Day         string    `json:"day"`
	Periods     []SlotRef `json:"periods"`
	Note        string    `json:"note,omitempty"`
}

// OverrideSet is the versioned override dataset.
type OverrideSet struct {
	Version string          `json:"version"`
	Entries []OverrideEntry `json:"entries"`
}

// IsWeekday reports whether day is a canonical weekday name.
func IsWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}
