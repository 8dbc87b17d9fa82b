package substitution

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSourceData marks roster, schedule or committed snapshots that are
	// missing, empty or malformed. It is fatal to a run.
	ErrSourceData = errors.New("source data error")
	// ErrInvalidDate marks a run date that is not yyyy-mm-dd.
	ErrInvalidDate = errors.New("invalid run date")
	// ErrRunInProgress is returned when a date is locked by an active run.
	ErrRunInProgress = errors.New("run in progress")
)

// DateLayout is the format of run dates.
const DateLayout = "2006-01-02"

func sourceDataError(what string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrSourceData, what)
	}
	return fmt.Errorf("%w: %s: %v", ErrSourceData, what, err)
}

// DayOf returns the canonical lowercase weekday of an ISO date.
func DayOf(date string) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return dayName(t), nil
}

func dayName(t time.Time) string {
	switch t.Weekday() {
	case time.Sunday:
		return "sunday"
	case time.Monday:
		return "monday"
	case time.Tuesday:
		return "tuesday"
	case time.Wednesday:
		return "wednesday"
	case time.Thursday:
		return "thursday"
	case time.Friday:
		return "friday"
	default:
		return "saturday"
	}
}
