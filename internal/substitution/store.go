package substitution

import (
	"context"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// Store is the persistence boundary of the engine. Dates are ISO yyyy-mm-dd
// strings. Implementations must read a snapshot fully before rewriting it.
type Store interface {
	LoadRoster(ctx context.Context) ([]models.RosterEntry, error)
	SaveRoster(ctx context.Context, roster []models.RosterEntry) error
	LoadSchedule(ctx context.Context) ([]models.ScheduleEntry, error)
	LoadOverrides(ctx context.Context) (*models.OverrideSet, error)

	LoadAbsentees(ctx context.Context, date string) ([]models.Absentee, error)
	AddAbsentee(ctx context.Context, date string, absentee models.Absentee) error
	MarkAbsenteesAssigned(ctx context.Context, date string, names []string) error

	LoadCommitted(ctx context.Context, date string) (*models.CommittedSet, error)
	// SaveCommitted merges set into the stored one per (period, className).
	SaveCommitted(ctx context.Context, date string, set *models.CommittedSet) error
	ResetCommitted(ctx context.Context, date string) error

	// AppendLog replaces the entries stored for date, archiving the previous version.
	AppendLog(ctx context.Context, date string, entries []models.ProcessLogEntry) error
	LoadLogs(ctx context.Context, date string) ([]models.ProcessLogEntry, error)
	// AppendWarnings replaces the warnings stored for date, archiving the previous version.
	AppendWarnings(ctx context.Context, date string, warnings []string) error
	LoadWarnings(ctx context.Context, date string) ([]string, error)
}
