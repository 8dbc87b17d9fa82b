package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/pkg/storage"
)

func newTestFileStore(t *testing.T) (*FileStore, *storage.LocalStorage) {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewFileStore(files), files
}

func TestFileStoreRequiresRosterAndSchedule(t *testing.T) {
	store, files := newTestFileStore(t)
	ctx := context.Background()

	_, err := store.LoadRoster(ctx)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = store.LoadSchedule(ctx)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	_, err = files.Save(RosterFile, []byte(`{"broken"`))
	require.NoError(t, err)
	_, err = store.LoadRoster(ctx)
	assert.ErrorContains(t, err, "decode roster.json")

	_, err = files.Save(ScheduleFile, []byte(" "))
	require.NoError(t, err)
	_, err = store.LoadSchedule(ctx)
	assert.ErrorContains(t, err, "empty")

	grade := 9
	require.NoError(t, store.SaveRoster(ctx, []models.RosterEntry{{Name: "Alice", Phone: "0811", GradeLevel: &grade, Variations: []string{"Ms Alice"}}}))
	roster, err := store.LoadRoster(ctx)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, []string{"Ms Alice"}, roster[0].Variations)
	assert.Equal(t, 9, *roster[0].GradeLevel)

	overrides, err := store.LoadOverrides(ctx)
	require.NoError(t, err)
	assert.Nil(t, overrides)
}

func TestFileStoreAbsentees(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)

	require.NoError(t, store.AddAbsentee(ctx, "2024-01-01", models.Absentee{Name: "Carol", Timestamp: now}))
	require.NoError(t, store.AddAbsentee(ctx, "2024-01-01", models.Absentee{Name: "carol ", PhoneNumber: "0833", Timestamp: now}))
	require.NoError(t, store.AddAbsentee(ctx, "2024-01-01", models.Absentee{Name: "Erin", Timestamp: now}))
	require.NoError(t, store.AddAbsentee(ctx, "2024-01-02", models.Absentee{Name: "Dana", Timestamp: now}))

	list, err := store.LoadAbsentees(ctx, "2024-01-01")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "0833", list[0].PhoneNumber)

	require.NoError(t, store.MarkAbsenteesAssigned(ctx, "2024-01-01", []string{"Carol"}))
	list, err = store.LoadAbsentees(ctx, "2024-01-01")
	require.NoError(t, err)
	assert.True(t, list[0].AssignedSubstitute)
	assert.False(t, list[1].AssignedSubstitute)

	none, err := store.LoadAbsentees(ctx, "2024-02-01")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFileStoreCommittedMergeAndReset(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()
	date := "2024-01-01"

	set, err := store.LoadCommitted(ctx, date)
	require.NoError(t, err)
	assert.Nil(t, set)

	require.NoError(t, store.SaveCommitted(ctx, date, &models.CommittedSet{
		Assignments: []models.Assignment{{Period: 3, ClassName: "6A", Substitute: "Bob"}},
		Warnings:    []string{"w1"},
	}))
	require.NoError(t, store.SaveCommitted(ctx, date, &models.CommittedSet{
		Assignments: []models.Assignment{{Period: 3, ClassName: "6A", Substitute: "Alice"}, {Period: 4, ClassName: "6B", Substitute: "Bob"}},
		Warnings:    []string{"w2"},
	}))

	set, err = store.LoadCommitted(ctx, date)
	require.NoError(t, err)
	require.Len(t, set.Assignments, 2)
	assert.Equal(t, "Alice", set.Assignments[0].Substitute)
	assert.Equal(t, []string{"w2"}, set.Warnings)

	require.NoError(t, store.SaveCommitted(ctx, date, &models.CommittedSet{}))
	set, err = store.LoadCommitted(ctx, date)
	require.NoError(t, err)
	assert.Len(t, set.Assignments, 2)
	assert.Empty(t, set.Warnings)

	require.NoError(t, store.AddAbsentee(ctx, date, models.Absentee{Name: "Carol"}))
	require.NoError(t, store.MarkAbsenteesAssigned(ctx, date, []string{"Carol"}))
	require.NoError(t, store.ResetCommitted(ctx, date))

	set, err = store.LoadCommitted(ctx, date)
	require.NoError(t, err)
	assert.Nil(t, set)
	list, err := store.LoadAbsentees(ctx, date)
	require.NoError(t, err)
	assert.False(t, list[0].AssignedSubstitute)
}

func TestFileStoreLogsAndWarningsArchivePrevious(t *testing.T) {
	store, files := newTestFileStore(t)
	ctx := context.Background()
	date := "2024-01-01"
	tick := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
	store.clock = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	require.NoError(t, store.AppendLog(ctx, date, []models.ProcessLogEntry{{Action: "RunStarted"}}))
	require.NoError(t, store.AppendLog(ctx, date, []models.ProcessLogEntry{{Action: "RunStarted"}, {Action: "RunCompleted"}}))

	logs, err := store.LoadLogs(ctx, date)
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	archived, err := files.Archived(ProcessLogsFile)
	require.NoError(t, err)
	assert.Len(t, archived, 1)

	require.NoError(t, store.AppendWarnings(ctx, date, nil))
	warnings, err := store.LoadWarnings(ctx, date)
	require.NoError(t, err)
	assert.NotNil(t, warnings)
	assert.Empty(t, warnings)

	require.NoError(t, store.AppendWarnings(ctx, date, []string{"No substitute found for 6A period 3"}))
	warnings, err = store.LoadWarnings(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, []string{"No substitute found for 6A period 3"}, warnings)

	archived, err = files.Archived(WarningsFile)
	require.NoError(t, err)
	assert.Len(t, archived, 1)
}
