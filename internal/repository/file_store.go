package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/pkg/storage"
)

// Snapshot file names under the data directory.
const (
	RosterFile      = "roster.json"
	ScheduleFile    = "schedule.json"
	OverridesFile   = "overrides.json"
	AbsenteesFile   = "absent_teachers.json"
	AssignmentsFile = "assignments.json"
	ProcessLogsFile = "process_logs.json"
	WarningsFile    = "warnings.json"
)

// FileStore keeps substitution state as JSON snapshots. Every write is a
// full read-modify-write of one snapshot under a process-wide mutex.
type FileStore struct {
	files *storage.LocalStorage
	clock func() time.Time
	mu    sync.Mutex
}

// NewFileStore wraps a local storage rooted at the data directory.
func NewFileStore(files *storage.LocalStorage) *FileStore {
	return &FileStore{files: files, clock: time.Now}
}

type archivedDay[T any] struct {
	Date       string    `json:"date"`
	ArchivedAt time.Time `json:"archivedAt"`
	Value      T         `json:"value"`
}

func (s *FileStore) readJSON(name string, dest any) (bool, error) {
	data, err := s.files.Read(name)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return true, fmt.Errorf("%s is empty", name)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return true, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

func (s *FileStore) writeJSON(name string, value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if _, err := s.files.Save(name, payload); err != nil {
		return err
	}
	return nil
}

func (s *FileStore) required(name string, dest any) error {
	found, err := s.readJSON(name, dest)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s: %w", name, storage.ErrNotFound)
	}
	return nil
}

// LoadRoster reads the teacher roster. A missing file is an error.
func (s *FileStore) LoadRoster(ctx context.Context) ([]models.RosterEntry, error) {
	var roster []models.RosterEntry
	if err := s.required(RosterFile, &roster); err != nil {
		return nil, err
	}
	return roster, nil
}

// SaveRoster rewrites the roster snapshot.
func (s *FileStore) SaveRoster(ctx context.Context, roster []models.RosterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if roster == nil {
		roster = []models.RosterEntry{}
	}
	return s.writeJSON(RosterFile, roster)
}

// LoadSchedule reads the normalized timetable. A missing file is an error.
func (s *FileStore) LoadSchedule(ctx context.Context) ([]models.ScheduleEntry, error) {
	var schedule []models.ScheduleEntry
	if err := s.required(ScheduleFile, &schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// LoadOverrides reads the override dataset; a missing file means none.
func (s *FileStore) LoadOverrides(ctx context.Context) (*models.OverrideSet, error) {
	var set models.OverrideSet
	found, err := s.readJSON(OverridesFile, &set)
	if err != nil || !found {
		return nil, err
	}
	return &set, nil
}

func (s *FileStore) absentees() (map[string][]models.Absentee, error) {
	byDate := make(map[string][]models.Absentee)
	if _, err := s.readJSON(AbsenteesFile, &byDate); err != nil {
		return nil, err
	}
	if byDate == nil {
		byDate = make(map[string][]models.Absentee)
	}
	return byDate, nil
}

// LoadAbsentees returns the absences recorded for date.
func (s *FileStore) LoadAbsentees(ctx context.Context, date string) ([]models.Absentee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate, err := s.absentees()
	if err != nil {
		return nil, err
	}
	return byDate[date], nil
}

// AddAbsentee records an absence. Recording the same name twice refreshes the
// entry instead of duplicating it.
func (s *FileStore) AddAbsentee(ctx context.Context, date string, absentee models.Absentee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate, err := s.absentees()
	if err != nil {
		return err
	}
	list := byDate[date]
	replaced := false
	for i := range list {
		if strings.EqualFold(strings.TrimSpace(list[i].Name), strings.TrimSpace(absentee.Name)) {
			list[i] = absentee
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, absentee)
	}
	byDate[date] = list
	return s.writeJSON(AbsenteesFile, byDate)
}

// MarkAbsenteesAssigned flags the named absences of date as covered.
func (s *FileStore) MarkAbsenteesAssigned(ctx context.Context, date string, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate, err := s.absentees()
	if err != nil {
		return err
	}
	list := byDate[date]
	for i := range list {
		for _, name := range names {
			if strings.EqualFold(strings.TrimSpace(list[i].Name), strings.TrimSpace(name)) {
				list[i].AssignedSubstitute = true
			}
		}
	}
	return s.writeJSON(AbsenteesFile, byDate)
}

func (s *FileStore) committed() (map[string]*models.CommittedSet, error) {
	byDate := make(map[string]*models.CommittedSet)
	if _, err := s.readJSON(AssignmentsFile, &byDate); err != nil {
		return nil, err
	}
	if byDate == nil {
		byDate = make(map[string]*models.CommittedSet)
	}
	return byDate, nil
}

// LoadCommitted returns the committed set of date, nil when none exists.
func (s *FileStore) LoadCommitted(ctx context.Context, date string) (*models.CommittedSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate, err := s.committed()
	if err != nil {
		return nil, err
	}
	return byDate[date], nil
}

// SaveCommitted merges the assignments of set into the stored set of date and
// replaces its warnings.
func (s *FileStore) SaveCommitted(ctx context.Context, date string, set *models.CommittedSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate, err := s.committed()
	if err != nil {
		return err
	}
	var incoming []models.Assignment
	var warnings []string
	if set != nil {
		incoming, warnings = set.Assignments, set.Warnings
	}
	merged := byDate[date].Supersede(incoming, warnings)
	if merged.Assignments == nil {
		merged.Assignments = []models.Assignment{}
	}
	if merged.Warnings == nil {
		merged.Warnings = []string{}
	}
	byDate[date] = merged
	return s.writeJSON(AssignmentsFile, byDate)
}

// ResetCommitted drops the committed set of date and marks its absences as
// uncovered so the next run recomputes them.
func (s *FileStore) ResetCommitted(ctx context.Context, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate, err := s.committed()
	if err != nil {
		return err
	}
	delete(byDate, date)
	if err := s.writeJSON(AssignmentsFile, byDate); err != nil {
		return err
	}

	absent, err := s.absentees()
	if err != nil {
		return err
	}
	if list, ok := absent[date]; ok {
		for i := range list {
			list[i].AssignedSubstitute = false
		}
		return s.writeJSON(AbsenteesFile, absent)
	}
	return nil
}

// AppendLog replaces the log of date, archiving the previous version.
func (s *FileStore) AppendLog(ctx context.Context, date string, entries []models.ProcessLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return replaceDay(s, ProcessLogsFile, date, entries)
}

// LoadLogs returns the stored log of date.
func (s *FileStore) LoadLogs(ctx context.Context, date string) ([]models.ProcessLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate := make(map[string][]models.ProcessLogEntry)
	if _, err := s.readJSON(ProcessLogsFile, &byDate); err != nil {
		return nil, err
	}
	return byDate[date], nil
}

// AppendWarnings replaces the warnings of date, archiving the previous version.
func (s *FileStore) AppendWarnings(ctx context.Context, date string, warnings []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if warnings == nil {
		warnings = []string{}
	}
	return replaceDay(s, WarningsFile, date, warnings)
}

// LoadWarnings returns the stored warnings of date.
func (s *FileStore) LoadWarnings(ctx context.Context, date string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate := make(map[string][]string)
	if _, err := s.readJSON(WarningsFile, &byDate); err != nil {
		return nil, err
	}
	return byDate[date], nil
}

// replaceDay swaps one date of a per-date snapshot. Callers hold s.mu.
func replaceDay[T any](s *FileStore, name, date string, value T) error {
	byDate := make(map[string]T)
	if _, err := s.readJSON(name, &byDate); err != nil {
		return err
	}
	if byDate == nil {
		byDate = make(map[string]T)
	}
	if previous, ok := byDate[date]; ok {
		now := s.clock()
		payload, err := json.Marshal(archivedDay[T]{Date: date, ArchivedAt: now.UTC(), Value: previous})
		if err != nil {
			return fmt.Errorf("encode archive of %s: %w", name, err)
		}
		if _, err := s.files.Archive(name, payload, now); err != nil {
			return err
		}
	}
	byDate[date] = value
	return s.writeJSON(name, byDate)
}
