package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// Schema creates the tables used by PostgresStore.
const Schema = `
CREATE TABLE IF NOT EXISTS teachers (
	id TEXT PRIMARY KEY,
	position INT NOT NULL,
	name TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	variations TEXT[] NOT NULL DEFAULT '{}',
	grade_level INT,
	is_substitute BOOLEAN NOT NULL DEFAULT FALSE,
	is_regular BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS schedule_entries (
	day TEXT NOT NULL,
	period INT NOT NULL,
	class_name TEXT NOT NULL,
	teacher_name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS schedule_overrides (
	version TEXT NOT NULL,
	teacher_name TEXT NOT NULL,
	day TEXT NOT NULL,
	period INT NOT NULL,
	class_name TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS absences (
	date DATE NOT NULL,
	name_key TEXT NOT NULL,
	name TEXT NOT NULL,
	phone_number TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ NOT NULL,
	assigned_substitute BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (date, name_key)
);
CREATE TABLE IF NOT EXISTS substitute_assignments (
	date DATE NOT NULL,
	period INT NOT NULL,
	class_name TEXT NOT NULL,
	original_teacher TEXT NOT NULL,
	substitute TEXT NOT NULL,
	substitute_phone TEXT NOT NULL DEFAULT '',
	fallback BOOLEAN NOT NULL DEFAULT FALSE,
	assigned_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (date, period, class_name)
);
CREATE TABLE IF NOT EXISTS assignment_warnings (
	date DATE PRIMARY KEY,
	warnings JSONB NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS process_logs (
	date DATE PRIMARY KEY,
	entries JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS process_logs_archive (
	date DATE NOT NULL,
	entries JSONB NOT NULL,
	archived_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS run_warnings (
	date DATE PRIMARY KEY,
	warnings JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS run_warnings_archive (
	date DATE NOT NULL,
	warnings JSONB NOT NULL,
	archived_at TIMESTAMPTZ NOT NULL
);`

// PostgresStore keeps substitution state in PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore constructs the store.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates missing tables.
func (r *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate substitution schema: %w", err)
	}
	return nil
}

type teacherRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Phone        string         `db:"phone"`
	Variations   pq.StringArray `db:"variations"`
	GradeLevel   sql.NullInt64  `db:"grade_level"`
	IsSubstitute bool           `db:"is_substitute"`
	IsRegular    bool           `db:"is_regular"`
}

// LoadRoster returns the teachers in roster order.
func (r *PostgresStore) LoadRoster(ctx context.Context) ([]models.RosterEntry, error) {
	const query = `SELECT id, name, phone, variations, grade_level, is_substitute, is_regular FROM teachers ORDER BY position`
	var rows []teacherRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	roster := make([]models.RosterEntry, len(rows))
	for i, row := range rows {
		entry := models.RosterEntry{
			ID:           row.ID,
			Name:         row.Name,
			Phone:        row.Phone,
			Variations:   []string(row.Variations),
			IsSubstitute: row.IsSubstitute,
			IsRegular:    row.IsRegular,
		}
		if row.GradeLevel.Valid {
			grade := int(row.GradeLevel.Int64)
			entry.GradeLevel = &grade
		}
		roster[i] = entry
	}
	return roster, nil
}

// SaveRoster replaces the roster inside a transaction.
func (r *PostgresStore) SaveRoster(ctx context.Context, roster []models.RosterEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM teachers`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear roster: %w", err)
	}
	const insert = `INSERT INTO teachers (id, position, name, phone, variations, grade_level, is_substitute, is_regular) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for i, entry := range roster {
		var grade sql.NullInt64
		if entry.GradeLevel != nil {
			grade = sql.NullInt64{Int64: int64(*entry.GradeLevel), Valid: true}
		}
		variations := entry.Variations
		if variations == nil {
			variations = []string{}
		}
		if _, err := tx.ExecContext(ctx, insert, entry.ID, i, entry.Name, entry.Phone, pq.Array(variations), grade, entry.IsSubstitute, entry.IsRegular); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert roster entry %s: %w", entry.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit roster tx: %w", err)
	}
	return nil
}

// LoadSchedule returns every timetable record.
func (r *PostgresStore) LoadSchedule(ctx context.Context) ([]models.ScheduleEntry, error) {
	const query = `SELECT day, period, class_name, teacher_name FROM schedule_entries ORDER BY day, period, class_name`
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	return entries, nil
}

type overrideRow struct {
	Version     string `db:"version"`
	TeacherName string `db:"teacher_name"`
	Day         string `db:"day"`
	Period      int    `db:"period"`
	ClassName   string `db:"class_name"`
	Note        string `db:"note"`
}

// LoadOverrides groups override rows per (teacher, day). No rows means no overrides.
func (r *PostgresStore) LoadOverrides(ctx context.Context) (*models.OverrideSet, error) {
	const query = `SELECT version, teacher_name, day, period, class_name, note FROM schedule_overrides ORDER BY teacher_name, day, period`
	var rows []overrideRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load schedule overrides: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	set := &models.OverrideSet{}
	index := make(map[string]int)
	for _, row := range rows {
		if row.Version > set.Version {
			set.Version = row.Version
		}
		key := row.TeacherName + "|" + row.Day
		pos, ok := index[key]
		if !ok {
			pos = len(set.Entries)
			index[key] = pos
			set.Entries = append(set.Entries, models.OverrideEntry{TeacherName: row.TeacherName, Day: row.Day, Note: row.Note})
		}
		set.Entries[pos].Periods = append(set.Entries[pos].Periods, models.SlotRef{Period: row.Period, ClassName: row.ClassName})
	}
	return set, nil
}

// LoadAbsentees returns the absences recorded for date.
func (r *PostgresStore) LoadAbsentees(ctx context.Context, date string) ([]models.Absentee, error) {
	const query = `SELECT name, phone_number, recorded_at, assigned_substitute FROM absences WHERE date = $1 ORDER BY recorded_at, name`
	var list []models.Absentee
	if err := r.db.SelectContext(ctx, &list, query, date); err != nil {
		return nil, fmt.Errorf("load absences: %w", err)
	}
	return list, nil
}

// AddAbsentee records or refreshes an absence.
func (r *PostgresStore) AddAbsentee(ctx context.Context, date string, absentee models.Absentee) error {
	const query = `INSERT INTO absences (date, name_key, name, phone_number, recorded_at, assigned_substitute)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (date, name_key) DO UPDATE
		SET name = EXCLUDED.name,
		    phone_number = EXCLUDED.phone_number,
		    recorded_at = EXCLUDED.recorded_at,
		    assigned_substitute = EXCLUDED.assigned_substitute`
	if _, err := r.db.ExecContext(ctx, query, date, nameKey(absentee.Name), strings.TrimSpace(absentee.Name), absentee.PhoneNumber, absentee.Timestamp, absentee.AssignedSubstitute); err != nil {
		return fmt.Errorf("record absence: %w", err)
	}
	return nil
}

// MarkAbsenteesAssigned flags the named absences of date as covered.
func (r *PostgresStore) MarkAbsenteesAssigned(ctx context.Context, date string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = nameKey(name)
	}
	const query = `UPDATE absences SET assigned_substitute = TRUE WHERE date = $1 AND name_key = ANY($2)`
	if _, err := r.db.ExecContext(ctx, query, date, pq.Array(keys)); err != nil {
		return fmt.Errorf("mark absences covered: %w", err)
	}
	return nil
}

// LoadCommitted returns the committed set of date, nil when none exists.
func (r *PostgresStore) LoadCommitted(ctx context.Context, date string) (*models.CommittedSet, error) {
	const query = `SELECT original_teacher, period, class_name, substitute, substitute_phone, fallback, assigned_at
		FROM substitute_assignments WHERE date = $1 ORDER BY period, class_name`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, date); err != nil {
		return nil, fmt.Errorf("load committed assignments: %w", err)
	}
	warnings, found, err := r.committedWarnings(ctx, r.db, date)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 && !found {
		return nil, nil
	}
	return &models.CommittedSet{Assignments: assignments, Warnings: warnings}, nil
}

func (r *PostgresStore) committedWarnings(ctx context.Context, q sqlx.QueryerContext, date string) ([]string, bool, error) {
	var raw types.JSONText
	err := sqlx.GetContext(ctx, q, &raw, `SELECT warnings FROM assignment_warnings WHERE date = $1`, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load committed warnings: %w", err)
	}
	var warnings []string
	if err := raw.Unmarshal(&warnings); err != nil {
		return nil, true, fmt.Errorf("decode committed warnings: %w", err)
	}
	return warnings, true, nil
}

// SaveCommitted upserts set per (date, period, className) and replaces the
// warnings of date.
func (r *PostgresStore) SaveCommitted(ctx context.Context, date string, set *models.CommittedSet) error {
	if set == nil {
		set = &models.CommittedSet{}
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignments tx: %w", err)
	}
	const upsert = `INSERT INTO substitute_assignments (date, period, class_name, original_teacher, substitute, substitute_phone, fallback, assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (date, period, class_name) DO UPDATE
		SET original_teacher = EXCLUDED.original_teacher,
		    substitute = EXCLUDED.substitute,
		    substitute_phone = EXCLUDED.substitute_phone,
		    fallback = EXCLUDED.fallback,
		    assigned_at = EXCLUDED.assigned_at`
	for _, a := range set.Assignments {
		if _, err := tx.ExecContext(ctx, upsert, date, a.Period, a.ClassName, a.OriginalTeacher, a.Substitute, a.SubstitutePhone, a.Fallback, a.AssignedAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert assignment %s period %d: %w", a.ClassName, a.Period, err)
		}
	}

	warnings := (*models.CommittedSet)(nil).Supersede(nil, set.Warnings).Warnings
	if warnings == nil {
		warnings = []string{}
	}
	payload, err := jsonText(warnings)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	const upsertWarnings = `INSERT INTO assignment_warnings (date, warnings) VALUES ($1, $2)
		ON CONFLICT (date) DO UPDATE SET warnings = EXCLUDED.warnings`
	if _, err := tx.ExecContext(ctx, upsertWarnings, date, payload); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("save committed warnings: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignments tx: %w", err)
	}
	return nil
}

// ResetCommitted drops the committed set of date and marks its absences as uncovered.
func (r *PostgresStore) ResetCommitted(ctx context.Context, date string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	for _, stmt := range []string{
		`DELETE FROM substitute_assignments WHERE date = $1`,
		`DELETE FROM assignment_warnings WHERE date = $1`,
		`UPDATE absences SET assigned_substitute = FALSE WHERE date = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, date); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("reset assignments: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset tx: %w", err)
	}
	return nil
}

// AppendLog replaces the log of date, archiving the previous version.
func (r *PostgresStore) AppendLog(ctx context.Context, date string, entries []models.ProcessLogEntry) error {
	if entries == nil {
		entries = []models.ProcessLogEntry{}
	}
	payload, err := jsonText(entries)
	if err != nil {
		return err
	}
	return r.replaceDay(ctx, "process_logs", "entries", date, payload)
}

// LoadLogs returns the stored log of date.
func (r *PostgresStore) LoadLogs(ctx context.Context, date string) ([]models.ProcessLogEntry, error) {
	var entries []models.ProcessLogEntry
	if err := r.loadDay(ctx, `SELECT entries FROM process_logs WHERE date = $1`, date, &entries); err != nil {
		return nil, fmt.Errorf("load process log: %w", err)
	}
	return entries, nil
}

// AppendWarnings replaces the warnings of date, archiving the previous version.
func (r *PostgresStore) AppendWarnings(ctx context.Context, date string, warnings []string) error {
	if warnings == nil {
		warnings = []string{}
	}
	payload, err := jsonText(warnings)
	if err != nil {
		return err
	}
	return r.replaceDay(ctx, "run_warnings", "warnings", date, payload)
}

// LoadWarnings returns the stored warnings of date.
func (r *PostgresStore) LoadWarnings(ctx context.Context, date string) ([]string, error) {
	var warnings []string
	if err := r.loadDay(ctx, `SELECT warnings FROM run_warnings WHERE date = $1`, date, &warnings); err != nil {
		return nil, fmt.Errorf("load warnings: %w", err)
	}
	return warnings, nil
}

func (r *PostgresStore) loadDay(ctx context.Context, query, date string, dest any) error {
	var raw types.JSONText
	err := r.db.GetContext(ctx, &raw, query, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	return raw.Unmarshal(dest)
}

// replaceDay archives the current row of table for date, then upserts payload.
// table and column are package constants, never user input.
func (r *PostgresStore) replaceDay(ctx context.Context, table, column, date string, payload types.JSONText) error {
	now := time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", table, err)
	}
	archive := fmt.Sprintf(`INSERT INTO %[1]s_archive (date, %[2]s, archived_at) SELECT date, %[2]s, $2 FROM %[1]s WHERE date = $1`, table, column)
	if _, err := tx.ExecContext(ctx, archive, date, now); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("archive %s: %w", table, err)
	}
	upsert := fmt.Sprintf(`INSERT INTO %[1]s (date, %[2]s, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (date) DO UPDATE SET %[2]s = EXCLUDED.%[2]s, updated_at = EXCLUDED.updated_at`, table, column)
	if _, err := tx.ExecContext(ctx, upsert, date, payload, now); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("save %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s tx: %w", table, err)
	}
	return nil
}

func jsonText(value any) (types.JSONText, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return types.JSONText(raw), nil
}

func nameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
