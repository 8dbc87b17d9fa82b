package substitution

import (
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// Actions recorded in the process log.
const (
	ActionRunStarted        = "RunStarted"
	ActionSourceLoaded      = "SourceLoaded"
	ActionSourceDataError   = "SourceDataError"
	ActionDataAnomaly       = "DataAnomaly"
	ActionAbsenteesLoaded   = "AbsenteesLoaded"
	ActionNameResolved      = "NameResolved"
	ActionNameUnresolved    = "NameUnresolved"
	ActionScheduleConflict  = "ScheduleConflict"
	ActionTrackerSeeded     = "TrackerSeeded"
	ActionSlotsComputed     = "SlotsComputed"
	ActionAssignmentRelease = "AssignmentSuperseded"
	ActionCandidates        = "CandidatesEvaluated"
	ActionAssignmentSuccess = "AssignmentSuccess"
	ActionAssignmentFailure = "AssignmentFailure"
	ActionFallbackAdmitted  = "FallbackAdmitted"
	ActionFallbackAssigned  = "FallbackAssignment"
	ActionMissingPhone      = "MissingPhone"
	ActionValidationPassed  = "ValidationPassed"
	ActionValidationFailed  = "ValidationFailed"
	ActionPersisted         = "Persisted"
	ActionPersistFailed     = "PersistFailed"
	ActionRunAbandoned      = "RunAbandoned"
	ActionRunCompleted      = "RunCompleted"
)

// Kind classifies a surfaced warning.
type Kind string

const (
	KindUnresolvedName   Kind = "unresolved_name"
	KindNoCandidate      Kind = "no_candidate"
	KindScheduleConflict Kind = "schedule_conflict"
	KindFallback         Kind = "fallback"
	KindDataAnomaly      Kind = "data_anomaly"
	KindSourceData       Kind = "source_data"
	KindValidation       Kind = "validation"
	KindPersistence      Kind = "persistence"
	KindAbandoned        Kind = "abandoned"
)

// Recorder is the append-only decision log of one run. Warning and error
// entries are also surfaced, verbatim, in the run's warning list.
type Recorder struct {
	logger   *zap.Logger
	clock    func() time.Time
	last     time.Time
	entries  []models.ProcessLogEntry
	warnings []string
	kinds    map[Kind]int
}

// NewRecorder starts a recorder; every entry is mirrored to logger.
func NewRecorder(logger *zap.Logger, clock func() time.Time) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{
		logger: logger,
		clock:  clock,
		last:   clock(),
		kinds:  make(map[Kind]int),
	}
}

// Info records a decision that needs no attention.
func (r *Recorder) Info(action, details string, data map[string]any) {
	r.append(models.LogStatusInfo, action, details, data)
}

// Warn records a recoverable problem and surfaces details as a warning.
func (r *Recorder) Warn(kind Kind, action, details string, data map[string]any) {
	r.append(models.LogStatusWarning, action, details, withKind(data, kind))
	r.warnings = append(r.warnings, details)
	r.kinds[kind]++
}

// Error records a failure and surfaces details as a warning.
func (r *Recorder) Error(kind Kind, action, details string, data map[string]any) {
	r.append(models.LogStatusError, action, details, withKind(data, kind))
	r.warnings = append(r.warnings, details)
	r.kinds[kind]++
}

func (r *Recorder) append(status models.LogStatus, action, details string, data map[string]any) {
	now := r.clock()
	entry := models.ProcessLogEntry{
		Timestamp:  now.UTC(),
		Action:     action,
		Details:    details,
		Status:     status,
		Data:       data,
		DurationMs: now.Sub(r.last).Milliseconds(),
	}
	r.last = now
	r.entries = append(r.entries, entry)

	fields := []zap.Field{zap.String("action", action), zap.Int64("duration_ms", entry.DurationMs)}
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}
	switch status {
	case models.LogStatusError:
		r.logger.Error(details, fields...)
	case models.LogStatusWarning:
		r.logger.Warn(details, fields...)
	default:
		r.logger.Debug(details, fields...)
	}
}

// Entries returns a copy of the log so far.
func (r *Recorder) Entries() []models.ProcessLogEntry {
	out := make([]models.ProcessLogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Warnings returns a copy of the surfaced warnings so far.
func (r *Recorder) Warnings() []string {
	out := make([]string, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// Counts reports surfaced warnings per kind.
func (r *Recorder) Counts() map[Kind]int {
	out := make(map[Kind]int, len(r.kinds))
	for k, v := range r.kinds {
		out[k] = v
	}
	return out
}

func withKind(data map[string]any, kind Kind) map[string]any {
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["kind"] = string(kind)
	return out
}
