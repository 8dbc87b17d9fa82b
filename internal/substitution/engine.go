package substitution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	// RunCompleted means every vacated slot was filled and persisted.
	RunCompleted RunStatus = "completed"
	// RunPartial means the run persisted but left slots unfilled or hit
	// validation or persistence problems.
	RunPartial RunStatus = "partial"
	// RunFailed means the source data could not be used; nothing was assigned.
	RunFailed RunStatus = "failed"
	// RunAbandoned means the caller gave up before persistence.
	RunAbandoned RunStatus = "abandoned"
)

// EngineConfig tunes a run.
type EngineConfig struct {
	WorkloadCap       int
	MatchThreshold    float64
	Matcher           Matcher
	Selector          SelectorConfig
	DefaultGradeLevel int
	Clock             func() time.Time
}

// RunRequest starts a run for Date. When Absentees is empty the persisted
// absentee list for the date is used, skipping entries already covered.
type RunRequest struct {
	Date      string
	Absentees []string
}

// Result is everything a run produced. It is returned on every path.
type Result struct {
	RunID        string                   `json:"runId"`
	Date         string                   `json:"date"`
	Day          string                   `json:"day"`
	Status       RunStatus                `json:"status"`
	Assignments  []models.Assignment      `json:"assignments"`
	Committed    []models.Assignment      `json:"committed"`
	Unfilled     []models.Slot            `json:"unfilled"`
	Warnings     []string                 `json:"warnings"`
	Logs         []models.ProcessLogEntry `json:"logs"`
	WarningKinds map[Kind]int             `json:"warningKinds"`
	StartedAt    time.Time                `json:"startedAt"`
	Duration     time.Duration            `json:"duration"`
}

// Engine runs substitute assignment against a Store. Runs for the same date
// are serialized; runs for different dates proceed independently.
type Engine struct {
	store  Store
	cfg    EngineConfig
	logger *zap.Logger
	locks  *dateLocks
}

// NewEngine wires an engine.
func NewEngine(store Store, cfg EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.WorkloadCap <= 0 {
		cfg.WorkloadCap = DefaultWorkloadCap
	}
	if cfg.Matcher == nil {
		cfg.Matcher = FuzzyMatcher{}
	}
	return &Engine{store: store, cfg: cfg, logger: logger, locks: newDateLocks()}
}

// Run executes Init → ResolveAbsentees → assign → Validate → Persist. It
// never returns an error: failures are reported in the Result.
func (e *Engine) Run(ctx context.Context, req RunRequest) *Result {
	started := e.cfg.Clock()
	res := &Result{
		RunID:     uuid.NewString(),
		Date:      req.Date,
		StartedAt: started.UTC(),
	}
	rec := NewRecorder(e.logger.With(zap.String("date", req.Date), zap.String("run_id", res.RunID)), e.cfg.Clock)

	day, err := DayOf(req.Date)
	if err != nil {
		rec.Error(KindSourceData, ActionSourceDataError, err.Error(), nil)
		return e.finish(res, rec, nil, RunFailed, started)
	}
	res.Day = day

	release, err := e.locks.acquire(ctx, req.Date)
	if err != nil {
		rec.Error(KindAbandoned, ActionRunAbandoned, fmt.Sprintf("Run for %s abandoned while waiting for the active run: %v", req.Date, err), nil)
		return e.finish(res, rec, nil, RunAbandoned, started)
	}
	defer release()

	r := &run{
		engine:    e,
		ctx:       ctx,
		req:       req,
		day:       day,
		rec:       rec,
		absentIDs: make(map[string]bool),
		covered:   make(map[string]bool),
		status:    RunCompleted,

		absentToday: make(map[string]bool),
	}
	rec.Info(ActionRunStarted, fmt.Sprintf("Substitution run started for %s (%s)", req.Date, day), map[string]any{
		"runId":             res.RunID,
		"explicitAbsentees": len(req.Absentees),
	})

	if err := r.load(); err != nil {
		rec.Error(KindSourceData, ActionSourceDataError, err.Error(), nil)
		r.persistDiagnostics()
		return e.finish(res, rec, nil, RunFailed, started)
	}

	r.resolveAbsentees()
	r.detectConflicts()
	r.seed()
	r.computeSlots()
	r.assignAll()
	r.validate()

	if err := ctx.Err(); err != nil {
		rec.Error(KindAbandoned, ActionRunAbandoned, fmt.Sprintf("Run for %s abandoned before persistence: %v", req.Date, err), nil)
		return e.finish(res, rec, r, RunAbandoned, started)
	}
	r.persist()
	return e.finish(res, rec, r, r.status, started)
}

func (e *Engine) finish(res *Result, rec *Recorder, r *run, status RunStatus, started time.Time) *Result {
	res.Status = status
	res.Assignments = []models.Assignment{}
	res.Committed = []models.Assignment{}
	res.Unfilled = []models.Slot{}
	if r != nil {
		res.Assignments = append(res.Assignments, r.made...)
		if r.merged != nil {
			res.Committed = append(res.Committed, r.merged.Assignments...)
		}
		res.Unfilled = append(res.Unfilled, r.unfilled...)
	}
	res.Warnings = rec.Warnings()
	res.Logs = rec.Entries()
	res.WarningKinds = rec.Counts()
	res.Duration = e.cfg.Clock().Sub(started)
	return res
}

type absentTeacher struct {
	teacher *models.Teacher
	input   string
	slots   []VacatedSlot
}

// run is the per-invocation context; nothing in it outlives Engine.Run.
type run struct {
	engine *Engine
	ctx    context.Context
	req    RunRequest
	day    string
	rec    *Recorder

	dir       *Directory
	index     *ScheduleIndex
	overrides *Overrides
	tracker   *Tracker
	selector  *Selector
	committed *models.CommittedSet
	stored    []models.Absentee

	absent    []absentTeacher
	absentIDs map[string]bool
	made      []models.Assignment
	unfilled  []models.Slot
	covered   map[string]bool
	merged    *models.CommittedSet
	status    RunStatus

	// absentToday holds everyone absent on the date, processed or not.
	absentToday map[string]bool
}

func (r *run) store() Store { return r.engine.store }

func (r *run) load() error {
	cfg := r.engine.cfg

	roster, err := r.store().LoadRoster(r.ctx)
	if err != nil {
		return sourceDataError("load teacher roster", err)
	}
	if len(roster) == 0 {
		return sourceDataError("teacher roster is empty", nil)
	}
	r.dir = NewDirectory(roster, DirectoryOptions{
		Matcher:           cfg.Matcher,
		Threshold:         cfg.MatchThreshold,
		DefaultGradeLevel: cfg.DefaultGradeLevel,
	})
	if r.dir.Len() == 0 {
		return sourceDataError("teacher roster has no usable entries", nil)
	}

	schedule, err := r.store().LoadSchedule(r.ctx)
	if err != nil {
		return sourceDataError("load schedule", err)
	}
	if len(schedule) == 0 {
		return sourceDataError("schedule is empty", nil)
	}
	r.index = NewScheduleIndex(schedule)

	committed, err := r.store().LoadCommitted(r.ctx, r.req.Date)
	if err != nil {
		return sourceDataError("load committed assignments", err)
	}
	if committed == nil {
		committed = &models.CommittedSet{}
	}
	r.committed = committed

	stored, err := r.store().LoadAbsentees(r.ctx, r.req.Date)
	if err != nil {
		if len(r.req.Absentees) == 0 {
			return sourceDataError("load absent teachers", err)
		}
		r.rec.Warn(KindDataAnomaly, ActionDataAnomaly, fmt.Sprintf("Absent teacher list unavailable, using request list only: %v", err), nil)
	}
	r.stored = stored

	overrides, err := r.store().LoadOverrides(r.ctx)
	if err != nil {
		r.rec.Warn(KindDataAnomaly, ActionDataAnomaly, fmt.Sprintf("Schedule overrides unavailable, continuing without them: %v", err), nil)
		overrides = nil
	}
	r.overrides = NewOverrides(overrides)

	for _, anomaly := range r.dir.Anomalies() {
		r.rec.Warn(KindDataAnomaly, ActionDataAnomaly, anomaly, map[string]any{"source": "roster"})
	}
	for _, anomaly := range r.index.Anomalies() {
		r.rec.Warn(KindDataAnomaly, ActionDataAnomaly, anomaly, map[string]any{"source": "schedule"})
	}

	r.tracker = NewTracker(r.index, cfg.WorkloadCap)
	r.selector = NewSelector(r.tracker, cfg.Selector)

	r.rec.Info(ActionSourceLoaded, "Source data loaded", map[string]any{
		"teachers":         r.dir.Len(),
		"substitutes":      len(r.dir.Substitutes()),
		"scheduleEntries":  r.index.Len(),
		"committed":        len(committed.Assignments),
		"storedAbsentees":  len(stored),
		"overrideRows":     r.overrides.Len(),
		"overridesVersion": r.overrides.Version(),
		"matcher":          cfg.Matcher.Name(),
	})
	return nil
}

func (r *run) resolveAbsentees() {
	names := r.req.Absentees
	source := "request"
	if len(names) == 0 {
		source = "snapshot"
		for _, a := range r.stored {
			if !a.AssignedSubstitute {
				names = append(names, a.Name)
			}
		}
	}
	r.rec.Info(ActionAbsenteesLoaded, fmt.Sprintf("%d absent teacher(s) to process", len(names)), map[string]any{
		"source": source,
		"names":  names,
	})

	for _, name := range names {
		t, match, ok := r.dir.Resolve(name)
		if !ok {
			r.rec.Warn(KindUnresolvedName, ActionNameUnresolved, fmt.Sprintf("Could not match absent teacher %q to any roster entry", name), map[string]any{
				"input":     name,
				"key":       match.Key,
				"bestScore": match.Score,
			})
			continue
		}
		if r.absentIDs[t.ID] {
			r.rec.Info(ActionNameResolved, fmt.Sprintf("%q is %s, already listed as absent", name, t.CanonicalName), nil)
			continue
		}
		r.absentIDs[t.ID] = true
		r.absent = append(r.absent, absentTeacher{teacher: t, input: name})
		r.rec.Info(ActionNameResolved, fmt.Sprintf("%q resolved to %s", name, t.CanonicalName), map[string]any{
			"teacherId": t.ID,
			"score":     match.Score,
			"exact":     match.Exact,
			"learned":   match.Learned,
		})
	}

	for id := range r.absentIDs {
		r.absentToday[id] = true
	}
	var others []string
	for _, a := range r.stored {
		t, _, ok := r.dir.Find(a.Name)
		if !ok || r.absentToday[t.ID] {
			continue
		}
		r.absentToday[t.ID] = true
		others = append(others, t.CanonicalName)
	}
	if len(others) > 0 {
		r.rec.Info(ActionAbsenteesLoaded, fmt.Sprintf("%d other teacher(s) absent today are excluded from the substitute pool", len(others)), map[string]any{
			"teachers": others,
		})
	}
}

func (r *run) detectConflicts() {
	for _, a := range r.committed.Assignments {
		sub := substituteOf(a, r.dir)
		if sub == nil || !r.absentToday[sub.ID] {
			continue
		}
		r.rec.Warn(KindScheduleConflict, ActionScheduleConflict,
			fmt.Sprintf("%s is absent but already assigned to cover %s period %d for %s", sub.CanonicalName, a.ClassName, a.Period, a.OriginalTeacher),
			map[string]any{"teacherId": sub.ID, "period": a.Period, "className": a.ClassName})
	}
}

func (r *run) seed() {
	for _, problem := range r.tracker.Seed(r.committed.Assignments, r.dir) {
		r.rec.Warn(KindDataAnomaly, ActionDataAnomaly, problem, map[string]any{"source": "committed"})
	}
	r.rec.Info(ActionTrackerSeeded, fmt.Sprintf("Seeded workload from %d committed assignment(s)", len(r.committed.Assignments)), nil)
}

func (r *run) computeSlots() {
	prior := make(map[models.AssignmentKey]models.Assignment, len(r.committed.Assignments))
	for _, a := range r.committed.Assignments {
		prior[a.SlotKey()] = a
	}

	for i := range r.absent {
		at := &r.absent[i]
		computed, key := r.index.PeriodsForTeacher(at.teacher, r.day)
		overrides := r.overrides.For(at.teacher, r.day)
		at.slots = MergeSlots(computed, overrides)
		if len(at.slots) == 0 {
			r.rec.Info(ActionSlotsComputed, fmt.Sprintf("%s has no classes on %s", at.teacher.CanonicalName, r.day), nil)
			continue
		}
		r.rec.Info(ActionSlotsComputed, fmt.Sprintf("%s has %d period(s) to cover on %s", at.teacher.CanonicalName, len(at.slots), r.day), map[string]any{
			"slots":      at.slots,
			"matchedKey": key,
			"overrides":  len(overrides),
		})

		for _, slot := range at.slots {
			previous, ok := prior[models.AssignmentKey{Period: slot.Period, ClassName: slot.ClassName}]
			if !ok {
				continue
			}
			if sub := substituteOf(previous, r.dir); sub != nil && r.tracker.Release(sub, slot.Period) {
				r.rec.Info(ActionAssignmentRelease, fmt.Sprintf("Recomputing %s period %d previously covered by %s", slot.ClassName, slot.Period, previous.Substitute), nil)
			}
		}
	}
}

func (r *run) assignAll() {
	pool := make([]*models.Teacher, 0, len(r.dir.Substitutes()))
	for _, t := range r.dir.Substitutes() {
		if !r.absentToday[t.ID] {
			pool = append(pool, t)
		}
	}

	handled := make(map[models.AssignmentKey]string)
	for _, at := range r.absent {
		filled := true
		for _, vs := range at.slots {
			key := models.AssignmentKey{Period: vs.Period, ClassName: vs.ClassName}
			if owner, dup := handled[key]; dup {
				r.rec.Warn(KindDataAnomaly, ActionDataAnomaly, fmt.Sprintf("%s period %d is listed for both %s and %s; covered once", vs.ClassName, vs.Period, owner, at.teacher.CanonicalName), nil)
				continue
			}
			handled[key] = at.teacher.CanonicalName
			slot := models.Slot{Day: r.day, Period: vs.Period, ClassName: vs.ClassName}
			if !r.assignSlot(at, slot, vs.Source, pool) {
				filled = false
			}
		}
		if filled {
			r.covered[at.teacher.ID] = true
		}
	}
	if len(r.unfilled) > 0 {
		r.status = RunPartial
	}
}

func (r *run) assignSlot(at absentTeacher, slot models.Slot, source string, pool []*models.Teacher) bool {
	sel := r.selector.Select(slot, pool)
	r.rec.Info(ActionCandidates, fmt.Sprintf("%s period %d: %d compatible and %d fallback candidate(s)", slot.ClassName, slot.Period, len(sel.Primary), len(sel.Fallback)), map[string]any{
		"targetGrade": sel.TargetGrade,
		"primary":     teacherNames(sel.Primary),
		"fallback":    teacherNames(sel.Fallback),
		"rejected":    sel.Rejected,
	})

	sub, fallback := r.selector.Pick(sel)
	if sub == nil {
		r.unfilled = append(r.unfilled, slot)
		r.rec.Warn(KindNoCandidate, ActionAssignmentFailure, fmt.Sprintf("No substitute found for %s period %d", slot.ClassName, slot.Period), map[string]any{
			"absentTeacher": at.teacher.CanonicalName,
			"targetGrade":   sel.TargetGrade,
		})
		return false
	}

	r.tracker.Commit(sub, slot.Period, slot.ClassName)
	r.made = append(r.made, models.Assignment{
		OriginalTeacher: at.teacher.CanonicalName,
		Period:          slot.Period,
		ClassName:       slot.ClassName,
		Substitute:      sub.CanonicalName,
		SubstitutePhone: sub.Phone,
		Fallback:        fallback,
		AssignedAt:      r.engine.cfg.Clock().UTC(),
	})

	if fallback {
		for i, admission := range sel.Warnings {
			r.rec.Warn(KindFallback, ActionFallbackAdmitted, admission, map[string]any{
				"candidate": sel.Fallback[i].CanonicalName,
				"period":    slot.Period,
				"className": slot.ClassName,
			})
		}
		r.rec.Info(ActionFallbackAssigned,
			fmt.Sprintf("%s (grade %d) assigned to %s period %d as fallback: no grade %d substitute available", sub.CanonicalName, sub.GradeLevel, slot.ClassName, slot.Period, sel.TargetGrade),
			map[string]any{"admissions": len(sel.Warnings)})
	}
	if sub.Phone == "" {
		r.rec.Warn(KindDataAnomaly, ActionMissingPhone, fmt.Sprintf("Substitute %s has no phone number on record", sub.CanonicalName), nil)
	}
	r.rec.Info(ActionAssignmentSuccess, fmt.Sprintf("%s covers %s period %d for %s", sub.CanonicalName, slot.ClassName, slot.Period, at.teacher.CanonicalName), map[string]any{
		"workload": r.tracker.Workload(sub),
		"source":   source,
		"fallback": fallback,
	})
	return true
}

func (r *run) validate() {
	r.merged = r.committed.Merge(r.made, nil)
	violations := Validate(r.merged.Assignments, r.dir, r.tracker.Cap(), r.engine.cfg.Selector)
	for _, v := range violations {
		r.rec.Error(KindValidation, ActionValidationFailed, v, nil)
	}
	if len(violations) > 0 {
		r.status = RunPartial
		return
	}
	r.rec.Info(ActionValidationPassed, fmt.Sprintf("%d assignment(s) for %s passed validation", len(r.merged.Assignments), r.req.Date), nil)
}

func (r *run) persist() {
	date := r.req.Date
	fail := func(what string, err error) {
		r.status = RunPartial
		r.rec.Error(KindPersistence, ActionPersistFailed, fmt.Sprintf("Failed to %s: %v", what, err), nil)
	}

	if err := r.store().SaveCommitted(r.ctx, date, &models.CommittedSet{Assignments: r.made, Warnings: r.rec.Warnings()}); err != nil {
		fail("save assignments", err)
	}

	var names []string
	for _, a := range r.stored {
		if a.AssignedSubstitute {
			continue
		}
		if t, _, ok := r.dir.Find(a.Name); ok && r.covered[t.ID] {
			names = append(names, a.Name)
		}
	}
	if len(names) > 0 {
		if err := r.store().MarkAbsenteesAssigned(r.ctx, date, names); err != nil {
			fail("mark absent teachers as covered", err)
		}
	}

	if learned := r.dir.Learned(); len(learned) > 0 {
		if err := r.store().SaveRoster(r.ctx, r.dir.Roster()); err != nil {
			fail("save learned name variations", err)
		} else {
			r.rec.Info(ActionPersisted, fmt.Sprintf("Saved new name variations for %d teacher(s)", len(learned)), map[string]any{"learned": learned})
		}
	}

	r.rec.Info(ActionPersisted, fmt.Sprintf("Saved %d new assignment(s) for %s", len(r.made), date), map[string]any{
		"coveredAbsentees": names,
	})
	r.rec.Info(ActionRunCompleted, fmt.Sprintf("Run finished with %d assignment(s), %d unfilled slot(s)", len(r.made), len(r.unfilled)), map[string]any{
		"status": string(r.status),
	})
	r.persistDiagnostics()
}

// persistDiagnostics writes warnings and the process log. It runs on the
// failure path too so a failed run still leaves a trace.
func (r *run) persistDiagnostics() {
	if err := r.store().AppendWarnings(r.ctx, r.req.Date, r.rec.Warnings()); err != nil {
		r.status = RunPartial
		r.rec.Error(KindPersistence, ActionPersistFailed, fmt.Sprintf("Failed to save warnings: %v", err), nil)
	}
	if err := r.store().AppendLog(r.ctx, r.req.Date, r.rec.Entries()); err != nil {
		r.status = RunPartial
		r.rec.Error(KindPersistence, ActionPersistFailed, fmt.Sprintf("Failed to save process log: %v", err), nil)
	}
}

func teacherNames(list []*models.Teacher) []string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.CanonicalName
	}
	return out
}

// Reset drops the committed assignments of date while holding its run lock.
// It does not wait: an active run yields ErrRunInProgress.
func (e *Engine) Reset(ctx context.Context, date string) error {
	if _, err := DayOf(date); err != nil {
		return err
	}
	release, ok := e.locks.tryAcquire(date)
	if !ok {
		return ErrRunInProgress
	}
	defer release()
	if err := e.store.ResetCommitted(ctx, date); err != nil {
		return fmt.Errorf("reset committed assignments: %w", err)
	}
	return nil
}

// Running reports whether a run for date is in progress.
func (e *Engine) Running(date string) bool {
	return e.locks.busy(date)
}
