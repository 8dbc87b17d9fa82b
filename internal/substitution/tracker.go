package substitution

import (
	"fmt"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// DefaultWorkloadCap is the number of periods a substitute may cover in a day.
const DefaultWorkloadCap = 6

// Unavailability reasons reported by Tracker.Check.
const (
	ReasonBusy    = "teaching"
	ReasonClaimed = "already covering"
	ReasonCap     = "workload cap reached"
)

// Tracker holds the same-day state of one run: how many periods each
// substitute covers and which periods they already hold.
type Tracker struct {
	index    *ScheduleIndex
	cap      int
	workload map[string]int
	claimed  map[string]map[int]string
}

// NewTracker creates an empty tracker over the run's schedule index.
func NewTracker(index *ScheduleIndex, workloadCap int) *Tracker {
	if workloadCap <= 0 {
		workloadCap = DefaultWorkloadCap
	}
	return &Tracker{
		index:    index,
		cap:      workloadCap,
		workload: make(map[string]int),
		claimed:  make(map[string]map[int]string),
	}
}

// IsAvailable reports whether t can take (day, period).
func (tr *Tracker) IsAvailable(t *models.Teacher, day string, period int) bool {
	return tr.Check(t, day, period) == ""
}

// Check returns "" when t is available, otherwise the reason it is not.
func (tr *Tracker) Check(t *models.Teacher, day string, period int) string {
	if tr.index != nil && tr.index.TeacherBusy(t, day, period) {
		return ReasonBusy
	}
	if _, ok := tr.claimed[t.ID][period]; ok {
		return ReasonClaimed
	}
	if tr.workload[t.ID] >= tr.cap {
		return ReasonCap
	}
	return ""
}

// Commit records that t covers period for className. Callers must not commit
// the same slot twice.
func (tr *Tracker) Commit(t *models.Teacher, period int, className string) {
	if tr.claimed[t.ID] == nil {
		tr.claimed[t.ID] = make(map[int]string)
	}
	tr.claimed[t.ID][period] = className
	tr.workload[t.ID]++
}

// Release undoes a Commit, used when a prior assignment is recomputed.
func (tr *Tracker) Release(t *models.Teacher, period int) bool {
	if _, ok := tr.claimed[t.ID][period]; !ok {
		return false
	}
	delete(tr.claimed[t.ID], period)
	if tr.workload[t.ID] > 0 {
		tr.workload[t.ID]--
	}
	return true
}

// Workload reports the periods t covers in this run, seeded ones included.
func (tr *Tracker) Workload(t *models.Teacher) int {
	return tr.workload[t.ID]
}

// Cap reports the daily workload ceiling.
func (tr *Tracker) Cap() int { return tr.cap }

// Seed loads already committed assignments so repeated runs accumulate.
// It returns the assignments whose substitute could not be identified.
func (tr *Tracker) Seed(assignments []models.Assignment, dir *Directory) []string {
	var unknown []string
	for _, a := range assignments {
		sub := substituteOf(a, dir)
		if sub == nil {
			unknown = append(unknown, fmt.Sprintf("Committed assignment of %q to %s period %d does not match any roster teacher", a.Substitute, a.ClassName, a.Period))
			continue
		}
		if _, dup := tr.claimed[sub.ID][a.Period]; dup {
			continue
		}
		tr.Commit(sub, a.Period, a.ClassName)
	}
	return unknown
}

// substituteOf identifies the roster teacher behind a committed assignment,
// by phone first and exact name key second. It never learns variations.
func substituteOf(a models.Assignment, dir *Directory) *models.Teacher {
	if dir == nil {
		return nil
	}
	if t, ok := dir.ByPhone(a.SubstitutePhone); ok {
		return t
	}
	if t, ok := dir.Lookup(a.Substitute); ok {
		return t
	}
	return nil
}
