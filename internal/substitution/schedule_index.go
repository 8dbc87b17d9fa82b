package substitution

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

type busyKey struct {
	teacher string
	day     string
	period  int
}

type classKey struct {
	day       string
	period    int
	className string
}

// ScheduleIndex answers "what does this teacher teach on this day" and "is this
// teacher busy at this period" over normalized timetable records.
type ScheduleIndex struct {
	byTeacher map[string]map[string][]models.SlotRef
	busy      map[busyKey]string
	byClass   map[classKey]string
	anomalies []string
	size      int
}

// NewScheduleIndex indexes the given records. Records breaking the upstream
// contract or the one-teacher-per-slot invariants are skipped and reported
// through Anomalies; the first record wins.
func NewScheduleIndex(entries []models.ScheduleEntry) *ScheduleIndex {
	idx := &ScheduleIndex{
		byTeacher: make(map[string]map[string][]models.SlotRef),
		busy:      make(map[busyKey]string),
		byClass:   make(map[classKey]string),
	}

	for _, entry := range entries {
		day := normalizeDay(entry.Day)
		className := strings.TrimSpace(entry.ClassName)
		teacher := NormalizeName(entry.TeacherName)

		switch {
		case !models.IsWeekday(day):
			idx.anomalies = append(idx.anomalies, fmt.Sprintf("Skipped schedule entry with invalid day %q", entry.Day))
			continue
		case entry.Period <= 0:
			idx.anomalies = append(idx.anomalies, fmt.Sprintf("Skipped schedule entry for %s with invalid period %d", className, entry.Period))
			continue
		case className == "":
			idx.anomalies = append(idx.anomalies, fmt.Sprintf("Skipped schedule entry on %s period %d without class", day, entry.Period))
			continue
		case teacher == "":
			idx.anomalies = append(idx.anomalies, fmt.Sprintf("Skipped schedule entry for %s period %d without teacher", className, entry.Period))
			continue
		}

		ck := classKey{day: day, period: entry.Period, className: className}
		if owner, ok := idx.byClass[ck]; ok {
			if owner != teacher {
				idx.anomalies = append(idx.anomalies, fmt.Sprintf("%s period %d on %s already taught by %q; ignored %q", className, entry.Period, day, owner, entry.TeacherName))
			}
			continue
		}
		bk := busyKey{teacher: teacher, day: day, period: entry.Period}
		if other, ok := idx.busy[bk]; ok {
			idx.anomalies = append(idx.anomalies, fmt.Sprintf("%q double booked on %s period %d (%s and %s); kept %s", entry.TeacherName, day, entry.Period, other, className, other))
			continue
		}

		idx.byClass[ck] = teacher
		idx.busy[bk] = className
		if idx.byTeacher[teacher] == nil {
			idx.byTeacher[teacher] = make(map[string][]models.SlotRef)
		}
		idx.byTeacher[teacher][day] = append(idx.byTeacher[teacher][day], models.SlotRef{Period: entry.Period, ClassName: className})
		idx.size++
	}

	for _, days := range idx.byTeacher {
		for _, slots := range days {
			sortSlots(slots)
		}
	}
	return idx
}

// PeriodsFor returns the periods a teacher key teaches on a day, ordered by period.
func (idx *ScheduleIndex) PeriodsFor(teacherKey, day string) []models.SlotRef {
	slots := idx.byTeacher[teacherKey][normalizeDay(day)]
	out := make([]models.SlotRef, len(slots))
	copy(out, slots)
	return out
}

// IsBusy reports whether the teacher key teaches at (day, period).
func (idx *ScheduleIndex) IsBusy(teacherKey, day string, period int) bool {
	_, ok := idx.busy[busyKey{teacher: teacherKey, day: normalizeDay(day), period: period}]
	return ok
}

// PeriodsForTeacher tries the canonical key and then every variation key. An
// empty result means the teacher has no class that day.
func (idx *ScheduleIndex) PeriodsForTeacher(t *models.Teacher, day string) ([]models.SlotRef, string) {
	for _, key := range Keys(t) {
		if slots := idx.PeriodsFor(key, day); len(slots) > 0 {
			return slots, key
		}
	}
	return nil, ""
}

// TeacherBusy is the variation-aware form of IsBusy.
func (idx *ScheduleIndex) TeacherBusy(t *models.Teacher, day string, period int) bool {
	for _, key := range Keys(t) {
		if idx.IsBusy(key, day, period) {
			return true
		}
	}
	return false
}

// TeacherOf returns the teacher key of record for a slot.
func (idx *ScheduleIndex) TeacherOf(slot models.Slot) (string, bool) {
	key, ok := idx.byClass[classKey{day: normalizeDay(slot.Day), period: slot.Period, className: strings.TrimSpace(slot.ClassName)}]
	return key, ok
}

// Len reports how many records were indexed.
func (idx *ScheduleIndex) Len() int { return idx.size }

// Anomalies lists the records skipped while indexing.
func (idx *ScheduleIndex) Anomalies() []string { return idx.anomalies }

func normalizeDay(day string) string {
	return strings.ToLower(strings.TrimSpace(day))
}

func sortSlots(slots []models.SlotRef) {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Period == slots[j].Period {
			return slots[i].ClassName < slots[j].ClassName
		}
		return slots[i].Period < slots[j].Period
	})
}
