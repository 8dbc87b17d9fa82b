package substitution

import (
	"sort"
	"strings"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

type overrideKey struct {
	teacher string
	day     string
}

// Overrides is the lookup form of a versioned override dataset. Entries add
// (period, className) pairs the timetable is known to miss for a teacher/day.
type Overrides struct {
	version string
	byKey   map[overrideKey][]models.SlotRef
}

// NewOverrides indexes an override set; a nil set yields an empty table.
func NewOverrides(set *models.OverrideSet) *Overrides {
	o := &Overrides{byKey: make(map[overrideKey][]models.SlotRef)}
	if set == nil {
		return o
	}
	o.version = set.Version
	for _, entry := range set.Entries {
		key := overrideKey{teacher: NormalizeName(entry.TeacherName), day: normalizeDay(entry.Day)}
		if key.teacher == "" || !models.IsWeekday(key.day) {
			continue
		}
		for _, slot := range entry.Periods {
			slot.ClassName = strings.TrimSpace(slot.ClassName)
			if slot.Period <= 0 || slot.ClassName == "" {
				continue
			}
			o.byKey[key] = append(o.byKey[key], slot)
		}
	}
	return o
}

// For returns the override slots of a teacher on a day, checking every
// normalized key the teacher is known by.
func (o *Overrides) For(t *models.Teacher, day string) []models.SlotRef {
	if o == nil || len(o.byKey) == 0 {
		return nil
	}
	day = normalizeDay(day)
	for _, key := range Keys(t) {
		if slots, ok := o.byKey[overrideKey{teacher: key, day: day}]; ok {
			out := make([]models.SlotRef, len(slots))
			copy(out, slots)
			return out
		}
	}
	return nil
}

// Version reports the dataset version.
func (o *Overrides) Version() string {
	if o == nil {
		return ""
	}
	return o.version
}

// Len reports the number of (teacher, day) rows.
func (o *Overrides) Len() int {
	if o == nil {
		return 0
	}
	return len(o.byKey)
}

// VacatedSlot is a slot to cover plus where it came from.
type VacatedSlot struct {
	models.SlotRef
	Source string `json:"source"`
}

const (
	SourceSchedule = "schedule"
	SourceOverride = "override"
)

// MergeSlots deduplicates computed and override slots by (period, className),
// preferring override entries, ordered by period.
func MergeSlots(computed, overrides []models.SlotRef) []VacatedSlot {
	seen := make(map[models.SlotRef]bool, len(computed)+len(overrides))
	merged := make([]VacatedSlot, 0, len(computed)+len(overrides))
	for _, slot := range overrides {
		if seen[slot] {
			continue
		}
		seen[slot] = true
		merged = append(merged, VacatedSlot{SlotRef: slot, Source: SourceOverride})
	}
	for _, slot := range computed {
		if seen[slot] {
			continue
		}
		seen[slot] = true
		merged = append(merged, VacatedSlot{SlotRef: slot, Source: SourceSchedule})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Period == merged[j].Period {
			return merged[i].ClassName < merged[j].ClassName
		}
		return merged[i].Period < merged[j].Period
	})
	return merged
}
