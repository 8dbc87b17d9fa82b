package models

import "time"

// Assignment maps a substitute onto a vacated period.
type Assignment struct {
	OriginalTeacher string    `db:"original_teacher" json:"originalTeacher"`
	Period          int       `db:"period" json:"period"`
	ClassName       string    `db:"class_name" json:"className"`
	Substitute      string    `db:"substitute" json:"substitute"`
	SubstitutePhone string    `db:"substitute_phone" json:"substitutePhone"`
	Fallback        bool      `db:"fallback" json:"fallback,omitempty"`
	AssignedAt      time.Time `db:"assigned_at" json:"assignedAt"`
}

// SlotKey identifies the assignment within a date.
func (a Assignment) SlotKey() AssignmentKey {
	return AssignmentKey{Period: a.Period, ClassName: a.ClassName}
}

// AssignmentKey is the merge key for committed assignments of a date.
type AssignmentKey struct {
	Period    int
	ClassName string
}

// CommittedSet is the persisted output of all runs for a date.
type CommittedSet struct {
	Assignments []Assignment `json:"assignments"`
	Warnings    []string     `json:"warnings"`
}

// Merge returns a new set where incoming assignments supersede existing ones
// sharing the same (period, className).
func (c *CommittedSet) Merge(incoming []Assignment, warnings []string) *CommittedSet {
	merged := &CommittedSet{}
	index := make(map[AssignmentKey]int)
	if c != nil {
		for _, a := range c.Assignments {
			index[a.SlotKey()] = len(merged.Assignments)
			merged.Assignments = append(merged.Assignments, a)
		}
		merged.Warnings = append(merged.Warnings, c.Warnings...)
	}
	for _, a := range incoming {
		if pos, ok := index[a.SlotKey()]; ok {
			merged.Assignments[pos] = a
			continue
		}
		index[a.SlotKey()] = len(merged.Assignments)
		merged.Assignments = append(merged.Assignments, a)
	}
	seen := make(map[string]bool, len(merged.Warnings))
	for _, w := range merged.Warnings {
		seen[w] = true
	}
	for _, w := range warnings {
		if !seen[w] {
			merged.Warnings = append(merged.Warnings, w)
			seen[w] = true
		}
	}
	return merged
}

// Supersede merges incoming assignments like Merge and replaces the warnings
// with those of the latest run.
func (c *CommittedSet) Supersede(incoming []Assignment, warnings []string) *CommittedSet {
	next := c.Merge(incoming, nil)
	next.Warnings = (*CommittedSet)(nil).Merge(nil, warnings).Warnings
	return next
}
