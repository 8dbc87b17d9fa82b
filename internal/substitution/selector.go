package substitution

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// SelectorConfig bounds the fallback band: a teacher of grade >= MinFallbackGrade
// covering a class of grade <= MaxFallbackTarget is a last resort.
type SelectorConfig struct {
	MaxFallbackTarget int
	MinFallbackGrade  int
}

func (c SelectorConfig) withDefaults() SelectorConfig {
	if c.MaxFallbackTarget <= 0 {
		c.MaxFallbackTarget = 8
	}
	if c.MinFallbackGrade <= 0 {
		c.MinFallbackGrade = 9
	}
	return c
}

// Fit is how a substitute's grade relates to a class.
type Fit int

const (
	FitIncompatible Fit = iota
	FitPrimary
	FitFallback
)

// Classify places a substitute grade against a target grade. Teachers below
// the target never qualify; senior teachers covering junior classes only
// qualify as fallback.
func (c SelectorConfig) Classify(gradeLevel, targetGrade int) Fit {
	c = c.withDefaults()
	if gradeLevel < targetGrade {
		return FitIncompatible
	}
	if targetGrade <= c.MaxFallbackTarget && gradeLevel >= c.MinFallbackGrade {
		return FitFallback
	}
	return FitPrimary
}

// Selection is the outcome of filtering a pool for one slot.
type Selection struct {
	Slot        models.Slot
	TargetGrade int
	Primary     []*models.Teacher
	Fallback    []*models.Teacher
	Warnings    []string
	Rejected    map[string]string
}

// Empty reports whether no candidate survived.
func (s Selection) Empty() bool {
	return len(s.Primary) == 0 && len(s.Fallback) == 0
}

// Selector filters and ranks substitutes for a slot.
type Selector struct {
	tracker *Tracker
	cfg     SelectorConfig
}

// NewSelector builds a selector reading availability from tracker.
func NewSelector(tracker *Tracker, cfg SelectorConfig) *Selector {
	return &Selector{tracker: tracker, cfg: cfg.withDefaults()}
}

// Select partitions pool into grade-compatible and fallback candidates that
// are available for the slot. Fallback candidates are only admitted, with one
// warning each, when no compatible candidate is available.
func (s *Selector) Select(slot models.Slot, pool []*models.Teacher) Selection {
	sel := Selection{
		Slot:        slot,
		TargetGrade: TargetGrade(slot.ClassName),
		Rejected:    make(map[string]string),
	}

	var senior []*models.Teacher
	for _, t := range pool {
		if reason := s.tracker.Check(t, slot.Day, slot.Period); reason != "" {
			sel.Rejected[t.CanonicalName] = reason
			continue
		}
		switch s.cfg.Classify(t.GradeLevel, sel.TargetGrade) {
		case FitPrimary:
			sel.Primary = append(sel.Primary, t)
		case FitFallback:
			senior = append(senior, t)
		default:
			sel.Rejected[t.CanonicalName] = fmt.Sprintf("grade %d below %d", t.GradeLevel, sel.TargetGrade)
		}
	}

	if len(sel.Primary) > 0 {
		for _, t := range senior {
			sel.Rejected[t.CanonicalName] = "kept in reserve"
		}
		return sel
	}

	for _, t := range senior {
		sel.Fallback = append(sel.Fallback, t)
		sel.Warnings = append(sel.Warnings, fmt.Sprintf("Fallback candidate %s (grade %d) admitted for %s period %d (grade %d)", t.CanonicalName, t.GradeLevel, slot.ClassName, slot.Period, sel.TargetGrade))
	}
	return sel
}

// Pick returns the least loaded candidate, primary list first. Ties keep pool
// order. The boolean reports whether the winner came from the fallback list.
func (s *Selector) Pick(sel Selection) (*models.Teacher, bool) {
	if t := s.leastLoaded(sel.Primary); t != nil {
		return t, false
	}
	if t := s.leastLoaded(sel.Fallback); t != nil {
		return t, true
	}
	return nil, false
}

func (s *Selector) leastLoaded(candidates []*models.Teacher) *models.Teacher {
	var best *models.Teacher
	for _, t := range candidates {
		if best == nil || s.tracker.Workload(t) < s.tracker.Workload(best) {
			best = t
		}
	}
	return best
}

// TargetGrade extracts the leading number of a class name: "10A" is grade 10.
// Names without a leading number are grade 0.
func TargetGrade(className string) int {
	grade := 0
	for _, r := range strings.TrimSpace(className) {
		if r < '0' || r > '9' {
			break
		}
		grade = grade*10 + int(r-'0')
	}
	return grade
}
