package substitution

import (
	"fmt"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// Validate checks a date's full assignment set: no substitute holds a period
// twice, nobody exceeds the workload cap, nobody covers a class above their
// grade, and every fallback-band assignment is flagged. It returns one message
// per violation.
func Validate(assignments []models.Assignment, dir *Directory, workloadCap int, grades SelectorConfig) []string {
	if workloadCap <= 0 {
		workloadCap = DefaultWorkloadCap
	}

	var violations []string
	load := make(map[string]int)
	held := make(map[string]map[int]string)
	for _, a := range assignments {
		key := a.SubstitutePhone
		if key == "" {
			key = NormalizeName(a.Substitute)
		}

		if held[key] == nil {
			held[key] = make(map[int]string)
		}
		if other, dup := held[key][a.Period]; dup {
			violations = append(violations, fmt.Sprintf("%s covers period %d twice (%s and %s)", a.Substitute, a.Period, other, a.ClassName))
		} else {
			held[key][a.Period] = a.ClassName
		}

		load[key]++
		if load[key] == workloadCap+1 {
			violations = append(violations, fmt.Sprintf("%s exceeds the daily cap of %d periods", a.Substitute, workloadCap))
		}

		sub := substituteOf(a, dir)
		if sub == nil {
			continue
		}
		target := TargetGrade(a.ClassName)
		switch grades.Classify(sub.GradeLevel, target) {
		case FitIncompatible:
			violations = append(violations, fmt.Sprintf("%s (grade %d) is below the grade of %s", a.Substitute, sub.GradeLevel, a.ClassName))
		case FitFallback:
			if !a.Fallback {
				violations = append(violations, fmt.Sprintf("%s (grade %d) covers %s without a fallback flag", a.Substitute, sub.GradeLevel, a.ClassName))
			}
		}
	}
	return violations
}
