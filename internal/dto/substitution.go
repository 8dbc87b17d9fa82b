package dto

import "github.com/noah-isme/sma-substitute-api/internal/models"

// RunSubstitutionRequest starts a run. Without absentees the recorded
// absences of the date are used.
type RunSubstitutionRequest struct {
	Date      string   `json:"date" validate:"required,datetime=2006-01-02"`
	Absentees []string `json:"absentees" validate:"omitempty,dive,required"`
}

// RecordAbsenceRequest records a teacher as absent on a date.
type RecordAbsenceRequest struct {
	TeacherName string `json:"teacherName" validate:"required"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	PhoneNumber string `json:"phoneNumber"`
}

// AssignmentsResponse is the committed state of a date.
type AssignmentsResponse struct {
	Date        string              `json:"date"`
	Assignments []models.Assignment `json:"assignments"`
	Warnings    []string            `json:"warnings"`
}

// AbsenceResponse echoes a recorded absence with the roster teacher it matched.
type AbsenceResponse struct {
	Date     string          `json:"date"`
	Absentee models.Absentee `json:"absentee"`
	Matched  string          `json:"matchedTeacher,omitempty"`
	Score    float64         `json:"matchScore,omitempty"`
	Warning  string          `json:"warning,omitempty"`
}

// ExportQuery selects the export format.
type ExportQuery struct {
	Format string `form:"format" binding:"omitempty,oneof=csv pdf CSV PDF"`
}
