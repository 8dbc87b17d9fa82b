package models

// Teacher is a canonical identity held by the teacher directory.
type Teacher struct {
	ID            string   `json:"id"`
	CanonicalName string   `json:"canonical_name"`
	Variations    []string `json:"variations"`
	Phone         string   `json:"phone"`
	IsSubstitute  bool     `json:"is_substitute"`
	GradeLevel    int      `json:"grade_level"`
	IsRegular     bool     `json:"is_regular"`
}

// RosterEntry is the persisted shape of a roster row.
type RosterEntry struct {
	ID           string   `db:"id" json:"id,omitempty"`
	Name         string   `db:"name" json:"name"`
	Phone        string   `db:"phone" json:"phone"`
	Variations   []string `db:"-" json:"variations"`
	GradeLevel   *int     `db:"grade_level" json:"gradeLevel,omitempty"`
	IsSubstitute bool     `db:"is_substitute" json:"isSubstitute"`
	IsRegular    bool     `db:"is_regular" json:"isRegular"`
}
