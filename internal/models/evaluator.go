package models

import (
	"strings"
	"time"
)

// AcademicGrade is an evaluator's seniority. Grades are totally ordered by Rank.
type AcademicGrade string

const (
	GradeAssistantLecturer  AcademicGrade = "ASSISTANT_LECTURER"
	GradeLecturer           AcademicGrade = "LECTURER"
	GradeSeniorLecturer     AcademicGrade = "SENIOR_LECTURER"
	GradeAssociateProfessor AcademicGrade = "ASSOCIATE_PROFESSOR"
	GradeProfessor          AcademicGrade = "PROFESSOR"
)

// Rank returns the seniority of g, or 0 for unknown grades.
func (g AcademicGrade) Rank() int {
	switch g {
	case GradeAssistantLecturer:
		return 1
	case GradeLecturer:
		return 2
	case GradeSeniorLecturer:
		return 3
	case GradeAssociateProfessor:
		return 4
	case GradeProfessor:
		return 5
	default:
		return 0
	}
}

// AtLeast reports whether g is as senior as min.
func (g AcademicGrade) AtLeast(min AcademicGrade) bool {
	return g.Rank() > 0 && g.Rank() >= min.Rank()
}

// ParseAcademicGrade normalises raw and reports whether it names a known grade.
func ParseAcademicGrade(raw string) (AcademicGrade, bool) {
	g := AcademicGrade(strings.ToUpper(strings.TrimSpace(raw)))
	return g, g.Rank() > 0
}

// Evaluator is a professor from the evaluator directory.
type Evaluator struct {
	ID                 string        `db:"id" json:"id"`
	Name               string        `db:"name" json:"name"`
	Email              string        `db:"email" json:"email,omitempty"`
	Grade              AcademicGrade `db:"grade" json:"grade"`
	Available          bool          `db:"available" json:"available"`
	CommittedSlotCount int           `db:"committed_slot_count" json:"committed_slot_count"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}
