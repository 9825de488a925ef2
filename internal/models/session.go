package models

import "time"

// DefenseSession groups the defenses of one level for an academic year (e.g. "JUNE" licence 2023-2024).
// At most one session per level is active.
type DefenseSession struct {
	ID           string    `db:"id" json:"id"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	Label        string    `db:"label" json:"label"`
	Level        string    `db:"level" json:"level"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DefenseSessionFilter narrows session listings.
type DefenseSessionFilter struct {
	Level        string
	AcademicYear string
	ActiveOnly   bool
}
