package dto

// CreateSessionRequest opens a defense session.
type CreateSessionRequest struct {
	AcademicYear string `json:"academicYear" validate:"required,max=16"`
	Label        string `json:"label" validate:"required,max=64"`
	Level        string `json:"level" validate:"required,max=32"`
	Activate     bool   `json:"activate"`
}

// SessionQuery filters session listings.
type SessionQuery struct {
	Level        string `form:"level"`
	AcademicYear string `form:"academicYear"`
	Active       bool   `form:"active"`
}
