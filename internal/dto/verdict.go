package dto

import "time"

// CreateVerdictRequest is submitted by the sitting's president.
type CreateVerdictRequest struct {
	FinalScore          *float64 `json:"finalScore" validate:"required,gte=0,lte=20"`
	Observations        string   `json:"observations" validate:"required,max=4000"`
	Appreciations       string   `json:"appreciations" validate:"required,max=4000"`
	RevisionRequestText *string  `json:"revisionRequestText" validate:"omitempty,max=4000"`
	Draft               bool     `json:"draft"`
}

// UpdateVerdictRequest replaces the content of a DRAFT or PENDING verdict.
type UpdateVerdictRequest struct {
	FinalScore          *float64 `json:"finalScore" validate:"required,gte=0,lte=20"`
	Observations        string   `json:"observations" validate:"required,max=4000"`
	Appreciations       string   `json:"appreciations" validate:"required,max=4000"`
	RevisionRequestText *string  `json:"revisionRequestText" validate:"omitempty,max=4000"`
}

// VerdictDocumentResponse points at the archived PV.
type VerdictDocumentResponse struct {
	VerdictID string    `json:"verdictId"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
