package models

import "time"

// FolderStatus tracks a candidate's defense folder.
type FolderStatus string

const (
	FolderStatusSubmitted               FolderStatus = "SUBMITTED"
	FolderStatusApprovedAwaitingDefense FolderStatus = "APPROVED_AWAITING_DEFENSE"
	FolderStatusDefended                FolderStatus = "DEFENDED"
	FolderStatusRejected                FolderStatus = "REJECTED"
)

// Candidate is a student presenting a thesis. SupervisorID references the evaluator directory.
// Candidates sharing a PairID wrote one memoir together and defend in the same sitting.
type Candidate struct {
	ID           string       `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	Email        string       `db:"email" json:"email,omitempty"`
	Program      string       `db:"program" json:"program"`
	Level        string       `db:"level" json:"level"`
	AcademicYear string       `db:"academic_year" json:"academic_year"`
	SessionLabel string       `db:"session_label" json:"session_label,omitempty"`
	SupervisorID string       `db:"supervisor_id" json:"supervisor_id"`
	FolderStatus FolderStatus `db:"folder_status" json:"folder_status"`
	PairID       *string      `db:"pair_id" json:"pair_id,omitempty"`
	DocumentID   *string      `db:"document_id" json:"document_id,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// DocumentStatus tracks the validation state of a memoir.
type DocumentStatus string

const (
	DocumentStatusSubmitted         DocumentStatus = "SUBMITTED"
	DocumentStatusPendingValidation DocumentStatus = "PENDING_VALIDATION"
	DocumentStatusValidated         DocumentStatus = "VALIDATED"
	DocumentStatusSentToLibrary     DocumentStatus = "SENT_TO_LIBRARY"
)

// MemoirDocument is the written thesis. Paired candidates reference the same document.
type MemoirDocument struct {
	ID        string         `db:"id" json:"id"`
	Ref       string         `db:"ref" json:"ref"`
	Title     string         `db:"title" json:"title"`
	Status    DocumentStatus `db:"status" json:"status"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}
