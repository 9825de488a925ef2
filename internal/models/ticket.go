package models

import "time"

// TicketPriority orders revision work items.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityNormal TicketPriority = "NORMAL"
	TicketPriorityHigh   TicketPriority = "HIGH"
)

// RevisionTicket asks a supervisor to follow up on corrections requested by a jury.
type RevisionTicket struct {
	ID          string         `db:"id" json:"id"`
	VerdictID   string         `db:"verdict_id" json:"verdict_id"`
	CandidateID string         `db:"candidate_id" json:"candidate_id"`
	AssigneeID  string         `db:"assignee_id" json:"assignee_id"`
	Text        string         `db:"text" json:"text"`
	Priority    TicketPriority `db:"priority" json:"priority"`
	Status      string         `db:"status" json:"status"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// LibrarySubmission records the hand-over of a memoir to the library.
type LibrarySubmission struct {
	ID          string    `db:"id" json:"id"`
	VerdictID   string    `db:"verdict_id" json:"verdict_id"`
	CandidateID string    `db:"candidate_id" json:"candidate_id"`
	DocumentRef string    `db:"document_ref" json:"document_ref"`
	Active      bool      `db:"active" json:"active"`
	ExternalID  *string   `db:"external_id" json:"external_id,omitempty"`
	Status      string    `db:"status" json:"status"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
}
