package models

import "time"

// VerdictStatus is the consensus state of a defense record.
type VerdictStatus string

const (
	VerdictStatusDraft     VerdictStatus = "DRAFT"
	VerdictStatusPending   VerdictStatus = "PENDING"
	VerdictStatusFinalized VerdictStatus = "FINALIZED"
)

// Verdict is the defense record (PV) of a sitting.
type Verdict struct {
	ID            string            `db:"id" json:"id"`
	SittingID     string            `db:"sitting_id" json:"sitting_id"`
	FinalScore    float64           `db:"final_score" json:"final_score"`
	Mention       string            `db:"mention" json:"mention"`
	Observations  string            `db:"observations" json:"observations"`
	Appreciations string            `db:"appreciations" json:"appreciations"`
	RevisionText  *string           `db:"revision_request_text" json:"revision_request_text,omitempty"`
	Status        VerdictStatus     `db:"status" json:"status"`
	Seal          *string           `db:"seal" json:"seal,omitempty"`
	ArchiveKey    *string           `db:"archive_key" json:"-"`
	CreatedBy     string            `db:"created_by" json:"created_by"`
	FinalizedAt   *time.Time        `db:"finalized_at" json:"finalized_at,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
	Approvals     []VerdictApproval `db:"-" json:"approvals"`
}

// HasRevision reports whether corrections were requested.
func (v Verdict) HasRevision() bool {
	return v.RevisionText != nil && *v.RevisionText != ""
}

// ApprovedBy reports whether evaluatorID already signed.
func (v Verdict) ApprovedBy(evaluatorID string) bool {
	for _, a := range v.Approvals {
		if a.EvaluatorID == evaluatorID {
			return true
		}
	}
	return false
}

// CoversVotingRoles reports whether every voting role has signed.
func (v Verdict) CoversVotingRoles() bool {
	signed := make(map[JuryRole]bool, len(v.Approvals))
	for _, a := range v.Approvals {
		signed[a.Role] = true
	}
	for _, role := range VotingRoles {
		if !signed[role] {
			return false
		}
	}
	return true
}

// VerdictApproval is one evaluator's sign-off.
type VerdictApproval struct {
	VerdictID   string    `db:"verdict_id" json:"-"`
	EvaluatorID string    `db:"evaluator_id" json:"evaluator_id"`
	Role        JuryRole  `db:"role" json:"role"`
	ApprovedAt  time.Time `db:"approved_at" json:"approved_at"`
}
