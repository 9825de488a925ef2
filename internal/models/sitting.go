package models

import (
	"fmt"
	"time"
)

// JuryRole is the part an evaluator plays in a sitting.
type JuryRole string

const (
	JuryRolePresident          JuryRole = "PRESIDENT"
	JuryRoleRapporteur         JuryRole = "RAPPORTEUR"
	JuryRoleExaminer           JuryRole = "EXAMINER"
	JuryRoleSupervisorObserver JuryRole = "SUPERVISOR_OBSERVER"
)

// VotingRoles lists the roles whose approvals finalize a verdict, in signing order.
var VotingRoles = []JuryRole{JuryRolePresident, JuryRoleRapporteur, JuryRoleExaminer}

// IsVoting reports whether the role signs verdicts.
func (r JuryRole) IsVoting() bool {
	switch r {
	case JuryRolePresident, JuryRoleRapporteur, JuryRoleExaminer:
		return true
	case JuryRoleSupervisorObserver:
		return false
	default:
		return false
	}
}

// Validate rejects roles outside the closed set.
func (r JuryRole) Validate() error {
	switch r {
	case JuryRolePresident, JuryRoleRapporteur, JuryRoleExaminer, JuryRoleSupervisorObserver:
		return nil
	default:
		return fmt.Errorf("unknown jury role %q", string(r))
	}
}

// SittingStatus tracks whether a sitting is only proposed or persisted.
type SittingStatus string

const (
	SittingStatusProposed  SittingStatus = "PROPOSED"
	SittingStatusConfirmed SittingStatus = "CONFIRMED"
)

// SittingMember assigns an evaluator to a role. CandidateID is set for supervisor observers.
type SittingMember struct {
	SittingID   string   `db:"sitting_id" json:"-"`
	EvaluatorID string   `db:"evaluator_id" json:"evaluator_id"`
	Role        JuryRole `db:"role" json:"role"`
	CandidateID *string  `db:"candidate_id" json:"candidate_id,omitempty"`
}

// SittingCandidate links a candidate to a sitting in presentation order.
type SittingCandidate struct {
	SittingID   string `db:"sitting_id" json:"-"`
	CandidateID string `db:"candidate_id" json:"candidate_id"`
	Position    int    `db:"position" json:"position"`
}

// Sitting is one defense committee holding a room for a contiguous time range.
type Sitting struct {
	ID           string          `db:"id" json:"id"`
	SessionID    string          `db:"session_id" json:"session_id"`
	BatchID      *string         `db:"batch_id" json:"batch_id,omitempty"`
	RoomID       string          `db:"room_id" json:"room_id"`
	StartsAt     time.Time       `db:"starts_at" json:"starts_at"`
	EndsAt       time.Time       `db:"ends_at" json:"ends_at"`
	Status       SittingStatus   `db:"status" json:"status"`
	CreatedBy    *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	CandidateIDs []string        `db:"-" json:"candidate_ids"`
	Members      []SittingMember `db:"-" json:"members"`
}

// Overlaps reports whether the sitting intersects [start, end).
func (s Sitting) Overlaps(start, end time.Time) bool {
	return s.StartsAt.Before(end) && start.Before(s.EndsAt)
}

// Member returns the membership of evaluatorID, if any.
func (s Sitting) Member(evaluatorID string) (SittingMember, bool) {
	for _, m := range s.Members {
		if m.EvaluatorID == evaluatorID {
			return m, true
		}
	}
	return SittingMember{}, false
}

// MemberIDs returns every evaluator on the sitting, voting or not.
func (s Sitting) MemberIDs() []string {
	ids := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		ids = append(ids, m.EvaluatorID)
	}
	return ids
}

// BusyInterval is a time range during which a room or evaluator is committed.
type BusyInterval struct {
	ResourceID string    `db:"resource_id"`
	SittingID  *string   `db:"sitting_id"`
	StartsAt   time.Time `db:"starts_at"`
	EndsAt     time.Time `db:"ends_at"`
}

// Overlaps reports whether the interval intersects [start, end).
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return b.StartsAt.Before(end) && start.Before(b.EndsAt)
}
