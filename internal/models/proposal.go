package models

import "time"

// InfeasibilityReason explains why a proposed sitting cannot be confirmed.
type InfeasibilityReason string

const (
	ReasonInsufficientEvaluators    InfeasibilityReason = "INSUFFICIENT_EVALUATORS"
	ReasonNoRoomAvailable           InfeasibilityReason = "NO_ROOM_AVAILABLE"
	ReasonTimeWindowExhausted       InfeasibilityReason = "TIME_WINDOW_EXHAUSTED"
	ReasonCandidateAlreadyScheduled InfeasibilityReason = "CANDIDATE_ALREADY_SCHEDULED"
)

// ProposedSitting is one entry of a proposal batch: either a complete assignment or
// an unresolved group of candidates with the reason it could not be placed.
type ProposedSitting struct {
	Index        int                 `json:"index"`
	Program      string              `json:"program"`
	CandidateIDs []string            `json:"candidate_ids"`
	Members      []SittingMember     `json:"members,omitempty"`
	RoomID       string              `json:"room_id,omitempty"`
	StartsAt     *time.Time          `json:"starts_at,omitempty"`
	EndsAt       *time.Time          `json:"ends_at,omitempty"`
	Valid        bool                `json:"valid"`
	Reason       InfeasibilityReason `json:"reason,omitempty"`
	Message      string              `json:"message,omitempty"`
}

// ProposalBatch is the reviewable result of one generation run.
type ProposalBatch struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"session_id"`
	Dates       []string          `json:"dates"`
	Sittings    []ProposedSitting `json:"sittings"`
	GeneratedBy string            `json:"generated_by,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// ValidCount returns how many sittings are ready to confirm.
func (b ProposalBatch) ValidCount() int {
	n := 0
	for _, s := range b.Sittings {
		if s.Valid {
			n++
		}
	}
	return n
}
