package dto

import (
	"time"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

// GenerateProposalsRequest asks for jury proposals covering a session's eligible candidates.
type GenerateProposalsRequest struct {
	SessionID    string   `json:"sessionId" validate:"required"`
	Dates        []string `json:"dates" validate:"required,min=1,max=31,dive,datetime=2006-01-02"`
	MaxGroupSize int      `json:"maxGroupSize" validate:"omitempty,min=1,max=6"`
}

// ConfirmProposalsRequest persists valid sittings of a batch. An empty Indexes confirms every valid sitting.
type ConfirmProposalsRequest struct {
	Indexes []int `json:"indexes" validate:"omitempty,dive,min=0"`
}

// ConfirmProposalsResponse reports what was persisted.
type ConfirmProposalsResponse struct {
	BatchID   string                   `json:"batchId"`
	Confirmed []models.Sitting         `json:"confirmed"`
	Skipped   []models.ProposedSitting `json:"skipped"`
}

// SwapSittingsRequest exchanges the time slots of two confirmed sittings.
type SwapSittingsRequest struct {
	SittingA string `json:"sittingA" validate:"required"`
	SittingB string `json:"sittingB" validate:"required,nefield=SittingA"`
}

// SwapSittingsResponse returns both sittings after the swap.
type SwapSittingsResponse struct {
	SittingA models.Sitting `json:"sittingA"`
	SittingB models.Sitting `json:"sittingB"`
}

// MemberChange adds an evaluator to a sitting with a voting role.
type MemberChange struct {
	EvaluatorID string          `json:"evaluatorId" validate:"required"`
	Role        models.JuryRole `json:"role" validate:"required,oneof=PRESIDENT RAPPORTEUR EXAMINER"`
}

// EditSittingMembersRequest is a membership diff applied atomically. Supervisor observers
// are derived from the resulting candidate set and cannot be edited directly.
type EditSittingMembersRequest struct {
	AddMembers         []MemberChange `json:"addMembers" validate:"omitempty,dive"`
	RemoveEvaluatorIDs []string       `json:"removeEvaluatorIds" validate:"omitempty,dive,required"`
	AddCandidateIDs    []string       `json:"addCandidateIds" validate:"omitempty,dive,required"`
	RemoveCandidateIDs []string       `json:"removeCandidateIds" validate:"omitempty,dive,required"`
}

// Empty reports whether the diff changes nothing.
func (r EditSittingMembersRequest) Empty() bool {
	return len(r.AddMembers) == 0 && len(r.RemoveEvaluatorIDs) == 0 && len(r.AddCandidateIDs) == 0 && len(r.RemoveCandidateIDs) == 0
}

// SittingExportQuery selects the schedule export format.
type SittingExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// SittingDetail enriches a sitting with directory data for display.
type SittingDetail struct {
	models.Sitting
	RoomName   string             `json:"roomName"`
	Candidates []models.Candidate `json:"candidates"`
	Evaluators []models.Evaluator `json:"evaluators"`
	Verdict    *VerdictSummary    `json:"verdict,omitempty"`
}

// VerdictSummary is the short form of a verdict embedded in sitting views.
type VerdictSummary struct {
	ID          string               `json:"id"`
	Status      models.VerdictStatus `json:"status"`
	Mention     string               `json:"mention"`
	FinalizedAt *time.Time           `json:"finalizedAt,omitempty"`
}
