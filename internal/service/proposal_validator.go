package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/defense-jury-api/internal/models"
	appErrors "github.com/noah-isme/defense-jury-api/pkg/errors"
)

// sittingShape is the part of a sitting that structural rules apply to.
type sittingShape struct {
	CandidateIDs []string
	Members      []models.SittingMember
	StartsAt     time.Time
	EndsAt       time.Time
}

// checkSittingInvariants enforces committee composition, conflict of interest,
// duration and working hours. supervisors maps every candidate of the sitting to
// their supervisor. grades is consulted for the president when non-nil.
func checkSittingInvariants(policy SchedulingPolicy, shape sittingShape, supervisors map[string]string, grades map[string]models.AcademicGrade) error {
	violation := func(format string, args ...interface{}) error {
		return appErrors.Clone(appErrors.ErrInvariantViolation, fmt.Sprintf(format, args...))
	}

	if len(shape.CandidateIDs) == 0 {
		return violation("a sitting needs at least one candidate")
	}
	inSitting := make(map[string]struct{}, len(shape.CandidateIDs))
	expectedObservers := make(map[string]struct{})
	for _, id := range shape.CandidateIDs {
		if _, dup := inSitting[id]; dup {
			return violation("candidate %s appears twice", id)
		}
		inSitting[id] = struct{}{}
		if sup := supervisors[id]; sup != "" {
			expectedObservers[sup] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(shape.Members))
	roleCount := make(map[models.JuryRole]int, len(models.VotingRoles))
	observers := make(map[string]struct{})
	var presidentID string
	for _, m := range shape.Members {
		if err := m.Role.Validate(); err != nil {
			return violation("%v", err)
		}
		if _, dup := seen[m.EvaluatorID]; dup {
			return violation("evaluator %s holds more than one seat", m.EvaluatorID)
		}
		seen[m.EvaluatorID] = struct{}{}

		if !m.Role.IsVoting() {
			if _, expected := expectedObservers[m.EvaluatorID]; !expected {
				return violation("evaluator %s supervises no candidate of this sitting", m.EvaluatorID)
			}
			if m.CandidateID == nil || supervisors[*m.CandidateID] != m.EvaluatorID {
				return violation("observer %s must reference one of their candidates", m.EvaluatorID)
			}
			if _, ok := inSitting[*m.CandidateID]; !ok {
				return violation("observer %s references a candidate outside the sitting", m.EvaluatorID)
			}
			observers[m.EvaluatorID] = struct{}{}
			continue
		}

		if _, conflict := expectedObservers[m.EvaluatorID]; conflict {
			return violation("evaluator %s supervises a candidate of this sitting and cannot vote", m.EvaluatorID)
		}
		roleCount[m.Role]++
		if m.Role == models.JuryRolePresident {
			presidentID = m.EvaluatorID
		}
	}
	for _, role := range models.VotingRoles {
		if roleCount[role] != 1 {
			return violation("a sitting needs exactly one %s, found %d", role, roleCount[role])
		}
	}
	if len(observers) != len(expectedObservers) {
		return violation("every supervisor of the sitting's candidates must attend as observer")
	}

	if grades != nil {
		if grade := grades[presidentID]; !grade.AtLeast(policy.PresidentMinGrade) {
			return violation("president %s must hold grade %s or above", presidentID, policy.PresidentMinGrade)
		}
	}

	if want := policy.SittingLength(len(shape.CandidateIDs)); shape.EndsAt.Sub(shape.StartsAt) != want {
		return violation("sitting must last %s for %d candidates", want, len(shape.CandidateIDs))
	}
	if !policy.WithinWorkday(shape.StartsAt, shape.EndsAt) {
		return violation("sitting must fit within working hours")
	}
	return nil
}

// validateProposals finalises the feasibility flags of a batch and asserts that
// every eligible candidate appears exactly once and that valid sittings are well formed.
func validateProposals(policy SchedulingPolicy, sittings []models.ProposedSitting, eligible *Eligibility, grades map[string]models.AcademicGrade) error {
	placed := make(map[string]int, len(eligible.Candidates))
	for i := range sittings {
		sitting := &sittings[i]
		for _, id := range sitting.CandidateIDs {
			placed[id]++
		}
		if sitting.Reason != "" {
			sitting.Valid = false
			sitting.Message = infeasibilityMessage(sitting.Reason, len(sitting.CandidateIDs))
			continue
		}
		sitting.Valid = true
		sitting.Message = ""
		if sitting.StartsAt == nil || sitting.EndsAt == nil || sitting.RoomID == "" {
			return fmt.Errorf("sitting %d is valid but has no placement", sitting.Index)
		}
		shape := sittingShape{CandidateIDs: sitting.CandidateIDs, Members: sitting.Members, StartsAt: *sitting.StartsAt, EndsAt: *sitting.EndsAt}
		if err := checkSittingInvariants(policy, shape, eligible.Supervisors, grades); err != nil {
			return fmt.Errorf("sitting %d: %w", sitting.Index, err)
		}
	}
	for _, candidate := range eligible.Candidates {
		if placed[candidate.ID] != 1 {
			return fmt.Errorf("candidate %s placed %d times", candidate.ID, placed[candidate.ID])
		}
	}
	if len(placed) != len(eligible.Candidates) {
		return fmt.Errorf("batch references candidates outside the eligible pool")
	}
	return nil
}

func infeasibilityMessage(reason models.InfeasibilityReason, candidates int) string {
	switch reason {
	case models.ReasonInsufficientEvaluators:
		return fmt.Sprintf("fewer than three conflict-free evaluators, or none eligible to preside, for %d candidate(s)", candidates)
	case models.ReasonNoRoomAvailable:
		return "no available room is large enough for this sitting"
	case models.ReasonTimeWindowExhausted:
		return "no common free window for the committee and a fitting room on the requested dates"
	case models.ReasonCandidateAlreadyScheduled:
		return "candidate already belongs to a confirmed sitting"
	default:
		return string(reason)
	}
}
