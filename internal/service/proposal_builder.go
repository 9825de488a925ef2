package service

import (
	"time"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

// proposalSnapshot is everything a generation run reads. Building proposals from
// it performs no I/O, so identical snapshots produce identical batches.
type proposalSnapshot struct {
	Eligible      *Eligibility
	Scheduled     map[string]struct{}
	Evaluators    []models.Evaluator
	Rooms         []models.Room
	RoomBusy      []models.BusyInterval
	EvaluatorBusy []models.BusyInterval
	Dates         []time.Time
}

// buildProposals runs composition, placement and validation over snap. Candidates
// already holding a confirmed sitting are reported, never silently skipped.
func buildProposals(policy SchedulingPolicy, snap proposalSnapshot) ([]models.ProposedSitting, error) {
	var pending, scheduled []models.Candidate
	for _, candidate := range snap.Eligible.Candidates {
		if _, ok := snap.Scheduled[candidate.ID]; ok {
			scheduled = append(scheduled, candidate)
			continue
		}
		pending = append(pending, candidate)
	}

	composer := newCommitteeComposer(snap.Evaluators, policy.PresidentMinGrade)
	allocator := newRoomTimeAllocator(policy, snap.Dates, snap.Rooms, newOccupancy(snap.RoomBusy, snap.EvaluatorBusy))

	sittings := make([]models.ProposedSitting, 0, len(pending)/max(policy.MaxGroupSize, 1)+1)
	for _, group := range groupCandidates(pending, policy.MaxGroupSize) {
		proposed := models.ProposedSitting{
			Index:        len(sittings),
			Program:      group.Program,
			CandidateIDs: group.ids(),
		}
		members, ok := composer.Compose(group)
		if !ok {
			proposed.Reason = models.ReasonInsufficientEvaluators
			sittings = append(sittings, proposed)
			continue
		}
		proposed.Members = members

		slot, reason := allocator.Allocate(members, len(group.Candidates))
		if reason != "" {
			proposed.Reason = reason
			sittings = append(sittings, proposed)
			continue
		}
		composer.commit(members)
		allocator.commit(slot, members)

		start, end := slot.StartsAt, slot.EndsAt
		proposed.RoomID = slot.RoomID
		proposed.StartsAt = &start
		proposed.EndsAt = &end
		sittings = append(sittings, proposed)
	}

	for _, group := range groupCandidates(scheduled, policy.MaxGroupSize) {
		sittings = append(sittings, models.ProposedSitting{
			Index:        len(sittings),
			Program:      group.Program,
			CandidateIDs: group.ids(),
			Reason:       models.ReasonCandidateAlreadyScheduled,
		})
	}

	grades := make(map[string]models.AcademicGrade, len(snap.Evaluators))
	for _, e := range snap.Evaluators {
		grades[e.ID] = e.Grade
	}
	if err := validateProposals(policy, sittings, snap.Eligible, grades); err != nil {
		return nil, err
	}
	return sittings, nil
}
