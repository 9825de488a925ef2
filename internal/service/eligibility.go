package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/defense-jury-api/internal/models"
	appErrors "github.com/noah-isme/defense-jury-api/pkg/errors"
)

// Eligibility is the outcome of filtering a roster against a session.
type Eligibility struct {
	// Candidates are ordered by id.
	Candidates []models.Candidate
	// Supervisors maps candidate id to the supervisor excluded from voting on them.
	Supervisors map[string]string
}

// CandidateIDs returns the eligible ids in order.
func (e Eligibility) CandidateIDs() []string {
	ids := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		ids[i] = c.ID
	}
	return ids
}

// ResolveEligibility keeps the candidates that may defend in session and derives the conflict set.
func ResolveEligibility(session models.DefenseSession, roster []models.Candidate) (*Eligibility, error) {
	result := &Eligibility{Supervisors: make(map[string]string)}
	for _, candidate := range roster {
		if !isEligible(session, candidate) {
			continue
		}
		result.Candidates = append(result.Candidates, candidate)
		result.Supervisors[candidate.ID] = candidate.SupervisorID
	}
	if len(result.Candidates) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyEligiblePool,
			fmt.Sprintf("no candidate is awaiting defense for %s %s %s", session.Level, session.AcademicYear, session.Label))
	}
	sort.SliceStable(result.Candidates, func(i, j int) bool {
		return result.Candidates[i].ID < result.Candidates[j].ID
	})
	return result, nil
}

func isEligible(session models.DefenseSession, candidate models.Candidate) bool {
	if candidate.FolderStatus != models.FolderStatusApprovedAwaitingDefense {
		return false
	}
	if !strings.EqualFold(candidate.Level, session.Level) || candidate.AcademicYear != session.AcademicYear {
		return false
	}
	label := strings.TrimSpace(candidate.SessionLabel)
	return label == "" || strings.EqualFold(label, session.Label)
}
