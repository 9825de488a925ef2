package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJuryRoleIsVoting(t *testing.T) {
	for _, role := range VotingRoles {
		assert.True(t, role.IsVoting(), role)
		assert.NoError(t, role.Validate())
	}
	assert.False(t, JuryRoleSupervisorObserver.IsVoting())
	assert.NoError(t, JuryRoleSupervisorObserver.Validate())
	assert.Error(t, JuryRole("CHAIR").Validate())
}

func TestAcademicGradeOrdering(t *testing.T) {
	assert.True(t, GradeProfessor.AtLeast(GradeSeniorLecturer))
	assert.True(t, GradeSeniorLecturer.AtLeast(GradeSeniorLecturer))
	assert.False(t, GradeLecturer.AtLeast(GradeSeniorLecturer))
	assert.False(t, AcademicGrade("EMERITUS").AtLeast(GradeAssistantLecturer))

	g, ok := ParseAcademicGrade(" associate_professor ")
	assert.True(t, ok)
	assert.Equal(t, GradeAssociateProfessor, g)
}

func TestVerdictCoversVotingRoles(t *testing.T) {
	v := Verdict{Approvals: []VerdictApproval{
		{EvaluatorID: "p", Role: JuryRolePresident},
		{EvaluatorID: "r", Role: JuryRoleRapporteur},
	}}
	assert.False(t, v.CoversVotingRoles())
	assert.True(t, v.ApprovedBy("r"))

	v.Approvals = append(v.Approvals, VerdictApproval{EvaluatorID: "e", Role: JuryRoleExaminer})
	assert.True(t, v.CoversVotingRoles())
}

func TestSittingOverlaps(t *testing.T) {
	base := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	s := Sitting{StartsAt: base, EndsAt: base.Add(90 * time.Minute)}

	assert.True(t, s.Overlaps(base.Add(45*time.Minute), base.Add(2*time.Hour)))
	assert.False(t, s.Overlaps(base.Add(90*time.Minute), base.Add(3*time.Hour)))
	assert.False(t, s.Overlaps(base.Add(-time.Hour), base))
}
