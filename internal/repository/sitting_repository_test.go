package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

func TestSittingRepositoryCreateWritesRoster(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSittingRepository(db)

	candidateID := "cand-1"
	start := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	sitting := &models.Sitting{
		SessionID:    "session-1",
		RoomID:       "room-1",
		StartsAt:     start,
		EndsAt:       start.Add(90 * time.Minute),
		CandidateIDs: []string{"cand-1", "cand-2"},
		Members: []models.SittingMember{
			{EvaluatorID: "ev-1", Role: models.JuryRolePresident},
			{EvaluatorID: "ev-2", Role: models.JuryRoleRapporteur},
			{EvaluatorID: "ev-3", Role: models.JuryRoleExaminer},
			{EvaluatorID: "sup-1", Role: models.JuryRoleSupervisorObserver, CandidateID: &candidateID},
		},
	}

	mock.ExpectExec(`INSERT INTO sittings`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO sitting_candidates`).WithArgs(sqlmock.AnyArg(), "cand-1", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO sitting_candidates`).WithArgs(sqlmock.AnyArg(), "cand-2", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	for range sitting.Members {
		mock.ExpectExec(`INSERT INTO sitting_members`).WillReturnResult(sqlmock.NewResult(0, 1))
	}

	require.NoError(t, repo.Create(context.Background(), nil, sitting))
	assert.NotEmpty(t, sitting.ID)
	assert.Equal(t, models.SittingStatusConfirmed, sitting.Status)
	assert.Equal(t, sitting.ID, sitting.Members[3].SittingID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSittingRepositoryFindByIDForUpdateLoadsRoster(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSittingRepository(db)

	start := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .* FROM sittings WHERE id = \$1 FOR UPDATE`).
		WithArgs("sit-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "batch_id", "room_id", "starts_at", "ends_at", "status", "created_by", "created_at", "updated_at"}).
			AddRow("sit-1", "session-1", nil, "room-1", start, start.Add(45*time.Minute), "CONFIRMED", nil, start, start))
	mock.ExpectQuery(`SELECT sitting_id, candidate_id, position FROM sitting_candidates`).
		WillReturnRows(sqlmock.NewRows([]string{"sitting_id", "candidate_id", "position"}).AddRow("sit-1", "cand-1", 1))
	mock.ExpectQuery(`SELECT sitting_id, evaluator_id, role, candidate_id FROM sitting_members`).
		WillReturnRows(sqlmock.NewRows([]string{"sitting_id", "evaluator_id", "role", "candidate_id"}).
			AddRow("sit-1", "ev-1", "PRESIDENT", nil).
			AddRow("sit-1", "ev-2", "RAPPORTEUR", nil).
			AddRow("sit-1", "ev-3", "EXAMINER", nil).
			AddRow("sit-1", "sup-1", "SUPERVISOR_OBSERVER", "cand-1"))

	sitting, err := repo.FindByIDForUpdate(context.Background(), nil, "sit-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"cand-1"}, sitting.CandidateIDs)
	require.Len(t, sitting.Members, 4)
	assert.Equal(t, models.JuryRoleSupervisorObserver, sitting.Members[3].Role)
	require.NotNil(t, sitting.Members[3].CandidateID)
	assert.Equal(t, "cand-1", *sitting.Members[3].CandidateID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSittingRepositoryEvaluatorBusyIntervals(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSittingRepository(db)

	start := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM sitting_members m\s+JOIN sittings s`).
		WithArgs(sqlmock.AnyArg(), start, start.Add(24*time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"resource_id", "sitting_id", "starts_at", "ends_at"}).
			AddRow("ev-1", "sit-9", start, start.Add(time.Hour)))

	intervals, err := repo.EvaluatorBusyIntervals(context.Background(), nil, []string{"ev-1"}, start, start.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	assert.True(t, intervals[0].Overlaps(start.Add(30*time.Minute), start.Add(2*time.Hour)))
	assert.NoError(t, mock.ExpectationsWereMet())

	empty, err := repo.EvaluatorBusyIntervals(context.Background(), nil, nil, start, start)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSittingRepositoryScheduledCandidateIDs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSittingRepository(db)

	mock.ExpectQuery(`SELECT DISTINCT c.candidate_id FROM sitting_candidates c`).
		WillReturnRows(sqlmock.NewRows([]string{"candidate_id"}).AddRow("cand-2"))

	ids, err := repo.ScheduledCandidateIDs(context.Background(), nil, []string{"cand-1", "cand-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cand-2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
