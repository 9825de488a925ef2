package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

func TestEvaluatorRepositoryIncrementLoad(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEvaluatorRepository(db)

	mock.ExpectExec(`UPDATE evaluators SET committed_slot_count = GREATEST\(committed_slot_count \+ \$1, 0\)`).
		WithArgs(1, sqlmock.AnyArg(), "ev-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE evaluators`).
		WithArgs(-1, sqlmock.AnyArg(), "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.IncrementLoad(context.Background(), nil, "ev-1", 1))
	assert.ErrorIs(t, repo.IncrementLoad(context.Background(), nil, "ghost", -1), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluatorRepositoryListAvailable(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEvaluatorRepository(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM evaluators WHERE available = TRUE ORDER BY name ASC, id ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "grade", "available", "committed_slot_count", "created_at", "updated_at"}).
			AddRow("ev-1", "Ada", "ada@univ.test", "PROFESSOR", true, 2, now, now))

	evaluators, err := repo.ListAvailable(context.Background())
	require.NoError(t, err)
	require.Len(t, evaluators, 1)
	assert.Equal(t, models.GradeProfessor, evaluators[0].Grade)
	assert.Equal(t, 2, evaluators[0].CommittedSlotCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepositoryBusyIntervalsAndReserve(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepository(db)

	from := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	mock.ExpectQuery(`SELECT room_id AS resource_id, sitting_id, starts_at, ends_at\s+FROM room_reservations`).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"resource_id", "sitting_id", "starts_at", "ends_at"}).
			AddRow("room-1", nil, from.Add(8*time.Hour), from.Add(10*time.Hour)))
	mock.ExpectExec(`INSERT INTO room_reservations`).WillReturnResult(sqlmock.NewResult(0, 1))

	intervals, err := repo.BusyIntervals(context.Background(), nil, from, to)
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	assert.Nil(t, intervals[0].SittingID)

	sittingID := "sit-1"
	res := &models.RoomReservation{RoomID: "room-1", SittingID: &sittingID, StartsAt: from.Add(10 * time.Hour), EndsAt: from.Add(11 * time.Hour), Purpose: "defense"}
	require.NoError(t, repo.Reserve(context.Background(), nil, res))
	assert.NotEmpty(t, res.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepositoryLockBookings(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(\$1\)`).
		WithArgs(BookingLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.LockBookings(context.Background(), tx))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevisionTicketRepositoryCreateIgnoresDuplicates(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRevisionTicketRepository(db)

	mock.ExpectExec(`(?s)INSERT INTO revision_tickets.*ON CONFLICT \(verdict_id, candidate_id\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO revision_tickets`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ticket := models.RevisionTicket{VerdictID: "v-1", CandidateID: "cand-1", AssigneeID: "sup-1", Text: "fix chapter 2", Priority: models.TicketPriorityHigh}
	first := ticket
	created, err := repo.Create(context.Background(), &first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "OPEN", first.Status)

	second := ticket
	created, err = repo.Create(context.Background(), &second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateRepositoryFindByIDsEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCandidateRepository(db)

	candidates, err := repo.FindByIDs(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.NoError(t, mock.ExpectationsWereMet())
}
