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

func TestDefenseSessionRepositoryLockForUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDefenseSessionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "academic_year", "label", "level", "active", "created_at", "updated_at"}).
		AddRow("session-1", "2023-2024", "JUNE", "LICENCE", true, now, now)
	mock.ExpectQuery(`SELECT .* FROM defense_sessions WHERE id = \$1 FOR UPDATE`).
		WithArgs("session-1").
		WillReturnRows(rows)

	session, err := repo.LockForUpdate(context.Background(), nil, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "JUNE", session.Label)
	assert.True(t, session.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseSessionRepositoryActivate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDefenseSessionRepository(db)

	mock.ExpectExec(`UPDATE defense_sessions SET active = FALSE`).
		WithArgs(sqlmock.AnyArg(), "LICENCE", "session-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE defense_sessions SET active = TRUE`).
		WithArgs(sqlmock.AnyArg(), "session-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Activate(context.Background(), nil, "session-2", "LICENCE"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefenseSessionRepositoryActivateMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDefenseSessionRepository(db)

	mock.ExpectExec(`UPDATE defense_sessions SET active = FALSE`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE defense_sessions SET active = TRUE`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Activate(context.Background(), nil, "missing", "LICENCE")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDefenseSessionRepositoryListFilters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDefenseSessionRepository(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM defense_sessions WHERE level = \$1 AND active = TRUE ORDER BY`).
		WithArgs("MASTER").
		WillReturnRows(sqlmock.NewRows([]string{"id", "academic_year", "label", "level", "active", "created_at", "updated_at"}).
			AddRow("session-3", "2023-2024", "SEPTEMBER", "MASTER", true, now, now))

	sessions, err := repo.List(context.Background(), models.DefenseSessionFilter{Level: "MASTER", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "session-3", sessions[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
