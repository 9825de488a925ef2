package database

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransactorMock(t *testing.T) (*Transactor, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTransactor(sqlx.NewDb(db, "sqlmock"), nil), mock
}

func TestTransactorCommitsOnSuccess(t *testing.T) {
	tx, mock := newTransactorMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE rooms").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tx.WithinTx(context.Background(), func(ctx context.Context, exec sqlx.ExtContext) error {
		_, err := exec.ExecContext(ctx, "UPDATE rooms SET available = true")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactorRollsBackOnError(t *testing.T) {
	tx, mock := newTransactorMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("overlap detected")
	err := tx.WithinTx(context.Background(), func(ctx context.Context, exec sqlx.ExtContext) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactorRollsBackOnPanic(t *testing.T) {
	tx, mock := newTransactorMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = tx.WithinTx(context.Background(), func(ctx context.Context, exec sqlx.ExtContext) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactorWithoutDatabase(t *testing.T) {
	var tx *Transactor
	err := tx.WithinTx(context.Background(), func(ctx context.Context, exec sqlx.ExtContext) error { return nil })
	assert.Error(t, err)
}
