package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TxFunc runs inside a transaction. Repositories accept the executor so their
// statements join the surrounding transaction.
type TxFunc func(ctx context.Context, exec sqlx.ExtContext) error

type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// Transactor commits fn's work atomically: any error or panic rolls everything back.
type Transactor struct {
	db   txBeginner
	opts *sql.TxOptions
}

// NewTransactor wraps a database handle. opts may be nil for driver defaults.
func NewTransactor(db txBeginner, opts *sql.TxOptions) *Transactor {
	return &Transactor{db: db, opts: opts}
}

// WithinTx begins a transaction, runs fn and commits when fn succeeds.
func (t *Transactor) WithinTx(ctx context.Context, fn TxFunc) (err error) {
	if t == nil || t.db == nil {
		return fmt.Errorf("transaction provider missing")
	}
	tx, err := t.db.BeginTxx(ctx, t.opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
