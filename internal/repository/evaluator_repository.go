package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

const evaluatorColumns = `id, name, email, grade, available, committed_slot_count, created_at, updated_at`

// EvaluatorRepository is the evaluator directory.
type EvaluatorRepository struct {
	db *sqlx.DB
}

// NewEvaluatorRepository constructs the repository.
func NewEvaluatorRepository(db *sqlx.DB) *EvaluatorRepository {
	return &EvaluatorRepository{db: db}
}

func (r *EvaluatorRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListAvailable returns available evaluators in a stable order (name, then id).
func (r *EvaluatorRepository) ListAvailable(ctx context.Context) ([]models.Evaluator, error) {
	query := `SELECT ` + evaluatorColumns + ` FROM evaluators WHERE available = TRUE ORDER BY name ASC, id ASC`
	var evaluators []models.Evaluator
	if err := r.db.SelectContext(ctx, &evaluators, query); err != nil {
		return nil, fmt.Errorf("list available evaluators: %w", err)
	}
	return evaluators, nil
}

// FindByIDs returns the requested evaluators regardless of availability.
func (r *EvaluatorRepository) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Evaluator, error) {
	if len(ids) == 0 {
		return []models.Evaluator{}, nil
	}
	query := `SELECT ` + evaluatorColumns + ` FROM evaluators WHERE id = ANY($1) ORDER BY id ASC`
	var evaluators []models.Evaluator
	if err := sqlx.SelectContext(ctx, r.exec(exec), &evaluators, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find evaluators: %w", err)
	}
	return evaluators, nil
}

// IncrementLoad adjusts an evaluator's committed slot count by delta, never below zero.
func (r *EvaluatorRepository) IncrementLoad(ctx context.Context, exec sqlx.ExtContext, evaluatorID string, delta int) error {
	const query = `UPDATE evaluators SET committed_slot_count = GREATEST(committed_slot_count + $1, 0), updated_at = $2 WHERE id = $3`
	res, err := r.exec(exec).ExecContext(ctx, query, delta, time.Now().UTC(), evaluatorID)
	if err != nil {
		return fmt.Errorf("increment evaluator load: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
