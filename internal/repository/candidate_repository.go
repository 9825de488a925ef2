package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

const candidateColumns = `id, name, email, program, level, academic_year, session_label, supervisor_id, folder_status, pair_id, document_id, created_at, updated_at`

// CandidateRepository reads the candidate roster.
type CandidateRepository struct {
	db *sqlx.DB
}

// NewCandidateRepository constructs the repository.
func NewCandidateRepository(db *sqlx.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

func (r *CandidateRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListRoster returns every candidate of a level and academic year ordered by id.
// Eligibility filtering happens in the service layer.
func (r *CandidateRepository) ListRoster(ctx context.Context, level, academicYear string) ([]models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE level = $1 AND academic_year = $2 ORDER BY id ASC`
	var candidates []models.Candidate
	if err := r.db.SelectContext(ctx, &candidates, query, level, academicYear); err != nil {
		return nil, fmt.Errorf("list candidate roster: %w", err)
	}
	return candidates, nil
}

// FindByIDs returns the requested candidates ordered by id. Missing ids are silently absent.
func (r *CandidateRepository) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Candidate, error) {
	if len(ids) == 0 {
		return []models.Candidate{}, nil
	}
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE id = ANY($1) ORDER BY id ASC`
	var candidates []models.Candidate
	if err := sqlx.SelectContext(ctx, r.exec(exec), &candidates, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	return candidates, nil
}

// UpdateFolderStatus moves the candidates' folders to status.
func (r *CandidateRepository) UpdateFolderStatus(ctx context.Context, exec sqlx.ExtContext, ids []string, status models.FolderStatus) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE candidates SET folder_status = $1, updated_at = $2 WHERE id = ANY($3)`
	if _, err := r.exec(exec).ExecContext(ctx, query, status, time.Now().UTC(), pq.Array(ids)); err != nil {
		return fmt.Errorf("update candidate folder status: %w", err)
	}
	return nil
}
