package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

// LibrarySubmissionRepository records memoirs handed to the library.
type LibrarySubmissionRepository struct {
	db *sqlx.DB
}

// NewLibrarySubmissionRepository constructs the repository.
func NewLibrarySubmissionRepository(db *sqlx.DB) *LibrarySubmissionRepository {
	return &LibrarySubmissionRepository{db: db}
}

// FindByVerdictDocument returns the submission of a document for a verdict.
func (r *LibrarySubmissionRepository) FindByVerdictDocument(ctx context.Context, verdictID, documentRef string) (*models.LibrarySubmission, error) {
	const query = `SELECT id, verdict_id, candidate_id, document_ref, active, external_id, status, submitted_at
FROM library_submissions WHERE verdict_id = $1 AND document_ref = $2`
	var sub models.LibrarySubmission
	if err := r.db.GetContext(ctx, &sub, query, verdictID, documentRef); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Create records a submission; a second submission of the same document for the same verdict is ignored.
func (r *LibrarySubmissionRepository) Create(ctx context.Context, sub *models.LibrarySubmission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO library_submissions (id, verdict_id, candidate_id, document_ref, active, external_id, status, submitted_at)
VALUES (:id, :verdict_id, :candidate_id, :document_ref, :active, :external_id, :status, :submitted_at)
ON CONFLICT (verdict_id, document_ref) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("insert library submission: %w", err)
	}
	return nil
}
