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

// DocumentRepository tracks memoir documents.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// FindByIDs returns the requested documents.
func (r *DocumentRepository) FindByIDs(ctx context.Context, ids []string) ([]models.MemoirDocument, error) {
	if len(ids) == 0 {
		return []models.MemoirDocument{}, nil
	}
	const query = `SELECT id, ref, title, status, created_at, updated_at FROM memoir_documents WHERE id = ANY($1) ORDER BY id ASC`
	var docs []models.MemoirDocument
	if err := r.db.SelectContext(ctx, &docs, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find memoir documents: %w", err)
	}
	return docs, nil
}

// UpdateStatus sets the validation status of a document.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus) error {
	const query = `UPDATE memoir_documents SET status = $1, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update memoir document status: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
