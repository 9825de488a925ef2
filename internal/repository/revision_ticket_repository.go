package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

// RevisionTicketRepository stores correction work items.
type RevisionTicketRepository struct {
	db *sqlx.DB
}

// NewRevisionTicketRepository constructs the repository.
func NewRevisionTicketRepository(db *sqlx.DB) *RevisionTicketRepository {
	return &RevisionTicketRepository{db: db}
}

// Create inserts a ticket unless one already exists for the verdict and candidate.
// It reports whether a new row was written.
func (r *RevisionTicketRepository) Create(ctx context.Context, ticket *models.RevisionTicket) (bool, error) {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.Status == "" {
		ticket.Status = "OPEN"
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO revision_tickets (id, verdict_id, candidate_id, assignee_id, text, priority, status, created_at)
VALUES (:id, :verdict_id, :candidate_id, :assignee_id, :text, :priority, :status, :created_at)
ON CONFLICT (verdict_id, candidate_id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, ticket)
	if err != nil {
		return false, fmt.Errorf("insert revision ticket: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revision ticket rows: %w", err)
	}
	return rows > 0, nil
}
