package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

const sessionColumns = `id, academic_year, label, level, active, created_at, updated_at`

// DefenseSessionRepository persists defense sessions.
type DefenseSessionRepository struct {
	db *sqlx.DB
}

// NewDefenseSessionRepository constructs the repository.
func NewDefenseSessionRepository(db *sqlx.DB) *DefenseSessionRepository {
	return &DefenseSessionRepository{db: db}
}

func (r *DefenseSessionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a session.
func (r *DefenseSessionRepository) Create(ctx context.Context, exec sqlx.ExtContext, session *models.DefenseSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	const query = `INSERT INTO defense_sessions (id, academic_year, label, level, active, created_at, updated_at)
VALUES (:id, :academic_year, :label, :level, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, session); err != nil {
		return fmt.Errorf("insert defense session: %w", err)
	}
	return nil
}

// FindByID returns a session by id.
func (r *DefenseSessionRepository) FindByID(ctx context.Context, id string) (*models.DefenseSession, error) {
	var session models.DefenseSession
	query := `SELECT ` + sessionColumns + ` FROM defense_sessions WHERE id = $1`
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// LockForUpdate loads the session row and holds its lock until the transaction ends.
// Every write to the session's sittings goes through this lock.
func (r *DefenseSessionRepository) LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.DefenseSession, error) {
	var session models.DefenseSession
	query := `SELECT ` + sessionColumns + ` FROM defense_sessions WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, r.exec(exec), &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns sessions matching the filter, newest academic year first.
func (r *DefenseSessionRepository) List(ctx context.Context, filter models.DefenseSessionFilter) ([]models.DefenseSession, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Level != "" {
		args = append(args, filter.Level)
		conditions = append(conditions, fmt.Sprintf("level = $%d", len(args)))
	}
	if filter.AcademicYear != "" {
		args = append(args, filter.AcademicYear)
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "active = TRUE")
	}
	query := `SELECT ` + sessionColumns + ` FROM defense_sessions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY academic_year DESC, level ASC, label ASC"

	var sessions []models.DefenseSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list defense sessions: %w", err)
	}
	return sessions, nil
}

// Activate marks the session active and deactivates every other session of the same level.
func (r *DefenseSessionRepository) Activate(ctx context.Context, exec sqlx.ExtContext, id, level string) error {
	target := r.exec(exec)
	now := time.Now().UTC()
	const deactivate = `UPDATE defense_sessions SET active = FALSE, updated_at = $1 WHERE level = $2 AND id <> $3 AND active = TRUE`
	if _, err := target.ExecContext(ctx, deactivate, now, level, id); err != nil {
		return fmt.Errorf("deactivate defense sessions: %w", err)
	}
	const activate = `UPDATE defense_sessions SET active = TRUE, updated_at = $1 WHERE id = $2`
	res, err := target.ExecContext(ctx, activate, now, id)
	if err != nil {
		return fmt.Errorf("activate defense session: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
