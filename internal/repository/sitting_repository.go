package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

const sittingColumns = `id, session_id, batch_id, room_id, starts_at, ends_at, status, created_by, created_at, updated_at`

// SittingRepository persists sittings together with their candidates and members.
type SittingRepository struct {
	db *sqlx.DB
}

// NewSittingRepository constructs the repository.
func NewSittingRepository(db *sqlx.DB) *SittingRepository {
	return &SittingRepository{db: db}
}

func (r *SittingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts the sitting, its ordered candidates and its members.
func (r *SittingRepository) Create(ctx context.Context, exec sqlx.ExtContext, sitting *models.Sitting) error {
	if sitting == nil {
		return fmt.Errorf("sitting payload is nil")
	}
	if sitting.ID == "" {
		sitting.ID = uuid.NewString()
	}
	if sitting.Status == "" {
		sitting.Status = models.SittingStatusConfirmed
	}
	now := time.Now().UTC()
	sitting.CreatedAt = now
	sitting.UpdatedAt = now

	target := r.exec(exec)
	const query = `INSERT INTO sittings (id, session_id, batch_id, room_id, starts_at, ends_at, status, created_by, created_at, updated_at)
VALUES (:id, :session_id, :batch_id, :room_id, :starts_at, :ends_at, :status, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, query, sitting); err != nil {
		return fmt.Errorf("insert sitting: %w", err)
	}
	return r.insertRoster(ctx, target, sitting)
}

// ReplaceRoster rewrites the candidates and members of a sitting.
func (r *SittingRepository) ReplaceRoster(ctx context.Context, exec sqlx.ExtContext, sitting *models.Sitting) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM sitting_members WHERE sitting_id = $1`, sitting.ID); err != nil {
		return fmt.Errorf("clear sitting members: %w", err)
	}
	if _, err := target.ExecContext(ctx, `DELETE FROM sitting_candidates WHERE sitting_id = $1`, sitting.ID); err != nil {
		return fmt.Errorf("clear sitting candidates: %w", err)
	}
	return r.insertRoster(ctx, target, sitting)
}

func (r *SittingRepository) insertRoster(ctx context.Context, target sqlx.ExtContext, sitting *models.Sitting) error {
	const candidateQuery = `INSERT INTO sitting_candidates (sitting_id, candidate_id, position) VALUES ($1, $2, $3)`
	for i, candidateID := range sitting.CandidateIDs {
		if _, err := target.ExecContext(ctx, candidateQuery, sitting.ID, candidateID, i+1); err != nil {
			return fmt.Errorf("insert sitting candidate: %w", err)
		}
	}
	const memberQuery = `INSERT INTO sitting_members (sitting_id, evaluator_id, role, candidate_id) VALUES ($1, $2, $3, $4)`
	for i := range sitting.Members {
		sitting.Members[i].SittingID = sitting.ID
		m := sitting.Members[i]
		if _, err := target.ExecContext(ctx, memberQuery, sitting.ID, m.EvaluatorID, m.Role, m.CandidateID); err != nil {
			return fmt.Errorf("insert sitting member: %w", err)
		}
	}
	return nil
}

// FindByID loads a sitting with its candidates and members.
func (r *SittingRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Sitting, error) {
	return r.find(ctx, r.exec(exec), `SELECT `+sittingColumns+` FROM sittings WHERE id = $1`, id)
}

// FindByIDForUpdate loads a sitting and locks its row until the transaction ends.
func (r *SittingRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Sitting, error) {
	return r.find(ctx, r.exec(exec), `SELECT `+sittingColumns+` FROM sittings WHERE id = $1 FOR UPDATE`, id)
}

func (r *SittingRepository) find(ctx context.Context, target sqlx.ExtContext, query, id string) (*models.Sitting, error) {
	var sitting models.Sitting
	if err := sqlx.GetContext(ctx, target, &sitting, query, id); err != nil {
		return nil, err
	}
	if err := r.loadRosters(ctx, target, []*models.Sitting{&sitting}); err != nil {
		return nil, err
	}
	return &sitting, nil
}

// ListBySession returns the session's sittings in chronological order.
func (r *SittingRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Sitting, error) {
	query := `SELECT ` + sittingColumns + ` FROM sittings WHERE session_id = $1 ORDER BY starts_at ASC, id ASC`
	var sittings []models.Sitting
	if err := r.db.SelectContext(ctx, &sittings, query, sessionID); err != nil {
		return nil, fmt.Errorf("list sittings: %w", err)
	}
	ptrs := make([]*models.Sitting, len(sittings))
	for i := range sittings {
		ptrs[i] = &sittings[i]
	}
	if err := r.loadRosters(ctx, r.db, ptrs); err != nil {
		return nil, err
	}
	return sittings, nil
}

func (r *SittingRepository) loadRosters(ctx context.Context, target sqlx.ExtContext, sittings []*models.Sitting) error {
	if len(sittings) == 0 {
		return nil
	}
	ids := make([]string, len(sittings))
	byID := make(map[string]*models.Sitting, len(sittings))
	for i, s := range sittings {
		ids[i] = s.ID
		byID[s.ID] = s
		s.CandidateIDs = []string{}
		s.Members = []models.SittingMember{}
	}

	var candidates []models.SittingCandidate
	const candidateQuery = `SELECT sitting_id, candidate_id, position FROM sitting_candidates WHERE sitting_id = ANY($1) ORDER BY sitting_id, position ASC`
	if err := sqlx.SelectContext(ctx, target, &candidates, candidateQuery, pq.Array(ids)); err != nil {
		return fmt.Errorf("load sitting candidates: %w", err)
	}
	for _, c := range candidates {
		if s, ok := byID[c.SittingID]; ok {
			s.CandidateIDs = append(s.CandidateIDs, c.CandidateID)
		}
	}

	var members []models.SittingMember
	const memberQuery = `SELECT sitting_id, evaluator_id, role, candidate_id FROM sitting_members WHERE sitting_id = ANY($1)
ORDER BY sitting_id, CASE role WHEN 'PRESIDENT' THEN 1 WHEN 'RAPPORTEUR' THEN 2 WHEN 'EXAMINER' THEN 3 ELSE 4 END, evaluator_id`
	if err := sqlx.SelectContext(ctx, target, &members, memberQuery, pq.Array(ids)); err != nil {
		return fmt.Errorf("load sitting members: %w", err)
	}
	for _, m := range members {
		if s, ok := byID[m.SittingID]; ok {
			s.Members = append(s.Members, m)
		}
	}
	return nil
}

// EvaluatorBusyIntervals returns the confirmed sittings of the given evaluators intersecting [from, to).
func (r *SittingRepository) EvaluatorBusyIntervals(ctx context.Context, exec sqlx.ExtContext, evaluatorIDs []string, from, to time.Time) ([]models.BusyInterval, error) {
	if len(evaluatorIDs) == 0 {
		return []models.BusyInterval{}, nil
	}
	const query = `SELECT m.evaluator_id AS resource_id, s.id AS sitting_id, s.starts_at, s.ends_at
FROM sitting_members m
JOIN sittings s ON s.id = m.sitting_id
WHERE m.evaluator_id = ANY($1) AND s.status = 'CONFIRMED' AND s.starts_at < $3 AND s.ends_at > $2
ORDER BY s.starts_at ASC`
	var intervals []models.BusyInterval
	if err := sqlx.SelectContext(ctx, r.exec(exec), &intervals, query, pq.Array(evaluatorIDs), from, to); err != nil {
		return nil, fmt.Errorf("list evaluator commitments: %w", err)
	}
	return intervals, nil
}

// ScheduledCandidateIDs returns which of the given candidates already sit in a confirmed sitting.
func (r *SittingRepository) ScheduledCandidateIDs(ctx context.Context, exec sqlx.ExtContext, candidateIDs []string) ([]string, error) {
	if len(candidateIDs) == 0 {
		return []string{}, nil
	}
	const query = `SELECT DISTINCT c.candidate_id FROM sitting_candidates c
JOIN sittings s ON s.id = c.sitting_id
WHERE c.candidate_id = ANY($1) AND s.status = 'CONFIRMED'
ORDER BY c.candidate_id`
	var ids []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, pq.Array(candidateIDs)); err != nil {
		return nil, fmt.Errorf("list scheduled candidates: %w", err)
	}
	return ids, nil
}

// UpdateWindow moves a sitting to a new time range.
func (r *SittingRepository) UpdateWindow(ctx context.Context, exec sqlx.ExtContext, id string, start, end time.Time) error {
	const query = `UPDATE sittings SET starts_at = $1, ends_at = $2, updated_at = $3 WHERE id = $4`
	res, err := r.exec(exec).ExecContext(ctx, query, start, end, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update sitting window: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
