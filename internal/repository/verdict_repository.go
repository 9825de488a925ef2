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

const verdictColumns = `id, sitting_id, final_score, mention, observations, appreciations, revision_request_text, status, seal, archive_key, created_by, finalized_at, created_at, updated_at`

// VerdictRepository persists verdicts and their approvals.
type VerdictRepository struct {
	db *sqlx.DB
}

// NewVerdictRepository constructs the repository.
func NewVerdictRepository(db *sqlx.DB) *VerdictRepository {
	return &VerdictRepository{db: db}
}

func (r *VerdictRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a verdict. The unique index on sitting_id rejects a second verdict for a sitting.
func (r *VerdictRepository) Create(ctx context.Context, exec sqlx.ExtContext, verdict *models.Verdict) error {
	if verdict.ID == "" {
		verdict.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	verdict.CreatedAt = now
	verdict.UpdatedAt = now
	const query = `INSERT INTO verdicts (id, sitting_id, final_score, mention, observations, appreciations, revision_request_text, status, seal, archive_key, created_by, finalized_at, created_at, updated_at)
VALUES (:id, :sitting_id, :final_score, :mention, :observations, :appreciations, :revision_request_text, :status, :seal, :archive_key, :created_by, :finalized_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, verdict); err != nil {
		return fmt.Errorf("insert verdict: %w", err)
	}
	return nil
}

// FindByID loads a verdict with its approvals.
func (r *VerdictRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Verdict, error) {
	return r.find(ctx, r.exec(exec), `SELECT `+verdictColumns+` FROM verdicts WHERE id = $1`, id)
}

// FindByIDForUpdate loads a verdict and locks its row; concurrent approvals serialise here.
func (r *VerdictRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Verdict, error) {
	return r.find(ctx, r.exec(exec), `SELECT `+verdictColumns+` FROM verdicts WHERE id = $1 FOR UPDATE`, id)
}

// FindBySitting loads the verdict of a sitting.
func (r *VerdictRepository) FindBySitting(ctx context.Context, exec sqlx.ExtContext, sittingID string) (*models.Verdict, error) {
	return r.find(ctx, r.exec(exec), `SELECT `+verdictColumns+` FROM verdicts WHERE sitting_id = $1`, sittingID)
}

// ListBySittings returns the verdicts of the given sittings without approvals.
func (r *VerdictRepository) ListBySittings(ctx context.Context, sittingIDs []string) ([]models.Verdict, error) {
	if len(sittingIDs) == 0 {
		return []models.Verdict{}, nil
	}
	query := `SELECT ` + verdictColumns + ` FROM verdicts WHERE sitting_id = ANY($1)`
	var verdicts []models.Verdict
	if err := r.db.SelectContext(ctx, &verdicts, query, pq.Array(sittingIDs)); err != nil {
		return nil, fmt.Errorf("list verdicts by sitting: %w", err)
	}
	return verdicts, nil
}

func (r *VerdictRepository) find(ctx context.Context, target sqlx.ExtContext, query, arg string) (*models.Verdict, error) {
	var verdict models.Verdict
	if err := sqlx.GetContext(ctx, target, &verdict, query, arg); err != nil {
		return nil, err
	}
	approvals, err := r.ListApprovals(ctx, target, verdict.ID)
	if err != nil {
		return nil, err
	}
	verdict.Approvals = approvals
	return &verdict, nil
}

// Update writes the mutable fields of a verdict.
func (r *VerdictRepository) Update(ctx context.Context, exec sqlx.ExtContext, verdict *models.Verdict) error {
	verdict.UpdatedAt = time.Now().UTC()
	const query = `UPDATE verdicts SET final_score = :final_score, mention = :mention, observations = :observations,
appreciations = :appreciations, revision_request_text = :revision_request_text, status = :status, seal = :seal,
finalized_at = :finalized_at, updated_at = :updated_at
WHERE id = :id AND status <> 'FINALIZED'`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, verdict)
	if err != nil {
		return fmt.Errorf("update verdict: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddApproval records a sign-off. It reports false when the evaluator had already approved.
func (r *VerdictRepository) AddApproval(ctx context.Context, exec sqlx.ExtContext, approval *models.VerdictApproval) (bool, error) {
	if approval.ApprovedAt.IsZero() {
		approval.ApprovedAt = time.Now().UTC()
	}
	const query = `INSERT INTO verdict_approvals (verdict_id, evaluator_id, role, approved_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (verdict_id, evaluator_id) DO NOTHING`
	res, err := r.exec(exec).ExecContext(ctx, query, approval.VerdictID, approval.EvaluatorID, approval.Role, approval.ApprovedAt)
	if err != nil {
		return false, fmt.Errorf("insert verdict approval: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("verdict approval rows: %w", err)
	}
	return rows > 0, nil
}

// ListApprovals returns approvals in signing order.
func (r *VerdictRepository) ListApprovals(ctx context.Context, exec sqlx.ExtContext, verdictID string) ([]models.VerdictApproval, error) {
	const query = `SELECT verdict_id, evaluator_id, role, approved_at FROM verdict_approvals WHERE verdict_id = $1 ORDER BY approved_at ASC, evaluator_id ASC`
	approvals := []models.VerdictApproval{}
	if err := sqlx.SelectContext(ctx, r.exec(exec), &approvals, query, verdictID); err != nil {
		return nil, fmt.Errorf("list verdict approvals: %w", err)
	}
	return approvals, nil
}

// DeleteApprovalsExcept removes every approval but keepEvaluatorID's.
func (r *VerdictRepository) DeleteApprovalsExcept(ctx context.Context, exec sqlx.ExtContext, verdictID, keepEvaluatorID string) error {
	const query = `DELETE FROM verdict_approvals WHERE verdict_id = $1 AND evaluator_id <> $2`
	if _, err := r.exec(exec).ExecContext(ctx, query, verdictID, keepEvaluatorID); err != nil {
		return fmt.Errorf("reset verdict approvals: %w", err)
	}
	return nil
}

// Delete removes a non-finalized verdict and its approvals.
func (r *VerdictRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM verdict_approvals WHERE verdict_id = $1`, id); err != nil {
		return fmt.Errorf("delete verdict approvals: %w", err)
	}
	res, err := target.ExecContext(ctx, `DELETE FROM verdicts WHERE id = $1 AND status <> 'FINALIZED'`, id)
	if err != nil {
		return fmt.Errorf("delete verdict: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetArchiveKey stores where the rendered PV was archived.
func (r *VerdictRepository) SetArchiveKey(ctx context.Context, id, key string) error {
	const query = `UPDATE verdicts SET archive_key = $1 WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, key, id)
	if err != nil {
		return fmt.Errorf("set verdict archive key: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
