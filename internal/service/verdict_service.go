package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/defense-jury-api/internal/dto"
	"github.com/noah-isme/defense-jury-api/internal/models"
	appErrors "github.com/noah-isme/defense-jury-api/pkg/errors"
)

type verdictStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, verdict *models.Verdict) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Verdict, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Verdict, error)
	FindBySitting(ctx context.Context, exec sqlx.ExtContext, sittingID string) (*models.Verdict, error)
	Update(ctx context.Context, exec sqlx.ExtContext, verdict *models.Verdict) error
	AddApproval(ctx context.Context, exec sqlx.ExtContext, approval *models.VerdictApproval) (bool, error)
	ListApprovals(ctx context.Context, exec sqlx.ExtContext, verdictID string) ([]models.VerdictApproval, error)
	DeleteApprovalsExcept(ctx context.Context, exec sqlx.ExtContext, verdictID, keepEvaluatorID string) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type verdictSittingReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Sitting, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Sitting, error)
}

type candidateStatusWriter interface {
	UpdateFolderStatus(ctx context.Context, exec sqlx.ExtContext, ids []string, status models.FolderStatus) error
}

type finalizationListener interface {
	VerdictFinalized(ctx context.Context, verdict models.Verdict, sitting models.Sitting)
}

// VerdictService drives the per-sitting verdict state machine DRAFT -> PENDING -> FINALIZED.
type VerdictService struct {
	verdicts   verdictStore
	sittings   verdictSittingReader
	candidates candidateStatusWriter
	tx         transactor
	mentions   MentionScale
	effects    finalizationListener
	validator  *validator.Validate
	metrics    *MetricsService
	audit      auditRecorder
	logger     *zap.Logger
	now        func() time.Time
}

// NewVerdictService wires verdict dependencies. effects may be nil.
func NewVerdictService(
	verdicts verdictStore,
	sittings verdictSittingReader,
	candidates candidateStatusWriter,
	tx transactor,
	mentions MentionScale,
	effects finalizationListener,
	audit auditLogWriter,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *VerdictService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerdictService{
		verdicts:   verdicts,
		sittings:   sittings,
		candidates: candidates,
		tx:         tx,
		mentions:   mentions,
		effects:    effects,
		validator:  validate,
		metrics:    metrics,
		audit:      newAuditRecorder(audit, logger),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Create records the president's verdict for a confirmed sitting. Unless req.Draft is
// set the verdict is submitted at once, carrying the president's approval.
func (s *VerdictService) Create(ctx context.Context, sittingID, evaluatorID string, req dto.CreateVerdictRequest) (*models.Verdict, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verdict payload")
	}

	var verdict *models.Verdict
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		sitting, err := s.sittings.FindByIDForUpdate(ctx, exec, sittingID)
		if err != nil {
			return sittingLookupError(err)
		}
		if sitting.Status != models.SittingStatusConfirmed {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "verdicts can only be recorded for confirmed sittings")
		}
		existing, err := s.verdicts.FindBySitting(ctx, exec, sittingID)
		switch {
		case err == nil && existing.Status == models.VerdictStatusFinalized:
			return appErrors.Clone(appErrors.ErrVerdictImmutable, "the sitting's verdict is already finalized")
		case err == nil:
			return appErrors.Clone(appErrors.ErrConflict, "the sitting already has a verdict")
		case !errors.Is(err, sql.ErrNoRows):
			return wrapInternal(err, "failed to check existing verdict")
		}
		if err := requirePresident(*sitting, evaluatorID); err != nil {
			return err
		}

		now := s.now()
		verdict = &models.Verdict{
			SittingID:     sittingID,
			FinalScore:    *req.FinalScore,
			Mention:       s.mentions.For(*req.FinalScore),
			Observations:  req.Observations,
			Appreciations: req.Appreciations,
			RevisionText:  normalizeRevision(req.RevisionRequestText),
			Status:        models.VerdictStatusDraft,
			CreatedBy:     evaluatorID,
			Approvals:     []models.VerdictApproval{},
		}
		if !req.Draft {
			verdict.Status = models.VerdictStatusPending
		}
		if err := s.verdicts.Create(ctx, exec, verdict); err != nil {
			return wrapInternal(err, "failed to create verdict")
		}
		if verdict.Status == models.VerdictStatusPending {
			approval := models.VerdictApproval{VerdictID: verdict.ID, EvaluatorID: evaluatorID, Role: models.JuryRolePresident, ApprovedAt: now}
			if _, err := s.verdicts.AddApproval(ctx, exec, &approval); err != nil {
				return wrapInternal(err, "failed to record president approval")
			}
			verdict.Approvals = append(verdict.Approvals, approval)
		}
		return nil
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to create verdict")
	}

	s.metrics.RecordVerdictTransition(verdict.Status)
	s.audit.record(ctx, evaluatorID, models.AuditActionVerdictCreate, "verdict", verdict.ID, verdict)
	return verdict, nil
}

// GetBySitting returns the verdict of a sitting.
func (s *VerdictService) GetBySitting(ctx context.Context, sittingID string) (*models.Verdict, error) {
	verdict, err := s.verdicts.FindBySitting(ctx, nil, sittingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "verdict not found")
		}
		return nil, wrapInternal(err, "failed to load verdict")
	}
	return verdict, nil
}

// Get returns a verdict by id.
func (s *VerdictService) Get(ctx context.Context, verdictID string) (*models.Verdict, error) {
	verdict, err := s.verdicts.FindByID(ctx, nil, verdictID)
	if err != nil {
		return nil, verdictLookupError(err)
	}
	return verdict, nil
}

// Update replaces the content of a DRAFT or PENDING verdict. Editing a PENDING verdict
// withdraws every approval except the president's.
func (s *VerdictService) Update(ctx context.Context, verdictID, evaluatorID string, req dto.UpdateVerdictRequest) (*models.Verdict, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verdict payload")
	}
	var verdict *models.Verdict
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		var err error
		verdict, err = s.lockMutable(ctx, exec, verdictID)
		if err != nil {
			return err
		}
		sitting, err := s.sittings.FindByID(ctx, exec, verdict.SittingID)
		if err != nil {
			return sittingLookupError(err)
		}
		if err := requirePresident(*sitting, evaluatorID); err != nil {
			return err
		}

		verdict.FinalScore = *req.FinalScore
		verdict.Mention = s.mentions.For(*req.FinalScore)
		verdict.Observations = req.Observations
		verdict.Appreciations = req.Appreciations
		verdict.RevisionText = normalizeRevision(req.RevisionRequestText)
		if err := s.verdicts.Update(ctx, exec, verdict); err != nil {
			return wrapInternal(err, "failed to update verdict")
		}
		if verdict.Status == models.VerdictStatusPending && len(verdict.Approvals) > 1 {
			if err := s.verdicts.DeleteApprovalsExcept(ctx, exec, verdict.ID, evaluatorID); err != nil {
				return wrapInternal(err, "failed to reset approvals")
			}
			approvals, err := s.verdicts.ListApprovals(ctx, exec, verdict.ID)
			if err != nil {
				return wrapInternal(err, "failed to reload approvals")
			}
			verdict.Approvals = approvals
		}
		return nil
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to update verdict")
	}
	s.audit.record(ctx, evaluatorID, models.AuditActionVerdictUpdate, "verdict", verdict.ID, verdict)
	return verdict, nil
}

// Submit moves a DRAFT verdict to PENDING with the president's approval. Submitting a
// PENDING verdict again changes nothing.
func (s *VerdictService) Submit(ctx context.Context, verdictID, evaluatorID string) (*models.Verdict, error) {
	var (
		verdict   *models.Verdict
		submitted bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		var err error
		verdict, err = s.lockMutable(ctx, exec, verdictID)
		if err != nil {
			return err
		}
		sitting, err := s.sittings.FindByID(ctx, exec, verdict.SittingID)
		if err != nil {
			return sittingLookupError(err)
		}
		if err := requirePresident(*sitting, evaluatorID); err != nil {
			return err
		}
		if verdict.Status != models.VerdictStatusDraft {
			return nil
		}
		verdict.Status = models.VerdictStatusPending
		if err := s.verdicts.Update(ctx, exec, verdict); err != nil {
			return wrapInternal(err, "failed to submit verdict")
		}
		approval := models.VerdictApproval{VerdictID: verdict.ID, EvaluatorID: evaluatorID, Role: models.JuryRolePresident, ApprovedAt: s.now()}
		if _, err := s.verdicts.AddApproval(ctx, exec, &approval); err != nil {
			return wrapInternal(err, "failed to record president approval")
		}
		approvals, err := s.verdicts.ListApprovals(ctx, exec, verdict.ID)
		if err != nil {
			return wrapInternal(err, "failed to reload approvals")
		}
		verdict.Approvals = approvals
		submitted = true
		return nil
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to submit verdict")
	}
	if submitted {
		s.metrics.RecordVerdictTransition(models.VerdictStatusPending)
		s.audit.record(ctx, evaluatorID, models.AuditActionVerdictSubmit, "verdict", verdict.ID, nil)
	}
	return verdict, nil
}

// Approve records a voting member's sign-off. Approving twice is a no-op. The
// verdict is sealed and finalized once every voting role has signed.
func (s *VerdictService) Approve(ctx context.Context, verdictID, evaluatorID string) (*models.Verdict, error) {
	var (
		verdict   *models.Verdict
		sitting   *models.Sitting
		inserted  bool
		finalized bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		var err error
		verdict, err = s.lockMutable(ctx, exec, verdictID)
		if err != nil {
			return err
		}
		sitting, err = s.sittings.FindByID(ctx, exec, verdict.SittingID)
		if err != nil {
			return sittingLookupError(err)
		}
		member, ok := sitting.Member(evaluatorID)
		if evaluatorID == "" || !ok || !member.Role.IsVoting() {
			return appErrors.Clone(appErrors.ErrRoleNotPermitted, "only voting members of the sitting may approve its verdict")
		}
		if verdict.Status == models.VerdictStatusDraft {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "draft verdicts must be submitted before approval")
		}

		approval := models.VerdictApproval{VerdictID: verdict.ID, EvaluatorID: evaluatorID, Role: member.Role, ApprovedAt: s.now()}
		inserted, err = s.verdicts.AddApproval(ctx, exec, &approval)
		if err != nil {
			return wrapInternal(err, "failed to record approval")
		}
		approvals, err := s.verdicts.ListApprovals(ctx, exec, verdict.ID)
		if err != nil {
			return wrapInternal(err, "failed to reload approvals")
		}
		verdict.Approvals = approvals
		if !verdict.CoversVotingRoles() {
			return nil
		}

		finalizedAt := s.now()
		verdict.Status = models.VerdictStatusFinalized
		verdict.FinalizedAt = &finalizedAt
		seal, err := ComputeVerdictSeal(*verdict, sitting.CandidateIDs)
		if err != nil {
			return wrapInternal(err, "failed to seal verdict")
		}
		verdict.Seal = &seal
		if err := s.verdicts.Update(ctx, exec, verdict); err != nil {
			return wrapInternal(err, "failed to finalize verdict")
		}
		if err := s.candidates.UpdateFolderStatus(ctx, exec, sitting.CandidateIDs, models.FolderStatusDefended); err != nil {
			return wrapInternal(err, "failed to close candidate folders")
		}
		finalized = true
		return nil
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to approve verdict")
	}

	if inserted {
		s.audit.record(ctx, evaluatorID, models.AuditActionVerdictApprove, "verdict", verdict.ID, nil)
	}
	if finalized {
		s.metrics.RecordVerdictTransition(models.VerdictStatusFinalized)
		s.audit.record(ctx, evaluatorID, models.AuditActionVerdictFinalize, "verdict", verdict.ID, map[string]interface{}{"seal": verdict.Seal})
		s.logger.Info("verdict finalized", zap.String("verdict_id", verdict.ID), zap.String("sitting_id", verdict.SittingID))
		if s.effects != nil {
			s.effects.VerdictFinalized(ctx, *verdict, *sitting)
		}
	}
	return verdict, nil
}

// Discard deletes a verdict the president no longer wants, provided no other
// member has approved it yet.
func (s *VerdictService) Discard(ctx context.Context, verdictID, evaluatorID string) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		verdict, err := s.lockMutable(ctx, exec, verdictID)
		if err != nil {
			return err
		}
		sitting, err := s.sittings.FindByID(ctx, exec, verdict.SittingID)
		if err != nil {
			return sittingLookupError(err)
		}
		if err := requirePresident(*sitting, evaluatorID); err != nil {
			return err
		}
		for _, approval := range verdict.Approvals {
			if approval.EvaluatorID != evaluatorID {
				return appErrors.Clone(appErrors.ErrPreconditionFailed, "verdict already approved by another member")
			}
		}
		if err := s.verdicts.Delete(ctx, exec, verdict.ID); err != nil {
			return wrapInternal(err, "failed to discard verdict")
		}
		return nil
	})
	if err != nil {
		return wrapInternal(err, "failed to discard verdict")
	}
	s.audit.record(ctx, evaluatorID, models.AuditActionVerdictDiscard, "verdict", verdictID, nil)
	return nil
}

// lockMutable loads and locks a verdict that may still change.
func (s *VerdictService) lockMutable(ctx context.Context, exec sqlx.ExtContext, verdictID string) (*models.Verdict, error) {
	verdict, err := s.verdicts.FindByIDForUpdate(ctx, exec, verdictID)
	if err != nil {
		return nil, verdictLookupError(err)
	}
	if verdict.Status == models.VerdictStatusFinalized {
		return nil, appErrors.Clone(appErrors.ErrVerdictImmutable, "verdict is finalized and can no longer change")
	}
	return verdict, nil
}

func requirePresident(sitting models.Sitting, evaluatorID string) error {
	member, ok := sitting.Member(evaluatorID)
	if evaluatorID == "" || !ok || member.Role != models.JuryRolePresident {
		return appErrors.Clone(appErrors.ErrRoleNotPermitted, "only the sitting's president may perform this action")
	}
	return nil
}

func verdictLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "verdict not found")
	}
	return wrapInternal(err, "failed to load verdict")
}

func normalizeRevision(text *string) *string {
	if text == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*text)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
