package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/defense-jury-api/internal/dto"
	"github.com/noah-isme/defense-jury-api/internal/models"
	"github.com/noah-isme/defense-jury-api/pkg/database"
	appErrors "github.com/noah-isme/defense-jury-api/pkg/errors"
)

type transactor interface {
	WithinTx(ctx context.Context, fn database.TxFunc) error
}

type defenseSessionStore interface {
	FindByID(ctx context.Context, id string) (*models.DefenseSession, error)
	LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.DefenseSession, error)
}

type candidateDirectory interface {
	ListRoster(ctx context.Context, level, academicYear string) ([]models.Candidate, error)
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Candidate, error)
}

type evaluatorDirectory interface {
	ListAvailable(ctx context.Context) ([]models.Evaluator, error)
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Evaluator, error)
	IncrementLoad(ctx context.Context, exec sqlx.ExtContext, evaluatorID string, delta int) error
}

type roomDirectory interface {
	ListAvailable(ctx context.Context) ([]models.Room, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Room, error)
	Reserve(ctx context.Context, exec sqlx.ExtContext, reservation *models.RoomReservation) error
	LockBookings(ctx context.Context, exec sqlx.ExtContext) error
	BusyIntervals(ctx context.Context, exec sqlx.ExtContext, from, to time.Time) ([]models.BusyInterval, error)
	RescheduleSitting(ctx context.Context, exec sqlx.ExtContext, sittingID string, start, end time.Time) error
}

type sittingStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, sitting *models.Sitting) error
	ReplaceRoster(ctx context.Context, exec sqlx.ExtContext, sitting *models.Sitting) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Sitting, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Sitting, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.Sitting, error)
	EvaluatorBusyIntervals(ctx context.Context, exec sqlx.ExtContext, evaluatorIDs []string, from, to time.Time) ([]models.BusyInterval, error)
	ScheduledCandidateIDs(ctx context.Context, exec sqlx.ExtContext, candidateIDs []string) ([]string, error)
	UpdateWindow(ctx context.Context, exec sqlx.ExtContext, id string, start, end time.Time) error
}

// JuryServiceConfig governs proposal generation.
type JuryServiceConfig struct {
	Policy      SchedulingPolicy
	ProposalTTL time.Duration
}

// JuryService generates committee proposals and persists the ones an operator confirms.
type JuryService struct {
	sessions   defenseSessionStore
	candidates candidateDirectory
	evaluators evaluatorDirectory
	rooms      roomDirectory
	sittings   sittingStore
	tx         transactor
	store      *proposalStore
	policy     SchedulingPolicy
	ttl        time.Duration
	validator  *validator.Validate
	metrics    *MetricsService
	audit      auditRecorder
	logger     *zap.Logger
	now        func() time.Time
}

// NewJuryService wires jury scheduling dependencies. cache may be nil.
func NewJuryService(
	sessions defenseSessionStore,
	candidates candidateDirectory,
	evaluators evaluatorDirectory,
	rooms roomDirectory,
	sittings sittingStore,
	tx transactor,
	cache proposalCache,
	audit auditLogWriter,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg JuryServiceConfig,
) *JuryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.Policy.PerCandidateDuration <= 0 {
		cfg.Policy = DefaultSchedulingPolicy()
	}
	return &JuryService{
		sessions:   sessions,
		candidates: candidates,
		evaluators: evaluators,
		rooms:      rooms,
		sittings:   sittings,
		tx:         tx,
		store:      newProposalStore(cfg.ProposalTTL, cache),
		policy:     cfg.Policy,
		ttl:        cfg.ProposalTTL,
		validator:  validate,
		metrics:    metrics,
		audit:      newAuditRecorder(audit, logger),
		logger:     logger,
		now:        time.Now,
	}
}

// Generate proposes sittings for every eligible candidate of the session. The batch is
// kept for review until it expires or is confirmed.
func (s *JuryService) Generate(ctx context.Context, req dto.GenerateProposalsRequest, actorID string) (*models.ProposalBatch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid proposal generation payload")
	}
	policy := s.policy
	if req.MaxGroupSize > 0 {
		policy.MaxGroupSize = req.MaxGroupSize
	}
	dates, err := policy.ParseDates(req.Dates)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "defense session not found")
		}
		return nil, wrapInternal(err, "failed to load defense session")
	}

	roster, err := s.candidates.ListRoster(ctx, session.Level, session.AcademicYear)
	if err != nil {
		return nil, wrapInternal(err, "failed to load candidate roster")
	}
	eligible, err := ResolveEligibility(*session, roster)
	if err != nil {
		return nil, err
	}

	scheduledIDs, err := s.sittings.ScheduledCandidateIDs(ctx, nil, eligible.CandidateIDs())
	if err != nil {
		return nil, wrapInternal(err, "failed to check scheduled candidates")
	}
	evaluators, err := s.evaluators.ListAvailable(ctx)
	if err != nil {
		return nil, wrapInternal(err, "failed to load evaluators")
	}
	rooms, err := s.rooms.ListAvailable(ctx)
	if err != nil {
		return nil, wrapInternal(err, "failed to load rooms")
	}

	from, to := dates[0], dates[len(dates)-1].AddDate(0, 0, 1)
	roomBusy, err := s.rooms.BusyIntervals(ctx, nil, from, to)
	if err != nil {
		return nil, wrapInternal(err, "failed to load room reservations")
	}
	watched := make([]string, 0, len(evaluators)+len(eligible.Supervisors))
	for _, e := range evaluators {
		watched = append(watched, e.ID)
	}
	for _, supervisorID := range eligible.Supervisors {
		watched = append(watched, supervisorID)
	}
	evaluatorBusy, err := s.sittings.EvaluatorBusyIntervals(ctx, nil, uniqueStrings(watched), from, to)
	if err != nil {
		return nil, wrapInternal(err, "failed to load evaluator commitments")
	}

	scheduled := make(map[string]struct{}, len(scheduledIDs))
	for _, id := range scheduledIDs {
		scheduled[id] = struct{}{}
	}
	sittings, err := buildProposals(policy, proposalSnapshot{
		Eligible:      eligible,
		Scheduled:     scheduled,
		Evaluators:    evaluators,
		Rooms:         rooms,
		RoomBusy:      roomBusy,
		EvaluatorBusy: evaluatorBusy,
		Dates:         dates,
	})
	if err != nil {
		return nil, wrapInternal(err, "proposal generation produced an inconsistent batch")
	}

	now := s.now().UTC()
	batch := models.ProposalBatch{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		Dates:       formatDates(dates),
		Sittings:    sittings,
		GeneratedBy: actorID,
		GeneratedAt: now,
		ExpiresAt:   now.Add(s.ttl),
	}
	s.store.Save(ctx, batch)
	s.metrics.RecordProposalBatch(&batch)
	s.logger.Info("jury proposals generated",
		zap.String("batch_id", batch.ID),
		zap.String("session_id", session.ID),
		zap.Int("sittings", len(batch.Sittings)),
		zap.Int("valid", batch.ValidCount()),
	)
	return &batch, nil
}

// GetProposal returns a batch that has not expired.
func (s *JuryService) GetProposal(ctx context.Context, batchID string) (*models.ProposalBatch, error) {
	batch, ok := s.store.Get(ctx, batchID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal batch not found or expired")
	}
	return &batch, nil
}

// Confirm persists the selected valid sittings of a batch in one transaction. Room and
// member availability and candidate uniqueness are re-checked under the session lock.
func (s *JuryService) Confirm(ctx context.Context, batchID string, req dto.ConfirmProposalsRequest, actorID string) (*dto.ConfirmProposalsResponse, error) {
	if actorID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "confirming proposals requires an authenticated operator")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid confirmation payload")
	}
	batch, ok := s.store.Get(ctx, batchID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal batch not found or expired")
	}
	selected, skipped, err := selectProposals(batch, req.Indexes)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no valid sitting selected for confirmation")
	}

	var confirmed []models.Sitting
	err = s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		confirmed = confirmed[:0]
		if _, err := s.sessions.LockForUpdate(ctx, exec, batch.SessionID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "defense session not found")
			}
			return wrapInternal(err, "failed to lock defense session")
		}
		if err := s.rooms.LockBookings(ctx, exec); err != nil {
			return wrapInternal(err, "failed to lock room and evaluator calendars")
		}

		var candidateIDs, memberIDs []string
		from, to := *selected[0].StartsAt, *selected[0].EndsAt
		for _, p := range selected {
			candidateIDs = append(candidateIDs, p.CandidateIDs...)
			memberIDs = append(memberIDs, memberEvaluatorIDs(p.Members)...)
			if p.StartsAt.Before(from) {
				from = *p.StartsAt
			}
			if p.EndsAt.After(to) {
				to = *p.EndsAt
			}
		}
		already, err := s.sittings.ScheduledCandidateIDs(ctx, exec, candidateIDs)
		if err != nil {
			return wrapInternal(err, "failed to check scheduled candidates")
		}
		if len(already) > 0 {
			return appErrors.WithDetails(
				appErrors.Clone(appErrors.ErrConflict, "candidates were scheduled since the batch was generated"),
				map[string]any{"candidateIds": already},
			)
		}
		roomBusy, err := s.rooms.BusyIntervals(ctx, exec, from, to)
		if err != nil {
			return wrapInternal(err, "failed to load room reservations")
		}
		evaluatorBusy, err := s.sittings.EvaluatorBusyIntervals(ctx, exec, uniqueStrings(memberIDs), from, to)
		if err != nil {
			return wrapInternal(err, "failed to load evaluator commitments")
		}
		busy := newOccupancy(roomBusy, evaluatorBusy)

		for _, p := range selected {
			ids := memberEvaluatorIDs(p.Members)
			if conflicts := busy.conflicts(p.RoomID, ids, *p.StartsAt, *p.EndsAt); len(conflicts) > 0 {
				return appErrors.WithDetails(
					appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("proposed sitting %d is no longer free", p.Index)),
					map[string]any{"index": p.Index, "conflicts": conflicts},
				)
			}
			sitting := models.Sitting{
				SessionID:    batch.SessionID,
				BatchID:      &batch.ID,
				RoomID:       p.RoomID,
				StartsAt:     *p.StartsAt,
				EndsAt:       *p.EndsAt,
				Status:       models.SittingStatusConfirmed,
				CandidateIDs: append([]string(nil), p.CandidateIDs...),
				Members:      append([]models.SittingMember(nil), p.Members...),
				CreatedBy:    &actorID,
			}
			if err := s.sittings.Create(ctx, exec, &sitting); err != nil {
				return wrapInternal(err, "failed to persist sitting")
			}
			if err := s.rooms.Reserve(ctx, exec, &models.RoomReservation{
				RoomID:    sitting.RoomID,
				SittingID: &sitting.ID,
				StartsAt:  sitting.StartsAt,
				EndsAt:    sitting.EndsAt,
				Purpose:   "defense sitting",
			}); err != nil {
				return wrapInternal(err, "failed to reserve room")
			}
			for _, m := range sitting.Members {
				if !m.Role.IsVoting() {
					continue
				}
				if err := s.evaluators.IncrementLoad(ctx, exec, m.EvaluatorID, 1); err != nil {
					return wrapInternal(err, "failed to update evaluator load")
				}
			}
			busy.reserve(sitting.ID, sitting.RoomID, ids, sitting.StartsAt, sitting.EndsAt)
			confirmed = append(confirmed, sitting)
		}
		return nil
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to confirm proposals")
	}

	s.store.Delete(ctx, batchID)
	s.metrics.RecordConfirmedSittings(len(confirmed))
	sittingIDs := make([]string, len(confirmed))
	for i, sitting := range confirmed {
		sittingIDs[i] = sitting.ID
	}
	s.audit.record(ctx, actorID, models.AuditActionJuryConfirm, "proposal_batch", batchID, map[string]interface{}{
		"session_id":  batch.SessionID,
		"sitting_ids": sittingIDs,
	})
	return &dto.ConfirmProposalsResponse{BatchID: batchID, Confirmed: confirmed, Skipped: skipped}, nil
}

// selectProposals splits the requested entries into confirmable and skipped ones.
// An empty selection means every entry of the batch.
func selectProposals(batch models.ProposalBatch, indexes []int) (selected, skipped []models.ProposedSitting, err error) {
	if len(indexes) == 0 {
		for _, p := range batch.Sittings {
			if p.Valid {
				selected = append(selected, p)
			} else {
				skipped = append(skipped, p)
			}
		}
		return selected, skipped, nil
	}
	byIndex := make(map[int]models.ProposedSitting, len(batch.Sittings))
	for _, p := range batch.Sittings {
		byIndex[p.Index] = p
	}
	seen := make(map[int]struct{}, len(indexes))
	sorted := append([]int(nil), indexes...)
	sort.Ints(sorted)
	for _, idx := range sorted {
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		p, ok := byIndex[idx]
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("index %d is not part of batch %s", idx, batch.ID))
		}
		if p.Valid {
			selected = append(selected, p)
		} else {
			skipped = append(skipped, p)
		}
	}
	return selected, skipped, nil
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format("2006-01-02")
	}
	return out
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// wrapInternal keeps typed errors and turns anything else into an internal error.
func wrapInternal(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
