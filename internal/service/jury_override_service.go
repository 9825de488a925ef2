package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/defense-jury-api/internal/dto"
	"github.com/noah-isme/defense-jury-api/internal/models"
	appErrors "github.com/noah-isme/defense-jury-api/pkg/errors"
)

type sittingVerdictLookup interface {
	FindBySitting(ctx context.Context, exec sqlx.ExtContext, sittingID string) (*models.Verdict, error)
}

// SittingOverrideService applies operator corrections to confirmed sittings.
type SittingOverrideService struct {
	sessions   defenseSessionStore
	candidates candidateDirectory
	evaluators evaluatorDirectory
	rooms      roomDirectory
	sittings   sittingStore
	verdicts   sittingVerdictLookup
	tx         transactor
	policy     SchedulingPolicy
	validator  *validator.Validate
	metrics    *MetricsService
	audit      auditRecorder
	logger     *zap.Logger
}

// NewSittingOverrideService wires override dependencies.
func NewSittingOverrideService(
	sessions defenseSessionStore,
	candidates candidateDirectory,
	evaluators evaluatorDirectory,
	rooms roomDirectory,
	sittings sittingStore,
	verdicts sittingVerdictLookup,
	tx transactor,
	audit auditLogWriter,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	policy SchedulingPolicy,
) *SittingOverrideService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.PerCandidateDuration <= 0 {
		policy = DefaultSchedulingPolicy()
	}
	return &SittingOverrideService{
		sessions:   sessions,
		candidates: candidates,
		evaluators: evaluators,
		rooms:      rooms,
		sittings:   sittings,
		verdicts:   verdicts,
		tx:         tx,
		policy:     policy,
		validator:  validate,
		metrics:    metrics,
		audit:      newAuditRecorder(audit, logger),
		logger:     logger,
	}
}

// Swap exchanges the start times of two confirmed sittings. Each sitting keeps its
// own length. Both move or neither does.
func (s *SittingOverrideService) Swap(ctx context.Context, req dto.SwapSittingsRequest, actorID string) (resp *dto.SwapSittingsResponse, err error) {
	defer func() { s.metrics.RecordOverride("swap", err) }()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap payload")
	}

	var a, b *models.Sitting
	err = s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		ids := []string{req.SittingA, req.SittingB}
		sort.Strings(ids)

		sessionIDs := make([]string, 0, 2)
		for _, id := range ids {
			sitting, err := s.sittings.FindByID(ctx, exec, id)
			if err != nil {
				return sittingLookupError(err)
			}
			sessionIDs = append(sessionIDs, sitting.SessionID)
		}
		for _, sessionID := range uniqueStrings(sessionIDs) {
			if _, err := s.sessions.LockForUpdate(ctx, exec, sessionID); err != nil {
				return wrapInternal(err, "failed to lock defense session")
			}
		}
		if err := s.rooms.LockBookings(ctx, exec); err != nil {
			return wrapInternal(err, "failed to lock room and evaluator calendars")
		}

		locked := make(map[string]*models.Sitting, 2)
		for _, id := range ids {
			sitting, err := s.sittings.FindByIDForUpdate(ctx, exec, id)
			if err != nil {
				return sittingLookupError(err)
			}
			if sitting.Status != models.SittingStatusConfirmed {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sitting %s is not confirmed", id))
			}
			if err := s.ensureNoVerdict(ctx, exec, id, appErrors.ErrSwapConflict); err != nil {
				return err
			}
			locked[id] = sitting
		}
		a, b = locked[req.SittingA], locked[req.SittingB]

		newA := sittingShape{CandidateIDs: a.CandidateIDs, Members: a.Members, StartsAt: b.StartsAt, EndsAt: b.StartsAt.Add(s.policy.SittingLength(len(a.CandidateIDs)))}
		newB := sittingShape{CandidateIDs: b.CandidateIDs, Members: b.Members, StartsAt: a.StartsAt, EndsAt: a.StartsAt.Add(s.policy.SittingLength(len(b.CandidateIDs)))}
		for _, shape := range []sittingShape{newA, newB} {
			if !s.policy.WithinWorkday(shape.StartsAt, shape.EndsAt) {
				return appErrors.Clone(appErrors.ErrSwapConflict, "swapped window does not fit within working hours")
			}
		}

		from, to := earliest(newA.StartsAt, newB.StartsAt), latest(newA.EndsAt, newB.EndsAt)
		roomBusy, err := s.rooms.BusyIntervals(ctx, exec, from, to)
		if err != nil {
			return wrapInternal(err, "failed to load room reservations")
		}
		members := uniqueStrings(append(a.MemberIDs(), b.MemberIDs()...))
		evaluatorBusy, err := s.sittings.EvaluatorBusyIntervals(ctx, exec, members, from, to)
		if err != nil {
			return wrapInternal(err, "failed to load evaluator commitments")
		}
		busy := newOccupancy(roomBusy, evaluatorBusy, a.ID, b.ID)

		if conflicts := busy.conflicts(a.RoomID, a.MemberIDs(), newA.StartsAt, newA.EndsAt); len(conflicts) > 0 {
			return swapConflict(a.ID, conflicts)
		}
		busy.reserve(a.ID, a.RoomID, a.MemberIDs(), newA.StartsAt, newA.EndsAt)
		if conflicts := busy.conflicts(b.RoomID, b.MemberIDs(), newB.StartsAt, newB.EndsAt); len(conflicts) > 0 {
			return swapConflict(b.ID, conflicts)
		}

		for _, move := range []struct {
			sitting *models.Sitting
			shape   sittingShape
		}{{a, newA}, {b, newB}} {
			if err := s.sittings.UpdateWindow(ctx, exec, move.sitting.ID, move.shape.StartsAt, move.shape.EndsAt); err != nil {
				return wrapInternal(err, "failed to move sitting")
			}
			if err := s.rooms.RescheduleSitting(ctx, exec, move.sitting.ID, move.shape.StartsAt, move.shape.EndsAt); err != nil {
				return wrapInternal(err, "failed to move room reservation")
			}
			move.sitting.StartsAt, move.sitting.EndsAt = move.shape.StartsAt, move.shape.EndsAt
		}
		return nil
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to swap sittings")
	}

	s.audit.record(ctx, actorID, models.AuditActionSittingSwap, "sitting", a.ID, map[string]interface{}{
		"sitting_a": map[string]interface{}{"id": a.ID, "starts_at": a.StartsAt, "ends_at": a.EndsAt},
		"sitting_b": map[string]interface{}{"id": b.ID, "starts_at": b.StartsAt, "ends_at": b.EndsAt},
	})
	return &dto.SwapSittingsResponse{SittingA: *a, SittingB: *b}, nil
}

// EditMembers applies a membership diff to a confirmed sitting without a verdict.
// Supervisor observers are recomputed from the resulting candidates.
func (s *SittingOverrideService) EditMembers(ctx context.Context, sittingID string, req dto.EditSittingMembersRequest, actorID string) (result *models.Sitting, err error) {
	defer func() { s.metrics.RecordOverride("edit_members", err) }()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid membership payload")
	}
	if req.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "membership change is empty")
	}

	var before models.Sitting
	err = s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		current, err := s.sittings.FindByID(ctx, exec, sittingID)
		if err != nil {
			return sittingLookupError(err)
		}
		session, err := s.sessions.LockForUpdate(ctx, exec, current.SessionID)
		if err != nil {
			return wrapInternal(err, "failed to lock defense session")
		}
		if err := s.rooms.LockBookings(ctx, exec); err != nil {
			return wrapInternal(err, "failed to lock room and evaluator calendars")
		}
		sitting, err := s.sittings.FindByIDForUpdate(ctx, exec, sittingID)
		if err != nil {
			return sittingLookupError(err)
		}
		if sitting.Status != models.SittingStatusConfirmed {
			return appErrors.Clone(appErrors.ErrValidation, "only confirmed sittings can be edited")
		}
		if err := s.ensureNoVerdict(ctx, exec, sittingID, appErrors.ErrPreconditionFailed); err != nil {
			return err
		}
		before = *sitting
		before.CandidateIDs = append([]string(nil), sitting.CandidateIDs...)
		before.Members = append([]models.SittingMember(nil), sitting.Members...)

		candidateIDs, err := applyCandidateDiff(sitting.CandidateIDs, req.AddCandidateIDs, req.RemoveCandidateIDs)
		if err != nil {
			return err
		}
		voting, err := applyVotingDiff(sitting.Members, req.AddMembers, req.RemoveEvaluatorIDs)
		if err != nil {
			return err
		}

		candidates, err := s.candidates.FindByIDs(ctx, exec, candidateIDs)
		if err != nil {
			return wrapInternal(err, "failed to load candidates")
		}
		byID := make(map[string]models.Candidate, len(candidates))
		for _, c := range candidates {
			byID[c.ID] = c
		}
		ordered := make([]models.Candidate, 0, len(candidateIDs))
		supervisors := make(map[string]string, len(candidateIDs))
		for _, id := range candidateIDs {
			c, ok := byID[id]
			if !ok {
				return appErrors.Clone(appErrors.ErrInvariantViolation, fmt.Sprintf("candidate %s does not exist", id))
			}
			ordered = append(ordered, c)
			supervisors[id] = c.SupervisorID
		}
		if added := newEntries(before.CandidateIDs, candidateIDs); len(added) > 0 {
			if err := s.checkAddedCandidates(ctx, exec, *session, added, byID); err != nil {
				return err
			}
		}

		members := append(voting, supervisorObservers(ordered)...)
		shape := sittingShape{
			CandidateIDs: candidateIDs,
			Members:      members,
			StartsAt:     sitting.StartsAt,
			EndsAt:       sitting.StartsAt.Add(s.policy.SittingLength(len(candidateIDs))),
		}

		votingIDs := memberEvaluatorIDs(voting)
		evaluators, err := s.evaluators.FindByIDs(ctx, exec, votingIDs)
		if err != nil {
			return wrapInternal(err, "failed to load evaluators")
		}
		grades := make(map[string]models.AcademicGrade, len(evaluators))
		for _, e := range evaluators {
			grades[e.ID] = e.Grade
		}
		for _, id := range newEntries(votingMemberIDs(before.Members), votingIDs) {
			e, ok := findEvaluator(evaluators, id)
			if !ok {
				return appErrors.Clone(appErrors.ErrInvariantViolation, fmt.Sprintf("evaluator %s does not exist", id))
			}
			if !e.Available {
				return appErrors.Clone(appErrors.ErrInvariantViolation, fmt.Sprintf("evaluator %s is not available", id))
			}
		}
		if err := checkSittingInvariants(s.policy, shape, supervisors, grades); err != nil {
			return err
		}

		rooms, err := s.rooms.FindByIDs(ctx, []string{sitting.RoomID})
		if err != nil {
			return wrapInternal(err, "failed to load room")
		}
		if len(rooms) == 0 || rooms[0].Capacity < s.policy.RequiredCapacity(len(members), len(candidateIDs)) {
			return appErrors.Clone(appErrors.ErrInvariantViolation, "room capacity is insufficient for the new membership")
		}

		roomBusy, err := s.rooms.BusyIntervals(ctx, exec, shape.StartsAt, shape.EndsAt)
		if err != nil {
			return wrapInternal(err, "failed to load room reservations")
		}
		allIDs := memberEvaluatorIDs(members)
		evaluatorBusy, err := s.sittings.EvaluatorBusyIntervals(ctx, exec, allIDs, shape.StartsAt, shape.EndsAt)
		if err != nil {
			return wrapInternal(err, "failed to load evaluator commitments")
		}
		if conflicts := newOccupancy(roomBusy, evaluatorBusy, sitting.ID).conflicts(sitting.RoomID, allIDs, shape.StartsAt, shape.EndsAt); len(conflicts) > 0 {
			return appErrors.WithDetails(
				appErrors.Clone(appErrors.ErrInvariantViolation, "new membership overlaps existing commitments"),
				map[string]any{"conflicts": conflicts},
			)
		}

		sitting.CandidateIDs = candidateIDs
		sitting.Members = members
		if err := s.sittings.ReplaceRoster(ctx, exec, sitting); err != nil {
			return wrapInternal(err, "failed to update sitting roster")
		}
		if !shape.EndsAt.Equal(sitting.EndsAt) {
			if err := s.sittings.UpdateWindow(ctx, exec, sitting.ID, shape.StartsAt, shape.EndsAt); err != nil {
				return wrapInternal(err, "failed to resize sitting")
			}
			if err := s.rooms.RescheduleSitting(ctx, exec, sitting.ID, shape.StartsAt, shape.EndsAt); err != nil {
				return wrapInternal(err, "failed to resize room reservation")
			}
			sitting.EndsAt = shape.EndsAt
		}

		oldVoting := votingMemberIDs(before.Members)
		for _, id := range newEntries(oldVoting, votingIDs) {
			if err := s.evaluators.IncrementLoad(ctx, exec, id, 1); err != nil {
				return wrapInternal(err, "failed to update evaluator load")
			}
		}
		for _, id := range newEntries(votingIDs, oldVoting) {
			if err := s.evaluators.IncrementLoad(ctx, exec, id, -1); err != nil {
				return wrapInternal(err, "failed to update evaluator load")
			}
		}
		result = sitting
		return nil
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to edit sitting membership")
	}

	s.audit.record(ctx, actorID, models.AuditActionSittingEdit, "sitting", sittingID, map[string]interface{}{
		"before": map[string]interface{}{"candidate_ids": before.CandidateIDs, "members": before.Members},
		"after":  map[string]interface{}{"candidate_ids": result.CandidateIDs, "members": result.Members},
	})
	return result, nil
}

func (s *SittingOverrideService) ensureNoVerdict(ctx context.Context, exec sqlx.ExtContext, sittingID string, sentinel *appErrors.Error) error {
	verdict, err := s.verdicts.FindBySitting(ctx, exec, sittingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return wrapInternal(err, "failed to check sitting verdict")
	}
	return appErrors.Clone(sentinel, fmt.Sprintf("sitting %s already has a %s verdict", sittingID, verdict.Status))
}

// checkAddedCandidates applies the eligibility rules to candidates joining a sitting.
func (s *SittingOverrideService) checkAddedCandidates(ctx context.Context, exec sqlx.ExtContext, session models.DefenseSession, added []string, byID map[string]models.Candidate) error {
	for _, id := range added {
		if !isEligible(session, byID[id]) {
			return appErrors.Clone(appErrors.ErrInvariantViolation, fmt.Sprintf("candidate %s is not eligible for this session", id))
		}
	}
	scheduled, err := s.sittings.ScheduledCandidateIDs(ctx, exec, added)
	if err != nil {
		return wrapInternal(err, "failed to check scheduled candidates")
	}
	if len(scheduled) > 0 {
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrInvariantViolation, "candidates already belong to a confirmed sitting"),
			map[string]any{"candidateIds": scheduled},
		)
	}
	return nil
}

// applyCandidateDiff removes then appends candidates, keeping the existing order.
func applyCandidateDiff(current, add, remove []string) ([]string, error) {
	removeSet := make(map[string]struct{}, len(remove))
	for _, id := range remove {
		if !slices.Contains(current, id) {
			return nil, appErrors.Clone(appErrors.ErrInvariantViolation, fmt.Sprintf("candidate %s is not part of the sitting", id))
		}
		removeSet[id] = struct{}{}
	}
	out := make([]string, 0, len(current)+len(add))
	for _, id := range current {
		if _, drop := removeSet[id]; !drop {
			out = append(out, id)
		}
	}
	for _, id := range add {
		if slices.Contains(out, id) {
			return nil, appErrors.Clone(appErrors.ErrInvariantViolation, fmt.Sprintf("candidate %s is already part of the sitting", id))
		}
		out = append(out, id)
	}
	return out, nil
}

// applyVotingDiff returns the voting members after removals and additions.
// Observers cannot be removed directly; they follow the candidates.
func applyVotingDiff(current []models.SittingMember, add []dto.MemberChange, remove []string) ([]models.SittingMember, error) {
	removeSet := make(map[string]struct{}, len(remove))
	for _, id := range remove {
		member, ok := models.Sitting{Members: current}.Member(id)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrInvariantViolation, fmt.Sprintf("evaluator %s is not a member of the sitting", id))
		}
		if !member.Role.IsVoting() {
			return nil, appErrors.Clone(appErrors.ErrInvariantViolation, fmt.Sprintf("observer %s follows their candidates and cannot be removed directly", id))
		}
		removeSet[id] = struct{}{}
	}
	voting := make([]models.SittingMember, 0, len(models.VotingRoles))
	for _, m := range current {
		if !m.Role.IsVoting() {
			continue
		}
		if _, drop := removeSet[m.EvaluatorID]; drop {
			continue
		}
		voting = append(voting, models.SittingMember{SittingID: m.SittingID, EvaluatorID: m.EvaluatorID, Role: m.Role})
	}
	for _, change := range add {
		if !change.Role.IsVoting() {
			return nil, appErrors.Clone(appErrors.ErrInvariantViolation, fmt.Sprintf("role %s cannot be assigned directly", change.Role))
		}
		voting = append(voting, models.SittingMember{EvaluatorID: change.EvaluatorID, Role: change.Role})
	}
	sort.SliceStable(voting, func(i, j int) bool {
		return roleOrder(voting[i].Role) < roleOrder(voting[j].Role)
	})
	return voting, nil
}

func roleOrder(role models.JuryRole) int {
	for i, r := range models.VotingRoles {
		if r == role {
			return i
		}
	}
	return len(models.VotingRoles)
}

func votingMemberIDs(members []models.SittingMember) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m.Role.IsVoting() {
			ids = append(ids, m.EvaluatorID)
		}
	}
	return ids
}

// newEntries returns values of next missing from prev.
func newEntries(prev, next []string) []string {
	var out []string
	for _, id := range next {
		if !slices.Contains(prev, id) {
			out = append(out, id)
		}
	}
	return out
}

func findEvaluator(evaluators []models.Evaluator, id string) (models.Evaluator, bool) {
	for _, e := range evaluators {
		if e.ID == id {
			return e, true
		}
	}
	return models.Evaluator{}, false
}

func sittingLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "sitting not found")
	}
	return wrapInternal(err, "failed to load sitting")
}

func swapConflict(sittingID string, conflicts []string) error {
	return appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrSwapConflict, fmt.Sprintf("sitting %s cannot move to the other window", sittingID)),
		map[string]any{"sittingId": sittingID, "conflicts": conflicts},
	)
}
