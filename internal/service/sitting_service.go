package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/defense-jury-api/internal/dto"
	"github.com/noah-isme/defense-jury-api/internal/models"
)

type sittingReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Sitting, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.Sitting, error)
}

type sittingVerdictReader interface {
	FindBySitting(ctx context.Context, exec sqlx.ExtContext, sittingID string) (*models.Verdict, error)
	ListBySittings(ctx context.Context, sittingIDs []string) ([]models.Verdict, error)
}

type sittingRoomReader interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Room, error)
}

type sittingPeopleReader interface {
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Candidate, error)
}

type sittingEvaluatorReader interface {
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Evaluator, error)
}

// SittingService serves read models of confirmed sittings.
type SittingService struct {
	sessions   archiveSessionReader
	sittings   sittingReader
	verdicts   sittingVerdictReader
	rooms      sittingRoomReader
	candidates sittingPeopleReader
	evaluators sittingEvaluatorReader
	logger     *zap.Logger
}

// NewSittingService constructs the service.
func NewSittingService(
	sessions archiveSessionReader,
	sittings sittingReader,
	verdicts sittingVerdictReader,
	rooms sittingRoomReader,
	candidates sittingPeopleReader,
	evaluators sittingEvaluatorReader,
	logger *zap.Logger,
) *SittingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SittingService{
		sessions:   sessions,
		sittings:   sittings,
		verdicts:   verdicts,
		rooms:      rooms,
		candidates: candidates,
		evaluators: evaluators,
		logger:     logger,
	}
}

// ListBySession returns the session's sittings in chronological order with directory data attached.
func (s *SittingService) ListBySession(ctx context.Context, sessionID string) ([]dto.SittingDetail, error) {
	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		return nil, sessionLookupError(err)
	}
	sittings, err := s.sittings.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, wrapInternal(err, "failed to list sittings")
	}
	if len(sittings) == 0 {
		return []dto.SittingDetail{}, nil
	}

	ids := make([]string, len(sittings))
	for i, sitting := range sittings {
		ids[i] = sitting.ID
	}
	verdicts, err := s.verdicts.ListBySittings(ctx, ids)
	if err != nil {
		return nil, wrapInternal(err, "failed to load verdicts")
	}
	bySitting := make(map[string]models.Verdict, len(verdicts))
	for _, v := range verdicts {
		bySitting[v.SittingID] = v
	}

	dir, err := s.loadDirectory(ctx, sittings)
	if err != nil {
		return nil, err
	}
	details := make([]dto.SittingDetail, len(sittings))
	for i, sitting := range sittings {
		var verdict *models.Verdict
		if v, ok := bySitting[sitting.ID]; ok {
			verdict = &v
		}
		details[i] = dir.detail(sitting, verdict)
	}
	return details, nil
}

// Detail returns one sitting with its roster and verdict summary.
func (s *SittingService) Detail(ctx context.Context, sittingID string) (*dto.SittingDetail, error) {
	sitting, err := s.sittings.FindByID(ctx, nil, sittingID)
	if err != nil {
		return nil, sittingLookupError(err)
	}
	verdict, err := s.verdicts.FindBySitting(ctx, nil, sitting.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, wrapInternal(err, "failed to load verdict")
		}
		verdict = nil
	}
	dir, err := s.loadDirectory(ctx, []models.Sitting{*sitting})
	if err != nil {
		return nil, err
	}
	detail := dir.detail(*sitting, verdict)
	return &detail, nil
}

type sittingDirectory struct {
	rooms      map[string]models.Room
	candidates map[string]models.Candidate
	evaluators map[string]models.Evaluator
}

func (s *SittingService) loadDirectory(ctx context.Context, sittings []models.Sitting) (*sittingDirectory, error) {
	var roomIDs, candidateIDs, evaluatorIDs []string
	for _, sitting := range sittings {
		roomIDs = append(roomIDs, sitting.RoomID)
		candidateIDs = append(candidateIDs, sitting.CandidateIDs...)
		evaluatorIDs = append(evaluatorIDs, sitting.MemberIDs()...)
	}
	rooms, err := s.rooms.FindByIDs(ctx, uniqueStrings(roomIDs))
	if err != nil {
		return nil, wrapInternal(err, "failed to load rooms")
	}
	candidates, err := s.candidates.FindByIDs(ctx, nil, uniqueStrings(candidateIDs))
	if err != nil {
		return nil, wrapInternal(err, "failed to load candidates")
	}
	evaluators, err := s.evaluators.FindByIDs(ctx, nil, uniqueStrings(evaluatorIDs))
	if err != nil {
		return nil, wrapInternal(err, "failed to load evaluators")
	}

	dir := &sittingDirectory{
		rooms:      make(map[string]models.Room, len(rooms)),
		candidates: make(map[string]models.Candidate, len(candidates)),
		evaluators: make(map[string]models.Evaluator, len(evaluators)),
	}
	for _, r := range rooms {
		dir.rooms[r.ID] = r
	}
	for _, c := range candidates {
		dir.candidates[c.ID] = c
	}
	for _, e := range evaluators {
		dir.evaluators[e.ID] = e
	}
	return dir, nil
}

func (d *sittingDirectory) detail(sitting models.Sitting, verdict *models.Verdict) dto.SittingDetail {
	detail := dto.SittingDetail{
		Sitting:    sitting,
		RoomName:   d.rooms[sitting.RoomID].Name,
		Candidates: make([]models.Candidate, 0, len(sitting.CandidateIDs)),
		Evaluators: make([]models.Evaluator, 0, len(sitting.Members)),
	}
	for _, id := range sitting.CandidateIDs {
		if c, ok := d.candidates[id]; ok {
			detail.Candidates = append(detail.Candidates, c)
		}
	}
	for _, m := range sitting.Members {
		if e, ok := d.evaluators[m.EvaluatorID]; ok {
			detail.Evaluators = append(detail.Evaluators, e)
		}
	}
	if verdict != nil {
		detail.Verdict = &dto.VerdictSummary{
			ID:          verdict.ID,
			Status:      verdict.Status,
			Mention:     verdict.Mention,
			FinalizedAt: verdict.FinalizedAt,
		}
	}
	return detail
}
