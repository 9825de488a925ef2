package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/defense-jury-api/internal/dto"
	"github.com/noah-isme/defense-jury-api/internal/models"
	"github.com/noah-isme/defense-jury-api/pkg/export"
	appErrors "github.com/noah-isme/defense-jury-api/pkg/errors"

	"github.com/jmoiron/sqlx"
)

type archivedVerdictStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Verdict, error)
	SetArchiveKey(ctx context.Context, id, key string) error
}

type archiveSessionReader interface {
	FindByID(ctx context.Context, id string) (*models.DefenseSession, error)
}

type archiveRoomReader interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Room, error)
}

type archiveEvaluatorReader interface {
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Evaluator, error)
}

type archiveDocumentReader interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.MemoirDocument, error)
}

type archiveFileStorage interface {
	Save(key string, data []byte) (string, error)
	Open(key string) (*os.File, error)
}

type archiveSignedURLSigner interface {
	Generate(resourceID, key string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (resourceID, key string, expiresAt time.Time, err error)
}

type verdictRenderer interface {
	Render(doc export.VerdictDocument) ([]byte, error)
}

// ArchiveServiceConfig tunes archive URLs.
type ArchiveServiceConfig struct {
	APIPrefix string
}

// ArchiveDownload bundles file reader metadata for streaming.
type ArchiveDownload struct {
	File      *os.File
	Filename  string
	SizeBytes int64
	ExpiresAt time.Time
}

// ArchiveService renders finalized verdicts to PDF, stores them and issues signed download links.
type ArchiveService struct {
	verdicts   archivedVerdictStore
	sittings   verdictSittingReader
	sessions   archiveSessionReader
	rooms      archiveRoomReader
	candidates candidateDirectory
	evaluators archiveEvaluatorReader
	documents  archiveDocumentReader
	storage    archiveFileStorage
	signer     archiveSignedURLSigner
	renderer   verdictRenderer
	logger     *zap.Logger
	cfg        ArchiveServiceConfig
}

// NewArchiveService wires archive dependencies.
func NewArchiveService(
	verdicts archivedVerdictStore,
	sittings verdictSittingReader,
	sessions archiveSessionReader,
	rooms archiveRoomReader,
	candidates candidateDirectory,
	evaluators archiveEvaluatorReader,
	documents archiveDocumentReader,
	storage archiveFileStorage,
	signer archiveSignedURLSigner,
	renderer verdictRenderer,
	logger *zap.Logger,
	cfg ArchiveServiceConfig,
) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &ArchiveService{
		verdicts:   verdicts,
		sittings:   sittings,
		sessions:   sessions,
		rooms:      rooms,
		candidates: candidates,
		evaluators: evaluators,
		documents:  documents,
		storage:    storage,
		signer:     signer,
		renderer:   renderer,
		logger:     logger,
		cfg:        cfg,
	}
}

func verdictArchiveKey(verdictID string) string {
	return fmt.Sprintf("verdicts/%s/pv.pdf", verdictID)
}

// Archive renders the verdict record and stores it. Re-archiving overwrites the file.
func (s *ArchiveService) Archive(ctx context.Context, verdictID string) (string, error) {
	verdict, err := s.verdicts.FindByID(ctx, nil, verdictID)
	if err != nil {
		return "", verdictLookupError(err)
	}
	if verdict.Status != models.VerdictStatusFinalized {
		return "", appErrors.Clone(appErrors.ErrPreconditionFailed, "only finalized verdicts are archived")
	}
	doc, err := s.buildDocument(ctx, verdict)
	if err != nil {
		return "", err
	}
	pdf, err := s.renderer.Render(doc)
	if err != nil {
		return "", wrapInternal(err, "failed to render verdict record")
	}
	key, err := s.storage.Save(verdictArchiveKey(verdict.ID), pdf)
	if err != nil {
		return "", wrapInternal(err, "failed to store verdict record")
	}
	if err := s.verdicts.SetArchiveKey(ctx, verdict.ID, key); err != nil {
		return "", wrapInternal(err, "failed to record archive location")
	}
	s.logger.Info("verdict archived", zap.String("verdict_id", verdict.ID), zap.String("key", key))
	return key, nil
}

// GetDownloadURL returns a signed link to the archived record, archiving it first if needed.
func (s *ArchiveService) GetDownloadURL(ctx context.Context, verdictID string) (*dto.VerdictDocumentResponse, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	verdict, err := s.verdicts.FindByID(ctx, nil, verdictID)
	if err != nil {
		return nil, verdictLookupError(err)
	}
	if verdict.Status != models.VerdictStatusFinalized {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "the verdict record is available once finalized")
	}
	key := ""
	if verdict.ArchiveKey != nil {
		key = *verdict.ArchiveKey
	}
	if key == "" {
		if key, err = s.Archive(ctx, verdictID); err != nil {
			return nil, err
		}
	}
	token, expiresAt, err := s.signer.Generate(verdict.ID, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return &dto.VerdictDocumentResponse{
		VerdictID: verdict.ID,
		URL:       fmt.Sprintf("%s/verdicts/documents/%s", base, token),
		ExpiresAt: expiresAt,
	}, nil
}

// Download validates token and opens the archived record.
func (s *ArchiveService) Download(ctx context.Context, token string) (*ArchiveDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	verdictID, key, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if key != verdictArchiveKey(verdictID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "archived record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open archived record")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read archive metadata")
	}
	return &ArchiveDownload{
		File:      file,
		Filename:  fmt.Sprintf("pv-%s%s", verdictID, filepath.Ext(key)),
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *ArchiveService) buildDocument(ctx context.Context, verdict *models.Verdict) (export.VerdictDocument, error) {
	sitting, err := s.sittings.FindByID(ctx, nil, verdict.SittingID)
	if err != nil {
		return export.VerdictDocument{}, sittingLookupError(err)
	}
	session, err := s.sessions.FindByID(ctx, sitting.SessionID)
	if err != nil {
		return export.VerdictDocument{}, wrapInternal(err, "failed to load defense session")
	}
	rooms, err := s.rooms.FindByIDs(ctx, []string{sitting.RoomID})
	if err != nil {
		return export.VerdictDocument{}, wrapInternal(err, "failed to load room")
	}
	candidates, err := s.candidates.FindByIDs(ctx, nil, sitting.CandidateIDs)
	if err != nil {
		return export.VerdictDocument{}, wrapInternal(err, "failed to load candidates")
	}
	evaluators, err := s.evaluators.FindByIDs(ctx, nil, sitting.MemberIDs())
	if err != nil {
		return export.VerdictDocument{}, wrapInternal(err, "failed to load evaluators")
	}
	var documentIDs []string
	for _, c := range candidates {
		if c.DocumentID != nil {
			documentIDs = append(documentIDs, *c.DocumentID)
		}
	}
	titles := make(map[string]string)
	if len(documentIDs) > 0 {
		documents, err := s.documents.FindByIDs(ctx, uniqueStrings(documentIDs))
		if err != nil {
			return export.VerdictDocument{}, wrapInternal(err, "failed to load memoir documents")
		}
		for _, d := range documents {
			titles[d.ID] = d.Title
		}
	}

	doc := export.VerdictDocument{
		VerdictID:     verdict.ID,
		SessionLabel:  session.Label,
		AcademicYear:  session.AcademicYear,
		Date:          sitting.StartsAt,
		StartTime:     sitting.StartsAt.Format("15:04"),
		EndTime:       sitting.EndsAt.Format("15:04"),
		FinalScore:    verdict.FinalScore,
		Mention:       verdict.Mention,
		Observations:  verdict.Observations,
		Appreciations: verdict.Appreciations,
	}
	if len(rooms) > 0 {
		doc.RoomName = rooms[0].Name
	}
	if verdict.RevisionText != nil {
		doc.RevisionText = *verdict.RevisionText
	}
	if verdict.Seal != nil {
		doc.Seal = *verdict.Seal
	}
	if verdict.FinalizedAt != nil {
		doc.FinalizedAt = *verdict.FinalizedAt
	}

	byCandidate := make(map[string]models.Candidate, len(candidates))
	for _, c := range candidates {
		byCandidate[c.ID] = c
	}
	for _, id := range sitting.CandidateIDs {
		c := byCandidate[id]
		line := export.VerdictCandidate{Name: c.Name, Program: c.Program}
		if c.DocumentID != nil {
			line.Thesis = titles[*c.DocumentID]
		}
		doc.Candidates = append(doc.Candidates, line)
	}

	names := make(map[string]string, len(evaluators))
	for _, e := range evaluators {
		names[e.ID] = e.Name
	}
	approvedAt := make(map[string]time.Time, len(verdict.Approvals))
	for _, a := range verdict.Approvals {
		approvedAt[a.EvaluatorID] = a.ApprovedAt
	}
	for _, m := range sitting.Members {
		line := export.VerdictMember{Name: names[m.EvaluatorID], Role: string(m.Role)}
		if line.Name == "" {
			line.Name = m.EvaluatorID
		}
		if at, ok := approvedAt[m.EvaluatorID]; ok {
			at := at
			line.ApprovedAt = &at
		}
		doc.Members = append(doc.Members, line)
	}
	return doc, nil
}
