package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/defense-jury-api/internal/models"
	"github.com/noah-isme/defense-jury-api/pkg/jobs"
	"github.com/noah-isme/defense-jury-api/pkg/library"
	"github.com/noah-isme/defense-jury-api/pkg/mailer"
)

// Job types emitted when a verdict is finalized. JobVerdictFinalized fans out into the others.
const (
	JobVerdictFinalized  = "verdict.finalized"
	JobRevisionTicket    = "verdict.revision_ticket"
	JobLibrarySubmission = "verdict.library_submission"
	JobVerdictArchive    = "verdict.archive"
)

// Library submission statuses recorded locally.
const (
	SubmissionStatusQueued    = "QUEUED"
	SubmissionStatusSubmitted = "SUBMITTED"
)

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type revisionTicketStore interface {
	Create(ctx context.Context, ticket *models.RevisionTicket) (bool, error)
}

type librarySubmissionStore interface {
	FindByVerdictDocument(ctx context.Context, verdictID, documentRef string) (*models.LibrarySubmission, error)
	Create(ctx context.Context, sub *models.LibrarySubmission) error
}

type memoirDocumentStore interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.MemoirDocument, error)
	UpdateStatus(ctx context.Context, id string, status models.DocumentStatus) error
}

type effectCandidateReader interface {
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Candidate, error)
}

type effectEvaluatorReader interface {
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Evaluator, error)
}

// LibrarySubmitter hands memoirs to the publication service.
type LibrarySubmitter interface {
	SubmitDocument(ctx context.Context, sub library.Submission) (*library.Receipt, error)
}

type notificationSender interface {
	Enabled() bool
	Send(msg mailer.Message) error
}

type verdictArchiver interface {
	Archive(ctx context.Context, verdictID string) (string, error)
}

// FinalizedPayload snapshots what the fan-out needs. The roster of a sitting with a
// verdict can no longer be edited, so CandidateIDs stays valid across retries.
type FinalizedPayload struct {
	VerdictID    string
	SittingID    string
	CandidateIDs []string
	Mention      string
	RevisionText string
}

// RevisionTicketPayload asks the candidate's supervisor to follow up on corrections.
type RevisionTicketPayload struct {
	VerdictID    string
	CandidateID  string
	SupervisorID string
	DocumentID   string
	Text         string
}

// LibrarySubmissionPayload hands one memoir to the library.
type LibrarySubmissionPayload struct {
	VerdictID   string
	CandidateID string
	DocumentID  string
	Mention     string
}

// ArchivePayload renders and stores the verdict record.
type ArchivePayload struct {
	VerdictID string
}

// VerdictEffectsDeps groups the collaborators of the downstream workers. Library, Mailer and
// Archiver may be nil.
type VerdictEffectsDeps struct {
	Queue       jobEnqueuer
	Candidates  effectCandidateReader
	Evaluators  effectEvaluatorReader
	Documents   memoirDocumentStore
	Tickets     revisionTicketStore
	Submissions librarySubmissionStore
	Library     LibrarySubmitter
	Mailer      notificationSender
	Archiver    verdictArchiver
	Metrics     *MetricsService
	Logger      *zap.Logger
}

// VerdictEffects enqueues and executes the work that follows a finalized verdict. Failures
// are retried by the queue and never touch the verdict itself.
type VerdictEffects struct {
	deps   VerdictEffectsDeps
	logger *zap.Logger
}

// NewVerdictEffects constructs the effect dispatcher.
func NewVerdictEffects(deps VerdictEffectsDeps) *VerdictEffects {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerdictEffects{deps: deps, logger: logger}
}

// Register binds the effect handlers on mux.
func (e *VerdictEffects) Register(mux *jobs.Mux) {
	mux.Handle(JobVerdictFinalized, e.instrument(JobVerdictFinalized, e.handleFinalized))
	mux.Handle(JobRevisionTicket, e.instrument(JobRevisionTicket, e.handleRevisionTicket))
	mux.Handle(JobLibrarySubmission, e.instrument(JobLibrarySubmission, e.handleLibrarySubmission))
	mux.Handle(JobVerdictArchive, e.instrument(JobVerdictArchive, e.handleArchive))
}

func (e *VerdictEffects) instrument(jobType string, h jobs.Handler) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		err := h(ctx, job)
		e.deps.Metrics.RecordEffect(jobType, err)
		return err
	}
}

// VerdictFinalized enqueues the fan-out job for a finalized verdict. Candidate lookups
// happen in the worker so a failing read is retried like any other effect.
func (e *VerdictEffects) VerdictFinalized(_ context.Context, verdict models.Verdict, sitting models.Sitting) {
	payload := FinalizedPayload{
		VerdictID:    verdict.ID,
		SittingID:    sitting.ID,
		CandidateIDs: append([]string(nil), sitting.CandidateIDs...),
		Mention:      verdict.Mention,
	}
	if verdict.HasRevision() {
		payload.RevisionText = *verdict.RevisionText
	}
	if err := e.enqueue(JobVerdictFinalized, payload); err != nil {
		e.logger.Error("verdict effects not scheduled",
			zap.String("verdict_id", verdict.ID), zap.String("sitting_id", sitting.ID), zap.Error(err))
	}
}

// handleFinalized enqueues one job per distinct memoir of the sitting plus the archive job.
// Candidates sharing a document are handled once, through the first of them in roster order.
// Redelivery may enqueue children twice; their handlers are idempotent.
func (e *VerdictEffects) handleFinalized(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(FinalizedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	candidates, err := e.deps.Candidates.FindByIDs(ctx, nil, payload.CandidateIDs)
	if err != nil {
		return fmt.Errorf("load candidates of sitting %s: %w", payload.SittingID, err)
	}

	var errs []error
	for _, c := range documentLeads(payload.CandidateIDs, candidates) {
		documentID := ""
		if c.DocumentID != nil {
			documentID = *c.DocumentID
		}
		if payload.RevisionText != "" {
			errs = append(errs, e.enqueue(JobRevisionTicket, RevisionTicketPayload{
				VerdictID:    payload.VerdictID,
				CandidateID:  c.ID,
				SupervisorID: c.SupervisorID,
				DocumentID:   documentID,
				Text:         payload.RevisionText,
			}))
			continue
		}
		if documentID == "" {
			e.logger.Warn("candidate has no memoir document, skipping library submission",
				zap.String("verdict_id", payload.VerdictID), zap.String("candidate_id", c.ID))
			continue
		}
		errs = append(errs, e.enqueue(JobLibrarySubmission, LibrarySubmissionPayload{
			VerdictID:   payload.VerdictID,
			CandidateID: c.ID,
			DocumentID:  documentID,
			Mention:     payload.Mention,
		}))
	}
	if e.deps.Archiver != nil {
		errs = append(errs, e.enqueue(JobVerdictArchive, ArchivePayload{VerdictID: payload.VerdictID}))
	}
	return errors.Join(errs...)
}

func (e *VerdictEffects) enqueue(jobType string, payload interface{}) error {
	job := jobs.Job{ID: uuid.NewString(), Type: jobType, Payload: payload, Enqueued: time.Now().UTC()}
	if err := e.deps.Queue.Enqueue(job); err != nil {
		e.deps.Metrics.RecordEffect(jobType, err)
		return fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return nil
}

// documentLeads keeps, in roster order, the first candidate of every distinct document.
// Candidates without a document stand alone.
func documentLeads(order []string, candidates []models.Candidate) []models.Candidate {
	byID := make(map[string]models.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	seen := make(map[string]struct{})
	leads := make([]models.Candidate, 0, len(order))
	for _, id := range order {
		c, ok := byID[id]
		if !ok {
			continue
		}
		if c.DocumentID != nil {
			if _, dup := seen[*c.DocumentID]; dup {
				continue
			}
			seen[*c.DocumentID] = struct{}{}
		}
		leads = append(leads, c)
	}
	return leads
}

func (e *VerdictEffects) handleRevisionTicket(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(RevisionTicketPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	ticket := &models.RevisionTicket{
		VerdictID:   payload.VerdictID,
		CandidateID: payload.CandidateID,
		AssigneeID:  payload.SupervisorID,
		Text:        payload.Text,
		Priority:    models.TicketPriorityHigh,
	}
	created, err := e.deps.Tickets.Create(ctx, ticket)
	if err != nil {
		return err
	}
	if payload.DocumentID != "" {
		if err := e.deps.Documents.UpdateStatus(ctx, payload.DocumentID, models.DocumentStatusPendingValidation); err != nil {
			return err
		}
	}
	if created {
		e.logger.Info("revision ticket created",
			zap.String("verdict_id", payload.VerdictID),
			zap.String("candidate_id", payload.CandidateID),
			zap.String("assignee_id", payload.SupervisorID))
		e.notifySupervisor(ctx, payload)
	}
	return nil
}

func (e *VerdictEffects) notifySupervisor(ctx context.Context, payload RevisionTicketPayload) {
	if e.deps.Mailer == nil || !e.deps.Mailer.Enabled() {
		return
	}
	supervisors, err := e.deps.Evaluators.FindByIDs(ctx, nil, []string{payload.SupervisorID})
	if err != nil || len(supervisors) == 0 || supervisors[0].Email == "" {
		e.logger.Warn("supervisor e-mail unavailable", zap.String("assignee_id", payload.SupervisorID), zap.Error(err))
		return
	}
	name := payload.CandidateID
	if candidates, err := e.deps.Candidates.FindByIDs(ctx, nil, []string{payload.CandidateID}); err == nil && len(candidates) > 0 {
		name = candidates[0].Name
	}
	msg := mailer.Message{
		To:      []string{supervisors[0].Email},
		Subject: fmt.Sprintf("Corrections requested for %s", name),
		HTML: fmt.Sprintf("<p>Dear %s,</p><p>The defense jury requested corrections for %s:</p><blockquote>%s</blockquote>",
			html.EscapeString(supervisors[0].Name), html.EscapeString(name), html.EscapeString(payload.Text)),
	}
	if err := e.deps.Mailer.Send(msg); err != nil {
		e.logger.Warn("failed to notify supervisor", zap.String("assignee_id", payload.SupervisorID), zap.Error(err))
	}
}

func (e *VerdictEffects) handleLibrarySubmission(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(LibrarySubmissionPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	documents, err := e.deps.Documents.FindByIDs(ctx, []string{payload.DocumentID})
	if err != nil {
		return err
	}
	if len(documents) == 0 {
		e.logger.Warn("memoir document not found", zap.String("document_id", payload.DocumentID))
		return nil
	}
	doc := documents[0]

	existing, err := e.deps.Submissions.FindByVerdictDocument(ctx, payload.VerdictID, doc.Ref)
	switch {
	case err == nil && existing != nil:
		return nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return err
	}

	sub := &models.LibrarySubmission{
		VerdictID:   payload.VerdictID,
		CandidateID: payload.CandidateID,
		DocumentRef: doc.Ref,
		Active:      false,
		Status:      SubmissionStatusQueued,
	}
	if e.deps.Library != nil {
		receipt, err := e.deps.Library.SubmitDocument(ctx, library.Submission{
			CandidateID: payload.CandidateID,
			DocumentRef: doc.Ref,
			VerdictID:   payload.VerdictID,
			Mention:     payload.Mention,
			Active:      false,
		})
		if err != nil {
			return err
		}
		sub.Status = SubmissionStatusSubmitted
		if receipt.Status != "" {
			sub.Status = receipt.Status
		}
		if receipt.ExternalID != "" {
			sub.ExternalID = &receipt.ExternalID
		}
	}
	if err := e.deps.Submissions.Create(ctx, sub); err != nil {
		return err
	}
	if err := e.deps.Documents.UpdateStatus(ctx, doc.ID, models.DocumentStatusSentToLibrary); err != nil {
		return err
	}
	e.logger.Info("memoir sent to library",
		zap.String("verdict_id", payload.VerdictID),
		zap.String("document_ref", doc.Ref),
		zap.String("status", sub.Status))
	return nil
}

func (e *VerdictEffects) handleArchive(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(ArchivePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	_, err := e.deps.Archiver.Archive(ctx, payload.VerdictID)
	return err
}
