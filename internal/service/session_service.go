package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/defense-jury-api/internal/dto"
	"github.com/noah-isme/defense-jury-api/internal/models"
	appErrors "github.com/noah-isme/defense-jury-api/pkg/errors"
)

type sessionRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, session *models.DefenseSession) error
	FindByID(ctx context.Context, id string) (*models.DefenseSession, error)
	LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.DefenseSession, error)
	List(ctx context.Context, filter models.DefenseSessionFilter) ([]models.DefenseSession, error)
	Activate(ctx context.Context, exec sqlx.ExtContext, id, level string) error
}

// SessionService manages defense sessions.
type SessionService struct {
	repo      sessionRepository
	tx        transactor
	validator *validator.Validate
	audit     auditRecorder
	logger    *zap.Logger
}

// NewSessionService constructs the service.
func NewSessionService(repo sessionRepository, tx transactor, audit auditLogWriter, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, tx: tx, validator: validate, audit: newAuditRecorder(audit, logger), logger: logger}
}

// Create opens a session, optionally making it the active one for its level.
func (s *SessionService) Create(ctx context.Context, req dto.CreateSessionRequest, actorID string) (*models.DefenseSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	session := &models.DefenseSession{
		AcademicYear: strings.TrimSpace(req.AcademicYear),
		Label:        strings.ToUpper(strings.TrimSpace(req.Label)),
		Level:        strings.ToUpper(strings.TrimSpace(req.Level)),
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		if err := s.repo.Create(ctx, exec, session); err != nil {
			return err
		}
		if !req.Activate {
			return nil
		}
		if err := s.repo.Activate(ctx, exec, session.ID, session.Level); err != nil {
			return err
		}
		session.Active = true
		return nil
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to create defense session")
	}
	s.audit.record(ctx, actorID, models.AuditActionSessionCreate, "defense_session", session.ID, session)
	return session, nil
}

// List returns sessions matching the query.
func (s *SessionService) List(ctx context.Context, query dto.SessionQuery) ([]models.DefenseSession, error) {
	sessions, err := s.repo.List(ctx, models.DefenseSessionFilter{
		Level:        strings.ToUpper(strings.TrimSpace(query.Level)),
		AcademicYear: strings.TrimSpace(query.AcademicYear),
		ActiveOnly:   query.Active,
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to list defense sessions")
	}
	return sessions, nil
}

// Get returns a session by id.
func (s *SessionService) Get(ctx context.Context, id string) (*models.DefenseSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, sessionLookupError(err)
	}
	return session, nil
}

// Activate makes the session the only active one of its level.
func (s *SessionService) Activate(ctx context.Context, id, actorID string) (*models.DefenseSession, error) {
	var session *models.DefenseSession
	err := s.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		var err error
		session, err = s.repo.LockForUpdate(ctx, exec, id)
		if err != nil {
			return sessionLookupError(err)
		}
		if session.Active {
			return nil
		}
		if err := s.repo.Activate(ctx, exec, session.ID, session.Level); err != nil {
			return err
		}
		session.Active = true
		return nil
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to activate defense session")
	}
	s.audit.record(ctx, actorID, models.AuditActionSessionActivate, "defense_session", session.ID, nil)
	s.logger.Info("defense session activated", zap.String("session_id", session.ID), zap.String("level", session.Level))
	return session, nil
}

func sessionLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "defense session not found")
	}
	return wrapInternal(err, "failed to load defense session")
}
