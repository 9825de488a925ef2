package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// auditRecorder appends audit rows after a committed change. Failures are logged only.
type auditRecorder struct {
	repo   auditLogWriter
	logger *zap.Logger
}

func newAuditRecorder(repo auditLogWriter, logger *zap.Logger) auditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return auditRecorder{repo: repo, logger: logger}
}

func (a auditRecorder) record(ctx context.Context, actorID, action, resource, resourceID string, payload interface{}) {
	if a.repo == nil {
		return
	}
	entry := &models.AuditLog{Action: action, Resource: resource}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			a.logger.Warn("marshal audit payload", zap.String("action", action), zap.Error(err))
		} else {
			entry.NewValues = body
		}
	}
	if err := a.repo.CreateAuditLog(ctx, entry); err != nil {
		a.logger.Warn("write audit log", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}
